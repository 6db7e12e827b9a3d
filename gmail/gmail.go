package gmail

import (
	"crypto/tls"
	"fmt"
	"os"
	"strings"

	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

const (
	gmailIMAPAddress = "imap.gmail.com:993"
	gmailSMTPHost    = "smtp.gmail.com"
	gmailSMTPAddress = "smtp.gmail.com:465"

	envGmailAddress     = "GMAIL_ADDRESS"
	envGmailAppPassword = "GMAIL_APP_PASSWORD"
)

// Credentials authenticate against Gmail IMAP and SMTP with an app password.
type Credentials struct {
	Address     string
	AppPassword string
}

// LoadCredentials reads GMAIL_ADDRESS and GMAIL_APP_PASSWORD. Spaces in the
// app password, as Google displays it, are dropped.
func LoadCredentials() (Credentials, error) {
	address := strings.TrimSpace(os.Getenv(envGmailAddress))
	if address == "" {
		return Credentials{}, fmt.Errorf("gmail: %s is required", envGmailAddress)
	}

	appPassword := strings.ReplaceAll(os.Getenv(envGmailAppPassword), " ", "")
	if appPassword == "" {
		return Credentials{}, fmt.Errorf("gmail: %s is required", envGmailAppPassword)
	}

	return Credentials{Address: address, AppPassword: appPassword}, nil
}

func connectIMAP(creds Credentials) (*client.Client, error) {
	imapClient, err := client.DialTLS(gmailIMAPAddress, &tls.Config{ServerName: "imap.gmail.com"})
	if err != nil {
		return nil, fmt.Errorf("gmail: IMAP dial failed: %w", err)
	}

	if err := imapClient.Login(creds.Address, creds.AppPassword); err != nil {
		imapClient.Logout()
		return nil, fmt.Errorf("gmail: IMAP login failed: %w", err)
	}

	return imapClient, nil
}

func connectSMTP(creds Credentials) (*smtp.Client, error) {
	conn, err := tls.Dial("tcp", gmailSMTPAddress, &tls.Config{ServerName: gmailSMTPHost})
	if err != nil {
		return nil, fmt.Errorf("gmail: SMTP TLS dial failed: %w", err)
	}

	smtpClient := smtp.NewClient(conn)
	auth := sasl.NewPlainClient("", creds.Address, creds.AppPassword)
	if err := smtpClient.Auth(auth); err != nil {
		smtpClient.Close()
		return nil, fmt.Errorf("gmail: SMTP auth failed: %w", err)
	}

	return smtpClient, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func truncateString(value string, maxChars int) string {
	if maxChars <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= maxChars {
		return value
	}
	return strings.TrimSpace(string(runes[:maxChars]))
}
