package gmail

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// sendFunc delivers one raw message. Tests replace it.
type sendFunc func(ctx context.Context, creds Credentials, from string, recipients []string, raw []byte) error

// Notifier emails sync and scan summaries through Gmail SMTP. It satisfies
// the reconcile package's Notifier interface.
type Notifier struct {
	creds Credentials
	to    []string
	send  sendFunc
	now   func() time.Time
}

// NewNotifier returns a Notifier that mails to, or the sender itself when to
// is empty.
func NewNotifier(creds Credentials, to ...string) (*Notifier, error) {
	if creds.Address == "" || creds.AppPassword == "" {
		return nil, errors.New("gmail: notifier requires credentials")
	}
	recipients := uniqueRecipients(to)
	if len(recipients) == 0 {
		recipients = []string{creds.Address}
	}
	return &Notifier{creds: creds, to: recipients, send: sendSMTP, now: time.Now}, nil
}

// Notify sends a plain-text email with title as subject.
func (n *Notifier) Notify(ctx context.Context, title string, body string) error {
	msg := summaryMessage{To: n.to, Subject: title, Body: body}
	if err := msg.validate(); err != nil {
		return err
	}
	now := n.now()
	raw := buildSummaryMessage(n.creds.Address, msg, generateMessageID(n.creds.Address, now), now)
	return n.send(ctx, n.creds, n.creds.Address, uniqueRecipients(msg.To), raw)
}

func sendSMTP(ctx context.Context, creds Credentials, from string, recipients []string, raw []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	smtpClient, err := connectSMTP(creds)
	if err != nil {
		return err
	}
	defer smtpClient.Close()

	if err := smtpClient.Mail(from, nil); err != nil {
		return fmt.Errorf("gmail: MAIL FROM failed: %w", err)
	}
	for _, rcpt := range recipients {
		if err := smtpClient.Rcpt(rcpt, nil); err != nil {
			return fmt.Errorf("gmail: RCPT TO %q failed: %w", rcpt, err)
		}
	}

	writer, err := smtpClient.Data()
	if err != nil {
		return fmt.Errorf("gmail: DATA failed: %w", err)
	}
	if _, err := writer.Write(raw); err != nil {
		return fmt.Errorf("gmail: writing message failed: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("gmail: finalizing message failed: %w", err)
	}
	if err := smtpClient.Quit(); err != nil {
		return fmt.Errorf("gmail: QUIT failed: %w", err)
	}
	return nil
}
