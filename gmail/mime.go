package gmail

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"
	"time"
)

// summaryMessage is a plain-text email.
type summaryMessage struct {
	To      []string
	Subject string
	Body    string
}

func (m summaryMessage) validate() error {
	if len(uniqueRecipients(m.To)) == 0 {
		return errors.New("gmail: at least one recipient is required")
	}
	if strings.TrimSpace(m.Body) == "" {
		return errors.New("gmail: message body is required")
	}
	return nil
}

func uniqueRecipients(recipients []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(recipients))
	for _, recipient := range recipients {
		recipient = strings.TrimSpace(recipient)
		if recipient == "" {
			continue
		}
		if _, ok := seen[recipient]; ok {
			continue
		}
		seen[recipient] = struct{}{}
		out = append(out, recipient)
	}
	return out
}

func buildSummaryMessage(from string, msg summaryMessage, messageID string, now time.Time) []byte {
	subject := sanitizeHeader(msg.Subject)
	if subject == "" {
		subject = "(no subject)"
	}

	headers := []string{
		fmt.Sprintf("From: %s", from),
		fmt.Sprintf("To: %s", strings.Join(uniqueRecipients(msg.To), ", ")),
		fmt.Sprintf("Subject: %s", mime.QEncoding.Encode("utf-8", subject)),
		fmt.Sprintf("Date: %s", now.Format(time.RFC1123Z)),
		fmt.Sprintf("Message-ID: %s", normalizeMessageID(messageID)),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
	}
	return []byte(strings.Join(headers, "\r\n") + "\r\n\r\n" + normalizeBody(msg.Body) + "\r\n")
}

func sanitizeHeader(value string) string {
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.TrimSpace(value)
}

func normalizeBody(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.ReplaceAll(body, "\r", "\n")
	body = strings.ReplaceAll(body, "\n", "\r\n")
	return strings.TrimSpace(body)
}

func generateMessageID(address string, now time.Time) string {
	domain := "localhost"
	if at := strings.LastIndex(address, "@"); at >= 0 && at < len(address)-1 {
		domain = address[at+1:]
	}
	return fmt.Sprintf("<%d.%s>", now.UnixNano(), domain)
}

func normalizeMessageID(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if strings.HasPrefix(value, "<") && strings.HasSuffix(value, ">") {
		return value
	}
	return "<" + strings.Trim(value, "<>") + ">"
}

// extractBodiesFromRaw returns the plain text and HTML parts of an RFC 5322
// message, walking nested multiparts.
func extractBodiesFromRaw(raw []byte) (string, string, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return "", "", err
	}
	body, err := io.ReadAll(msg.Body)
	if err != nil {
		return "", "", err
	}
	textBody, htmlBody, err := extractBodiesFromEntity(textproto.MIMEHeader(msg.Header), body)
	if err != nil {
		return "", "", err
	}
	return strings.TrimSpace(textBody), strings.TrimSpace(htmlBody), nil
}

func extractBodiesFromEntity(header textproto.MIMEHeader, body []byte) (string, string, error) {
	mediaType, params, err := mime.ParseMediaType(header.Get("Content-Type"))
	if err != nil || mediaType == "" {
		mediaType = "text/plain"
	}

	decoded, err := decodeTransferEncoding(header.Get("Content-Transfer-Encoding"), body)
	if err != nil {
		return "", "", err
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return "", "", nil
		}
		reader := multipart.NewReader(bytes.NewReader(decoded), boundary)
		plainParts := make([]string, 0, 4)
		htmlParts := make([]string, 0, 2)
		for {
			part, err := reader.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return "", "", err
			}
			partBody, err := io.ReadAll(part)
			if err != nil {
				return "", "", err
			}
			partText, partHTML, err := extractBodiesFromEntity(textproto.MIMEHeader(part.Header), partBody)
			if err != nil {
				return "", "", err
			}
			if partText != "" {
				plainParts = append(plainParts, partText)
			}
			if partHTML != "" {
				htmlParts = append(htmlParts, partHTML)
			}
		}
		return strings.Join(plainParts, "\n"), strings.Join(htmlParts, "\n"), nil
	}

	switch mediaType {
	case "text/plain":
		return string(decoded), "", nil
	case "text/html":
		return "", string(decoded), nil
	default:
		return "", "", nil
	}
}

func decodeTransferEncoding(encoding string, body []byte) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "7bit", "8bit", "binary":
		return body, nil
	case "quoted-printable":
		reader := quotedprintable.NewReader(bytes.NewReader(body))
		return io.ReadAll(reader)
	case "base64":
		clean := strings.ReplaceAll(string(body), "\r", "")
		clean = strings.ReplaceAll(clean, "\n", "")
		decoded, err := base64.StdEncoding.DecodeString(clean)
		if err != nil {
			return body, nil
		}
		return decoded, nil
	default:
		return body, nil
	}
}
