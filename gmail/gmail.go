package gmail

import (
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-imap"
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

	// DefaultMailbox is where FileTranscript stores transcripts when
	// Transcript.Mailbox is empty.
	DefaultMailbox = "Messages Archive"
)

// Transcript is a rendered conversation export to deliver by mail.
type Transcript struct {
	// To lists recipients for SendTranscript.
	To []string
	// Mailbox is the IMAP mailbox (Gmail label) for FileTranscript.
	Mailbox string
	Subject string
	// Body is the Markdown transcript; it is sent as UTF-8 text.
	Body string
	// Date defaults to the current time.
	Date time.Time
}

// Delivery reports what was sent or filed.
type Delivery struct {
	MessageID string
	Mailbox   string
}

// SendTranscript mails a transcript to Transcript.To over Gmail SMTP.
//
// Example:
//
//	delivery, err := gmail.SendTranscript(gmail.Transcript{
//		To:      []string{"me@example.com"},
//		Subject: "Message History: +15551234567",
//		Body:    markdown,
//	})
func SendTranscript(t Transcript) (Delivery, error) {
	recipients := uniqueRecipients(t.To)
	if len(recipients) == 0 {
		return Delivery{}, errors.New("gmail: at least one recipient is required")
	}
	if strings.TrimSpace(t.Body) == "" {
		return Delivery{}, errors.New("gmail: transcript body is required")
	}

	from, appPassword, err := loadCredentials()
	if err != nil {
		return Delivery{}, err
	}

	messageID := generateMessageID(from)
	raw, err := buildTranscriptMessage(from, recipients, t, messageID)
	if err != nil {
		return Delivery{}, err
	}

	smtpClient, err := connectSMTP(from, appPassword)
	if err != nil {
		return Delivery{}, err
	}
	defer smtpClient.Close()

	if err := smtpClient.Mail(from, nil); err != nil {
		return Delivery{}, fmt.Errorf("gmail: MAIL FROM failed: %w", err)
	}
	for _, rcpt := range recipients {
		if err := smtpClient.Rcpt(rcpt, nil); err != nil {
			return Delivery{}, fmt.Errorf("gmail: RCPT TO %q failed: %w", rcpt, err)
		}
	}

	writer, err := smtpClient.Data()
	if err != nil {
		return Delivery{}, fmt.Errorf("gmail: DATA failed: %w", err)
	}
	if _, err := writer.Write(raw); err != nil {
		return Delivery{}, fmt.Errorf("gmail: writing message failed: %w", err)
	}
	if err := writer.Close(); err != nil {
		return Delivery{}, fmt.Errorf("gmail: finalizing message failed: %w", err)
	}
	if err := smtpClient.Quit(); err != nil {
		return Delivery{}, fmt.Errorf("gmail: QUIT failed: %w", err)
	}

	return Delivery{MessageID: messageID}, nil
}

// FileTranscript appends a transcript to an IMAP mailbox without sending
// it, creating the mailbox when it does not exist yet. The stored copy is
// marked as seen.
func FileTranscript(t Transcript) (Delivery, error) {
	if strings.TrimSpace(t.Body) == "" {
		return Delivery{}, errors.New("gmail: transcript body is required")
	}
	mailbox := strings.TrimSpace(t.Mailbox)
	if mailbox == "" {
		mailbox = DefaultMailbox
	}

	address, appPassword, err := loadCredentials()
	if err != nil {
		return Delivery{}, err
	}

	messageID := generateMessageID(address)
	raw, err := buildTranscriptMessage(address, []string{address}, t, messageID)
	if err != nil {
		return Delivery{}, err
	}

	imapClient, err := connectIMAP(address, appPassword)
	if err != nil {
		return Delivery{}, err
	}
	defer imapClient.Logout()

	exists, err := mailboxExists(imapClient, mailbox)
	if err != nil {
		return Delivery{}, err
	}
	if !exists {
		if err := imapClient.Create(mailbox); err != nil {
			return Delivery{}, fmt.Errorf("gmail: creating mailbox %q failed: %w", mailbox, err)
		}
	}

	date := t.Date
	if date.IsZero() {
		date = time.Now()
	}
	if err := imapClient.Append(mailbox, []string{imap.SeenFlag}, date, bytes.NewBuffer(raw)); err != nil {
		return Delivery{}, fmt.Errorf("gmail: appending to mailbox %q failed: %w", mailbox, err)
	}

	return Delivery{MessageID: messageID, Mailbox: mailbox}, nil
}

func mailboxExists(imapClient *client.Client, mailbox string) (bool, error) {
	ch := make(chan *imap.MailboxInfo, 16)
	done := make(chan error, 1)
	go func() {
		done <- imapClient.List("", mailbox, ch)
	}()

	exists := false
	for info := range ch {
		if info.Name == mailbox {
			exists = true
		}
	}
	if err := <-done; err != nil {
		return false, fmt.Errorf("gmail: listing mailbox %q failed: %w", mailbox, err)
	}
	return exists, nil
}

func buildTranscriptMessage(from string, to []string, t Transcript, messageID string) ([]byte, error) {
	subject := sanitizeHeader(t.Subject)
	if subject == "" {
		subject = "Message History"
	}
	date := t.Date
	if date.IsZero() {
		date = time.Now()
	}

	headers := []string{
		fmt.Sprintf("From: %s", from),
		fmt.Sprintf("To: %s", strings.Join(to, ", ")),
		fmt.Sprintf("Subject: %s", mime.QEncoding.Encode("utf-8", subject)),
		fmt.Sprintf("Date: %s", date.Format(time.RFC1123Z)),
		fmt.Sprintf("Message-ID: %s", messageID),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"Content-Transfer-Encoding: quoted-printable",
	}

	var body bytes.Buffer
	qp := quotedprintable.NewWriter(&body)
	if _, err := qp.Write([]byte(normalizeBody(t.Body))); err != nil {
		return nil, fmt.Errorf("gmail: encoding transcript failed: %w", err)
	}
	if err := qp.Close(); err != nil {
		return nil, fmt.Errorf("gmail: encoding transcript failed: %w", err)
	}

	return []byte(strings.Join(headers, "\r\n") + "\r\n\r\n" + body.String() + "\r\n"), nil
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

func generateMessageID(address string) string {
	domain := "localhost"
	if at := strings.LastIndex(address, "@"); at >= 0 && at < len(address)-1 {
		domain = address[at+1:]
	}
	return fmt.Sprintf("<%d.imsgexport@%s>", time.Now().UnixNano(), domain)
}

func loadCredentials() (address string, appPassword string, err error) {
	address = strings.TrimSpace(os.Getenv(envGmailAddress))
	if address == "" {
		return "", "", fmt.Errorf("gmail: %s is required", envGmailAddress)
	}

	appPassword = strings.ReplaceAll(os.Getenv(envGmailAppPassword), " ", "")
	if appPassword == "" {
		return "", "", fmt.Errorf("gmail: %s is required", envGmailAppPassword)
	}

	return address, appPassword, nil
}

func connectIMAP(address string, appPassword string) (*client.Client, error) {
	imapClient, err := client.DialTLS(gmailIMAPAddress, &tls.Config{ServerName: "imap.gmail.com"})
	if err != nil {
		return nil, fmt.Errorf("gmail: IMAP dial failed: %w", err)
	}

	if err := imapClient.Login(address, appPassword); err != nil {
		imapClient.Logout()
		return nil, fmt.Errorf("gmail: IMAP login failed: %w", err)
	}

	return imapClient, nil
}

func connectSMTP(address string, appPassword string) (*smtp.Client, error) {
	conn, err := tls.Dial("tcp", gmailSMTPAddress, &tls.Config{ServerName: gmailSMTPHost})
	if err != nil {
		return nil, fmt.Errorf("gmail: SMTP TLS dial failed: %w", err)
	}

	smtpClient := smtp.NewClient(conn)
	auth := sasl.NewPlainClient("", address, appPassword)
	if err := smtpClient.Auth(auth); err != nil {
		smtpClient.Close()
		return nil, fmt.Errorf("gmail: SMTP auth failed: %w", err)
	}

	return smtpClient, nil
}
