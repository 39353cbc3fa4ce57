package utils

import (
	"fmt"
	"strings"
	"time"

	"coldreach/models"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// Mailer sends one rendered message through a mailbox's SMTP credentials and
// returns the transport message ID. Any returned error is a transport failure.
type Mailer interface {
	Send(mailbox *models.Mailbox, to, subject, htmlBody string) (string, error)
}

// SMTPMailer delivers through the mailbox's own SMTP server. Every send is
// bounded by Timeout so a hung server cannot stall a whole poll cycle.
type SMTPMailer struct {
	Timeout time.Duration
}

func NewSMTPMailer(timeout time.Duration) *SMTPMailer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SMTPMailer{Timeout: timeout}
}

func (sm *SMTPMailer) Send(mailbox *models.Mailbox, to, subject, htmlBody string) (string, error) {
	password, err := Decrypt(mailbox.SMTPPassword)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt SMTP password: %w", err)
	}

	fromName := mailbox.FromName
	if fromName == "" {
		fromName = mailbox.Name
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.New().String(), mailDomain(mailbox.Email))

	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(mailbox.Email, fromName))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetHeader("Message-ID", messageID)
	m.SetBody("text/html", htmlBody)

	d := gomail.NewDialer(mailbox.SMTPHost, mailbox.SMTPPort, mailbox.SMTPUsername, password)

	// gomail has no deadline support, so run the send in a goroutine and give
	// up after the configured timeout. A timeout counts as a transport failure.
	errc := make(chan error, 1)
	go func() {
		errc <- d.DialAndSend(m)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return "", fmt.Errorf("smtp send to %s failed: %w", to, err)
		}
		return messageID, nil
	case <-time.After(sm.Timeout):
		return "", fmt.Errorf("smtp send to %s timed out after %s", to, sm.Timeout)
	}
}

func mailDomain(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return email[i+1:]
	}
	return "localhost"
}
