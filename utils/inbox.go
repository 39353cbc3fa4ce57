package utils

import (
	"crypto/tls"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"coldreach/models"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
)

// PollResult is the outcome of one inbox check: addresses that sent a new
// reply and addresses whose messages bounced.
type PollResult struct {
	RepliedSenders []string
	BouncedSenders []string
}

// InboxPoller checks a mailbox for unseen replies and bounce notifications.
// Best-effort: a transient connection failure returns an error for that
// mailbox only and must never abort the whole poll cycle.
type InboxPoller interface {
	Poll(mailbox *models.Mailbox) (PollResult, error)
}

// IMAPPoller reads the mailbox INBOX over IMAP. Processed messages are marked
// \Seen, which is the "since last check" bookkeeping.
type IMAPPoller struct {
	Timeout time.Duration
}

func NewIMAPPoller(timeout time.Duration) *IMAPPoller {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &IMAPPoller{Timeout: timeout}
}

var daemonSenders = []string{"mailer-daemon", "postmaster"}

var failedRecipientPattern = regexp.MustCompile(`(?i)(?:Final-Recipient:\s*rfc822;\s*|X-Failed-Recipients:\s*)<?([^\s;<>]+@[^\s;<>]+)`)

func (p *IMAPPoller) Poll(mailbox *models.Mailbox) (PollResult, error) {
	var result PollResult

	if mailbox.IMAPHost == "" {
		return result, nil
	}

	password, err := Decrypt(mailbox.IMAPPassword)
	if err != nil {
		return result, fmt.Errorf("failed to decrypt IMAP password: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", mailbox.IMAPHost, mailbox.IMAPPort)
	c, err := client.DialTLS(addr, &tls.Config{ServerName: mailbox.IMAPHost})
	if err != nil {
		return result, fmt.Errorf("failed to connect to IMAP server %s: %w", addr, err)
	}
	defer c.Logout()
	c.Timeout = p.Timeout

	username := mailbox.IMAPUsername
	if username == "" {
		username = mailbox.Email
	}
	if err := c.Login(username, password); err != nil {
		return result, fmt.Errorf("IMAP login failed for %s: %w", mailbox.Email, err)
	}

	folder := mailbox.IMAPMailbox
	if folder == "" {
		folder = "INBOX"
	}
	if _, err := c.Select(folder, false); err != nil {
		return result, fmt.Errorf("failed to select %s: %w", folder, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	ids, err := c.Search(criteria)
	if err != nil {
		return result, fmt.Errorf("failed to search messages: %w", err)
	}
	if len(ids) == 0 {
		return result, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope}, messages)
	}()

	bounceIDs := make(map[uint32]bool)
	for msg := range messages {
		sender := envelopeSender(msg.Envelope)
		if sender == "" {
			continue
		}
		if isDaemonSender(sender) {
			bounceIDs[msg.SeqNum] = true
			continue
		}
		result.RepliedSenders = append(result.RepliedSenders, strings.ToLower(sender))
	}
	if err := <-done; err != nil {
		return result, fmt.Errorf("envelope fetch failed: %w", err)
	}

	if len(bounceIDs) > 0 {
		bounced, err := p.fetchBouncedRecipients(c, bounceIDs)
		if err != nil {
			return result, err
		}
		result.BouncedSenders = bounced
	}

	// Mark everything we saw as read so the next poll starts fresh.
	markItem := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.Store(seqset, markItem, []interface{}{imap.SeenFlag}, nil); err != nil {
		return result, fmt.Errorf("failed to mark messages seen: %w", err)
	}

	return result, nil
}

// fetchBouncedRecipients downloads daemon notifications and extracts the
// original recipient from the delivery status report.
func (p *IMAPPoller) fetchBouncedRecipients(c *client.Client, seqNums map[uint32]bool) ([]string, error) {
	seqset := new(imap.SeqSet)
	for num := range seqNums {
		seqset.AddNum(num)
	}

	section := &imap.BodySectionName{Peek: true}
	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	var bounced []string
	for msg := range messages {
		literal := msg.GetBody(section)
		if literal == nil {
			continue
		}
		if recipient := extractFailedRecipient(literal); recipient != "" {
			bounced = append(bounced, strings.ToLower(recipient))
		}
	}
	if err := <-done; err != nil {
		return bounced, fmt.Errorf("bounce fetch failed: %w", err)
	}
	return bounced, nil
}

func extractFailedRecipient(r io.Reader) string {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return ""
	}
	for {
		part, err := mr.NextPart()
		if err != nil {
			return ""
		}
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		if m := failedRecipientPattern.FindSubmatch(body); m != nil {
			return string(m[1])
		}
	}
}

func envelopeSender(envelope *imap.Envelope) string {
	if envelope == nil || len(envelope.From) == 0 {
		return ""
	}
	from := envelope.From[0]
	if from.MailboxName == "" || from.HostName == "" {
		return ""
	}
	return from.MailboxName + "@" + from.HostName
}

func isDaemonSender(address string) bool {
	lower := strings.ToLower(address)
	for _, daemon := range daemonSenders {
		if strings.HasPrefix(lower, daemon+"@") {
			return true
		}
	}
	return false
}
