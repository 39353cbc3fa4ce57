package models

import (
	"time"

	"gorm.io/gorm"
)

// Mailbox represents a sending identity with SMTP/IMAP credentials and a daily
// sending quota. Passwords are encrypted in the application layer.
type Mailbox struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Email    string `gorm:"not null;uniqueIndex" json:"email"`
	Name     string `json:"name"`
	FromName string `json:"from_name"`

	// SMTP configuration
	SMTPHost     string `gorm:"not null" json:"smtp_host"`
	SMTPPort     int    `gorm:"not null;default:587" json:"smtp_port"`
	SMTPUsername string `gorm:"not null" json:"smtp_username"`
	SMTPPassword string `gorm:"not null" json:"-"`

	// IMAP configuration, optional; reply/bounce detection is skipped without it
	IMAPHost     string `json:"imap_host"`
	IMAPPort     int    `gorm:"default:993" json:"imap_port"`
	IMAPUsername string `json:"imap_username"`
	IMAPPassword string `json:"-"`
	IMAPMailbox  string `gorm:"default:'INBOX'" json:"imap_mailbox"`

	Status string `gorm:"not null;default:'ACTIVE';index" json:"status"`

	// Usage counters. SentCount is incremented by the dispatcher and zeroed by
	// the daily reset job.
	DailyLimit int       `gorm:"not null;default:50" json:"daily_limit"`
	SentCount  int       `gorm:"not null;default:0" json:"sent_count"`
	LastReset  time.Time `json:"last_reset"`

	LastError *string `json:"last_error"`
}

// Sanitize clears credential fields before the record leaves the API.
func (m *Mailbox) Sanitize() {
	m.SMTPPassword = ""
	m.IMAPPassword = ""
}
