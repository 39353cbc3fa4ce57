package models

import (
	"time"

	"gorm.io/gorm"
)

// Campaign represents an ordered outreach program bound to one sending mailbox
type Campaign struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name   string `gorm:"not null" json:"name"`
	Status string `gorm:"not null;default:'DRAFT';index" json:"status"`

	// Sending-window constraints, consulted as gates, not enforced by the engine
	DailyLimit *int   `json:"daily_limit"`
	StartTime  string `json:"start_time"` // "09:00"
	EndTime    string `json:"end_time"`   // "17:00"
	Timezone   string `json:"timezone"`

	MailboxID *uint    `gorm:"index" json:"mailbox_id"`
	Mailbox   *Mailbox `gorm:"foreignKey:MailboxID" json:"mailbox,omitempty"`

	// Relations
	Steps       []SequenceStep `gorm:"foreignKey:CampaignID" json:"steps,omitempty"`
	Enrollments []CampaignLead `gorm:"foreignKey:CampaignID" json:"enrollments,omitempty"`
	Events      []Event        `gorm:"foreignKey:CampaignID" json:"events,omitempty"`
}

// SequenceStep is one step of a campaign's sequence. Order is zero-based and
// unique per campaign; the delay applies before this step fires, relative to
// completion of the previous one.
type SequenceStep struct {
	gorm.Model
	CampaignID uint `gorm:"not null;uniqueIndex:idx_steps_campaign_order" json:"campaign_id"`

	Title      string `json:"title"`
	Order      int    `gorm:"not null;uniqueIndex:idx_steps_campaign_order" json:"order"`
	Type       string `gorm:"not null;default:'EMAIL'" json:"type"`
	Subject    string `json:"subject"`
	Body       string `gorm:"type:text" json:"body"`
	DelayDays  int    `gorm:"not null;default:0" json:"delay_days"`
	DelayHours int    `gorm:"not null;default:0" json:"delay_hours"`
}

// Delay is the wait applied before this step fires.
func (s *SequenceStep) Delay() time.Duration {
	return time.Duration(s.DelayDays)*24*time.Hour + time.Duration(s.DelayHours)*time.Hour
}

// CampaignLead is an enrollment: one lead's progress through one campaign.
// CurrentStep is the index of the next step to execute; NextActionAt nil means
// no further action is scheduled.
type CampaignLead struct {
	gorm.Model
	CampaignID uint `gorm:"not null;uniqueIndex:idx_enrollments_campaign_lead" json:"campaign_id"`
	LeadID     uint `gorm:"not null;uniqueIndex:idx_enrollments_campaign_lead;index" json:"lead_id"`

	Status       string     `gorm:"not null;default:'NEW';index" json:"status"`
	CurrentStep  int        `gorm:"not null;default:0" json:"current_step"`
	NextActionAt *time.Time `gorm:"index" json:"next_action_at"`
	LastError    *string    `json:"last_error"`

	// Relations
	Campaign Campaign `json:"campaign,omitempty"`
	Lead     Lead     `json:"lead,omitempty"`
}
