package models

import (
	"gorm.io/gorm"
)

// Event is an immutable append-only log record. Events are advisory history
// for analytics; enrollment status remains authoritative for control flow.
type Event struct {
	gorm.Model
	Type string `gorm:"not null;index" json:"type"`

	CampaignID *uint `gorm:"index" json:"campaign_id,omitempty"`
	LeadID     *uint `gorm:"index" json:"lead_id,omitempty"`

	// Token identifies the sent message for open/click tracking resolution.
	// Set on EMAIL_SENT events only.
	Token string `gorm:"index" json:"token,omitempty"`

	Metadata map[string]string `gorm:"type:jsonb;serializer:json" json:"metadata,omitempty"`

	// Relations
	Campaign *Campaign `json:"-"`
	Lead     *Lead     `json:"-"`
}
