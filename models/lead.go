package models

import (
	"gorm.io/gorm"
)

// Lead represents a single contact, unique by email within a user's workspace
type Lead struct {
	gorm.Model
	UserID uint `gorm:"not null;uniqueIndex:idx_leads_user_email" json:"user_id"`

	Email     string `gorm:"not null;uniqueIndex:idx_leads_user_email;index" json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	JobTitle  string `json:"job_title"`
	Website   string `json:"website"`
	Location  string `json:"location"`
	Timezone  string `json:"timezone"`

	// Free-form key/value bag, used as the variable source for templates
	Metadata map[string]string `gorm:"type:jsonb;serializer:json" json:"metadata"`

	Status string `gorm:"not null;default:'NEW';index" json:"status"`
	Source string `json:"source"` // manual, import, widget

	// Relations
	Enrollments []CampaignLead `gorm:"foreignKey:LeadID" json:"enrollments,omitempty"`
	Events      []Event        `gorm:"foreignKey:LeadID" json:"events,omitempty"`
}
