package worker

import (
	"coldreach/models"

	"gorm.io/gorm"
)

// recordEvent appends one row to the append-only event log. Events are
// advisory history; a failed insert never blocks the state transition that
// produced it, so errors are swallowed into the returned value for callers
// that care.
func recordEvent(db *gorm.DB, eventType string, campaignID, leadID *uint, token string, metadata map[string]string) error {
	event := models.Event{
		Type:       eventType,
		CampaignID: campaignID,
		LeadID:     leadID,
		Token:      token,
		Metadata:   metadata,
	}
	return db.Create(&event).Error
}
