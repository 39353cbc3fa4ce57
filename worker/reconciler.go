package worker

import (
	"fmt"

	"coldreach/models"
	"coldreach/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Reconciler consumes inbox-poller results and forces terminal transitions on
// matching enrollments. All of its writes are conditional on the enrollment
// still being live, which makes re-processing the same sender a no-op.
type Reconciler struct {
	DB     *gorm.DB
	Poller utils.InboxPoller
	Logger *logrus.Logger
}

func NewReconciler(db *gorm.DB, poller utils.InboxPoller, logger *logrus.Logger) *Reconciler {
	return &Reconciler{DB: db, Poller: poller, Logger: logger}
}

// Run checks every active mailbox with IMAP configured. A failing mailbox is
// logged and treated as "no new replies this cycle"; it never blocks the rest.
func (r *Reconciler) Run() {
	var mailboxes []models.Mailbox
	if err := r.DB.Where("status = ? AND imap_host <> ''", models.MailboxStatusActive).
		Find(&mailboxes).Error; err != nil {
		r.Logger.WithError(err).Error("failed to load mailboxes for reconciliation")
		return
	}

	for i := range mailboxes {
		r.reconcileMailbox(&mailboxes[i])
	}
}

func (r *Reconciler) reconcileMailbox(mailbox *models.Mailbox) {
	result, err := r.Poller.Poll(mailbox)
	if err != nil {
		r.Logger.WithError(err).WithField("mailbox", mailbox.Email).
			Warn("inbox poll failed, assuming no new replies")
		return
	}

	if len(result.RepliedSenders) > 0 {
		r.Logger.WithFields(logrus.Fields{
			"mailbox": mailbox.Email,
			"count":   len(result.RepliedSenders),
		}).Info("found new replies")
	}

	for _, sender := range result.RepliedSenders {
		r.markSender(sender, models.EnrollmentStatusReplied, models.EventReplyReceived, mailbox.Email)
	}
	for _, sender := range result.BouncedSenders {
		r.markSender(sender, models.EnrollmentStatusBounced, models.EventBounced, mailbox.Email)
	}
}

// markSender force-stops every live enrollment of every lead with this
// address, updates the lead's own status and logs one event per lead.
func (r *Reconciler) markSender(address, status, eventType, mailboxEmail string) {
	var leads []models.Lead
	if err := r.DB.Where("email = ?", utils.NormalizeEmail(address)).Find(&leads).Error; err != nil {
		r.Logger.WithError(err).WithField("address", address).Error("failed to look up leads")
		return
	}

	for i := range leads {
		lead := &leads[i]
		res := r.DB.Model(&models.CampaignLead{}).
			Where("lead_id = ? AND status IN ?", lead.ID, models.ActiveEnrollmentStatuses).
			Updates(map[string]interface{}{
				"status":         status,
				"next_action_at": nil,
			})
		if res.Error != nil {
			r.Logger.WithError(res.Error).WithField("lead_id", lead.ID).
				Error("failed to stop enrollments")
			continue
		}
		if res.RowsAffected == 0 {
			// Already terminal everywhere: reprocessing the same sender is a no-op.
			continue
		}

		if err := r.DB.Model(&models.Lead{}).
			Where("id = ?", lead.ID).
			Update("status", status).Error; err != nil {
			r.Logger.WithError(err).WithField("lead_id", lead.ID).Error("failed to update lead status")
		}

		if err := recordEvent(r.DB, eventType, nil, &lead.ID, "", map[string]string{
			"mailbox": mailboxEmail,
		}); err != nil {
			r.Logger.WithError(err).Error("failed to record event")
		}

		r.Logger.WithFields(logrus.Fields{
			"lead_id": lead.ID,
			"status":  status,
		}).Info("enrollments stopped")
	}
}

// ForceTransition applies a webhook-delivered reply/bounce signal to one
// specific enrollment. Returns whether any row changed.
func (r *Reconciler) ForceTransition(campaignID, leadID uint, status string) (bool, error) {
	if !models.IsTerminalEnrollmentStatus(status) {
		return false, fmt.Errorf("status %q is not a terminal enrollment status", status)
	}

	res := r.DB.Model(&models.CampaignLead{}).
		Where("campaign_id = ? AND lead_id = ? AND status IN ?",
			campaignID, leadID, models.ActiveEnrollmentStatuses).
		Updates(map[string]interface{}{
			"status":         status,
			"next_action_at": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	if err := r.DB.Model(&models.Lead{}).
		Where("id = ?", leadID).
		Update("status", status).Error; err != nil {
		return true, err
	}

	eventType := models.EventReplyReceived
	if status == models.EnrollmentStatusBounced {
		eventType = models.EventBounced
	}
	return true, recordEvent(r.DB, eventType, &campaignID, &leadID, "", map[string]string{
		"source": "webhook",
	})
}

// Unsubscribe stops every live enrollment of a lead, from any non-terminal
// state, and marks the lead itself unsubscribed.
func (r *Reconciler) Unsubscribe(leadID uint) error {
	res := r.DB.Model(&models.CampaignLead{}).
		Where("lead_id = ? AND status IN ?", leadID, models.ActiveEnrollmentStatuses).
		Updates(map[string]interface{}{
			"status":         models.EnrollmentStatusUnsubscribed,
			"next_action_at": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Already terminal everywhere: a replayed unsubscribe click is a no-op.
		return nil
	}

	if err := r.DB.Model(&models.Lead{}).
		Where("id = ?", leadID).
		Update("status", models.LeadStatusUnsubscribed).Error; err != nil {
		return err
	}

	return recordEvent(r.DB, models.EventUnsubscribed, nil, &leadID, "", nil)
}
