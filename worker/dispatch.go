package worker

import (
	"time"

	"coldreach/models"
	"coldreach/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Dispatcher executes one due enrollment: it resolves the current step, checks
// the mailbox quota, renders and sends the email, and commits the state
// transition. The step advance is a conditional (compare-and-swap) update, so
// concurrent dispatchers racing on the same row produce exactly one send.
type Dispatcher struct {
	DB     *gorm.DB
	Mailer utils.Mailer
	Logger *logrus.Logger
	AppURL string
}

func NewDispatcher(db *gorm.DB, mailer utils.Mailer, logger *logrus.Logger, appURL string) *Dispatcher {
	return &Dispatcher{DB: db, Mailer: mailer, Logger: logger, AppURL: appURL}
}

// Process runs the executor for one enrollment. All failures are isolated to
// this enrollment; the caller's batch continues regardless.
func (d *Dispatcher) Process(enrollment *models.CampaignLead) {
	log := d.Logger.WithFields(logrus.Fields{
		"enrollment_id": enrollment.ID,
		"campaign_id":   enrollment.CampaignID,
		"lead_id":       enrollment.LeadID,
	})

	var campaign models.Campaign
	if err := d.DB.Preload("Steps").First(&campaign, enrollment.CampaignID).Error; err != nil {
		log.WithError(err).Error("failed to load campaign")
		return
	}
	steps := campaign.Steps
	SortSteps(steps)

	switch action := PlanAction(enrollment, steps); action.Kind {
	case ActionNone:
		return
	case ActionComplete:
		d.complete(enrollment, log)
	case ActionSkip:
		d.skip(enrollment, steps, log)
	case ActionSend:
		d.send(enrollment, &campaign, steps, action.Step, log)
	}
}

// complete marks an enrollment whose sequence is exhausted as IGNORED.
func (d *Dispatcher) complete(enrollment *models.CampaignLead, log *logrus.Entry) {
	res := d.DB.Model(&models.CampaignLead{}).
		Where("id = ? AND status IN ?", enrollment.ID, models.ActiveEnrollmentStatuses).
		Updates(map[string]interface{}{
			"status":         models.EnrollmentStatusIgnored,
			"next_action_at": nil,
		})
	if res.Error != nil {
		log.WithError(res.Error).Error("failed to mark enrollment ignored")
		return
	}
	if res.RowsAffected > 0 {
		log.Info("sequence exhausted, enrollment ignored")
	}
}

// skip advances past a manual-task step without sending. The next step's delay
// counts from now; a trailing manual step leaves the row due so the next cycle
// can retire it.
func (d *Dispatcher) skip(enrollment *models.CampaignLead, steps []models.SequenceStep, log *logrus.Entry) {
	now := time.Now()
	nextIndex := enrollment.CurrentStep + 1
	nextAt := NextActionTime(steps, nextIndex, now)
	if nextAt == nil {
		nextAt = &now
	}

	res := d.DB.Model(&models.CampaignLead{}).
		Where("id = ? AND current_step = ? AND status IN ?",
			enrollment.ID, enrollment.CurrentStep, models.ActiveEnrollmentStatuses).
		Updates(map[string]interface{}{
			"current_step":   nextIndex,
			"next_action_at": nextAt,
		})
	if res.Error != nil {
		log.WithError(res.Error).Error("failed to skip manual step")
		return
	}
	if res.RowsAffected == 0 {
		log.Debug("enrollment already advanced elsewhere")
		return
	}
	log.WithField("step", enrollment.CurrentStep).Info("skipped manual task step")
}

func (d *Dispatcher) send(enrollment *models.CampaignLead, campaign *models.Campaign,
	steps []models.SequenceStep, step *models.SequenceStep, log *logrus.Entry) {

	if campaign.MailboxID == nil {
		// Misconfiguration, not a lead failure: leave the row untouched so it
		// is retried once a mailbox is assigned.
		log.Warn("campaign has no mailbox assigned, skipping")
		return
	}

	var mailbox models.Mailbox
	if err := d.DB.First(&mailbox, *campaign.MailboxID).Error; err != nil {
		log.WithError(err).Warn("campaign mailbox not found, skipping")
		return
	}

	now := time.Now()
	if !WithinSendingWindow(campaign, now) {
		log.Debug("outside campaign sending window")
		return
	}
	if !CanSend(&mailbox) {
		// Quota exhaustion is transient: the enrollment stays untouched and is
		// re-evaluated every cycle until the daily reset frees capacity.
		log.WithField("mailbox", mailbox.Email).Debug("mailbox daily limit reached")
		return
	}

	var lead models.Lead
	if err := d.DB.First(&lead, enrollment.LeadID).Error; err != nil {
		log.WithError(err).Error("failed to load lead")
		return
	}

	// Claim the step before sending. A zero-row update means another process
	// already handled this due window; do not send again.
	nextIndex := enrollment.CurrentStep + 1
	nextAt := NextActionTime(steps, nextIndex, now)
	res := d.DB.Model(&models.CampaignLead{}).
		Where("id = ? AND current_step = ? AND status IN ?",
			enrollment.ID, enrollment.CurrentStep, models.ActiveEnrollmentStatuses).
		Updates(map[string]interface{}{
			"status":         models.EnrollmentStatusContacted,
			"current_step":   nextIndex,
			"next_action_at": nextAt,
		})
	if res.Error != nil {
		log.WithError(res.Error).Error("failed to claim enrollment")
		return
	}
	if res.RowsAffected == 0 {
		log.Debug("enrollment already claimed by another dispatcher")
		return
	}

	vars := utils.TemplateVars(&lead)
	subject := utils.RenderTemplate(step.Subject, vars)
	token := uuid.New().String()
	body := utils.InjectTracking(utils.RenderTemplate(step.Body, vars), d.AppURL, token)

	messageID, err := d.Mailer.Send(&mailbox, lead.Email, subject, body)
	if err != nil {
		log.WithError(err).Error("transport failure")
		d.markFailed(enrollment, err, log)
		recordEvent(d.DB, models.EventEmailFailed, &campaign.ID, &lead.ID, "", map[string]string{
			"error": err.Error(),
			"step":  step.Subject,
		})
		return
	}

	// The enrollment claim is the source of truth; the mailbox counter is an
	// advisory throttle and may trail it briefly.
	if err := d.DB.Model(&models.Mailbox{}).
		Where("id = ?", mailbox.ID).
		Update("sent_count", gorm.Expr("sent_count + ?", 1)).Error; err != nil {
		log.WithError(err).Error("failed to increment mailbox counter")
	}

	if err := d.DB.Model(&models.Lead{}).
		Where("id = ? AND status = ?", lead.ID, models.LeadStatusNew).
		Update("status", models.LeadStatusContacted).Error; err != nil {
		log.WithError(err).Error("failed to update lead status")
	}

	recordEvent(d.DB, models.EventEmailSent, &campaign.ID, &lead.ID, token, map[string]string{
		"subject":    subject,
		"message_id": messageID,
		"mailbox":    mailbox.Email,
	})

	log.WithFields(logrus.Fields{
		"to":      lead.Email,
		"step":    enrollment.CurrentStep,
		"mailbox": mailbox.Email,
	}).Info("email sent")
}

// markFailed records a terminal transport failure. The scheduler never retries
// these; an upstream backoff layer may. Conditional on the row still being
// live: a reply or bounce landing during the send attempt wins over FAILED.
func (d *Dispatcher) markFailed(enrollment *models.CampaignLead, cause error, log *logrus.Entry) {
	message := cause.Error()
	res := d.DB.Model(&models.CampaignLead{}).
		Where("id = ? AND status IN ?", enrollment.ID, models.ActiveEnrollmentStatuses).
		Updates(map[string]interface{}{
			"status":         models.EnrollmentStatusFailed,
			"next_action_at": nil,
			"last_error":     &message,
		})
	if res.Error != nil {
		log.WithError(res.Error).Error("failed to mark enrollment failed")
		return
	}
	if res.RowsAffected == 0 {
		log.Debug("enrollment already terminal, keeping its status")
	}
}
