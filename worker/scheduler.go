package worker

import (
	"context"
	"fmt"
	"time"

	"coldreach/models"
	"coldreach/utils"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Scheduler is the outer poll loop: on a fixed interval it selects due
// enrollments (bounded batch), drives the dispatcher across them, and then
// runs the reply/bounce reconciler. Cycles run to completion before the next
// tick fires; the uncollected remainder of a large batch is naturally picked
// up next cycle.
type Scheduler struct {
	DB         *gorm.DB
	Dispatcher *Dispatcher
	Reconciler *Reconciler
	Logger     *logrus.Logger

	Interval  time.Duration
	BatchSize int
}

func NewScheduler(db *gorm.DB, mailer utils.Mailer, poller utils.InboxPoller,
	logger *logrus.Logger, appURL string, interval time.Duration, batchSize int) *Scheduler {

	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Scheduler{
		DB:         db,
		Dispatcher: NewDispatcher(db, mailer, logger, appURL),
		Reconciler: NewReconciler(db, poller, logger),
		Logger:     logger,
		Interval:   interval,
		BatchSize:  batchSize,
	}
}

// Start runs the poll loop until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.Logger.WithField("interval", s.Interval.String()).Info("scheduler started")

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("scheduler shutting down")
			return
		case <-ticker.C:
			s.safeCycle()
		}
	}
}

// safeCycle isolates one cycle: a panic or error is captured and logged so the
// next tick always fires. The loop must be self-healing.
func (s *Scheduler) safeCycle() {
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("poll cycle panic: %v", rec)
			s.Logger.WithError(err).Error("recovered poll cycle")
			sentry.CaptureException(err)
		}
	}()

	if err := s.RunCycle(); err != nil {
		s.Logger.WithError(err).Error("poll cycle failed")
		sentry.CaptureException(err)
	}
}

// RunCycle performs one full poll: dispatch all due enrollments, then
// reconcile replies and bounces.
func (s *Scheduler) RunCycle() error {
	due, err := s.DueEnrollments()
	if err != nil {
		return fmt.Errorf("failed to query due enrollments: %w", err)
	}

	if len(due) > 0 {
		s.Logger.WithField("count", len(due)).Info("processing due enrollments")
	}
	for i := range due {
		s.Dispatcher.Process(&due[i])
	}

	s.Reconciler.Run()
	return nil
}

// DueEnrollments selects live enrollments whose next action has passed and
// whose campaign is active, oldest first, capped at the batch size.
func (s *Scheduler) DueEnrollments() ([]models.CampaignLead, error) {
	var due []models.CampaignLead
	err := s.DB.
		Joins("JOIN campaigns ON campaigns.id = campaign_leads.campaign_id").
		Where("campaign_leads.status IN ?", models.ActiveEnrollmentStatuses).
		Where("campaign_leads.next_action_at IS NOT NULL AND campaign_leads.next_action_at <= ?", time.Now()).
		Where("campaigns.status = ? AND campaigns.deleted_at IS NULL", models.CampaignStatusActive).
		Order("campaign_leads.next_action_at asc").
		Limit(s.BatchSize).
		Find(&due).Error
	return due, err
}
