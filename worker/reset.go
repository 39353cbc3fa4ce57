package worker

import (
	"time"

	"coldreach/models"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// StartDailyReset schedules the midnight job that zeroes every mailbox's
// sent_count and stamps last_reset. The quota guard itself never resets
// counters; this is the external reset process it depends on.
func StartDailyReset(db *gorm.DB, logger *logrus.Logger) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc("0 0 * * *", func() {
		ResetMailboxCounters(db, logger)
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	return c, nil
}

// ResetMailboxCounters zeroes sent_count for every mailbox that sent anything
// today and stamps last_reset.
func ResetMailboxCounters(db *gorm.DB, logger *logrus.Logger) {
	res := db.Model(&models.Mailbox{}).
		Where("sent_count > 0").
		Updates(map[string]interface{}{
			"sent_count": 0,
			"last_reset": time.Now(),
		})
	if res.Error != nil {
		logger.WithError(res.Error).Error("failed to reset mailbox daily counters")
		return
	}
	logger.WithField("mailboxes", res.RowsAffected).Info("mailbox daily counters reset")
}
