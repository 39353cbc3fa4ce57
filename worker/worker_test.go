package worker

import (
	"fmt"
	"io"
	"testing"
	"time"

	"coldreach/models"
	"coldreach/utils"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	return db
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeMailer records calls instead of touching a wire.
type fakeMailer struct {
	calls    int
	lastTo   string
	lastSubj string
	lastBody string
	err      error
}

func (f *fakeMailer) Send(mailbox *models.Mailbox, to, subject, htmlBody string) (string, error) {
	f.calls++
	f.lastTo = to
	f.lastSubj = subject
	f.lastBody = htmlBody
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("<msg-%d@test>", f.calls), nil
}

// fakePoller returns a canned inbox result.
type fakePoller struct {
	result utils.PollResult
	err    error
}

func (f *fakePoller) Poll(mailbox *models.Mailbox) (utils.PollResult, error) {
	return f.result, f.err
}

func createTestMailbox(t *testing.T, db *gorm.DB, dailyLimit int) *models.Mailbox {
	t.Helper()
	mailbox := &models.Mailbox{
		UserID:       1,
		Email:        fmt.Sprintf("sender-%s@test.io", t.Name()),
		SMTPHost:     "smtp.test.io",
		SMTPPort:     587,
		SMTPUsername: "sender",
		SMTPPassword: "encrypted",
		IMAPHost:     "imap.test.io",
		Status:       models.MailboxStatusActive,
		DailyLimit:   dailyLimit,
	}
	require.NoError(t, db.Create(mailbox).Error)
	return mailbox
}

func createTestCampaign(t *testing.T, db *gorm.DB, mailboxID *uint, steps ...models.SequenceStep) *models.Campaign {
	t.Helper()
	campaign := &models.Campaign{
		UserID:    1,
		Name:      "Outbound Q3",
		Status:    models.CampaignStatusActive,
		MailboxID: mailboxID,
	}
	require.NoError(t, db.Create(campaign).Error)
	for i := range steps {
		steps[i].CampaignID = campaign.ID
		steps[i].Order = i
		require.NoError(t, db.Create(&steps[i]).Error)
	}
	return campaign
}

func createTestLead(t *testing.T, db *gorm.DB, email string) *models.Lead {
	t.Helper()
	lead := &models.Lead{
		UserID:    1,
		Email:     email,
		FirstName: "Ana",
		Company:   "Acme",
		Status:    models.LeadStatusNew,
	}
	require.NoError(t, db.Create(lead).Error)
	return lead
}

func createTestEnrollment(t *testing.T, db *gorm.DB, campaignID, leadID uint, status string, currentStep int) *models.CampaignLead {
	t.Helper()
	now := time.Now().Add(-time.Minute)
	enrollment := &models.CampaignLead{
		CampaignID:   campaignID,
		LeadID:       leadID,
		Status:       status,
		CurrentStep:  currentStep,
		NextActionAt: &now,
	}
	require.NoError(t, db.Create(enrollment).Error)
	return enrollment
}

func reloadEnrollment(t *testing.T, db *gorm.DB, id uint) *models.CampaignLead {
	t.Helper()
	var enrollment models.CampaignLead
	require.NoError(t, db.First(&enrollment, id).Error)
	return &enrollment
}
