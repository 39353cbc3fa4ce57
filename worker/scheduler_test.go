package worker

import (
	"testing"
	"time"

	"coldreach/models"
	"coldreach/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T, mailer utils.Mailer) (*Scheduler, *fakePoller) {
	t.Helper()
	db := setupTestDB(t)
	poller := &fakePoller{}
	return NewScheduler(db, mailer, poller, testLogger(), testAppURL, time.Minute, 50), poller
}

func TestDueEnrollments(t *testing.T) {
	mailer := &fakeMailer{}
	scheduler, _ := newTestScheduler(t, mailer)
	db := scheduler.DB

	mailbox := createTestMailbox(t, db, 50)
	active := createTestCampaign(t, db, &mailbox.ID,
		models.SequenceStep{Type: models.StepTypeEmail, Subject: "Hi", Body: "<p>Hi</p>"},
	)
	paused := createTestCampaign(t, db, &mailbox.ID,
		models.SequenceStep{Type: models.StepTypeEmail, Subject: "Hi", Body: "<p>Hi</p>"},
	)
	require.NoError(t, db.Model(paused).Update("status", models.CampaignStatusPaused).Error)

	dueLead := createTestLead(t, db, "due@acme.test")
	futureLead := createTestLead(t, db, "later@acme.test")
	repliedLead := createTestLead(t, db, "done@acme.test")
	pausedLead := createTestLead(t, db, "paused@acme.test")

	due := createTestEnrollment(t, db, active.ID, dueLead.ID, models.EnrollmentStatusNew, 0)

	future := createTestEnrollment(t, db, active.ID, futureLead.ID, models.EnrollmentStatusNew, 0)
	later := time.Now().Add(time.Hour)
	require.NoError(t, db.Model(future).Update("next_action_at", later).Error)

	replied := createTestEnrollment(t, db, active.ID, repliedLead.ID, models.EnrollmentStatusReplied, 0)
	_ = replied

	inPaused := createTestEnrollment(t, db, paused.ID, pausedLead.ID, models.EnrollmentStatusNew, 0)
	_ = inPaused

	completed := &models.CampaignLead{
		CampaignID: active.ID, LeadID: dueLead.ID + 1000,
		Status: models.EnrollmentStatusContacted, CurrentStep: 1, NextActionAt: nil,
	}
	require.NoError(t, db.Create(completed).Error)

	got, err := scheduler.DueEnrollments()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, due.ID, got[0].ID)
}

func TestDueEnrollmentsBatchLimit(t *testing.T) {
	mailer := &fakeMailer{}
	scheduler, _ := newTestScheduler(t, mailer)
	scheduler.BatchSize = 3
	db := scheduler.DB

	mailbox := createTestMailbox(t, db, 50)
	campaign := createTestCampaign(t, db, &mailbox.ID,
		models.SequenceStep{Type: models.StepTypeEmail, Subject: "Hi", Body: "<p>Hi</p>"},
	)
	for i := 0; i < 5; i++ {
		lead := createTestLead(t, db, string(rune('a'+i))+"@acme.test")
		createTestEnrollment(t, db, campaign.ID, lead.ID, models.EnrollmentStatusNew, 0)
	}

	got, err := scheduler.DueEnrollments()
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestRunCycle(t *testing.T) {
	mailer := &fakeMailer{}
	scheduler, poller := newTestScheduler(t, mailer)
	db := scheduler.DB

	mailbox := createTestMailbox(t, db, 50)
	campaign := createTestCampaign(t, db, &mailbox.ID,
		models.SequenceStep{Type: models.StepTypeEmail, Subject: "Hi {{firstName}}", Body: "<p>Hi</p>"},
	)
	sendLead := createTestLead(t, db, "send@acme.test")
	replyLead := createTestLead(t, db, "reply@acme.test")

	toSend := createTestEnrollment(t, db, campaign.ID, sendLead.ID, models.EnrollmentStatusNew, 0)
	contacted := createTestEnrollment(t, db, campaign.ID, replyLead.ID, models.EnrollmentStatusContacted, 1)
	require.NoError(t, db.Model(contacted).Update("next_action_at", nil).Error)

	poller.result = utils.PollResult{RepliedSenders: []string{"reply@acme.test"}}

	require.NoError(t, scheduler.RunCycle())

	// dispatch side
	assert.Equal(t, 1, mailer.calls)
	assert.Equal(t, models.EnrollmentStatusContacted, reloadEnrollment(t, db, toSend.ID).Status)

	// reconcile side
	assert.Equal(t, models.EnrollmentStatusReplied, reloadEnrollment(t, db, contacted.ID).Status)
}
