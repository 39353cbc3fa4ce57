package worker

import (
	"errors"
	"testing"

	"coldreach/models"
	"coldreach/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcilerReply(t *testing.T) {
	db := setupTestDB(t)
	mailbox := createTestMailbox(t, db, 50)
	campaign := createTestCampaign(t, db, &mailbox.ID,
		models.SequenceStep{Type: models.StepTypeEmail, Subject: "Hi", Body: "<p>Hi</p>"},
	)
	lead := createTestLead(t, db, "ana@acme.test")
	enrollment := createTestEnrollment(t, db, campaign.ID, lead.ID, models.EnrollmentStatusContacted, 1)

	poller := &fakePoller{result: utils.PollResult{RepliedSenders: []string{"Ana@Acme.TEST"}}}
	reconciler := NewReconciler(db, poller, testLogger())

	reconciler.Run()

	got := reloadEnrollment(t, db, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusReplied, got.Status)
	assert.Nil(t, got.NextActionAt)

	var gotLead models.Lead
	require.NoError(t, db.First(&gotLead, lead.ID).Error)
	assert.Equal(t, models.LeadStatusReplied, gotLead.Status)

	var eventCount int64
	require.NoError(t, db.Model(&models.Event{}).
		Where("type = ?", models.EventReplyReceived).Count(&eventCount).Error)
	assert.Equal(t, int64(1), eventCount)

	// second pass over the same sender is a no-op
	reconciler.Run()
	require.NoError(t, db.Model(&models.Event{}).
		Where("type = ?", models.EventReplyReceived).Count(&eventCount).Error)
	assert.Equal(t, int64(1), eventCount)
}

func TestReconcilerBounce(t *testing.T) {
	db := setupTestDB(t)
	mailbox := createTestMailbox(t, db, 50)
	campaign := createTestCampaign(t, db, &mailbox.ID,
		models.SequenceStep{Type: models.StepTypeEmail, Subject: "Hi", Body: "<p>Hi</p>"},
	)
	lead := createTestLead(t, db, "gone@acme.test")
	enrollment := createTestEnrollment(t, db, campaign.ID, lead.ID, models.EnrollmentStatusContacted, 1)

	poller := &fakePoller{result: utils.PollResult{BouncedSenders: []string{"gone@acme.test"}}}
	reconciler := NewReconciler(db, poller, testLogger())

	reconciler.Run()

	got := reloadEnrollment(t, db, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusBounced, got.Status)

	var gotLead models.Lead
	require.NoError(t, db.First(&gotLead, lead.ID).Error)
	assert.Equal(t, models.LeadStatusBounced, gotLead.Status)
}

func TestReconcilerStopsAllLiveEnrollments(t *testing.T) {
	db := setupTestDB(t)
	mailbox := createTestMailbox(t, db, 50)
	first := createTestCampaign(t, db, &mailbox.ID,
		models.SequenceStep{Type: models.StepTypeEmail, Subject: "Hi", Body: "<p>Hi</p>"},
	)
	second := createTestCampaign(t, db, &mailbox.ID,
		models.SequenceStep{Type: models.StepTypeEmail, Subject: "Hi", Body: "<p>Hi</p>"},
	)
	lead := createTestLead(t, db, "busy@acme.test")
	liveA := createTestEnrollment(t, db, first.ID, lead.ID, models.EnrollmentStatusContacted, 1)
	liveB := createTestEnrollment(t, db, second.ID, lead.ID, models.EnrollmentStatusNew, 0)

	poller := &fakePoller{result: utils.PollResult{RepliedSenders: []string{"busy@acme.test"}}}
	reconciler := NewReconciler(db, poller, testLogger())
	reconciler.Run()

	assert.Equal(t, models.EnrollmentStatusReplied, reloadEnrollment(t, db, liveA.ID).Status)
	assert.Equal(t, models.EnrollmentStatusReplied, reloadEnrollment(t, db, liveB.ID).Status)
}

func TestReconcilerPollFailure(t *testing.T) {
	db := setupTestDB(t)
	mailbox := createTestMailbox(t, db, 50)
	campaign := createTestCampaign(t, db, &mailbox.ID,
		models.SequenceStep{Type: models.StepTypeEmail, Subject: "Hi", Body: "<p>Hi</p>"},
	)
	lead := createTestLead(t, db, "fine@acme.test")
	enrollment := createTestEnrollment(t, db, campaign.ID, lead.ID, models.EnrollmentStatusContacted, 1)

	poller := &fakePoller{err: errors.New("imap: connection refused")}
	reconciler := NewReconciler(db, poller, testLogger())

	// a failing mailbox means no new replies this cycle, nothing else
	reconciler.Run()

	got := reloadEnrollment(t, db, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusContacted, got.Status)
}

func TestForceTransition(t *testing.T) {
	db := setupTestDB(t)
	mailbox := createTestMailbox(t, db, 50)
	campaign := createTestCampaign(t, db, &mailbox.ID,
		models.SequenceStep{Type: models.StepTypeEmail, Subject: "Hi", Body: "<p>Hi</p>"},
	)
	lead := createTestLead(t, db, "hook@acme.test")
	enrollment := createTestEnrollment(t, db, campaign.ID, lead.ID, models.EnrollmentStatusContacted, 1)

	reconciler := NewReconciler(db, &fakePoller{}, testLogger())

	t.Run("rejects non-terminal status", func(t *testing.T) {
		_, err := reconciler.ForceTransition(campaign.ID, lead.ID, models.EnrollmentStatusContacted)
		assert.Error(t, err)
	})

	t.Run("applies reply", func(t *testing.T) {
		updated, err := reconciler.ForceTransition(campaign.ID, lead.ID, models.EnrollmentStatusReplied)
		require.NoError(t, err)
		assert.True(t, updated)
		assert.Equal(t, models.EnrollmentStatusReplied, reloadEnrollment(t, db, enrollment.ID).Status)
	})

	t.Run("second delivery is a no-op", func(t *testing.T) {
		updated, err := reconciler.ForceTransition(campaign.ID, lead.ID, models.EnrollmentStatusReplied)
		require.NoError(t, err)
		assert.False(t, updated)
	})
}

func TestUnsubscribe(t *testing.T) {
	db := setupTestDB(t)
	mailbox := createTestMailbox(t, db, 50)
	campaign := createTestCampaign(t, db, &mailbox.ID,
		models.SequenceStep{Type: models.StepTypeEmail, Subject: "Hi", Body: "<p>Hi</p>"},
	)
	lead := createTestLead(t, db, "bye@acme.test")
	enrollment := createTestEnrollment(t, db, campaign.ID, lead.ID, models.EnrollmentStatusContacted, 1)

	reconciler := NewReconciler(db, &fakePoller{}, testLogger())
	require.NoError(t, reconciler.Unsubscribe(lead.ID))

	got := reloadEnrollment(t, db, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusUnsubscribed, got.Status)
	assert.Nil(t, got.NextActionAt)

	var gotLead models.Lead
	require.NoError(t, db.First(&gotLead, lead.ID).Error)
	assert.Equal(t, models.LeadStatusUnsubscribed, gotLead.Status)

	var event models.Event
	require.NoError(t, db.Where("type = ?", models.EventUnsubscribed).First(&event).Error)

	// a replayed click finds nothing live and logs nothing new
	require.NoError(t, reconciler.Unsubscribe(lead.ID))

	var eventCount int64
	require.NoError(t, db.Model(&models.Event{}).
		Where("type = ?", models.EventUnsubscribed).Count(&eventCount).Error)
	assert.Equal(t, int64(1), eventCount)
}
