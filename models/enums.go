package models

// Enrollment statuses. NEW and CONTACTED are live; everything else is terminal
// and never leaves the scheduler's way again.
const (
	EnrollmentStatusNew          = "NEW"
	EnrollmentStatusContacted    = "CONTACTED"
	EnrollmentStatusReplied      = "REPLIED"
	EnrollmentStatusBounced      = "BOUNCED"
	EnrollmentStatusUnsubscribed = "UNSUBSCRIBED"
	EnrollmentStatusIgnored      = "IGNORED"
	EnrollmentStatusFailed       = "FAILED"
)

// ActiveEnrollmentStatuses is the guard set for every conditional enrollment
// update: a row may only transition while still in one of these.
var ActiveEnrollmentStatuses = []string{
	EnrollmentStatusNew,
	EnrollmentStatusContacted,
}

// IsTerminalEnrollmentStatus reports whether a status ends the enrollment.
func IsTerminalEnrollmentStatus(status string) bool {
	switch status {
	case EnrollmentStatusReplied,
		EnrollmentStatusBounced,
		EnrollmentStatusUnsubscribed,
		EnrollmentStatusIgnored,
		EnrollmentStatusFailed:
		return true
	}
	return false
}

// Campaign lifecycle statuses.
const (
	CampaignStatusDraft     = "DRAFT"
	CampaignStatusActive    = "ACTIVE"
	CampaignStatusPaused    = "PAUSED"
	CampaignStatusCompleted = "COMPLETED"
	CampaignStatusArchived  = "ARCHIVED"
)

// Lead statuses mirror the strongest signal seen across the lead's enrollments.
const (
	LeadStatusNew          = "NEW"
	LeadStatusContacted    = "CONTACTED"
	LeadStatusReplied      = "REPLIED"
	LeadStatusBounced      = "BOUNCED"
	LeadStatusUnsubscribed = "UNSUBSCRIBED"
)

// Sequence step types.
const (
	StepTypeEmail      = "EMAIL"
	StepTypeManualTask = "MANUAL_TASK"
)

// Mailbox statuses.
const (
	MailboxStatusActive   = "ACTIVE"
	MailboxStatusError    = "ERROR"
	MailboxStatusDisabled = "DISABLED"
)

// Event types recorded on the activity timeline.
const (
	EventEmailSent     = "EMAIL_SENT"
	EventEmailFailed   = "EMAIL_FAILED"
	EventEmailOpened   = "EMAIL_OPENED"
	EventLinkClicked   = "LINK_CLICKED"
	EventReplyReceived = "REPLY_RECEIVED"
	EventBounced       = "BOUNCED"
	EventUnsubscribed  = "UNSUBSCRIBED"
)
