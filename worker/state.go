package worker

import (
	"sort"
	"time"

	"coldreach/models"
)

// ActionKind is what the dispatcher should do with a due enrollment.
type ActionKind int

const (
	// ActionNone: enrollment is terminal or otherwise not actionable.
	ActionNone ActionKind = iota
	// ActionComplete: the sequence is exhausted; mark the enrollment IGNORED.
	ActionComplete
	// ActionSkip: current step is a manual task; advance past it without sending.
	ActionSkip
	// ActionSend: current step is an email that should go out now.
	ActionSend
)

// Action is the state machine's decision for one enrollment.
type Action struct {
	Kind ActionKind
	Step *models.SequenceStep
}

// PlanAction computes the next action for an enrollment against its campaign's
// ordered steps. Pure decision logic: no I/O, no clock.
func PlanAction(enrollment *models.CampaignLead, steps []models.SequenceStep) Action {
	if models.IsTerminalEnrollmentStatus(enrollment.Status) {
		return Action{Kind: ActionNone}
	}
	if enrollment.CurrentStep >= len(steps) {
		return Action{Kind: ActionComplete}
	}

	step := &steps[enrollment.CurrentStep]
	if step.Type != models.StepTypeEmail {
		return Action{Kind: ActionSkip, Step: step}
	}
	return Action{Kind: ActionSend, Step: step}
}

// CanSend reports whether the mailbox still has quota for today. The daily
// reset is an external responsibility; this only compares the counters.
func CanSend(mailbox *models.Mailbox) bool {
	return mailbox.SentCount < mailbox.DailyLimit
}

// NextActionTime returns when the step at nextIndex should fire, counted from
// now, or nil when the sequence has no further step.
func NextActionTime(steps []models.SequenceStep, nextIndex int, now time.Time) *time.Time {
	if nextIndex >= len(steps) {
		return nil
	}
	at := now.Add(steps[nextIndex].Delay())
	return &at
}

// SortSteps orders a campaign's steps by their zero-based sequence order.
func SortSteps(steps []models.SequenceStep) {
	sort.Slice(steps, func(i, j int) bool {
		return steps[i].Order < steps[j].Order
	})
}

// WithinSendingWindow checks the campaign's optional time-of-day constraint in
// its own timezone. Campaigns without a window always pass.
func WithinSendingWindow(campaign *models.Campaign, now time.Time) bool {
	if campaign.StartTime == "" || campaign.EndTime == "" {
		return true
	}

	loc := time.UTC
	if campaign.Timezone != "" {
		if parsed, err := time.LoadLocation(campaign.Timezone); err == nil {
			loc = parsed
		}
	}
	local := now.In(loc)

	start, err := time.Parse("15:04", campaign.StartTime)
	if err != nil {
		return true
	}
	end, err := time.Parse("15:04", campaign.EndTime)
	if err != nil {
		return true
	}

	minutes := local.Hour()*60 + local.Minute()
	startMinutes := start.Hour()*60 + start.Minute()
	endMinutes := end.Hour()*60 + end.Minute()

	if startMinutes <= endMinutes {
		return minutes >= startMinutes && minutes < endMinutes
	}
	// Window crosses midnight
	return minutes >= startMinutes || minutes < endMinutes
}
