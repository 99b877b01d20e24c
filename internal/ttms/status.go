package ttms

import "time"

// Submission statuses of a task assignment.
const (
	StatusPending         = "PENDING"
	StatusInProgress      = "IN_PROGRESS"
	StatusOnTimeCompleted = "ON_TIME_COMPLETED"
	StatusLateCompleted   = "LATE_COMPLETED"
	StatusOverdue         = "OVERDUE"
)

const (
	PriorityHigh   = "HIGH"
	PriorityMedium = "MEDIUM"
	PriorityLow    = "LOW"
)

const (
	PrefEmail = "EMAIL"
	PrefInApp = "IN_APP"
	PrefNone  = "NONE"
)

const (
	AlertDeadlineWarning        = "DEADLINE_WARNING"
	AlertDeadlineToday          = "DEADLINE_TODAY"
	AlertOverdueNotification    = "OVERDUE_NOTIFICATION"
	AlertSubmissionConfirmation = "SUBMISSION_CONFIRMATION"
)

var statusDisplay = map[string]string{
	StatusPending:         "Pending",
	StatusInProgress:      "In Progress",
	StatusOnTimeCompleted: "On Time Completed",
	StatusLateCompleted:   "Late Completed",
	StatusOverdue:         "Overdue",
}

// StatusDisplay returns the human readable name of a status code.
func StatusDisplay(status string) string {
	if d, ok := statusDisplay[status]; ok {
		return d
	}

	return status
}

func validStatus(status string) bool {
	_, ok := statusDisplay[status]
	return ok
}

// IsTerminal reports whether a status is one the engine never leaves on
// its own: the two completed states.
func IsTerminal(status string) bool {
	return status == StatusOnTimeCompleted || status == StatusLateCompleted
}

// DeriveStatus applies the assignment status rules on a save. The rules
// are ordered and short-circuit:
//
//  1. a set completion date moves a non-terminal status to
//     ON_TIME_COMPLETED or LATE_COMPLETED depending on the due date;
//     once terminal, later saves never re-derive (one-way ratchet),
//  2. a PENDING / IN_PROGRESS assignment whose due date is strictly in
//     the past becomes OVERDUE,
//  3. anything else is left unchanged.
//
// Pure given (current, due, completion, now); callers validate inputs.
func DeriveStatus(current string, due time.Time, completion *time.Time, now time.Time) string {
	if completion != nil && !IsTerminal(current) {
		if completion.After(due) {
			return StatusLateCompleted
		}

		return StatusOnTimeCompleted
	}

	if (current == StatusPending || current == StatusInProgress) && due.Before(now) {
		return StatusOverdue
	}

	return current
}

// RecomputeStatus re-derives the status from scratch, ignoring the
// one-way ratchet. Used by the explicit recompute operation so that a
// corrected or cleared completion date takes effect; ordinary saves go
// through DeriveStatus.
func RecomputeStatus(current string, due time.Time, completion *time.Time, now time.Time) string {
	if completion != nil {
		if completion.After(due) {
			return StatusLateCompleted
		}

		return StatusOnTimeCompleted
	}

	base := current
	if IsTerminal(base) {
		// completion was cleared, drop back to a live state
		base = StatusPending
	}
	if (base == StatusPending || base == StatusInProgress) && due.Before(now) {
		return StatusOverdue
	}

	return base
}
