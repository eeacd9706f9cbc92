package scheduling

import "errors"

var (
	// ErrNoApplicableWindow means the doctor has no ACTIVE window on that weekday.
	ErrNoApplicableWindow = errors.New("no applicable availability window for date")
	// ErrDurationExceedsWindow means the window is shorter than the requested duration.
	ErrDurationExceedsWindow = errors.New("appointment duration exceeds availability window")
	// ErrPreconditionViolation is returned when a selection transition is invoked out of order.
	ErrPreconditionViolation = errors.New("selection precondition violated")
	ErrSlotUnavailable       = errors.New("time slot is not available")
	ErrNotACandidate         = errors.New("selection is not among the fetched candidates")
	// ErrBookingConflict means the interval was taken by another booking after slots were computed.
	ErrBookingConflict = errors.New("booking conflicts with an existing appointment")

	ErrTaskIndexOutOfRange = errors.New("task index out of range")
	ErrTaskNotFound        = errors.New("task not found")
	ErrInvalidTask         = errors.New("invalid task")
)
