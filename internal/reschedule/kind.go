package reschedule

import (
	"errors"
	"fmt"

	"github.com/hackgods/salon-scheduling/internal/appointment"
	"github.com/hackgods/salon-scheduling/internal/rules"
)

var (
	ErrBusy = errors.New("another change to this appointment is in progress")
	// ErrPersistFailed wraps store failures that are not a version conflict,
	// including timeouts.
	ErrPersistFailed = errors.New("saving the change failed")
	ErrAttemptClosed = errors.New("attempt is no longer applying")
	ErrPersistIssued = errors.New("persist already issued, wait for the outcome")
)

// Kind classifies why an attempt did not commit.
type Kind string

const (
	KindNone              Kind = ""
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindInvalidInterval   Kind = "invalid_interval"
	KindConflict          Kind = "conflict"
	KindVersionConflict   Kind = "version_conflict"
	KindInvalidTransition Kind = "invalid_transition"
	KindBusy              Kind = "busy"
	KindPersistFailed     Kind = "persist_failed"
)

var descriptions = map[Kind]string{
	KindNone:              "Saved.",
	KindNotFound:          "This appointment no longer exists.",
	KindForbidden:         "You can't change this appointment.",
	KindInvalidInterval:   "The appointment must end after it starts.",
	KindConflict:          "That time overlaps another appointment for this stylist.",
	KindVersionConflict:   "Someone else changed this appointment. Refresh and try again.",
	KindInvalidTransition: "This change isn't allowed for the appointment's current status.",
	KindBusy:              "This appointment is already being updated.",
	KindPersistFailed:     "We couldn't save the change. Please try again.",
}

// Description is a short non-technical text suitable for a toast.
func (k Kind) Description() string {
	if d, ok := descriptions[k]; ok {
		return d
	}
	return descriptions[KindPersistFailed]
}

// KindOf maps an error returned by the orchestrator onto its Kind.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		return KindNotFound
	case errors.Is(err, rules.ErrForbidden):
		return KindForbidden
	case errors.Is(err, rules.ErrInvalidInterval):
		return KindInvalidInterval
	case errors.Is(err, rules.ErrConflict), errors.Is(err, appointment.ErrSlotTaken):
		return KindConflict
	case errors.Is(err, appointment.ErrVersionConflict):
		return KindVersionConflict
	case errors.Is(err, rules.ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrBusy):
		return KindBusy
	default:
		return KindPersistFailed
	}
}

// Timeouts on the persist call are reported like any other store failure.
func persistError(err error) error {
	if errors.Is(err, appointment.ErrVersionConflict) ||
		errors.Is(err, appointment.ErrAppointmentNotFound) ||
		errors.Is(err, appointment.ErrSlotTaken) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPersistFailed, err)
}
