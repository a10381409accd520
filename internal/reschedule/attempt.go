package reschedule

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/salon-scheduling/internal/appointment"
)

// Attempt is one in-flight move or status change. It is created by the
// Begin* methods and finished by exactly one of Persist or Cancel. Until then
// the appointment is busy and pinned on the board; an attempt that is never
// finished is only reclaimed once the orchestrator's ClaimTTL has passed.
type Attempt struct {
	o             *Orchestrator
	id            uuid.UUID
	appointmentID uuid.UUID
	op            Op
	viewer        appointment.Viewer
	patch         appointment.Patch
	before        appointment.Appointment
	proposed      appointment.Appointment

	release   func()
	claimedAt time.Time
	pinned    bool
	noop      bool

	mu      sync.Mutex
	state   State
	issued  bool
	outcome Outcome
}

func (a *Attempt) ID() uuid.UUID            { return a.id }
func (a *Attempt) AppointmentID() uuid.UUID { return a.appointmentID }

// Before is the last committed value the attempt was validated against.
func (a *Attempt) Before() appointment.Appointment { return a.before.Clone() }

// Proposed is the value applied optimistically to the board.
func (a *Attempt) Proposed() appointment.Appointment { return a.proposed.Clone() }

func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Outcome is the terminal outcome, or the zero value while still applying.
func (a *Attempt) Outcome() Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outcome
}

func (a *Attempt) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// Persist issues the store write and blocks until it commits or rolls back.
// After Persist has been called the attempt can no longer be cancelled.
func (a *Attempt) Persist(ctx context.Context) (Outcome, error) {
	a.mu.Lock()
	if a.noop && a.state == StateCommitted {
		out := a.outcome
		a.mu.Unlock()
		return out, nil
	}
	if a.state != StateApplying {
		out := a.outcome
		a.mu.Unlock()
		return out, ErrAttemptClosed
	}
	if a.issued {
		a.mu.Unlock()
		return Outcome{}, ErrPersistIssued
	}
	a.issued = true
	a.mu.Unlock()

	return a.o.persist(ctx, a)
}

// Cancel discards the optimistic change and restores the board. It fails
// with ErrPersistIssued once Persist has started.
func (a *Attempt) Cancel(ctx context.Context) (Outcome, error) {
	a.mu.Lock()
	if a.state != StateApplying {
		out := a.outcome
		a.mu.Unlock()
		return out, ErrAttemptClosed
	}
	if a.issued {
		a.mu.Unlock()
		return Outcome{}, ErrPersistIssued
	}
	a.issued = true
	a.mu.Unlock()

	return a.o.cancel(ctx, a), nil
}
