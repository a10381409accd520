package reschedule

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/salon-scheduling/internal/appointment"
)

// State is the position of an attempt in its lifecycle:
// proposed -> validating -> (applying | rejected) -> (committed | rolled_back).
// An applying attempt may also be cancelled before its persist is issued.
type State string

const (
	StateProposed   State = "proposed"
	StateValidating State = "validating"
	StateApplying   State = "applying"
	StateRejected   State = "rejected"
	StateCommitted  State = "committed"
	StateRolledBack State = "rolled_back"
	StateCancelled  State = "cancelled"
)

func (s State) Terminal() bool {
	switch s {
	case StateRejected, StateCommitted, StateRolledBack, StateCancelled:
		return true
	}
	return false
}

type Op string

const (
	OpReschedule   Op = "reschedule"
	OpStatusChange Op = "status_change"
)

// Outcome is emitted once per attempt when it reaches a terminal state.
// Before is the last committed value seen at validation; After is what the
// board holds once the attempt is finished.
type Outcome struct {
	AttemptID     uuid.UUID
	AppointmentID uuid.UUID
	Op            Op
	State         State
	Kind          Kind
	Description   string
	ConflictWith  uuid.UUID
	NoOp          bool
	Viewer        appointment.Viewer
	Before        appointment.Appointment
	After         appointment.Appointment
	At            time.Time
	Err           error
}
