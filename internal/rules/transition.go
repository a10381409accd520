package rules

import "github.com/hackgods/salon-scheduling/internal/appointment"

var transitions = map[appointment.Status][]appointment.Status{
	appointment.StatusScheduled: {appointment.StatusConfirmed, appointment.StatusCancelled},
	appointment.StatusConfirmed: {appointment.StatusCompleted, appointment.StatusCancelled},
}

// CanTransition reports whether from may move to to. Self-transitions are
// always allowed as no-ops; COMPLETED and CANCELLED are terminal.
func CanTransition(from, to appointment.Status) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
