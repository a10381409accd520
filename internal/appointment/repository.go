package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrVersionConflict     = errors.New("appointment was modified concurrently")
	// ErrSlotTaken is returned when the store itself rejects a write because
	// the stylist already has an overlapping booking.
	ErrSlotTaken = errors.New("stylist already booked for an overlapping interval")
)

// Repository is the data-access port the scheduling core consumes.
type Repository interface {
	ListAppointments(ctx context.Context, filter Filter) ([]Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// UpdateAppointment applies patch only if the stored version still equals
	// expectedVersion, returning ErrVersionConflict otherwise.
	UpdateAppointment(ctx context.Context, id uuid.UUID, patch Patch, expectedVersion int64) (*Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
