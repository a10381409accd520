package rules

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrForbidden         = errors.New("viewer may not modify this appointment")
	ErrInvalidInterval   = errors.New("start must be before end")
	ErrConflict          = errors.New("interval overlaps another appointment")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ConflictError names the appointment a candidate interval collides with.
// It matches ErrConflict under errors.Is.
type ConflictError struct {
	WithAppointmentID uuid.UUID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: conflicts with %s", ErrConflict, e.WithAppointmentID)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
