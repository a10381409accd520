// Package rules holds the pure scheduling rules: interval overlap, status
// transitions and the role permission matrix. Nothing here performs I/O.
package rules

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/salon-scheduling/internal/appointment"
)

// Candidate is an interval proposed for a stylist. ExcludeID, when set, is
// the appointment being moved and is ignored during the scan.
type Candidate struct {
	StylistID uuid.UUID
	Start     time.Time
	End       time.Time
	ExcludeID uuid.UUID
}

type OverlapResult struct {
	Conflict bool
	WithID   uuid.UUID
}

func NoConflict() OverlapResult { return OverlapResult{} }

// Err returns a *ConflictError when the result is a conflict, nil otherwise.
func (r OverlapResult) Err() error {
	if !r.Conflict {
		return nil
	}
	return &ConflictError{WithAppointmentID: r.WithID}
}

// Overlaps compares two half-open intervals [aStart, aEnd) and [bStart, bEnd).
// Back-to-back intervals do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// ValidateInterval enforces start < end.
func ValidateInterval(start, end time.Time) error {
	if !start.Before(end) {
		return ErrInvalidInterval
	}
	return nil
}

// CheckOverlap scans existing in order and reports the first non-cancelled
// appointment of the same stylist whose interval intersects the candidate.
func CheckOverlap(c Candidate, existing []appointment.Appointment) OverlapResult {
	for _, a := range existing {
		if a.StylistID != c.StylistID || a.Status == appointment.StatusCancelled {
			continue
		}
		if c.ExcludeID != uuid.Nil && a.ID == c.ExcludeID {
			continue
		}
		if Overlaps(c.Start, c.End, a.Start, a.End) {
			return OverlapResult{Conflict: true, WithID: a.ID}
		}
	}
	return NoConflict()
}
