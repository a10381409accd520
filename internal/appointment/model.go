package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Stylist struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Client struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Service struct {
	ID              uuid.UUID
	Name            string
	DurationMinutes int
}

// Appointment is the authoritative record. Version is bumped by every
// successful write and is the token Update compares against.
type Appointment struct {
	ID         uuid.UUID
	StylistID  uuid.UUID
	ClientID   uuid.UUID
	ServiceIDs []uuid.UUID
	Start      time.Time
	End        time.Time
	Status     Status
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Clone returns a copy that shares no slices with a.
func (a Appointment) Clone() Appointment {
	out := a
	if a.ServiceIDs != nil {
		out.ServiceIDs = append([]uuid.UUID(nil), a.ServiceIDs...)
	}
	return out
}

// Patch describes the mutable fields of an appointment. Nil fields are left as is.
type Patch struct {
	Start  *time.Time
	End    *time.Time
	Status *Status
}

func (p Patch) Empty() bool {
	return p.Start == nil && p.End == nil && p.Status == nil
}

// Apply returns a copy of a with the patch applied. Version and timestamps are untouched.
func (p Patch) Apply(a Appointment) Appointment {
	out := a.Clone()
	if p.Start != nil {
		out.Start = *p.Start
	}
	if p.End != nil {
		out.End = *p.End
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	return out
}

// Filter narrows List. Zero-valued fields do not filter.
type Filter struct {
	StylistID   uuid.UUID
	ClientID    uuid.UUID
	WindowStart time.Time
	WindowEnd   time.Time
	Statuses    []Status
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
