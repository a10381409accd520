// Package appointmenttest provides an in-memory appointment.Repository with
// the same version semantics as the Postgres one, plus hooks for injecting
// failures.
package appointmenttest

import (
	"bytes"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/salon-scheduling/internal/appointment"
)

type Repository struct {
	mu     sync.Mutex
	appts  map[uuid.UUID]appointment.Appointment
	events []appointment.EventLog

	// UpdateHook, when set, runs before every update. A non-nil error is
	// returned to the caller without touching the stored record.
	UpdateHook func(ctx context.Context, id uuid.UUID, patch appointment.Patch) error

	// ListErr and GetErr, when set, are returned by the matching method.
	ListErr error
	GetErr  error

	Updates int
}

func NewRepository(seed ...appointment.Appointment) *Repository {
	r := &Repository{appts: make(map[uuid.UUID]appointment.Appointment)}
	for _, a := range seed {
		if a.Version == 0 {
			a.Version = 1
		}
		r.appts[a.ID] = a.Clone()
	}
	return r
}

// Put stores a as is, bypassing version checks.
func (r *Repository) Put(a appointment.Appointment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appts[a.ID] = a.Clone()
}

func (r *Repository) Events() []appointment.EventLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func matches(f appointment.Filter, a appointment.Appointment) bool {
	if f.StylistID != uuid.Nil && a.StylistID != f.StylistID {
		return false
	}
	if f.ClientID != uuid.Nil && a.ClientID != f.ClientID {
		return false
	}
	if !f.WindowEnd.IsZero() && !a.Start.Before(f.WindowEnd) {
		return false
	}
	if !f.WindowStart.IsZero() && !a.End.After(f.WindowStart) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, a.Status) {
		return false
	}
	return true
}

func (r *Repository) ListAppointments(ctx context.Context, filter appointment.Filter) ([]appointment.Appointment, error) {
	if r.ListErr != nil {
		return nil, r.ListErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []appointment.Appointment
	for _, a := range r.appts {
		if matches(filter, a) {
			out = append(out, a.Clone())
		}
	}
	slices.SortFunc(out, func(x, y appointment.Appointment) int {
		if c := x.Start.Compare(y.Start); c != 0 {
			return c
		}
		return bytes.Compare(x.ID[:], y.ID[:])
	})
	return out, nil
}

func (r *Repository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	if r.GetErr != nil {
		return nil, r.GetErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	out := a.Clone()
	return &out, nil
}

func (r *Repository) UpdateAppointment(ctx context.Context, id uuid.UUID, patch appointment.Patch, expectedVersion int64) (*appointment.Appointment, error) {
	if r.UpdateHook != nil {
		if err := r.UpdateHook(ctx, id, patch); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.Updates++

	a, ok := r.appts[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	if a.Version != expectedVersion {
		return nil, appointment.ErrVersionConflict
	}

	next := patch.Apply(a)
	if next.Status != appointment.StatusCancelled {
		for _, other := range r.appts {
			if other.ID == id || other.StylistID != next.StylistID || other.Status == appointment.StatusCancelled {
				continue
			}
			if next.Start.Before(other.End) && other.Start.Before(next.End) {
				return nil, appointment.ErrSlotTaken
			}
		}
	}
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	r.appts[id] = next

	out := next.Clone()
	return &out, nil
}

func (r *Repository) InsertEvent(ctx context.Context, ev appointment.EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}
