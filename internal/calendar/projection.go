// Package calendar turns appointments into calendar-ready events for a viewer
// and holds the in-memory collection those events are projected from.
package calendar

import (
	"bytes"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/salon-scheduling/internal/appointment"
	"github.com/hackgods/salon-scheduling/internal/rules"
)

// Event is what the calendar widget renders. ReadOnly disables drag, resize
// and click-edit for the viewer the event was projected for.
type Event struct {
	ID        uuid.UUID          `json:"id"`
	Start     time.Time          `json:"start"`
	End       time.Time          `json:"end"`
	Title     string             `json:"title"`
	StylistID uuid.UUID          `json:"stylist_id"`
	ClientID  uuid.UUID          `json:"client_id"`
	Status    appointment.Status `json:"status"`
	Color     string             `json:"color"`
	ReadOnly  bool               `json:"read_only"`
}

var statusColors = map[appointment.Status]string{
	appointment.StatusScheduled: "#3b82f6",
	appointment.StatusConfirmed: "#10b981",
	appointment.StatusCompleted: "#6b7280",
	appointment.StatusCancelled: "#ef4444",
}

type Options struct {
	// StylistID restricts the projection to one stylist when set.
	StylistID uuid.UUID
	// HideCancelled drops cancelled appointments for every role.
	HideCancelled bool
	// Title overrides the default event title.
	Title func(appointment.Appointment) string
}

func defaultTitle(a appointment.Appointment) string {
	switch a.Status {
	case appointment.StatusCancelled:
		return "Cancelled appointment"
	case appointment.StatusCompleted:
		return "Completed appointment"
	}
	return "Appointment"
}

// Project filters appointments to those v may see, maps them to events and
// sorts them by start, breaking ties by id. The input is not modified and the
// same input always yields the same output.
func Project(appts []appointment.Appointment, v appointment.Viewer, opts Options) []Event {
	title := opts.Title
	if title == nil {
		title = defaultTitle
	}

	events := make([]Event, 0, len(appts))
	for _, a := range appts {
		if !rules.CanView(v, a) {
			continue
		}
		if opts.StylistID != uuid.Nil && a.StylistID != opts.StylistID {
			continue
		}
		if opts.HideCancelled && a.Status == appointment.StatusCancelled {
			continue
		}
		events = append(events, Event{
			ID:        a.ID,
			Start:     a.Start,
			End:       a.End,
			Title:     title(a),
			StylistID: a.StylistID,
			ClientID:  a.ClientID,
			Status:    a.Status,
			Color:     statusColors[a.Status],
			ReadOnly:  !rules.CanMutate(v, a),
		})
	}

	slices.SortStableFunc(events, func(x, y Event) int {
		if c := x.Start.Compare(y.Start); c != 0 {
			return c
		}
		return bytes.Compare(x.ID[:], y.ID[:])
	})
	return events
}
