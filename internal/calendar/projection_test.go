package calendar

import (
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/salon-scheduling/internal/appointment"
)

var base = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func appt(stylist, client uuid.UUID, startMin, lenMin int, status appointment.Status) appointment.Appointment {
	start := base.Add(time.Duration(startMin) * time.Minute)
	return appointment.Appointment{
		ID:        uuid.New(),
		StylistID: stylist,
		ClientID:  client,
		Start:     start,
		End:       start.Add(time.Duration(lenMin) * time.Minute),
		Status:    status,
		Version:   1,
	}
}

func ids(events []Event) []uuid.UUID {
	out := make([]uuid.UUID, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func TestProject_ClientSeesOnlyOwnAppointmentsReadOnly(t *testing.T) {
	stylist := uuid.New()
	me, someoneElse := uuid.New(), uuid.New()
	mine := appt(stylist, me, 0, 60, appointment.StatusConfirmed)
	mineCancelled := appt(stylist, me, 120, 30, appointment.StatusCancelled)
	theirs := appt(stylist, someoneElse, 60, 60, appointment.StatusScheduled)

	events := Project([]appointment.Appointment{theirs, mineCancelled, mine}, appointment.ClientViewer(me), Options{})

	if got, want := ids(events), []uuid.UUID{mine.ID, mineCancelled.ID}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for _, e := range events {
		if !e.ReadOnly {
			t.Fatalf("event %s ReadOnly = false, want true for clients", e.ID)
		}
	}
	if events[1].Status != appointment.StatusCancelled || events[1].Color != statusColors[appointment.StatusCancelled] {
		t.Fatalf("cancelled event = %+v, want cancelled status and colour", events[1])
	}
}

func TestProject_StylistEditsOnlyOwn(t *testing.T) {
	me, colleague := uuid.New(), uuid.New()
	mine := appt(me, uuid.New(), 0, 60, appointment.StatusScheduled)
	theirs := appt(colleague, uuid.New(), 0, 60, appointment.StatusScheduled)

	events := Project([]appointment.Appointment{mine, theirs}, appointment.StylistViewer(me), Options{})
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	for _, e := range events {
		wantRO := e.StylistID != me
		if e.ReadOnly != wantRO {
			t.Fatalf("event %s ReadOnly = %v, want %v", e.ID, e.ReadOnly, wantRO)
		}
	}
}

func TestProject_Options(t *testing.T) {
	s1, s2 := uuid.New(), uuid.New()
	a := appt(s1, uuid.New(), 0, 60, appointment.StatusConfirmed)
	b := appt(s1, uuid.New(), 60, 60, appointment.StatusCancelled)
	c := appt(s2, uuid.New(), 0, 60, appointment.StatusConfirmed)
	all := []appointment.Appointment{a, b, c}

	got := ids(Project(all, appointment.AdminViewer(), Options{StylistID: s1}))
	if want := []uuid.UUID{a.ID, b.ID}; !reflect.DeepEqual(got, want) {
		t.Fatalf("stylist filter = %v, want %v", got, want)
	}

	got = ids(Project(all, appointment.AdminViewer(), Options{StylistID: s1, HideCancelled: true}))
	if want := []uuid.UUID{a.ID}; !reflect.DeepEqual(got, want) {
		t.Fatalf("hide cancelled = %v, want %v", got, want)
	}

	events := Project(all, appointment.AdminViewer(), Options{Title: func(x appointment.Appointment) string { return "custom" }})
	for _, e := range events {
		if e.Title != "custom" {
			t.Fatalf("title = %q, want custom", e.Title)
		}
	}
}

func TestProject_OrderIsDeterministic(t *testing.T) {
	s := uuid.New()
	a := appt(s, uuid.New(), 0, 30, appointment.StatusScheduled)
	b := appt(uuid.New(), uuid.New(), 0, 30, appointment.StatusScheduled)
	c := appt(s, uuid.New(), 30, 30, appointment.StatusScheduled)
	in := []appointment.Appointment{c, b, a}
	snapshot := slices.Clone(in)

	first := Project(in, appointment.AdminViewer(), Options{})
	second := Project([]appointment.Appointment{a, c, b}, appointment.AdminViewer(), Options{})

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("projection depends on input order:\n%v\n%v", first, second)
	}
	if !first[0].Start.Equal(first[1].Start) || !first[2].Start.After(first[1].Start) {
		t.Fatalf("events not sorted by start: %v", first)
	}
	if string(first[0].ID[:]) > string(first[1].ID[:]) {
		t.Fatalf("tie not broken by id: %s before %s", first[0].ID, first[1].ID)
	}
	if !reflect.DeepEqual(in, snapshot) {
		t.Fatalf("Project modified its input")
	}
}

func TestProject_Empty(t *testing.T) {
	events := Project(nil, appointment.AdminViewer(), Options{})
	if events == nil || len(events) != 0 {
		t.Fatalf("events = %#v, want empty non-nil slice", events)
	}
}
