package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/salon-scheduling/internal/appointment"
)

type fakeLoader struct {
	listFn func(ctx context.Context, filter appointment.Filter) ([]appointment.Appointment, error)
}

func (f *fakeLoader) ListAppointments(ctx context.Context, filter appointment.Filter) ([]appointment.Appointment, error) {
	if f.listFn == nil {
		panic("ListAppointments not configured")
	}
	return f.listFn(ctx, filter)
}

func TestBoardReload_UsesWindowAndReplacesEntries(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	a := appt(uuid.New(), uuid.New(), 0, 60, appointment.StatusConfirmed)
	stale := appt(uuid.New(), uuid.New(), 0, 60, appointment.StatusConfirmed)

	var gotFilter appointment.Filter
	loader := &fakeLoader{listFn: func(ctx context.Context, filter appointment.Filter) ([]appointment.Appointment, error) {
		gotFilter = filter
		return []appointment.Appointment{a}, nil
	}}
	b := NewBoard(loader, BoardConfig{Lookbehind: time.Hour, Lookahead: 24 * time.Hour, Now: func() time.Time { return now }})
	b.Put(stale)

	if err := b.Reload(context.Background()); err != nil {
		t.Fatalf("Reload error: %v", err)
	}
	if !gotFilter.WindowStart.Equal(now.Add(-time.Hour)) || !gotFilter.WindowEnd.Equal(now.Add(24*time.Hour)) {
		t.Fatalf("window = [%s, %s), want around now", gotFilter.WindowStart, gotFilter.WindowEnd)
	}
	if _, ok := b.Get(stale.ID); ok {
		t.Fatalf("stale entry survived reload")
	}
	if _, ok := b.Get(a.ID); !ok {
		t.Fatalf("loaded entry missing")
	}
	if !b.LoadedAt().Equal(now) {
		t.Fatalf("LoadedAt = %s, want %s", b.LoadedAt(), now)
	}
}

func TestBoardReload_KeepsPinnedEntries(t *testing.T) {
	committed := appt(uuid.New(), uuid.New(), 0, 60, appointment.StatusConfirmed)
	optimistic := committed
	optimistic.Start = committed.Start.Add(time.Hour)
	optimistic.End = committed.End.Add(time.Hour)

	b := NewBoard(&fakeLoader{listFn: func(ctx context.Context, filter appointment.Filter) ([]appointment.Appointment, error) {
		return []appointment.Appointment{committed}, nil
	}}, BoardConfig{})

	b.Pin(committed.ID)
	b.Put(optimistic)
	if err := b.Reload(context.Background()); err != nil {
		t.Fatalf("Reload error: %v", err)
	}
	got, _ := b.Get(committed.ID)
	if !got.Start.Equal(optimistic.Start) {
		t.Fatalf("pinned entry start = %s, want optimistic %s", got.Start, optimistic.Start)
	}

	b.Unpin(committed.ID)
	if err := b.Reload(context.Background()); err != nil {
		t.Fatalf("Reload error: %v", err)
	}
	got, _ = b.Get(committed.ID)
	if !got.Start.Equal(committed.Start) {
		t.Fatalf("unpinned entry start = %s, want committed %s", got.Start, committed.Start)
	}
}

func TestBoardReload_KeepsEntriesWrittenDuringRead(t *testing.T) {
	stale := appt(uuid.New(), uuid.New(), 0, 60, appointment.StatusConfirmed)
	stale.Version = 1
	moved := stale
	moved.Start = stale.Start.Add(4 * time.Hour)
	moved.End = stale.End.Add(4 * time.Hour)
	moved.Version = 2

	read := make(chan struct{})
	release := make(chan struct{})
	b := NewBoard(&fakeLoader{listFn: func(ctx context.Context, filter appointment.Filter) ([]appointment.Appointment, error) {
		close(read)
		<-release
		return []appointment.Appointment{stale}, nil
	}}, BoardConfig{})
	b.Put(stale)

	done := make(chan error, 1)
	go func() { done <- b.Reload(context.Background()) }()
	<-read
	b.Put(moved)
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Reload error: %v", err)
	}

	got, _ := b.Get(stale.ID)
	if got.Version != 2 || !got.Start.Equal(moved.Start) {
		t.Fatalf("board = %s v%d, want %s v2", got.Start, got.Version, moved.Start)
	}

	// The next reload reads after the write and takes the store's rows again.
	b.loader = &fakeLoader{listFn: func(ctx context.Context, filter appointment.Filter) ([]appointment.Appointment, error) {
		return []appointment.Appointment{stale}, nil
	}}
	if err := b.Reload(context.Background()); err != nil {
		t.Fatalf("Reload error: %v", err)
	}
	if got, _ := b.Get(stale.ID); got.Version != 1 {
		t.Fatalf("second reload version = %d, want 1 from loader", got.Version)
	}
}

func TestBoardReload_ErrorKeepsCurrentState(t *testing.T) {
	a := appt(uuid.New(), uuid.New(), 0, 60, appointment.StatusConfirmed)
	b := NewBoard(&fakeLoader{listFn: func(ctx context.Context, filter appointment.Filter) ([]appointment.Appointment, error) {
		return nil, errors.New("db down")
	}}, BoardConfig{})
	b.Put(a)

	if err := b.Reload(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := b.Get(a.ID); !ok {
		t.Fatalf("entry lost after failed reload")
	}
}

func TestBoardGet_ReturnsCopy(t *testing.T) {
	a := appt(uuid.New(), uuid.New(), 0, 60, appointment.StatusConfirmed)
	a.ServiceIDs = []uuid.UUID{uuid.New()}
	b := NewBoard(nil, BoardConfig{})
	b.Put(a)

	got, _ := b.Get(a.ID)
	got.ServiceIDs[0] = uuid.Nil
	again, _ := b.Get(a.ID)
	if again.ServiceIDs[0] == uuid.Nil {
		t.Fatalf("Get exposed internal slice")
	}
}
