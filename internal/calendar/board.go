package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/salon-scheduling/internal/appointment"
)

// Loader is the read side of appointment.Repository the board reloads from.
type Loader interface {
	ListAppointments(ctx context.Context, filter appointment.Filter) ([]appointment.Appointment, error)
}

type BoardConfig struct {
	// Lookbehind and Lookahead bound the reload window around now.
	// Zero on both loads everything.
	Lookbehind time.Duration
	Lookahead  time.Duration
	Now        func() time.Time
}

// Board is the shared in-memory appointment collection projections are built
// from. Only the reschedule orchestrator writes single entries; Reload
// replaces the collection wholesale but leaves pinned entries alone so an
// optimistic value survives until its attempt finishes. Entries Put while a
// reload is reading are newer than its rows and are kept as well.
type Board struct {
	loader Loader
	cfg    BoardConfig

	reloadMu sync.Mutex

	mu       sync.RWMutex
	appts    map[uuid.UUID]appointment.Appointment
	pinned   map[uuid.UUID]struct{}
	loadedAt time.Time

	// gen counts Put calls; written records the gen of each id's last Put.
	gen     uint64
	written map[uuid.UUID]uint64
}

func NewBoard(loader Loader, cfg BoardConfig) *Board {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Board{
		loader:  loader,
		cfg:     cfg,
		appts:   make(map[uuid.UUID]appointment.Appointment),
		pinned:  make(map[uuid.UUID]struct{}),
		written: make(map[uuid.UUID]uint64),
	}
}

func (b *Board) window() appointment.Filter {
	if b.cfg.Lookbehind == 0 && b.cfg.Lookahead == 0 {
		return appointment.Filter{}
	}
	now := b.cfg.Now()
	return appointment.Filter{
		WindowStart: now.Add(-b.cfg.Lookbehind),
		WindowEnd:   now.Add(b.cfg.Lookahead),
	}
}

// Reload fetches the current window from the loader and swaps it in.
func (b *Board) Reload(ctx context.Context) error {
	b.reloadMu.Lock()
	defer b.reloadMu.Unlock()

	b.mu.RLock()
	since := b.gen
	b.mu.RUnlock()

	fresh, err := b.loader.ListAppointments(ctx, b.window())
	if err != nil {
		return fmt.Errorf("reload board: %w", err)
	}

	next := make(map[uuid.UUID]appointment.Appointment, len(fresh))
	for _, a := range fresh {
		next[a.ID] = a.Clone()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id := range b.pinned {
		if cur, ok := b.appts[id]; ok {
			next[id] = cur
		}
	}
	for id, g := range b.written {
		if g <= since {
			delete(b.written, id)
			continue
		}
		if cur, ok := b.appts[id]; ok {
			next[id] = cur
		}
	}
	b.appts = next
	b.loadedAt = b.cfg.Now()
	return nil
}

func (b *Board) LoadedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loadedAt
}

func (b *Board) Get(id uuid.UUID) (appointment.Appointment, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, ok := b.appts[id]
	if !ok {
		return appointment.Appointment{}, false
	}
	return a.Clone(), true
}

// Put replaces one entry. It is used for optimistic apply, commit and rollback.
func (b *Board) Put(a appointment.Appointment) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.appts[a.ID] = a.Clone()
	b.gen++
	b.written[a.ID] = b.gen
}

// Pin protects id from being overwritten by Reload until Unpin.
func (b *Board) Pin(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pinned[id] = struct{}{}
}

func (b *Board) Unpin(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pinned, id)
}

// Snapshot returns a copy of every appointment on the board, in no particular order.
func (b *Board) Snapshot() []appointment.Appointment {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]appointment.Appointment, 0, len(b.appts))
	for _, a := range b.appts {
		out = append(out, a.Clone())
	}
	return out
}

func (b *Board) Project(v appointment.Viewer, opts Options) []Event {
	return Project(b.Snapshot(), v, opts)
}
