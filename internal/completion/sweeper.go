// Package completion marks confirmed appointments whose end has passed as
// completed.
package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/salon-scheduling/internal/appointment"
	"github.com/hackgods/salon-scheduling/internal/reschedule"
)

type Lister interface {
	ListAppointments(ctx context.Context, filter appointment.Filter) ([]appointment.Appointment, error)
}

type StatusChanger interface {
	ProposeStatusChange(ctx context.Context, v appointment.Viewer, id uuid.UUID, to appointment.Status) (reschedule.Outcome, error)
}

type Result struct {
	Completed int
	Skipped   int
	Failed    int
}

type Sweeper struct {
	lister  Lister
	changer StatusChanger
	logger  *slog.Logger
	// Grace is how long after an appointment ends it is left alone.
	Grace time.Duration
	// Lookback bounds how far back the sweep looks.
	Lookback time.Duration
	Now      func() time.Time
}

func NewSweeper(lister Lister, changer StatusChanger, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		lister:   lister,
		changer:  changer,
		logger:   logger,
		Grace:    15 * time.Minute,
		Lookback: 7 * 24 * time.Hour,
		Now:      time.Now,
	}
}

// Run completes every confirmed appointment that ended before now minus
// Grace. Busy and version-conflicted appointments are skipped; the next run
// picks them up again.
func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	cutoff := s.Now().Add(-s.Grace)
	candidates, err := s.lister.ListAppointments(ctx, appointment.Filter{
		WindowStart: cutoff.Add(-s.Lookback),
		WindowEnd:   cutoff,
		Statuses:    []appointment.Status{appointment.StatusConfirmed},
	})
	if err != nil {
		return Result{}, fmt.Errorf("list confirmed appointments: %w", err)
	}

	var res Result
	system := appointment.AdminViewer()
	for _, a := range candidates {
		if a.End.After(cutoff) {
			continue
		}
		_, err := s.changer.ProposeStatusChange(ctx, system, a.ID, appointment.StatusCompleted)
		switch {
		case err == nil:
			res.Completed++
		case errors.Is(err, reschedule.ErrBusy),
			errors.Is(err, appointment.ErrVersionConflict),
			errors.Is(err, appointment.ErrAppointmentNotFound):
			res.Skipped++
		default:
			res.Failed++
			s.logger.Error("failed to complete appointment", slog.String("appointment_id", a.ID.String()), slog.Any("err", err))
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
	}
	return res, nil
}
