// Package reschedule validates calendar moves and status changes, applies
// them optimistically to the board and reconciles the board with the store's
// answer.
package reschedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hackgods/salon-scheduling/internal/appointment"
	"github.com/hackgods/salon-scheduling/internal/calendar"
	redisclient "github.com/hackgods/salon-scheduling/internal/redis"
	"github.com/hackgods/salon-scheduling/internal/rules"
)

const (
	EventAppointmentRescheduled    = "APPOINTMENT_RESCHEDULED"
	EventAppointmentStatusChanged  = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentChangeRejected = "APPOINTMENT_CHANGE_REJECTED"
	EventAppointmentRolledBack     = "APPOINTMENT_CHANGE_ROLLED_BACK"
	EventAppointmentChangeCanceled = "APPOINTMENT_CHANGE_CANCELLED"
)

var tracer = otel.Tracer("github.com/hackgods/salon-scheduling/internal/reschedule")

var occupyingStatuses = []appointment.Status{
	appointment.StatusScheduled,
	appointment.StatusConfirmed,
	appointment.StatusCompleted,
}

type Config struct {
	// Guard, when set, extends the in-process busy check across replicas.
	Guard redisclient.Guard
	Sink  NotificationSink
	Bus   *Bus

	Logger         *slog.Logger
	PersistTimeout time.Duration

	// ClaimTTL is how long an attempt may stay applying without Persist or
	// Cancel before another attempt may discard it. Zero never expires. Set it
	// to the guard's lock TTL so both claims lapse together.
	ClaimTTL time.Duration
	Now      func() time.Time
}

type Orchestrator struct {
	repo   appointment.Repository
	board  *calendar.Board
	guard  redisclient.Guard
	sink   NotificationSink
	bus    *Bus
	logger *slog.Logger

	persistTimeout time.Duration
	claimTTL       time.Duration
	now            func() time.Time

	mu       sync.Mutex
	inflight map[uuid.UUID]*Attempt
}

func New(repo appointment.Repository, board *calendar.Board, cfg Config) *Orchestrator {
	if cfg.Bus == nil {
		cfg.Bus = NewBus()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Orchestrator{
		repo:           repo,
		board:          board,
		guard:          cfg.Guard,
		sink:           cfg.Sink,
		bus:            cfg.Bus,
		logger:         cfg.Logger,
		persistTimeout: cfg.PersistTimeout,
		claimTTL:       cfg.ClaimTTL,
		now:            cfg.Now,
		inflight:       make(map[uuid.UUID]*Attempt),
	}
}

func (o *Orchestrator) Bus() *Bus { return o.bus }

func (o *Orchestrator) Board() *calendar.Board { return o.board }

// InFlight reports whether an attempt for id is currently applying.
func (o *Orchestrator) InFlight(id uuid.UUID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.inflight[id]
	return ok
}

// Propose moves or resizes an appointment to [start, end) and waits for the
// store's answer. The returned error is nil only when the outcome is committed.
func (o *Orchestrator) Propose(ctx context.Context, v appointment.Viewer, id uuid.UUID, start, end time.Time) (Outcome, error) {
	att, err := o.BeginReschedule(ctx, v, id, start, end)
	if err != nil {
		return att.Outcome(), err
	}
	return att.Persist(ctx)
}

// ProposeStatusChange moves an appointment to status to and waits for the
// store's answer.
func (o *Orchestrator) ProposeStatusChange(ctx context.Context, v appointment.Viewer, id uuid.UUID, to appointment.Status) (Outcome, error) {
	att, err := o.BeginStatusChange(ctx, v, id, to)
	if err != nil {
		return att.Outcome(), err
	}
	return att.Persist(ctx)
}

// BeginReschedule validates the move and applies it to the board without
// persisting. The returned attempt is never nil; on error it is rejected.
func (o *Orchestrator) BeginReschedule(ctx context.Context, v appointment.Viewer, id uuid.UUID, start, end time.Time) (*Attempt, error) {
	start, end = start.UTC(), end.UTC()
	return o.begin(ctx, v, id, OpReschedule, appointment.Patch{Start: &start, End: &end})
}

func (o *Orchestrator) BeginStatusChange(ctx context.Context, v appointment.Viewer, id uuid.UUID, to appointment.Status) (*Attempt, error) {
	return o.begin(ctx, v, id, OpStatusChange, appointment.Patch{Status: &to})
}

func (o *Orchestrator) begin(ctx context.Context, v appointment.Viewer, id uuid.UUID, op Op, patch appointment.Patch) (*Attempt, error) {
	att := &Attempt{
		o:             o,
		id:            uuid.New(),
		appointmentID: id,
		op:            op,
		viewer:        v,
		patch:         patch,
		state:         StateProposed,
	}
	att.setState(StateValidating)

	if err := v.Validate(); err != nil {
		return att, o.reject(ctx, att, fmt.Errorf("%w: %w", rules.ErrForbidden, err))
	}

	current, err := o.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if !errors.Is(err, appointment.ErrAppointmentNotFound) {
			err = fmt.Errorf("load appointment: %w", err)
		}
		return att, o.reject(ctx, att, err)
	}
	att.before = current.Clone()
	att.proposed = patch.Apply(att.before)

	if !rules.CanMutate(v, att.before) {
		return att, o.reject(ctx, att, rules.ErrForbidden)
	}
	if err := validateChange(att.before, op, patch); err != nil {
		return att, o.reject(ctx, att, err)
	}

	if err := o.claim(ctx, att); err != nil {
		return att, o.reject(ctx, att, err)
	}

	if sameSchedule(att.before, att.proposed) {
		o.board.Put(att.before)
		att.noop = true
		o.finish(ctx, att, StateCommitted, att.before, nil)
		return att, nil
	}

	if op == OpReschedule {
		existing, err := o.repo.ListAppointments(ctx, appointment.Filter{
			StylistID:   att.before.StylistID,
			WindowStart: att.proposed.Start,
			WindowEnd:   att.proposed.End,
			Statuses:    occupyingStatuses,
		})
		if err != nil {
			return att, o.reject(ctx, att, fmt.Errorf("list stylist appointments: %w", err))
		}
		res := rules.CheckOverlap(rules.Candidate{
			StylistID: att.before.StylistID,
			Start:     att.proposed.Start,
			End:       att.proposed.End,
			ExcludeID: id,
		}, existing)
		if res.Conflict {
			return att, o.reject(ctx, att, res.Err())
		}
	}

	o.board.Pin(id)
	att.pinned = true
	o.board.Put(att.proposed)
	att.setState(StateApplying)

	o.logger.DebugContext(ctx, "appointment change applied optimistically",
		slog.String("attempt_id", att.id.String()),
		slog.String("appointment_id", id.String()),
		slog.String("op", string(op)),
	)
	return att, nil
}

func validateChange(current appointment.Appointment, op Op, patch appointment.Patch) error {
	switch op {
	case OpReschedule:
		if err := rules.ValidateInterval(*patch.Start, *patch.End); err != nil {
			return err
		}
		if current.Status == appointment.StatusCompleted || current.Status == appointment.StatusCancelled {
			return fmt.Errorf("%w: cannot move a %s appointment", rules.ErrInvalidTransition, current.Status)
		}
	case OpStatusChange:
		to := *patch.Status
		if !to.Valid() || !rules.CanTransition(current.Status, to) {
			return fmt.Errorf("%w: %s to %s", rules.ErrInvalidTransition, current.Status, to)
		}
	}
	return nil
}

func sameSchedule(a, b appointment.Appointment) bool {
	return a.Start.Equal(b.Start) && a.End.Equal(b.End) && a.Status == b.Status
}

// claim marks the appointment as in flight locally and, if configured, in Redis.
// An attempt left applying past ClaimTTL is cancelled to make room.
func (o *Orchestrator) claim(ctx context.Context, att *Attempt) error {
	id := att.appointmentID

	o.mu.Lock()
	if held, busy := o.inflight[id]; busy {
		o.mu.Unlock()
		if !o.expired(held) {
			return ErrBusy
		}
		if _, err := held.Cancel(ctx); err != nil {
			return ErrBusy
		}
		o.logger.WarnContext(ctx, "discarded abandoned appointment change",
			slog.String("attempt_id", held.id.String()),
			slog.String("appointment_id", id.String()),
		)

		o.mu.Lock()
		if _, busy := o.inflight[id]; busy {
			o.mu.Unlock()
			return ErrBusy
		}
	}
	att.claimedAt = o.now()
	o.inflight[id] = att
	o.mu.Unlock()

	release := func() {
		o.mu.Lock()
		delete(o.inflight, id)
		o.mu.Unlock()
	}

	if o.guard != nil {
		unlock, err := o.guard.Acquire(ctx, id)
		if err != nil {
			release()
			if errors.Is(err, redisclient.ErrLockNotAcquired) {
				return ErrBusy
			}
			return fmt.Errorf("acquire appointment guard: %w", err)
		}
		local := release
		release = func() {
			unlock()
			local()
		}
	}

	att.release = release
	return nil
}

func (o *Orchestrator) expired(att *Attempt) bool {
	return o.claimTTL > 0 && o.now().Sub(att.claimedAt) > o.claimTTL
}

func (o *Orchestrator) reject(ctx context.Context, att *Attempt, err error) error {
	o.finish(ctx, att, StateRejected, att.before, err)
	return err
}

func (o *Orchestrator) persist(ctx context.Context, att *Attempt) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "reschedule.persist")
	defer span.End()
	span.SetAttributes(
		attribute.String("appointment.id", att.appointmentID.String()),
		attribute.String("reschedule.op", string(att.op)),
		attribute.Int64("appointment.expected_version", att.before.Version),
	)

	pctx := ctx
	if o.persistTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, o.persistTimeout)
		defer cancel()
	}

	updated, err := o.repo.UpdateAppointment(pctx, att.appointmentID, att.patch, att.before.Version)
	if err != nil {
		err = persistError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindOf(err)))
		o.board.Put(att.before)
		return o.finish(ctx, att, StateRolledBack, att.before, err), err
	}

	o.board.Put(*updated)
	return o.finish(ctx, att, StateCommitted, *updated, nil), nil
}

func (o *Orchestrator) cancel(ctx context.Context, att *Attempt) Outcome {
	o.board.Put(att.before)
	return o.finish(ctx, att, StateCancelled, att.before, nil)
}

// finish releases the attempt's claim and emits its outcome. The board must
// already hold the final value.
func (o *Orchestrator) finish(ctx context.Context, att *Attempt, state State, after appointment.Appointment, err error) Outcome {
	if att.pinned {
		o.board.Unpin(att.appointmentID)
		att.pinned = false
	}
	if att.release != nil {
		att.release()
		att.release = nil
	}

	kind := KindOf(err)
	out := Outcome{
		AttemptID:     att.id,
		AppointmentID: att.appointmentID,
		Op:            att.op,
		State:         state,
		Kind:          kind,
		Description:   kind.Description(),
		NoOp:          att.noop,
		Viewer:        att.viewer,
		Before:        att.before.Clone(),
		After:         after.Clone(),
		At:            o.now(),
		Err:           err,
	}
	if state == StateCancelled {
		out.Description = "Change discarded."
	}
	var conflict *rules.ConflictError
	if errors.As(err, &conflict) {
		out.ConflictWith = conflict.WithAppointmentID
	}

	att.mu.Lock()
	att.state = state
	att.outcome = out
	att.mu.Unlock()

	o.bus.Publish(out)
	if o.sink != nil {
		o.sink.Notify(ctx, notificationFor(out))
	}
	if !out.NoOp {
		o.logEvent(ctx, out)
	}
	return out
}

func eventType(out Outcome) string {
	switch out.State {
	case StateCommitted:
		if out.Op == OpStatusChange {
			return EventAppointmentStatusChanged
		}
		return EventAppointmentRescheduled
	case StateRolledBack:
		return EventAppointmentRolledBack
	case StateCancelled:
		return EventAppointmentChangeCanceled
	}
	return EventAppointmentChangeRejected
}

func (o *Orchestrator) logEvent(ctx context.Context, out Outcome) {
	payload := map[string]any{
		"attempt_id":  out.AttemptID.String(),
		"op":          out.Op,
		"state":       out.State,
		"viewer_role": out.Viewer.Role,
		"viewer_id":   out.Viewer.SubjectID.String(),
	}
	if out.Kind != KindNone {
		payload["kind"] = out.Kind
	}
	if out.ConflictWith != uuid.Nil {
		payload["conflict_with"] = out.ConflictWith.String()
	}
	if !out.Before.Start.IsZero() {
		payload["old_start"] = out.Before.Start
		payload["old_end"] = out.Before.End
		payload["old_status"] = out.Before.Status
	}
	if !out.After.Start.IsZero() {
		payload["new_start"] = out.After.Start
		payload["new_end"] = out.After.End
		payload["new_status"] = out.After.Status
	}

	data, err := json.Marshal(payload)
	if err != nil {
		o.logger.Error("failed to marshal event payload", slog.String("event_type", eventType(out)), slog.Any("err", err))
		data = nil
	}

	apptID := out.AppointmentID
	ev := appointment.EventLog{
		EventType:     eventType(out),
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     out.At,
	}

	// The request may already be cancelled; the audit row is still wanted.
	evCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := o.repo.InsertEvent(evCtx, ev); err != nil {
		o.logger.Error("failed to insert event log",
			slog.String("event_type", ev.EventType),
			slog.String("appointment_id", apptID.String()),
			slog.Any("err", err),
		)
	}
}
