package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const appointmentColumns = `
	a.id, a.stylist_id, a.client_id,
	ARRAY(SELECT s.service_id::text FROM appointment_services s WHERE s.appointment_id = a.id ORDER BY s.service_id),
	a.start_time, a.end_time, a.status, a.version, a.created_at, a.updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var serviceIDs []string
	var status string

	err := row.Scan(
		&a.ID,
		&a.StylistID,
		&a.ClientID,
		&serviceIDs,
		&a.Start,
		&a.End,
		&status,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Status = Status(status)
	a.ServiceIDs = make([]uuid.UUID, 0, len(serviceIDs))
	for _, raw := range serviceIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse service id %q: %w", raw, err)
		}
		a.ServiceIDs = append(a.ServiceIDs, id)
	}
	return &a, nil
}

func buildListQuery(f Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.StylistID != uuid.Nil {
		add("a.stylist_id = $%d", f.StylistID)
	}
	if f.ClientID != uuid.Nil {
		add("a.client_id = $%d", f.ClientID)
	}
	if !f.WindowEnd.IsZero() {
		add("a.start_time < $%d", f.WindowEnd)
	}
	if !f.WindowStart.IsZero() {
		add("a.end_time > $%d", f.WindowStart)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		add("a.status = ANY($%d)", statuses)
	}

	q := "SELECT " + appointmentColumns + "\n\tFROM appointments a"
	if len(where) > 0 {
		q += "\n\tWHERE " + strings.Join(where, " AND ")
	}
	q += "\n\tORDER BY a.start_time ASC, a.id ASC"
	return q, args
}

// Interface methods

func (r *PgRepository) ListAppointments(ctx context.Context, filter Filter) ([]Appointment, error) {
	q, args := buildListQuery(filter)
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		WHERE a.id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, id uuid.UUID, patch Patch, expectedVersion int64) (*Appointment, error) {
	var status *string
	if patch.Status != nil {
		s := string(*patch.Status)
		status = &s
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE appointments a
		SET start_time = COALESCE($2::timestamptz, a.start_time),
		    end_time = COALESCE($3::timestamptz, a.end_time),
		    status = COALESCE($4::text, a.status),
		    version = a.version + 1,
		    updated_at = now()
		WHERE a.id = $1
		  AND a.version = $5
		RETURNING `+appointmentColumns+`
	`, id, patch.Start, patch.End, status, expectedVersion)

	updated, err := scanAppointment(row)
	if err == nil {
		return updated, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23P01" {
		return nil, ErrSlotTaken
	}
	if !errors.Is(err, ErrAppointmentNotFound) {
		return nil, fmt.Errorf("update appointment: %w", err)
	}

	// Zero rows: either the id is gone or the version moved on.
	var current int64
	probeErr := r.pool.QueryRow(ctx, `SELECT version FROM appointments WHERE id = $1`, id).Scan(&current)
	if errors.Is(probeErr, pgx.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	if probeErr != nil {
		return nil, fmt.Errorf("probe appointment version: %w", probeErr)
	}
	return nil, fmt.Errorf("%w: expected version %d, found %d", ErrVersionConflict, expectedVersion, current)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
