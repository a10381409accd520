package appointment

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Runs against a disposable database when SALON_TEST_DATABASE_URL is set.
func newIntegrationRepo(t *testing.T) (*PgRepository, *pgxpool.Pool) {
	t.Helper()
	dsn := os.Getenv("SALON_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("SALON_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile("../../migrations/001_init.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	return NewPgRepository(pool), pool
}

func TestPgRepository_UpdateAndConflicts(t *testing.T) {
	repo, pool := newIntegrationRepo(t)
	ctx := context.Background()

	stylistID, clientID, serviceID := uuid.New(), uuid.New(), uuid.New()
	x, y := uuid.New(), uuid.New()
	base := time.Date(2030, 1, 7, 10, 0, 0, 0, time.UTC)

	mustExec := func(sql string, args ...any) {
		t.Helper()
		if _, err := pool.Exec(ctx, sql, args...); err != nil {
			t.Fatalf("exec %q: %v", sql, err)
		}
	}
	mustExec(`INSERT INTO stylists (id, name) VALUES ($1, 'Test Stylist')`, stylistID)
	mustExec(`INSERT INTO clients (id, name) VALUES ($1, 'Test Client')`, clientID)
	mustExec(`INSERT INTO services (id, name, duration_minutes) VALUES ($1, 'Cut', 60)`, serviceID)
	mustExec(`INSERT INTO appointments (id, stylist_id, client_id, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, 'confirmed')`, x, stylistID, clientID, base, base.Add(time.Hour))
	mustExec(`INSERT INTO appointments (id, stylist_id, client_id, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, 'scheduled')`, y, stylistID, clientID, base.Add(2*time.Hour), base.Add(3*time.Hour))
	mustExec(`INSERT INTO appointment_services (appointment_id, service_id) VALUES ($1, $2)`, x, serviceID)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM appointments WHERE stylist_id = $1`, stylistID)
		_, _ = pool.Exec(context.Background(), `DELETE FROM services WHERE id = $1`, serviceID)
		_, _ = pool.Exec(context.Background(), `DELETE FROM clients WHERE id = $1`, clientID)
		_, _ = pool.Exec(context.Background(), `DELETE FROM stylists WHERE id = $1`, stylistID)
	})

	got, err := repo.GetAppointmentByID(ctx, x)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Version != 1 || len(got.ServiceIDs) != 1 || got.ServiceIDs[0] != serviceID {
		t.Fatalf("Get = %+v", got)
	}

	list, err := repo.ListAppointments(ctx, Filter{StylistID: stylistID, Statuses: []Status{StatusScheduled}})
	if err != nil || len(list) != 1 || list[0].ID != y {
		t.Fatalf("List = %v, %v; want only y", list, err)
	}

	start, end := base.Add(4*time.Hour), base.Add(5*time.Hour)
	updated, err := repo.UpdateAppointment(ctx, x, Patch{Start: &start, End: &end}, 1)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Version != 2 || !updated.Start.Equal(start) || updated.Status != StatusConfirmed {
		t.Fatalf("updated = %+v", updated)
	}

	if _, err := repo.UpdateAppointment(ctx, x, Patch{Start: &start, End: &end}, 1); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale update err = %v, want ErrVersionConflict", err)
	}

	clash, clashEnd := base.Add(2*time.Hour+30*time.Minute), base.Add(3*time.Hour+30*time.Minute)
	if _, err := repo.UpdateAppointment(ctx, x, Patch{Start: &clash, End: &clashEnd}, 2); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("overlapping update err = %v, want ErrSlotTaken", err)
	}

	if _, err := repo.UpdateAppointment(ctx, uuid.New(), Patch{Start: &start, End: &end}, 1); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("unknown id err = %v, want ErrAppointmentNotFound", err)
	}

	apptID := x
	if err := repo.InsertEvent(ctx, EventLog{EventType: "TEST_EVENT", AppointmentID: &apptID, Payload: []byte(`{"ok":true}`)}); err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM event_logs WHERE appointment_id = $1`, x)
	})
}
