package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/salon-scheduling/internal/db"
	"github.com/hackgods/salon-scheduling/internal/logging"
)

type seededService struct {
	ID       uuid.UUID
	Duration time.Duration
}

var serviceCatalog = []struct {
	Name    string
	Minutes int
}{
	{"Women's Cut", 60},
	{"Men's Cut", 30},
	{"Blow Dry", 45},
	{"Root Colour", 90},
	{"Full Highlights", 120},
	{"Balayage", 150},
	{"Beard Trim", 15},
	{"Deep Conditioning", 30},
	{"Keratin Treatment", 120},
	{"Updo", 60},
}

func main() {
	log := logging.New("seed", "info")
	slog.SetDefault(log)
	log.Info("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Error("POSTGRES_DSN is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, db.DefaultPoolConfig())
	if err != nil {
		log.Error("connect postgres", slog.Any("err", err))
		os.Exit(1)
	}
	defer pool.Close()

	faker := gofakeit.New(uint64(time.Now().UnixNano()))
	bg := context.Background()

	services, err := seedServices(bg, pool)
	if err != nil {
		log.Error("seed services", slog.Any("err", err))
		os.Exit(1)
	}
	stylists, err := seedStylists(bg, pool, faker, 12)
	if err != nil {
		log.Error("seed stylists", slog.Any("err", err))
		os.Exit(1)
	}
	clients, err := seedClients(bg, pool, faker, 2000)
	if err != nil {
		log.Error("seed clients", slog.Any("err", err))
		os.Exit(1)
	}
	n, err := seedAppointments(bg, pool, faker, stylists, clients, services, 21)
	if err != nil {
		log.Error("seed appointments", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("seed complete",
		slog.Int("services", len(services)),
		slog.Int("stylists", len(stylists)),
		slog.Int("clients", len(clients)),
		slog.Int("appointments", n),
	)
}

func seedServices(ctx context.Context, pool *pgxpool.Pool) ([]seededService, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	out := make([]seededService, 0, len(serviceCatalog))
	for _, s := range serviceCatalog {
		id := uuid.New()
		if _, err := tx.Exec(ctx, `
			INSERT INTO services (id, name, duration_minutes)
			VALUES ($1, $2, $3)
		`, id, s.Name, s.Minutes); err != nil {
			return nil, err
		}
		out = append(out, seededService{ID: id, Duration: time.Duration(s.Minutes) * time.Minute})
	}
	return out, tx.Commit(ctx)
}

func seedStylists(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int) ([]uuid.UUID, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		if _, err := tx.Exec(ctx, `
			INSERT INTO stylists (id, name, created_at, updated_at)
			VALUES ($1, $2, now(), now())
		`, id, faker.Name()); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, tx.Commit(ctx)
}

func seedClients(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int) ([]uuid.UUID, error) {
	const batchSize = 500

	ids := make([]uuid.UUID, 0, count)
	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		batch := &pgx.Batch{}
		for i := offset; i < end; i++ {
			id := uuid.New()
			batch.Queue(`
				INSERT INTO clients (id, name, email, phone, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, id, faker.Name(), faker.Email(), faker.Phone())
			ids = append(ids, id)
		}
		if err := pool.SendBatch(ctx, batch).Close(); err != nil {
			return nil, err
		}
		slog.Info("clients seeded", slog.Int("done", end), slog.Int("total", count))
	}
	return ids, nil
}

// seedAppointments fills each stylist's working day (09:00 to 18:00 UTC)
// with back-to-back bookings separated by random gaps, so the generated
// book never violates the no-overlap constraint.
func seedAppointments(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, stylists, clients []uuid.UUID, services []seededService, days int) (int, error) {
	statuses := []string{"scheduled", "confirmed", "confirmed", "cancelled"}
	today := time.Now().UTC().Truncate(24 * time.Hour)

	total := 0
	for _, stylistID := range stylists {
		batch := &pgx.Batch{}
		for d := -7; d < days; d++ {
			day := today.AddDate(0, 0, d)
			cursor := day.Add(9 * time.Hour)
			closing := day.Add(18 * time.Hour)

			for {
				cursor = cursor.Add(time.Duration(faker.Number(0, 4)) * 15 * time.Minute)
				picked := pickServices(faker, services)
				var length time.Duration
				for _, s := range picked {
					length += s.Duration
				}
				end := cursor.Add(length)
				if end.After(closing) {
					break
				}

				status := statuses[faker.Number(0, len(statuses)-1)]
				if end.Before(time.Now()) && status != "cancelled" {
					status = "completed"
				}

				id := uuid.New()
				batch.Queue(`
					INSERT INTO appointments (id, stylist_id, client_id, start_time, end_time, status, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, $6, now(), now())
				`, id, stylistID, clients[faker.Number(0, len(clients)-1)], cursor, end, status)
				for _, s := range picked {
					batch.Queue(`
						INSERT INTO appointment_services (appointment_id, service_id) VALUES ($1, $2)
					`, id, s.ID)
				}
				total++
				cursor = end
			}
		}
		if err := pool.SendBatch(ctx, batch).Close(); err != nil {
			return total, err
		}
	}
	return total, nil
}

func pickServices(faker *gofakeit.Faker, services []seededService) []seededService {
	n := faker.Number(1, 2)
	picked := make([]seededService, 0, n)
	seen := make(map[uuid.UUID]bool, n)
	for len(picked) < n {
		s := services[faker.Number(0, len(services)-1)]
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		picked = append(picked, s)
	}
	return picked
}
