package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/salon-scheduling/internal/api"
	"github.com/hackgods/salon-scheduling/internal/config"
	"github.com/hackgods/salon-scheduling/internal/db"
	"github.com/hackgods/salon-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL       string
	Duration         time.Duration
	Workers          int
	RescheduleRatio  float64
	StatusRatio      float64
	ReadRatio        float64
	AppointmentLimit int
	PostgresDSN      string
}

// target is an appointment the simulator keeps moving around. Several
// workers share the same targets so reschedules contend with each other.
type target struct {
	ID        uuid.UUID
	StylistID uuid.UUID
	Start     time.Time
	End       time.Time
}

type DataPool struct {
	Targets  []target
	Stylists []uuid.UUID
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	max = latencies[len(latencies)-1]
	return avg, p50, p95, max
}

type Metrics struct {
	Reschedule   OperationMetrics
	StatusChange OperationMetrics
	Calendar     OperationMetrics
	// Rejections by error code returned from the write endpoints.
	mu         sync.Mutex
	rejections map[string]int
}

func (m *Metrics) reject(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rejections == nil {
		m.rejections = make(map[string]int)
	}
	m.rejections[code]++
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	log     *slog.Logger
}

func main() {
	log := logging.New("simulate", getEnv("LOG_LEVEL", "info"))

	cfg, err := loadConfig()
	if err != nil {
		log.Error("invalid config", slog.Any("err", err))
		os.Exit(1)
	}
	log.Info("simulator starting",
		slog.Duration("duration", cfg.Duration),
		slog.Int("workers", cfg.Workers),
		slog.Float64("reschedule", cfg.RescheduleRatio),
		slog.Float64("status", cfg.StatusRatio),
		slog.Float64("read", cfg.ReadRatio),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.DefaultPoolConfig())
	if err != nil {
		log.Error("connect postgres", slog.Any("err", err))
		os.Exit(1)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Error("load data pool", slog.Any("err", err))
		os.Exit(1)
	}
	log.Info("data pool loaded", slog.Int("appointments", len(dataPool.Targets)), slog.Int("stylists", len(dataPool.Stylists)))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
	sim.Run()
	sim.PrintReport()
}

func loadConfig() (SimConfig, error) {
	baseCfg, err := config.Load()
	if err != nil {
		return SimConfig{}, fmt.Errorf("load base config: %w", err)
	}

	cfg := SimConfig{
		APIBaseURL:       getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:         getDuration("SIM_DURATION", 30*time.Second),
		Workers:          getInt("SIM_WORKERS", 10),
		RescheduleRatio:  getFloat("SIM_RESCHEDULE_RATIO", 0.5),
		StatusRatio:      getFloat("SIM_STATUS_RATIO", 0.1),
		ReadRatio:        getFloat("SIM_READ_RATIO", 0.4),
		AppointmentLimit: getInt("SIM_APPOINTMENT_LIMIT", 200),
		PostgresDSN:      baseCfg.PostgresDSN,
	}
	if cfg.Workers <= 0 {
		return cfg, fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return cfg, fmt.Errorf("SIM_DURATION must be > 0")
	}

	// Normalize ratios
	total := cfg.RescheduleRatio + cfg.StatusRatio + cfg.ReadRatio
	if total > 0 {
		cfg.RescheduleRatio /= total
		cfg.StatusRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg, nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, stylist_id, start_time, end_time FROM appointments
		WHERE status IN ('scheduled', 'confirmed') AND start_time > now()
		ORDER BY start_time
		LIMIT $1
	`, cfg.AppointmentLimit)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	defer rows.Close()

	dp := &DataPool{}
	seen := make(map[uuid.UUID]bool)
	for rows.Next() {
		var t target
		if err := rows.Scan(&t.ID, &t.StylistID, &t.Start, &t.End); err != nil {
			return nil, err
		}
		dp.Targets = append(dp.Targets, t)
		if !seen[t.StylistID] {
			seen[t.StylistID] = true
			dp.Stylists = append(dp.Stylists, t.StylistID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(dp.Targets) == 0 {
		return nil, fmt.Errorf("no upcoming appointments loaded; run cmd/seed first")
	}
	return dp, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}
	wg.Wait()
	s.log.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.RescheduleRatio:
			s.doReschedule(ctx, rng)
		case r < s.config.RescheduleRatio+s.config.StatusRatio:
			s.doStatusChange(ctx, rng)
		default:
			s.doCalendar(ctx, rng)
		}
	}
}

func (s *Simulator) post(ctx context.Context, path string, body any) (*http.Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Viewer-Role", "admin")
	return s.client.Do(req)
}

func (s *Simulator) recordWrite(om *OperationMetrics, started time.Time, resp *http.Response, err error) {
	latency := time.Since(started)
	if err != nil {
		om.Record(latency, false, false)
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		om.Record(latency, true, false)
	case http.StatusConflict, http.StatusUnprocessableEntity:
		var er api.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&er)
		s.metrics.reject(er.Error)
		om.Record(latency, false, true)
	default:
		om.Record(latency, false, false)
	}
}

// doReschedule nudges a shared appointment by up to an hour in either
// direction, which regularly collides with its neighbours.
func (s *Simulator) doReschedule(ctx context.Context, rng *rand.Rand) {
	t := s.pool.Targets[rng.Intn(len(s.pool.Targets))]
	shift := time.Duration(rng.Intn(9)-4) * 15 * time.Minute

	started := time.Now()
	resp, err := s.post(ctx, "/appointments/"+t.ID.String()+"/reschedule", api.RescheduleRequest{
		Start: t.Start.Add(shift),
		End:   t.End.Add(shift),
	})
	s.recordWrite(&s.metrics.Reschedule, started, resp, err)
}

func (s *Simulator) doStatusChange(ctx context.Context, rng *rand.Rand) {
	t := s.pool.Targets[rng.Intn(len(s.pool.Targets))]
	statuses := []string{"scheduled", "confirmed"}

	started := time.Now()
	resp, err := s.post(ctx, "/appointments/"+t.ID.String()+"/status", api.StatusChangeRequest{
		Status: statuses[rng.Intn(len(statuses))],
	})
	s.recordWrite(&s.metrics.StatusChange, started, resp, err)
}

func (s *Simulator) doCalendar(ctx context.Context, rng *rand.Rand) {
	stylistID := s.pool.Stylists[rng.Intn(len(s.pool.Stylists))]

	started := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/calendar?stylist_id=%s", s.config.APIBaseURL, stylistID), nil)
	if err != nil {
		s.metrics.Calendar.Record(time.Since(started), false, false)
		return
	}
	req.Header.Set("X-Viewer-Role", "stylist")
	req.Header.Set("X-Viewer-ID", stylistID.String())

	resp, err := s.client.Do(req)
	latency := time.Since(started)
	if err != nil {
		s.metrics.Calendar.Record(latency, false, false)
		return
	}
	resp.Body.Close()
	s.metrics.Calendar.Record(latency, resp.StatusCode == http.StatusOK, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n\n", s.config.Workers)

	printOperationReport("Reschedule", &s.metrics.Reschedule)
	printOperationReport("Status change", &s.metrics.StatusChange)
	printOperationReport("Calendar read", &s.metrics.Calendar)

	s.metrics.mu.Lock()
	defer s.metrics.mu.Unlock()
	if len(s.metrics.rejections) > 0 {
		codes := make([]string, 0, len(s.metrics.rejections))
		for code := range s.metrics.rejections {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		fmt.Println("Rejections:")
		for _, code := range codes {
			fmt.Printf("  %s: %d\n", code, s.metrics.rejections[code])
		}
	}
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}
	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, p50, p95, max := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond),
		p95.Round(time.Millisecond), max.Round(time.Millisecond))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
