package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hackgods/salon-scheduling/internal/appointment"
	"github.com/hackgods/salon-scheduling/internal/calendar"
	"github.com/hackgods/salon-scheduling/internal/completion"
	"github.com/hackgods/salon-scheduling/internal/config"
	"github.com/hackgods/salon-scheduling/internal/db"
	"github.com/hackgods/salon-scheduling/internal/events"
	"github.com/hackgods/salon-scheduling/internal/logging"
	redisclient "github.com/hackgods/salon-scheduling/internal/redis"
	"github.com/hackgods/salon-scheduling/internal/reschedule"
	"github.com/hackgods/salon-scheduling/internal/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("completion-worker", "info").Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log := logging.New("completion-worker", cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting", slog.String("env", cfg.Env), slog.String("schedule", cfg.CompletionSchedule))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(rootCtx, tracing.Config{
		Enabled:     cfg.TracingEnabled,
		ServiceName: "completion-worker",
		Endpoint:    cfg.OTLPEndpoint,
		SampleRatio: cfg.TraceSampleRatio,
	})
	if err != nil {
		log.Error("tracing setup failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.DefaultPoolConfig())
	cancelPg()
	if err != nil {
		log.Error("postgres connection failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer pgPool.Close()
	log.Info("connected to postgres")

	// Sharing the redis guard with api-server keeps the worker from racing
	// a reschedule in flight on another process.
	var guard redisclient.Guard
	if cfg.RedisAddr != "" {
		rdb, err := redisclient.Connect(rootCtx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Error("redis connection failed", slog.Any("err", err))
			os.Exit(1)
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Warn("redis close failed", slog.Any("err", err))
			}
		}()
		guard = redisclient.NewRedisGuard(rdb, cfg.LockTTL)
		log.Info("connected to redis")
	}

	repo := appointment.NewPgRepository(pgPool)
	board := calendar.NewBoard(repo, calendar.BoardConfig{
		Lookbehind: cfg.BoardLookbehind,
		Lookahead:  cfg.BoardLookahead,
	})
	orch := reschedule.New(repo, board, reschedule.Config{
		Guard:          guard,
		Sink:           reschedule.LogSink{Logger: log},
		Logger:         log,
		PersistTimeout: cfg.PersistTimeout,
		ClaimTTL:       cfg.LockTTL,
	})

	// Completions go to the same topic as changes made through api-server.
	if pub := events.NewKafkaPublisher(events.Config{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic}, log); pub != nil {
		go pub.Run(rootCtx, orch.Bus())
		log.Info("publishing outcomes to kafka", slog.String("topic", cfg.KafkaTopic))
	}

	sweeper := completion.NewSweeper(repo, orch, log)
	sweeper.Grace = cfg.CompletionGrace

	// Run once at startup
	runOnce(rootCtx, log, board, sweeper)

	c := cron.New()
	if _, err := c.AddFunc(cfg.CompletionSchedule, func() { runOnce(rootCtx, log, board, sweeper) }); err != nil {
		log.Error("invalid completion schedule", slog.String("schedule", cfg.CompletionSchedule), slog.Any("err", err))
		os.Exit(1)
	}
	c.Start()

	<-rootCtx.Done()
	log.Info("shutdown signal received, stopping completion worker")
	<-c.Stop().Done()
	log.Info("completion-worker stopped")
}

func runOnce(ctx context.Context, log *slog.Logger, board *calendar.Board, s *completion.Sweeper) {
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	// The worker's board is only a write target; reloading keeps it to the window.
	if err := board.Reload(runCtx); err != nil {
		log.Warn("board reload failed", slog.Any("err", err))
	}

	start := time.Now()
	res, err := s.Run(runCtx)
	if err != nil {
		log.Error("completion run failed", slog.Any("err", err))
		return
	}
	log.Info("completion run complete",
		slog.Int("completed", res.Completed),
		slog.Int("skipped", res.Skipped),
		slog.Int("failed", res.Failed),
		slog.Duration("took", time.Since(start)),
	)
}
