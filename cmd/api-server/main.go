package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hackgods/salon-scheduling/internal/api"
	"github.com/hackgods/salon-scheduling/internal/appointment"
	"github.com/hackgods/salon-scheduling/internal/calendar"
	"github.com/hackgods/salon-scheduling/internal/config"
	"github.com/hackgods/salon-scheduling/internal/db"
	"github.com/hackgods/salon-scheduling/internal/events"
	"github.com/hackgods/salon-scheduling/internal/logging"
	redisclient "github.com/hackgods/salon-scheduling/internal/redis"
	"github.com/hackgods/salon-scheduling/internal/reschedule"
	"github.com/hackgods/salon-scheduling/internal/tracing"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("api-server", "info").Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log := logging.New("api-server", cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting", slog.String("env", cfg.Env), slog.String("http_port", cfg.HTTPPort))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(rootCtx, tracing.Config{
		Enabled:     cfg.TracingEnabled,
		ServiceName: "api-server",
		Version:     version,
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
		if err := shutdownTracing(ctx); err != nil {
			log.Warn("tracing shutdown failed", slog.Any("err", err))
		}
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

	checks := []api.Check{{Name: "postgres", Required: true, Ping: pgPool.Ping}}

	// Redis is optional; without it the busy guard is per process.
	var (
		rdb   *redis.Client
		guard redisclient.Guard
	)
	if cfg.RedisAddr != "" {
		rdb, err = redisclient.Connect(rootCtx, redisclient.Options{
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
		checks = append(checks, api.Check{Name: "redis", Ping: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		log.Info("connected to redis")
	} else {
		log.Warn("REDIS_ADDR not set; reschedule busy guard is process local")
	}

	repo := appointment.NewPgRepository(pgPool)
	board := calendar.NewBoard(repo, calendar.BoardConfig{
		Lookbehind: cfg.BoardLookbehind,
		Lookahead:  cfg.BoardLookahead,
	})
	if err := board.Reload(rootCtx); err != nil {
		log.Error("initial board load failed", slog.Any("err", err))
		os.Exit(1)
	}

	orch := reschedule.New(repo, board, reschedule.Config{
		Guard:          guard,
		Sink:           reschedule.LogSink{Logger: log},
		Logger:         log,
		PersistTimeout: cfg.PersistTimeout,
		ClaimTTL:       cfg.LockTTL,
	})

	if pub := events.NewKafkaPublisher(events.Config{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic}, log); pub != nil {
		go pub.Run(rootCtx, orch.Bus())
		log.Info("publishing outcomes to kafka", slog.String("topic", cfg.KafkaTopic))
	}

	go reloadLoop(rootCtx, log, board, cfg.ReloadInterval)

	router := api.NewRouter(api.RouterConfig{
		Scheduler: orch,
		Board:     board,
		Checks:    checks,
		Logger:    log,
		Env:       cfg.Env,
		Version:   version,
	})
	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.HTTPPort),
		Handler:           otelhttp.NewHandler(router, "api-server"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info("http server started", slog.String("addr", srv.Addr))

	select {
	case <-rootCtx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped with error", slog.Any("err", err))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", slog.Any("err", err))
	}
	log.Info("api-server stopped")
}

func reloadLoop(ctx context.Context, log *slog.Logger, board *calendar.Board, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reloadCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
			start := time.Now()
			if err := board.Reload(reloadCtx); err != nil {
				log.Error("board reload failed", slog.Any("err", err))
			} else {
				log.Debug("board reloaded", slog.Duration("took", time.Since(start)))
			}
			cancel()
		}
	}
}
