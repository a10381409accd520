package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/salon-scheduling/internal/appointment"
)

type RouterConfig struct {
	Scheduler Scheduler
	Board     Projector
	// Viewers defaults to ContextViewerProvider fed by ViewerMiddleware.
	Viewers appointment.ViewerProvider
	Checks  []Check
	Logger  *slog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Viewers == nil {
		cfg.Viewers = ContextViewerProvider{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.Env, cfg.Version, cfg.Checks...)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Group(func(r chi.Router) {
		r.Use(ViewerMiddleware)

		// Read path
		r.Get("/calendar", calendarHandler(cfg.Board, cfg.Viewers))
		r.Get("/calendar.ics", icsHandler(cfg.Board, cfg.Viewers))

		// Write path
		r.Post("/appointments/{id}/reschedule", rescheduleHandler(cfg.Scheduler, cfg.Viewers))
		r.Post("/appointments/{id}/status", statusChangeHandler(cfg.Scheduler, cfg.Viewers))
	})

	return r
}
