package reschedule

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Notification is the presentation-ready part of an outcome.
type Notification struct {
	AppointmentID uuid.UUID
	Success       bool
	State         State
	Kind          Kind
	Message       string
}

// NotificationSink receives one notification per terminal outcome.
type NotificationSink interface {
	Notify(ctx context.Context, n Notification)
}

func notificationFor(o Outcome) Notification {
	return Notification{
		AppointmentID: o.AppointmentID,
		Success:       o.State == StateCommitted,
		State:         o.State,
		Kind:          o.Kind,
		Message:       o.Description,
	}
}

type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Notify(ctx context.Context, n Notification) {
	level := slog.LevelInfo
	if !n.Success {
		level = slog.LevelWarn
	}
	s.Logger.Log(ctx, level, "appointment change outcome",
		slog.String("appointment_id", n.AppointmentID.String()),
		slog.String("state", string(n.State)),
		slog.String("kind", string(n.Kind)),
		slog.String("message", n.Message),
	)
}
