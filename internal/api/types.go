package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/salon-scheduling/internal/calendar"
)

type RescheduleRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type StatusChangeRequest struct {
	Status string `json:"status"`
}

type CalendarResponse struct {
	Events   []calendar.Event `json:"events"`
	LoadedAt time.Time        `json:"loaded_at"`
}

type OutcomeResponse struct {
	AttemptID     uuid.UUID       `json:"attempt_id"`
	AppointmentID uuid.UUID       `json:"appointment_id"`
	State         string          `json:"state"`
	Message       string          `json:"message"`
	Event         *calendar.Event `json:"event,omitempty"`
}

type ErrorResponse struct {
	Error        string `json:"error"`
	Details      string `json:"details,omitempty"`
	ConflictWith string `json:"conflict_with,omitempty"`
}
