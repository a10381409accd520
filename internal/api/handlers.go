package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/salon-scheduling/internal/appointment"
	"github.com/hackgods/salon-scheduling/internal/calendar"
	"github.com/hackgods/salon-scheduling/internal/reschedule"
)

// Scheduler is the write path of the reschedule orchestrator.
type Scheduler interface {
	Propose(ctx context.Context, v appointment.Viewer, id uuid.UUID, start, end time.Time) (reschedule.Outcome, error)
	ProposeStatusChange(ctx context.Context, v appointment.Viewer, id uuid.UUID, to appointment.Status) (reschedule.Outcome, error)
}

// Projector is the read path, satisfied by *calendar.Board.
type Projector interface {
	Project(v appointment.Viewer, opts calendar.Options) []calendar.Event
	LoadedAt() time.Time
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func viewerFrom(w http.ResponseWriter, r *http.Request, viewers appointment.ViewerProvider) (appointment.Viewer, bool) {
	v, err := viewers.Viewer(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "viewer_required", "a valid X-Viewer-Role and X-Viewer-ID are required")
		return appointment.Viewer{}, false
	}
	return v, true
}

func parseOptions(r *http.Request) (calendar.Options, error) {
	var opts calendar.Options
	if raw := r.URL.Query().Get("stylist_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return opts, err
		}
		opts.StylistID = id
	}
	if raw := r.URL.Query().Get("hide_cancelled"); raw != "" {
		hide, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, err
		}
		opts.HideCancelled = hide
	}
	return opts, nil
}

func calendarHandler(board Projector, viewers appointment.ViewerProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, ok := viewerFrom(w, r, viewers)
		if !ok {
			return
		}
		opts, err := parseOptions(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", "stylist_id must be a UUID and hide_cancelled a boolean")
			return
		}

		writeJSON(w, http.StatusOK, CalendarResponse{
			Events:   board.Project(v, opts),
			LoadedAt: board.LoadedAt(),
		})
	}
}

func icsHandler(board Projector, viewers appointment.ViewerProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, ok := viewerFrom(w, r, viewers)
		if !ok {
			return
		}
		opts, err := parseOptions(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", "stylist_id must be a UUID and hide_cancelled a boolean")
			return
		}

		body := calendar.EncodeICS("Salon appointments", board.Project(v, opts), board.LoadedAt())
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}
}

func rescheduleHandler(svc Scheduler, viewers appointment.ViewerProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, ok := viewerFrom(w, r, viewers)
		if !ok {
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.Start.IsZero() || req.End.IsZero() {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "start and end are required")
			return
		}

		out, err := svc.Propose(r.Context(), v, id, req.Start, req.End)
		writeOutcome(w, v, out, err)
	}
}

func statusChangeHandler(svc Scheduler, viewers appointment.ViewerProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, ok := viewerFrom(w, r, viewers)
		if !ok {
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req StatusChangeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		to := appointment.Status(req.Status)
		if !to.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_status", "status must be scheduled, confirmed, completed or cancelled")
			return
		}

		out, err := svc.ProposeStatusChange(r.Context(), v, id, to)
		writeOutcome(w, v, out, err)
	}
}

var kindStatus = map[reschedule.Kind]int{
	reschedule.KindNotFound:          http.StatusNotFound,
	reschedule.KindForbidden:         http.StatusForbidden,
	reschedule.KindInvalidInterval:   http.StatusUnprocessableEntity,
	reschedule.KindConflict:          http.StatusConflict,
	reschedule.KindVersionConflict:   http.StatusConflict,
	reschedule.KindInvalidTransition: http.StatusConflict,
	reschedule.KindBusy:              http.StatusConflict,
	reschedule.KindPersistFailed:     http.StatusServiceUnavailable,
}

func writeOutcome(w http.ResponseWriter, v appointment.Viewer, out reschedule.Outcome, err error) {
	if err != nil {
		handleOutcomeError(w, out, err)
		return
	}

	resp := OutcomeResponse{
		AttemptID:     out.AttemptID,
		AppointmentID: out.AppointmentID,
		State:         string(out.State),
		Message:       out.Description,
	}
	if events := calendar.Project([]appointment.Appointment{out.After}, v, calendar.Options{}); len(events) == 1 {
		resp.Event = &events[0]
	}
	writeJSON(w, http.StatusOK, resp)
}

func handleOutcomeError(w http.ResponseWriter, out reschedule.Outcome, err error) {
	if errors.Is(err, reschedule.ErrAttemptClosed) || errors.Is(err, reschedule.ErrPersistIssued) {
		writeError(w, http.StatusConflict, string(reschedule.KindBusy), reschedule.KindBusy.Description())
		return
	}

	kind := reschedule.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	resp := ErrorResponse{Error: string(kind), Details: kind.Description()}
	if out.ConflictWith != uuid.Nil {
		resp.ConflictWith = out.ConflictWith.String()
	}
	writeJSON(w, status, resp)
}
