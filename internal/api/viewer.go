package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/hackgods/salon-scheduling/internal/appointment"
)

const (
	headerViewerRole = "X-Viewer-Role"
	headerViewerID   = "X-Viewer-ID"
)

const viewerKey contextKey = "viewer"

// ViewerMiddleware resolves the viewer from the X-Viewer-Role and
// X-Viewer-ID headers set by the upstream auth proxy. Requests without a
// valid pair carry no viewer and are refused by the handlers.
func ViewerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, err := appointment.ParseRole(r.Header.Get(headerViewerRole))
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		v := appointment.Viewer{Role: role}
		if raw := r.Header.Get(headerViewerID); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			v.SubjectID = id
		}
		if v.Validate() != nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), viewerKey, v)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ContextViewerProvider returns the viewer stored by ViewerMiddleware.
type ContextViewerProvider struct{}

func (ContextViewerProvider) Viewer(ctx context.Context) (appointment.Viewer, error) {
	v, ok := ctx.Value(viewerKey).(appointment.Viewer)
	if !ok {
		return appointment.Viewer{}, appointment.ErrInvalidViewer
	}
	return v, nil
}
