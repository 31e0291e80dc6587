package middleware

import (
	"context"
	"net/http"

	"github.com/AdamBeresnev/duplas/internal/httputil"
	"github.com/AdamBeresnev/duplas/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// AccessGuard decides whether the viewer may act on a resource.
type AccessGuard interface {
	RequireOrganizer(ctx context.Context, scope service.Scope, id, viewerID uuid.UUID) error
	RequireReporter(ctx context.Context, tableID, viewerID uuid.UUID) error
}

// RequireOrganizer only lets the owner of the tournament behind the URL parameter
// through. It must run after RequireViewer.
func RequireOrganizer(g AccessGuard, scope service.Scope, param string) func(http.Handler) http.Handler {
	return guard(param, func(ctx context.Context, id, viewerID uuid.UUID) error {
		return g.RequireOrganizer(ctx, scope, id, viewerID)
	})
}

// RequireReporter lets the organizer and the players seated at the table through.
func RequireReporter(g AccessGuard, param string) func(http.Handler) http.Handler {
	return guard(param, g.RequireReporter)
}

func guard(param string, check func(ctx context.Context, id, viewerID uuid.UUID) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := uuid.Parse(chi.URLParam(r, param))
			if err != nil {
				httputil.BadRequest(w, "Invalid "+param, err)
				return
			}
			if err := check(r.Context(), id, ViewerID(r.Context())); err != nil {
				httputil.Error(w, "Access denied", err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
