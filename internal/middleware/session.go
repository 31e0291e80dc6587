package middleware

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/AdamBeresnev/duplas/internal/httputil"
	"github.com/AdamBeresnev/duplas/internal/player"
	"github.com/AdamBeresnev/duplas/internal/store"
	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
)

const sessionPlayerKey = "playerID"

// LoadViewer puts the player selected in the session, if any, into the request context.
// A session pointing at an unknown player is cleared.
func LoadViewer(sessionManager *scs.SessionManager, players *store.PlayerStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idStr := sessionManager.GetString(r.Context(), sessionPlayerKey)
			if idStr == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := uuid.Parse(idStr)
			if err != nil {
				sessionManager.Remove(r.Context(), sessionPlayerKey)
				next.ServeHTTP(w, r)
				return
			}

			p, err := players.GetPlayer(r.Context(), id)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				sessionManager.Remove(r.Context(), sessionPlayerKey)
			case err != nil:
				slog.Error("failed to load session player", "player_id", id, "error", err)
			default:
				r = r.WithContext(context.WithValue(r.Context(), player.PlayerKey, p))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireViewer rejects requests without a selected player.
func RequireViewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Viewer(r.Context()) == nil {
			httputil.Unauthorized(w, "select a player first")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func Viewer(ctx context.Context) *player.Player {
	p, _ := ctx.Value(player.PlayerKey).(*player.Player)
	return p
}

// ViewerID returns uuid.Nil for anonymous requests.
func ViewerID(ctx context.Context) uuid.UUID {
	if p := Viewer(ctx); p != nil {
		return p.ID
	}
	return uuid.Nil
}

func SignIn(ctx context.Context, sessionManager *scs.SessionManager, playerID uuid.UUID) error {
	if err := sessionManager.RenewToken(ctx); err != nil {
		return err
	}
	sessionManager.Put(ctx, sessionPlayerKey, playerID.String())
	return nil
}

func SignOut(ctx context.Context, sessionManager *scs.SessionManager) error {
	return sessionManager.Destroy(ctx)
}
