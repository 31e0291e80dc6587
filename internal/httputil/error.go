package httputil

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/AdamBeresnev/duplas/internal/tournament"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, "Internal Server Error", "")
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("bad request", "message", msg, "error", err)
	} else {
		slog.Warn("bad request", "message", msg)
	}
	writeError(w, http.StatusBadRequest, msg, "invalid_input")
}

func NotFound(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("not found", "message", msg, "error", err)
	} else {
		slog.Warn("not found", "message", msg)
	}
	writeError(w, http.StatusNotFound, msg, "not_found")
}

func Unauthorized(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusUnauthorized, msg, "unauthorized")
}

var errorKinds = []struct {
	err    error
	status int
	kind   string
}{
	{tournament.ErrNotFound, http.StatusNotFound, "not_found"},
	{tournament.ErrPlayerNotFound, http.StatusNotFound, "player_not_found"},
	{tournament.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{tournament.ErrForbidden, http.StatusForbidden, "forbidden"},
	{tournament.ErrUnknownStatus, http.StatusUnprocessableEntity, "unknown_status"},
	{tournament.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{tournament.ErrRosterInvariantViolation, http.StatusConflict, "roster_invariant_violation"},
	{tournament.ErrSeatOccupied, http.StatusConflict, "seat_occupied"},
	{tournament.ErrAlreadyReported, http.StatusConflict, "already_reported"},
	{tournament.ErrConcurrentModification, http.StatusConflict, "concurrent_modification"},
	{tournament.ErrAlreadyRegistered, http.StatusConflict, "already_registered"},
	{tournament.ErrTournamentFull, http.StatusConflict, "tournament_full"},
	{tournament.ErrInsufficientPlayers, http.StatusUnprocessableEntity, "insufficient_players"},
	{tournament.ErrTimeout, http.StatusServiceUnavailable, "timeout"},
}

// Error answers with the status matching an engine error. The message names the
// precondition that failed; anything unrecognized is an internal error.
func Error(w http.ResponseWriter, msg string, err error) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			slog.Warn(msg, "kind", k.kind, "error", err)
			if k.status == http.StatusServiceUnavailable {
				w.Header().Set("Retry-After", "1")
			}
			writeError(w, k.status, err.Error(), k.kind)
			return
		}
	}
	InternalServerError(w, msg, err)
}

func writeError(w http.ResponseWriter, status int, msg, kind string) {
	if err := WriteJSON(w, status, errorBody{Error: msg, Kind: kind}); err != nil {
		slog.Error("failed to write error response", "error", err)
	}
}
