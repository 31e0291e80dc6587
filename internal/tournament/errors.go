package tournament

import "errors"

// Error kinds surfaced by the engine. Callers match with errors.Is; the wrapped message
// names the precondition that failed.
var (
	ErrUnknownStatus            = errors.New("unknown status")
	ErrInvalidTransition        = errors.New("invalid transition")
	ErrRosterInvariantViolation = errors.New("roster invariant violation")
	ErrSeatOccupied             = errors.New("seat occupied")
	ErrPlayerNotFound           = errors.New("player not found")
	ErrAlreadyReported          = errors.New("result already reported")
	ErrConcurrentModification   = errors.New("concurrent modification")
	ErrInsufficientPlayers      = errors.New("insufficient players")

	ErrNotFound          = errors.New("requested resource not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrTournamentFull    = errors.New("tournament registration is full")
	ErrAlreadyRegistered = errors.New("player is already registered for this tournament")
	ErrForbidden         = errors.New("not allowed for this player")

	// ErrTimeout is transient; the caller may retry.
	ErrTimeout = errors.New("operation timed out")
)
