// Package lifecycle holds the legality rules for tournament and round transitions.
// Nothing here touches storage; the service layer asks before it mutates.
package lifecycle

import (
	"fmt"

	"github.com/AdamBeresnev/duplas/internal/tournament"
)

// MinPlayers is the smallest field that fills one 2v2 table.
const MinPlayers = tournament.PlayersPerTable

type Event string

const (
	EventPair   Event = "pair"
	EventRepair Event = "repair"
	EventStart  Event = "start"
	EventFinish Event = "finish"
)

var roundTransitions = map[tournament.RoundState]map[Event]tournament.RoundState{
	tournament.RoundAwaitingPairing: {
		EventPair: tournament.RoundPaired,
	},
	tournament.RoundPaired: {
		EventRepair: tournament.RoundPaired,
		EventStart:  tournament.RoundActive,
	},
	tournament.RoundActive: {
		EventFinish: tournament.RoundFinished,
	},
	tournament.RoundFinished: {},
}

// Next returns the state a round moves to when ev is applied in from.
func Next(from tournament.RoundState, ev Event) (tournament.RoundState, error) {
	to, ok := roundTransitions[from][ev]
	if !ok {
		return from, fmt.Errorf("%w: cannot %s a round that is %s", tournament.ErrInvalidTransition, ev, from)
	}
	return to, nil
}

// FinishRound checks Active -> Finished; every table needs a recorded result first.
func FinishRound(r *tournament.Round, unreported int) (tournament.RoundState, error) {
	to, err := Next(r.State, EventFinish)
	if err != nil {
		return r.State, err
	}
	if unreported > 0 {
		return r.State, fmt.Errorf("%w: round %d still has %d table(s) without a result",
			tournament.ErrInvalidTransition, r.Number, unreported)
	}
	return to, nil
}

func StartTournament(t *tournament.Tournament, activePlayers int) error {
	if t.Status != tournament.TournamentOpen {
		return fmt.Errorf("%w: tournament must be open to start, it is %s", tournament.ErrInvalidTransition, t.Status)
	}
	if activePlayers < MinPlayers {
		return fmt.Errorf("%w: starting needs at least %d active registrations, found %d",
			tournament.ErrInsufficientPlayers, MinPlayers, activePlayers)
	}
	return nil
}

func CancelTournament(t *tournament.Tournament) error {
	if t.Status != tournament.TournamentOpen {
		return fmt.Errorf("%w: only open tournaments can be cancelled, it is %s", tournament.ErrInvalidTransition, t.Status)
	}
	return nil
}

// AdvanceRound returns the number of the round to create after current.
func AdvanceRound(t *tournament.Tournament, current *tournament.Round) (int, error) {
	if t.Status != tournament.TournamentInProgress {
		return 0, fmt.Errorf("%w: tournament must be in progress to advance, it is %s", tournament.ErrInvalidTransition, t.Status)
	}
	if current == nil {
		return 0, fmt.Errorf("%w: tournament has no round to advance from", tournament.ErrInvalidTransition)
	}
	if current.State != tournament.RoundFinished {
		return 0, fmt.Errorf("%w: round %d must be finished before advancing, it is %s",
			tournament.ErrInvalidTransition, current.Number, current.State)
	}
	if t.RoundCount != nil && current.Number >= *t.RoundCount {
		return 0, fmt.Errorf("%w: all %d configured rounds have been played, finalize the tournament instead",
			tournament.ErrInvalidTransition, *t.RoundCount)
	}
	return current.Number + 1, nil
}

func FinalizeTournament(t *tournament.Tournament, current *tournament.Round) error {
	if t.Status != tournament.TournamentInProgress {
		return fmt.Errorf("%w: tournament must be in progress to finalize, it is %s", tournament.ErrInvalidTransition, t.Status)
	}
	if current == nil || current.State != tournament.RoundFinished {
		state := "missing"
		if current != nil {
			state = string(current.State)
		}
		return fmt.Errorf("%w: the current round must be finished before finalizing, it is %s",
			tournament.ErrInvalidTransition, state)
	}
	if t.RoundCount != nil && current.Number < *t.RoundCount {
		return fmt.Errorf("%w: %d of %d configured rounds played",
			tournament.ErrInvalidTransition, current.Number, *t.RoundCount)
	}
	return nil
}

// CanEditPairing guards manual seat moves.
func CanEditPairing(r *tournament.Round) error {
	if r.State != tournament.RoundPaired && r.State != tournament.RoundActive {
		return fmt.Errorf("%w: seats can only be edited while round %d is paired or active, it is %s",
			tournament.ErrInvalidTransition, r.Number, r.State)
	}
	return nil
}

// CanRestructure guards adding and removing tables, which is only allowed before play.
func CanRestructure(r *tournament.Round) error {
	if r.State != tournament.RoundPaired {
		return fmt.Errorf("%w: tables can only be added or removed while round %d is paired, it is %s",
			tournament.ErrInvalidTransition, r.Number, r.State)
	}
	return nil
}

func CanReport(r *tournament.Round) error {
	if r.State != tournament.RoundActive {
		return fmt.Errorf("%w: results can only be reported while round %d is active, it is %s",
			tournament.ErrInvalidTransition, r.Number, r.State)
	}
	return nil
}

// CanRegister checks that the roster is still open for new or returning players.
func CanRegister(t *tournament.Tournament) error {
	if t.Status == tournament.TournamentFinished || t.Status == tournament.TournamentCancelled {
		return fmt.Errorf("%w: registrations are closed, tournament is %s", tournament.ErrInvalidTransition, t.Status)
	}
	return nil
}
