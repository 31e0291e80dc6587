// Package navigation decides which screen a viewer should land on for the current
// state of a tournament.
package navigation

import (
	"github.com/AdamBeresnev/duplas/internal/tournament"
)

type Role string

const (
	RolePlayer    Role = "player"
	RoleOrganizer Role = "organizer"
	RoleSpectator Role = "spectator"
)

type View string

const (
	ViewOpenRegistration  View = "open_registration"
	ViewByeNotice         View = "bye_notice"
	ViewPairingInProgress View = "pairing_in_progress"
	ViewActiveMatchEntry  View = "active_match_entry"
	ViewRoundInterval     View = "round_interval"
	ViewFinalStandings    View = "final_standings"
)

type Input struct {
	Tournament tournament.TournamentStatus `json:"tournament"`
	// Round is nil before the first round exists.
	Round *tournament.RoundState `json:"round,omitempty"`
	// Table is the state of the viewer's own table, nil when they are not seated.
	Table    *tournament.TableState `json:"table,omitempty"`
	Role     Role                   `json:"role"`
	HasTable bool                   `json:"has_table"`
	OnBye    bool                   `json:"on_bye"`
}

// Resolve is a pure lookup over the input; it never fails.
func Resolve(in Input) View {
	switch in.Tournament {
	case tournament.TournamentFinished, tournament.TournamentCancelled:
		return ViewFinalStandings
	case tournament.TournamentOpen:
		return ViewOpenRegistration
	}
	if in.Round == nil {
		return ViewOpenRegistration
	}

	onBye := in.Role == RolePlayer && in.OnBye

	switch *in.Round {
	case tournament.RoundAwaitingPairing:
		return ViewPairingInProgress
	case tournament.RoundPaired:
		if onBye {
			return ViewByeNotice
		}
		return ViewPairingInProgress
	case tournament.RoundActive:
		switch {
		case in.Role == RoleOrganizer:
			return ViewActiveMatchEntry
		case onBye:
			return ViewByeNotice
		case in.Role == RolePlayer && in.HasTable && (in.Table == nil || *in.Table != tournament.TableFinished):
			return ViewActiveMatchEntry
		}
		return ViewRoundInterval
	default:
		return ViewRoundInterval
	}
}
