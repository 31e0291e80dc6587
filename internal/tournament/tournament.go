package tournament

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultWinPoints  = 3
	DefaultDrawPoints = 1
	DefaultLossPoints = 0
	DefaultByePoints  = 3
)

type Tournament struct {
	ID      uuid.UUID        `db:"id" json:"id"`
	OwnerID uuid.UUID        `db:"owner_id" json:"owner_id"`
	Name    string           `db:"name" json:"name"`
	Status  TournamentStatus `db:"status" json:"status"`

	// Scoring weights, all non-negative
	WinPoints  int `db:"win_points" json:"win_points"`
	DrawPoints int `db:"draw_points" json:"draw_points"`
	LossPoints int `db:"loss_points" json:"loss_points"`
	ByePoints  int `db:"bye_points" json:"bye_points"`

	RoundCount *int `db:"round_count" json:"round_count,omitempty"`
	Capacity   *int `db:"capacity" json:"capacity,omitempty"`
	IsFree     bool `db:"is_free" json:"is_free"`

	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

type Registration struct {
	ID           uuid.UUID          `db:"id" json:"id"`
	TournamentID uuid.UUID          `db:"tournament_id" json:"tournament_id"`
	PlayerID     uuid.UUID          `db:"player_id" json:"player_id"`
	Status       RegistrationStatus `db:"status" json:"status"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
}

func (r Registration) IsActive() bool {
	return r.Status == RegistrationActive
}

type Round struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	TournamentID uuid.UUID  `db:"tournament_id" json:"tournament_id"`
	Number       int        `db:"number" json:"number"`
	State        RoundState `db:"state" json:"state"`
	Version      int        `db:"version" json:"version"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// ActivePlayerIDs returns the player ids of the active registrations, in input order.
func ActivePlayerIDs(registrations []Registration) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(registrations))
	for _, r := range registrations {
		if r.IsActive() {
			ids = append(ids, r.PlayerID)
		}
	}
	return ids
}
