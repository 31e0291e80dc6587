package tournament

import (
	"time"

	"github.com/google/uuid"
)

// ByeTableNumber marks a table with a single unopposed player.
const ByeTableNumber = 0

const (
	SideOne = 1
	SideTwo = 2

	// WinningSide value for a drawn table.
	Draw = 0

	PlayersPerSide  = 2
	PlayersPerTable = 2 * PlayersPerSide
)

type Seat struct {
	TableID  uuid.UUID `db:"table_id" json:"table_id"`
	PlayerID uuid.UUID `db:"player_id" json:"player_id"`
	Side     int       `db:"side" json:"side"`
}

type Table struct {
	ID      uuid.UUID `db:"id" json:"id"`
	RoundID uuid.UUID `db:"round_id" json:"round_id"`
	Number  int       `db:"number" json:"number"`

	Score1 int `db:"score_1" json:"score_1"`
	Score2 int `db:"score_2" json:"score_2"`

	// nil until a result is reported; 0 draw, 1 or 2 for the winning side
	WinningSide *int       `db:"winning_side" json:"winning_side,omitempty"`
	ReportedAt  *time.Time `db:"reported_at" json:"reported_at,omitempty"`

	Seats []Seat `db:"-" json:"seats"`
}

func (t *Table) IsBye() bool {
	return t.Number == ByeTableNumber
}

func (t *Table) IsReported() bool {
	return t.WinningSide != nil
}

// Side returns the players seated on the given side.
func (t *Table) Side(side int) []uuid.UUID {
	var ids []uuid.UUID
	for _, s := range t.Seats {
		if s.Side == side {
			ids = append(ids, s.PlayerID)
		}
	}
	return ids
}

func (t *Table) Players() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(t.Seats))
	for _, s := range t.Seats {
		ids = append(ids, s.PlayerID)
	}
	return ids
}

// SeatOf returns the side the player sits on, or 0 when they are not at this table.
func (t *Table) SeatOf(playerID uuid.UUID) int {
	for _, s := range t.Seats {
		if s.PlayerID == playerID {
			return s.Side
		}
	}
	return 0
}

// Capacity is the number of players a side may hold. A bye table only has side one,
// with room for its single player.
func (t *Table) Capacity(side int) int {
	if t.IsBye() {
		if side == SideOne {
			return 1
		}
		return 0
	}
	return PlayersPerSide
}

func (t *Table) HasRoom(side int) bool {
	return len(t.Side(side)) < t.Capacity(side)
}

// IsComplete reports whether the table can be played: 2v2, or one player for a bye.
func (t *Table) IsComplete() bool {
	if t.IsBye() {
		return len(t.Side(SideOne)) == 1 && len(t.Side(SideTwo)) == 0
	}
	return len(t.Side(SideOne)) == PlayersPerSide && len(t.Side(SideTwo)) == PlayersPerSide
}

// State derives the canonical table state from the table's own data.
func (t *Table) State() TableState {
	switch {
	case t.IsReported():
		return TableFinished
	case !t.IsComplete():
		return TableNeedsReview
	default:
		return TableInProgress
	}
}

// FindSeat locates a player among the round's tables.
func FindSeat(tables []Table, playerID uuid.UUID) (*Table, int, bool) {
	for i := range tables {
		if side := tables[i].SeatOf(playerID); side != 0 {
			return &tables[i], side, true
		}
	}
	return nil, 0, false
}
