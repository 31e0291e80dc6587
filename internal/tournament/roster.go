package tournament

import (
	"fmt"

	"github.com/google/uuid"
)

// CheckRoster verifies that every active player sits exactly once across the round's
// tables and that nobody else does. With requireComplete, every table must also be
// playable (2v2, or a single player on a bye).
func CheckRoster(tables []Table, active []uuid.UUID, requireComplete bool) error {
	expected := make(map[uuid.UUID]bool, len(active))
	for _, id := range active {
		expected[id] = true
	}

	seen := make(map[uuid.UUID]int, len(active))
	for i := range tables {
		t := &tables[i]
		for _, s := range t.Seats {
			if prev, dup := seen[s.PlayerID]; dup {
				return fmt.Errorf("%w: player %s is seated at table %d and table %d",
					ErrRosterInvariantViolation, s.PlayerID, prev, t.Number)
			}
			if !expected[s.PlayerID] {
				return fmt.Errorf("%w: player %s at table %d has no active registration",
					ErrRosterInvariantViolation, s.PlayerID, t.Number)
			}
			seen[s.PlayerID] = t.Number
		}
		if requireComplete && !t.IsComplete() {
			return fmt.Errorf("%w: table %d has %d v %d players",
				ErrRosterInvariantViolation, t.Number, len(t.Side(SideOne)), len(t.Side(SideTwo)))
		}
	}

	var missing int
	for id := range expected {
		if _, ok := seen[id]; !ok {
			missing++
		}
	}
	if missing > 0 {
		return fmt.Errorf("%w: %d active player(s) are not seated at any table",
			ErrRosterInvariantViolation, missing)
	}
	return nil
}

// Unseated returns the active players that have no seat in the round, in input order.
func Unseated(tables []Table, active []uuid.UUID) []uuid.UUID {
	seated := make(map[uuid.UUID]bool)
	for i := range tables {
		for _, s := range tables[i].Seats {
			seated[s.PlayerID] = true
		}
	}
	var out []uuid.UUID
	for _, id := range active {
		if !seated[id] {
			out = append(out, id)
		}
	}
	return out
}
