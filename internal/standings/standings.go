// Package standings computes the Swiss table for a tournament from its reported results.
package standings

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/AdamBeresnev/duplas/internal/tournament"
)

// BalanceThreshold separates a neutral draw of partners and opponents from a lopsided one.
const BalanceThreshold = 0.05

type Classification string

const (
	Favorable   Classification = "favorable"
	Neutral     Classification = "neutral"
	Unfavorable Classification = "unfavorable"
)

type Weights struct {
	Win  int `json:"win"`
	Draw int `json:"draw"`
	Loss int `json:"loss"`
	Bye  int `json:"bye"`
}

func WeightsOf(t *tournament.Tournament) Weights {
	return Weights{Win: t.WinPoints, Draw: t.DrawPoints, Loss: t.LossPoints, Bye: t.ByePoints}
}

// TableRecord is one table of a round as seen by the calculator. An unreported table
// has a nil WinningSide and is ignored.
type TableRecord struct {
	Bye         bool
	Side1       []uuid.UUID
	Side2       []uuid.UUID
	WinningSide *int
}

type RoundRecord struct {
	Number int
	Tables []TableRecord
}

type History struct {
	Weights Weights
	// Players always appear in the output, even without any reported table.
	Players []uuid.UUID
	Rounds  []RoundRecord
}

type StandingEntry struct {
	PlayerID uuid.UUID `json:"player_id"`
	Rank     int       `json:"rank"`
	Points   int       `json:"points"`

	Played int `json:"played"`
	Wins   int `json:"wins"`
	Draws  int `json:"draws"`
	Losses int `json:"losses"`
	Byes   int `json:"byes"`

	MW      float64 `json:"match_win_pct"`
	OMW     float64 `json:"opponent_match_win_pct"`
	PMW     float64 `json:"partner_match_win_pct"`
	Balance float64 `json:"balance"`

	Classification Classification `json:"classification"`
}

// RecordsFromTables converts stored tables into calculator input.
func RecordsFromTables(number int, tables []tournament.Table) RoundRecord {
	rec := RoundRecord{Number: number, Tables: make([]TableRecord, 0, len(tables))}
	for i := range tables {
		t := &tables[i]
		rec.Tables = append(rec.Tables, TableRecord{
			Bye:         t.IsBye(),
			Side1:       t.Side(tournament.SideOne),
			Side2:       t.Side(tournament.SideTwo),
			WinningSide: t.WinningSide,
		})
	}
	return rec
}

type tally struct {
	entry     StandingEntry
	opponents map[uuid.UUID]struct{}
	partners  map[uuid.UUID]struct{}
}

func Compute(h History) []StandingEntry {
	tallies := make(map[uuid.UUID]*tally, len(h.Players))
	get := func(id uuid.UUID) *tally {
		t, ok := tallies[id]
		if !ok {
			t = &tally{
				entry:     StandingEntry{PlayerID: id},
				opponents: make(map[uuid.UUID]struct{}),
				partners:  make(map[uuid.UUID]struct{}),
			}
			tallies[id] = t
		}
		return t
	}
	for _, id := range h.Players {
		get(id)
	}

	for _, round := range h.Rounds {
		for _, table := range round.Tables {
			if table.WinningSide == nil {
				continue
			}
			if table.Bye {
				for _, id := range table.Side1 {
					t := get(id)
					t.entry.Played++
					t.entry.Wins++
					t.entry.Byes++
					t.entry.Points += h.Weights.Bye
				}
				continue
			}
			score(h.Weights, get, table.Side1, table.Side2, *table.WinningSide, tournament.SideOne)
			score(h.Weights, get, table.Side2, table.Side1, *table.WinningSide, tournament.SideTwo)
		}
	}

	mw := make(map[uuid.UUID]float64, len(tallies))
	for id, t := range tallies {
		if t.entry.Played > 0 {
			mw[id] = float64(t.entry.Wins) / float64(t.entry.Played)
		}
	}

	out := make([]StandingEntry, 0, len(tallies))
	for id, t := range tallies {
		e := t.entry
		omw := meanOf(mw, t.opponents)
		pmw := meanOf(mw, t.partners)
		e.MW = round4(mw[id])
		e.OMW = round4(omw)
		e.PMW = round4(pmw)
		e.Balance = round4(omw - pmw)
		e.Classification = Classify(e.Balance)
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool { return Less(out[i], out[j]) })
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func score(w Weights, get func(uuid.UUID) *tally, side, other []uuid.UUID, winner, mine int) {
	for _, id := range side {
		t := get(id)
		t.entry.Played++
		switch winner {
		case tournament.Draw:
			t.entry.Draws++
			t.entry.Points += w.Draw
		case mine:
			t.entry.Wins++
			t.entry.Points += w.Win
		default:
			t.entry.Losses++
			t.entry.Points += w.Loss
		}
		for _, p := range side {
			if p != id {
				t.partners[p] = struct{}{}
			}
		}
		for _, o := range other {
			t.opponents[o] = struct{}{}
		}
	}
}

func meanOf(mw map[uuid.UUID]float64, ids map[uuid.UUID]struct{}) float64 {
	if len(ids) == 0 {
		return 0
	}
	var sum float64
	for id := range ids {
		sum += mw[id]
	}
	return sum / float64(len(ids))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// Less orders entries best first: points, balance, OMW, MW, PMW, all descending,
// with the player id as the final ascending tie-break.
func Less(a, b StandingEntry) bool {
	if a.Points != b.Points {
		return a.Points > b.Points
	}
	if a.Balance != b.Balance {
		return a.Balance > b.Balance
	}
	if a.OMW != b.OMW {
		return a.OMW > b.OMW
	}
	if a.MW != b.MW {
		return a.MW > b.MW
	}
	if a.PMW != b.PMW {
		return a.PMW > b.PMW
	}
	return a.PlayerID.String() < b.PlayerID.String()
}

func Classify(balance float64) Classification {
	switch {
	case balance > BalanceThreshold:
		return Favorable
	case balance < -BalanceThreshold:
		return Unfavorable
	default:
		return Neutral
	}
}

// Index maps entries by player for lookups during pairing.
func Index(entries []StandingEntry) map[uuid.UUID]StandingEntry {
	idx := make(map[uuid.UUID]StandingEntry, len(entries))
	for _, e := range entries {
		idx[e.PlayerID] = e
	}
	return idx
}
