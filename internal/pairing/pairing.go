// Package pairing builds the tables of a Swiss round for 2v2 play.
//
// Players are ranked by standing and grouped greedily: the best remaining player
// anchors a table and takes the three companions, out of the next few ranked players,
// that repeat the fewest earlier partnerships and match-ups. Players that do not fill
// a table of four sit out on a bye.
package pairing

import (
	"bytes"
	"fmt"
	"math/rand"
	"sort"

	"github.com/google/uuid"

	"github.com/AdamBeresnev/duplas/internal/standings"
	"github.com/AdamBeresnev/duplas/internal/tournament"
)

const (
	// Companions for an anchor are chosen among this many of the next ranked players.
	lookahead = 6

	partnerPenalty  = 10
	opponentPenalty = 1
)

type Input struct {
	Players []uuid.UUID
	// Standings before this round; players missing from it are treated as unplaced.
	Standings []standings.StandingEntry
	// Previous rounds, used to spot repeats and to rotate byes.
	History standings.History
	// Shuffles the order of a first round. nil keeps the order deterministic.
	Rand *rand.Rand
}

type Team [tournament.PlayersPerSide]uuid.UUID

type Match struct {
	Side1 Team `json:"side_1"`
	Side2 Team `json:"side_2"`
	// Repeats counts the earlier partner and opponent pairings reused by this match.
	Repeats int `json:"repeats"`
}

type Result struct {
	Matches []Match     `json:"matches"`
	Byes    []uuid.UUID `json:"byes"`
}

// Pair proposes the tables for the next round.
func Pair(in Input) (*Result, error) {
	if len(in.Players) < tournament.PlayersPerTable {
		return nil, fmt.Errorf("%w: pairing needs at least %d active players, got %d",
			tournament.ErrInsufficientPlayers, tournament.PlayersPerTable, len(in.Players))
	}

	seen := make(map[uuid.UUID]bool, len(in.Players))
	for _, id := range in.Players {
		if seen[id] {
			return nil, fmt.Errorf("%w: player %s listed twice", tournament.ErrInvalidInput, id)
		}
		seen[id] = true
	}

	enc := newEncounters(in.History)
	order := rankOrder(in)

	byes := pickByes(order, enc, standings.Index(in.Standings), len(order)%tournament.PlayersPerTable)
	remaining := make([]uuid.UUID, 0, len(order)-len(byes))
	for _, id := range order {
		if !containsID(byes, id) {
			remaining = append(remaining, id)
		}
	}

	res := &Result{Byes: byes}
	for len(remaining) > 0 {
		m, used := bestTable(remaining, enc)
		res.Matches = append(res.Matches, m)
		remaining = without(remaining, used)
	}

	if err := tournament.CheckRoster(res.Tables(uuid.Nil), in.Players, true); err != nil {
		return nil, err
	}
	return res, nil
}

// Tables lays the result out as round tables numbered from 1. Each bye gets its own
// table numbered 0 with its result already recorded, so it never holds the round open.
func (r *Result) Tables(roundID uuid.UUID) []tournament.Table {
	tables := make([]tournament.Table, 0, len(r.Matches)+len(r.Byes))
	for i, m := range r.Matches {
		t := tournament.Table{ID: uuid.New(), RoundID: roundID, Number: i + 1}
		for _, id := range m.Side1 {
			t.Seats = append(t.Seats, tournament.Seat{TableID: t.ID, PlayerID: id, Side: tournament.SideOne})
		}
		for _, id := range m.Side2 {
			t.Seats = append(t.Seats, tournament.Seat{TableID: t.ID, PlayerID: id, Side: tournament.SideTwo})
		}
		tables = append(tables, t)
	}
	for _, id := range r.Byes {
		tables = append(tables, ByeTable(roundID, id))
	}
	return tables
}

// ByeTable seats a single player unopposed, already scored as a win for side one.
func ByeTable(roundID, playerID uuid.UUID) tournament.Table {
	side := tournament.SideOne
	t := tournament.Table{
		ID:          uuid.New(),
		RoundID:     roundID,
		Number:      tournament.ByeTableNumber,
		WinningSide: &side,
	}
	t.Seats = []tournament.Seat{{TableID: t.ID, PlayerID: playerID, Side: tournament.SideOne}}
	return t
}

// rankOrder sorts the players best first. A first round with a random source is
// shuffled instead.
func rankOrder(in Input) []uuid.UUID {
	order := append([]uuid.UUID(nil), in.Players...)

	if len(in.History.Rounds) == 0 && in.Rand != nil {
		sort.Slice(order, func(i, j int) bool { return idLess(order[i], order[j]) })
		in.Rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		return order
	}

	idx := standings.Index(in.Standings)
	sort.Slice(order, func(i, j int) bool {
		a, b := entryFor(idx, order[i]), entryFor(idx, order[j])
		return standings.Less(a, b)
	})
	return order
}

func entryFor(idx map[uuid.UUID]standings.StandingEntry, id uuid.UUID) standings.StandingEntry {
	if e, ok := idx[id]; ok {
		return e
	}
	return standings.StandingEntry{PlayerID: id}
}

// pickByes takes the players with the fewest byes so far, then the lowest points, then
// the lowest position in order.
func pickByes(order []uuid.UUID, enc *encounters, idx map[uuid.UUID]standings.StandingEntry, n int) []uuid.UUID {
	if n == 0 {
		return nil
	}
	pos := make(map[uuid.UUID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}

	candidates := append([]uuid.UUID(nil), order...)
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if enc.byes[a] != enc.byes[b] {
			return enc.byes[a] < enc.byes[b]
		}
		if pa, pb := idx[a].Points, idx[b].Points; pa != pb {
			return pa < pb
		}
		if pos[a] != pos[b] {
			return pos[a] > pos[b]
		}
		return idLess(a, b)
	})
	return candidates[:n]
}

type split struct {
	side1, side2 [2]int
}

// Order matters: on equal cost the first split wins, pairing the strongest with the
// weakest of the four.
var splits = [3]split{
	{side1: [2]int{0, 3}, side2: [2]int{1, 2}},
	{side1: [2]int{0, 2}, side2: [2]int{1, 3}},
	{side1: [2]int{0, 1}, side2: [2]int{2, 3}},
}

// bestTable anchors a table on the first ranked player and chooses its companions.
func bestTable(ranked []uuid.UUID, enc *encounters) (Match, []uuid.UUID) {
	anchor := ranked[0]
	window := ranked[1:]
	if len(window) > lookahead {
		window = window[:lookahead]
	}

	var (
		best     Match
		bestUsed []uuid.UUID
		bestCost = -1
	)
	for i := 0; i < len(window); i++ {
		for j := i + 1; j < len(window); j++ {
			for k := j + 1; k < len(window); k++ {
				group := [4]uuid.UUID{anchor, window[i], window[j], window[k]}
				distance := i + j + k - 3
				for si, s := range splits {
					m := Match{
						Side1: Team{group[s.side1[0]], group[s.side1[1]]},
						Side2: Team{group[s.side2[0]], group[s.side2[1]]},
					}
					penalty, repeats := enc.penalty(m)
					cost := penalty*1000 + distance*len(splits) + si
					if bestCost < 0 || cost < bestCost {
						m.Repeats = repeats
						best, bestCost = m, cost
						bestUsed = group[:]
					}
				}
			}
		}
	}
	return best, bestUsed
}

type pairKey [2]uuid.UUID

func keyOf(a, b uuid.UUID) pairKey {
	if idLess(b, a) {
		a, b = b, a
	}
	return pairKey{a, b}
}

type encounters struct {
	partners  map[pairKey]int
	opponents map[pairKey]int
	byes      map[uuid.UUID]int
}

func newEncounters(h standings.History) *encounters {
	enc := &encounters{
		partners:  make(map[pairKey]int),
		opponents: make(map[pairKey]int),
		byes:      make(map[uuid.UUID]int),
	}
	for _, round := range h.Rounds {
		for _, t := range round.Tables {
			if t.Bye {
				for _, id := range t.Side1 {
					enc.byes[id]++
				}
				continue
			}
			enc.addTeam(t.Side1)
			enc.addTeam(t.Side2)
			for _, a := range t.Side1 {
				for _, b := range t.Side2 {
					enc.opponents[keyOf(a, b)]++
				}
			}
		}
	}
	return enc
}

func (e *encounters) addTeam(team []uuid.UUID) {
	for i := 0; i < len(team); i++ {
		for j := i + 1; j < len(team); j++ {
			e.partners[keyOf(team[i], team[j])]++
		}
	}
}

func (e *encounters) penalty(m Match) (int, int) {
	var penalty, repeats int
	for _, team := range []Team{m.Side1, m.Side2} {
		if e.partners[keyOf(team[0], team[1])] > 0 {
			penalty += partnerPenalty
			repeats++
		}
	}
	for _, a := range m.Side1 {
		for _, b := range m.Side2 {
			if e.opponents[keyOf(a, b)] > 0 {
				penalty += opponentPenalty
				repeats++
			}
		}
	}
	return penalty, repeats
}

func idLess(a, b uuid.UUID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func without(ids, drop []uuid.UUID) []uuid.UUID {
	out := ids[:0:0]
	for _, id := range ids {
		if !containsID(drop, id) {
			out = append(out, id)
		}
	}
	return out
}
