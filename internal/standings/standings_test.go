package standings

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdamBeresnev/duplas/internal/tournament"
	"github.com/AdamBeresnev/duplas/internal/utils"
)

var defaultWeights = Weights{Win: 3, Draw: 1, Loss: 0, Bye: 3}

func players(n int) []uuid.UUID {
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
	}
	return ids
}

func byPlayer(entries []StandingEntry) map[uuid.UUID]StandingEntry {
	return Index(entries)
}

func TestComputeSingleTable(t *testing.T) {
	p := players(4)
	h := History{
		Weights: defaultWeights,
		Players: p,
		Rounds: []RoundRecord{{Number: 1, Tables: []TableRecord{
			{Side1: p[:2], Side2: p[2:], WinningSide: utils.Ptr(tournament.SideOne)},
		}}},
	}

	got := byPlayer(Compute(h))
	require.Len(t, got, 4)

	for _, id := range p[:2] {
		assert.Equal(t, 3, got[id].Points)
		assert.Equal(t, 1.0, got[id].MW)
		assert.Equal(t, 0.0, got[id].OMW)
		assert.Equal(t, 1.0, got[id].PMW)
		assert.Equal(t, -1.0, got[id].Balance)
		assert.Equal(t, Unfavorable, got[id].Classification)
	}
	for _, id := range p[2:] {
		assert.Equal(t, 0, got[id].Points)
		assert.Equal(t, 0.0, got[id].MW)
		assert.Equal(t, 1, got[id].Losses)
		assert.Equal(t, 1.0, got[id].Balance)
		assert.Equal(t, Favorable, got[id].Classification)
	}
}

func TestComputeByeCountsAsWin(t *testing.T) {
	p := players(5)
	h := History{
		Weights: defaultWeights,
		Players: p,
		Rounds: []RoundRecord{{Number: 1, Tables: []TableRecord{
			{Side1: p[:2], Side2: p[2:4], WinningSide: utils.Ptr(tournament.SideOne)},
			{Bye: true, Side1: p[4:], WinningSide: utils.Ptr(tournament.SideOne)},
		}}},
	}

	entries := Compute(h)
	got := byPlayer(entries)

	bye := got[p[4]]
	assert.Equal(t, 3, bye.Points)
	assert.Equal(t, 1, bye.Played)
	assert.Equal(t, 1, bye.Byes)
	assert.Equal(t, 1.0, bye.MW)
	assert.Equal(t, 0.0, bye.Balance)

	// Same points as the winners, but a better balance.
	assert.Equal(t, p[4], entries[0].PlayerID)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, 5, entries[4].Rank)
}

func TestComputeDrawAndUnreported(t *testing.T) {
	p := players(8)
	h := History{
		Weights: defaultWeights,
		Players: p,
		Rounds: []RoundRecord{{Number: 1, Tables: []TableRecord{
			{Side1: p[:2], Side2: p[2:4], WinningSide: utils.Ptr(tournament.Draw)},
			{Side1: p[4:6], Side2: p[6:8]},
		}}},
	}

	got := byPlayer(Compute(h))
	for _, id := range p[:4] {
		assert.Equal(t, 1, got[id].Points)
		assert.Equal(t, 1, got[id].Draws)
		assert.Equal(t, 0.0, got[id].MW, "draws are not wins")
	}
	for _, id := range p[4:] {
		assert.Equal(t, 0, got[id].Played)
		assert.Equal(t, 0.0, got[id].OMW)
	}
}

func TestComputeKeepsPlayersOutsideRoster(t *testing.T) {
	p := players(4)
	h := History{
		Weights: defaultWeights,
		Players: p[:3],
		Rounds: []RoundRecord{{Number: 1, Tables: []TableRecord{
			{Side1: p[:2], Side2: p[2:], WinningSide: utils.Ptr(tournament.SideTwo)},
		}}},
	}

	got := byPlayer(Compute(h))
	require.Contains(t, got, p[3])
	assert.Equal(t, 3, got[p[3]].Points)
}

func TestComputeRounding(t *testing.T) {
	p := players(4)
	win1 := utils.Ptr(tournament.SideOne)
	h := History{
		Weights: defaultWeights,
		Players: p,
		Rounds: []RoundRecord{
			{Number: 1, Tables: []TableRecord{{Side1: []uuid.UUID{p[0], p[1]}, Side2: []uuid.UUID{p[2], p[3]}, WinningSide: win1}}},
			{Number: 2, Tables: []TableRecord{{Side1: []uuid.UUID{p[0], p[2]}, Side2: []uuid.UUID{p[1], p[3]}, WinningSide: win1}}},
			{Number: 3, Tables: []TableRecord{{Side1: []uuid.UUID{p[0], p[3]}, Side2: []uuid.UUID{p[1], p[2]}, WinningSide: win1}}},
		},
	}

	got := byPlayer(Compute(h))
	assert.Equal(t, 1.0, got[p[0]].MW)
	assert.Equal(t, 0.3333, got[p[1]].MW)
	assert.Equal(t, 0.3333, got[p[3]].MW)
	// opponents of p1 are p0, p2 and p3: (1 + 1/3 + 1/3) / 3
	assert.Equal(t, 0.5556, got[p[1]].OMW)
}

func TestComputeBalanceFromOpponentsAndPartners(t *testing.T) {
	p := players(9)
	me, partner, strong, fair := p[0], p[1], p[2], p[3]
	w, x, y, z := p[4], p[5], p[6], p[7]
	side2 := utils.Ptr(tournament.SideTwo)
	bye := func(id uuid.UUID) TableRecord {
		return TableRecord{Bye: true, Side1: []uuid.UUID{id}, WinningSide: utils.Ptr(tournament.SideOne)}
	}

	// partner ends on 2/5, strong on 4/5 and fair on 3/5
	h := History{
		Weights: defaultWeights,
		Players: p,
		Rounds: []RoundRecord{
			{Number: 1, Tables: []TableRecord{
				{Side1: []uuid.UUID{me, partner}, Side2: []uuid.UUID{strong, fair}, WinningSide: side2},
			}},
			{Number: 2, Tables: []TableRecord{
				{Side1: []uuid.UUID{partner, strong}, Side2: []uuid.UUID{x, y}, WinningSide: side2},
				bye(fair),
			}},
			{Number: 3, Tables: []TableRecord{
				{Side1: []uuid.UUID{partner, fair}, Side2: []uuid.UUID{x, y}, WinningSide: side2},
				bye(strong),
			}},
			{Number: 4, Tables: []TableRecord{
				{Side1: []uuid.UUID{fair, z}, Side2: []uuid.UUID{x, w}, WinningSide: side2},
				bye(partner), bye(strong),
			}},
			{Number: 5, Tables: []TableRecord{bye(partner), bye(strong), bye(fair)}},
		},
	}

	got := byPlayer(Compute(h))
	assert.Equal(t, 0.4, got[partner].MW)
	assert.Equal(t, 0.8, got[strong].MW)
	assert.Equal(t, 0.6, got[fair].MW)

	mine := got[me]
	assert.Equal(t, 0.7, mine.OMW)
	assert.Equal(t, 0.4, mine.PMW)
	assert.Equal(t, 0.3, mine.Balance)
	assert.Equal(t, Favorable, mine.Classification)
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		name    string
		balance float64
		want    Classification
	}{
		{name: "strong opponents weak partners", balance: round4(0.70 - 0.40), want: Favorable},
		{name: "threshold is neutral", balance: 0.05, want: Neutral},
		{name: "negative threshold is neutral", balance: -0.05, want: Neutral},
		{name: "just above", balance: 0.0501, want: Favorable},
		{name: "just below", balance: -0.0501, want: Unfavorable},
		{name: "zero", balance: 0, want: Neutral},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.balance))
		})
	}
	assert.Equal(t, 0.30, round4(0.70-0.40))
}

func TestOrderingIsTotalAndConsistent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	p := players(12)
	h := History{Weights: defaultWeights, Players: p}

	for n := 1; n <= 5; n++ {
		shuffled := append([]uuid.UUID(nil), p...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		round := RoundRecord{Number: n}
		for i := 0; i+4 <= len(shuffled); i += 4 {
			round.Tables = append(round.Tables, TableRecord{
				Side1:       shuffled[i : i+2],
				Side2:       shuffled[i+2 : i+4],
				WinningSide: utils.Ptr(rng.Intn(3)),
			})
		}
		h.Rounds = append(h.Rounds, round)
	}

	entries := Compute(h)
	require.Len(t, entries, 12)
	assert.True(t, sort.SliceIsSorted(entries, func(i, j int) bool { return Less(entries[i], entries[j]) }))

	for i := range entries {
		assert.Equal(t, i+1, entries[i].Rank)
		assert.False(t, Less(entries[i], entries[i]), "irreflexive")
		for j := range entries {
			if i != j {
				assert.NotEqual(t, Less(entries[i], entries[j]), Less(entries[j], entries[i]), "asymmetric and total")
			}
		}
	}

	again := Compute(h)
	assert.Equal(t, entries, again, "deterministic")
}
