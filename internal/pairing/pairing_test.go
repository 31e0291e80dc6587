package pairing

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdamBeresnev/duplas/internal/standings"
	"github.com/AdamBeresnev/duplas/internal/tournament"
)

var weights = standings.Weights{Win: 3, Draw: 1, Loss: 0, Bye: 3}

func sortedPlayers(n int) []uuid.UUID {
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
	}
	sort.Slice(ids, func(i, j int) bool { return idLess(ids[i], ids[j]) })
	return ids
}

// record turns a pairing into a finished round where side one always wins.
func record(number int, res *Result) standings.RoundRecord {
	tables := res.Tables(uuid.New())
	for i := range tables {
		if !tables[i].IsReported() {
			side := tournament.SideOne
			tables[i].WinningSide = &side
		}
	}
	return standings.RecordsFromTables(number, tables)
}

func playRounds(t *testing.T, players []uuid.UUID, rounds int) ([]*Result, standings.History) {
	t.Helper()
	h := standings.History{Weights: weights, Players: players}
	var results []*Result
	for n := 1; n <= rounds; n++ {
		res, err := Pair(Input{Players: players, Standings: standings.Compute(h), History: h})
		require.NoError(t, err)
		results = append(results, res)
		h.Rounds = append(h.Rounds, record(n, res))
	}
	return results, h
}

func TestPairRejectsSmallField(t *testing.T) {
	_, err := Pair(Input{Players: sortedPlayers(3)})
	require.ErrorIs(t, err, tournament.ErrInsufficientPlayers)
}

func TestPairRejectsDuplicatePlayer(t *testing.T) {
	p := sortedPlayers(4)
	_, err := Pair(Input{Players: append(p, p[0])})
	require.ErrorIs(t, err, tournament.ErrInvalidInput)
}

func TestPairFourPlayers(t *testing.T) {
	p := sortedPlayers(4)
	res, err := Pair(Input{Players: p})
	require.NoError(t, err)

	require.Len(t, res.Matches, 1)
	assert.Empty(t, res.Byes)
	assert.Equal(t, Team{p[0], p[3]}, res.Matches[0].Side1)
	assert.Equal(t, Team{p[1], p[2]}, res.Matches[0].Side2)
}

func TestPairFivePlayersGivesOneBye(t *testing.T) {
	p := sortedPlayers(5)
	res, err := Pair(Input{Players: p})
	require.NoError(t, err)

	tables := res.Tables(uuid.New())
	require.Len(t, tables, 2)
	assert.Equal(t, 1, tables[0].Number)
	assert.True(t, tables[0].IsComplete())

	bye := tables[1]
	assert.Equal(t, tournament.ByeTableNumber, bye.Number)
	require.Len(t, bye.Seats, 1)
	assert.True(t, bye.IsReported())
	assert.Equal(t, tournament.TableFinished, bye.State())

	// Without any standings the lowest placed player sits out.
	assert.Equal(t, p[4], bye.Seats[0].PlayerID)
}

func TestPairRosterInvariant(t *testing.T) {
	for n := 4; n <= 13; n++ {
		p := sortedPlayers(n)
		results, _ := playRounds(t, p, 3)
		for _, res := range results {
			assert.Len(t, res.Byes, n%4, "n=%d", n)
			assert.Len(t, res.Matches, n/4, "n=%d", n)
			require.NoError(t, tournament.CheckRoster(res.Tables(uuid.New()), p, true), "n=%d", n)
		}
	}
}

func TestPairRotatesByes(t *testing.T) {
	p := sortedPlayers(5)
	results, h := playRounds(t, p, 5)

	counts := make(map[uuid.UUID]int)
	for _, res := range results {
		require.Len(t, res.Byes, 1)
		counts[res.Byes[0]]++
	}
	for _, id := range p {
		assert.Equal(t, 1, counts[id], "every player sits out exactly once in five rounds")
	}

	for _, e := range standings.Compute(h) {
		assert.Equal(t, 1, e.Byes)
	}
}

func TestPairAvoidsRepeatPartnersInSecondRound(t *testing.T) {
	for n := 8; n <= 13; n++ {
		p := sortedPlayers(n)
		results, _ := playRounds(t, p, 2)

		first := make(map[pairKey]bool)
		for _, m := range results[0].Matches {
			first[keyOf(m.Side1[0], m.Side1[1])] = true
			first[keyOf(m.Side2[0], m.Side2[1])] = true
		}
		for _, m := range results[1].Matches {
			assert.False(t, first[keyOf(m.Side1[0], m.Side1[1])], "n=%d", n)
			assert.False(t, first[keyOf(m.Side2[0], m.Side2[1])], "n=%d", n)
		}
	}
}

func TestPairGroupsByStanding(t *testing.T) {
	p := sortedPlayers(8)
	// Reverse the id order through standings so ranking, not ids, drives the grouping.
	var prior []standings.StandingEntry
	for i, id := range p {
		prior = append(prior, standings.StandingEntry{PlayerID: id, Points: i})
	}

	res, err := Pair(Input{Players: p, Standings: prior})
	require.NoError(t, err)
	require.Len(t, res.Matches, 2)

	top := res.Matches[0]
	assert.Equal(t, Team{p[7], p[4]}, top.Side1)
	assert.Equal(t, Team{p[6], p[5]}, top.Side2)
	assert.Zero(t, top.Repeats)
}

func TestPairCountsUnavoidableRepeats(t *testing.T) {
	p := sortedPlayers(4)
	results, _ := playRounds(t, p, 4)

	// Four players can only be split three ways: the first three rounds use each
	// partnership once, the fourth has to reuse one.
	partnerships := make(map[pairKey]int)
	for _, res := range results[:3] {
		m := res.Matches[0]
		partnerships[keyOf(m.Side1[0], m.Side1[1])]++
		partnerships[keyOf(m.Side2[0], m.Side2[1])]++
	}
	assert.Len(t, partnerships, 6)

	assert.Zero(t, results[0].Matches[0].Repeats)
	assert.Positive(t, results[1].Matches[0].Repeats)
	assert.GreaterOrEqual(t, results[3].Matches[0].Repeats, 1)
}

func TestPairFirstRoundShuffle(t *testing.T) {
	p := sortedPlayers(12)

	a, err := Pair(Input{Players: p, Rand: rand.New(rand.NewSource(42))})
	require.NoError(t, err)
	b, err := Pair(Input{Players: p, Rand: rand.New(rand.NewSource(42))})
	require.NoError(t, err)
	assert.Equal(t, a, b, "same seed, same pairing")

	reversed := append([]uuid.UUID(nil), p...)
	sort.Slice(reversed, func(i, j int) bool { return idLess(reversed[j], reversed[i]) })
	c, err := Pair(Input{Players: reversed, Rand: rand.New(rand.NewSource(42))})
	require.NoError(t, err)
	assert.Equal(t, a, c, "input order does not leak into a seeded shuffle")
}
