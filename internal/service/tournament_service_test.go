package service

import (
	"errors"
	"testing"

	"github.com/AdamBeresnev/duplas/internal/live"
	"github.com/AdamBeresnev/duplas/internal/standings"
	"github.com/AdamBeresnev/duplas/internal/tournament"
	"github.com/AdamBeresnev/duplas/internal/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTournament(t *testing.T) {
	f := newFixture(t)

	tm, err := f.tournaments.CreateTournament(f.ctx, f.ownerID, CreateTournamentInput{
		Name:      "  Sunday league ",
		ByePoints: utils.Ptr(2),
		Capacity:  utils.Ptr(16),
	})
	require.NoError(t, err)
	assert.Equal(t, "Sunday league", tm.Name)
	assert.Equal(t, tournament.TournamentOpen, tm.Status)
	assert.Equal(t, tournament.DefaultWinPoints, tm.WinPoints)
	assert.Equal(t, 2, tm.ByePoints)

	stored, err := f.tournaments.GetTournament(f.ctx, tm.ID)
	require.NoError(t, err)
	assert.Equal(t, tm.Name, stored.Name)
	assert.Equal(t, 16, *stored.Capacity)

	testCases := []struct {
		name    string
		owner   uuid.UUID
		in      CreateTournamentInput
		wantErr error
	}{
		{name: "blank name", owner: f.ownerID, in: CreateTournamentInput{Name: "  "}, wantErr: tournament.ErrInvalidInput},
		{name: "negative weight", owner: f.ownerID, in: CreateTournamentInput{Name: "x", LossPoints: utils.Ptr(-1)}, wantErr: tournament.ErrInvalidInput},
		{name: "zero rounds", owner: f.ownerID, in: CreateTournamentInput{Name: "x", RoundCount: utils.Ptr(0)}, wantErr: tournament.ErrInvalidInput},
		{name: "capacity below a table", owner: f.ownerID, in: CreateTournamentInput{Name: "x", Capacity: utils.Ptr(3)}, wantErr: tournament.ErrInvalidInput},
		{name: "unknown owner", owner: uuid.New(), in: CreateTournamentInput{Name: "x"}, wantErr: tournament.ErrPlayerNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.tournaments.CreateTournament(f.ctx, tc.owner, tc.in)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	_, err = f.tournaments.GetTournament(f.ctx, uuid.New())
	assert.ErrorIs(t, err, tournament.ErrNotFound)
}

func TestStartTournamentNeedsFourPlayers(t *testing.T) {
	f := newFixture(t)
	tm, _ := f.openTournament(t, CreateTournamentInput{}, 3)

	_, err := f.tournaments.StartTournament(f.ctx, tm.ID)
	require.ErrorIs(t, err, tournament.ErrInsufficientPlayers)

	stored, err := f.tournaments.GetTournament(f.ctx, tm.ID)
	require.NoError(t, err)
	assert.Equal(t, tournament.TournamentOpen, stored.Status)

	rounds, err := f.rounds.ListRounds(f.ctx, tm.ID)
	require.NoError(t, err)
	assert.Empty(t, rounds)
}

func TestCancelTournament(t *testing.T) {
	f := newFixture(t)
	tm, _ := f.openTournament(t, CreateTournamentInput{}, 4)

	require.NoError(t, f.tournaments.CancelTournament(f.ctx, tm.ID))
	stored, err := f.tournaments.GetTournament(f.ctx, tm.ID)
	require.NoError(t, err)
	assert.Equal(t, tournament.TournamentCancelled, stored.Status)

	_, err = f.tournaments.StartTournament(f.ctx, tm.ID)
	assert.ErrorIs(t, err, tournament.ErrInvalidTransition)
	assert.ErrorIs(t, f.tournaments.CancelTournament(f.ctx, tm.ID), tournament.ErrInvalidTransition)
}

func reportAll(t *testing.T, f *fixture, tables []tournament.Table) {
	t.Helper()
	for _, table := range playable(tables) {
		_, err := f.tables.ReportResult(f.ctx, table.ID, win(tournament.SideOne))
		require.NoError(t, err)
	}
}

func TestTournamentRunsToTheEnd(t *testing.T) {
	f := newFixture(t)
	tm, _ := f.openTournament(t, CreateTournamentInput{RoundCount: utils.Ptr(2)}, 8)

	round, err := f.tournaments.StartTournament(f.ctx, tm.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, round.Number)
	assert.Equal(t, tournament.RoundAwaitingPairing, round.State)

	_, err = f.tournaments.AdvanceRound(f.ctx, tm.ID)
	require.ErrorIs(t, err, tournament.ErrInvalidTransition)

	for number := 1; number <= 2; number++ {
		tables, err := f.rounds.PairRound(f.ctx, round.ID)
		require.NoError(t, err)
		require.Len(t, tables, 2)

		_, err = f.rounds.StartRound(f.ctx, round.ID)
		require.NoError(t, err)
		reportAll(t, f, tables)

		round, err = f.rounds.GetRound(f.ctx, round.ID)
		require.NoError(t, err)
		assert.Equal(t, tournament.RoundFinished, round.State, "round %d finishes with its last result", number)

		if number == 1 {
			_, err = f.tournaments.FinalizeTournament(f.ctx, tm.ID)
			require.ErrorIs(t, err, tournament.ErrInvalidTransition)

			round, err = f.tournaments.AdvanceRound(f.ctx, tm.ID)
			require.NoError(t, err)
			assert.Equal(t, 2, round.Number)
		}
	}

	_, err = f.tournaments.AdvanceRound(f.ctx, tm.ID)
	require.ErrorIs(t, err, tournament.ErrInvalidTransition)

	res, err := f.tournaments.FinalizeTournament(f.ctx, tm.ID)
	require.NoError(t, err)
	assert.Equal(t, tournament.TournamentFinished, res.Tournament.Status)
	assert.NotNil(t, res.Tournament.FinishedAt)
	require.Len(t, res.Standings, 8)
	assert.NotEmpty(t, res.ArchiveKey)
	assert.Equal(t, 1, f.archive.calls)

	total := 0
	for _, e := range res.Standings {
		assert.Equal(t, 2, e.Played)
		total += e.Points
	}
	assert.Equal(t, 2*4*tournament.DefaultWinPoints, total)
	assert.Equal(t, 1, res.Standings[0].Rank)

	final, err := f.standings.GetStandings(f.ctx, tm.ID, nil)
	require.NoError(t, err)
	assert.True(t, final.Final)
	assert.Equal(t, 2, final.Round)
	assert.Equal(t, res.Standings, final.Entries)

	assert.Equal(t, 2, f.events.count(live.EventTournamentStatus))
	assert.Equal(t, 2, f.events.count(live.EventRoundCreated))
}

func TestFinalizeSurvivesArchiveFailure(t *testing.T) {
	f := newFixture(t)
	f.archive.err = errors.New("bucket unavailable")

	tm, _, tables := f.activeRound(t, CreateTournamentInput{RoundCount: utils.Ptr(1)}, 4)
	reportAll(t, f, tables)

	res, err := f.tournaments.FinalizeTournament(f.ctx, tm.ID)
	require.NoError(t, err)
	assert.Empty(t, res.ArchiveKey)
	assert.Equal(t, 1, f.archive.calls)

	stored, err := f.tournaments.GetTournament(f.ctx, tm.ID)
	require.NoError(t, err)
	assert.Equal(t, tournament.TournamentFinished, stored.Status)
}

func TestOverview(t *testing.T) {
	f := newFixture(t)
	tm, round, _ := f.pairedRound(t, CreateTournamentInput{}, 5)

	ov, err := f.tournaments.Overview(f.ctx, tm.ID)
	require.NoError(t, err)
	assert.Equal(t, tm.ID, ov.Tournament.ID)
	assert.Len(t, ov.Rounds, 1)
	assert.Len(t, ov.Registrations, 5)
	assert.Len(t, ov.Players, 5)
	require.NotNil(t, ov.CurrentRound)
	assert.Equal(t, round.ID, ov.CurrentRound.ID)
	assert.Len(t, ov.Tables, 2)

	_, err = f.tournaments.Overview(f.ctx, uuid.New())
	assert.ErrorIs(t, err, tournament.ErrNotFound)
}

func TestByeScoresConfiguredValue(t *testing.T) {
	f := newFixture(t)
	tm, _, tables := f.activeRound(t, CreateTournamentInput{ByePoints: utils.Ptr(2)}, 5)

	require.Len(t, tables, 2)
	assert.Equal(t, 1, tables[0].Number)
	assert.Len(t, tables[0].Seats, 4)
	bye := tables[1]
	require.True(t, bye.IsBye())
	require.Len(t, bye.Seats, 1)
	byePlayer := bye.Seats[0].PlayerID

	table, err := f.tables.ReportResult(f.ctx, tables[0].ID, win(tournament.SideTwo))
	require.NoError(t, err)
	assert.Equal(t, tournament.SideTwo, *table.WinningSide)

	got, err := f.standings.GetStandings(f.ctx, tm.ID, utils.Ptr(1))
	require.NoError(t, err)
	entry := standings.Index(got.Entries)[byePlayer]
	assert.Equal(t, 2, entry.Points)
	assert.Equal(t, 1, entry.Byes)

	_, err = f.standings.GetStandings(f.ctx, tm.ID, utils.Ptr(2))
	assert.ErrorIs(t, err, tournament.ErrNotFound)
}
