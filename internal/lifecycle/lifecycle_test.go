package lifecycle

import (
	"testing"

	"github.com/AdamBeresnev/duplas/internal/tournament"
	"github.com/AdamBeresnev/duplas/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext(t *testing.T) {
	testCases := []struct {
		name    string
		from    tournament.RoundState
		event   Event
		to      tournament.RoundState
		wantErr bool
	}{
		{name: "pair awaiting round", from: tournament.RoundAwaitingPairing, event: EventPair, to: tournament.RoundPaired},
		{name: "repair paired round", from: tournament.RoundPaired, event: EventRepair, to: tournament.RoundPaired},
		{name: "start paired round", from: tournament.RoundPaired, event: EventStart, to: tournament.RoundActive},
		{name: "finish active round", from: tournament.RoundActive, event: EventFinish, to: tournament.RoundFinished},
		{name: "start awaiting round", from: tournament.RoundAwaitingPairing, event: EventStart, wantErr: true},
		{name: "repair active round", from: tournament.RoundActive, event: EventRepair, wantErr: true},
		{name: "pair twice", from: tournament.RoundPaired, event: EventPair, wantErr: true},
		{name: "finish paired round", from: tournament.RoundPaired, event: EventFinish, wantErr: true},
		{name: "anything on finished", from: tournament.RoundFinished, event: EventStart, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			to, err := Next(tc.from, tc.event)
			if tc.wantErr {
				require.ErrorIs(t, err, tournament.ErrInvalidTransition)
				assert.Equal(t, tc.from, to)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.to, to)
		})
	}
}

func TestFinishRoundNeedsEveryResult(t *testing.T) {
	r := &tournament.Round{Number: 2, State: tournament.RoundActive}

	_, err := FinishRound(r, 1)
	require.ErrorIs(t, err, tournament.ErrInvalidTransition)
	assert.Contains(t, err.Error(), "1 table(s) without a result")

	to, err := FinishRound(r, 0)
	require.NoError(t, err)
	assert.Equal(t, tournament.RoundFinished, to)
}

func TestStartTournament(t *testing.T) {
	open := &tournament.Tournament{Status: tournament.TournamentOpen}

	err := StartTournament(open, 3)
	require.ErrorIs(t, err, tournament.ErrInsufficientPlayers)
	assert.Contains(t, err.Error(), "found 3")

	require.NoError(t, StartTournament(open, 4))

	started := &tournament.Tournament{Status: tournament.TournamentInProgress}
	require.ErrorIs(t, StartTournament(started, 8), tournament.ErrInvalidTransition)
}

func TestCancelTournament(t *testing.T) {
	for _, status := range []tournament.TournamentStatus{
		tournament.TournamentInProgress, tournament.TournamentFinished, tournament.TournamentCancelled,
	} {
		err := CancelTournament(&tournament.Tournament{Status: status})
		assert.ErrorIs(t, err, tournament.ErrInvalidTransition, status)
	}
	assert.NoError(t, CancelTournament(&tournament.Tournament{Status: tournament.TournamentOpen}))
}

func TestAdvanceRound(t *testing.T) {
	running := &tournament.Tournament{Status: tournament.TournamentInProgress, RoundCount: utils.Ptr(3)}

	_, err := AdvanceRound(running, &tournament.Round{Number: 1, State: tournament.RoundActive})
	require.ErrorIs(t, err, tournament.ErrInvalidTransition)

	next, err := AdvanceRound(running, &tournament.Round{Number: 2, State: tournament.RoundFinished})
	require.NoError(t, err)
	assert.Equal(t, 3, next)

	_, err = AdvanceRound(running, &tournament.Round{Number: 3, State: tournament.RoundFinished})
	require.ErrorIs(t, err, tournament.ErrInvalidTransition)

	unbounded := &tournament.Tournament{Status: tournament.TournamentInProgress}
	next, err = AdvanceRound(unbounded, &tournament.Round{Number: 9, State: tournament.RoundFinished})
	require.NoError(t, err)
	assert.Equal(t, 10, next)
}

func TestFinalizeTournament(t *testing.T) {
	running := &tournament.Tournament{Status: tournament.TournamentInProgress, RoundCount: utils.Ptr(2)}

	err := FinalizeTournament(running, &tournament.Round{Number: 1, State: tournament.RoundFinished})
	require.ErrorIs(t, err, tournament.ErrInvalidTransition)

	err = FinalizeTournament(running, &tournament.Round{Number: 2, State: tournament.RoundActive})
	require.ErrorIs(t, err, tournament.ErrInvalidTransition)

	require.NoError(t, FinalizeTournament(running, &tournament.Round{Number: 2, State: tournament.RoundFinished}))

	open := &tournament.Tournament{Status: tournament.TournamentOpen}
	require.ErrorIs(t, FinalizeTournament(open, nil), tournament.ErrInvalidTransition)
}

func TestEditGuards(t *testing.T) {
	for _, state := range []tournament.RoundState{tournament.RoundPaired, tournament.RoundActive} {
		assert.NoError(t, CanEditPairing(&tournament.Round{State: state}))
	}
	for _, state := range []tournament.RoundState{tournament.RoundAwaitingPairing, tournament.RoundFinished} {
		assert.ErrorIs(t, CanEditPairing(&tournament.Round{State: state}), tournament.ErrInvalidTransition)
	}

	assert.NoError(t, CanRestructure(&tournament.Round{State: tournament.RoundPaired}))
	assert.ErrorIs(t, CanRestructure(&tournament.Round{State: tournament.RoundActive}), tournament.ErrInvalidTransition)

	assert.NoError(t, CanReport(&tournament.Round{State: tournament.RoundActive}))
	assert.ErrorIs(t, CanReport(&tournament.Round{State: tournament.RoundPaired}), tournament.ErrInvalidTransition)
}
