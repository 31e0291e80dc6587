package navigation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AdamBeresnev/duplas/internal/tournament"
	"github.com/AdamBeresnev/duplas/internal/utils"
)

func TestResolveTournamentLevel(t *testing.T) {
	active := utils.Ptr(tournament.RoundActive)
	for _, role := range []Role{RolePlayer, RoleOrganizer, RoleSpectator} {
		assert.Equal(t, ViewOpenRegistration, Resolve(Input{Tournament: tournament.TournamentOpen, Role: role}))
		assert.Equal(t, ViewOpenRegistration, Resolve(Input{Tournament: tournament.TournamentInProgress, Role: role}))
		assert.Equal(t, ViewFinalStandings, Resolve(Input{Tournament: tournament.TournamentFinished, Round: active, Role: role}))
		assert.Equal(t, ViewFinalStandings, Resolve(Input{Tournament: tournament.TournamentCancelled, Role: role}))
	}
}

func TestResolveTruthTable(t *testing.T) {
	inProgress := utils.Ptr(tournament.TableInProgress)
	finished := utils.Ptr(tournament.TableFinished)
	review := utils.Ptr(tournament.TableNeedsReview)

	testCases := []struct {
		round    tournament.RoundState
		role     Role
		table    *tournament.TableState
		hasTable bool
		onBye    bool
		want     View
	}{
		{round: tournament.RoundAwaitingPairing, role: RolePlayer, want: ViewPairingInProgress},
		{round: tournament.RoundAwaitingPairing, role: RoleOrganizer, want: ViewPairingInProgress},
		{round: tournament.RoundAwaitingPairing, role: RoleSpectator, want: ViewPairingInProgress},

		{round: tournament.RoundPaired, role: RolePlayer, hasTable: true, table: finished, onBye: true, want: ViewByeNotice},
		{round: tournament.RoundPaired, role: RolePlayer, hasTable: true, table: inProgress, want: ViewPairingInProgress},
		{round: tournament.RoundPaired, role: RolePlayer, want: ViewPairingInProgress},
		{round: tournament.RoundPaired, role: RoleOrganizer, want: ViewPairingInProgress},
		{round: tournament.RoundPaired, role: RoleSpectator, onBye: true, want: ViewPairingInProgress},

		{round: tournament.RoundActive, role: RoleOrganizer, want: ViewActiveMatchEntry},
		{round: tournament.RoundActive, role: RoleOrganizer, hasTable: true, table: finished, want: ViewActiveMatchEntry},
		{round: tournament.RoundActive, role: RolePlayer, hasTable: true, table: finished, onBye: true, want: ViewByeNotice},
		{round: tournament.RoundActive, role: RolePlayer, hasTable: true, table: inProgress, want: ViewActiveMatchEntry},
		{round: tournament.RoundActive, role: RolePlayer, hasTable: true, table: review, want: ViewActiveMatchEntry},
		{round: tournament.RoundActive, role: RolePlayer, hasTable: true, table: finished, want: ViewRoundInterval},
		{round: tournament.RoundActive, role: RolePlayer, want: ViewRoundInterval},
		{round: tournament.RoundActive, role: RoleSpectator, want: ViewRoundInterval},

		{round: tournament.RoundFinished, role: RolePlayer, hasTable: true, table: finished, want: ViewRoundInterval},
		{round: tournament.RoundFinished, role: RolePlayer, onBye: true, want: ViewRoundInterval},
		{round: tournament.RoundFinished, role: RoleOrganizer, want: ViewRoundInterval},
		{round: tournament.RoundFinished, role: RoleSpectator, want: ViewRoundInterval},
	}

	for _, tc := range testCases {
		name := fmt.Sprintf("%s/%s/table=%v/bye=%v", tc.round, tc.role, tc.hasTable, tc.onBye)
		t.Run(name, func(t *testing.T) {
			got := Resolve(Input{
				Tournament: tournament.TournamentInProgress,
				Round:      utils.Ptr(tc.round),
				Table:      tc.table,
				Role:       tc.role,
				HasTable:   tc.hasTable,
				OnBye:      tc.onBye,
			})
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveIsTotal(t *testing.T) {
	rounds := []tournament.RoundState{
		tournament.RoundAwaitingPairing, tournament.RoundPaired, tournament.RoundActive, tournament.RoundFinished,
	}
	tables := []*tournament.TableState{
		nil, utils.Ptr(tournament.TableInProgress), utils.Ptr(tournament.TableFinished), utils.Ptr(tournament.TableNeedsReview),
	}
	known := map[View]bool{
		ViewOpenRegistration: true, ViewByeNotice: true, ViewPairingInProgress: true,
		ViewActiveMatchEntry: true, ViewRoundInterval: true, ViewFinalStandings: true,
	}

	for _, r := range rounds {
		for _, tbl := range tables {
			for _, role := range []Role{RolePlayer, RoleOrganizer, RoleSpectator} {
				for _, flags := range [][2]bool{{false, false}, {true, false}, {true, true}} {
					in := Input{
						Tournament: tournament.TournamentInProgress,
						Round:      utils.Ptr(r),
						Table:      tbl,
						Role:       role,
						HasTable:   flags[0],
						OnBye:      flags[1],
					}
					assert.True(t, known[Resolve(in)], "%+v", in)
					assert.Equal(t, Resolve(in), Resolve(in))
				}
			}
		}
	}
}
