package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/AdamBeresnev/duplas/internal/lifecycle"
	"github.com/AdamBeresnev/duplas/internal/live"
	"github.com/AdamBeresnev/duplas/internal/lock"
	"github.com/AdamBeresnev/duplas/internal/player"
	"github.com/AdamBeresnev/duplas/internal/standings"
	"github.com/AdamBeresnev/duplas/internal/store"
	"github.com/AdamBeresnev/duplas/internal/tournament"
	"github.com/AdamBeresnev/duplas/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
)

type TournamentService struct {
	*core
	players *store.PlayerStore
}

func NewTournamentService(db *sqlx.DB, store *store.TournamentStore, players *store.PlayerStore, opts Options) *TournamentService {
	return &TournamentService{core: newCore(db, store, opts), players: players}
}

type CreateTournamentInput struct {
	Name string `json:"name"`

	// nil picks the default weight
	WinPoints  *int `json:"win_points"`
	DrawPoints *int `json:"draw_points"`
	LossPoints *int `json:"loss_points"`
	ByePoints  *int `json:"bye_points"`

	RoundCount *int `json:"round_count"`
	Capacity   *int `json:"capacity"`
	IsFree     bool `json:"is_free"`
}

func weightOr(v *int, fallback int, name string) (int, error) {
	if v == nil {
		return fallback, nil
	}
	if *v < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", tournament.ErrInvalidInput, name)
	}
	return *v, nil
}

func (s *TournamentService) CreateTournament(ctx context.Context, ownerID uuid.UUID, in CreateTournamentInput) (*tournament.Tournament, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: tournament name is required", tournament.ErrInvalidInput)
	}
	if in.RoundCount != nil && *in.RoundCount <= 0 {
		return nil, fmt.Errorf("%w: round count must be positive", tournament.ErrInvalidInput)
	}
	if in.Capacity != nil && *in.Capacity < lifecycle.MinPlayers {
		return nil, fmt.Errorf("%w: capacity must be at least %d", tournament.ErrInvalidInput, lifecycle.MinPlayers)
	}

	t := &tournament.Tournament{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		Name:       name,
		Status:     tournament.TournamentOpen,
		RoundCount: in.RoundCount,
		Capacity:   in.Capacity,
		IsFree:     in.IsFree,
		CreatedAt:  s.now(),
	}
	var err error
	if t.WinPoints, err = weightOr(in.WinPoints, tournament.DefaultWinPoints, "win points"); err != nil {
		return nil, err
	}
	if t.DrawPoints, err = weightOr(in.DrawPoints, tournament.DefaultDrawPoints, "draw points"); err != nil {
		return nil, err
	}
	if t.LossPoints, err = weightOr(in.LossPoints, tournament.DefaultLossPoints, "loss points"); err != nil {
		return nil, err
	}
	if t.ByePoints, err = weightOr(in.ByePoints, tournament.DefaultByePoints, "bye points"); err != nil {
		return nil, err
	}

	err = s.run(ctx, nil, func(ctx context.Context) error {
		if _, err := s.players.GetPlayer(ctx, ownerID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("owner %s: %w", ownerID, tournament.ErrPlayerNotFound)
			}
			return err
		}
		return s.store.CreateTournament(ctx, nil, t)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}

	s.log.Info("tournament created", "tournament_id", t.ID, "name", t.Name,
		"round_count", utils.OrZero(t.RoundCount), "capacity", utils.OrZero(t.Capacity))
	return t, nil
}

func (s *TournamentService) GetTournament(ctx context.Context, id uuid.UUID) (*tournament.Tournament, error) {
	var t *tournament.Tournament
	err := s.run(ctx, nil, func(ctx context.Context) (err error) {
		t, err = s.store.GetTournament(ctx, nil, id)
		return err
	})
	return t, err
}

func (s *TournamentService) ListTournaments(ctx context.Context) ([]tournament.Tournament, error) {
	var list []tournament.Tournament
	err := s.run(ctx, nil, func(ctx context.Context) (err error) {
		list, err = s.store.ListTournaments(ctx)
		return err
	})
	return list, err
}

type Overview struct {
	Tournament    *tournament.Tournament    `json:"tournament"`
	Rounds        []tournament.Round        `json:"rounds"`
	Registrations []tournament.Registration `json:"registrations"`
	Players       []player.Player           `json:"players"`
	CurrentRound  *tournament.Round         `json:"current_round,omitempty"`
	Tables        []tournament.Table        `json:"tables"`
}

// Overview loads everything a tournament page needs in one call.
func (s *TournamentService) Overview(ctx context.Context, id uuid.UUID) (*Overview, error) {
	ov := &Overview{}
	err := s.run(ctx, nil, func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			ov.Tournament, err = s.store.GetTournament(gctx, nil, id)
			return err
		})
		g.Go(func() (err error) {
			ov.Rounds, err = s.store.ListRounds(gctx, nil, id)
			return err
		})
		g.Go(func() (err error) {
			ov.Registrations, err = s.store.ListRegistrations(gctx, nil, id)
			return err
		})
		if err := g.Wait(); err != nil {
			return err
		}

		if n := len(ov.Rounds); n > 0 {
			ov.CurrentRound = &ov.Rounds[n-1]
		}

		g, gctx = errgroup.WithContext(ctx)
		if ov.CurrentRound != nil {
			roundID := ov.CurrentRound.ID
			g.Go(func() (err error) {
				ov.Tables, err = s.store.ListTables(gctx, nil, roundID)
				return err
			})
		}
		g.Go(func() error {
			ids := make([]string, 0, len(ov.Registrations))
			for _, r := range ov.Registrations {
				ids = append(ids, r.PlayerID.String())
			}
			players, err := s.players.GetPlayers(gctx, ids)
			ov.Players = players
			return err
		})
		return g.Wait()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load tournament overview: %w", err)
	}
	return ov, nil
}

// StartTournament closes registration and creates round one, awaiting pairing.
func (s *TournamentService) StartTournament(ctx context.Context, id uuid.UUID) (*tournament.Round, error) {
	var round *tournament.Round
	err := s.run(ctx, []string{lock.TournamentKey(id)}, func(ctx context.Context) error {
		return s.withTx(ctx, func(tx *sqlx.Tx) error {
			t, err := s.store.GetTournament(ctx, tx, id)
			if err != nil {
				return err
			}
			active, err := s.store.CountActiveRegistrations(ctx, tx, id)
			if err != nil {
				return fmt.Errorf("failed to count registrations: %w", err)
			}
			if err := lifecycle.StartTournament(t, active); err != nil {
				return err
			}
			if err := s.store.UpdateTournamentStatus(ctx, tx, id, tournament.TournamentInProgress, nil); err != nil {
				return fmt.Errorf("failed to update tournament status: %w", err)
			}
			round = s.newRound(id, 1)
			return s.store.CreateRound(ctx, tx, round)
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("tournament started", "tournament_id", id)
	s.publish(
		live.Event{Type: live.EventTournamentStatus, TournamentID: id, Payload: tournament.TournamentInProgress},
		live.Event{Type: live.EventRoundCreated, TournamentID: id, RoundID: &round.ID, Payload: round},
	)
	return round, nil
}

func (s *TournamentService) CancelTournament(ctx context.Context, id uuid.UUID) error {
	err := s.run(ctx, []string{lock.TournamentKey(id)}, func(ctx context.Context) error {
		return s.withTx(ctx, func(tx *sqlx.Tx) error {
			t, err := s.store.GetTournament(ctx, tx, id)
			if err != nil {
				return err
			}
			if err := lifecycle.CancelTournament(t); err != nil {
				return err
			}
			return s.store.UpdateTournamentStatus(ctx, tx, id, tournament.TournamentCancelled, nil)
		})
	})
	if err != nil {
		return err
	}

	s.log.Info("tournament cancelled", "tournament_id", id)
	s.publish(live.Event{Type: live.EventTournamentStatus, TournamentID: id, Payload: tournament.TournamentCancelled})
	return nil
}

// AdvanceRound opens the next round once the current one is finished.
func (s *TournamentService) AdvanceRound(ctx context.Context, id uuid.UUID) (*tournament.Round, error) {
	var round *tournament.Round
	err := s.run(ctx, []string{lock.TournamentKey(id)}, func(ctx context.Context) error {
		return s.withTx(ctx, func(tx *sqlx.Tx) error {
			t, err := s.store.GetTournament(ctx, tx, id)
			if err != nil {
				return err
			}
			current, err := s.store.GetCurrentRound(ctx, tx, id)
			if err != nil {
				return fmt.Errorf("failed to load current round: %w", err)
			}
			next, err := lifecycle.AdvanceRound(t, current)
			if err != nil {
				return err
			}
			round = s.newRound(id, next)
			return s.store.CreateRound(ctx, tx, round)
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("round advanced", "tournament_id", id, "round", round.Number)
	s.publish(live.Event{Type: live.EventRoundCreated, TournamentID: id, RoundID: &round.ID, Payload: round})
	return round, nil
}

type FinalizeResult struct {
	Tournament *tournament.Tournament    `json:"tournament"`
	Standings  []standings.StandingEntry `json:"standings"`
	ArchiveKey string                    `json:"archive_key,omitempty"`
}

// FinalizeTournament closes a tournament whose last round is finished. When an archive
// is configured the final standings are exported after the commit; a failed export is
// logged and does not undo the finalization.
func (s *TournamentService) FinalizeTournament(ctx context.Context, id uuid.UUID) (*FinalizeResult, error) {
	res := &FinalizeResult{}
	var rounds int
	err := s.run(ctx, []string{lock.TournamentKey(id)}, func(ctx context.Context) error {
		return s.withTx(ctx, func(tx *sqlx.Tx) error {
			t, err := s.store.GetTournament(ctx, tx, id)
			if err != nil {
				return err
			}
			current, err := s.store.GetCurrentRound(ctx, tx, id)
			if err != nil {
				return fmt.Errorf("failed to load current round: %w", err)
			}
			if err := lifecycle.FinalizeTournament(t, current); err != nil {
				return err
			}

			finishedAt := s.now()
			if err := s.store.UpdateTournamentStatus(ctx, tx, id, tournament.TournamentFinished, &finishedAt); err != nil {
				return fmt.Errorf("failed to update tournament status: %w", err)
			}
			t.Status = tournament.TournamentFinished
			t.FinishedAt = &finishedAt

			data, err := s.loadTournamentData(ctx, tx, id)
			if err != nil {
				return err
			}
			res.Tournament = t
			res.Standings = standings.Compute(data.history(0))
			rounds = current.Number
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("tournament finalized", "tournament_id", id, "rounds", rounds)
	s.publish(live.Event{Type: live.EventTournamentStatus, TournamentID: id, Payload: tournament.TournamentFinished})

	if s.archive != nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		key, err := s.archive.StoreFinalStandings(ctx, res.Tournament, rounds, res.Standings)
		if err != nil {
			s.log.Error("failed to archive final standings", "tournament_id", id, "error", err)
		} else {
			res.ArchiveKey = key
		}
	}
	return res, nil
}

func (s *TournamentService) newRound(tournamentID uuid.UUID, number int) *tournament.Round {
	return &tournament.Round{
		ID:           uuid.New(),
		TournamentID: tournamentID,
		Number:       number,
		State:        tournament.RoundAwaitingPairing,
		CreatedAt:    s.now(),
	}
}
