package service

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/duplas/internal/lifecycle"
	"github.com/AdamBeresnev/duplas/internal/live"
	"github.com/AdamBeresnev/duplas/internal/pairing"
	"github.com/AdamBeresnev/duplas/internal/standings"
	"github.com/AdamBeresnev/duplas/internal/store"
	"github.com/AdamBeresnev/duplas/internal/tournament"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type RoundService struct {
	*core
}

func NewRoundService(db *sqlx.DB, store *store.TournamentStore, opts Options) *RoundService {
	return &RoundService{core: newCore(db, store, opts)}
}

func (s *RoundService) ListRounds(ctx context.Context, tournamentID uuid.UUID) ([]tournament.Round, error) {
	var rounds []tournament.Round
	err := s.run(ctx, nil, func(ctx context.Context) error {
		if _, err := s.store.GetTournament(ctx, nil, tournamentID); err != nil {
			return err
		}
		var err error
		rounds, err = s.store.ListRounds(ctx, nil, tournamentID)
		return err
	})
	return rounds, err
}

func (s *RoundService) GetRound(ctx context.Context, roundID uuid.UUID) (*tournament.Round, error) {
	var r *tournament.Round
	err := s.run(ctx, nil, func(ctx context.Context) (err error) {
		r, err = s.store.GetRound(ctx, nil, roundID)
		return err
	})
	return r, err
}

func (s *RoundService) ListTables(ctx context.Context, roundID uuid.UUID) ([]tournament.Table, error) {
	var tables []tournament.Table
	err := s.run(ctx, nil, func(ctx context.Context) error {
		if _, err := s.store.GetRound(ctx, nil, roundID); err != nil {
			return err
		}
		var err error
		tables, err = s.store.ListTables(ctx, nil, roundID)
		return err
	})
	return tables, err
}

// PairRound runs the pairing engine for a round awaiting pairing.
func (s *RoundService) PairRound(ctx context.Context, roundID uuid.UUID) ([]tournament.Table, error) {
	return s.pair(ctx, roundID, lifecycle.EventPair)
}

// RepairRound throws away the tables of a paired round and pairs it again.
func (s *RoundService) RepairRound(ctx context.Context, roundID uuid.UUID) ([]tournament.Table, error) {
	return s.pair(ctx, roundID, lifecycle.EventRepair)
}

func (s *RoundService) pair(ctx context.Context, roundID uuid.UUID, ev lifecycle.Event) ([]tournament.Table, error) {
	var (
		round  *tournament.Round
		tables []tournament.Table
	)
	keys, err := s.roundKeys(ctx, roundID)
	if err != nil {
		return nil, err
	}
	err = s.run(ctx, keys, func(ctx context.Context) error {
		return s.withTx(ctx, func(tx *sqlx.Tx) error {
			r, err := s.store.GetRound(ctx, tx, roundID)
			if err != nil {
				return err
			}
			to, err := lifecycle.Next(r.State, ev)
			if err != nil {
				return err
			}

			d, err := s.loadTournamentData(ctx, tx, r.TournamentID)
			if err != nil {
				return err
			}
			if d.tournament.Status != tournament.TournamentInProgress {
				return fmt.Errorf("%w: tournament must be in progress to pair, it is %s",
					tournament.ErrInvalidTransition, d.tournament.Status)
			}

			history := d.history(r.Number)
			in := pairing.Input{
				Players:   tournament.ActivePlayerIDs(d.registrations),
				Standings: standings.Compute(history),
				History:   history,
			}
			if s.shuffle && r.Number == 1 {
				in.Rand = s.rand()
			}
			res, err := pairing.Pair(in)
			if err != nil {
				return err
			}

			if ev == lifecycle.EventRepair {
				if err := s.store.DeleteRoundTables(ctx, tx, r.ID); err != nil {
					return fmt.Errorf("failed to discard tables: %w", err)
				}
			}
			tables = res.Tables(r.ID)
			if err := s.store.CreateTables(ctx, tx, tables); err != nil {
				return fmt.Errorf("failed to create tables: %w", err)
			}
			if err := s.store.SaveRoundState(ctx, tx, r, to); err != nil {
				return err
			}
			round = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("round paired", "round_id", roundID, "round", round.Number, "tables", len(tables), "event", ev)
	s.publish(
		live.Event{Type: live.EventRoundState, TournamentID: round.TournamentID, RoundID: &round.ID, Payload: round.State},
		live.Event{Type: live.EventTablesChanged, TournamentID: round.TournamentID, RoundID: &round.ID, Payload: tables},
	)
	return tables, nil
}

// StartRound opens a paired round for results. The tables must seat every active
// player exactly once, with nobody left on an incomplete table.
func (s *RoundService) StartRound(ctx context.Context, roundID uuid.UUID) (*tournament.Round, error) {
	return s.transition(ctx, roundID, lifecycle.EventStart, func(ctx context.Context, tx *sqlx.Tx, r *tournament.Round) error {
		tables, err := s.store.ListTables(ctx, tx, r.ID)
		if err != nil {
			return fmt.Errorf("failed to load tables: %w", err)
		}
		registrations, err := s.store.ListRegistrations(ctx, tx, r.TournamentID)
		if err != nil {
			return fmt.Errorf("failed to load registrations: %w", err)
		}
		return tournament.CheckRoster(tables, tournament.ActivePlayerIDs(registrations), true)
	})
}

// FinishRound closes an active round once every table has a result.
func (s *RoundService) FinishRound(ctx context.Context, roundID uuid.UUID) (*tournament.Round, error) {
	return s.transition(ctx, roundID, lifecycle.EventFinish, func(ctx context.Context, tx *sqlx.Tx, r *tournament.Round) error {
		unreported, err := s.store.CountUnreported(ctx, tx, r.ID)
		if err != nil {
			return fmt.Errorf("failed to count unreported tables: %w", err)
		}
		_, err = lifecycle.FinishRound(r, unreported)
		return err
	})
}

func (s *RoundService) transition(ctx context.Context, roundID uuid.UUID, ev lifecycle.Event,
	check func(ctx context.Context, tx *sqlx.Tx, r *tournament.Round) error) (*tournament.Round, error) {
	var round *tournament.Round
	keys, err := s.roundKeys(ctx, roundID)
	if err != nil {
		return nil, err
	}
	err = s.run(ctx, keys, func(ctx context.Context) error {
		return s.withTx(ctx, func(tx *sqlx.Tx) error {
			r, err := s.store.GetRound(ctx, tx, roundID)
			if err != nil {
				return err
			}
			to, err := lifecycle.Next(r.State, ev)
			if err != nil {
				return err
			}
			if err := check(ctx, tx, r); err != nil {
				return err
			}
			if err := s.store.SaveRoundState(ctx, tx, r, to); err != nil {
				return err
			}
			round = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("round state changed", "round_id", roundID, "round", round.Number, "state", round.State)
	s.publish(live.Event{Type: live.EventRoundState, TournamentID: round.TournamentID, RoundID: &round.ID, Payload: round.State})
	return round, nil
}

type Overflow struct {
	// Byes are the players sitting on a bye table.
	Byes []uuid.UUID `json:"byes"`
	// Unseated are active players with no seat at all, such as late registrations.
	Unseated []uuid.UUID `json:"unseated"`
}

func (s *RoundService) ListOverflow(ctx context.Context, roundID uuid.UUID) (*Overflow, error) {
	out := &Overflow{Byes: []uuid.UUID{}, Unseated: []uuid.UUID{}}
	err := s.run(ctx, nil, func(ctx context.Context) error {
		r, err := s.store.GetRound(ctx, nil, roundID)
		if err != nil {
			return err
		}
		tables, err := s.store.ListTables(ctx, nil, r.ID)
		if err != nil {
			return fmt.Errorf("failed to load tables: %w", err)
		}
		registrations, err := s.store.ListRegistrations(ctx, nil, r.TournamentID)
		if err != nil {
			return fmt.Errorf("failed to load registrations: %w", err)
		}

		for i := range tables {
			if tables[i].IsBye() {
				out.Byes = append(out.Byes, tables[i].Players()...)
			}
		}
		if unseated := tournament.Unseated(tables, tournament.ActivePlayerIDs(registrations)); unseated != nil {
			out.Unseated = unseated
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MyTable finds the table a player sits at in a round.
func (s *RoundService) MyTable(ctx context.Context, roundID, playerID uuid.UUID) (*tournament.Table, error) {
	var table *tournament.Table
	err := s.run(ctx, nil, func(ctx context.Context) error {
		tables, err := s.store.ListTables(ctx, nil, roundID)
		if err != nil {
			return fmt.Errorf("failed to load tables: %w", err)
		}
		t, _, ok := tournament.FindSeat(tables, playerID)
		if !ok {
			return fmt.Errorf("player %s has no seat in this round: %w", playerID, tournament.ErrPlayerNotFound)
		}
		table = t
		return nil
	})
	return table, err
}
