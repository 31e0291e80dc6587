package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AdamBeresnev/duplas/internal/lifecycle"
	"github.com/AdamBeresnev/duplas/internal/live"
	"github.com/AdamBeresnev/duplas/internal/lock"
	"github.com/AdamBeresnev/duplas/internal/store"
	"github.com/AdamBeresnev/duplas/internal/tournament"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type RegistrationService struct {
	*core
	players *store.PlayerStore
}

func NewRegistrationService(db *sqlx.DB, store *store.TournamentStore, players *store.PlayerStore, opts Options) *RegistrationService {
	return &RegistrationService{core: newCore(db, store, opts), players: players}
}

func (s *RegistrationService) ListRegistrations(ctx context.Context, tournamentID uuid.UUID) ([]tournament.Registration, error) {
	var list []tournament.Registration
	err := s.run(ctx, nil, func(ctx context.Context) error {
		if _, err := s.store.GetTournament(ctx, nil, tournamentID); err != nil {
			return err
		}
		var err error
		list, err = s.store.ListRegistrations(ctx, nil, tournamentID)
		return err
	})
	return list, err
}

func checkCapacity(ctx context.Context, st *store.TournamentStore, tx *sqlx.Tx, t *tournament.Tournament) error {
	if t.Capacity == nil {
		return nil
	}
	active, err := st.CountActiveRegistrations(ctx, tx, t.ID)
	if err != nil {
		return fmt.Errorf("failed to count registrations: %w", err)
	}
	if active >= *t.Capacity {
		return fmt.Errorf("%w: all %d places are taken", tournament.ErrTournamentFull, *t.Capacity)
	}
	return nil
}

// Register signs a player up. Late registrations are accepted while the tournament runs;
// the player joins the next pairing.
func (s *RegistrationService) Register(ctx context.Context, tournamentID, playerID uuid.UUID) (*tournament.Registration, error) {
	reg := &tournament.Registration{
		ID:           uuid.New(),
		TournamentID: tournamentID,
		PlayerID:     playerID,
		Status:       tournament.RegistrationActive,
		CreatedAt:    s.now(),
	}
	err := s.run(ctx, []string{lock.TournamentKey(tournamentID)}, func(ctx context.Context) error {
		if _, err := s.players.GetPlayer(ctx, playerID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("player %s: %w", playerID, tournament.ErrPlayerNotFound)
			}
			return err
		}
		return s.withTx(ctx, func(tx *sqlx.Tx) error {
			t, err := s.store.GetTournament(ctx, tx, tournamentID)
			if err != nil {
				return err
			}
			if err := lifecycle.CanRegister(t); err != nil {
				return err
			}
			if err := checkCapacity(ctx, s.store, tx, t); err != nil {
				return err
			}
			return s.store.CreateRegistration(ctx, tx, reg)
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("player registered", "tournament_id", tournamentID, "player_id", playerID)
	s.publish(live.Event{Type: live.EventRegistration, TournamentID: tournamentID, Payload: reg})
	return reg, nil
}

// Unregister removes a player. Before the start the registration is deleted; once the
// tournament runs it is cancelled so the player's history stays in the standings, and
// their seat in a round not yet started is freed.
func (s *RegistrationService) Unregister(ctx context.Context, tournamentID, playerID uuid.UUID) error {
	var reg *tournament.Registration
	err := s.run(ctx, []string{lock.TournamentKey(tournamentID)}, func(ctx context.Context) error {
		current, err := s.store.GetCurrentRound(ctx, nil, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to load current round: %w", err)
		}
		// The tournament lock keeps the current round from changing underneath.
		if current != nil {
			unlock, err := s.locks.Lock(ctx, lock.RoundKey(current.ID))
			if err != nil {
				return err
			}
			defer unlock()
		}

		return s.withTx(ctx, func(tx *sqlx.Tx) error {
			t, err := s.store.GetTournament(ctx, tx, tournamentID)
			if err != nil {
				return err
			}
			reg, err = s.store.GetRegistration(ctx, tx, tournamentID, playerID)
			if err != nil {
				return err
			}

			switch t.Status {
			case tournament.TournamentOpen:
				return s.store.DeleteRegistration(ctx, tx, reg.ID)
			case tournament.TournamentInProgress:
			default:
				return fmt.Errorf("%w: registrations are closed, tournament is %s", tournament.ErrInvalidTransition, t.Status)
			}

			if !reg.IsActive() {
				return fmt.Errorf("player %s has already withdrawn: %w", playerID, tournament.ErrPlayerNotFound)
			}
			if err := s.store.UpdateRegistrationStatus(ctx, tx, reg.ID, tournament.RegistrationCancelled); err != nil {
				return err
			}
			reg.Status = tournament.RegistrationCancelled

			if current == nil {
				return nil
			}
			r, err := s.store.GetRound(ctx, tx, current.ID)
			if err != nil {
				return err
			}
			if r.State != tournament.RoundAwaitingPairing && r.State != tournament.RoundPaired {
				return nil
			}
			return s.freeSeat(ctx, tx, r, playerID)
		})
	})
	if err != nil {
		return err
	}

	s.log.Info("player unregistered", "tournament_id", tournamentID, "player_id", playerID, "status", reg.Status)
	s.publish(live.Event{Type: live.EventRegistration, TournamentID: tournamentID, Payload: reg})
	return nil
}

func (s *RegistrationService) freeSeat(ctx context.Context, tx *sqlx.Tx, r *tournament.Round, playerID uuid.UUID) error {
	tables, err := s.store.ListTables(ctx, tx, r.ID)
	if err != nil {
		return fmt.Errorf("failed to load tables: %w", err)
	}
	t, _, ok := tournament.FindSeat(tables, playerID)
	if !ok {
		return nil
	}
	if err := s.store.DeleteSeat(ctx, tx, r.ID, playerID); err != nil {
		return err
	}
	if t.IsBye() {
		if err := s.store.DeleteTable(ctx, tx, t.ID); err != nil {
			return err
		}
	}
	return s.store.SaveRoundState(ctx, tx, r, r.State)
}

// Reactivate brings a withdrawn player back, subject to capacity.
func (s *RegistrationService) Reactivate(ctx context.Context, tournamentID, playerID uuid.UUID) (*tournament.Registration, error) {
	var reg *tournament.Registration
	err := s.run(ctx, []string{lock.TournamentKey(tournamentID)}, func(ctx context.Context) error {
		return s.withTx(ctx, func(tx *sqlx.Tx) error {
			t, err := s.store.GetTournament(ctx, tx, tournamentID)
			if err != nil {
				return err
			}
			if err := lifecycle.CanRegister(t); err != nil {
				return err
			}
			reg, err = s.store.GetRegistration(ctx, tx, tournamentID, playerID)
			if err != nil {
				return err
			}
			if reg.IsActive() {
				return tournament.ErrAlreadyRegistered
			}
			if err := checkCapacity(ctx, s.store, tx, t); err != nil {
				return err
			}
			if err := s.store.UpdateRegistrationStatus(ctx, tx, reg.ID, tournament.RegistrationActive); err != nil {
				return err
			}
			reg.Status = tournament.RegistrationActive
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("registration reactivated", "tournament_id", tournamentID, "player_id", playerID)
	s.publish(live.Event{Type: live.EventRegistration, TournamentID: tournamentID, Payload: reg})
	return reg, nil
}
