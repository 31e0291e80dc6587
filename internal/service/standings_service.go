package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/AdamBeresnev/duplas/internal/navigation"
	"github.com/AdamBeresnev/duplas/internal/standings"
	"github.com/AdamBeresnev/duplas/internal/store"
	"github.com/AdamBeresnev/duplas/internal/tournament"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
)

type tournamentData struct {
	tournament    *tournament.Tournament
	registrations []tournament.Registration
	rounds        []tournament.Round
	// keyed by round id
	tables map[uuid.UUID][]tournament.Table
}

// loadTournamentData reads a tournament with its whole history. Outside a transaction
// the reads run concurrently; inside one they share the transaction and run in turn.
func (c *core) loadTournamentData(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*tournamentData, error) {
	d := &tournamentData{}
	loaders := []func(ctx context.Context, q sqlx.ExtContext) error{
		func(ctx context.Context, q sqlx.ExtContext) (err error) {
			d.tournament, err = c.store.GetTournament(ctx, q, id)
			return err
		},
		func(ctx context.Context, q sqlx.ExtContext) (err error) {
			d.registrations, err = c.store.ListRegistrations(ctx, q, id)
			return err
		},
		func(ctx context.Context, q sqlx.ExtContext) (err error) {
			d.rounds, err = c.store.ListRounds(ctx, q, id)
			return err
		},
		func(ctx context.Context, q sqlx.ExtContext) (err error) {
			d.tables, err = c.store.ListTournamentTables(ctx, q, id)
			return err
		},
	}

	if tx != nil {
		for _, load := range loaders {
			if err := load(ctx, tx); err != nil {
				return nil, fmt.Errorf("failed to load tournament data: %w", err)
			}
		}
		return d, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, load := range loaders {
		g.Go(func() error { return load(gctx, nil) })
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load tournament data: %w", err)
	}
	return d, nil
}

// history covers the rounds numbered below before; zero or less covers every round.
func (d *tournamentData) history(before int) standings.History {
	h := standings.History{Weights: standings.WeightsOf(d.tournament)}
	for _, r := range d.registrations {
		h.Players = append(h.Players, r.PlayerID)
	}
	for _, r := range d.rounds {
		if before > 0 && r.Number >= before {
			continue
		}
		h.Rounds = append(h.Rounds, standings.RecordsFromTables(r.Number, d.tables[r.ID]))
	}
	return h
}

func (d *tournamentData) currentRound() *tournament.Round {
	if len(d.rounds) == 0 {
		return nil
	}
	return &d.rounds[len(d.rounds)-1]
}

func (d *tournamentData) registrationOf(playerID uuid.UUID) *tournament.Registration {
	for i := range d.registrations {
		if d.registrations[i].PlayerID == playerID {
			return &d.registrations[i]
		}
	}
	return nil
}

type StandingsService struct {
	*core
}

func NewStandingsService(db *sqlx.DB, store *store.TournamentStore, opts Options) *StandingsService {
	return &StandingsService{core: newCore(db, store, opts)}
}

type Standings struct {
	TournamentID uuid.UUID `json:"tournament_id"`
	// Round is the last round counted.
	Round   int                       `json:"round"`
	Final   bool                      `json:"final"`
	Entries []standings.StandingEntry `json:"entries"`
}

// GetStandings ranks the players after the given round, or after every round played so
// far when round is nil. Standings are always recomputed from the stored results.
func (s *StandingsService) GetStandings(ctx context.Context, tournamentID uuid.UUID, round *int) (*Standings, error) {
	var out *Standings
	err := s.run(ctx, nil, func(ctx context.Context) error {
		d, err := s.loadTournamentData(ctx, nil, tournamentID)
		if err != nil {
			return err
		}

		out = &Standings{TournamentID: tournamentID}
		before := 0
		if round != nil {
			if *round < 1 || *round > len(d.rounds) {
				return fmt.Errorf("round %d of tournament %s: %w", *round, tournamentID, tournament.ErrNotFound)
			}
			out.Round = *round
			before = *round + 1
		} else {
			out.Round = len(d.rounds)
			out.Final = d.tournament.Status == tournament.TournamentFinished
		}
		out.Entries = standings.Compute(d.history(before))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type ViewResult struct {
	View  navigation.View  `json:"view"`
	Input navigation.Input `json:"input"`
}

// ResolveView picks the screen for a viewer. The owner is the organizer, an actively
// registered player is a player, and anyone else (uuid.Nil included) is a spectator.
func (s *StandingsService) ResolveView(ctx context.Context, tournamentID, viewerID uuid.UUID) (*ViewResult, error) {
	var in navigation.Input
	err := s.run(ctx, nil, func(ctx context.Context) error {
		t, err := s.store.GetTournament(ctx, nil, tournamentID)
		if err != nil {
			return err
		}
		in = navigation.Input{Tournament: t.Status, Role: navigation.RoleSpectator}

		if viewerID != uuid.Nil {
			switch {
			case t.OwnerID == viewerID:
				in.Role = navigation.RoleOrganizer
			default:
				reg, err := s.store.GetRegistration(ctx, nil, tournamentID, viewerID)
				if err != nil && !errors.Is(err, tournament.ErrPlayerNotFound) {
					return fmt.Errorf("failed to load registration: %w", err)
				}
				if reg != nil && reg.IsActive() {
					in.Role = navigation.RolePlayer
				}
			}
		}

		current, err := s.store.GetCurrentRound(ctx, nil, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to load current round: %w", err)
		}
		if current == nil {
			return nil
		}
		in.Round = &current.State

		if in.Role != navigation.RolePlayer {
			return nil
		}
		tables, err := s.store.ListTables(ctx, nil, current.ID)
		if err != nil {
			return fmt.Errorf("failed to load tables: %w", err)
		}
		if table, _, ok := tournament.FindSeat(tables, viewerID); ok {
			state := table.State()
			in.HasTable = true
			in.Table = &state
			in.OnBye = table.IsBye()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ViewResult{View: navigation.Resolve(in), Input: in}, nil
}
