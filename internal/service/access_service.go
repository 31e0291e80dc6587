package service

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/duplas/internal/store"
	"github.com/AdamBeresnev/duplas/internal/tournament"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Scope names what kind of resource an id refers to.
type Scope string

const (
	ScopeTournament Scope = "tournament"
	ScopeRound      Scope = "round"
	ScopeTable      Scope = "table"
)

// AccessService answers whether a viewer may act on a resource. The organizer is the
// tournament owner; players may only report the table they sit at.
type AccessService struct {
	*core
}

func NewAccessService(db *sqlx.DB, store *store.TournamentStore, opts Options) *AccessService {
	return &AccessService{core: newCore(db, store, opts)}
}

// owning loads the tournament a resource belongs to, plus the table for ScopeTable.
func (s *AccessService) owning(ctx context.Context, scope Scope, id uuid.UUID) (*tournament.Tournament, *tournament.Table, error) {
	var table *tournament.Table
	tournamentID := id
	switch scope {
	case ScopeTournament:
	case ScopeTable:
		t, err := s.store.GetTable(ctx, nil, id)
		if err != nil {
			return nil, nil, err
		}
		table, id = t, t.RoundID
		fallthrough
	case ScopeRound:
		r, err := s.store.GetRound(ctx, nil, id)
		if err != nil {
			return nil, nil, err
		}
		tournamentID = r.TournamentID
	default:
		return nil, nil, fmt.Errorf("%w: unknown scope %q", tournament.ErrInvalidInput, scope)
	}

	t, err := s.store.GetTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, nil, err
	}
	return t, table, nil
}

// RequireOrganizer fails with ErrForbidden unless viewerID owns the tournament the
// resource belongs to.
func (s *AccessService) RequireOrganizer(ctx context.Context, scope Scope, id, viewerID uuid.UUID) error {
	return s.run(ctx, nil, func(ctx context.Context) error {
		t, _, err := s.owning(ctx, scope, id)
		if err != nil {
			return err
		}
		if t.OwnerID != viewerID {
			return fmt.Errorf("%w: only the organizer of %q can do this", tournament.ErrForbidden, t.Name)
		}
		return nil
	})
}

// RequireReporter lets the organizer and the players seated at the table through.
func (s *AccessService) RequireReporter(ctx context.Context, tableID, viewerID uuid.UUID) error {
	return s.run(ctx, nil, func(ctx context.Context) error {
		t, table, err := s.owning(ctx, ScopeTable, tableID)
		if err != nil {
			return err
		}
		if t.OwnerID == viewerID || table.SeatOf(viewerID) != 0 {
			return nil
		}
		return fmt.Errorf("%w: only players at table %d or the organizer can report it", tournament.ErrForbidden, table.Number)
	})
}
