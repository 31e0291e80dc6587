package service

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/duplas/internal/lifecycle"
	"github.com/AdamBeresnev/duplas/internal/live"
	"github.com/AdamBeresnev/duplas/internal/lock"
	"github.com/AdamBeresnev/duplas/internal/pairing"
	"github.com/AdamBeresnev/duplas/internal/store"
	"github.com/AdamBeresnev/duplas/internal/tournament"
	"github.com/AdamBeresnev/duplas/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TableService struct {
	*core
}

func NewTableService(db *sqlx.DB, store *store.TournamentStore, opts Options) *TableService {
	return &TableService{core: newCore(db, store, opts)}
}

type ResultInput struct {
	Score1 int `json:"score_1"`
	Score2 int `json:"score_2"`
	// Derived from the scores when nil: the higher score wins, equal scores draw.
	WinningSide *int `json:"winning_side"`
}

func (in ResultInput) winningSide() (int, error) {
	if in.Score1 < 0 || in.Score2 < 0 {
		return 0, fmt.Errorf("%w: scores must not be negative", tournament.ErrInvalidInput)
	}
	derived := tournament.Draw
	switch {
	case in.Score1 > in.Score2:
		derived = tournament.SideOne
	case in.Score2 > in.Score1:
		derived = tournament.SideTwo
	}
	if in.WinningSide == nil {
		return derived, nil
	}

	side := *in.WinningSide
	if side != tournament.Draw && side != tournament.SideOne && side != tournament.SideTwo {
		return 0, fmt.Errorf("%w: winning side must be 0, 1 or 2, got %d", tournament.ErrInvalidInput, side)
	}
	// 0-0 is how a forfeit is entered, any side may win it
	if (in.Score1 != 0 || in.Score2 != 0) && side != derived {
		return 0, fmt.Errorf("%w: winning side %d contradicts the score %d-%d", tournament.ErrInvalidInput, side, in.Score1, in.Score2)
	}
	return side, nil
}

type tableChange struct {
	round  *tournament.Round
	tables []tournament.Table
	// finished is set when the change completed the round
	finished bool
}

// mutate runs fn on a fresh read of the table and its round while holding the round
// lock. Every mutation bumps the round version so concurrent edits of one round
// conflict. With tournamentLock the tournament key is taken first; changes that can
// finish the round need it.
func (s *TableService) mutate(ctx context.Context, tableID uuid.UUID, tournamentLock bool,
	fn func(ctx context.Context, tx *sqlx.Tx, r *tournament.Round, t *tournament.Table, change *tableChange) error) (*tableChange, error) {
	lctx, cancel := context.WithTimeout(ctx, s.timeout)
	t, err := s.store.GetTable(lctx, nil, tableID)
	if err != nil {
		cancel()
		return nil, timeoutErr(err)
	}
	r, err := s.store.GetRound(lctx, nil, t.RoundID)
	cancel()
	if err != nil {
		return nil, timeoutErr(err)
	}

	roundID := r.ID
	keys := []string{lock.RoundKey(roundID)}
	if tournamentLock {
		keys = append([]string{lock.TournamentKey(r.TournamentID)}, keys...)
	}

	var change *tableChange
	err = s.run(ctx, keys, func(ctx context.Context) error {
		return s.withTx(ctx, func(tx *sqlx.Tx) error {
			r, err := s.store.GetRound(ctx, tx, roundID)
			if err != nil {
				return err
			}
			t, err := s.store.GetTable(ctx, tx, tableID)
			if err != nil {
				return err
			}

			change = &tableChange{round: r}
			version := r.Version
			if err := fn(ctx, tx, r, t, change); err != nil {
				return err
			}
			if r.Version == version {
				return s.store.SaveRoundState(ctx, tx, r, r.State)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

func (s *TableService) publishChange(ev live.EventType, change *tableChange) {
	r := change.round
	for i := range change.tables {
		t := change.tables[i]
		s.publish(live.Event{Type: ev, TournamentID: r.TournamentID, RoundID: &r.ID, TableID: &t.ID, Payload: t})
	}
	if change.finished {
		s.publish(live.Event{Type: live.EventRoundState, TournamentID: r.TournamentID, RoundID: &r.ID, Payload: r.State})
	}
}

func requirePlayable(t *tournament.Table) error {
	if t.IsBye() {
		return fmt.Errorf("%w: table %d is a bye and carries its result already", tournament.ErrInvalidTransition, t.Number)
	}
	if !t.IsComplete() {
		return fmt.Errorf("%w: table %d has %d v %d players", tournament.ErrRosterInvariantViolation,
			t.Number, len(t.Side(tournament.SideOne)), len(t.Side(tournament.SideTwo)))
	}
	return nil
}

// finishIfDone closes the round when t was its last unreported table.
func (s *TableService) finishIfDone(ctx context.Context, tx *sqlx.Tx, r *tournament.Round, change *tableChange) error {
	unreported, err := s.store.CountUnreported(ctx, tx, r.ID)
	if err != nil {
		return fmt.Errorf("failed to count unreported tables: %w", err)
	}
	if unreported > 0 {
		return nil
	}
	to, err := lifecycle.FinishRound(r, unreported)
	if err != nil {
		return err
	}
	if err := s.store.SaveRoundState(ctx, tx, r, to); err != nil {
		return err
	}
	change.finished = true
	return nil
}

func (s *TableService) setResult(t *tournament.Table, in ResultInput, side int) {
	t.Score1, t.Score2 = in.Score1, in.Score2
	t.WinningSide = utils.Ptr(side)
	t.ReportedAt = utils.Ptr(s.now())
}

// ReportResult records the result of a table in an active round. A table takes one
// report; later ones fail with ErrAlreadyReported and leave it unchanged. Reporting
// the last open table finishes the round.
func (s *TableService) ReportResult(ctx context.Context, tableID uuid.UUID, in ResultInput) (*tournament.Table, error) {
	side, err := in.winningSide()
	if err != nil {
		return nil, err
	}

	change, err := s.mutate(ctx, tableID, true, func(ctx context.Context, tx *sqlx.Tx, r *tournament.Round, t *tournament.Table, change *tableChange) error {
		if t.IsReported() {
			return fmt.Errorf("table %d: %w", t.Number, tournament.ErrAlreadyReported)
		}
		if err := lifecycle.CanReport(r); err != nil {
			return err
		}
		if err := requirePlayable(t); err != nil {
			return err
		}

		s.setResult(t, in, side)
		if err := s.store.ReportResult(ctx, tx, t.ID, in.Score1, in.Score2, side, *t.ReportedAt); err != nil {
			return err
		}
		change.tables = []tournament.Table{*t}
		return s.finishIfDone(ctx, tx, r, change)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("result reported", "table_id", tableID, "winning_side", side, "round_finished", change.finished)
	s.publishChange(live.EventResultReported, change)
	return &change.tables[0], nil
}

// EditResult lets the organizer overwrite a result. It works on the active round, and
// on the latest round of a running tournament after it has finished.
func (s *TableService) EditResult(ctx context.Context, tableID uuid.UUID, in ResultInput) (*tournament.Table, error) {
	side, err := in.winningSide()
	if err != nil {
		return nil, err
	}

	change, err := s.mutate(ctx, tableID, true, func(ctx context.Context, tx *sqlx.Tx, r *tournament.Round, t *tournament.Table, change *tableChange) error {
		switch r.State {
		case tournament.RoundActive:
		case tournament.RoundFinished:
			tm, err := s.store.GetTournament(ctx, tx, r.TournamentID)
			if err != nil {
				return err
			}
			current, err := s.store.GetCurrentRound(ctx, tx, r.TournamentID)
			if err != nil {
				return fmt.Errorf("failed to load current round: %w", err)
			}
			if tm.Status != tournament.TournamentInProgress || current == nil || current.ID != r.ID {
				return fmt.Errorf("%w: only the latest round of a running tournament can be corrected after it finished",
					tournament.ErrInvalidTransition)
			}
		default:
			return fmt.Errorf("%w: results can only be edited once round %d is active, it is %s",
				tournament.ErrInvalidTransition, r.Number, r.State)
		}
		if err := requirePlayable(t); err != nil {
			return err
		}

		s.setResult(t, in, side)
		if err := s.store.OverwriteResult(ctx, tx, t.ID, in.Score1, in.Score2, side, *t.ReportedAt); err != nil {
			return err
		}
		change.tables = []tournament.Table{*t}
		if r.State == tournament.RoundActive {
			return s.finishIfDone(ctx, tx, r, change)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("result edited", "table_id", tableID, "winning_side", side)
	s.publishChange(live.EventResultReported, change)
	return &change.tables[0], nil
}

// ReopenResult clears a reported result so the table can be reported again.
func (s *TableService) ReopenResult(ctx context.Context, tableID uuid.UUID) (*tournament.Table, error) {
	change, err := s.mutate(ctx, tableID, false, func(ctx context.Context, tx *sqlx.Tx, r *tournament.Round, t *tournament.Table, change *tableChange) error {
		if err := lifecycle.CanReport(r); err != nil {
			return err
		}
		if t.IsBye() {
			return fmt.Errorf("%w: table %d is a bye and carries its result already", tournament.ErrInvalidTransition, t.Number)
		}
		if !t.IsReported() {
			return fmt.Errorf("%w: table %d has no result to reopen", tournament.ErrInvalidTransition, t.Number)
		}
		if err := s.store.ClearResult(ctx, tx, t.ID); err != nil {
			return err
		}
		t.Score1, t.Score2, t.WinningSide, t.ReportedAt = 0, 0, nil, nil
		change.tables = []tournament.Table{*t}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("result reopened", "table_id", tableID)
	s.publishChange(live.EventResultReported, change)
	return &change.tables[0], nil
}

func requireUnreported(t *tournament.Table) error {
	if t.IsReported() && !t.IsBye() {
		return fmt.Errorf("table %d has a result and cannot be edited: %w", t.Number, tournament.ErrAlreadyReported)
	}
	return nil
}

func freeSide(t *tournament.Table) (int, bool) {
	for _, side := range []int{tournament.SideOne, tournament.SideTwo} {
		if t.HasRoom(side) {
			return side, true
		}
	}
	return 0, false
}

// MoveSeat moves a player from one table of a round to the first free side of another.
// A bye table left empty by the move is removed.
func (s *TableService) MoveSeat(ctx context.Context, fromTableID, toTableID, playerID uuid.UUID) ([]tournament.Table, error) {
	change, err := s.mutate(ctx, fromTableID, false, func(ctx context.Context, tx *sqlx.Tx, r *tournament.Round, from *tournament.Table, change *tableChange) error {
		if err := lifecycle.CanEditPairing(r); err != nil {
			return err
		}
		if fromTableID == toTableID {
			return fmt.Errorf("%w: player is already at table %d", tournament.ErrSeatOccupied, from.Number)
		}
		to, err := s.store.GetTable(ctx, tx, toTableID)
		if err != nil {
			return err
		}
		if to.RoundID != r.ID {
			return fmt.Errorf("%w: tables belong to different rounds", tournament.ErrInvalidInput)
		}
		if from.SeatOf(playerID) == 0 {
			return fmt.Errorf("player %s is not at table %d: %w", playerID, from.Number, tournament.ErrPlayerNotFound)
		}
		if err := requireUnreported(from); err != nil {
			return err
		}
		if err := requireUnreported(to); err != nil {
			return err
		}
		side, ok := freeSide(to)
		if !ok {
			return fmt.Errorf("%w: table %d is full", tournament.ErrSeatOccupied, to.Number)
		}

		if err := s.store.MoveSeat(ctx, tx, r.ID, playerID, to.ID, side); err != nil {
			return err
		}
		if from.IsBye() {
			if err := s.store.DeleteTable(ctx, tx, from.ID); err != nil {
				return fmt.Errorf("failed to remove empty bye table: %w", err)
			}
		}
		return s.reload(ctx, tx, change, from.ID, to.ID)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("seat moved", "player_id", playerID, "from", fromTableID, "to", toTableID)
	s.publishChange(live.EventTablesChanged, change)
	return change.tables, nil
}

// SwapSide moves a player to the other side of their table. With a partner id the two
// players trade places; with uuid.Nil the player takes a free slot on the other side.
func (s *TableService) SwapSide(ctx context.Context, tableID, playerID, withPlayerID uuid.UUID) (*tournament.Table, error) {
	change, err := s.mutate(ctx, tableID, false, func(ctx context.Context, tx *sqlx.Tx, r *tournament.Round, t *tournament.Table, change *tableChange) error {
		if err := lifecycle.CanEditPairing(r); err != nil {
			return err
		}
		if err := requireUnreported(t); err != nil {
			return err
		}
		side := t.SeatOf(playerID)
		if side == 0 {
			return fmt.Errorf("player %s is not at table %d: %w", playerID, t.Number, tournament.ErrPlayerNotFound)
		}
		other := tournament.SideTwo
		if side == tournament.SideTwo {
			other = tournament.SideOne
		}

		if withPlayerID == uuid.Nil {
			if !t.HasRoom(other) {
				return fmt.Errorf("%w: side %d of table %d is full", tournament.ErrSeatOccupied, other, t.Number)
			}
			if err := s.store.MoveSeat(ctx, tx, r.ID, playerID, t.ID, other); err != nil {
				return err
			}
			return s.reload(ctx, tx, change, t.ID)
		}

		withSide := t.SeatOf(withPlayerID)
		if withSide == 0 {
			return fmt.Errorf("player %s is not at table %d: %w", withPlayerID, t.Number, tournament.ErrPlayerNotFound)
		}
		if withSide == side {
			return fmt.Errorf("%w: both players sit on side %d", tournament.ErrInvalidInput, side)
		}
		if err := s.store.MoveSeat(ctx, tx, r.ID, playerID, t.ID, other); err != nil {
			return err
		}
		if err := s.store.MoveSeat(ctx, tx, r.ID, withPlayerID, t.ID, side); err != nil {
			return err
		}
		return s.reload(ctx, tx, change, t.ID)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("side swapped", "table_id", tableID, "player_id", playerID, "with", withPlayerID)
	s.publishChange(live.EventTablesChanged, change)
	return &change.tables[0], nil
}

// SeatPlayer seats an unseated active player at a table of a paired round.
func (s *TableService) SeatPlayer(ctx context.Context, tableID, playerID uuid.UUID) (*tournament.Table, error) {
	change, err := s.mutate(ctx, tableID, false, func(ctx context.Context, tx *sqlx.Tx, r *tournament.Round, t *tournament.Table, change *tableChange) error {
		if err := lifecycle.CanRestructure(r); err != nil {
			return err
		}
		reg, err := s.store.GetRegistration(ctx, tx, r.TournamentID, playerID)
		if err != nil {
			return err
		}
		if !reg.IsActive() {
			return fmt.Errorf("player %s has withdrawn: %w", playerID, tournament.ErrPlayerNotFound)
		}
		side, ok := freeSide(t)
		if !ok {
			return fmt.Errorf("%w: table %d is full", tournament.ErrSeatOccupied, t.Number)
		}
		if err := s.store.InsertSeat(ctx, tx, r.ID, tournament.Seat{TableID: t.ID, PlayerID: playerID, Side: side}); err != nil {
			return err
		}
		return s.reload(ctx, tx, change, t.ID)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("player seated", "table_id", tableID, "player_id", playerID)
	s.publishChange(live.EventTablesChanged, change)
	return &change.tables[0], nil
}

// BenchPlayer takes a player off their table in a paired round and gives them a fresh
// bye table. The table they leave needs filling again before the round can start.
func (s *TableService) BenchPlayer(ctx context.Context, tableID, playerID uuid.UUID) (*tournament.Table, error) {
	var bye tournament.Table
	change, err := s.mutate(ctx, tableID, false, func(ctx context.Context, tx *sqlx.Tx, r *tournament.Round, t *tournament.Table, change *tableChange) error {
		if err := lifecycle.CanRestructure(r); err != nil {
			return err
		}
		if t.SeatOf(playerID) == 0 {
			return fmt.Errorf("player %s is not at table %d: %w", playerID, t.Number, tournament.ErrPlayerNotFound)
		}
		if t.IsBye() {
			return fmt.Errorf("%w: player %s already has a bye", tournament.ErrSeatOccupied, playerID)
		}
		if err := s.store.DeleteSeat(ctx, tx, r.ID, playerID); err != nil {
			return err
		}
		bye = pairing.ByeTable(r.ID, playerID)
		if err := s.store.CreateTables(ctx, tx, []tournament.Table{bye}); err != nil {
			return fmt.Errorf("failed to create bye table: %w", err)
		}
		return s.reload(ctx, tx, change, t.ID, bye.ID)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("player benched", "table_id", tableID, "player_id", playerID, "bye_table_id", bye.ID)
	s.publishChange(live.EventTablesChanged, change)
	return &change.tables[len(change.tables)-1], nil
}

// AddTable appends an empty table to a paired round.
func (s *TableService) AddTable(ctx context.Context, roundID uuid.UUID) (*tournament.Table, error) {
	var (
		round *tournament.Round
		table tournament.Table
	)
	err := s.run(ctx, []string{lock.RoundKey(roundID)}, func(ctx context.Context) error {
		return s.withTx(ctx, func(tx *sqlx.Tx) error {
			r, err := s.store.GetRound(ctx, tx, roundID)
			if err != nil {
				return err
			}
			if err := lifecycle.CanRestructure(r); err != nil {
				return err
			}
			tables, err := s.store.ListTables(ctx, tx, r.ID)
			if err != nil {
				return fmt.Errorf("failed to load tables: %w", err)
			}
			number := 1
			for _, t := range tables {
				if t.Number >= number {
					number = t.Number + 1
				}
			}
			table = tournament.Table{ID: uuid.New(), RoundID: r.ID, Number: number, Seats: []tournament.Seat{}}
			if err := s.store.CreateTables(ctx, tx, []tournament.Table{table}); err != nil {
				return fmt.Errorf("failed to create table: %w", err)
			}
			round = r
			return s.store.SaveRoundState(ctx, tx, r, r.State)
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("table added", "round_id", roundID, "number", table.Number)
	s.publish(live.Event{Type: live.EventTablesChanged, TournamentID: round.TournamentID, RoundID: &round.ID, TableID: &table.ID, Payload: table})
	return &table, nil
}

// RemoveTable deletes an empty table from a paired round.
func (s *TableService) RemoveTable(ctx context.Context, tableID uuid.UUID) error {
	change, err := s.mutate(ctx, tableID, false, func(ctx context.Context, tx *sqlx.Tx, r *tournament.Round, t *tournament.Table, change *tableChange) error {
		if err := lifecycle.CanRestructure(r); err != nil {
			return err
		}
		if len(t.Seats) > 0 {
			return fmt.Errorf("%w: table %d still seats %d player(s)", tournament.ErrSeatOccupied, t.Number, len(t.Seats))
		}
		return s.store.DeleteTable(ctx, tx, t.ID)
	})
	if err != nil {
		return err
	}

	r := change.round
	s.log.Info("table removed", "table_id", tableID)
	s.publish(live.Event{Type: live.EventTablesChanged, TournamentID: r.TournamentID, RoundID: &r.ID, TableID: &tableID})
	return nil
}

// reload records the current state of the given tables. Tables deleted by the change
// are skipped.
func (s *TableService) reload(ctx context.Context, tx *sqlx.Tx, change *tableChange, ids ...uuid.UUID) error {
	tables, err := s.store.ListTables(ctx, tx, change.round.ID)
	if err != nil {
		return fmt.Errorf("failed to reload tables: %w", err)
	}
	for _, id := range ids {
		for i := range tables {
			if tables[i].ID == id {
				change.tables = append(change.tables, tables[i])
			}
		}
	}
	return nil
}
