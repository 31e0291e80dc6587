package store

import (
	"context"
	"fmt"
	"time"

	"github.com/AdamBeresnev/duplas/internal/tournament"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const roundColumns = "id, tournament_id, number, state, version, created_at"

func (s *TournamentStore) CreateRound(ctx context.Context, q sqlx.ExtContext, r *tournament.Round) error {
	_, err := sqlx.NamedExecContext(ctx, executor(s.db, q), `INSERT INTO rounds (id, tournament_id, number, state, version, created_at)
		VALUES (:id, :tournament_id, :number, :state, :version, :created_at)`, r)
	if isUniqueViolation(err) {
		return fmt.Errorf("round %d already exists: %w", r.Number, tournament.ErrConcurrentModification)
	}
	return err
}

func (s *TournamentStore) GetRound(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*tournament.Round, error) {
	q = executor(s.db, q)
	var r tournament.Round
	err := sqlx.GetContext(ctx, q, &r, q.Rebind("SELECT "+roundColumns+" FROM rounds WHERE id = ?"), id)
	if err != nil {
		return nil, notFound(err, fmt.Errorf("round %s: %w", id, tournament.ErrNotFound))
	}
	return &r, nil
}

func (s *TournamentStore) GetRoundByNumber(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID, number int) (*tournament.Round, error) {
	q = executor(s.db, q)
	var r tournament.Round
	err := sqlx.GetContext(ctx, q, &r, q.Rebind("SELECT "+roundColumns+" FROM rounds WHERE tournament_id = ? AND number = ?"), tournamentID, number)
	if err != nil {
		return nil, notFound(err, fmt.Errorf("round %d: %w", number, tournament.ErrNotFound))
	}
	return &r, nil
}

// GetCurrentRound returns the highest numbered round, or nil before the first one exists.
func (s *TournamentStore) GetCurrentRound(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) (*tournament.Round, error) {
	rounds, err := s.ListRounds(ctx, q, tournamentID)
	if err != nil || len(rounds) == 0 {
		return nil, err
	}
	return &rounds[len(rounds)-1], nil
}

func (s *TournamentStore) ListRounds(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) ([]tournament.Round, error) {
	q = executor(s.db, q)
	var rounds []tournament.Round
	err := sqlx.SelectContext(ctx, q, &rounds, q.Rebind("SELECT "+roundColumns+" FROM rounds WHERE tournament_id = ? ORDER BY number ASC"), tournamentID)
	return rounds, err
}

// SaveRoundState writes r's new state and bumps its version, provided nobody else has
// written the round since r was read. Table edits call it with the unchanged state so
// they conflict with each other too.
func (s *TournamentStore) SaveRoundState(ctx context.Context, q sqlx.ExtContext, r *tournament.Round, to tournament.RoundState) error {
	q = executor(s.db, q)
	result, err := q.ExecContext(ctx, q.Rebind("UPDATE rounds SET state = ?, version = version + 1 WHERE id = ? AND version = ?"), to, r.ID, r.Version)
	if err != nil {
		return err
	}
	if err := checkAffectedRows(result, fmt.Errorf("round %d changed since it was read: %w", r.Number, tournament.ErrConcurrentModification)); err != nil {
		return err
	}
	r.State = to
	r.Version++
	return nil
}

const tableColumns = "id, round_id, number, score_1, score_2, winning_side, reported_at"

type seatRow struct {
	TableID  uuid.UUID `db:"table_id"`
	RoundID  uuid.UUID `db:"round_id"`
	PlayerID uuid.UUID `db:"player_id"`
	Side     int       `db:"side"`
}

// CreateTables inserts the tables and their seats.
func (s *TournamentStore) CreateTables(ctx context.Context, q sqlx.ExtContext, tables []tournament.Table) error {
	if len(tables) == 0 {
		return nil
	}
	q = executor(s.db, q)
	_, err := sqlx.NamedExecContext(ctx, q, `INSERT INTO game_tables (id, round_id, number, score_1, score_2, winning_side, reported_at)
		VALUES (:id, :round_id, :number, :score_1, :score_2, :winning_side, :reported_at)`, tables)
	if err != nil {
		return err
	}

	var seats []seatRow
	for _, t := range tables {
		for _, seat := range t.Seats {
			seats = append(seats, seatRow{TableID: t.ID, RoundID: t.RoundID, PlayerID: seat.PlayerID, Side: seat.Side})
		}
	}
	if len(seats) == 0 {
		return nil
	}
	_, err = sqlx.NamedExecContext(ctx, q, `INSERT INTO seats (table_id, round_id, player_id, side)
		VALUES (:table_id, :round_id, :player_id, :side)`, seats)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: a player would be seated twice in the round", tournament.ErrRosterInvariantViolation)
	}
	return err
}

// ListTables loads a round's tables with their seats, byes last.
func (s *TournamentStore) ListTables(ctx context.Context, q sqlx.ExtContext, roundID uuid.UUID) ([]tournament.Table, error) {
	q = executor(s.db, q)
	var tables []tournament.Table
	err := sqlx.SelectContext(ctx, q, &tables, q.Rebind(`SELECT `+tableColumns+` FROM game_tables WHERE round_id = ?
		ORDER BY CASE WHEN number = 0 THEN 1 ELSE 0 END, number ASC, id ASC`), roundID)
	if err != nil {
		return nil, err
	}

	var seats []seatRow
	err = sqlx.SelectContext(ctx, q, &seats, q.Rebind("SELECT table_id, round_id, player_id, side FROM seats WHERE round_id = ? ORDER BY side ASC, player_id ASC"), roundID)
	if err != nil {
		return nil, err
	}
	attachSeats(tables, seats)
	return tables, nil
}

// ListTournamentTables loads every table of every round of a tournament, keyed by round id.
func (s *TournamentStore) ListTournamentTables(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) (map[uuid.UUID][]tournament.Table, error) {
	q = executor(s.db, q)
	var tables []tournament.Table
	err := sqlx.SelectContext(ctx, q, &tables, q.Rebind(`SELECT t.id, t.round_id, t.number, t.score_1, t.score_2, t.winning_side, t.reported_at
		FROM game_tables t JOIN rounds r ON r.id = t.round_id
		WHERE r.tournament_id = ?
		ORDER BY r.number ASC, CASE WHEN t.number = 0 THEN 1 ELSE 0 END, t.number ASC, t.id ASC`), tournamentID)
	if err != nil {
		return nil, err
	}

	var seats []seatRow
	err = sqlx.SelectContext(ctx, q, &seats, q.Rebind(`SELECT s.table_id, s.round_id, s.player_id, s.side
		FROM seats s JOIN rounds r ON r.id = s.round_id
		WHERE r.tournament_id = ?
		ORDER BY s.side ASC, s.player_id ASC`), tournamentID)
	if err != nil {
		return nil, err
	}
	attachSeats(tables, seats)

	byRound := make(map[uuid.UUID][]tournament.Table)
	for _, t := range tables {
		byRound[t.RoundID] = append(byRound[t.RoundID], t)
	}
	return byRound, nil
}

func attachSeats(tables []tournament.Table, seats []seatRow) {
	idx := make(map[uuid.UUID]int, len(tables))
	for i := range tables {
		idx[tables[i].ID] = i
	}
	for _, seat := range seats {
		if i, ok := idx[seat.TableID]; ok {
			tables[i].Seats = append(tables[i].Seats, tournament.Seat{TableID: seat.TableID, PlayerID: seat.PlayerID, Side: seat.Side})
		}
	}
}

func (s *TournamentStore) GetTable(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*tournament.Table, error) {
	q = executor(s.db, q)
	var t tournament.Table
	err := sqlx.GetContext(ctx, q, &t, q.Rebind("SELECT "+tableColumns+" FROM game_tables WHERE id = ?"), id)
	if err != nil {
		return nil, notFound(err, fmt.Errorf("table %s: %w", id, tournament.ErrNotFound))
	}

	var seats []seatRow
	err = sqlx.SelectContext(ctx, q, &seats, q.Rebind("SELECT table_id, round_id, player_id, side FROM seats WHERE table_id = ? ORDER BY side ASC, player_id ASC"), id)
	if err != nil {
		return nil, err
	}
	tables := []tournament.Table{t}
	attachSeats(tables, seats)
	return &tables[0], nil
}

func (s *TournamentStore) DeleteRoundTables(ctx context.Context, q sqlx.ExtContext, roundID uuid.UUID) error {
	q = executor(s.db, q)
	if _, err := q.ExecContext(ctx, q.Rebind("DELETE FROM seats WHERE round_id = ?"), roundID); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, q.Rebind("DELETE FROM game_tables WHERE round_id = ?"), roundID)
	return err
}

func (s *TournamentStore) DeleteTable(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) error {
	q = executor(s.db, q)
	if _, err := q.ExecContext(ctx, q.Rebind("DELETE FROM seats WHERE table_id = ?"), id); err != nil {
		return err
	}
	result, err := q.ExecContext(ctx, q.Rebind("DELETE FROM game_tables WHERE id = ?"), id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, fmt.Errorf("table %s: %w", id, tournament.ErrNotFound))
}

// ReportResult records a result on a table that has none yet. A table that already
// carries a result yields ErrAlreadyReported and is left untouched.
func (s *TournamentStore) ReportResult(ctx context.Context, q sqlx.ExtContext, tableID uuid.UUID, score1, score2, winningSide int, at time.Time) error {
	q = executor(s.db, q)
	result, err := q.ExecContext(ctx, q.Rebind(`UPDATE game_tables SET score_1 = ?, score_2 = ?, winning_side = ?, reported_at = ?
		WHERE id = ? AND winning_side IS NULL`), score1, score2, winningSide, at, tableID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, fmt.Errorf("table %s: %w", tableID, tournament.ErrAlreadyReported))
}

// OverwriteResult replaces whatever result the table carries.
func (s *TournamentStore) OverwriteResult(ctx context.Context, q sqlx.ExtContext, tableID uuid.UUID, score1, score2, winningSide int, at time.Time) error {
	q = executor(s.db, q)
	result, err := q.ExecContext(ctx, q.Rebind(`UPDATE game_tables SET score_1 = ?, score_2 = ?, winning_side = ?, reported_at = ?
		WHERE id = ?`), score1, score2, winningSide, at, tableID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, fmt.Errorf("table %s: %w", tableID, tournament.ErrNotFound))
}

func (s *TournamentStore) ClearResult(ctx context.Context, q sqlx.ExtContext, tableID uuid.UUID) error {
	q = executor(s.db, q)
	result, err := q.ExecContext(ctx, q.Rebind(`UPDATE game_tables SET score_1 = 0, score_2 = 0, winning_side = NULL, reported_at = NULL
		WHERE id = ?`), tableID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, fmt.Errorf("table %s: %w", tableID, tournament.ErrNotFound))
}

func (s *TournamentStore) CountUnreported(ctx context.Context, q sqlx.ExtContext, roundID uuid.UUID) (int, error) {
	q = executor(s.db, q)
	var n int
	err := sqlx.GetContext(ctx, q, &n, q.Rebind("SELECT COUNT(*) FROM game_tables WHERE round_id = ? AND winning_side IS NULL"), roundID)
	return n, err
}

func (s *TournamentStore) InsertSeat(ctx context.Context, q sqlx.ExtContext, roundID uuid.UUID, seat tournament.Seat) error {
	q = executor(s.db, q)
	_, err := q.ExecContext(ctx, q.Rebind("INSERT INTO seats (table_id, round_id, player_id, side) VALUES (?, ?, ?, ?)"),
		seat.TableID, roundID, seat.PlayerID, seat.Side)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: player %s is already seated in this round", tournament.ErrRosterInvariantViolation, seat.PlayerID)
	}
	return err
}

// MoveSeat puts a seated player at tableID on the given side.
func (s *TournamentStore) MoveSeat(ctx context.Context, q sqlx.ExtContext, roundID, playerID, tableID uuid.UUID, side int) error {
	q = executor(s.db, q)
	result, err := q.ExecContext(ctx, q.Rebind("UPDATE seats SET table_id = ?, side = ? WHERE round_id = ? AND player_id = ?"),
		tableID, side, roundID, playerID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, fmt.Errorf("player %s has no seat in this round: %w", playerID, tournament.ErrPlayerNotFound))
}

func (s *TournamentStore) DeleteSeat(ctx context.Context, q sqlx.ExtContext, roundID, playerID uuid.UUID) error {
	q = executor(s.db, q)
	result, err := q.ExecContext(ctx, q.Rebind("DELETE FROM seats WHERE round_id = ? AND player_id = ?"), roundID, playerID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, fmt.Errorf("player %s has no seat in this round: %w", playerID, tournament.ErrPlayerNotFound))
}
