package store

import (
	"context"
	"fmt"
	"time"

	"github.com/AdamBeresnev/duplas/internal/tournament"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

const tournamentColumns = `id, owner_id, name, status, win_points, draw_points, loss_points, bye_points,
	round_count, capacity, is_free, created_at, finished_at`

func (s *TournamentStore) CreateTournament(ctx context.Context, q sqlx.ExtContext, t *tournament.Tournament) error {
	_, err := sqlx.NamedExecContext(ctx, executor(s.db, q), `INSERT INTO tournaments (id, owner_id, name, status, win_points, draw_points, loss_points, bye_points, round_count, capacity, is_free, created_at)
		VALUES (:id, :owner_id, :name, :status, :win_points, :draw_points, :loss_points, :bye_points, :round_count, :capacity, :is_free, :created_at)`, t)
	return err
}

func (s *TournamentStore) GetTournament(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*tournament.Tournament, error) {
	q = executor(s.db, q)
	var t tournament.Tournament
	err := sqlx.GetContext(ctx, q, &t, q.Rebind("SELECT "+tournamentColumns+" FROM tournaments WHERE id = ?"), id)
	if err != nil {
		return nil, notFound(err, fmt.Errorf("tournament %s: %w", id, tournament.ErrNotFound))
	}
	return &t, nil
}

// ListTournaments returns running tournaments first, then open ones, then the rest,
// newest first within each group.
func (s *TournamentStore) ListTournaments(ctx context.Context) ([]tournament.Tournament, error) {
	var tournaments []tournament.Tournament
	err := s.db.SelectContext(ctx, &tournaments, s.db.Rebind(`SELECT `+tournamentColumns+` FROM tournaments
		ORDER BY CASE status WHEN ? THEN 0 WHEN ? THEN 1 ELSE 2 END, created_at DESC`),
		tournament.TournamentInProgress, tournament.TournamentOpen)
	return tournaments, err
}

func (s *TournamentStore) UpdateTournamentStatus(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, status tournament.TournamentStatus, finishedAt *time.Time) error {
	q = executor(s.db, q)
	result, err := q.ExecContext(ctx, q.Rebind("UPDATE tournaments SET status = ?, finished_at = ? WHERE id = ?"), status, finishedAt, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, fmt.Errorf("tournament %s: %w", id, tournament.ErrNotFound))
}

const registrationColumns = "id, tournament_id, player_id, status, created_at"

func (s *TournamentStore) CreateRegistration(ctx context.Context, q sqlx.ExtContext, r *tournament.Registration) error {
	_, err := sqlx.NamedExecContext(ctx, executor(s.db, q), `INSERT INTO registrations (id, tournament_id, player_id, status, created_at)
		VALUES (:id, :tournament_id, :player_id, :status, :created_at)`, r)
	if isUniqueViolation(err) {
		return tournament.ErrAlreadyRegistered
	}
	return err
}

func (s *TournamentStore) GetRegistration(ctx context.Context, q sqlx.ExtContext, tournamentID, playerID uuid.UUID) (*tournament.Registration, error) {
	q = executor(s.db, q)
	var r tournament.Registration
	err := sqlx.GetContext(ctx, q, &r, q.Rebind("SELECT "+registrationColumns+" FROM registrations WHERE tournament_id = ? AND player_id = ?"), tournamentID, playerID)
	if err != nil {
		return nil, notFound(err, fmt.Errorf("player %s is not registered: %w", playerID, tournament.ErrPlayerNotFound))
	}
	return &r, nil
}

func (s *TournamentStore) ListRegistrations(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) ([]tournament.Registration, error) {
	q = executor(s.db, q)
	var registrations []tournament.Registration
	err := sqlx.SelectContext(ctx, q, &registrations, q.Rebind("SELECT "+registrationColumns+" FROM registrations WHERE tournament_id = ? ORDER BY created_at ASC, id ASC"), tournamentID)
	return registrations, err
}

func (s *TournamentStore) UpdateRegistrationStatus(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, status tournament.RegistrationStatus) error {
	q = executor(s.db, q)
	result, err := q.ExecContext(ctx, q.Rebind("UPDATE registrations SET status = ? WHERE id = ?"), status, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, fmt.Errorf("registration %s: %w", id, tournament.ErrNotFound))
}

func (s *TournamentStore) DeleteRegistration(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) error {
	q = executor(s.db, q)
	result, err := q.ExecContext(ctx, q.Rebind("DELETE FROM registrations WHERE id = ?"), id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, fmt.Errorf("registration %s: %w", id, tournament.ErrNotFound))
}

func (s *TournamentStore) CountActiveRegistrations(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) (int, error) {
	q = executor(s.db, q)
	var n int
	err := sqlx.GetContext(ctx, q, &n, q.Rebind("SELECT COUNT(*) FROM registrations WHERE tournament_id = ? AND status = ?"), tournamentID, tournament.RegistrationActive)
	return n, err
}
