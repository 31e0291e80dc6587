package store

import (
	"context"

	"github.com/AdamBeresnev/duplas/internal/player"
	"github.com/jmoiron/sqlx"
)

type PlayerStore struct {
	db *sqlx.DB
}

const (
	getPlayerQuery           = "SELECT id, username, created_at FROM players WHERE id = ?"
	getPlayerByUsernameQuery = "SELECT id, username, created_at FROM players WHERE username = ?"
	createPlayerQuery        = `
		INSERT INTO players (id, username, created_at) VALUES
		(:id, :username, :created_at)
	`
)

func NewPlayerStore(db *sqlx.DB) *PlayerStore {
	return &PlayerStore{db: db}
}

func (s *PlayerStore) GetPlayer(ctx context.Context, id any) (*player.Player, error) {
	var p player.Player
	err := s.db.GetContext(ctx, &p, s.db.Rebind(getPlayerQuery), id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PlayerStore) GetPlayerByUsername(ctx context.Context, username string) (*player.Player, error) {
	var p player.Player
	err := s.db.GetContext(ctx, &p, s.db.Rebind(getPlayerByUsernameQuery), username)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PlayerStore) CreatePlayer(ctx context.Context, p *player.Player) error {
	_, err := s.db.NamedExecContext(ctx, createPlayerQuery, p)
	return err
}

// GetPlayers loads the given players; unknown ids are skipped.
func (s *PlayerStore) GetPlayers(ctx context.Context, ids []string) ([]player.Player, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT id, username, created_at FROM players WHERE id IN (?) ORDER BY username ASC", ids)
	if err != nil {
		return nil, err
	}
	var players []player.Player
	err = s.db.SelectContext(ctx, &players, s.db.Rebind(query), args...)
	return players, err
}
