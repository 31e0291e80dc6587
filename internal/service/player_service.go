package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AdamBeresnev/duplas/internal/player"
	"github.com/AdamBeresnev/duplas/internal/store"
	"github.com/AdamBeresnev/duplas/internal/tournament"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const maxUsernameLength = 64

type PlayerService struct {
	db    *sqlx.DB
	store *store.PlayerStore
}

func NewPlayerService(db *sqlx.DB, store *store.PlayerStore) *PlayerService {
	return &PlayerService{db: db, store: store}
}

// EnsurePlayer returns the player with the given username, creating it on first use.
func (s *PlayerService) EnsurePlayer(ctx context.Context, username string) (*player.Player, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(username) > maxUsernameLength {
		return nil, fmt.Errorf("%w: username must be between 1 and %d characters", tournament.ErrInvalidInput, maxUsernameLength)
	}

	p, err := s.store.GetPlayerByUsername(ctx, username)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up player: %w", err)
	}

	p = &player.Player{
		ID:        uuid.New(),
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreatePlayer(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}
	return p, nil
}

func (s *PlayerService) GetPlayer(ctx context.Context, id uuid.UUID) (*player.Player, error) {
	p, err := s.store.GetPlayer(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("player %s: %w", id, tournament.ErrPlayerNotFound)
	}
	return p, err
}

func (s *PlayerService) GetPlayers(ctx context.Context, ids []uuid.UUID) ([]player.Player, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}
	return s.store.GetPlayers(ctx, keys)
}
