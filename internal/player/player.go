package player

import (
	"time"

	"github.com/google/uuid"
)

type ContextKey string

const PlayerKey ContextKey = "player"

type Player struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
