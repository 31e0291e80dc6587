package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/AdamBeresnev/duplas/internal/live"
	"github.com/AdamBeresnev/duplas/internal/lock"
	"github.com/AdamBeresnev/duplas/internal/standings"
	"github.com/AdamBeresnev/duplas/internal/store"
	"github.com/AdamBeresnev/duplas/internal/tournament"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const DefaultOperationTimeout = 5 * time.Second

// Notifier receives an event after the change it describes has been committed.
type Notifier interface {
	Publish(ev live.Event)
}

type nopNotifier struct{}

func (nopNotifier) Publish(live.Event) {}

// StandingsArchive stores the final standings of a finished tournament.
type StandingsArchive interface {
	StoreFinalStandings(ctx context.Context, t *tournament.Tournament, rounds int, entries []standings.StandingEntry) (string, error)
}

type Options struct {
	// Shared between services so that they serialize on the same keys.
	Locks *lock.Keyed

	OperationTimeout  time.Duration
	ShuffleFirstRound bool

	Notifier Notifier
	Archive  StandingsArchive
	Logger   *slog.Logger

	// Now and Rand are replaced in tests.
	Now  func() time.Time
	Rand func() *rand.Rand
}

type core struct {
	db      *sqlx.DB
	store   *store.TournamentStore
	locks   *lock.Keyed
	timeout time.Duration
	shuffle bool

	notifier Notifier
	archive  StandingsArchive
	log      *slog.Logger
	now      func() time.Time
	rand     func() *rand.Rand
}

func newCore(db *sqlx.DB, store *store.TournamentStore, opts Options) *core {
	c := &core{
		db:       db,
		store:    store,
		locks:    opts.Locks,
		timeout:  opts.OperationTimeout,
		shuffle:  opts.ShuffleFirstRound,
		notifier: opts.Notifier,
		archive:  opts.Archive,
		log:      opts.Logger,
		now:      opts.Now,
		rand:     opts.Rand,
	}
	if c.locks == nil {
		c.locks = lock.NewKeyed()
	}
	if c.timeout <= 0 {
		c.timeout = DefaultOperationTimeout
	}
	if c.notifier == nil {
		c.notifier = nopNotifier{}
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.now == nil {
		c.now = func() time.Time { return time.Now().UTC() }
	}
	if c.rand == nil {
		c.rand = func() *rand.Rand { return rand.New(rand.NewSource(time.Now().UnixNano())) }
	}
	return c
}

// run executes fn under the operation timeout while holding the given lock keys, in
// order. Callers always pass the tournament key before a round key. A conflicting
// concurrent write is retried once with a fresh read.
func (c *core) run(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	for _, key := range keys {
		unlock, err := c.locks.Lock(ctx, key)
		if err != nil {
			return timeoutErr(err)
		}
		defer unlock()
	}

	err := fn(ctx)
	if errors.Is(err, tournament.ErrConcurrentModification) {
		c.log.Warn("concurrent modification, retrying once", "error", err)
		err = fn(ctx)
	}
	return timeoutErr(err)
}

// roundKeys returns the lock keys for work on a round: its tournament, then the round.
func (c *core) roundKeys(ctx context.Context, roundID uuid.UUID) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	r, err := c.store.GetRound(ctx, nil, roundID)
	if err != nil {
		return nil, timeoutErr(err)
	}
	return []string{lock.TournamentKey(r.TournamentID), lock.RoundKey(r.ID)}, nil
}

func timeoutErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", tournament.ErrTimeout, err)
	}
	return err
}

func (c *core) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (c *core) publish(events ...live.Event) {
	for _, ev := range events {
		c.notifier.Publish(ev)
	}
}
