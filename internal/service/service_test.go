package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/AdamBeresnev/duplas/internal/live"
	"github.com/AdamBeresnev/duplas/internal/lock"
	"github.com/AdamBeresnev/duplas/internal/standings"
	"github.com/AdamBeresnev/duplas/internal/store"
	"github.com/AdamBeresnev/duplas/internal/tournament"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")
	database.SetMaxOpenConns(1)

	_, err = database.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	driver, err := sqlite3.WithInstance(database.DB, &sqlite3.Config{})
	require.NoError(t, err, "Failed to create migrate driver instance")

	m, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations",
		"sqlite3",
		driver,
	)
	require.NoError(t, err, "Failed to create migrate instance")

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err, "Failed to apply migrations")
	}

	return database
}

type recorder struct {
	mu     sync.Mutex
	events []live.Event
}

func (r *recorder) Publish(ev live.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(typ live.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

type fakeArchive struct {
	mu      sync.Mutex
	calls   int
	entries []standings.StandingEntry
	err     error
}

func (a *fakeArchive) StoreFinalStandings(_ context.Context, t *tournament.Tournament, _ int, entries []standings.StandingEntry) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.entries = entries
	if a.err != nil {
		return "", a.err
	}
	return "tournaments/" + t.ID.String() + "/final-standings.json", nil
}

type fixture struct {
	db  *sqlx.DB
	ctx context.Context

	players       *PlayerService
	tournaments   *TournamentService
	registrations *RegistrationService
	rounds        *RoundService
	tables        *TableService
	standings     *StandingsService

	store    *store.TournamentStore
	locks    *lock.Keyed
	events   *recorder
	archive  *fakeArchive
	ownerID  uuid.UUID

	clockMu  sync.Mutex
	clockNow time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		db:       db,
		ctx:      context.Background(),
		store:    store.NewTournamentStore(db),
		locks:    lock.NewKeyed(),
		events:   &recorder{},
		archive:  &fakeArchive{},
		clockNow: time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC),
	}
	opts := Options{
		Locks:    f.locks,
		Notifier: f.events,
		Archive:  f.archive,
		Now: func() time.Time {
			f.clockMu.Lock()
			defer f.clockMu.Unlock()
			f.clockNow = f.clockNow.Add(time.Second)
			return f.clockNow
		},
	}
	playerStore := store.NewPlayerStore(db)

	f.players = NewPlayerService(db, playerStore)
	f.tournaments = NewTournamentService(db, f.store, playerStore, opts)
	f.registrations = NewRegistrationService(db, f.store, playerStore, opts)
	f.rounds = NewRoundService(db, f.store, opts)
	f.tables = NewTableService(db, f.store, opts)
	f.standings = NewStandingsService(db, f.store, opts)

	owner, err := f.players.EnsurePlayer(f.ctx, "organizer")
	require.NoError(t, err)
	f.ownerID = owner.ID
	return f
}

// openTournament creates a tournament with n registered players.
func (f *fixture) openTournament(t *testing.T, in CreateTournamentInput, n int) (*tournament.Tournament, []uuid.UUID) {
	t.Helper()
	if in.Name == "" {
		in.Name = "Friday duplas"
	}
	tm, err := f.tournaments.CreateTournament(f.ctx, f.ownerID, in)
	require.NoError(t, err)

	ids := make([]uuid.UUID, n)
	for i := range ids {
		p, err := f.players.EnsurePlayer(f.ctx, fmt.Sprintf("player-%02d", i))
		require.NoError(t, err)
		_, err = f.registrations.Register(f.ctx, tm.ID, p.ID)
		require.NoError(t, err)
		ids[i] = p.ID
	}
	return tm, ids
}

// pairedRound starts a tournament of n players and pairs its first round.
func (f *fixture) pairedRound(t *testing.T, in CreateTournamentInput, n int) (*tournament.Tournament, *tournament.Round, []tournament.Table) {
	t.Helper()
	tm, _ := f.openTournament(t, in, n)
	round, err := f.tournaments.StartTournament(f.ctx, tm.ID)
	require.NoError(t, err)
	tables, err := f.rounds.PairRound(f.ctx, round.ID)
	require.NoError(t, err)
	round, err = f.rounds.GetRound(f.ctx, round.ID)
	require.NoError(t, err)
	return tm, round, tables
}

// activeRound is pairedRound followed by starting the round.
func (f *fixture) activeRound(t *testing.T, in CreateTournamentInput, n int) (*tournament.Tournament, *tournament.Round, []tournament.Table) {
	t.Helper()
	tm, round, tables := f.pairedRound(t, in, n)
	round, err := f.rounds.StartRound(f.ctx, round.ID)
	require.NoError(t, err)
	return tm, round, tables
}

func playable(tables []tournament.Table) []tournament.Table {
	var out []tournament.Table
	for _, t := range tables {
		if !t.IsBye() {
			out = append(out, t)
		}
	}
	return out
}

func win(side int) ResultInput {
	if side == tournament.SideOne {
		return ResultInput{Score1: 2, Score2: 0}
	}
	return ResultInput{Score1: 0, Score2: 2}
}
