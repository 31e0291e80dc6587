package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdamBeresnev/duplas/internal/archive"
	"github.com/AdamBeresnev/duplas/internal/config"
	"github.com/AdamBeresnev/duplas/internal/db"
	"github.com/AdamBeresnev/duplas/internal/live"
	"github.com/AdamBeresnev/duplas/internal/lock"
	"github.com/AdamBeresnev/duplas/internal/service"
	"github.com/AdamBeresnev/duplas/internal/store"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/jmoiron/sqlx"
)

const shutdownTimeout = 15 * time.Second

func newApp(database *sqlx.DB, sessionManager *scs.SessionManager, opts service.Options) (*app, *store.PlayerStore) {
	playerStore := store.NewPlayerStore(database)
	tournamentStore := store.NewTournamentStore(database)

	return &app{
		sessionManager: sessionManager,
		players:        service.NewPlayerService(database, playerStore),
		tournaments:    service.NewTournamentService(database, tournamentStore, playerStore, opts),
		registrations:  service.NewRegistrationService(database, tournamentStore, playerStore, opts),
		rounds:         service.NewRoundService(database, tournamentStore, opts),
		tables:         service.NewTableService(database, tournamentStore, opts),
		standings:      service.NewStandingsService(database, tournamentStore, opts),
		access:         service.NewAccessService(database, tournamentStore, opts),
	}, playerStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.InitDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.RunMigrations(database, cfg.DBDriver, cfg.MigrationsDir); err != nil {
		return err
	}
	logger.Info("migrations applied", slog.String("dir", cfg.MigrationsDir))

	sessionManager := scs.New()
	sessionManager.Lifetime = cfg.SessionLifetime
	sessionManager.Cookie.SameSite = http.SameSiteLaxMode
	if cfg.DBDriver == config.DriverSQLite {
		sessionManager.Store = sqlite3store.New(database.DB)
	} else {
		sessionManager.Store = memstore.New()
	}

	hub := live.NewHub()
	go hub.Run(ctx)

	opts := service.Options{
		Locks:             lock.NewKeyed(),
		OperationTimeout:  cfg.OperationTimeout,
		ShuffleFirstRound: cfg.ShuffleFirstRound,
		Notifier:          hub,
		Logger:            logger,
	}
	if cfg.Archive.Enabled() {
		a, err := archive.NewS3Archive(ctx, cfg.Archive)
		if err != nil {
			return err
		}
		opts.Archive = a
		logger.Info("standings archive enabled", slog.String("bucket", cfg.Archive.Bucket))
	}

	a, playerStore := newApp(database, sessionManager, opts)
	router := newRouter(a, playerStore, live.NewHandler(hub, cfg.CORSOrigins), cfg.CORSOrigins)

	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		logger.Info("starting in lambda mode")
		adapter := httpadapter.New(router)
		lambda.Start(adapter.ProxyWithContext)
		return nil
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received", slog.Duration("timeout", shutdownTimeout))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("failed to force close server", slog.Any("error", closeErr))
		}
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("server shutdown complete")
	return nil
}
