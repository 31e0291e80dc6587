package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type Config struct {
	DBDriver      string
	DatabaseURL   string
	MigrationsDir string
	ServerPort    int

	// Upper bound for a single engine operation, persistence included.
	OperationTimeout time.Duration
	SessionLifetime  time.Duration
	CORSOrigins      []string

	ShuffleFirstRound bool

	LogLevel slog.Level

	Archive ArchiveConfig
}

// ArchiveConfig points the final standings export at an S3 compatible bucket.
// An empty bucket disables the export.
type ArchiveConfig struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

// Load reads the configuration from the environment, picking up a .env file when present.
func Load() (*Config, error) {
	loadDotEnv()

	cfg := &Config{
		DBDriver:      getenv("DB_DRIVER", DriverSQLite),
		DatabaseURL:   getenv("DATABASE_URL", "duplas.db?_journal_mode=WAL"),
		MigrationsDir: getenv("MIGRATIONS_DIR", "migrations"),
		CORSOrigins:   splitList(getenv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		Archive: ArchiveConfig{
			Bucket:          os.Getenv("ARCHIVE_BUCKET"),
			Endpoint:        os.Getenv("ARCHIVE_ENDPOINT"),
			Region:          getenv("ARCHIVE_REGION", "auto"),
			AccessKeyID:     os.Getenv("ARCHIVE_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("ARCHIVE_SECRET_ACCESS_KEY"),
		},
	}

	if cfg.DBDriver != DriverSQLite && cfg.DBDriver != DriverPostgres {
		return nil, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, cfg.DBDriver)
	}

	port, err := strconv.Atoi(getenv("SERVER_PORT", "3000"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}
	cfg.ServerPort = port

	if cfg.OperationTimeout, err = parseDuration("OPERATION_TIMEOUT", "5s"); err != nil {
		return nil, err
	}
	if cfg.SessionLifetime, err = parseDuration("SESSION_LIFETIME", "24h"); err != nil {
		return nil, err
	}

	if cfg.ShuffleFirstRound, err = strconv.ParseBool(getenv("PAIRING_SHUFFLE_FIRST_ROUND", "true")); err != nil {
		return nil, fmt.Errorf("invalid PAIRING_SHUFFLE_FIRST_ROUND environment variable: %w", err)
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getenv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL environment variable: %w", err)
	}

	if cfg.Archive.Enabled() && (cfg.Archive.AccessKeyID == "" || cfg.Archive.SecretAccessKey == "") {
		return nil, fmt.Errorf("ARCHIVE_BUCKET is set but ARCHIVE_ACCESS_KEY_ID or ARCHIVE_SECRET_ACCESS_KEY is missing")
	}

	return cfg, nil
}

// loadDotEnv fills unset variables from the given files, .env by default.
func loadDotEnv(filenames ...string) {
	err := godotenv.Load(filenames...)
	switch {
	case err == nil:
		slog.Debug("loaded environment from file", "files", filenames)
	case errors.Is(err, fs.ErrNotExist):
		slog.Debug("no .env file found, using environment variables")
	default:
		slog.Warn("failed to load .env file, using environment variables", "error", err)
	}
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(getenv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
