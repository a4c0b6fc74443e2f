// cmd/ghquery/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ghquery/ghquery/internal/config"
	"github.com/ghquery/ghquery/internal/database"
	apperrors "github.com/ghquery/ghquery/internal/errors"
	"github.com/ghquery/ghquery/internal/github"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Command failed", "error", err, "kind", apperrors.KindOf(err).String())
		if hint := apperrors.Hint(err); hint != "" {
			fmt.Fprintln(os.Stderr, "hint:", hint)
		}
		os.Exit(1)
	}
}

func run() error {
	// Initialize structured logger
	logLevel := new(slog.LevelVar)
	// Logs go to stderr so command output on stdout stays pipeable
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return newRootCommand(&app{v: config.New(), logger: logger, level: logLevel}).ExecuteContext(ctx)
}

// openDatabase applies migrations and returns a verified pool.
func openDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	if err := cfg.ValidateDatabase(); err != nil {
		return nil, err
	}
	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		return nil, &apperrors.ErrDatabase{Op: "migrate", Err: err}
	}
	logger.Debug("Database migrations applied", "database_url", cfg.MaskedDatabaseURL())

	dbpool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, &apperrors.ErrDatabase{Op: "connect", Err: err}
	}
	if err := dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, &apperrors.ErrDatabase{Op: "connect", Err: err}
	}
	logger.Info("Database connection established", "database_url", cfg.MaskedDatabaseURL())
	return dbpool, nil
}

func newGitHubClient(cfg *config.Config, logger *slog.Logger) (*github.Client, error) {
	if err := cfg.ValidateToken(); err != nil {
		return nil, err
	}
	return github.NewClient(cfg.GithubToken, logger,
		github.WithBaseURL(cfg.GithubAPIURL),
		github.WithTimeout(cfg.HTTPTimeout),
	)
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
