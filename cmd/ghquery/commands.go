// cmd/ghquery/commands.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ghquery/ghquery/internal/api"
	"github.com/ghquery/ghquery/internal/config"
	"github.com/ghquery/ghquery/internal/database"
	"github.com/ghquery/ghquery/internal/model"
	"github.com/ghquery/ghquery/internal/progress"
	"github.com/ghquery/ghquery/internal/storage"
	"github.com/ghquery/ghquery/internal/workflow"
)

const shutdownTimeout = 10 * time.Second

// app carries what every command shares. cfg is loaded in the root pre-run hook.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	logger *slog.Logger
	level  *slog.LevelVar
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ghquery",
		Short: "Run GitHub repository searches and store the results in PostgreSQL",
		Long: `ghquery executes GitHub repository search queries and stores each result set in
its own timestamped PostgreSQL table, recording every run in a query history.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.BindFlags(a.v, cmd.Flags()); err != nil {
				return err
			}
			cfg, err := config.Load(a.v)
			if err != nil {
				return err
			}
			a.cfg = cfg
			setLogLevel(cfg.LogLevel, a.level)
			return nil
		},
	}

	rootCmd.PersistentFlags().String("github-token", "", "GitHub API token (overrides GITHUB_TOKEN)")
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL database URL (overrides DATABASE_URL)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose progress output")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")

	tablesCmd := &cobra.Command{
		Use:   "tables",
		Short: "Inspect and manage result tables",
	}
	tablesCmd.AddCommand(a.tablesListCommand(), a.tablesStatsCommand(), a.tablesDropCommand())

	rootCmd.AddCommand(
		a.searchCommand(),
		a.validateCommand(),
		tablesCmd,
		a.historyCommand(),
		a.serveCommand(),
	)
	return rootCmd
}

func (a *app) searchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search GitHub repositories and store the results",
		Long: `Search GitHub repositories using GitHub's search syntax. Examples:
  ghquery search 'rust language:rust'
  ghquery search 'stars:>1000'
  ghquery search 'user:octocat'
  ghquery search 'created:>2023-01-01'
  ghquery search 'topic:machine-learning'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSearch(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}
	cmd.Flags().IntP("per-page", "p", 30, "Number of results per page (1-100)")
	cmd.Flags().Int("page", 1, "Page number to retrieve (starts from 1)")
	cmd.Flags().Int("pages", 1, "Number of consecutive pages to fetch")
	cmd.Flags().Bool("dry-run", false, "Validate configuration without executing the search")
	return cmd
}

func (a *app) runSearch(ctx context.Context, out io.Writer, query string) error {
	cfg := a.cfg
	if err := config.ValidateQuery(query); err != nil {
		return err
	}
	if err := cfg.ValidateSearch(); err != nil {
		return err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}

	ghClient, err := newGitHubClient(cfg, a.logger)
	if err != nil {
		return err
	}
	dbpool, err := openDatabase(ctx, cfg, a.logger)
	if err != nil {
		return err
	}
	defer dbpool.Close()

	coord := workflow.NewCoordinator(
		ghClient,
		storage.NewPersister(dbpool, model.RepositoryValidator{}, a.logger),
		storage.NewRecorder(database.New(dbpool), a.logger),
		progress.NewLogger(a.logger, cfg.Verbose),
		a.logger,
		cfg.Concurrency,
	)

	if cfg.DryRun {
		status, err := coord.DryRun(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "All validations passed")
		if status != nil {
			fmt.Fprintf(out, "   Search rate limit: %d/%d remaining\n", status.Remaining, status.Limit)
		}
		return nil
	}

	outcome, err := coord.Run(ctx, workflow.Params{
		Query:   query,
		PerPage: cfg.PerPage,
		Page:    cfg.Page,
		Pages:   cfg.Pages,
		Retry:   cfg.RetryPolicy(),
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Search completed successfully!")
	fmt.Fprintf(out, "   Table name: %s\n", outcome.TableName)
	fmt.Fprintf(out, "   Results: %d repositories\n", outcome.Metadata.ResultCount)
	if cfg.Verbose {
		fmt.Fprintf(out, "   Search time: %.2fs\n", outcome.SearchDuration.Seconds())
		fmt.Fprintf(out, "   Query ID: %s\n", outcome.Metadata.ID)
	}
	return nil
}

func (a *app) validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the token, the database and the retry settings without searching",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, out, cfg := cmd.Context(), cmd.OutOrStdout(), a.cfg

			ghClient, err := newGitHubClient(cfg, a.logger)
			if err != nil {
				return err
			}
			dbpool, err := openDatabase(ctx, cfg, a.logger)
			if err != nil {
				return err
			}
			defer dbpool.Close()

			coord := workflow.NewCoordinator(ghClient, storage.NewPersister(dbpool, nil, a.logger), nil,
				progress.NewLogger(a.logger, cfg.Verbose), a.logger, cfg.Concurrency)
			status, err := coord.DryRun(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintln(out, "Configuration is valid")
			fmt.Fprintf(out, "   Database URL: %s\n", cfg.MaskedDatabaseURL())
			if status != nil {
				fmt.Fprintf(out, "   Search rate limit: %d/%d remaining, resets %s\n",
					status.Remaining, status.Limit, status.ResetAt.Format(time.RFC3339))
			}
			if cfg.Verbose {
				policy := cfg.RetryPolicy()
				fmt.Fprintf(out, "   Rate limit backoff: %v\n", policy.Schedule(policy.MaxRetries))
			}
			return nil
		},
	}
}

func (a *app) withPersister(ctx context.Context, fn func(*storage.Persister) error) error {
	dbpool, err := openDatabase(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer dbpool.Close()
	return fn(storage.NewPersister(dbpool, nil, a.logger))
}

func (a *app) tablesListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List result tables, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withPersister(cmd.Context(), func(p *storage.Persister) error {
				tables, err := p.ListTables(cmd.Context())
				if err != nil {
					return err
				}
				for _, t := range tables {
					fmt.Fprintln(cmd.OutOrStdout(), t)
				}
				return nil
			})
		},
	}
}

func (a *app) tablesStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats TABLE",
		Short: "Show aggregate statistics for a result table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withPersister(cmd.Context(), func(p *storage.Persister) error {
				stats, err := p.Stats(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), stats)
			})
		},
	}
}

func (a *app) tablesDropCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "drop TABLE",
		Short: "Drop a result table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withPersister(cmd.Context(), func(p *storage.Persister) error {
				if err := p.DropTable(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Dropped %s\n", args[0])
				return nil
			})
		},
	}
}

func (a *app) historyCommand() *cobra.Command {
	var (
		limit       int
		successOnly bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show executed queries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbpool, err := openDatabase(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer dbpool.Close()

			var limitPtr *int
			if cmd.Flags().Changed("limit") {
				limitPtr = &limit
			}
			entries, err := storage.NewRecorder(database.New(dbpool), a.logger).History(cmd.Context(), limitPtr, successOnly)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of entries (default: all)")
	cmd.Flags().BoolVar(&successOnly, "success-only", false, "Only show successful queries")
	return cmd
}

func (a *app) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read/admin HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dbpool, err := openDatabase(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer dbpool.Close()

			srv := &http.Server{
				Addr: a.cfg.HTTPAddr,
				Handler: api.NewRouter(
					storage.NewPersister(dbpool, nil, a.logger),
					storage.NewRecorder(database.New(dbpool), a.logger),
					a.logger,
				),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("HTTP API listening", "addr", srv.Addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				a.logger.Info("Shutdown signal received", "reason", ctx.Err())
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().String("addr", "", "Listen address (overrides HTTP_ADDR)")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
