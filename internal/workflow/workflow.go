// internal/workflow/workflow.go
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ghquery/ghquery/internal/github"
	"github.com/ghquery/ghquery/internal/model"
	"github.com/ghquery/ghquery/internal/progress"
	"github.com/ghquery/ghquery/internal/storage"
)

const (
	// DefaultConcurrency bounds parallel page fetches.
	DefaultConcurrency = 5

	saveTimeout = 10 * time.Second
)

// Searcher is the GitHub side of a run.
type Searcher interface {
	Search(ctx context.Context, query string, perPage, page int, policy github.RetryPolicy) (*model.SearchResult, error)
	ValidateToken(ctx context.Context) error
	RateLimitStatus(ctx context.Context) (*model.RateLimitStatus, error)
}

// Store persists repositories into managed tables.
type Store interface {
	EnsureTable(ctx context.Context, name string) error
	UpsertBatch(ctx context.Context, name string, repos []model.Repository) (model.UpsertSummary, error)
	Ping(ctx context.Context) error
}

// HistoryStore records the outcome of each run.
type HistoryStore interface {
	Save(ctx context.Context, m *model.QueryMetadata) error
}

// Params describes one search run. Pages consecutive pages are fetched starting at Page.
type Params struct {
	Query   string
	PerPage int
	Page    int
	Pages   int
	Retry   github.RetryPolicy
}

// Outcome summarizes a successful run.
type Outcome struct {
	TableName      string
	Metadata       *model.QueryMetadata
	TotalCount     int64
	Incomplete     bool
	Upsert         model.UpsertSummary
	SearchDuration time.Duration
}

// Coordinator sequences search, persistence and history recording.
type Coordinator struct {
	searcher    Searcher
	store       Store
	history     HistoryStore
	progress    progress.Progress
	logger      *slog.Logger
	concurrency int

	// overridable in tests
	tableName func() string
}

// NewCoordinator creates a Coordinator. A nil sink discards progress events.
func NewCoordinator(searcher Searcher, store Store, history HistoryStore, sink progress.Progress, logger *slog.Logger, concurrency int) *Coordinator {
	if sink == nil {
		sink = progress.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Coordinator{
		searcher:    searcher,
		store:       store,
		history:     history,
		progress:    sink,
		logger:      logger,
		concurrency: concurrency,
		tableName:   storage.NewTableName,
	}
}

// Run executes one search into a fresh table. Any failure after the table name is
// chosen is recorded as failed history on a best-effort basis; the returned error is
// always the original one.
func (c *Coordinator) Run(ctx context.Context, p Params) (*Outcome, error) {
	table := c.tableName()
	meta := model.NewQueryMetadata(p.Query, table)
	logger := c.logger.With("query", p.Query, "table", table, "query_id", meta.ID)

	c.progress.Start("Creating table: " + table)
	if err := c.store.EnsureTable(ctx, table); err != nil {
		c.fail(ctx, meta, err, 0)
		return nil, err
	}
	c.progress.Success(fmt.Sprintf("Table %s created", table))

	c.progress.Start(fmt.Sprintf("Searching GitHub: '%s'", p.Query))
	searchStart := time.Now()
	result, err := c.fetch(ctx, p)
	searchDuration := time.Since(searchStart)
	if err != nil {
		c.progress.Error(fmt.Sprintf("Search failed: %v", err))
		c.fail(ctx, meta, err, searchDuration.Milliseconds())
		return nil, err
	}
	count := int64(len(result.Items))
	c.progress.Success(fmt.Sprintf("Found %d repositories (total: %d, page: %d)", count, result.TotalCount, github.NormalizePage(p.Page)))
	c.progress.Info(fmt.Sprintf("Search completed in %.2fs", searchDuration.Seconds()))
	if result.Incomplete {
		c.progress.Warning("Search results may be incomplete due to timeout")
	}

	outcome := &Outcome{
		TableName:      table,
		Metadata:       meta,
		TotalCount:     result.TotalCount,
		Incomplete:     result.Incomplete,
		SearchDuration: searchDuration,
	}

	if count > 0 {
		c.progress.Start(fmt.Sprintf("Storing %d repositories", count))
		summary, err := c.store.UpsertBatch(ctx, table, result.Items)
		if err != nil {
			c.progress.Error(fmt.Sprintf("Storing repositories failed: %v", err))
			c.fail(ctx, meta, err, searchDuration.Milliseconds())
			return nil, err
		}
		outcome.Upsert = summary
		c.progress.Success(fmt.Sprintf("Stored %d repositories", summary.Affected))
		if summary.Updated > 0 {
			c.progress.Info(fmt.Sprintf("Note: %d repositories were updated (duplicates)", summary.Updated))
		}
	} else {
		c.progress.Warning("No repositories matched the search query")
	}

	meta.MarkSuccess(count, searchDuration.Milliseconds())
	c.progress.Start("Saving query metadata")
	if err := c.history.Save(ctx, meta); err != nil {
		return nil, err
	}
	c.progress.Success("Query metadata saved")
	logger.Info("Search run completed", "results", count, "duration_ms", meta.DurationMs)

	return outcome, nil
}

// fail marks meta failed and saves it. The save outlives ctx cancellation so that a
// cancelled run is still recorded.
func (c *Coordinator) fail(ctx context.Context, meta *model.QueryMetadata, cause error, durationMs int64) {
	meta.MarkFailure(cause.Error(), durationMs)

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if err := c.history.Save(saveCtx, meta); err != nil {
		c.logger.Error("Failed to save query metadata", "query_id", meta.ID, "error", err)
		c.progress.Warning(fmt.Sprintf("Failed to save query metadata: %v", err))
	}
}

// fetch returns one page, or Pages consecutive pages fetched concurrently and
// concatenated in page order.
func (c *Coordinator) fetch(ctx context.Context, p Params) (*model.SearchResult, error) {
	first := github.NormalizePage(p.Page)
	if p.Pages <= 1 {
		return c.searcher.Search(ctx, p.Query, p.PerPage, first, p.Retry)
	}

	pages := make([]*model.SearchResult, p.Pages)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i := range pages {
		page := first + i
		g.Go(func() error {
			c.progress.Update(fmt.Sprintf("Fetching page %d", page))
			res, err := c.searcher.Search(gctx, p.Query, p.PerPage, page, p.Retry)
			if err != nil {
				return fmt.Errorf("page %d: %w", page, err)
			}
			pages[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	combined := &model.SearchResult{TotalCount: pages[0].TotalCount}
	for _, res := range pages {
		combined.Incomplete = combined.Incomplete || res.Incomplete
		combined.Items = append(combined.Items, res.Items...)
	}
	return combined, nil
}

// DryRun checks the token and the database without searching, then reports the
// search rate limit. A rate limit lookup failure is only a warning.
func (c *Coordinator) DryRun(ctx context.Context) (*model.RateLimitStatus, error) {
	c.progress.Start("Dry run validation")

	c.progress.Update("Validating GitHub token")
	if err := c.searcher.ValidateToken(ctx); err != nil {
		c.progress.Error(fmt.Sprintf("GitHub token validation failed: %v", err))
		return nil, err
	}
	c.progress.Update("GitHub token is valid")

	c.progress.Update("Validating database connection")
	if err := c.store.Ping(ctx); err != nil {
		c.progress.Error(fmt.Sprintf("Database connection failed: %v", err))
		return nil, err
	}
	c.progress.Update("Database connection is valid")

	status, err := c.searcher.RateLimitStatus(ctx)
	if err != nil {
		c.progress.Warning(fmt.Sprintf("Could not read rate limit: %v", err))
	} else {
		c.progress.Info(fmt.Sprintf("Search rate limit: %d/%d remaining, resets at %s",
			status.Remaining, status.Limit, status.ResetAt.Format(time.RFC3339)))
	}

	c.progress.Success("All validations passed")
	return status, nil
}
