//go:build integration

// cmd/ghquery/integration_test.go
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghquery/ghquery/internal/config"
	"github.com/ghquery/ghquery/internal/database"
	"github.com/ghquery/ghquery/internal/model"
	"github.com/ghquery/ghquery/internal/storage"
	"github.com/ghquery/ghquery/internal/testutil"
)

// execute runs one CLI invocation with a fresh configuration.
func execute(ctx context.Context, t *testing.T, args ...string) (string, error) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	root := newRootCommand(&app{v: config.New(), logger: logger, level: new(slog.LevelVar)})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestSearchWorkflow_Integration(t *testing.T) {
	ctx := context.Background()
	connStr, pool := testutil.StartPostgres(ctx, t)

	var searchCalls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search/repositories":
			searchCalls.Add(1)
			if r.URL.Query().Get("q") == "language:broken" {
				w.WriteHeader(http.StatusUnprocessableEntity)
				w.Write([]byte(`{"message":"Validation Failed"}`))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"total_count": 2, "incomplete_results": false, "items": [%s, %s]}`,
				testutil.SearchItemJSON(101, "ferris", "crab", "Rust", 5000),
				testutil.SearchItemJSON(102, "graydon", "oxide", "Rust", 1200))
		case "/user":
			w.Write([]byte(`{"login": "tester"}`))
		case "/rate_limit":
			w.Write([]byte(`{"resources": {"search": {"limit": 30, "remaining": 29, "reset": 1893456000}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	server := httptest.NewServer(handler)
	defer server.Close()

	t.Setenv("GITHUB_API_URL", server.URL)
	t.Setenv("GITHUB_TOKEN", "ghp_integration_token")
	t.Setenv("DATABASE_URL", connStr)

	out, err := execute(ctx, t, "search", "language:rust stars:>1000")
	require.NoError(t, err)
	assert.Contains(t, out, "Results: 2 repositories")

	persister := storage.NewPersister(pool, nil, nil)
	tables, err := persister.ListTables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 1)

	stats, err := persister.Stats(ctx, tables[0])
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalRepositories)
	assert.Equal(t, int64(2), stats.UniqueOwners)
	assert.Equal(t, int64(1), stats.UniqueLanguages)
	assert.Equal(t, int64(5000), stats.MaxStars)

	recorder := storage.NewRecorder(database.New(pool), nil)
	limit := 1
	history, err := recorder.History(ctx, &limit, true)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Success)
	assert.Equal(t, int64(2), history[0].ResultCount)
	assert.Equal(t, "language:rust stars:>1000", history[0].SearchQuery)
	assert.Equal(t, tables[0], history[0].TableName)

	t.Run("failed search is recorded", func(t *testing.T) {
		_, err := execute(ctx, t, "search", "language:broken")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Validation Failed")

		all, err := recorder.History(ctx, nil, false)
		require.NoError(t, err)
		var failed []model.QueryMetadata
		for _, m := range all {
			if !m.Success {
				failed = append(failed, m)
			}
		}
		require.Len(t, failed, 1)
		assert.Equal(t, "language:broken", failed[0].SearchQuery)
		require.NotNil(t, failed[0].ErrorMessage)
	})

	t.Run("history command prints json", func(t *testing.T) {
		out, err := execute(ctx, t, "history", "--limit", "1", "--success-only")
		require.NoError(t, err)

		var entries []model.QueryMetadata
		require.NoError(t, json.Unmarshal([]byte(out), &entries))
		require.Len(t, entries, 1)
		assert.True(t, entries[0].Success)
	})

	t.Run("dry run does not search", func(t *testing.T) {
		before := searchCalls.Load()
		out, err := execute(ctx, t, "search", "language:go", "--dry-run")
		require.NoError(t, err)
		assert.Contains(t, out, "All validations passed")
		assert.Equal(t, before, searchCalls.Load())
	})

	t.Run("drop rejects unmanaged tables", func(t *testing.T) {
		_, err := execute(ctx, t, "tables", "drop", "query_history")
		require.Error(t, err)

		out, err := execute(ctx, t, "tables", "list")
		require.NoError(t, err)
		assert.Contains(t, strings.Split(strings.TrimSpace(out), "\n"), tables[0])
	})
}
