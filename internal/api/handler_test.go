// internal/api/handler_test.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ghquery/ghquery/internal/errors"
	"github.com/ghquery/ghquery/internal/model"
)

type MockTables struct {
	mock.Mock
}

func (m *MockTables) ListTables(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	tables, _ := args.Get(0).([]string)
	return tables, args.Error(1)
}
func (m *MockTables) Stats(ctx context.Context, name string) (*model.TableStats, error) {
	args := m.Called(ctx, name)
	stats, _ := args.Get(0).(*model.TableStats)
	return stats, args.Error(1)
}
func (m *MockTables) DropTable(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) History(ctx context.Context, limit *int, successOnly bool) ([]model.QueryMetadata, error) {
	args := m.Called(ctx, limit, successOnly)
	entries, _ := args.Get(0).([]model.QueryMetadata)
	return entries, args.Error(1)
}
func (m *MockHistory) Get(ctx context.Context, id uuid.UUID) (*model.QueryMetadata, error) {
	args := m.Called(ctx, id)
	entry, _ := args.Get(0).(*model.QueryMetadata)
	return entry, args.Error(1)
}

func setupServer(t *testing.T) (*httptest.Server, *MockTables, *MockHistory) {
	t.Helper()
	tables, history := new(MockTables), new(MockHistory)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	server := httptest.NewServer(NewRouter(tables, history, logger))
	t.Cleanup(server.Close)
	return server, tables, history
}

func do(t *testing.T, method, url string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(body) > 0 && body[0] == '{' {
		require.NoError(t, json.Unmarshal(body, &decoded))
	}
	return resp, decoded
}

func TestHealth(t *testing.T) {
	server, _, _ := setupServer(t)

	resp, body := do(t, http.MethodGet, server.URL+"/health")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestListTables(t *testing.T) {
	server, tables, _ := setupServer(t)
	tables.On("ListTables", mock.Anything).Return([]string{"repos_20240102000000", "repos_20240101000000"}, nil).Once()

	resp, body := do(t, http.MethodGet, server.URL+"/v1/tables")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"repos_20240102000000", "repos_20240101000000"}, body["tables"])
}

func TestTableStats(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		server, tables, _ := setupServer(t)
		tables.On("Stats", mock.Anything, "repos_20240101000000").
			Return(&model.TableStats{TableName: "repos_20240101000000", TotalRepositories: 2, UniqueOwners: 2, UniqueLanguages: 1}, nil).Once()

		resp, body := do(t, http.MethodGet, server.URL+"/v1/tables/repos_20240101000000/stats")

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(2), body["total_repositories"])
		assert.Equal(t, float64(1), body["unique_languages"])
	})

	t.Run("missing table is 404", func(t *testing.T) {
		server, tables, _ := setupServer(t)
		tables.On("Stats", mock.Anything, "repos_missing").
			Return(nil, &apperrors.ErrNotFound{Resource: "table", Name: "repos_missing"}).Once()

		resp, body := do(t, http.MethodGet, server.URL+"/v1/tables/repos_missing/stats")

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "table not found: repos_missing", body["error"])
	})

	t.Run("invalid name is 400", func(t *testing.T) {
		server, tables, _ := setupServer(t)
		tables.On("Stats", mock.Anything, "users").
			Return(nil, &apperrors.ErrValidation{Field: "table_name", Reason: "bad"}).Once()

		resp, _ := do(t, http.MethodGet, server.URL+"/v1/tables/users/stats")

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("database failure is hidden", func(t *testing.T) {
		server, tables, _ := setupServer(t)
		tables.On("Stats", mock.Anything, "repos_x").
			Return(nil, &apperrors.ErrDatabase{Op: "stats", Err: errors.New("password authentication failed")}).Once()

		resp, body := do(t, http.MethodGet, server.URL+"/v1/tables/repos_x/stats")

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "Internal server error", body["error"])
	})
}

func TestDropTable(t *testing.T) {
	server, tables, _ := setupServer(t)
	tables.On("DropTable", mock.Anything, "repos_20240101000000").Return(nil).Once()

	resp, _ := do(t, http.MethodDelete, server.URL+"/v1/tables/repos_20240101000000")

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	tables.AssertExpectations(t)
}

func TestListHistory(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		server, _, history := setupServer(t)
		history.On("History", mock.Anything, mock.MatchedBy(func(l *int) bool { return l != nil && *l == defaultHistoryLimit }), false).
			Return([]model.QueryMetadata{}, nil).Once()

		resp, _ := do(t, http.MethodGet, server.URL+"/v1/history")

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		history.AssertExpectations(t)
	})

	t.Run("limit and success filter", func(t *testing.T) {
		server, _, history := setupServer(t)
		history.On("History", mock.Anything, mock.MatchedBy(func(l *int) bool { return l != nil && *l == 1 }), true).
			Return([]model.QueryMetadata{{SearchQuery: "language:rust", Success: true, ResultCount: 2}}, nil).Once()

		resp, err := http.Get(server.URL + "/v1/history?limit=1&success_only=true")
		require.NoError(t, err)
		defer resp.Body.Close()

		var entries []model.QueryMetadata
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		require.Len(t, entries, 1)
		assert.Equal(t, int64(2), entries[0].ResultCount)
	})

	for _, query := range []string{"limit=0", "limit=abc", "limit=1001", "success_only=maybe"} {
		t.Run("rejects "+query, func(t *testing.T) {
			server, _, history := setupServer(t)

			resp, _ := do(t, http.MethodGet, server.URL+"/v1/history?"+query)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			history.AssertNotCalled(t, "History", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestGetHistory(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		server, _, history := setupServer(t)
		id := uuid.New()
		history.On("Get", mock.Anything, id).Return(&model.QueryMetadata{ID: id, SearchQuery: "q"}, nil).Once()

		resp, body := do(t, http.MethodGet, server.URL+"/v1/history/"+id.String())

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, id.String(), body["id"])
	})

	t.Run("not found", func(t *testing.T) {
		server, _, history := setupServer(t)
		id := uuid.New()
		history.On("Get", mock.Anything, id).Return(nil, &apperrors.ErrNotFound{Resource: "query", Name: id.String()}).Once()

		resp, _ := do(t, http.MethodGet, server.URL+"/v1/history/"+id.String())

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("malformed id", func(t *testing.T) {
		server, _, _ := setupServer(t)

		resp, _ := do(t, http.MethodGet, server.URL+"/v1/history/not-a-uuid")

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
