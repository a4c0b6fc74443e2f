// internal/storage/recorder_test.go
package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ghquery/ghquery/internal/database"
	apperrors "github.com/ghquery/ghquery/internal/errors"
	"github.com/ghquery/ghquery/internal/model"
)

// MockQuerier is a mock of the database.Querier interface.
type MockQuerier struct {
	mock.Mock
}

func (m *MockQuerier) GetQueryHistory(ctx context.Context, id pgtype.UUID) (database.QueryHistory, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(database.QueryHistory), args.Error(1)
}
func (m *MockQuerier) ListQueryHistory(ctx context.Context, arg database.ListQueryHistoryParams) ([]database.QueryHistory, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).([]database.QueryHistory), args.Error(1)
}
func (m *MockQuerier) SaveQueryHistory(ctx context.Context, arg database.SaveQueryHistoryParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}

func TestRecorder_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("maps a failed entry with its message", func(t *testing.T) {
		mockQ := new(MockQuerier)
		rec := NewRecorder(mockQ, testLogger())
		meta := model.NewQueryMetadata("language:go", "repos_20240101000000")
		meta.MarkFailure("rate limited", 1200)

		mockQ.On("SaveQueryHistory", ctx, mock.MatchedBy(func(p database.SaveQueryHistoryParams) bool {
			return p.ID.Valid && uuid.UUID(p.ID.Bytes) == meta.ID &&
				p.SearchQuery == "language:go" &&
				p.TableName == "repos_20240101000000" &&
				!p.Success && p.DurationMs == 1200 &&
				p.ErrorMessage == pgtype.Text{String: "rate limited", Valid: true}
		})).Return(nil).Once()

		require.NoError(t, rec.Save(ctx, meta))
		mockQ.AssertExpectations(t)
	})

	t.Run("successful entry stores a null message", func(t *testing.T) {
		mockQ := new(MockQuerier)
		rec := NewRecorder(mockQ, testLogger())
		meta := model.NewQueryMetadata("language:go", "repos_20240101000000")
		meta.MarkSuccess(42, 800)

		mockQ.On("SaveQueryHistory", ctx, mock.MatchedBy(func(p database.SaveQueryHistoryParams) bool {
			return p.Success && p.ResultCount == 42 && !p.ErrorMessage.Valid
		})).Return(nil).Once()

		require.NoError(t, rec.Save(ctx, meta))
		mockQ.AssertExpectations(t)
	})

	t.Run("wraps database failures", func(t *testing.T) {
		mockQ := new(MockQuerier)
		rec := NewRecorder(mockQ, testLogger())
		dbErr := errors.New("connection reset")
		mockQ.On("SaveQueryHistory", ctx, mock.Anything).Return(dbErr).Once()

		err := rec.Save(ctx, model.NewQueryMetadata("q", "repos_1"))

		assert.Equal(t, apperrors.KindDatabase, apperrors.KindOf(err))
		assert.ErrorIs(t, err, dbErr)
	})
}

func TestRecorder_History(t *testing.T) {
	ctx := context.Background()
	executed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	msg := "boom"
	rows := []database.QueryHistory{
		{
			ID:          pgtype.UUID{Bytes: uuid.New(), Valid: true},
			SearchQuery: "newest",
			TableName:   "repos_20240501100000",
			ResultCount: 3,
			ExecutedAt:  pgtype.Timestamptz{Time: executed, Valid: true},
			Success:     true,
		},
		{
			ID:           pgtype.UUID{Bytes: uuid.New(), Valid: true},
			SearchQuery:  "older",
			TableName:    "repos_20240430100000",
			ExecutedAt:   pgtype.Timestamptz{Time: executed.Add(-24 * time.Hour), Valid: true},
			ErrorMessage: pgtype.Text{String: msg, Valid: true},
		},
	}

	t.Run("nil limit is unbounded", func(t *testing.T) {
		mockQ := new(MockQuerier)
		rec := NewRecorder(mockQ, testLogger())
		mockQ.On("ListQueryHistory", ctx, database.ListQueryHistoryParams{}).Return(rows, nil).Once()

		got, err := rec.History(ctx, nil, false)

		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "newest", got[0].SearchQuery)
		assert.Equal(t, executed, got[0].ExecutedAt)
		assert.Nil(t, got[0].ErrorMessage)
		require.NotNil(t, got[1].ErrorMessage)
		assert.Equal(t, msg, *got[1].ErrorMessage)
		mockQ.AssertExpectations(t)
	})

	t.Run("limit and success filter are passed through", func(t *testing.T) {
		mockQ := new(MockQuerier)
		rec := NewRecorder(mockQ, testLogger())
		limit := 1
		mockQ.On("ListQueryHistory", ctx, database.ListQueryHistoryParams{
			SuccessOnly: true,
			Limit:       pgtype.Int8{Int64: 1, Valid: true},
		}).Return(rows[:1], nil).Once()

		got, err := rec.History(ctx, &limit, true)

		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.True(t, got[0].Success)
		mockQ.AssertExpectations(t)
	})

	t.Run("negative limit is rejected", func(t *testing.T) {
		mockQ := new(MockQuerier)
		rec := NewRecorder(mockQ, testLogger())
		limit := -1

		_, err := rec.History(ctx, &limit, false)

		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
		mockQ.AssertNotCalled(t, "ListQueryHistory", mock.Anything, mock.Anything)
	})
}

func TestRecorder_Get(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("missing entry is not found", func(t *testing.T) {
		mockQ := new(MockQuerier)
		rec := NewRecorder(mockQ, testLogger())
		mockQ.On("GetQueryHistory", ctx, pgtype.UUID{Bytes: id, Valid: true}).
			Return(database.QueryHistory{}, pgx.ErrNoRows).Once()

		got, err := rec.Get(ctx, id)

		assert.Nil(t, got)
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	})

	t.Run("returns the entry", func(t *testing.T) {
		mockQ := new(MockQuerier)
		rec := NewRecorder(mockQ, testLogger())
		mockQ.On("GetQueryHistory", ctx, pgtype.UUID{Bytes: id, Valid: true}).
			Return(database.QueryHistory{ID: pgtype.UUID{Bytes: id, Valid: true}, SearchQuery: "q"}, nil).Once()

		got, err := rec.Get(ctx, id)

		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, "q", got.SearchQuery)
	})
}
