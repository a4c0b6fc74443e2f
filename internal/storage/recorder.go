// internal/storage/recorder.go
package storage

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ghquery/ghquery/internal/database"
	apperrors "github.com/ghquery/ghquery/internal/errors"
	"github.com/ghquery/ghquery/internal/model"
)

// Recorder stores QueryMetadata in the query_history table.
type Recorder struct {
	q      database.Querier
	logger *slog.Logger
}

func NewRecorder(q database.Querier, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{q: q, logger: logger}
}

// Save upserts m by id; an existing row gets the new outcome fields.
func (r *Recorder) Save(ctx context.Context, m *model.QueryMetadata) error {
	err := r.q.SaveQueryHistory(ctx, database.SaveQueryHistoryParams{
		ID:           pgtype.UUID{Bytes: m.ID, Valid: true},
		SearchQuery:  m.SearchQuery,
		TableName:    m.TableName,
		ResultCount:  m.ResultCount,
		ExecutedAt:   pgtype.Timestamptz{Time: m.ExecutedAt, Valid: true},
		DurationMs:   m.DurationMs,
		Success:      m.Success,
		ErrorMessage: toText(m.ErrorMessage),
	})
	if err != nil {
		return &apperrors.ErrDatabase{Op: "save query metadata", Err: err}
	}
	r.logger.Debug("Saved query metadata", "id", m.ID, "table", m.TableName, "success", m.Success)
	return nil
}

// History returns entries newest first. A nil limit returns everything.
func (r *Recorder) History(ctx context.Context, limit *int, successOnly bool) ([]model.QueryMetadata, error) {
	params := database.ListQueryHistoryParams{SuccessOnly: successOnly}
	if limit != nil {
		if *limit < 0 {
			return nil, &apperrors.ErrValidation{Field: "limit", Reason: "must not be negative"}
		}
		params.Limit = pgtype.Int8{Int64: int64(*limit), Valid: true}
	}

	rows, err := r.q.ListQueryHistory(ctx, params)
	if err != nil {
		return nil, &apperrors.ErrDatabase{Op: "list query history", Err: err}
	}
	out := make([]model.QueryMetadata, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}

// Get returns a single entry or ErrNotFound.
func (r *Recorder) Get(ctx context.Context, id uuid.UUID) (*model.QueryMetadata, error) {
	row, err := r.q.GetQueryHistory(ctx, pgtype.UUID{Bytes: id, Valid: true})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &apperrors.ErrNotFound{Resource: "query", Name: id.String()}
	} else if err != nil {
		return nil, &apperrors.ErrDatabase{Op: "get query metadata", Err: err}
	}
	m := fromRow(row)
	return &m, nil
}

func fromRow(row database.QueryHistory) model.QueryMetadata {
	m := model.QueryMetadata{
		ID:          uuid.UUID(row.ID.Bytes),
		SearchQuery: row.SearchQuery,
		TableName:   row.TableName,
		ResultCount: row.ResultCount,
		ExecutedAt:  row.ExecutedAt.Time.UTC(),
		DurationMs:  row.DurationMs,
		Success:     row.Success,
	}
	if row.ErrorMessage.Valid {
		msg := row.ErrorMessage.String
		m.ErrorMessage = &msg
	}
	return m
}

func toText(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}
