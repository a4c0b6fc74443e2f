// internal/database/query_history.go
package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getQueryHistory = `-- name: GetQueryHistory :one
SELECT id, search_query, table_name, result_count, executed_at, duration_ms, success, error_message
FROM query_history
WHERE id = $1
`

func (q *Queries) GetQueryHistory(ctx context.Context, id pgtype.UUID) (QueryHistory, error) {
	row := q.db.QueryRow(ctx, getQueryHistory, id)
	var i QueryHistory
	err := row.Scan(
		&i.ID,
		&i.SearchQuery,
		&i.TableName,
		&i.ResultCount,
		&i.ExecutedAt,
		&i.DurationMs,
		&i.Success,
		&i.ErrorMessage,
	)
	return i, err
}

const listQueryHistory = `-- name: ListQueryHistory :many
SELECT id, search_query, table_name, result_count, executed_at, duration_ms, success, error_message
FROM query_history
WHERE ($1::boolean = FALSE OR success = TRUE)
ORDER BY executed_at DESC
LIMIT $2
`

// Limit is left invalid (NULL) for an unbounded listing.
type ListQueryHistoryParams struct {
	SuccessOnly bool
	Limit       pgtype.Int8
}

func (q *Queries) ListQueryHistory(ctx context.Context, arg ListQueryHistoryParams) ([]QueryHistory, error) {
	rows, err := q.db.Query(ctx, listQueryHistory, arg.SuccessOnly, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []QueryHistory{}
	for rows.Next() {
		var i QueryHistory
		if err := rows.Scan(
			&i.ID,
			&i.SearchQuery,
			&i.TableName,
			&i.ResultCount,
			&i.ExecutedAt,
			&i.DurationMs,
			&i.Success,
			&i.ErrorMessage,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const saveQueryHistory = `-- name: SaveQueryHistory :exec
INSERT INTO query_history (
    id, search_query, table_name, result_count, executed_at, duration_ms, success, error_message
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8
)
ON CONFLICT (id) DO UPDATE SET
    result_count = EXCLUDED.result_count,
    duration_ms = EXCLUDED.duration_ms,
    success = EXCLUDED.success,
    error_message = EXCLUDED.error_message
`

type SaveQueryHistoryParams struct {
	ID           pgtype.UUID
	SearchQuery  string
	TableName    string
	ResultCount  int64
	ExecutedAt   pgtype.Timestamptz
	DurationMs   int64
	Success      bool
	ErrorMessage pgtype.Text
}

func (q *Queries) SaveQueryHistory(ctx context.Context, arg SaveQueryHistoryParams) error {
	_, err := q.db.Exec(ctx, saveQueryHistory,
		arg.ID,
		arg.SearchQuery,
		arg.TableName,
		arg.ResultCount,
		arg.ExecutedAt,
		arg.DurationMs,
		arg.Success,
		arg.ErrorMessage,
	)
	return err
}
