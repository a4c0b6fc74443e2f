// internal/database/models.go
package database

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type QueryHistory struct {
	ID           pgtype.UUID
	SearchQuery  string
	TableName    string
	ResultCount  int64
	ExecutedAt   pgtype.Timestamptz
	DurationMs   int64
	Success      bool
	ErrorMessage pgtype.Text
}
