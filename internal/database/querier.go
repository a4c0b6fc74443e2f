// internal/database/querier.go
package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type Querier interface {
	GetQueryHistory(ctx context.Context, id pgtype.UUID) (QueryHistory, error)
	ListQueryHistory(ctx context.Context, arg ListQueryHistoryParams) ([]QueryHistory, error)
	SaveQueryHistory(ctx context.Context, arg SaveQueryHistoryParams) error
}

var _ Querier = (*Queries)(nil)
