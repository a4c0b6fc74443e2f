// internal/storage/tables.go
package storage

import (
	"fmt"
	"regexp"
	"time"

	apperrors "github.com/ghquery/ghquery/internal/errors"
)

const (
	// TablePrefix starts every managed table name.
	TablePrefix = "repos_"

	tableTimeLayout = "20060102150405"
	// Postgres truncates identifiers longer than this.
	maxIdentifierLen = 63
)

var tableNamePattern = regexp.MustCompile(`^repos_[A-Za-z0-9_]+$`)

// GenerateTableName returns repos_YYYYMMDDHHMMSS for now in UTC.
func GenerateTableName(now time.Time) string {
	return TablePrefix + now.UTC().Format(tableTimeLayout)
}

// NewTableName is GenerateTableName at the current time. Two calls within the same
// second return the same name.
func NewTableName() string {
	return GenerateTableName(time.Now())
}

// ValidateTableName checks name against the managed-table allow-list. It must pass
// before a name is interpolated into any statement.
func ValidateTableName(name string) error {
	if len(name) > maxIdentifierLen {
		return &apperrors.ErrValidation{Field: "table_name", Reason: fmt.Sprintf("longer than %d bytes", maxIdentifierLen)}
	}
	if !tableNamePattern.MatchString(name) {
		return &apperrors.ErrValidation{Field: "table_name", Reason: "must match " + tableNamePattern.String()}
	}
	return nil
}

// indexName keeps idx_<table>_<suffix> within the identifier limit by trimming the
// table part, so distinct suffixes never collide after truncation.
func indexName(table, suffix string) string {
	room := maxIdentifierLen - len("idx_") - len(suffix) - 1
	if len(table) > room {
		table = table[:room]
	}
	return "idx_" + table + "_" + suffix
}
