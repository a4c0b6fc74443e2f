// internal/errors/errors_test.go
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain", stderrors.New("boom"), KindUnknown},
		{"authentication", &ErrAuthentication{Reason: "bad token"}, KindAuthentication},
		{"rate limit", &ErrRateLimit{ResetAt: "unknown"}, KindRateLimit},
		{"invalid query", &ErrInvalidQuery{Query: "x", Reason: "y"}, KindInvalidQuery},
		{"api", &ErrAPI{StatusCode: 500, Message: "oops"}, KindAPI},
		{"transport", &ErrTransport{Err: context.DeadlineExceeded}, KindTransport},
		{"validation", &ErrValidation{Field: "full_name", Reason: "cannot be empty"}, KindValidation},
		{"table creation", &ErrTableCreation{Table: "repos_1", Err: stderrors.New("ddl")}, KindTableCreation},
		{"database", &ErrDatabase{Op: "upsert", Err: stderrors.New("conn")}, KindDatabase},
		{"not found", &ErrNotFound{Resource: "table", Name: "repos_1"}, KindNotFound},
		{"config", &ErrConfig{Field: "GITHUB_TOKEN", Reason: "required"}, KindConfig},
		{"wrapped", fmt.Errorf("search: %w", &ErrRateLimit{ResetAt: "unknown"}), KindRateLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "github rate limit exceeded, resets at 2024-01-01 00:00:00 UTC",
		(&ErrRateLimit{ResetAt: "2024-01-01 00:00:00 UTC"}).Error())
	assert.Equal(t, "github api error: HTTP 500: internal", (&ErrAPI{StatusCode: 500, Message: "internal"}).Error())
	assert.Equal(t, `invalid search query "q": bad`, (&ErrInvalidQuery{Query: "q", Reason: "bad"}).Error())
	assert.Equal(t, "validation failed: full_name: cannot be empty",
		(&ErrValidation{Field: "full_name", Reason: "cannot be empty"}).Error())
	assert.Equal(t, "table not found: repos_20240101000000",
		(&ErrNotFound{Resource: "table", Name: "repos_20240101000000"}).Error())
}

func TestUnwrap(t *testing.T) {
	err := &ErrTransport{Err: context.Canceled}
	assert.ErrorIs(t, err, context.Canceled)

	inner := stderrors.New("relation exists")
	assert.ErrorIs(t, &ErrTableCreation{Table: "repos_1", Err: inner}, inner)
	assert.ErrorIs(t, &ErrDatabase{Op: "stats", Err: inner}, inner)
}

func TestHint(t *testing.T) {
	assert.Contains(t, Hint(&ErrAuthentication{Reason: "x"}), "GITHUB_TOKEN")
	assert.Contains(t, Hint(&ErrInvalidQuery{}), "language:rust")
	assert.Empty(t, Hint(stderrors.New("other")))
	assert.Equal(t, "rate_limit", KindRateLimit.String())
}
