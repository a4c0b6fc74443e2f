// internal/errors/errors.go
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind identifies the category of an application error.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthentication
	KindRateLimit
	KindInvalidQuery
	KindAPI
	KindTransport
	KindValidation
	KindTableCreation
	KindDatabase
	KindNotFound
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindRateLimit:
		return "rate_limit"
	case KindInvalidQuery:
		return "invalid_query"
	case KindAPI:
		return "api"
	case KindTransport:
		return "transport"
	case KindValidation:
		return "validation"
	case KindTableCreation:
		return "table_creation"
	case KindDatabase:
		return "database"
	case KindNotFound:
		return "not_found"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// ErrAuthentication is returned when the GitHub token is rejected. It is never retried.
type ErrAuthentication struct {
	Reason string
}

func (e *ErrAuthentication) Error() string {
	return fmt.Sprintf("github authentication failed: %s", e.Reason)
}

// ErrRateLimit is returned once rate-limit retries are exhausted.
// ResetAt is a formatted UTC time, or "unknown" when the server did not say.
type ErrRateLimit struct {
	ResetAt string
}

func (e *ErrRateLimit) Error() string {
	return fmt.Sprintf("github rate limit exceeded, resets at %s", e.ResetAt)
}

// ErrInvalidQuery is returned for an empty query or a 422 from the search endpoint.
type ErrInvalidQuery struct {
	Query  string
	Reason string
}

func (e *ErrInvalidQuery) Error() string {
	return fmt.Sprintf("invalid search query %q: %s", e.Query, e.Reason)
}

// ErrAPI is an unexpected GitHub response status.
type ErrAPI struct {
	StatusCode int
	Message    string
}

func (e *ErrAPI) Error() string {
	return fmt.Sprintf("github api error: HTTP %d: %s", e.StatusCode, e.Message)
}

// ErrTransport wraps a network, timeout or cancellation failure where no response was received.
type ErrTransport struct {
	Err error
}

func (e *ErrTransport) Error() string {
	return fmt.Sprintf("http request failed: %v", e.Err)
}

func (e *ErrTransport) Unwrap() error { return e.Err }

// ErrValidation reports the first field of a record (or argument) that broke a rule.
type ErrValidation struct {
	Field  string
	Reason string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// ErrTableCreation is returned when DDL for a managed table fails.
type ErrTableCreation struct {
	Table string
	Err   error
}

func (e *ErrTableCreation) Error() string {
	return fmt.Sprintf("creating table %s: %v", e.Table, e.Err)
}

func (e *ErrTableCreation) Unwrap() error { return e.Err }

// ErrDatabase wraps any other persistence failure, tagged with the operation.
type ErrDatabase struct {
	Op  string
	Err error
}

func (e *ErrDatabase) Error() string {
	return fmt.Sprintf("database error during %s: %v", e.Op, e.Err)
}

func (e *ErrDatabase) Unwrap() error { return e.Err }

// ErrNotFound is returned when a table or record does not exist.
type ErrNotFound struct {
	Resource string
	Name     string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Name)
}

// ErrConfig reports an invalid or missing configuration value.
type ErrConfig struct {
	Field  string
	Reason string
}

func (e *ErrConfig) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// KindOf reports the kind of the first application error found in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var (
		authErr   *ErrAuthentication
		rateErr   *ErrRateLimit
		queryErr  *ErrInvalidQuery
		apiErr    *ErrAPI
		transErr  *ErrTransport
		validErr  *ErrValidation
		tableErr  *ErrTableCreation
		dbErr     *ErrDatabase
		notFound  *ErrNotFound
		configErr *ErrConfig
	)
	switch {
	case stderrors.As(err, &authErr):
		return KindAuthentication
	case stderrors.As(err, &rateErr):
		return KindRateLimit
	case stderrors.As(err, &queryErr):
		return KindInvalidQuery
	case stderrors.As(err, &apiErr):
		return KindAPI
	case stderrors.As(err, &transErr):
		return KindTransport
	case stderrors.As(err, &validErr):
		return KindValidation
	case stderrors.As(err, &tableErr):
		return KindTableCreation
	case stderrors.As(err, &notFound):
		return KindNotFound
	case stderrors.As(err, &dbErr):
		return KindDatabase
	case stderrors.As(err, &configErr):
		return KindConfig
	default:
		return KindUnknown
	}
}

// Hint returns a short, actionable suggestion for an error, or "" if none applies.
func Hint(err error) string {
	switch KindOf(err) {
	case KindAuthentication:
		return "check that GITHUB_TOKEN is valid, not expired, and has the public_repo scope"
	case KindRateLimit:
		return "wait for the rate limit window to reset or use a token with a higher quota"
	case KindInvalidQuery:
		return "examples: 'language:rust stars:>1000', 'user:octocat', 'created:>2023-01-01'"
	case KindTransport:
		return "check network connectivity to the GitHub API"
	case KindTableCreation, KindDatabase:
		return "ensure PostgreSQL is running and DATABASE_URL credentials are correct"
	case KindConfig:
		return "set the value via flag, environment variable, or .env file"
	default:
		return ""
	}
}
