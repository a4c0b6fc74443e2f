// internal/model/models.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// Repository is one item of a GitHub repository search page.
type Repository struct {
	ID              int64      `json:"id"`
	FullName        string     `json:"full_name"`
	Name            string     `json:"name"`
	Description     *string    `json:"description"`
	HTMLURL         string     `json:"html_url"`
	CloneURL        string     `json:"clone_url"`
	SSHURL          string     `json:"ssh_url"`
	Size            int64      `json:"size"`
	StargazersCount int64      `json:"stargazers_count"`
	WatchersCount   int64      `json:"watchers_count"`
	ForksCount      int64      `json:"forks_count"`
	OpenIssuesCount int64      `json:"open_issues_count"`
	Language        *string    `json:"language"`
	DefaultBranch   string     `json:"default_branch"`
	Visibility      string     `json:"visibility"`
	Private         bool       `json:"private"`
	Fork            bool       `json:"fork"`
	Archived        bool       `json:"archived"`
	Disabled        bool       `json:"disabled"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	PushedAt        *time.Time `json:"pushed_at"`
	Owner           Owner      `json:"owner"`
	License         *License   `json:"license"`
	Topics          []string   `json:"topics"`
	HasIssues       bool       `json:"has_issues"`
	HasProjects     bool       `json:"has_projects"`
	HasWiki         bool       `json:"has_wiki"`
	HasPages        bool       `json:"has_pages"`
	HasDownloads    bool       `json:"has_downloads"`
}

// Owner is the user, organization or bot owning a repository.
type Owner struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Type      string `json:"type"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
	SiteAdmin bool   `json:"site_admin"`
}

type License struct {
	Key    string  `json:"key"`
	Name   string  `json:"name"`
	SPDXID *string `json:"spdx_id"`
	URL    *string `json:"url"`
}

// SearchResult is a single page returned by the search endpoint.
// TotalCount is what the server reports and may exceed len(Items).
type SearchResult struct {
	TotalCount int64        `json:"total_count"`
	Incomplete bool         `json:"incomplete_results"`
	Items      []Repository `json:"items"`
}

// RateLimitStatus is the search bucket of the rate_limit endpoint.
type RateLimitStatus struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// TableStats is computed on demand from a managed table and never stored.
type TableStats struct {
	TableName         string     `json:"table_name"`
	TotalRepositories int64      `json:"total_repositories"`
	UniqueLanguages   int64      `json:"unique_languages"`
	UniqueOwners      int64      `json:"unique_owners"`
	AvgStars          float64    `json:"avg_stars"`
	MaxStars          int64      `json:"max_stars"`
	OldestRepo        *time.Time `json:"oldest_repo,omitempty"`
	NewestRepo        *time.Time `json:"newest_repo,omitempty"`
}

// UpsertSummary reports the outcome of a batch upsert.
// Affected counts every row written, whether inserted or updated.
type UpsertSummary struct {
	Affected int64 `json:"affected"`
	Inserted int64 `json:"inserted"`
	Updated  int64 `json:"updated"`
}

// QueryMetadata is the history entry of one executed search.
type QueryMetadata struct {
	ID           uuid.UUID `json:"id"`
	SearchQuery  string    `json:"search_query"`
	TableName    string    `json:"table_name"`
	ResultCount  int64     `json:"result_count"`
	ExecutedAt   time.Time `json:"executed_at"`
	DurationMs   int64     `json:"duration_ms"`
	Success      bool      `json:"success"`
	ErrorMessage *string   `json:"error_message,omitempty"`
}

// NewQueryMetadata returns a pending entry with a fresh id.
func NewQueryMetadata(query, tableName string) *QueryMetadata {
	return &QueryMetadata{
		ID:          uuid.New(),
		SearchQuery: query,
		TableName:   tableName,
		ExecutedAt:  time.Now().UTC(),
	}
}

// MarkSuccess records a completed run and clears any error message.
func (m *QueryMetadata) MarkSuccess(resultCount, durationMs int64) {
	m.ResultCount = resultCount
	m.DurationMs = durationMs
	m.Success = true
	m.ErrorMessage = nil
}

// MarkFailure keeps ResultCount untouched.
func (m *QueryMetadata) MarkFailure(message string, durationMs int64) {
	m.DurationMs = durationMs
	m.Success = false
	m.ErrorMessage = &message
}
