// internal/storage/persister.go
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ghquery/ghquery/internal/database"
	apperrors "github.com/ghquery/ghquery/internal/errors"
	"github.com/ghquery/ghquery/internal/model"
)

// DB is the subset of *pgxpool.Pool the persister needs.
type DB interface {
	database.DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// RecordValidator decides whether a record may be written.
type RecordValidator interface {
	Validate(repo model.Repository) error
}

// Persister writes search results into managed repos_* tables.
type Persister struct {
	db        DB
	validator RecordValidator
	logger    *slog.Logger
}

// NewPersister returns a Persister. A nil validator falls back to model.RepositoryValidator.
func NewPersister(db DB, validator RecordValidator, logger *slog.Logger) *Persister {
	if validator == nil {
		validator = model.RepositoryValidator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Persister{db: db, validator: validator, logger: logger}
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS %s (
    id SERIAL PRIMARY KEY,
    github_id BIGINT UNIQUE NOT NULL,
    full_name VARCHAR(255) NOT NULL,
    name VARCHAR(255) NOT NULL,
    description TEXT,
    html_url VARCHAR(500) NOT NULL,
    clone_url VARCHAR(500) NOT NULL,
    ssh_url VARCHAR(500) NOT NULL,
    size_kb BIGINT NOT NULL DEFAULT 0,
    stargazers_count BIGINT NOT NULL DEFAULT 0,
    watchers_count BIGINT NOT NULL DEFAULT 0,
    forks_count BIGINT NOT NULL DEFAULT 0,
    open_issues_count BIGINT NOT NULL DEFAULT 0,
    language VARCHAR(100),
    default_branch VARCHAR(100) NOT NULL,
    visibility VARCHAR(20) NOT NULL,
    private BOOLEAN NOT NULL DEFAULT FALSE,
    fork BOOLEAN NOT NULL DEFAULT FALSE,
    archived BOOLEAN NOT NULL DEFAULT FALSE,
    disabled BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    pushed_at TIMESTAMPTZ,
    owner_id BIGINT NOT NULL,
    owner_login VARCHAR(255) NOT NULL,
    owner_type VARCHAR(50) NOT NULL,
    owner_avatar_url VARCHAR(500) NOT NULL,
    owner_html_url VARCHAR(500) NOT NULL,
    owner_site_admin BOOLEAN NOT NULL DEFAULT FALSE,
    license_key VARCHAR(100),
    license_name VARCHAR(255),
    license_spdx_id VARCHAR(100),
    license_url VARCHAR(500),
    topics TEXT[] NOT NULL DEFAULT '{}',
    has_issues BOOLEAN NOT NULL DEFAULT FALSE,
    has_projects BOOLEAN NOT NULL DEFAULT FALSE,
    has_wiki BOOLEAN NOT NULL DEFAULT FALSE,
    has_pages BOOLEAN NOT NULL DEFAULT FALSE,
    has_downloads BOOLEAN NOT NULL DEFAULT FALSE,
    fetched_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

var tableIndexes = []struct {
	suffix  string
	columns string
}{
	{"github_id", "github_id"},
	{"full_name", "full_name"},
	{"language", "language"},
	{"stargazers", "stargazers_count DESC"},
	{"created_at", "created_at"},
	{"owner_login", "owner_login"},
}

// EnsureTable creates the managed table and its indexes if they do not exist.
func (p *Persister) EnsureTable(ctx context.Context, name string) error {
	if err := ValidateTableName(name); err != nil {
		return err
	}
	ident := pgx.Identifier{name}.Sanitize()

	if _, err := p.db.Exec(ctx, fmt.Sprintf(createTableSQL, ident)); err != nil {
		return &apperrors.ErrTableCreation{Table: name, Err: err}
	}
	for _, idx := range tableIndexes {
		stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			pgx.Identifier{indexName(name, idx.suffix)}.Sanitize(), ident, idx.columns)
		if _, err := p.db.Exec(ctx, stmt); err != nil {
			return &apperrors.ErrTableCreation{Table: name, Err: err}
		}
	}
	p.logger.Debug("Table ready", "table", name)
	return nil
}

const upsertColumns = `github_id, full_name, name, description, html_url, clone_url, ssh_url,
    size_kb, stargazers_count, watchers_count, forks_count, open_issues_count,
    language, default_branch, visibility, private, fork, archived, disabled,
    created_at, updated_at, pushed_at,
    owner_id, owner_login, owner_type, owner_avatar_url, owner_html_url, owner_site_admin,
    license_key, license_name, license_spdx_id, license_url,
    topics, has_issues, has_projects, has_wiki, has_pages, has_downloads`

// Columns rewritten on conflict. github_id, owner_id and created_at are immutable upstream.
var mutableColumns = []string{
	"full_name", "name", "description", "html_url", "clone_url", "ssh_url",
	"size_kb", "stargazers_count", "watchers_count", "forks_count", "open_issues_count",
	"language", "default_branch", "visibility", "private", "fork", "archived", "disabled",
	"updated_at", "pushed_at",
	"owner_login", "owner_type", "owner_avatar_url", "owner_html_url", "owner_site_admin",
	"license_key", "license_name", "license_spdx_id", "license_url",
	"topics", "has_issues", "has_projects", "has_wiki", "has_pages", "has_downloads",
}

func upsertSQL(ident string) string {
	placeholders := make([]string, 38)
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	sets := make([]string, 0, len(mutableColumns)+1)
	for _, col := range mutableColumns {
		sets = append(sets, col+" = EXCLUDED."+col)
	}
	sets = append(sets, "fetched_at = NOW()")

	return fmt.Sprintf(`INSERT INTO %s (
    %s
) VALUES (%s)
ON CONFLICT (github_id) DO UPDATE SET
    %s
RETURNING (xmax = 0) AS inserted`,
		ident, upsertColumns, strings.Join(placeholders, ", "), strings.Join(sets, ",\n    "))
}

func upsertArgs(r model.Repository) []any {
	var licenseKey, licenseName, licenseSPDX, licenseURL *string
	if r.License != nil {
		licenseKey, licenseName = &r.License.Key, &r.License.Name
		licenseSPDX, licenseURL = r.License.SPDXID, r.License.URL
	}
	topics := r.Topics
	if topics == nil {
		topics = []string{}
	}
	return []any{
		r.ID, r.FullName, r.Name, r.Description, r.HTMLURL, r.CloneURL, r.SSHURL,
		r.Size, r.StargazersCount, r.WatchersCount, r.ForksCount, r.OpenIssuesCount,
		r.Language, r.DefaultBranch, r.Visibility, r.Private, r.Fork, r.Archived, r.Disabled,
		r.CreatedAt, r.UpdatedAt, r.PushedAt,
		r.Owner.ID, r.Owner.Login, r.Owner.Type, r.Owner.AvatarURL, r.Owner.HTMLURL, r.Owner.SiteAdmin,
		licenseKey, licenseName, licenseSPDX, licenseURL,
		topics, r.HasIssues, r.HasProjects, r.HasWiki, r.HasPages, r.HasDownloads,
	}
}

// UpsertBatch writes repos in a single transaction, keyed on github_id. Every record
// is validated first; on any failure nothing is committed.
func (p *Persister) UpsertBatch(ctx context.Context, name string, repos []model.Repository) (model.UpsertSummary, error) {
	var summary model.UpsertSummary
	if len(repos) == 0 {
		return summary, nil
	}
	if err := ValidateTableName(name); err != nil {
		return summary, err
	}
	for _, r := range repos {
		if err := p.validator.Validate(r); err != nil {
			p.logger.Warn("Rejecting batch, record failed validation", "table", name, "github_id", r.ID, "error", err)
			return summary, err
		}
	}

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return summary, &apperrors.ErrDatabase{Op: "begin transaction", Err: err}
	}
	defer tx.Rollback(ctx) // no-op once committed

	stmt := upsertSQL(pgx.Identifier{name}.Sanitize())
	batch := &pgx.Batch{}
	var inserted, updated int64
	for _, r := range repos {
		batch.Queue(stmt, upsertArgs(r)...).QueryRow(func(row pgx.Row) error {
			var isInsert bool
			if err := row.Scan(&isInsert); err != nil {
				return err
			}
			if isInsert {
				inserted++
			} else {
				updated++
			}
			return nil
		})
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return summary, &apperrors.ErrDatabase{Op: "upsert " + name, Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return summary, &apperrors.ErrDatabase{Op: "commit " + name, Err: err}
	}

	summary = model.UpsertSummary{Affected: inserted + updated, Inserted: inserted, Updated: updated}
	p.logger.Info("Upserted repositories", "table", name, "affected", summary.Affected,
		"inserted", summary.Inserted, "updated", summary.Updated)
	return summary, nil
}

const tableExistsSQL = `SELECT EXISTS (
    SELECT 1 FROM information_schema.tables
    WHERE table_schema = current_schema() AND table_name = $1
)`

// Stats aggregates a managed table. A missing table is ErrNotFound.
func (p *Persister) Stats(ctx context.Context, name string) (*model.TableStats, error) {
	if err := ValidateTableName(name); err != nil {
		return nil, err
	}

	var exists bool
	if err := p.db.QueryRow(ctx, tableExistsSQL, name).Scan(&exists); err != nil {
		return nil, &apperrors.ErrDatabase{Op: "check table " + name, Err: err}
	}
	if !exists {
		return nil, &apperrors.ErrNotFound{Resource: "table", Name: name}
	}

	query := fmt.Sprintf(`SELECT
    COUNT(*),
    COUNT(DISTINCT language),
    COUNT(DISTINCT owner_login),
    COALESCE(AVG(stargazers_count), 0)::float8,
    COALESCE(MAX(stargazers_count), 0),
    MIN(created_at),
    MAX(created_at)
FROM %s`, pgx.Identifier{name}.Sanitize())

	stats := &model.TableStats{TableName: name}
	var oldest, newest pgtype.Timestamptz
	err := p.db.QueryRow(ctx, query).Scan(
		&stats.TotalRepositories,
		&stats.UniqueLanguages,
		&stats.UniqueOwners,
		&stats.AvgStars,
		&stats.MaxStars,
		&oldest,
		&newest,
	)
	if err != nil {
		return nil, &apperrors.ErrDatabase{Op: "stats " + name, Err: err}
	}
	if oldest.Valid {
		t := oldest.Time.UTC()
		stats.OldestRepo = &t
	}
	if newest.Valid {
		t := newest.Time.UTC()
		stats.NewestRepo = &t
	}
	return stats, nil
}

const listTablesSQL = `SELECT table_name
FROM information_schema.tables
WHERE table_schema = current_schema() AND table_name LIKE 'repos\_%'
ORDER BY table_name DESC`

// ListTables returns managed table names, newest first.
func (p *Persister) ListTables(ctx context.Context) ([]string, error) {
	rows, err := p.db.Query(ctx, listTablesSQL)
	if err != nil {
		return nil, &apperrors.ErrDatabase{Op: "list tables", Err: err}
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, &apperrors.ErrDatabase{Op: "list tables", Err: err}
	}

	tables := make([]string, 0, len(names))
	for _, n := range names {
		if ValidateTableName(n) == nil {
			tables = append(tables, n)
		}
	}
	return tables, nil
}

// DropTable removes a managed table. Names outside the allow-list never reach SQL.
func (p *Persister) DropTable(ctx context.Context, name string) error {
	if err := ValidateTableName(name); err != nil {
		return err
	}
	if _, err := p.db.Exec(ctx, "DROP TABLE IF EXISTS "+pgx.Identifier{name}.Sanitize()); err != nil {
		return &apperrors.ErrDatabase{Op: "drop " + name, Err: err}
	}
	p.logger.Info("Dropped table", "table", name)
	return nil
}

// Ping checks database connectivity.
func (p *Persister) Ping(ctx context.Context) error {
	if err := p.db.Ping(ctx); err != nil {
		return &apperrors.ErrDatabase{Op: "ping", Err: err}
	}
	return nil
}
