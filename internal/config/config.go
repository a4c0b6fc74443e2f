// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	apperrors "github.com/ghquery/ghquery/internal/errors"
	"github.com/ghquery/ghquery/internal/github"
)

const (
	MaxQueryLength = 256
	minTokenLength = 10
	maxTokenLength = 255
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel            string        `mapstructure:"LOG_LEVEL"`
	DatabaseURL         string        `mapstructure:"DATABASE_URL"`
	GithubToken         string        `mapstructure:"GITHUB_TOKEN"`
	GithubAPIURL        string        `mapstructure:"GITHUB_API_URL"`
	PerPage             int           `mapstructure:"PER_PAGE"`
	Page                int           `mapstructure:"PAGE"`
	Pages               int           `mapstructure:"PAGES"`
	Concurrency         int           `mapstructure:"CONCURRENCY"`
	HTTPTimeout         time.Duration `mapstructure:"HTTP_TIMEOUT"`
	RetryMaxRetries     int           `mapstructure:"RETRY_MAX_RETRIES"`
	RetryInitialBackoff time.Duration `mapstructure:"RETRY_INITIAL_BACKOFF"`
	RetryMaxBackoff     time.Duration `mapstructure:"RETRY_MAX_BACKOFF"`
	RetryMultiplier     float64       `mapstructure:"RETRY_MULTIPLIER"`
	HTTPAddr            string        `mapstructure:"HTTP_ADDR"`
	Verbose             bool          `mapstructure:"VERBOSE"`
	DryRun              bool          `mapstructure:"DRY_RUN"`
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"github-token": "GITHUB_TOKEN",
	"database-url": "DATABASE_URL",
	"per-page":     "PER_PAGE",
	"page":         "PAGE",
	"pages":        "PAGES",
	"verbose":      "VERBOSE",
	"dry-run":      "DRY_RUN",
	"addr":         "HTTP_ADDR",
	"log-level":    "LOG_LEVEL",
}

// New returns a viper instance with defaults, an optional .env file in the working
// directory, and environment variables applied.
func New() *viper.Viper {
	v := viper.New()

	// Set default values
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("GITHUB_TOKEN", "")
	v.SetDefault("GITHUB_API_URL", github.DefaultBaseURL)
	v.SetDefault("PER_PAGE", github.DefaultPerPage)
	v.SetDefault("PAGE", 1)
	v.SetDefault("PAGES", 1)
	v.SetDefault("CONCURRENCY", 5)
	v.SetDefault("HTTP_TIMEOUT", github.DefaultTimeout.String())
	retry := github.DefaultRetryPolicy()
	v.SetDefault("RETRY_MAX_RETRIES", retry.MaxRetries)
	v.SetDefault("RETRY_INITIAL_BACKOFF", retry.InitialBackoff.String())
	v.SetDefault("RETRY_MAX_BACKOFF", retry.MaxBackoff.String())
	v.SetDefault("RETRY_MULTIPLIER", retry.Multiplier)
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("VERBOSE", false)
	v.SetDefault("DRY_RUN", false)

	// Load from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if file not found

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return v
}

// BindFlags lets any known flag present in flags override its configuration key.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = fmt.Errorf("error binding flag %s: %w", f.Name, err)
		}
	})
	return bindErr
}

// Load decodes v into a Config. It performs no validation; callers check the parts
// their command needs.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &apperrors.ErrConfig{Field: "config", Reason: err.Error()}
	}
	return &cfg, nil
}

// RetryPolicy returns the configured backoff policy.
func (c *Config) RetryPolicy() github.RetryPolicy {
	return github.RetryPolicy{
		MaxRetries:     c.RetryMaxRetries,
		InitialBackoff: c.RetryInitialBackoff,
		MaxBackoff:     c.RetryMaxBackoff,
		Multiplier:     c.RetryMultiplier,
	}
}

// ValidateSearch checks the options of a search run.
func (c *Config) ValidateSearch() error {
	switch {
	case c.PerPage < 1 || c.PerPage > github.MaxPerPage:
		return &apperrors.ErrConfig{Field: "PER_PAGE", Reason: fmt.Sprintf("must be between 1 and %d", github.MaxPerPage)}
	case c.Page < 1:
		return &apperrors.ErrConfig{Field: "PAGE", Reason: "must be at least 1"}
	case c.Pages < 1:
		return &apperrors.ErrConfig{Field: "PAGES", Reason: "must be at least 1"}
	case c.Concurrency < 1:
		return &apperrors.ErrConfig{Field: "CONCURRENCY", Reason: "must be at least 1"}
	case c.HTTPTimeout <= 0:
		return &apperrors.ErrConfig{Field: "HTTP_TIMEOUT", Reason: "must be positive"}
	case c.RetryMaxRetries < 0:
		return &apperrors.ErrConfig{Field: "RETRY_MAX_RETRIES", Reason: "cannot be negative"}
	case c.RetryInitialBackoff < 0 || c.RetryMaxBackoff < c.RetryInitialBackoff:
		return &apperrors.ErrConfig{Field: "RETRY_MAX_BACKOFF", Reason: "must be at least RETRY_INITIAL_BACKOFF"}
	case c.RetryMultiplier < 1:
		return &apperrors.ErrConfig{Field: "RETRY_MULTIPLIER", Reason: "must be at least 1"}
	}
	return c.ValidateToken()
}

// ValidateToken checks the shape of the GitHub token, not whether GitHub accepts it.
func (c *Config) ValidateToken() error {
	token := c.GithubToken
	switch {
	case token == "":
		return &apperrors.ErrConfig{Field: "GITHUB_TOKEN", Reason: "is a required configuration field"}
	case len(token) < minTokenLength:
		return &apperrors.ErrAuthentication{Reason: "GitHub token appears to be too short"}
	case len(token) > maxTokenLength:
		return &apperrors.ErrAuthentication{Reason: "GitHub token appears to be too long"}
	case strings.ContainsFunc(token, unicode.IsSpace):
		return &apperrors.ErrAuthentication{Reason: "GitHub token contains whitespace characters"}
	}
	return nil
}

// ValidateDatabase checks that DATABASE_URL looks like a Postgres URL with
// credentials and a database name.
func (c *Config) ValidateDatabase() error {
	u := c.DatabaseURL
	switch {
	case u == "":
		return &apperrors.ErrConfig{Field: "DATABASE_URL", Reason: "is a required configuration field"}
	case !strings.HasPrefix(u, "postgres://") && !strings.HasPrefix(u, "postgresql://"):
		return &apperrors.ErrConfig{Field: "DATABASE_URL", Reason: "must start with postgres:// or postgresql://"}
	case !strings.Contains(u, "@"):
		return &apperrors.ErrConfig{Field: "DATABASE_URL", Reason: "must include credentials (user:password@host)"}
	case strings.Count(u, "/") < 3:
		return &apperrors.ErrConfig{Field: "DATABASE_URL", Reason: "must include a database name"}
	}
	return nil
}

// MaskedDatabaseURL hides the password in DatabaseURL.
func (c *Config) MaskedDatabaseURL() string {
	u := c.DatabaseURL
	at := strings.LastIndex(u, "@")
	if at < 0 {
		return "***"
	}
	start := strings.Index(u, "://") + len("://")
	if colon := strings.LastIndex(u[:at], ":"); colon >= start {
		return u[:colon+1] + "***" + u[at:]
	}
	return u
}

// ValidateQuery checks a search string before it is sent. The syntax itself is
// left to GitHub.
func ValidateQuery(query string) error {
	switch {
	case strings.TrimSpace(query) == "":
		return &apperrors.ErrInvalidQuery{Query: query, Reason: "query cannot be empty"}
	case len(query) > MaxQueryLength:
		return &apperrors.ErrInvalidQuery{Query: query, Reason: fmt.Sprintf("query is too long (max %d characters)", MaxQueryLength)}
	case strings.ContainsRune(query, 0):
		return &apperrors.ErrInvalidQuery{Query: query, Reason: "query contains null characters"}
	}
	return nil
}
