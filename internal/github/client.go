// internal/github/client.go
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	apperrors "github.com/ghquery/ghquery/internal/errors"
	"github.com/ghquery/ghquery/internal/model"
)

const (
	// DefaultBaseURL is the public GitHub REST endpoint.
	DefaultBaseURL = "https://api.github.com/"
	// DefaultTimeout bounds each HTTP attempt, not the whole retrying call.
	DefaultTimeout = 30 * time.Second

	DefaultPerPage = 30
	MaxPerPage     = 100

	userAgent          = "ghquery/1.0"
	rateLimitResetHdr  = "X-RateLimit-Reset"
	resetTimeLayout    = "2006-01-02 15:04:05 UTC"
	unknownResetTime   = "unknown"
	invalidQueryFormat = "invalid query format"
)

// Client is a wrapper around the go-github client that adds retry and error classification.
// It holds no per-call state: each request goes through its own go-github client, so a
// rate limit seen by one caller never short-circuits another caller or a later retry.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	logger     *slog.Logger

	// overridable in tests
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(backoff time.Duration) time.Duration
}

type options struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// Option customizes a Client.
type Option func(*options)

// WithBaseURL points the client at a different API root, e.g. GitHub Enterprise or a test server.
func WithBaseURL(u string) Option {
	return func(o *options) {
		if u != "" {
			o.baseURL = u
		}
	}
}

// WithHTTPClient supplies the transport used underneath the token round-tripper.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTimeout sets the per-attempt request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// NewClient creates and configures a new Client instance.
// The provided token is sent as a bearer token on every request.
func NewClient(token string, logger *slog.Logger, opts ...Option) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, &apperrors.ErrAuthentication{Reason: "GitHub token cannot be empty"}
	}

	o := options{baseURL: DefaultBaseURL, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	base := http.DefaultTransport
	if o.httpClient != nil && o.httpClient.Transport != nil {
		base = o.httpClient.Transport
	}
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			Base:   base,
		},
		Timeout: o.timeout,
	}

	baseURL := o.baseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, &apperrors.ErrConfig{Field: "GITHUB_API_URL", Reason: err.Error()}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    parsed,
		logger:     logger,
		sleep:      sleepContext,
		jitter:     quarterJitter,
	}, nil
}

// api returns a go-github client with no remembered rate limits. go-github answers
// requests locally once it has seen an exhausted quota; a fresh client per request
// makes every attempt reach the server.
func (c *Client) api() *github.Client {
	gh := github.NewClient(c.httpClient)
	gh.UserAgent = userAgent
	base := *c.baseURL
	gh.BaseURL = &base
	return gh
}

// ClampPerPage forces perPage into [1, MaxPerPage].
func ClampPerPage(perPage int) int {
	return min(max(perPage, 1), MaxPerPage)
}

// NormalizePage floors page to 1.
func NormalizePage(page int) int {
	return max(page, 1)
}

// Search runs a repository search, sorted by last update, retrying 403/429 responses
// according to policy. Every other non-2xx status fails immediately.
func (c *Client) Search(ctx context.Context, query string, perPage, page int, policy RetryPolicy) (*model.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &apperrors.ErrInvalidQuery{Query: query, Reason: "query cannot be empty"}
	}

	perPage = ClampPerPage(perPage)
	page = NormalizePage(page)
	policy = policy.normalized()

	opts := &github.SearchOptions{
		Sort:  "updated",
		Order: "desc",
		ListOptions: github.ListOptions{
			PerPage: perPage,
			Page:    page,
		},
	}
	logger := c.logger.With("query", query, "page", page, "per_page", perPage)

	attempt := 0
	backoff := policy.InitialBackoff
	for {
		logger.Debug("Searching repositories", "attempt", attempt+1)
		result, resp, err := c.api().Search.Repositories(ctx, query, opts)
		if err == nil {
			return toSearchResult(result), nil
		}

		httpResp := rawResponse(resp, err)
		if httpResp == nil {
			return nil, &apperrors.ErrTransport{Err: err}
		}

		switch status := httpResp.StatusCode; {
		case status == http.StatusForbidden || status == http.StatusTooManyRequests:
			if attempt >= policy.MaxRetries {
				resetAt := rateLimitReset(httpResp, err)
				logger.Warn("Rate limit retries exhausted", "attempts", attempt+1, "reset_at", resetAt)
				return nil, &apperrors.ErrRateLimit{ResetAt: resetAt}
			}
			delay := backoff + c.jitter(backoff)
			logger.Info("Rate limited, backing off", "status", status, "attempt", attempt+1, "delay", delay)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, &apperrors.ErrTransport{Err: err}
			}
			backoff = policy.next(backoff)
			attempt++

		case status == http.StatusUnauthorized:
			return nil, &apperrors.ErrAuthentication{Reason: "invalid or expired GitHub token"}

		case status == http.StatusUnprocessableEntity:
			return nil, &apperrors.ErrInvalidQuery{Query: query, Reason: invalidQueryReason(errorBody(httpResp, err))}

		case status >= 200 && status < 300:
			return nil, &apperrors.ErrAPI{StatusCode: status, Message: fmt.Sprintf("decoding search response: %v", err)}

		default:
			return nil, &apperrors.ErrAPI{StatusCode: status, Message: string(errorBody(httpResp, err))}
		}
	}
}

// ValidateToken makes a lightweight identity call to check the token.
func (c *Client) ValidateToken(ctx context.Context) error {
	_, resp, err := c.api().Users.Get(ctx, "")
	if err == nil {
		return nil
	}
	httpResp := rawResponse(resp, err)
	if httpResp == nil {
		return &apperrors.ErrTransport{Err: err}
	}
	if httpResp.StatusCode == http.StatusUnauthorized {
		return &apperrors.ErrAuthentication{Reason: "invalid or expired GitHub token"}
	}
	return &apperrors.ErrAPI{
		StatusCode: httpResp.StatusCode,
		Message:    "token validation failed: " + string(errorBody(httpResp, err)),
	}
}

// RateLimitStatus returns the search bucket of the caller's rate limit.
func (c *Client) RateLimitStatus(ctx context.Context) (*model.RateLimitStatus, error) {
	limits, resp, err := c.api().RateLimit.Get(ctx)
	if err != nil {
		httpResp := rawResponse(resp, err)
		if httpResp == nil {
			return nil, &apperrors.ErrTransport{Err: err}
		}
		return nil, &apperrors.ErrAPI{
			StatusCode: httpResp.StatusCode,
			Message:    "rate limit check failed: " + string(errorBody(httpResp, err)),
		}
	}

	search := limits.GetSearch()
	if search == nil {
		return nil, &apperrors.ErrAPI{StatusCode: resp.StatusCode, Message: "rate limit response has no search bucket"}
	}
	return &model.RateLimitStatus{
		Limit:     search.Limit,
		Remaining: search.Remaining,
		ResetAt:   search.Reset.Time.UTC(),
	}, nil
}

// rawResponse extracts the HTTP response behind a go-github result, if one was received.
func rawResponse(resp *github.Response, err error) *http.Response {
	if resp != nil && resp.Response != nil {
		return resp.Response
	}
	var rlErr *github.RateLimitError
	if errors.As(err, &rlErr) && rlErr.Response != nil {
		return rlErr.Response
	}
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return errResp.Response
	}
	return nil
}

// rateLimitReset formats the reset time from the response header, falling back to
// the rate go-github recorded, then to "unknown".
func rateLimitReset(resp *http.Response, err error) string {
	if raw := resp.Header.Get(rateLimitResetHdr); raw != "" {
		if ts, parseErr := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); parseErr == nil {
			return time.Unix(ts, 0).UTC().Format(resetTimeLayout)
		}
		return unknownResetTime
	}
	var rlErr *github.RateLimitError
	if errors.As(err, &rlErr) && !rlErr.Rate.Reset.Time.IsZero() {
		return rlErr.Rate.Reset.Time.UTC().Format(resetTimeLayout)
	}
	return unknownResetTime
}

// errorBody returns the raw error payload. go-github re-populates the body after
// parsing it; if that is empty the parsed ErrorResponse is re-encoded instead.
func errorBody(resp *http.Response, err error) []byte {
	if resp.Body != nil {
		data, readErr := io.ReadAll(resp.Body)
		resp.Body = io.NopCloser(bytes.NewReader(data))
		if readErr == nil && len(data) > 0 {
			return data
		}
	}
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) {
		if data, marshalErr := json.Marshal(errResp); marshalErr == nil {
			return data
		}
	}
	return nil
}

type validationErrorBody struct {
	Message string `json:"message"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// invalidQueryReason prefers the top-level message, then the joined per-error messages.
func invalidQueryReason(body []byte) string {
	var parsed validationErrorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return invalidQueryFormat
	}
	if parsed.Message != "" {
		return parsed.Message
	}
	var messages []string
	for _, e := range parsed.Errors {
		if e.Message != "" {
			messages = append(messages, e.Message)
		}
	}
	if len(messages) > 0 {
		return strings.Join(messages, ", ")
	}
	return invalidQueryFormat
}
