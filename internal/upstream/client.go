// Package upstream looks up posts by identifier in batches.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pders01/likesync/internal/config"
	"github.com/pders01/likesync/internal/debuglog"
	"github.com/pders01/likesync/internal/validation"
)

// MaxBatch is the most identifiers a single FetchBatch call may carry.
const MaxBatch = config.MaxBatchSize

const lookupPath = "statuses/lookup.json"

// maxErrorBody bounds how much of a failed response is kept in a BatchError.
const maxErrorBody = 512

// Client resolves identifiers into raw post records. Posts that were deleted
// or are not visible are omitted from the result, so it may be shorter than ids.
type Client interface {
	FetchBatch(ctx context.Context, ids []string) ([]json.RawMessage, error)
}

// BatchError reports a lookup call that failed as a whole.
type BatchError struct {
	Size   int
	Status int
	Body   string
	Err    error
}

func (e *BatchError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("looking up batch of %d: %v", e.Size, e.Err)
	case e.Body != "":
		return fmt.Sprintf("looking up batch of %d: HTTP %d: %s", e.Size, e.Status, e.Body)
	default:
		return fmt.Sprintf("looking up batch of %d: HTTP %d", e.Size, e.Status)
	}
}

func (e *BatchError) Unwrap() error { return e.Err }

// HTTPClient calls the statuses lookup endpoint, paced by a token bucket.
type HTTPClient struct {
	baseURL     *url.URL
	bearerToken string
	userAgent   string
	client      *http.Client
	limiter     *rate.Limiter
}

// NewHTTPClient validates the configured base URL and builds the client.
func NewHTTPClient(cfg *config.Config) (*HTTPClient, error) {
	return newHTTPClient(cfg, validation.NewURLValidator())
}

// NewPermissiveHTTPClient accepts plain http and local base URLs.
func NewPermissiveHTTPClient(cfg *config.Config) (*HTTPClient, error) {
	return newHTTPClient(cfg, validation.NewPermissiveURLValidator())
}

func newHTTPClient(cfg *config.Config, v *validation.URLValidator) (*HTTPClient, error) {
	base, err := v.Validate(cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("upstream base url: %w", err)
	}

	timeout := cfg.Upstream.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	limit := rate.Inf
	if cfg.Upstream.RateLimit > 0 {
		limit = rate.Limit(cfg.Upstream.RateLimit)
	}
	burst := cfg.Upstream.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &HTTPClient{
		baseURL:     base,
		bearerToken: cfg.Upstream.BearerToken,
		userAgent:   cfg.Upstream.UserAgent,
		client:      &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(limit, burst),
	}, nil
}

func (c *HTTPClient) FetchBatch(ctx context.Context, ids []string) ([]json.RawMessage, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxBatch {
		return nil, fmt.Errorf("batch of %d exceeds limit of %d", len(ids), MaxBatch)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &BatchError{Size: len(ids), Err: fmt.Errorf("rate limiter: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.lookupURL(ids), nil)
	if err != nil {
		return nil, &BatchError{Size: len(ids), Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &BatchError{Size: len(ids), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &BatchError{Size: len(ids), Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var posts []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&posts); err != nil {
		return nil, &BatchError{Size: len(ids), Status: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}

	debuglog.Debugf("lookup of %d ids returned %d posts in %v", len(ids), len(posts), time.Since(start))
	return posts, nil
}

func (c *HTTPClient) lookupURL(ids []string) string {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + lookupPath

	q := url.Values{}
	q.Set("id", strings.Join(ids, ","))
	q.Set("tweet_mode", "extended")
	q.Set("include_entities", "false")
	u.RawQuery = q.Encode()
	return u.String()
}
