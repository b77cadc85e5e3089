package s2

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/time/rate"
)

const (
	// BaseURL is the Semantic Scholar v1 API base URL.
	// See https://api.semanticscholar.org
	BaseURL = "https://api.semanticscholar.org/v1"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 60 * time.Second

	// ThrottleInterval is the minimum spacing between successive requests,
	// enforced unconditionally to respect upstream rate limits.
	ThrottleInterval = 2 * time.Second
)

// Client is a rate-limited HTTP client for the Semantic Scholar paper API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	apiKey     string
	baseURL    string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the API key for authenticated requests.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithThrottleInterval overrides the request spacing (for testing).
func WithThrottleInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// NewClient creates a Semantic Scholar API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Every(ThrottleInterval), 1),
		baseURL:    BaseURL,
	}

	if key := os.Getenv("S2_API_KEY"); key != "" {
		c.apiKey = key
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Paper fetches a paper by identifier, which may be a DOI or the service's
// own 40-hex paper id. With includeUnknownReferences, references that
// Semantic Scholar could not resolve to a paper of its own are included.
func (c *Client) Paper(ctx context.Context, identifier string, includeUnknownReferences bool) (*Paper, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	u := fmt.Sprintf("%s/paper/%s", c.baseURL, url.PathEscape(identifier))
	if includeUnknownReferences {
		u += "?include_unknown_references=true"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, identifier)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP %d", resp.StatusCode),
			Identifier: identifier,
		}
	}

	var paper Paper
	if err := json.NewDecoder(resp.Body).Decode(&paper); err != nil {
		return nil, fmt.Errorf("%w: parsing paper: %w", ErrInvalidResponse, err)
	}

	return &paper, nil
}

// Abstract fetches just the abstract of a paper, or "" if it has none.
func (c *Client) Abstract(ctx context.Context, identifier string) (string, error) {
	paper, err := c.Paper(ctx, identifier, false)
	if err != nil {
		return "", err
	}
	return paper.Abstract, nil
}
