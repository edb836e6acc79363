// Package upstream is the shared HTTP layer for the market-data API both
// platform clients read from: bearer authentication, rate limiting and
// status-code mapping.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 16 << 20

// Throttle describes the rate limit applied before every request. A nil
// Limiter disables throttling.
type Throttle struct {
	Limiter domain.RateLimiter
	Key     string
	Limit   int
	Window  time.Duration
}

// Config holds the connection parameters for one platform.
type Config struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	Throttle Throttle
}

// Client issues authenticated GET requests against the market-data API.
type Client struct {
	baseURL    string
	apiKey     string
	throttle   Throttle
	httpClient *http.Client
}

// New creates a Client. A zero Timeout defaults to 30 seconds.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		throttle: cfg.Throttle,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Get performs GET baseURL+path?params and returns the body of a 2xx
// response. Non-2xx statuses and transport failures map onto domain errors.
func (c *Client) Get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if t := c.throttle; t.Limiter != nil && t.Limit > 0 {
		if err := t.Limiter.Wait(ctx, t.Key, t.Limit, t.Window); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("http request: %w", ctxErr)
		}
		return nil, fmt.Errorf("http request: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w: %w", domain.ErrUpstreamUnavailable, err)
	}

	if err := CheckStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// CheckStatus maps an HTTP status onto the domain error taxonomy.
func CheckStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := truncate(string(body), 256)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("%w: HTTP %d: %s", domain.ErrUpstreamUnavailable, statusCode, bodyStr)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
