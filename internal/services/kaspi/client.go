package kaspi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"vitrine/internal/config"
)

const (
	defaultBaseURL     = "https://kaspi.kz/shop/api/v2"
	defaultHTTPTimeout = 30 * time.Second
	defaultRateRPS     = 2.0
)

// Client talks to the marketplace merchant API.
type Client struct {
	token      string
	merchantID string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the default API base (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithRateLimit overrides the default requests-per-second budget.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// NewClient constructs a marketplace API client.
func NewClient(token, merchantID string, opts ...Option) *Client {
	client := &Client{
		token:      strings.TrimSpace(token),
		merchantID: strings.TrimSpace(merchantID),
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultRateRPS), 1),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if client.limiter == nil {
		client.limiter = rate.NewLimiter(rate.Limit(defaultRateRPS), 1)
	}
	return client
}

// NewConfiguredClient constructs a client from application config.
func NewConfiguredClient(cfg *config.Config) *Client {
	if cfg == nil {
		return NewClient("", "")
	}
	timeout := time.Duration(cfg.Kaspi.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return NewClient(
		cfg.Kaspi.Token,
		cfg.Kaspi.MerchantID,
		WithBaseURL(cfg.Kaspi.BaseURL),
		WithRateLimit(cfg.Kaspi.RateLimitRPS),
		WithHTTPClient(&http.Client{Timeout: timeout}),
	)
}

// Ping verifies credentials against a cheap endpoint.
func (c *Client) Ping(ctx context.Context) error {
	var out struct{}
	return c.get(ctx, "/categories", url.Values{"limit": {"1"}}, &out)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("kaspi: build url: %w", err)
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("kaspi: request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("kaspi: build url: %w", err)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("kaspi: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("kaspi: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if strings.TrimSpace(c.token) == "" {
		return errors.New("kaspi: token required")
	}
	if err := c.limiter.Wait(req.Context()); err != nil {
		return fmt.Errorf("kaspi: rate limiter: %w", err)
	}
	req.Header.Set("X-Auth-Token", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("kaspi: request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("kaspi: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("kaspi: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("kaspi: decode response: %w", err)
	}
	return nil
}
