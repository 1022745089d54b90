// Package apiclient provides an HTTP client for the SecretVM developer portal API.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/scrtlabs/secretvm-cli/internal/adapters/out/session"
	"github.com/scrtlabs/secretvm-cli/pkg/logger"
)

// Client is an HTTP client for the portal API. Requests carry either the
// API key or the session cookies, never both.
type Client struct {
	baseURL    string
	apiKey     string
	session    *session.Session
	httpClient *http.Client
	timeout    time.Duration
	log        *logger.Logger
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// NewClient creates a new portal client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	// Normalize base URL
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.log == nil {
		c.log = logger.GetLogger()
	}
	if c.session == nil {
		c.session = session.New()
	}

	// Copy so a caller-supplied http.Client is never mutated.
	hc := *c.httpClient
	if c.timeout > 0 {
		hc.Timeout = c.timeout
	}
	if c.apiKey == "" {
		hc.Jar = c.session
	} else {
		hc.Jar = nil
	}
	c.httpClient = &hc

	return c
}

// WithAPIKey authenticates with a bearer API key instead of cookies.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithSession binds the cookie container the client reads and updates.
func WithSession(s *session.Session) ClientOption {
	return func(c *Client) {
		c.session = s
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout. It applies regardless of
// option order, including on top of WithHTTPClient.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(log *logger.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// BaseURL returns the server the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Session returns the cookie container, including cookies the server set
// during this run. Callers persist it explicitly after a login.
func (c *Client) Session() *session.Session {
	return c.session
}

// request performs an HTTP request against the portal API.
func (c *Client) request(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	return c.do(ctx, c.httpClient, method, path, body, contentType)
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		c.log.Debug("request failed", "method", method, "path", path, "error", err)
		return nil, err
	}
	c.log.Debug("request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	return resp, nil
}

// parseResponse parses a JSON response into the given target.
func parseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return newHTTPError(resp, body)
	}

	if target != nil {
		// An empty body leaves target untouched.
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// parseText returns the body as text. A JSON string body is unquoted.
func parseText(resp *http.Response) (string, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return "", newHTTPError(resp, body)
	}

	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		return s, nil
	}
	return string(body), nil
}
