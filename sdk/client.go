// Package sdk is the client library for the VoiceCode mentor backend. It
// carries the duplex voice streaming core (AudioCapture, PlaybackScheduler,
// DuplexSession), the editor context synchronizer (ContextSync) and plain
// HTTP helpers for the chat endpoints.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "http://localhost:8080"

// Client talks to the mentor backend over HTTP. Create one with New and
// share it; it is safe for concurrent use.
type Client struct {
	baseURL    string
	stateDir   string
	httpClient *http.Client
	logger     *slog.Logger
	session    *SessionContext
}

// New creates a Client with the given options.
func New(opts ...ClientOption) (*Client, error) {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.baseURL = strings.TrimRight(strings.TrimSpace(c.baseURL), "/")
	if c.baseURL == "" {
		return nil, fmt.Errorf("sdk: base url is required")
	}

	session, err := NewSessionContext(c.stateDir)
	if err != nil {
		return nil, fmt.Errorf("sdk: %w", err)
	}
	c.session = session
	return c, nil
}

// Session returns the client's session state. Never nil after New.
func (c *Client) Session() *SessionContext {
	return c.session
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// WebSocketURL converts the backend base URL to its websocket form and
// appends path.
func (c *Client) WebSocketURL(path string) string {
	base := c.baseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + path
}

// postJSON sends a JSON request and decodes the JSON response into out
// (skipped when out is nil). Non-2xx responses come back as *core.Error,
// transport failures as *TransportError.
func (c *Client) postJSON(ctx context.Context, path string, headers http.Header, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("sdk: encode request: %w", err)
	}

	u := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sdk: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: "POST", URL: u, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &TransportError{Op: "POST", URL: u, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("sdk: decode response: %w", err)
	}
	return nil
}
