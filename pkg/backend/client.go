// Package backend is the REST client for the interview backend and the
// best-effort notifier used for fire-and-forget calls.
package backend

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teslashibe/go-interview-relay/internal/httpc"
)

// Client calls the interview backend.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets a bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout uses a dedicated client with the given timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http = httpc.NewClient(d)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client for baseURL, e.g. "http://localhost:8000/api".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpc.Client,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "backend")
	return c
}

// SessionContext fetches the interview configuration for sessionID.
func (c *Client) SessionContext(ctx context.Context, sessionID string) (*SessionContextResponse, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}

	var out SessionContextResponse
	if err := c.do(ctx, http.MethodGet, c.sessionPath(sessionID, "context"), nil, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, ErrUnsuccessful
	}
	return &out, nil
}

// AgentContext runs a knowledge-retrieval query and returns the text found.
func (c *Client) AgentContext(ctx context.Context, query string) (string, error) {
	var out agentContextResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/agent/context", agentContextRequest{Query: query}, &out); err != nil {
		return "", err
	}
	return out.Context, nil
}

// LogTranscript appends a transcript line to the session log.
func (c *Client) LogTranscript(ctx context.Context, sessionID string, entry LogEntry) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	return c.do(ctx, http.MethodPost, c.sessionPath(sessionID, "log"), entry, nil)
}

// UpdateProgress records interview progress.
func (c *Client) UpdateProgress(ctx context.Context, sessionID string, progress Progress) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	return c.do(ctx, http.MethodPost, c.sessionPath(sessionID, "progress"), progress, nil)
}

// EndSession marks the session ended.
func (c *Client) EndSession(ctx context.Context, sessionID, reason string) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	return c.do(ctx, http.MethodPost, c.sessionPath(sessionID, "end"), endRequest{Reason: reason}, nil)
}

func (c *Client) sessionPath(sessionID, action string) string {
	return c.baseURL + "/sessions/" + url.PathEscape(sessionID) + "/" + action
}

func (c *Client) do(ctx context.Context, method, u string, body, out any) error {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	err := httpc.DoJSON(ctx, c.http, httpc.Request{
		Method: method,
		URL:    u,
		Header: header,
		Body:   body,
	}, out)

	c.logger.Debug("backend call",
		"method", method,
		"url", u,
		"duration", time.Since(start),
		"error", err,
	)
	return err
}
