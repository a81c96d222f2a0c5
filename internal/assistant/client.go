// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/streamchat/internal/conversation"
	"github.com/jeranaias/streamchat/internal/logging"
)

const (
	// DefaultBaseURL is the assistant used when none is configured.
	DefaultBaseURL = "http://127.0.0.1:8000"

	// DefaultChatPath is the streaming endpoint.
	DefaultChatPath = "/chat-plain"

	// DefaultThreadPath is the thread creation endpoint.
	DefaultThreadPath = "/create-thread"

	// maxErrorBody caps how much of an error response is kept.
	maxErrorBody = 512

	// maxThreadResponse caps the thread creation response.
	maxThreadResponse = 64 * 1024
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// Config holds configuration options for the client.
type Config struct {
	// BaseURL is the assistant root (default: http://127.0.0.1:8000)
	BaseURL string

	// ChatPath is appended to BaseURL for streaming replies (default: /chat-plain)
	ChatPath string

	// ThreadPath is appended to BaseURL for thread creation (default: /create-thread)
	ThreadPath string

	// Timeout bounds non-streaming requests (default: 15s). Streaming
	// requests are bounded only by their context.
	Timeout time.Duration

	// RequestsPerSecond paces outgoing requests; <= 0 disables pacing.
	RequestsPerSecond float64

	// UserAgent is sent with every request.
	UserAgent string
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		ChatPath:          DefaultChatPath,
		ThreadPath:        DefaultThreadPath,
		Timeout:           15 * time.Second,
		RequestsPerSecond: 2,
		UserAgent:         "streamchat",
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the assistant over HTTP. It is safe for concurrent use.
type Client struct {
	cfg       Config
	http      *http.Client // thread creation, bounded by cfg.Timeout
	streaming *http.Client // replies, bounded by the request context
	limiter   *rate.Limiter
	log       logging.Logger
}

var _ conversation.Transport = (*Client)(nil)

// NewClient creates a client. Zero fields of cfg take their defaults.
func NewClient(cfg Config, log logging.Logger) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ChatPath == "" {
		cfg.ChatPath = def.ChatPath
	}
	if cfg.ThreadPath == "" {
		cfg.ThreadPath = def.ThreadPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &Client{
		cfg:       cfg,
		http:      &http.Client{Transport: transport, Timeout: cfg.Timeout},
		streaming: &http.Client{Transport: transport},
		limiter:   rate.NewLimiter(limit, 1),
		log:       logging.OrNop(log),
	}
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// OpenStream posts req to the chat endpoint and returns the reply body. The
// caller closes it.
func (c *Client) OpenStream(ctx context.Context, req conversation.Request) (io.ReadCloser, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := c.newRequest(ctx, c.cfg.ChatPath, payload)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := c.do(ctx, c.streaming, httpReq)
	if err != nil {
		return nil, err
	}
	c.log.Debug("ASSISTANT | stream open status=%d thread=%t", resp.StatusCode, req.ThreadID != "")
	return resp.Body, nil
}

// CreateThread requests a new thread handle.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	httpReq, err := c.newRequest(ctx, c.cfg.ThreadPath, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.do(ctx, c.http, httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		ThreadID string `json:"thread_id"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxThreadResponse)).Decode(&out); err != nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "decode thread response", Cause: err}
	}
	if strings.TrimSpace(out.ThreadID) == "" {
		return "", ErrEmptyThreadID
	}
	return out.ThreadID, nil
}

// newRequest builds a POST to path. A nil payload sends no body.
func (c *Client) newRequest(ctx context.Context, path string, payload []byte) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	return req, nil
}

// do paces, sends and status-checks a request. On success the caller owns
// the response body.
func (c *Client) do(ctx context.Context, hc *http.Client, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, classifyDoErr(err)
	}

	resp, err := hc.Do(req)
	if err != nil {
		c.log.Warn("ASSISTANT | %s %s failed err=%v", req.Method, req.URL.Path, err)
		return nil, classifyDoErr(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		serr := newStatusError(resp.StatusCode, resp.Status, body)
		c.log.Warn("ASSISTANT | %s %s status=%d body=%q", req.Method, req.URL.Path, serr.Code, serr.Body)
		return nil, serr
	}
	return resp, nil
}
