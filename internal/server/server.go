// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/streamchat/internal/logging"
	"github.com/jeranaias/streamchat/internal/stream"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the listen address used when Config.Addr is empty.
	DefaultAddr = "127.0.0.1:8000"

	// MaxRequestBodySize caps the chat request body.
	MaxRequestBodySize = 1 << 20

	// Trigger messages.
	TriggerError = "!error"
	TriggerFail  = "!fail"
	TriggerEmpty = "!empty"

	// ErrorTriggerText is the text of the error frame sent for TriggerError.
	ErrorTriggerText = "mock failure requested"
)

// ============================================================================
// CONFIG
// ============================================================================

// Config configures the mock assistant.
type Config struct {
	Addr string

	// WordDelay is the pause between streamed words.
	WordDelay time.Duration

	// RequestsPerSecond and Burst bound each client. Zero disables the limit.
	RequestsPerSecond float64
	Burst             int

	AllowedOrigins []string

	// Script maps an exact message to a canned reply.
	Script map[string]string

	Logger logging.Logger
}

// DefaultConfig returns a Config for local use.
func DefaultConfig() Config {
	return Config{
		Addr:              DefaultAddr,
		WordDelay:         40 * time.Millisecond,
		RequestsPerSecond: 5,
		Burst:             10,
		AllowedOrigins:    []string{"*"},
	}
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the mock assistant.
type Server struct {
	cfg     Config
	log     logging.Logger
	mux     *http.ServeMux
	handler http.Handler

	mu      sync.Mutex
	threads map[string]int
	server  *http.Server

	exchanges atomic.Int64
	started   time.Time
}

// New creates a Server. Routes and middleware are ready immediately.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.WordDelay < 0 {
		cfg.WordDelay = 0
	}

	s := &Server{
		cfg:     cfg,
		log:     logging.OrNop(cfg.Logger),
		mux:     http.NewServeMux(),
		threads: make(map[string]int),
		started: time.Now(),
	}
	s.setupRoutes()

	middleware := []func(http.Handler) http.Handler{
		RecoveryMiddleware(s.log),
		LoggingMiddleware(s.log),
		CORSMiddleware(&CORSConfig{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Accept"},
			MaxAge:         86400,
		}),
	}
	if cfg.RequestsPerSecond > 0 {
		middleware = append(middleware, RateLimitMiddleware(NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst), s.log))
	}
	s.handler = Chain(middleware...)(s.mux)
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("POST /create-thread", s.handleCreateThread)
	s.mux.HandleFunc("POST /chat-plain", s.handleChat)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// Handler returns the routes wrapped in middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}

// ============================================================================
// HANDLERS
// ============================================================================

type chatRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id"`
}

type wireFrame struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
}

func (s *Server) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()

	s.mu.Lock()
	s.threads[id] = 0
	s.mu.Unlock()

	s.log.Info("MOCK | thread created id=%s", id)
	s.writeJSON(w, http.StatusOK, map[string]string{"thread_id": id})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", MaxRequestBodySize))
			return
		}
		s.log.Debug("MOCK | invalid body err=%v", err)
		s.writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	s.recordExchange(req.ThreadID)

	if message == TriggerFail {
		s.writeError(w, http.StatusInternalServerError, "mock failure requested")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	switch message {
	case TriggerEmpty:
	case TriggerError:
		s.sendFrame(w, flusher, wireFrame{Type: "error", Data: ErrorTriggerText})
	default:
		for i, word := range replyWords(s.reply(message)) {
			if i > 0 && !s.pause(r.Context()) {
				s.log.Debug("MOCK | client went away thread=%s", req.ThreadID)
				return
			}
			s.sendFrame(w, flusher, wireFrame{Type: "content", Data: word})
		}
	}

	fmt.Fprintf(w, "%s %s\n\n", stream.DataPrefix, stream.DoneSentinel)
	flusher.Flush()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	threads := len(s.threads)
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Threads:   threads,
		Exchanges: s.exchanges.Load(),
	})
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Uptime    string `json:"uptime"`
	Threads   int    `json:"threads"`
	Exchanges int64  `json:"exchanges"`
}

// reply picks the canned reply for message.
func (s *Server) reply(message string) string {
	if text, ok := s.cfg.Script[message]; ok {
		return text
	}
	return "You said: " + message
}

// replyWords splits text into the per-frame deltas, each word followed by a
// space.
func replyWords(text string) []string {
	fields := strings.Fields(text)
	words := make([]string, len(fields))
	for i, f := range fields {
		words[i] = f + " "
	}
	return words
}

func (s *Server) recordExchange(threadID string) {
	s.exchanges.Add(1)
	if threadID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[threadID]; !ok {
		s.log.Debug("MOCK | unknown thread id=%s", threadID)
	}
	s.threads[threadID]++
}

// pause waits WordDelay and reports false if ctx ends first.
func (s *Server) pause(ctx context.Context) bool {
	if s.cfg.WordDelay == 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(s.cfg.WordDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (s *Server) sendFrame(w http.ResponseWriter, flusher http.Flusher, f wireFrame) {
	data, err := json.Marshal(f)
	if err != nil {
		s.log.Error("MOCK | encode frame err=%v", err)
		return
	}
	fmt.Fprintf(w, "%s %s\n\n", stream.DataPrefix, data)
	flusher.Flush()
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// Start listens on Config.Addr and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.log.Info("SERVER_START | addr=%s", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	s.log.Info("SERVER_SHUTDOWN | exchanges=%d", s.exchanges.Load())
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("MOCK | write response err=%v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    status,
		},
	})
}
