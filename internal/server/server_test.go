// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/streamchat/internal/assistant"
	"github.com/jeranaias/streamchat/internal/conversation"
	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/stream"
)

func newTestServer(t *testing.T, mutate func(*Config)) (*Server, *httptest.Server) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.WordDelay = 0
	cfg.RequestsPerSecond = 0
	if mutate != nil {
		mutate(&cfg)
	}
	s := New(cfg)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func postChat(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url+"/chat-plain", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /chat-plain: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// readFrames decodes the whole response body.
func readFrames(t *testing.T, body io.Reader) []stream.Frame {
	t.Helper()
	r := stream.NewReader(body, 0)
	var frames []stream.Frame
	for {
		f, err := r.Next()
		if errors.Is(err, io.EOF) {
			return frames
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		frames = append(frames, f)
	}
}

// =============================================================================
// ROUTE TESTS
// =============================================================================

func TestCreateThread(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Post(ts.URL+"/create-thread", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		ThreadID string `json:"thread_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.ThreadID) != 36 {
		t.Errorf("thread_id = %q, want a uuid", body.ThreadID)
	}
}

func TestCreateThread_WrongMethod(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/create-thread")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestChat_StreamsEchoWordByWord(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp := postChat(t, ts.URL, `{"message":"hello there"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	frames := readFrames(t, resp.Body)
	want := []stream.Frame{
		stream.ContentFrame("You "),
		stream.ContentFrame("said: "),
		stream.ContentFrame("hello "),
		stream.ContentFrame("there "),
		stream.DoneFrame(),
	}
	if len(frames) != len(want) {
		t.Fatalf("frames = %v, want %v", frames, want)
	}
	for i := range want {
		if frames[i] != want[i] {
			t.Errorf("frame %d = %v, want %v", i, frames[i], want[i])
		}
	}
}

func TestChat_WireFormat(t *testing.T) {
	_, ts := newTestServer(t, func(c *Config) {
		c.Script = map[string]string{"ping": "pong"}
	})

	resp := postChat(t, ts.URL, `{"message":"ping"}`)
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	want := "data: {\"type\":\"content\",\"data\":\"pong \"}\n\ndata: [DONE]\n\n"
	if string(raw) != want {
		t.Errorf("body = %q, want %q", raw, want)
	}
}

func TestChat_Triggers(t *testing.T) {
	_, ts := newTestServer(t, nil)

	t.Run("error", func(t *testing.T) {
		resp := postChat(t, ts.URL, `{"message":"!error"}`)
		frames := readFrames(t, resp.Body)
		if len(frames) != 2 || frames[0] != stream.ErrorFrame(ErrorTriggerText) || frames[1] != stream.DoneFrame() {
			t.Errorf("frames = %v, want [error done]", frames)
		}
	})

	t.Run("empty", func(t *testing.T) {
		resp := postChat(t, ts.URL, `{"message":"!empty"}`)
		if frames := readFrames(t, resp.Body); len(frames) != 1 || frames[0] != stream.DoneFrame() {
			t.Errorf("frames = %v, want only done", frames)
		}
	})

	t.Run("fail", func(t *testing.T) {
		resp := postChat(t, ts.URL, `{"message":"!fail"}`)
		if resp.StatusCode != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", resp.StatusCode)
		}
	})
}

func TestChat_BadRequests(t *testing.T) {
	_, ts := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty message", `{"message":"   "}`, http.StatusBadRequest},
		{"missing message", `{}`, http.StatusBadRequest},
		{"malformed", `{"message":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postChat(t, ts.URL, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestChat_StopsWhenClientLeaves(t *testing.T) {
	s, ts := newTestServer(t, func(c *Config) {
		c.WordDelay = 50 * time.Millisecond
	})

	ctx, cancel := context.WithCancel(context.Background())
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, ts.URL+"/chat-plain",
		strings.NewReader(`{"message":"one two three four five six seven eight"}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	r := stream.NewReader(resp.Body, 0)
	if _, err := r.Next(); err != nil {
		t.Fatalf("first frame: %v", err)
	}
	cancel()

	if _, err := io.ReadAll(resp.Body); err == nil {
		t.Error("expected read error after cancel")
	}
	if got := s.exchanges.Load(); got != 1 {
		t.Errorf("exchanges = %d", got)
	}
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, nil)

	http.Post(ts.URL+"/create-thread", "application/json", nil)
	postChat(t, ts.URL, `{"message":"hi"}`)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var h HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatal(err)
	}
	if h.Status != "ok" || h.Threads != 1 || h.Exchanges != 1 {
		t.Errorf("health = %+v", h)
	}
}

func TestServeAndShutdown(t *testing.T) {
	s := New(Config{RequestsPerSecond: 0})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Serve returned %v", err)
	}
}

func TestShutdownBeforeStart(t *testing.T) {
	if err := New(DefaultConfig()).Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown = %v", err)
	}
}

// =============================================================================
// END-TO-END
// =============================================================================

func newEndToEnd(t *testing.T) *conversation.Controller {
	t.Helper()
	_, ts := newTestServer(t, nil)
	client := assistant.NewClient(assistant.Config{
		BaseURL:           ts.URL,
		Timeout:           2 * time.Second,
		RequestsPerSecond: -1,
	}, nil)
	ctrl := conversation.New(client)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return ctrl
}

func TestEndToEnd_Exchange(t *testing.T) {
	ctrl := newEndToEnd(t)
	if ctrl.Threads().ThreadID() == "" {
		t.Fatal("no thread after Start")
	}

	if err := ctrl.Submit(context.Background(), "hello"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	snap := ctrl.Snapshot()
	if snap.Busy {
		t.Error("still busy after Submit returned")
	}
	if len(snap.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(snap.Messages))
	}
	reply, ok := snap.LastReply()
	if !ok || reply.Text != "You said: hello " {
		t.Errorf("reply = %q", reply.Text)
	}
}

func TestEndToEnd_Failures(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{TriggerError, "Error: " + ErrorTriggerText + ". Please try again."},
		{TriggerFail, "Error: HTTP 500: Internal Server Error. Please try again."},
		{TriggerEmpty, model.FallbackText},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			ctrl := newEndToEnd(t)
			if err := ctrl.Submit(context.Background(), tt.message); err != nil {
				t.Fatalf("Submit: %v", err)
			}
			reply, ok := ctrl.Snapshot().LastReply()
			if !ok {
				t.Fatal("no reply")
			}
			if reply.Text != tt.want {
				t.Errorf("reply = %q, want %q", reply.Text, tt.want)
			}
		})
	}
}

func TestEndToEnd_ResetRenewsThread(t *testing.T) {
	ctrl := newEndToEnd(t)
	first := ctrl.Threads().ThreadID()

	if err := ctrl.Submit(context.Background(), "hello"); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	snap := ctrl.Snapshot()
	if len(snap.Messages) != 0 {
		t.Errorf("messages after reset = %d", len(snap.Messages))
	}
	if id := ctrl.Threads().ThreadID(); id == "" || id == first {
		t.Errorf("thread after reset = %q, first = %q", id, first)
	}
}
