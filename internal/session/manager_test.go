// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestManager() (*Manager, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	return NewManager(Config{CreateTimeout: time.Second, Now: clock.Now}), clock
}

func staticCreate(id string) CreateFunc {
	return func(context.Context) (string, error) { return id, nil }
}

// =============================================================================
// RENEWAL TESTS
// =============================================================================

func TestManager_StartsEmpty(t *testing.T) {
	m, _ := newTestManager()
	if m.ThreadID() != "" {
		t.Errorf("ThreadID() = %q, want empty", m.ThreadID())
	}
	if info := m.Info(); !info.CreatedAt.IsZero() || info.Renewals != 0 {
		t.Errorf("unexpected initial info %+v", info)
	}
}

func TestManager_Renew(t *testing.T) {
	m, clock := newTestManager()

	id, err := m.Renew(context.Background(), staticCreate("thread-abc"))
	if err != nil {
		t.Fatalf("Renew failed: %v", err)
	}
	if id != "thread-abc" || m.ThreadID() != "thread-abc" {
		t.Errorf("Renew id = %q, ThreadID = %q", id, m.ThreadID())
	}
	if got := m.Info(); got.Renewals != 1 || !got.CreatedAt.Equal(clock.Now()) {
		t.Errorf("Info() = %+v", got)
	}

	m.RecordExchange()
	m.RecordExchange()
	if got := m.Info().Exchanges; got != 2 {
		t.Errorf("Exchanges = %d, want 2", got)
	}

	if _, err := m.Renew(context.Background(), staticCreate("thread-def")); err != nil {
		t.Fatal(err)
	}
	info := m.Info()
	if info.ThreadID != "thread-def" || info.Exchanges != 0 || info.Renewals != 2 {
		t.Errorf("after second renew Info() = %+v", info)
	}
}

func TestManager_RenewFailureDegradesToEmpty(t *testing.T) {
	m, _ := newTestManager()
	_, _ = m.Renew(context.Background(), staticCreate("old"))

	boom := errors.New("503")
	id, err := m.Renew(context.Background(), func(context.Context) (string, error) {
		return "", boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
	if id != "" || m.ThreadID() != "" {
		t.Errorf("failed renew left handle %q / %q", id, m.ThreadID())
	}
}

func TestManager_RenewAppliesTimeout(t *testing.T) {
	m, _ := newTestManager()
	_, err := m.Renew(context.Background(), func(ctx context.Context) (string, error) {
		deadline, ok := ctx.Deadline()
		if !ok {
			t.Error("create called without a deadline")
		}
		if time.Until(deadline) > time.Second {
			t.Errorf("deadline too far: %v", time.Until(deadline))
		}
		return "t", nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestManager_StaleRenewDiscarded(t *testing.T) {
	m, _ := newTestManager()

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan string)
	go func() {
		id, _ := m.Renew(context.Background(), func(context.Context) (string, error) {
			close(started)
			<-release
			return "slow", nil
		})
		done <- id
	}()

	<-started
	if _, err := m.Renew(context.Background(), staticCreate("fast")); err != nil {
		t.Fatal(err)
	}
	close(release)

	if got := <-done; got != "fast" {
		t.Errorf("stale renew returned %q, want current handle fast", got)
	}
	if m.ThreadID() != "fast" {
		t.Errorf("ThreadID() = %q, stale renew overwrote newer handle", m.ThreadID())
	}
}

func TestManager_ClearAndOnChange(t *testing.T) {
	m, _ := newTestManager()

	var seen []string
	m.OnChange(func(info Info) { seen = append(seen, info.ThreadID) })

	_, _ = m.Renew(context.Background(), staticCreate("one"))
	m.Clear()

	if m.ThreadID() != "" {
		t.Error("Clear kept the handle")
	}
	if len(seen) != 2 || seen[0] != "one" || seen[1] != "" {
		t.Errorf("OnChange saw %v", seen)
	}
}

func TestManager_IdleTime(t *testing.T) {
	m, clock := newTestManager()
	clock.Advance(90 * time.Second)
	if got := m.IdleTime(); got != 90*time.Second {
		t.Errorf("IdleTime() = %v", got)
	}
	m.RecordExchange()
	if got := m.IdleTime(); got != 0 {
		t.Errorf("IdleTime() after activity = %v", got)
	}
}

// =============================================================================
// DISPLAY TESTS
// =============================================================================

func TestShortID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"abc", "abc"},
		{"12345678", "12345678"},
		{"thread_0123456789", "thread_0..."},
	}
	for _, tt := range tests {
		if got := ShortID(tt.in); got != tt.want {
			t.Errorf("ShortID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
