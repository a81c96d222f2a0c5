// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"
	"time"

	"github.com/jeranaias/streamchat/internal/util"
)

// shortIDLen is the number of runes of a thread id shown in headers.
const shortIDLen = 8

// CreateFunc obtains a new thread handle from the remote side.
type CreateFunc func(ctx context.Context) (string, error)

// Info is a snapshot of the manager state.
type Info struct {
	ThreadID     string
	CreatedAt    time.Time // when ThreadID was obtained; zero when empty
	StartedAt    time.Time // when the manager was created
	LastActivity time.Time
	Exchanges    int // exchanges recorded against the current handle
	Renewals     int // successful renewals since start
}

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Config holds configuration for the session manager.
type Config struct {
	// CreateTimeout bounds a single thread request (default: 10 seconds).
	CreateTimeout time.Duration

	// Now is the clock; tests override it.
	Now func() time.Time
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		CreateTimeout: 10 * time.Second,
		Now:           time.Now,
	}
}

// Manager holds the thread handle for one conversation.
type Manager struct {
	mu sync.Mutex

	cfg Config

	threadID     string
	createdAt    time.Time
	startedAt    time.Time
	lastActivity time.Time
	exchanges    int
	renewals     int

	// seq orders renewals; only the most recent request may install its result.
	seq uint64

	onChange []func(Info)
}

// NewManager creates a manager with no thread handle.
func NewManager(cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.CreateTimeout <= 0 {
		cfg.CreateTimeout = def.CreateTimeout
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	now := cfg.Now()
	return &Manager{
		cfg:          cfg,
		startedAt:    now,
		lastActivity: now,
	}
}

// ThreadID returns the current handle, or "" when none is held.
func (m *Manager) ThreadID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threadID
}

// Info returns a copy of the manager state.
func (m *Manager) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.infoLocked()
}

func (m *Manager) infoLocked() Info {
	return Info{
		ThreadID:     m.threadID,
		CreatedAt:    m.createdAt,
		StartedAt:    m.startedAt,
		LastActivity: m.lastActivity,
		Exchanges:    m.exchanges,
		Renewals:     m.renewals,
	}
}

// IdleTime returns how long since the last recorded activity.
func (m *Manager) IdleTime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Now().Sub(m.lastActivity)
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Renew drops the current handle and requests a new one with create. On
// failure the handle stays empty and the error is returned. If another Renew
// or Clear started after this one, its result wins and this one is discarded.
func (m *Manager) Renew(ctx context.Context, create CreateFunc) (string, error) {
	m.mu.Lock()
	m.seq++
	seq := m.seq
	m.threadID = ""
	m.createdAt = time.Time{}
	m.exchanges = 0
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.cfg.CreateTimeout)
	defer cancel()
	id, err := create(ctx)

	m.mu.Lock()
	if seq != m.seq {
		cur := m.threadID
		m.mu.Unlock()
		return cur, err
	}
	if err != nil {
		m.mu.Unlock()
		return "", err
	}
	m.threadID = id
	m.createdAt = m.cfg.Now()
	m.lastActivity = m.createdAt
	m.renewals++
	info := m.infoLocked()
	callbacks := append([]func(Info){}, m.onChange...)
	m.mu.Unlock()

	for _, cb := range callbacks {
		cb(info)
	}
	return id, nil
}

// Clear drops the current handle without requesting a new one.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.seq++
	m.threadID = ""
	m.createdAt = time.Time{}
	m.exchanges = 0
	info := m.infoLocked()
	callbacks := append([]func(Info){}, m.onChange...)
	m.mu.Unlock()

	for _, cb := range callbacks {
		cb(info)
	}
}

// RecordExchange notes one submitted exchange against the current handle.
func (m *Manager) RecordExchange() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exchanges++
	m.lastActivity = m.cfg.Now()
}

// OnChange registers cb to run after the handle changes. Callbacks run
// outside the manager lock.
func (m *Manager) OnChange(cb func(Info)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, cb)
}

// ShortID abbreviates a thread id for display: the first eight characters
// followed by "...". Empty ids are returned as is.
func ShortID(id string) string {
	if id == "" || util.RuneLen(id) <= shortIDLen {
		return id
	}
	return string([]rune(id)[:shortIDLen]) + "..."
}
