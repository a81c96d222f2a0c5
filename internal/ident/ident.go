// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ident generates short opaque identifiers for messages.
//
// Identifiers carry no meaning beyond uniqueness within a process. The
// default generator draws from random UUIDs; tests use a Sequence so that
// message ids are predictable.
package ident

import (
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MessagePrefix is prepended to identifiers produced by Default.
const MessagePrefix = "msg_"

// randomHexLen is the number of hex characters kept from each UUID.
const randomHexLen = 12

// Generator produces unique identifiers. Implementations must be safe for
// concurrent use.
type Generator interface {
	NewID() string
}

// GeneratorFunc adapts a plain function to the Generator interface.
type GeneratorFunc func() string

// NewID calls f.
func (f GeneratorFunc) NewID() string { return f() }

// =============================================================================
// RANDOM GENERATOR
// =============================================================================

type randomGenerator struct {
	prefix string
}

// Default returns the process-wide random generator ("msg_" + 12 hex chars).
func Default() Generator {
	return randomGenerator{prefix: MessagePrefix}
}

// NewRandom returns a random generator with a custom prefix.
func NewRandom(prefix string) Generator {
	return randomGenerator{prefix: prefix}
}

func (g randomGenerator) NewID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return g.prefix + hex[:randomHexLen]
}

// =============================================================================
// SEQUENCE GENERATOR
// =============================================================================

// Sequence hands out prefix1, prefix2, ... in order.
type Sequence struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequence creates a deterministic generator.
func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

// NewID returns the next identifier in the sequence.
func (s *Sequence) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return s.prefix + strconv.Itoa(s.n)
}
