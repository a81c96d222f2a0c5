// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNotFound is returned when no message has the requested id.
	ErrNotFound = errors.New("message not found")

	// ErrDuplicateID is returned when appending a message whose id exists.
	ErrDuplicateID = errors.New("duplicate message id")

	// ErrEmptyID is returned when appending a message without an id.
	ErrEmptyID = errors.New("message id is empty")

	// ErrImmutable is returned when replacing the text of a user message.
	ErrImmutable = errors.New("message text is immutable")
)

// Store is the ordered message log of one conversation. Insertion order is
// display order. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	messages []Message
	index    map[string]int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// Append adds msg at the end of the conversation.
func (s *Store) Append(msg Message) error {
	if msg.ID == "" {
		return ErrEmptyID
	}
	if !msg.Sender.Valid() {
		return fmt.Errorf("append %s: unknown sender %q", msg.ID, msg.Sender)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[msg.ID]; exists {
		return fmt.Errorf("append %s: %w", msg.ID, ErrDuplicateID)
	}
	s.index[msg.ID] = len(s.messages)
	s.messages = append(s.messages, msg)
	return nil
}

// ReplaceText overwrites the text of the bot message with the given id.
func (s *Store) ReplaceText(id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("replace %s: %w", id, ErrNotFound)
	}
	if s.messages[i].Sender != SenderBot {
		return fmt.Errorf("replace %s: %w", id, ErrImmutable)
	}
	s.messages[i].Text = text
	return nil
}

// Get returns the message with the given id.
func (s *Store) Get(id string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return Message{}, false
	}
	return s.messages[i], true
}

// Has reports whether a message with the given id exists.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[id]
	return ok
}

// Messages returns a copy of the conversation in display order.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Last returns the most recent message from the given sender.
func (s *Store) Last(sender Sender) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Sender == sender {
			return s.messages[i], true
		}
	}
	return Message{}, false
}

// Clear removes every message.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.index = make(map[string]int)
}
