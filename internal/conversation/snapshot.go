// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"fmt"

	"github.com/jeranaias/streamchat/internal/model"
)

// Phase is the state of the current (or last) exchange.
type Phase int

const (
	PhaseIdle         Phase = iota // nothing submitted since start or reset
	PhaseUserAppended              // user message stored, placeholder not yet
	PhasePending                   // placeholder shows the thinking text
	PhaseStreaming                 // content is arriving
	PhaseFinalized                 // reply complete
	PhaseErrored                   // reply replaced by an error
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseUserAppended:
		return "user-appended"
	case PhasePending:
		return "pending"
	case PhaseStreaming:
		return "streaming"
	case PhaseFinalized:
		return "finalized"
	case PhaseErrored:
		return "errored"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Active reports whether an exchange is in flight in this phase.
func (p Phase) Active() bool {
	return p == PhaseUserAppended || p == PhasePending || p == PhaseStreaming
}

// Snapshot is a copy of the controller state. It is safe to keep and read
// from any goroutine.
type Snapshot struct {
	Messages   []model.Message
	Busy       bool
	PendingID  string
	Phase      Phase
	ThreadID   string
	Generation uint64
	LastError  string // failure message of the last errored exchange
}

// LastReply returns the most recent bot message that is not a placeholder.
func (s Snapshot) LastReply() (model.Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		m := s.Messages[i]
		if m.IsBot() && !m.IsThinking() {
			return m, true
		}
	}
	return model.Message{}, false
}

// Pending returns the message currently receiving the reply.
func (s Snapshot) Pending() (model.Message, bool) {
	if s.PendingID == "" {
		return model.Message{}, false
	}
	for _, m := range s.Messages {
		if m.ID == s.PendingID {
			return m, true
		}
	}
	return model.Message{}, false
}
