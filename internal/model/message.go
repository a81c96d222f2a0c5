// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"
)

// =============================================================================
// SENDER
// =============================================================================

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// String returns the string representation of the sender.
func (s Sender) String() string {
	return string(s)
}

// DisplayName returns a human-readable label.
func (s Sender) DisplayName() string {
	switch s {
	case SenderUser:
		return "You"
	case SenderBot:
		return "Assistant"
	default:
		return string(s)
	}
}

// Valid reports whether s is a known sender.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderBot
}

// =============================================================================
// WELL-KNOWN TEXT
// =============================================================================

const (
	// ThinkingText is the placeholder text of a bot message that has not
	// received any content yet. Renderers show a thinking indicator for it.
	ThinkingText = "💭 Thinking..."

	// FallbackText replaces a reply that finished without visible content.
	FallbackText = "I couldn't generate a response. Please try again."

	// UnknownErrorText is used when a failure carries no message.
	UnknownErrorText = "Unknown error occurred"
)

// IsThinking reports whether text is the thinking placeholder.
func IsThinking(text string) bool {
	return text == ThinkingText
}

// FinalText returns text unless it is blank, in which case FallbackText.
func FinalText(text string) string {
	if strings.TrimSpace(text) == "" {
		return FallbackText
	}
	return text
}

// ErrorText formats a failure for display in place of a reply.
func ErrorText(msg string) string {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = UnknownErrorText
	}
	return errorPrefix + msg + errorSuffix
}

const (
	errorPrefix = "Error: "
	errorSuffix = ". Please try again."
)

// IsErrorText reports whether text was produced by ErrorText.
func IsErrorText(text string) bool {
	return strings.HasPrefix(text, errorPrefix) && strings.HasSuffix(text, errorSuffix)
}

// =============================================================================
// MESSAGE
// =============================================================================

// Message is one entry in a conversation. ID and Sender never change after
// creation; Text changes only for bot messages.
type Message struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// NewUserMessage creates a finished user message.
func NewUserMessage(id, text string, ts time.Time) Message {
	return Message{ID: id, Sender: SenderUser, Text: text, Timestamp: ts}
}

// NewPlaceholder creates a bot message carrying ThinkingText.
func NewPlaceholder(id string, ts time.Time) Message {
	return Message{ID: id, Sender: SenderBot, Text: ThinkingText, Timestamp: ts}
}

// IsUser returns true if this is a user message.
func (m Message) IsUser() bool {
	return m.Sender == SenderUser
}

// IsBot returns true if this is a bot message.
func (m Message) IsBot() bool {
	return m.Sender == SenderBot
}

// IsThinking reports whether the message still shows the placeholder.
func (m Message) IsThinking() bool {
	return m.IsBot() && IsThinking(m.Text)
}

// FormattedTime returns the clock time shown next to the message.
func (m Message) FormattedTime() string {
	return m.Timestamp.Format("15:04")
}
