// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/util"
)

// maxCachedRenders bounds the markdown cache; it is dropped wholesale when
// exceeded.
const maxCachedRenders = 256

// markdownRenderer renders finished replies with glamour and caches the
// output per message and width.
type markdownRenderer struct {
	style string
	width int
	tr    *glamour.TermRenderer
	cache map[string]string
}

func newMarkdownRenderer(style string) *markdownRenderer {
	return &markdownRenderer{
		style: style,
		width: 80,
		cache: make(map[string]string),
	}
}

// SetWidth changes the wrap width, invalidating cached output.
func (mr *markdownRenderer) SetWidth(width int) {
	if width == mr.width {
		return
	}
	mr.width = width
	mr.tr = nil
	mr.cache = make(map[string]string)
}

// Render returns the rendered form of text for message id.
func (mr *markdownRenderer) Render(id, text string) (string, error) {
	key := id + "\x00" + text
	if out, ok := mr.cache[key]; ok {
		return out, nil
	}

	if mr.tr == nil {
		tr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(mr.style),
			glamour.WithWordWrap(mr.width),
		)
		if err != nil {
			return "", err
		}
		mr.tr = tr
	}

	out, err := mr.tr.Render(text)
	if err != nil {
		return "", err
	}
	out = strings.Trim(out, "\n")

	if len(mr.cache) >= maxCachedRenders {
		mr.cache = make(map[string]string)
	}
	mr.cache[key] = out
	return out, nil
}

// renderTranscript renders every message of the current snapshot.
func (m Model) renderTranscript() string {
	if len(m.snap.Messages) == 0 {
		return m.renderWelcome()
	}

	width := m.transcriptWidth()
	var b strings.Builder
	for i, msg := range m.snap.Messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.renderHeading(msg))
		b.WriteString("\n")
		b.WriteString(m.renderBody(msg, width))
	}
	return b.String()
}

func (m Model) renderHeading(msg model.Message) string {
	label := m.theme.BotLabel.Render(msg.Sender.DisplayName())
	if msg.IsUser() {
		label = m.theme.UserLabel.Render(msg.Sender.DisplayName())
	}
	if !m.opts.ShowTimestamps {
		return label
	}
	return label + " " + m.theme.Timestamp.Render(msg.FormattedTime())
}

func (m Model) renderBody(msg model.Message, width int) string {
	// Style widths include the two columns of left padding.
	switch {
	case msg.IsUser():
		return m.theme.UserText.Width(width).Render(msg.Text)

	case msg.IsThinking():
		return m.theme.Thinking.Render(m.spinner.View() + " " + msg.Text)

	case msg.ID == m.snap.PendingID:
		return m.theme.BotText.Width(width).Render(msg.Text)

	case model.IsErrorText(msg.Text):
		return m.theme.ErrorText.Width(width).Render(msg.Text)

	case m.opts.RenderMarkdown:
		if out, err := m.markdown.Render(msg.ID, msg.Text); err == nil {
			return out
		}
	}
	return m.theme.BotText.Width(width).Render(msg.Text)
}

func (m Model) renderWelcome() string {
	var b strings.Builder
	b.WriteString(m.theme.Welcome.Render("Welcome to streamchat"))
	b.WriteString("\n")
	b.WriteString(m.theme.WelcomeHint.Render("Type a message and press Enter. Ctrl+R starts a new conversation."))
	if len(m.opts.Prompts) == 0 {
		return b.String()
	}

	b.WriteString("\n\n")
	b.WriteString(m.theme.WelcomeHint.Render("Or press a number to ask:"))
	for i, p := range m.opts.Prompts {
		b.WriteString("\n")
		b.WriteString(m.theme.InputPrompt.Render(fmt.Sprintf("  %d  %s", i+1, util.TruncateRunes(p, maxPromptRunes))))
	}
	return b.String()
}
