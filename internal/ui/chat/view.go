// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/jeranaias/streamchat/internal/conversation"
	"github.com/jeranaias/streamchat/internal/session"
	"github.com/jeranaias/streamchat/internal/ui/styles"
	"github.com/jeranaias/streamchat/internal/util"
)

// View renders the chat view.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	sections := []string{
		m.renderHeader(),
		m.viewport.View(),
		m.theme.InputContainer.Width(m.width).Render(m.input.View()),
		m.renderStatus(),
		m.help.View(m.keys),
	}
	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	brand := m.theme.HeaderBrand.Render("streamchat")

	var thread string
	if id := m.snap.ThreadID; id != "" {
		thread = m.theme.HeaderThread.Render(styles.IndicatorConnected + " thread " + session.ShortID(id))
	} else {
		thread = m.theme.HeaderNoLink.Render(styles.IndicatorDisconnected + " no thread")
	}

	line := brand + "  " + thread
	return m.theme.Header.Width(m.width).Render(line)
}

func (m Model) renderStatus() string {
	width := m.width
	switch {
	case m.status != "":
		style := m.theme.StatusBar
		if m.statusErr {
			style = m.theme.StatusError
		}
		return style.Render(util.TruncateWidth(m.status, width))

	case m.snap.Busy:
		return m.theme.StatusBar.Render(util.TruncateWidth(m.spinner.View()+" "+phaseLabel(m.snap.Phase), width))

	case m.snap.Phase == conversation.PhaseErrored && m.snap.LastError != "":
		text := styles.IndicatorError + " last reply failed: " + m.snap.LastError
		return m.theme.StatusError.Render(util.TruncateWidth(text, width))
	}

	return m.theme.StatusBar.Render(fmt.Sprintf("%d messages", len(m.snap.Messages)))
}

func phaseLabel(p conversation.Phase) string {
	switch p {
	case conversation.PhaseStreaming:
		return "receiving reply"
	default:
		return "waiting for reply"
	}
}
