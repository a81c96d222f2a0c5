// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/streamchat/internal/conversation"
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		model, cmd, handled := m.handleKey(msg)
		if handled {
			return model, cmd
		}
		m = model

	case SnapshotMsg:
		m.snap = msg.Snapshot
		m.refresh()
		return m, nil

	case SubmitDoneMsg:
		m.snap = m.backend.Snapshot()
		m.refresh()
		m.setStatusFromErr(msg.Err)
		return m, nil

	case ResetDoneMsg:
		m.resetting = false
		m.snap = m.backend.Snapshot()
		m.refresh()
		if msg.Err != nil {
			m.setStatus(fmt.Sprintf("started over without a thread: %v", msg.Err), true)
		} else {
			m.setStatus("started over", false)
		}
		return m, nil

	case CopiedMsg:
		if msg.Err != nil {
			m.setStatus(fmt.Sprintf("copy failed: %v", msg.Err), true)
		} else {
			m.setStatus(fmt.Sprintf("copied reply (%d chars)", msg.Chars), false)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.snap.Busy && m.ready {
			m.refresh()
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// handleKey processes bound keys. Unbound keys fall through to the input.
func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit, true

	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.NewChat):
		if m.resetting {
			return m, nil, true
		}
		m.resetting = true
		m.input.Reset()
		m.setStatus("starting over...", false)
		return m, m.resetCmd(), true

	case key.Matches(msg, m.keys.Copy):
		reply, ok := m.snap.LastReply()
		if !ok {
			m.setStatus("nothing to copy yet", true)
			return m, nil, true
		}
		return m, m.copyCmd(reply.Text), true

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil, true

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil, true

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
		return m, nil, true

	case key.Matches(msg, m.keys.Prompt):
		if prompt, ok := m.quickPrompt(msg.String()); ok {
			return m.send(prompt)
		}
	}

	m.status = ""
	return m, nil, false
}

func (m Model) submit() (Model, tea.Cmd, bool) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil, true
	}
	return m.send(text)
}

// quickPrompt maps a digit key to a configured prompt. Digits only select
// prompts on the welcome screen with nothing typed yet.
func (m Model) quickPrompt(k string) (string, bool) {
	if len(m.snap.Messages) > 0 || m.input.Value() != "" || m.snap.Busy || m.resetting {
		return "", false
	}
	n, err := strconv.Atoi(k)
	if err != nil || n < 1 || n > len(m.opts.Prompts) {
		return "", false
	}
	prompt := strings.TrimSpace(m.opts.Prompts[n-1])
	return prompt, prompt != ""
}

func (m Model) send(text string) (Model, tea.Cmd, bool) {
	if m.snap.Busy || m.resetting {
		m.setStatus("wait for the current reply to finish", true)
		return m, nil, true
	}

	m.input.Reset()
	m.status = ""
	// Mark busy locally so a second enter before the first snapshot
	// arrives is rejected here instead of by the controller.
	m.snap.Busy = true
	return m, m.submitCmd(text), true
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

func (m *Model) setStatusFromErr(err error) {
	switch {
	case err == nil:
	case errors.Is(err, conversation.ErrBusy):
		m.setStatus("wait for the current reply to finish", true)
	case errors.Is(err, conversation.ErrEmptyInput):
	default:
		m.setStatus(err.Error(), true)
	}
}

// resize lays out the components for a new window size.
func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.ready = true
	m.input.Width = width - 4
	m.markdown.SetWidth(m.transcriptWidth())
	m.layout()
	m.refresh()
}

func (m *Model) layout() {
	helpHeight := 1
	if m.help.ShowAll {
		for _, col := range m.keys.FullHelp() {
			helpHeight = max(helpHeight, len(col))
		}
	}
	h := m.height - headerHeight - inputHeight - footerHeight - (helpHeight - 1)
	if h < 1 {
		h = 1
	}
	m.viewport.Width = m.width
	m.viewport.Height = h
	m.help.Width = m.width
}

// refresh re-renders the transcript, keeping the view pinned to the bottom
// if it was there.
func (m *Model) refresh() {
	atBottom := m.viewport.AtBottom() || m.viewport.TotalLineCount() == 0
	m.viewport.SetContent(m.renderTranscript())
	if atBottom || m.snap.Busy {
		m.viewport.GotoBottom()
	}
}
