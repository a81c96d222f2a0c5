// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/streamchat/internal/conversation"
	"github.com/jeranaias/streamchat/internal/ui/styles"
	"github.com/jeranaias/streamchat/internal/util"
)

// =============================================================================
// BACKEND
// =============================================================================

// Backend is the part of conversation.Controller the view drives.
type Backend interface {
	Submit(ctx context.Context, text string) error
	Reset(ctx context.Context) error
	Snapshot() conversation.Snapshot
}

var _ Backend = (*conversation.Controller)(nil)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures the chat view.
type Options struct {
	Theme          *styles.Theme
	RenderMarkdown bool

	// WordWrap caps the transcript width. Zero uses the window width.
	WordWrap       int
	ShowTimestamps bool

	// Copy writes text to the clipboard. Nil uses the system clipboard.
	Copy func(string) error

	// Prompts are offered on the welcome screen. Keys 1-9 send them while
	// the conversation and the input are empty.
	Prompts []string
}

// =============================================================================
// CHAT MODEL
// =============================================================================

const (
	headerHeight = 1
	inputHeight  = 2 // border + line
	footerHeight = 2 // status + help
	maxInput     = 4096

	maxPrompts     = 9
	maxPromptRunes = 80
)

// Model is the Bubble Tea model for the chat view.
type Model struct {
	backend Backend
	ctx     context.Context
	opts    Options
	theme   *styles.Theme
	keys    KeyMap

	help     help.Model
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	markdown *markdownRenderer

	snap conversation.Snapshot

	width  int
	height int
	ready  bool

	resetting bool
	status    string
	statusErr bool
}

// New creates the chat model. ctx bounds every controller call the view
// makes.
func New(ctx context.Context, backend Backend, opts Options) Model {
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme(styles.ModeAuto)
	}
	if opts.Copy == nil {
		opts.Copy = clipboard.WriteAll
	}
	if len(opts.Prompts) > maxPrompts {
		opts.Prompts = opts.Prompts[:maxPrompts]
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.PromptStyle = opts.Theme.InputPrompt
	ti.Placeholder = "Type a message..."
	ti.CharLimit = maxInput
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = opts.Theme.Thinking.UnsetPaddingLeft()

	vp := viewport.New(80, 20)

	m := Model{
		backend:  backend,
		ctx:      ctx,
		opts:     opts,
		theme:    opts.Theme,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		viewport: vp,
		input:    ti,
		spinner:  sp,
		markdown: newMarkdownRenderer(opts.Theme.GlamourStyle()),
		snap:     backend.Snapshot(),
	}
	m.help.Styles.ShortKey = opts.Theme.Help
	m.help.Styles.ShortDesc = opts.Theme.Help
	return m
}

// Init starts the cursor blink and spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Snapshot returns the snapshot currently shown.
func (m Model) Snapshot() conversation.Snapshot {
	return m.snap
}

// Status returns the transient status line text.
func (m Model) Status() string {
	return m.status
}

// transcriptWidth is the width the transcript is laid out at.
func (m Model) transcriptWidth() int {
	w := m.width - 2
	if m.opts.WordWrap > 0 && m.opts.WordWrap < w {
		w = m.opts.WordWrap
	}
	if w < 20 {
		w = 20
	}
	return w
}

// =============================================================================
// COMMANDS
// =============================================================================

func (m Model) submitCmd(text string) tea.Cmd {
	backend, ctx := m.backend, m.ctx
	return func() tea.Msg {
		return SubmitDoneMsg{Err: backend.Submit(ctx, text)}
	}
}

func (m Model) resetCmd() tea.Cmd {
	backend, ctx := m.backend, m.ctx
	return func() tea.Msg {
		return ResetDoneMsg{Err: backend.Reset(ctx)}
	}
}

func (m Model) copyCmd(text string) tea.Cmd {
	copyFn := m.opts.Copy
	return func() tea.Msg {
		return CopiedMsg{Chars: util.RuneLen(text), Err: copyFn(text)}
	}
}
