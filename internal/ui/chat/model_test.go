// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/streamchat/internal/conversation"
	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/ui/styles"
	"github.com/jeranaias/streamchat/internal/util"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fakeBackend struct {
	mu        sync.Mutex
	snap      conversation.Snapshot
	submitted []string
	resets    int
	submitErr error
	resetErr  error
}

func (f *fakeBackend) Submit(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, text)
	return f.submitErr
}

func (f *fakeBackend) Reset(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	f.snap = conversation.Snapshot{ThreadID: "fresh-thread-id"}
	return f.resetErr
}

func (f *fakeBackend) Snapshot() conversation.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

var ts = time.Date(2025, 3, 1, 9, 5, 0, 0, time.UTC)

func newTestModel(t *testing.T, backend Backend, mutate func(*Options)) Model {
	t.Helper()
	opts := Options{
		Theme: styles.NewTheme(styles.ModeDark),
		Copy:  func(string) error { return nil },
	}
	if mutate != nil {
		mutate(&opts)
	}
	m := New(context.Background(), backend, opts)
	return update(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func updateCmd(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func conversationWith(msgs ...model.Message) conversation.Snapshot {
	return conversation.Snapshot{Messages: msgs, ThreadID: "0123456789abcdef", Phase: conversation.PhaseFinalized}
}

func bot(id, text string) model.Message {
	m := model.NewPlaceholder(id, ts)
	m.Text = text
	return m
}

// =============================================================================
// VIEW TESTS
// =============================================================================

func TestView_BeforeResize(t *testing.T) {
	m := New(context.Background(), &fakeBackend{}, Options{Theme: styles.NewTheme(styles.ModeDark)})
	if got := m.View(); got != "Initializing..." {
		t.Errorf("View() = %q", got)
	}
}

func TestView_EmptyConversationShowsWelcome(t *testing.T) {
	m := newTestModel(t, &fakeBackend{}, nil)
	view := m.View()

	if !strings.Contains(view, "Welcome to streamchat") {
		t.Errorf("welcome missing:\n%s", view)
	}
	if !strings.Contains(view, "no thread") {
		t.Errorf("thread indicator missing:\n%s", view)
	}
}

func TestView_HeaderShowsShortThreadID(t *testing.T) {
	m := newTestModel(t, &fakeBackend{}, nil)
	m = update(t, m, SnapshotMsg{Snapshot: conversationWith()})

	if view := m.View(); !strings.Contains(view, "thread 01234567...") {
		t.Errorf("short thread id missing:\n%s", view)
	}
}

func TestView_Transcript(t *testing.T) {
	m := newTestModel(t, &fakeBackend{}, func(o *Options) { o.ShowTimestamps = true })
	m = update(t, m, SnapshotMsg{Snapshot: conversationWith(
		model.NewUserMessage("u1", "hello there", ts),
		bot("b1", "general kenobi"),
	)})

	view := m.View()
	for _, want := range []string{"You", "hello there", "general kenobi", "09:05"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestView_ThinkingPlaceholder(t *testing.T) {
	m := newTestModel(t, &fakeBackend{}, nil)
	snap := conversationWith(model.NewUserMessage("u1", "hi", ts), model.NewPlaceholder("b1", ts))
	snap.Busy = true
	snap.PendingID = "b1"
	snap.Phase = conversation.PhasePending
	m = update(t, m, SnapshotMsg{Snapshot: snap})

	view := m.View()
	if !strings.Contains(view, model.ThinkingText) {
		t.Errorf("thinking text missing:\n%s", view)
	}
	if !strings.Contains(view, "waiting for reply") {
		t.Errorf("busy status missing:\n%s", view)
	}
}

func TestView_ErroredReply(t *testing.T) {
	m := newTestModel(t, &fakeBackend{}, nil)
	snap := conversationWith(model.NewUserMessage("u1", "hi", ts), bot("b1", model.ErrorText("HTTP 500: Internal Server Error")))
	snap.Phase = conversation.PhaseErrored
	snap.LastError = "HTTP 500: Internal Server Error"
	m = update(t, m, SnapshotMsg{Snapshot: snap})

	view := m.View()
	if !strings.Contains(view, "last reply failed") {
		t.Errorf("error status missing:\n%s", view)
	}
}

func TestRender_MarkdownOnlyWhenFinished(t *testing.T) {
	text := "some **bold** words"

	plain := newTestModel(t, &fakeBackend{}, func(o *Options) { o.RenderMarkdown = false })
	plain = update(t, plain, SnapshotMsg{Snapshot: conversationWith(bot("b1", text))})
	if !strings.Contains(plain.renderTranscript(), "**bold**") {
		t.Error("raw markdown expected with rendering disabled")
	}

	rendered := newTestModel(t, &fakeBackend{}, func(o *Options) { o.RenderMarkdown = true })
	rendered = update(t, rendered, SnapshotMsg{Snapshot: conversationWith(bot("b1", text))})
	out := rendered.renderTranscript()
	if strings.Contains(out, "**bold**") || !strings.Contains(out, "bold") {
		t.Errorf("markdown not rendered:\n%s", out)
	}

	streaming := conversationWith(bot("b1", text))
	streaming.PendingID = "b1"
	streaming.Busy = true
	rendered = update(t, rendered, SnapshotMsg{Snapshot: streaming})
	if !strings.Contains(rendered.renderTranscript(), "**bold**") {
		t.Error("streaming reply should be shown raw")
	}
}

func TestMarkdownRenderer_CachesPerWidth(t *testing.T) {
	mr := newMarkdownRenderer("dark")

	first, err := mr.Render("b1", "# Title")
	if err != nil {
		t.Fatal(err)
	}
	if len(mr.cache) != 1 {
		t.Fatalf("cache size = %d", len(mr.cache))
	}
	again, _ := mr.Render("b1", "# Title")
	if again != first {
		t.Error("cached render differs")
	}

	mr.SetWidth(40)
	if len(mr.cache) != 0 {
		t.Error("cache not cleared on width change")
	}
}

// =============================================================================
// KEY TESTS
// =============================================================================

func TestSubmit_RunsOnCommand(t *testing.T) {
	backend := &fakeBackend{}
	m := newTestModel(t, backend, nil)
	m.input.SetValue("  hello  ")

	m, cmd := updateCmd(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter produced no command")
	}
	if m.input.Value() != "" {
		t.Errorf("input not cleared: %q", m.input.Value())
	}
	if len(backend.submitted) != 0 {
		t.Fatal("Submit called inside Update")
	}

	msg := cmd()
	if _, ok := msg.(SubmitDoneMsg); !ok {
		t.Fatalf("cmd returned %T", msg)
	}
	if len(backend.submitted) != 1 || backend.submitted[0] != "hello" {
		t.Errorf("submitted = %q", backend.submitted)
	}
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestView_WelcomeListsPrompts(t *testing.T) {
	long := strings.Repeat("why ", 30)
	m := newTestModel(t, &fakeBackend{}, func(o *Options) {
		o.Prompts = []string{"What is a goroutine?", long}
	})
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 30})
	view := m.View()

	if !strings.Contains(view, "1  What is a goroutine?") {
		t.Errorf("first prompt missing:\n%s", view)
	}
	if !strings.Contains(view, "2  "+util.TruncateRunes(long, maxPromptRunes)) {
		t.Errorf("truncated prompt missing:\n%s", view)
	}
	if strings.Contains(view, strings.TrimSpace(long)) {
		t.Errorf("long prompt not truncated:\n%s", view)
	}
}

func TestPromptKey_SendsPrompt(t *testing.T) {
	backend := &fakeBackend{}
	m := newTestModel(t, backend, func(o *Options) {
		o.Prompts = []string{"first prompt", "second prompt"}
	})

	m, cmd := updateCmd(t, m, runeKey('2'))
	if cmd == nil {
		t.Fatal("digit produced no command")
	}
	if !m.snap.Busy {
		t.Error("model not marked busy")
	}
	if m.input.Value() != "" {
		t.Errorf("digit reached the input: %q", m.input.Value())
	}

	if _, ok := cmd().(SubmitDoneMsg); !ok {
		t.Fatal("cmd did not submit")
	}
	if len(backend.submitted) != 1 || backend.submitted[0] != "second prompt" {
		t.Errorf("submitted = %q", backend.submitted)
	}
}

func TestPromptKey_TypesOtherwise(t *testing.T) {
	prompts := func(o *Options) { o.Prompts = []string{"first prompt", "second prompt"} }

	tests := []struct {
		name  string
		setup func(Model) Model
		key   rune
		want  string
	}{
		{"out of range", func(m Model) Model { return m }, '5', "5"},
		{"after typing", func(m Model) Model { m.input.SetValue("abc"); m.input.CursorEnd(); return m }, '1', "abc1"},
		{"conversation started", func(m Model) Model {
			return update(t, m, SnapshotMsg{Snapshot: conversationWith(model.NewUserMessage("u1", "hi", ts))})
		}, '1', "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{}
			m := tt.setup(newTestModel(t, backend, prompts))
			m = update(t, m, runeKey(tt.key))

			if got := m.input.Value(); got != tt.want {
				t.Errorf("input = %q, want %q", got, tt.want)
			}
			if len(backend.submitted) != 0 {
				t.Errorf("submitted = %q", backend.submitted)
			}
		})
	}
}

func TestSubmit_IgnoresBlankInput(t *testing.T) {
	m := newTestModel(t, &fakeBackend{}, nil)
	m.input.SetValue("   ")

	if _, cmd := updateCmd(t, m, tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Error("blank input produced a command")
	}
}

func TestSubmit_RejectedWhileBusy(t *testing.T) {
	m := newTestModel(t, &fakeBackend{}, nil)
	snap := conversationWith()
	snap.Busy = true
	m = update(t, m, SnapshotMsg{Snapshot: snap})
	m.input.SetValue("again")

	m, cmd := updateCmd(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("busy submit produced a command")
	}
	if m.input.Value() != "again" {
		t.Error("input cleared on rejected submit")
	}
	if !strings.Contains(m.Status(), "wait") {
		t.Errorf("status = %q", m.Status())
	}
}

func TestSubmit_SecondEnterBeforeSnapshot(t *testing.T) {
	m := newTestModel(t, &fakeBackend{}, nil)
	m.input.SetValue("first")
	m, _ = updateCmd(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	m.input.SetValue("second")
	if _, cmd := updateCmd(t, m, tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Error("second submit accepted before the first finished")
	}
}

func TestSubmitDone_ShowsBusyError(t *testing.T) {
	m := newTestModel(t, &fakeBackend{}, nil)
	m = update(t, m, SubmitDoneMsg{Err: conversation.ErrBusy})
	if !strings.Contains(m.Status(), "wait") {
		t.Errorf("status = %q", m.Status())
	}

	m = update(t, m, SubmitDoneMsg{Err: conversation.ErrEmptyInput})
	m = update(t, m, SubmitDoneMsg{})
	if !strings.Contains(m.Status(), "wait") {
		t.Errorf("status cleared by a non-error: %q", m.Status())
	}
}

func TestNewChat_ResetsOnCommand(t *testing.T) {
	backend := &fakeBackend{snap: conversationWith(model.NewUserMessage("u1", "hi", ts))}
	m := newTestModel(t, backend, nil)

	m, cmd := updateCmd(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	if cmd == nil {
		t.Fatal("ctrl+r produced no command")
	}
	if backend.resets != 0 {
		t.Fatal("Reset called inside Update")
	}

	if _, again := updateCmd(t, m, tea.KeyMsg{Type: tea.KeyCtrlR}); again != nil {
		t.Error("second ctrl+r while resetting produced a command")
	}

	m = update(t, m, cmd())
	if backend.resets != 1 {
		t.Errorf("resets = %d", backend.resets)
	}
	if m.Status() != "started over" {
		t.Errorf("status = %q", m.Status())
	}
	if len(m.Snapshot().Messages) != 0 || m.Snapshot().ThreadID != "fresh-thread-id" {
		t.Errorf("snapshot after reset = %+v", m.Snapshot())
	}
}

func TestNewChat_ThreadFailure(t *testing.T) {
	backend := &fakeBackend{resetErr: errors.New("offline")}
	m := newTestModel(t, backend, nil)

	_, cmd := updateCmd(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	m = update(t, m, cmd())
	if !strings.Contains(m.Status(), "without a thread") {
		t.Errorf("status = %q", m.Status())
	}
}

func TestCopy_LastReply(t *testing.T) {
	var copied string
	m := newTestModel(t, &fakeBackend{}, func(o *Options) {
		o.Copy = func(s string) error { copied = s; return nil }
	})
	m = update(t, m, SnapshotMsg{Snapshot: conversationWith(
		model.NewUserMessage("u1", "hi", ts),
		bot("b1", "first"),
		model.NewUserMessage("u2", "again", ts),
		bot("b2", "second"),
	)})

	_, cmd := updateCmd(t, m, tea.KeyMsg{Type: tea.KeyCtrlY})
	if cmd == nil {
		t.Fatal("ctrl+y produced no command")
	}
	m = update(t, m, cmd())
	if copied != "second" {
		t.Errorf("copied = %q", copied)
	}
	if !strings.Contains(m.Status(), "copied reply (6 chars)") {
		t.Errorf("status = %q", m.Status())
	}
}

func TestCopy_NothingToCopy(t *testing.T) {
	m := newTestModel(t, &fakeBackend{}, nil)
	m, cmd := updateCmd(t, m, tea.KeyMsg{Type: tea.KeyCtrlY})
	if cmd != nil {
		t.Error("copy with no reply produced a command")
	}
	if m.Status() != "nothing to copy yet" {
		t.Errorf("status = %q", m.Status())
	}
}

func TestCopy_Failure(t *testing.T) {
	m := newTestModel(t, &fakeBackend{}, nil)
	m = update(t, m, CopiedMsg{Err: errors.New("no clipboard")})
	if !strings.Contains(m.Status(), "copy failed") {
		t.Errorf("status = %q", m.Status())
	}
}

func TestQuit(t *testing.T) {
	m := newTestModel(t, &fakeBackend{}, nil)
	for _, k := range []tea.KeyType{tea.KeyEsc, tea.KeyCtrlC} {
		_, cmd := updateCmd(t, m, tea.KeyMsg{Type: k})
		if cmd == nil {
			t.Fatalf("%v produced no command", k)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%v did not quit", k)
		}
	}
}

func TestTyping_ClearsStatus(t *testing.T) {
	m := newTestModel(t, &fakeBackend{}, nil)
	m = update(t, m, CopiedMsg{Err: errors.New("no clipboard")})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("h")})

	if m.Status() != "" {
		t.Errorf("status = %q", m.Status())
	}
	if m.input.Value() != "h" {
		t.Errorf("input = %q", m.input.Value())
	}
}

func TestHelpToggle(t *testing.T) {
	m := newTestModel(t, &fakeBackend{}, nil)
	before := m.viewport.Height

	m = update(t, m, tea.KeyMsg{Type: tea.KeyF1})
	if !m.help.ShowAll {
		t.Fatal("help not expanded")
	}
	if m.viewport.Height >= before {
		t.Errorf("viewport height %d not reduced from %d", m.viewport.Height, before)
	}
}
