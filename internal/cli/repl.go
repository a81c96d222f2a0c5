// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/streamchat/internal/conversation"
	"github.com/jeranaias/streamchat/internal/session"
	"github.com/jeranaias/streamchat/internal/util"
)

// maxPromptRunes caps how much of a quick-start prompt /prompts shows.
const maxPromptRunes = 80

func newREPLCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Chat one line at a time",
		Long: `Read messages one line at a time and stream each reply.

Commands:
  /new      start a new conversation
  /thread   show the current thread
  /prompts  list the quick-start prompts
  /<n>      send quick-start prompt n
  /help     show this help
  /quit     exit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runREPL(cmd)
		},
	}
}

// =============================================================================
// LINE INPUT
// =============================================================================

// lineReader reads one line of input per prompt.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

// historyReader is a liner-backed lineReader with persistent history.
type historyReader struct {
	line        *liner.State
	historyFile string
}

func newHistoryReader(historyFile string) *historyReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	r := &historyReader{line: line, historyFile: historyFile}
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	return r
}

func (r *historyReader) Prompt(prompt string) (string, error) {
	s, err := r.line.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	return s, err
}

func (r *historyReader) AppendHistory(line string) {
	r.line.AppendHistory(line)
}

func (r *historyReader) Close() error {
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			r.line.WriteHistory(f)
			f.Close()
		}
	}
	return r.line.Close()
}

// pipeReader reads lines from a non-terminal input without prompting.
type pipeReader struct {
	sc *bufio.Scanner
}

func (r *pipeReader) Prompt(string) (string, error) {
	if r.sc.Scan() {
		return r.sc.Text(), nil
	}
	if err := r.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (r *pipeReader) AppendHistory(string) {}
func (r *pipeReader) Close() error        { return nil }

// =============================================================================
// REPL
// =============================================================================

func (a *app) runREPL(cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	ctrl, stop, err := a.newController(a.log)
	if err != nil {
		return err
	}
	defer stop()

	var in lineReader
	if isTerminal(cmd.InOrStdin()) {
		in = newHistoryReader(filepath.Join(filepath.Dir(a.configPath), "repl_history"))
	} else {
		sc := bufio.NewScanner(cmd.InOrStdin())
		sc.Buffer(make([]byte, 64*1024), 1<<20)
		in = &pipeReader{sc: sc}
	}
	defer in.Close()

	a.watchConfig(ctx)

	if err := ctrl.Start(ctx); err != nil {
		fmt.Fprintln(out, "(no thread: continuing without one)")
	}
	fmt.Fprintf(out, "streamchat %s - %s. Type /help for commands.\n", Version, threadLabel(ctrl))

	printer := &replyPrinter{out: out}
	unsubscribe := ctrl.Subscribe(printer.onSnapshot)
	defer unsubscribe()

	for {
		line, err := in.Prompt("> ")
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		in.AppendHistory(line)

		if strings.HasPrefix(line, "/") {
			quit, prompt := a.replCommand(cmd, ctrl, line)
			if quit {
				return nil
			}
			if prompt == "" {
				continue
			}
			fmt.Fprintln(out, prompt)
			line = prompt
		}

		printer.begin()
		err = ctrl.Submit(ctx, line)
		switch {
		case errors.Is(err, conversation.ErrBusy), errors.Is(err, conversation.ErrEmptyInput):
			fmt.Fprintln(out, err)
			continue
		case err != nil:
			return err
		}
		printer.finish(ctrl.Snapshot())

		if ctx.Err() != nil {
			return nil
		}
	}
}

// replCommand handles a slash command. It reports whether to exit and, for
// /<n>, the quick-start prompt to send.
func (a *app) replCommand(cmd *cobra.Command, ctrl *conversation.Controller, line string) (bool, string) {
	out := cmd.OutOrStdout()
	name, _, _ := strings.Cut(line, " ")
	prompts := a.cfg.UI.Prompts

	if n, err := strconv.Atoi(strings.TrimPrefix(name, "/")); err == nil {
		if n < 1 || n > len(prompts) {
			fmt.Fprintf(out, "No prompt %d. Type /prompts to list them.\n", n)
			return false, ""
		}
		return false, prompts[n-1]
	}

	switch name {
	case "/quit", "/exit", "/q":
		return true, ""
	case "/prompts":
		if len(prompts) == 0 {
			fmt.Fprintln(out, "No prompts configured")
			break
		}
		for i, p := range prompts {
			fmt.Fprintf(out, "/%d  %s\n", i+1, util.TruncateRunes(p, maxPromptRunes))
		}
	case "/new":
		if err := ctrl.Reset(cmd.Context()); err != nil {
			fmt.Fprintf(out, "Started a new conversation without a thread (%v)\n", err)
		} else {
			fmt.Fprintf(out, "Started a new conversation (%s)\n", threadLabel(ctrl))
		}
	case "/thread":
		info := ctrl.Threads().Info()
		if info.ThreadID == "" {
			fmt.Fprintln(out, "No thread")
		} else {
			fmt.Fprintf(out, "Thread %s (exchanges: %d, renewals: %d)\n", info.ThreadID, info.Exchanges, info.Renewals)
		}
	case "/help":
		fmt.Fprintln(out, "/new  start over   /thread  show thread   /prompts  list prompts   /<n>  send prompt n   /quit  exit")
	default:
		fmt.Fprintf(out, "Unknown command %s. Type /help.\n", name)
	}
	return false, ""
}

func threadLabel(ctrl *conversation.Controller) string {
	if id := ctrl.Threads().ThreadID(); id != "" {
		return "thread " + session.ShortID(id)
	}
	return "no thread"
}

// =============================================================================
// STREAMED OUTPUT
// =============================================================================

// replyPrinter writes the reply as it grows. If the final text does not
// extend what was printed (an error or fallback replaced it), the final
// text is printed on its own line.
type replyPrinter struct {
	out io.Writer

	mu      sync.Mutex
	printed string
}

func (p *replyPrinter) begin() {
	p.mu.Lock()
	p.printed = ""
	p.mu.Unlock()
}

func (p *replyPrinter) onSnapshot(s conversation.Snapshot) {
	msg, ok := s.Pending()
	if !ok || msg.IsThinking() {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if strings.HasPrefix(msg.Text, p.printed) {
		fmt.Fprint(p.out, msg.Text[len(p.printed):])
		p.printed = msg.Text
	}
}

func (p *replyPrinter) finish(s conversation.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	reply, ok := s.LastReply()
	if ok && reply.Text != p.printed {
		if p.printed != "" {
			fmt.Fprintln(p.out)
		}
		fmt.Fprint(p.out, reply.Text)
	}
	fmt.Fprintln(p.out)
	p.printed = ""
}
