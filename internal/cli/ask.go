// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/jeranaias/streamchat/internal/conversation"
	"github.com/jeranaias/streamchat/internal/ui/styles"
)

// errReplyFailed is returned when the assistant's reply was replaced by an
// error, so scripts see a non-zero exit status.
var errReplyFailed = errors.New("reply failed")

func newAskCommand(a *app) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "ask <message...>",
		Short: "Send one message and print the reply",
		Example: `  streamchat ask "what is a goroutine?"
  streamchat ask --raw summarize this | less`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAsk(cmd, strings.Join(args, " "), raw)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the reply without markdown rendering")
	return cmd
}

func (a *app) runAsk(cmd *cobra.Command, text string, raw bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	ctrl, stop, err := a.newController(a.log)
	if err != nil {
		return err
	}
	defer stop()

	// A missing thread is logged and the message is sent without one.
	_ = ctrl.Start(ctx)

	if err := ctrl.Submit(ctx, text); err != nil {
		return err
	}

	snap := ctrl.Snapshot()
	reply, ok := snap.LastReply()
	if !ok {
		return ctx.Err()
	}

	rendered := reply.Text
	if !raw && snap.Phase == conversation.PhaseFinalized && a.cfg.UI.RenderMarkdown && colorEnabled(out) {
		rendered = a.renderMarkdown(out, reply.Text)
	}
	fmt.Fprintln(out, strings.TrimRight(rendered, "\n"))

	if snap.Phase == conversation.PhaseErrored {
		return fmt.Errorf("%w: %s", errReplyFailed, snap.LastError)
	}
	return nil
}

// renderMarkdown renders text with glamour, falling back to the raw text.
func (a *app) renderMarkdown(w io.Writer, text string) string {
	width := a.cfg.UI.WordWrap
	if tw := terminalWidth(w, 80); width == 0 || tw < width {
		width = tw
	}

	theme := styles.NewTheme(a.cfg.UI.Theme)
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(theme.GlamourStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return out
}
