// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/streamchat/internal/conversation"
)

// Run shows the chat view for ctrl until the user quits or ctx ends.
// Snapshots reach the view through the program's message queue.
func Run(parent context.Context, ctrl *conversation.Controller, opts Options) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	p := tea.NewProgram(
		New(ctx, ctrl, opts),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	unsubscribe := ctrl.Subscribe(func(s conversation.Snapshot) {
		p.Send(SnapshotMsg{Snapshot: s})
	})
	defer unsubscribe()

	_, err := p.Run()
	// Abandon any exchange still running before the subscription goes away.
	cancel()
	if errors.Is(err, tea.ErrProgramKilled) && parent.Err() != nil {
		return nil
	}
	return err
}
