// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"io"
	"path/filepath"

	"github.com/jeranaias/streamchat/internal/logging"
	"github.com/jeranaias/streamchat/internal/ui/chat"
	"github.com/jeranaias/streamchat/internal/ui/styles"
)

// runTUI opens the full-screen chat. Logs go to the configured file or to a
// file next to the config, never to the terminal the UI draws on.
func (a *app) runTUI(ctx context.Context) error {
	if a.cfg.Logging.File == "" {
		f, err := logging.OpenFile(filepath.Join(filepath.Dir(a.configPath), "streamchat.log"))
		if err != nil {
			a.log = logging.New(io.Discard, a.log.Level())
		} else {
			a.closers = append(a.closers, f)
			a.log = logging.New(f, a.log.Level())
		}
	}

	ctrl, stop, err := a.newController(a.log)
	if err != nil {
		return err
	}
	defer stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.watchConfig(ctx)

	// The UI works without a thread; the failure is already logged.
	_ = ctrl.Start(ctx)

	return chat.Run(ctx, ctrl, chat.Options{
		Theme:          styles.NewTheme(a.cfg.UI.Theme),
		RenderMarkdown: a.cfg.UI.RenderMarkdown,
		WordWrap:       a.cfg.UI.WordWrap,
		ShowTimestamps: a.cfg.UI.ShowTimestamps,
		Prompts:        a.cfg.UI.Prompts,
	})
}
