// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the terminal chat interface.

The Model is a Bubble Tea model that never mutates the conversation itself.
It renders snapshots published by a conversation.Controller and turns key
presses into controller calls run as tea.Cmds.

# Key Components

## Model (model.go)

Holds the latest snapshot plus the viewport, text input and spinner.

## Update Loop (update.go)

  - SnapshotMsg: replace the snapshot, re-render the transcript
  - enter: submit the input on a background command
  - ctrl+r: start over with a fresh thread
  - ctrl+y: copy the last reply to the clipboard

## View Rendering (view.go, render.go)

Header with the shortened thread id, transcript, input line, status and
help. Finished replies are rendered as markdown with glamour; a reply still
streaming is shown as plain text.

# Usage

Run wires a controller to a program:

	err := chat.Run(ctx, ctrl, chat.Options{Theme: styles.NewTheme("auto")})

Controller calls must not happen inside Update: the subscription delivers
snapshots through tea.Program.Send, which would block on the Update loop.
*/
package chat
