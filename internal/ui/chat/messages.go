// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "github.com/jeranaias/streamchat/internal/conversation"

// SnapshotMsg carries a conversation snapshot published by the controller.
type SnapshotMsg struct {
	Snapshot conversation.Snapshot
}

// SubmitDoneMsg is sent when a submitted exchange has ended.
type SubmitDoneMsg struct {
	Err error
}

// ResetDoneMsg is sent when start-over has finished renewing the thread.
type ResetDoneMsg struct {
	Err error
}

// CopiedMsg reports the result of a clipboard copy.
type CopiedMsg struct {
	Chars int
	Err   error
}
