// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session tracks the remote thread handle of a conversation.
//
// A thread handle is an opaque id handed out by the assistant that scopes
// the remote side of one conversation. It is obtained when the client starts
// and replaced whenever the user starts over. A failed request leaves the
// handle empty; requests are then sent without a thread id.
//
// # Key Types
//
//   - Manager: holds the current handle and activity bookkeeping
//   - Info: point-in-time copy of the manager state
//   - CreateFunc: the call that obtains a new handle
//
// # Usage
//
//	mgr := session.NewManager(session.DefaultConfig())
//	if _, err := mgr.Renew(ctx, client.CreateThread); err != nil {
//	    log.Warn("SESSION | thread unavailable err=%v", err)
//	}
//	req.ThreadID = mgr.ThreadID()
package session
