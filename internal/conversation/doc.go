// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation drives send/receive exchanges with the assistant.
//
// A Controller owns the conversation store and the thread handle. Submit
// runs one exchange: it appends the user message and a thinking placeholder,
// opens the reply stream, decodes frames and republishes the growing reply
// onto the placeholder, then finalizes it or replaces it with an error. Only
// one exchange runs at a time.
//
// # Key Types
//
//   - Controller: single-flight exchange driver
//   - Transport: the remote assistant (stream opening, thread creation)
//   - Snapshot: immutable view handed to subscribers after every change
//   - Phase: Idle, UserAppended, Pending, Streaming, Finalized, Errored
//
// # Usage
//
//	ctrl := conversation.New(client, conversation.WithLogger(log))
//	cancel := ctrl.Subscribe(func(s conversation.Snapshot) {
//	    program.Send(chat.SnapshotMsg{Snapshot: s})
//	})
//	defer cancel()
//	_ = ctrl.Start(ctx)
//	go ctrl.Submit(ctx, "hello")
//
// # Reset
//
// Reset abandons any running exchange, clears the conversation and requests
// a new thread handle. Each exchange is tagged with the generation it started
// in; writes from an exchange whose generation is no longer current are
// dropped, so an abandoned reply can never reappear.
//
// Subscribers receive every snapshot, one at a time and in mutation order.
// A subscriber may call Reset or Submit; the snapshots those calls produce
// are queued and delivered once the callback returns.
package conversation
