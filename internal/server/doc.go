// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server implements a local mock of the streaming assistant.
//
// It speaks the same wire format the client consumes, which makes it useful
// for demos and end-to-end tests without a real backend.
//
// # Endpoints
//
//   - POST /create-thread: returns {"thread_id": "<uuid>"}
//   - POST /chat-plain: streams the reply as data: lines, then data: [DONE]
//   - GET  /health: liveness and counters
//
// # Triggers
//
// A message equal to one of these changes the reply:
//
//   - !error: a single error frame
//   - !fail: HTTP 500 with no stream
//   - !empty: only the done sentinel
//
// Any other message is looked up in Config.Script and falls back to an
// echo.
//
// # Middleware
//
// Handler wraps the routes in Recovery, Logging, CORS and a per-client rate
// limit, composed with Chain.
package server
