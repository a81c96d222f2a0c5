// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package assistant is the HTTP transport to the remote assistant.
//
// Two endpoints are used:
//
//	POST {base}/create-thread   -> {"thread_id": "..."}
//	POST {base}/chat-plain      {"message": "...", "thread_id": "..."} -> data: stream
//
// Client implements conversation.Transport. It does not interpret the reply
// stream; it only opens it and maps HTTP-level failures to errors.
//
// # Error Handling
//
//   - *StatusError: non-2xx response, formatted "HTTP 500: Internal Server Error"
//   - *ClientError: connection, timeout and malformed-response failures
package assistant
