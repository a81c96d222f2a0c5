// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes the assistant's streamed reply body into frames.
//
// The body is a sequence of newline-terminated lines. A line of the form
// "data: <payload>" carries one frame; every other non-empty line is ignored.
// The payload is either the sentinel [DONE], a JSON object, or literal text.
//
// # Key Types
//
//   - Frame: one decoded unit (Content, Error or Done)
//   - Decoder: push-style decoder fed with arbitrary byte chunks
//   - Reader: pull-style wrapper that reads frames from an io.Reader
//   - DecodeError: the body was not valid UTF-8
//
// # Chunk Boundaries
//
// Chunks may split a line, or a multi-byte character, at any byte. The
// decoder carries the unterminated tail of each chunk into the next one, so
// the frames produced never depend on where the transport cut the body.
//
// # Usage
//
//	dec := stream.NewDecoder()
//	for {
//	    n, err := body.Read(buf)
//	    frames, derr := dec.Feed(buf[:n])
//	    ...
//	}
//
// Or, when a blocking pull loop is more convenient:
//
//	r := stream.NewReader(body, 4096)
//	for {
//	    f, err := r.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
package stream
