// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the conversation data structures.
//
// A conversation is an ordered list of messages held by a Store. Messages are
// appended and, for bot messages, have their text replaced in place while a
// reply streams in. Nothing is removed except by Clear.
//
// # Key Types
//
//   - Sender: who wrote a message (user or bot)
//   - Message: id, sender, text and timestamp
//   - Store: ordered, concurrency-safe message log with replace-by-id
//
// # Usage
//
//	store := model.NewStore()
//	_ = store.Append(model.NewUserMessage("msg_1", "hello", time.Now()))
//	_ = store.Append(model.NewPlaceholder("msg_2", time.Now()))
//	_ = store.ReplaceText("msg_2", "Hi there")
//
// The well-known texts ThinkingText, FallbackText and the ErrorText helper are
// also defined here so that the controller and the presentation layer agree
// on them.
package model
