// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small file and text helpers shared by the client.
//
// # Key Functions
//
//   - AtomicWriteFile: temp-file + fsync + rename write used for config files
//   - TruncateRunes: rune-safe truncation with an ellipsis
//   - TruncateWidth: display-width truncation for terminal columns
//   - RuneLen: rune count of a string
//
// # Usage
//
//	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
//	    return err
//	}
//	header := util.TruncateWidth(title, width-4)
package util
