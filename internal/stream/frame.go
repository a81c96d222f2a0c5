// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import "fmt"

// FrameKind tags a Frame.
type FrameKind int

const (
	// FrameContent carries a text delta to append to the reply.
	FrameContent FrameKind = iota
	// FrameError carries a failure reported by the remote side.
	FrameError
	// FrameDone marks the end of the reply.
	FrameDone
)

// String returns the kind name used in logs and metrics labels.
func (k FrameKind) String() string {
	switch k {
	case FrameContent:
		return "content"
	case FrameError:
		return "error"
	case FrameDone:
		return "done"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Frame is one logical unit of the reply stream. Text is the delta for
// content frames and the message for error frames; it is empty for done.
type Frame struct {
	Kind FrameKind
	Text string
}

// ContentFrame returns a content frame carrying delta.
func ContentFrame(delta string) Frame {
	return Frame{Kind: FrameContent, Text: delta}
}

// ErrorFrame returns an error frame carrying msg.
func ErrorFrame(msg string) Frame {
	return Frame{Kind: FrameError, Text: msg}
}

// DoneFrame returns the terminal frame.
func DoneFrame() Frame {
	return Frame{Kind: FrameDone}
}

func (f Frame) String() string {
	if f.Kind == FrameDone {
		return "Done"
	}
	return fmt.Sprintf("%s(%q)", f.Kind, f.Text)
}
