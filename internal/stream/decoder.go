// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"

	"github.com/jeranaias/streamchat/internal/logging"
)

// =============================================================================
// PROTOCOL CONSTANTS
// =============================================================================

const (
	// DataPrefix introduces a frame line.
	DataPrefix = "data:"

	// DoneSentinel is the payload that ends a reply.
	DoneSentinel = "[DONE]"

	lineTerminator = "\n"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrTruncatedUTF8 is reported by Finish when the body ended in the middle of
// a multi-byte character.
var ErrTruncatedUTF8 = errors.New("stream ended inside a UTF-8 sequence")

// DecodeError reports that the reply body could not be decoded as text.
type DecodeError struct {
	Offset int64 // byte offset into the body where decoding failed
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode stream at byte %d: %v", e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// =============================================================================
// DECODER
// =============================================================================

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithDecoderLogger sets the logger used for ignored lines and dropped tails.
func WithDecoderLogger(l logging.Logger) DecoderOption {
	return func(d *Decoder) {
		d.log = logging.OrNop(l)
	}
}

// Decoder turns reply body chunks into frames. It is not safe for concurrent
// use; one decoder serves one stream.
type Decoder struct {
	log logging.Logger

	buf     string // text after the last line terminator
	partial []byte // incomplete UTF-8 sequence at the end of the last chunk
	offset  int64  // bytes of body validated so far
	done    bool
}

// NewDecoder creates a decoder in its initial state.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{log: logging.Nop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Feed consumes the next chunk of the body and returns the frames completed
// by it, in order. After a Done frame has been produced the decoder ignores
// further input. A *DecodeError is returned if the chunk is not valid UTF-8.
func (d *Decoder) Feed(chunk []byte) ([]Frame, error) {
	if d.done || len(chunk) == 0 {
		return nil, nil
	}

	text, err := d.decode(chunk)
	if err != nil {
		return nil, err
	}

	d.buf += text
	if !strings.Contains(d.buf, lineTerminator) {
		return nil, nil
	}

	lines := strings.Split(d.buf, lineTerminator)
	d.buf = lines[len(lines)-1]

	var frames []Frame
	for _, line := range lines[:len(lines)-1] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		payload, ok := cutDataPrefix(line)
		if !ok {
			d.log.Debug("STREAM | ignored line=%q", line)
			continue
		}

		if payload == DoneSentinel {
			frames = append(frames, DoneFrame())
			d.finish()
			return frames, nil
		}

		f := Interpret(payload)
		frames = append(frames, f)
		if f.Kind == FrameDone {
			d.finish()
			return frames, nil
		}
	}
	return frames, nil
}

// Finish is called once the body is exhausted. Any unterminated line is
// discarded. It returns a *DecodeError when the body ended inside a
// multi-byte character.
func (d *Decoder) Finish() error {
	if d.done {
		return nil
	}
	defer d.finish()

	if d.buf != "" {
		d.log.Debug("STREAM | dropped unterminated tail=%q", d.buf)
	}
	if len(d.partial) > 0 {
		return &DecodeError{Offset: d.offset, Err: ErrTruncatedUTF8}
	}
	return nil
}

// Done reports whether a Done frame has been produced.
func (d *Decoder) Done() bool {
	return d.done
}

// Reset returns the decoder to its initial state for a new stream.
func (d *Decoder) Reset() {
	d.buf = ""
	d.partial = nil
	d.offset = 0
	d.done = false
}

func (d *Decoder) finish() {
	d.done = true
	d.buf = ""
	d.partial = nil
}

// decode validates chunk as UTF-8, holding back an incomplete trailing
// sequence until the next chunk completes it.
func (d *Decoder) decode(chunk []byte) (string, error) {
	src := chunk
	if len(d.partial) > 0 {
		src = make([]byte, 0, len(d.partial)+len(chunk))
		src = append(src, d.partial...)
		src = append(src, chunk...)
	}

	dst := make([]byte, len(src))
	nDst, nSrc, err := encoding.UTF8Validator.Transform(dst, src, false)
	switch {
	case err == nil:
		d.partial = nil
	case errors.Is(err, transform.ErrShortSrc):
		d.partial = append([]byte(nil), src[nSrc:]...)
	default:
		return "", &DecodeError{Offset: d.offset + int64(nSrc), Err: err}
	}

	d.offset += int64(nSrc)
	return string(dst[:nDst]), nil
}

// cutDataPrefix strips "data:" and at most one following space.
func cutDataPrefix(line string) (string, bool) {
	rest, ok := strings.CutPrefix(line, DataPrefix)
	if !ok {
		return "", false
	}
	return strings.TrimPrefix(rest, " "), true
}
