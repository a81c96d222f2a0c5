// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"io"
)

// DefaultChunkSize is the read size used when NewReader is given size <= 0.
const DefaultChunkSize = 4096

// Reader pulls frames from a reply body. Frames decoded from one read are
// handed out before the next read is issued.
type Reader struct {
	src   io.Reader
	dec   *Decoder
	chunk []byte
	queue []Frame
	err   error
}

// NewReader wraps src, reading up to size bytes at a time.
func NewReader(src io.Reader, size int, opts ...DecoderOption) *Reader {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &Reader{
		src:   src,
		dec:   NewDecoder(opts...),
		chunk: make([]byte, size),
	}
}

// Next returns the next frame. It returns io.EOF after the Done frame or when
// the body ends, a *DecodeError when the body is not valid UTF-8, and any
// read error from the underlying reader.
func (r *Reader) Next() (Frame, error) {
	for len(r.queue) == 0 {
		if r.err != nil {
			return Frame{}, r.err
		}
		if r.dec.Done() {
			r.err = io.EOF
			continue
		}
		r.fill()
	}

	f := r.queue[0]
	r.queue = r.queue[1:]
	return f, nil
}

// fill performs one read and decodes whatever it returned.
func (r *Reader) fill() {
	n, err := r.src.Read(r.chunk)
	if n > 0 {
		frames, derr := r.dec.Feed(r.chunk[:n])
		r.queue = append(r.queue, frames...)
		if derr != nil {
			r.err = derr
			return
		}
	}

	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		if ferr := r.dec.Finish(); ferr != nil {
			r.err = ferr
		} else {
			r.err = io.EOF
		}
	default:
		r.err = err
	}
}
