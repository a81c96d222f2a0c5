// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding"

	"github.com/jeranaias/streamchat/internal/logging"
)

// feedAll feeds chunks in order and collects every frame.
func feedAll(t *testing.T, d *Decoder, chunks ...string) []Frame {
	t.Helper()
	var out []Frame
	for _, c := range chunks {
		frames, err := d.Feed([]byte(c))
		require.NoError(t, err)
		out = append(out, frames...)
	}
	require.NoError(t, d.Finish())
	return out
}

// splitEvery cuts s into pieces of n bytes.
func splitEvery(s string, n int) []string {
	var parts []string
	for len(s) > n {
		parts = append(parts, s[:n])
		s = s[n:]
	}
	return append(parts, s)
}

// =============================================================================
// FRAMING
// =============================================================================

func TestDecoder_SeparateChunks(t *testing.T) {
	got := feedAll(t, NewDecoder(), "data: hello\n", "data: [DONE]\n")
	assert.Equal(t, []Frame{ContentFrame("hello"), DoneFrame()}, got)
}

func TestDecoder_LineSplitAcrossChunks(t *testing.T) {
	got := feedAll(t, NewDecoder(), "data: hel", "lo\ndata: [DONE]\n")
	assert.Equal(t, []Frame{ContentFrame("hello"), DoneFrame()}, got)
}

func TestDecoder_PrefixVariants(t *testing.T) {
	got := feedAll(t, NewDecoder(),
		"data: one\n",
		"data:two\n",
		"data:  three\n", // only one space is part of the prefix
	)
	assert.Equal(t, []Frame{
		ContentFrame("one"),
		ContentFrame("two"),
		ContentFrame(" three"),
	}, got)
}

func TestDecoder_SkipsBlankAndIgnoresNonDataLines(t *testing.T) {
	var logBuf bytes.Buffer
	d := NewDecoder(WithDecoderLogger(logging.New(&logBuf, logging.LevelDebug)))

	got := feedAll(t, d,
		"\n\n   \r\n",
		": keepalive\n",
		"event: message\n",
		"id: 7\n",
		"stray words\n",
		"DATA: wrong case\n",
		"data: kept\n",
	)

	assert.Equal(t, []Frame{ContentFrame("kept")}, got)
	assert.Contains(t, logBuf.String(), `STREAM | ignored line="stray words"`)
}

func TestDecoder_CRLFLines(t *testing.T) {
	got := feedAll(t, NewDecoder(), "data: a\r\ndata: b\r\n")
	assert.Equal(t, []Frame{ContentFrame("a"), ContentFrame("b")}, got)
}

func TestDecoder_DoneStopsChunk(t *testing.T) {
	d := NewDecoder()
	frames, err := d.Feed([]byte("data: a\ndata: [DONE]\ndata: after\n"))
	require.NoError(t, err)
	assert.Equal(t, []Frame{ContentFrame("a"), DoneFrame()}, frames)
	assert.True(t, d.Done())

	frames, err = d.Feed([]byte("data: late\n"))
	require.NoError(t, err)
	assert.Empty(t, frames)
}

func TestDecoder_TypedDoneLatches(t *testing.T) {
	d := NewDecoder()
	frames, err := d.Feed([]byte(`data: {"type":"done"}` + "\ndata: x\n"))
	require.NoError(t, err)
	assert.Equal(t, []Frame{DoneFrame()}, frames)
	assert.True(t, d.Done())
}

func TestDecoder_UnterminatedTailDropped(t *testing.T) {
	got := feedAll(t, NewDecoder(), "data: a\ndata: no newline")
	assert.Equal(t, []Frame{ContentFrame("a")}, got)
}

func TestDecoder_MixedPayloads(t *testing.T) {
	body := `data: {"type":"content","data":"Hel"}` + "\n" +
		`data: {"choices":[{"delta":{"content":"lo"}}]}` + "\n" +
		"data: , world\n" +
		`data: {"type":"error","data":"boom"}` + "\n"

	got := feedAll(t, NewDecoder(), body)
	assert.Equal(t, []Frame{
		ContentFrame("Hel"),
		ContentFrame("lo"),
		ContentFrame(", world"),
		ErrorFrame("boom"),
	}, got)
}

func TestDecoder_ScalarPayloadsKeptVerbatim(t *testing.T) {
	body := "data: \"hi\"\n" +
		"data: 42\n" +
		"data: null\n"

	got := feedAll(t, NewDecoder(), body)
	assert.Equal(t, []Frame{
		ContentFrame(`"hi"`),
		ContentFrame("42"),
		ContentFrame("null"),
	}, got)
}

func TestDecoder_ChunkBoundaryIndependence(t *testing.T) {
	body := `data: {"type":"content","data":"naïve "}` + "\n" +
		"data: café ☕ 日本\n" +
		"\n" +
		"event: ping\n" +
		`data: {"content":"🚀 done"}` + "\n" +
		"data: [DONE]\n"

	want := feedAll(t, NewDecoder(), body)
	require.Len(t, want, 4)

	for size := 1; size <= len(body); size++ {
		got := feedAll(t, NewDecoder(), splitEvery(body, size)...)
		if !assert.Equal(t, want, got, "chunk size %d", size) {
			return
		}
	}
}

func TestDecoder_AccumulatedTextIsConcatenation(t *testing.T) {
	deltas := []string{"The ", "quick ", "brown ", "føx ", "", "jumps"}
	var body strings.Builder
	for _, d := range deltas {
		body.WriteString(`data: {"type":"content","data":"` + d + `"}` + "\n")
	}
	body.WriteString("data: [DONE]\n")

	for _, size := range []int{1, 2, 3, 7, 64, body.Len()} {
		var acc strings.Builder
		for _, f := range feedAll(t, NewDecoder(), splitEvery(body.String(), size)...) {
			if f.Kind == FrameContent {
				acc.WriteString(f.Text)
			}
		}
		assert.Equal(t, strings.Join(deltas, ""), acc.String(), "chunk size %d", size)
	}
}

// =============================================================================
// UTF-8 HANDLING
// =============================================================================

func TestDecoder_MultibyteSplitAcrossChunks(t *testing.T) {
	euro := []byte("€") // 3 bytes
	d := NewDecoder()

	frames, err := d.Feed(append([]byte("data: "), euro[0]))
	require.NoError(t, err)
	assert.Empty(t, frames)

	frames, err = d.Feed(euro[1:2])
	require.NoError(t, err)
	assert.Empty(t, frames)

	frames, err = d.Feed(append(euro[2:], '\n'))
	require.NoError(t, err)
	assert.Equal(t, []Frame{ContentFrame("€")}, frames)
	require.NoError(t, d.Finish())
}

func TestDecoder_InvalidUTF8(t *testing.T) {
	d := NewDecoder()
	_, err := d.Feed([]byte("data: ok\n"))
	require.NoError(t, err)

	_, err = d.Feed([]byte{'d', 'a', 0xff, '\n'})
	require.Error(t, err)

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, int64(len("data: ok\n")+2), de.Offset)
	assert.True(t, errors.Is(err, encoding.ErrInvalidUTF8))
}

func TestDecoder_TruncatedUTF8AtEOF(t *testing.T) {
	d := NewDecoder()
	_, err := d.Feed([]byte{'d', 0xe2, 0x82})
	require.NoError(t, err)

	err = d.Finish()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTruncatedUTF8))
}

func TestDecoder_Reset(t *testing.T) {
	d := NewDecoder()
	_, _ = d.Feed([]byte("data: [DONE]\n"))
	require.True(t, d.Done())

	d.Reset()
	assert.False(t, d.Done())
	got := feedAll(t, d, "data: again\n")
	assert.Equal(t, []Frame{ContentFrame("again")}, got)
}
