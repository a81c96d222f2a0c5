// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Recognized values of the "type" field.
const (
	typeContent = "content"
	typeError   = "error"
	typeDone    = "done"
)

// Interpret classifies one payload (the text after the data: prefix).
//
// A JSON object with type "content", "error" or "done" maps to the matching
// frame, taking its text from the "data" field. Any other object is searched
// for text in the order content, delta.content, choices[0].delta.content,
// text; an object with none of them yields an empty content frame. A payload
// that is not a JSON object is returned verbatim as content.
func Interpret(payload string) Frame {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &obj); err != nil || obj == nil {
		return ContentFrame(payload)
	}

	var kind string
	if raw, ok := obj["type"]; ok {
		_ = json.Unmarshal(raw, &kind)
	}

	switch kind {
	case typeContent:
		return ContentFrame(rawText(obj["data"]))
	case typeError:
		return ErrorFrame(rawText(obj["data"]))
	case typeDone:
		return DoneFrame()
	}

	if s, ok := findText(obj); ok {
		return ContentFrame(s)
	}
	return ContentFrame("")
}

// findText looks for a text delta in the shapes other producers use.
func findText(obj map[string]json.RawMessage) (string, bool) {
	if s, ok := stringField(obj, "content"); ok {
		return s, true
	}

	var delta struct {
		Content *string `json:"content"`
	}
	if raw, ok := obj["delta"]; ok && json.Unmarshal(raw, &delta) == nil && delta.Content != nil {
		return *delta.Content, true
	}

	var choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	}
	if raw, ok := obj["choices"]; ok && json.Unmarshal(raw, &choices) == nil &&
		len(choices) > 0 && choices[0].Delta.Content != nil {
		return *choices[0].Delta.Content, true
	}

	return stringField(obj, "text")
}

// stringField returns obj[key] when it is a JSON string.
func stringField(obj map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := obj[key]
	if !ok {
		return "", false
	}
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil || s == nil {
		return "", false
	}
	return *s, true
}

// rawText renders a data field as text. Strings are unquoted, null and
// missing become "", anything else is kept as compact JSON.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return trimmed
	}
	return buf.String()
}
