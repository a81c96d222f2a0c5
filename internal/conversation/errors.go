// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"errors"
	"strings"

	"github.com/jeranaias/streamchat/internal/model"
)

var (
	// ErrBusy is returned by Submit while another exchange is in flight.
	ErrBusy = errors.New("an exchange is already in progress")

	// ErrEmptyInput is returned by Submit for blank input.
	ErrEmptyInput = errors.New("message is empty")

	// ErrNoBody means the transport accepted the request but returned no
	// readable reply body.
	ErrNoBody = errors.New("no response body")

	errInterrupted = errors.New("exchange interrupted")
)

// RemoteError is a failure reported by the assistant inside the stream.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return "remote error"
	}
	return e.Message
}

// failureText builds the user-facing text that replaces a failed reply.
func failureText(err error) string {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return model.ErrorText(remote.Message)
	}
	if err == nil {
		return model.ErrorText("")
	}
	return model.ErrorText(strings.TrimSuffix(err.Error(), "."))
}
