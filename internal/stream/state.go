// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream consumes a chunked HTTP response body, decodes it to text
// incrementally, and republishes the growing text to a display callback.
//
// A single reader owns each stream, so chunks are appended in arrival order.
// The accumulated text only grows; Done and Errored are terminal.
package stream

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// STATUS
// =============================================================================

// Status is the lifecycle position of one stream.
type Status int

const (
	// Idle means nothing has been submitted yet.
	Idle Status = iota
	// InFlight means the body is being read.
	InFlight
	// Done means the body ended normally.
	Done
	// Errored means the stream failed; any text received is kept.
	Errored
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case InFlight:
		return "in_flight"
	case Done:
		return "done"
	case Errored:
		return "errored"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == Done || s == Errored
}

// =============================================================================
// STATE
// =============================================================================

// State is a snapshot of one stream. Consumers receive copies; only the
// consumer loop produces new ones.
type State struct {
	AccumulatedText string
	Status          Status
	Err             error
}

// ErrorText returns the message to show for an Errored state.
func (s State) ErrorText() string {
	if s.Err == nil {
		return ""
	}
	return UserMessage(s.Err)
}

// Display returns the text a surface should show in a terminal state:
// the accumulated text, or the error message when nothing arrived.
func (s State) Display() string {
	if s.Status == Errored && s.AccumulatedText == "" {
		return s.ErrorText()
	}
	return s.AccumulatedText
}

// accumulator is the single writer of a State.
type accumulator struct {
	text   strings.Builder
	status Status
	err    error
}

func (a *accumulator) append(delta string) {
	a.text.WriteString(delta)
}

func (a *accumulator) finish(err error) {
	if a.status.Terminal() {
		return
	}
	if err != nil {
		a.status = Errored
		a.err = err
		return
	}
	a.status = Done
}

func (a *accumulator) snapshot() State {
	return State{
		AccumulatedText: a.text.String(),
		Status:          a.status,
		Err:             a.err,
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// Fixed user-facing messages.
const (
	EmptyBodyMessage  = "Empty response body"
	NoReaderMessage   = "[Error: No response reader]"
	GenerationMessage = "[Error during generation]"
	ImageFailMessage  = "⚠️ Failed to analyze image."
)

var (
	// ErrNoBody is returned when the response has no streamable body.
	ErrNoBody = errors.New("no response body")
	// ErrBackend is wrapped by errors the backend reports inside the body.
	ErrBackend = errors.New("backend error")
)

// StreamError describes a failed stream.
type StreamError struct {
	// StatusCode is the HTTP status, or 0 when the failure is not an HTTP one.
	StatusCode int
	// Message is the text shown to the user.
	Message string
	// Detail is what the backend said about a non-OK status, for logs.
	Detail string
	Cause  error
}

func (e *StreamError) Error() string {
	if e.Cause != nil && e.Message == "" {
		return e.Cause.Error()
	}
	msg := e.Message
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, msg)
	}
	return msg
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}

// UserMessage returns the message to show for err.
func UserMessage(err error) string {
	var se *StreamError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	if errors.Is(err, ErrNoBody) {
		return EmptyBodyMessage
	}
	return err.Error()
}

// IsNoBody reports whether err means the response had no body.
func IsNoBody(err error) bool {
	return errors.Is(err, ErrNoBody)
}
