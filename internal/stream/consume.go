// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"regexp"
	"strings"
)

// =============================================================================
// CONSUMER
// =============================================================================

// readSize is the read buffer per body Read. Chunk boundaries are whatever
// the transport delivers; the decoder makes them irrelevant to the output.
const readSize = 4096

// maxJSONBody bounds a non-streamed JSON answer.
const maxJSONBody = 8 << 20

// maxErrorBody bounds the body kept as detail for a non-OK status.
const maxErrorBody = 4 << 10

// PendingAnswer is what /ask returns while the same question is already
// being answered.
const PendingAnswer = "Loading..."

// Event is delivered to a Callback after every state change.
type Event struct {
	// Delta is the text appended by this event, empty for transitions.
	Delta string
	State State
}

// Callback receives events in order from the single consumer goroutine.
type Callback func(Event)

// Option configures Consume.
type Option func(*options)

type options struct {
	failMessage   string
	noBodyMessage string
}

func newOptions(opts []Option) options {
	o := options{failMessage: GenerationMessage, noBodyMessage: EmptyBodyMessage}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithFailureMessage sets the fixed message shown when the transport fails
// or the backend answers with a non-OK status.
func WithFailureMessage(msg string) Option {
	return func(o *options) { o.failMessage = msg }
}

// WithNoBodyMessage sets the message shown when the response has no body
// to read (default EmptyBodyMessage).
func WithNoBodyMessage(msg string) Option {
	return func(o *options) { o.noBodyMessage = msg }
}

// Answer is the JSON form of a non-streamed /ask reply.
type Answer struct {
	Model  string `json:"model"`
	Answer string `json:"answer"`
	TimeMS int64  `json:"time_ms"`
}

// trailerPattern matches the marker the backend appends when generation
// fails after the response has started.
var trailerPattern = regexp.MustCompile(`\n\[Error: ([^\]\n]*)\]\s*$`)

// Consume reads resp to completion, calling cb after every appended chunk,
// and returns the terminal State. The body is always closed.
//
// Cancelling ctx closes the body and the loop stops at the next chunk
// boundary; the result is Errored with the text received so far.
func Consume(ctx context.Context, resp *http.Response, cb Callback, opts ...Option) State {
	o := newOptions(opts)
	if cb == nil {
		cb = func(Event) {}
	}

	acc := &accumulator{status: InFlight}
	cb(Event{State: acc.snapshot()})

	if resp != nil && resp.StatusCode >= http.StatusBadRequest {
		return consumeStatusError(ctx, resp, acc, cb, o)
	}
	if resp == nil || resp.Body == nil || resp.Body == http.NoBody {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		acc.finish(&StreamError{Message: o.noBodyMessage, Cause: ErrNoBody})
		return emitFinal(acc, cb)
	}
	defer resp.Body.Close()

	// Unblocks a Read waiting on the network when ctx ends.
	stop := context.AfterFunc(ctx, func() { resp.Body.Close() })
	defer stop()

	if isJSON(resp.Header.Get("Content-Type")) {
		return consumeJSON(ctx, resp, acc, cb, o)
	}

	dec := NewDecoder(resp.Header.Get("Content-Type"))
	buf := make([]byte, readSize)

	for {
		if err := ctx.Err(); err != nil {
			acc.finish(canceled(err))
			return emitFinal(acc, cb)
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			delta, err := dec.Decode(buf[:n])
			if delta != "" {
				acc.append(delta)
				cb(Event{Delta: delta, State: acc.snapshot()})
			}
			if err != nil {
				acc.finish(&StreamError{Message: o.failMessage, Cause: err})
				return emitFinal(acc, cb)
			}
		}

		if readErr == nil {
			continue
		}
		if ctx.Err() != nil {
			acc.finish(canceled(ctx.Err()))
			return emitFinal(acc, cb)
		}
		if !errors.Is(readErr, io.EOF) {
			acc.finish(&StreamError{Message: o.failMessage, Cause: readErr})
			return emitFinal(acc, cb)
		}
		break
	}

	if tail, _ := dec.Flush(); tail != "" {
		acc.append(tail)
		cb(Event{Delta: tail, State: acc.snapshot()})
	}

	acc.finish(endError(acc.text.String()))
	return emitFinal(acc, cb)
}

// consumeStatusError ends a non-OK response. The body is backend detail,
// not answer text: it is kept on the error and the screen's fixed message
// is what the user sees.
func consumeStatusError(ctx context.Context, resp *http.Response, acc *accumulator, cb Callback, o options) State {
	var data []byte
	if resp.Body != nil {
		defer resp.Body.Close()
		stop := context.AfterFunc(ctx, func() { resp.Body.Close() })
		defer stop()

		var err error
		data, err = io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if err != nil && ctx.Err() != nil {
			acc.finish(canceled(ctx.Err()))
			return emitFinal(acc, cb)
		}
	}

	detail := string(data)
	var ans Answer
	if isJSON(resp.Header.Get("Content-Type")) && json.Unmarshal(data, &ans) == nil && ans.Answer != "" {
		detail = ans.Answer
	}
	acc.finish(&StreamError{
		StatusCode: resp.StatusCode,
		Message:    o.failMessage,
		Detail:     strings.TrimSpace(detail),
		Cause:      ErrBackend,
	})
	return emitFinal(acc, cb)
}

func consumeJSON(ctx context.Context, resp *http.Response, acc *accumulator, cb Callback, o options) State {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxJSONBody))
	if err != nil {
		if ctx.Err() != nil {
			acc.finish(canceled(ctx.Err()))
		} else {
			acc.finish(&StreamError{Message: o.failMessage, Cause: err})
		}
		return emitFinal(acc, cb)
	}

	var ans Answer
	text := string(data)
	if json.Unmarshal(data, &ans) == nil && ans.Answer != "" {
		text = ans.Answer
	}
	if text != "" {
		acc.append(text)
		cb(Event{Delta: text, State: acc.snapshot()})
	}
	acc.finish(nil)
	return emitFinal(acc, cb)
}

// endError classifies a successful body that ended normally.
func endError(text string) error {
	if m := trailerPattern.FindStringSubmatch(text); m != nil {
		return &StreamError{Message: "Error: " + m[1], Cause: ErrBackend}
	}
	return nil
}

func emitFinal(acc *accumulator, cb Callback) State {
	st := acc.snapshot()
	cb(Event{State: st})
	return st
}

// CanceledMessage is shown when the user abandons a stream.
const CanceledMessage = "Request cancelled."

func canceled(err error) error {
	return &StreamError{Message: CanceledMessage, Cause: err}
}

// IsCanceled reports whether the stream ended because its context did.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// IsPending reports whether s is the placeholder /ask returns while the same
// question is still being answered elsewhere.
func (s State) IsPending() bool {
	return s.Status == Done && s.AccumulatedText == PendingAnswer
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
