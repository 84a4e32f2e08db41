// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"log"
	"net/http"
	"sync"
)

// =============================================================================
// SESSION (ONE IN-FLIGHT SUBMISSION PER SCREEN)
// =============================================================================

// Session owns the in-flight submission of one screen. Starting a new
// submission cancels the previous one, so a screen never has two streams
// appending to its display.
//
// Session must be used as a pointer; it holds a mutex.
type Session struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
	logger *log.Logger
}

// NewSession returns an idle session. A nil logger uses the standard logger.
func NewSession(logger *log.Logger) *Session {
	if logger == nil {
		logger = log.Default()
	}
	return &Session{logger: logger}
}

// Begin cancels any in-flight submission and returns the context for a new
// one along with its ticket. Call End with the ticket when it finishes.
func (s *Session) Begin(parent context.Context) (context.Context, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.logger.Printf("STREAM_SUPERSEDED | ticket=%d", s.gen)
		s.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.gen++
	return ctx, s.gen
}

// End releases the context of ticket if it is still the current one.
func (s *Session) End(ticket uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket == s.gen && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Cancel abandons the in-flight submission, if any.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Current reports whether ticket belongs to the newest submission. Events
// from a superseded ticket should be dropped by the display.
func (s *Session) Current(ticket uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ticket == s.gen
}

// Busy reports whether a submission is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Request performs a request. Implemented by the backend client.
type Request func(ctx context.Context) (*http.Response, error)

// Run begins a submission, performs req, and consumes the response. A
// transport error before any response becomes an Errored state carrying
// the failure message.
func (s *Session) Run(parent context.Context, req Request, cb Callback, opts ...Option) State {
	ctx, ticket := s.Begin(parent)
	defer s.End(ticket)

	guarded := func(ev Event) {
		if cb != nil && s.Current(ticket) {
			cb(ev)
		}
	}

	resp, err := req(ctx)
	var st State
	if err != nil {
		st = Failed(ctx, err, guarded, opts...)
	} else {
		st = Consume(ctx, resp, guarded, opts...)
	}
	if st.Status == Errored && !IsCanceled(st.Err) {
		s.logger.Printf("STREAM_FAILED | ticket=%d error=%v", ticket, st.Err)
	}
	return st
}

// Failed reports a submission that never produced a response.
func Failed(ctx context.Context, err error, cb Callback, opts ...Option) State {
	o := newOptions(opts)
	acc := &accumulator{status: InFlight}
	if cb != nil {
		cb(Event{State: acc.snapshot()})
	}
	if ctx.Err() != nil {
		acc.finish(canceled(ctx.Err()))
	} else {
		acc.finish(&StreamError{Message: o.failMessage, Cause: err})
	}
	st := acc.snapshot()
	if cb != nil {
		cb(Event{State: st})
	}
	return st
}

// =============================================================================
// CHANNEL FORM
// =============================================================================

// Stream runs req like Run but in its own goroutine, delivering events on
// the returned channel. The channel is closed after the last event. Events
// are dropped once parent is done, so a caller that stops reading must
// cancel parent.
func (s *Session) Stream(parent context.Context, req Request, opts ...Option) <-chan Event {
	ch := make(chan Event, 16)
	go func() {
		defer close(ch)
		s.Run(parent, req, func(ev Event) {
			select {
			case ch <- ev:
			case <-parent.Done():
			}
		}, opts...)
	}()
	return ch
}
