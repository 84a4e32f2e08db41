// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jeranaias/secureai-tui/internal/stream"
)

// =============================================================================
// PLAIN SINK
// =============================================================================

// Sink writes a stream to plain writers, for commands and pipes.
//
// In live mode (the default) each delta is written the moment it arrives.
// With a formatter the answer is held back and written once, formatted, when
// the stream is Done; an Errored stream still writes what it received.
// Errors go to the status writer, never to out.
type Sink struct {
	out      io.Writer
	status   io.Writer
	format   func(string) string
	progress bool

	mu          sync.Mutex
	wrote       bool
	endsNewline bool
	showing     bool
	final       stream.State
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithStatus sets where errors and progress go (default: out).
func WithStatus(w io.Writer) SinkOption {
	return func(s *Sink) { s.status = w }
}

// WithFormatter buffers the answer and formats it when Done, for example
// with MarkdownRenderer.Render or HighlightFences.
func WithFormatter(fn func(string) string) SinkOption {
	return func(s *Sink) { s.format = fn }
}

// WithProgress shows a one-line indicator on the status writer while a
// buffered answer is in flight. Only meaningful on a terminal.
func WithProgress() SinkOption {
	return func(s *Sink) { s.progress = true }
}

// NewSink returns a sink writing answers to out.
func NewSink(out io.Writer, opts ...SinkOption) *Sink {
	s := &Sink{out: out}
	for _, opt := range opts {
		opt(s)
	}
	if s.status == nil {
		s.status = out
	}
	return s
}

// Handle receives stream events; it satisfies stream.Callback.
func (s *Sink) Handle(ev stream.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := ev.State
	if !st.Status.Terminal() {
		if s.format == nil {
			s.write(ev.Delta)
		} else if s.progress && !s.showing {
			fmt.Fprint(s.status, StatusGlyph(stream.InFlight)+" "+StatusLabel(stream.InFlight))
			s.showing = true
		}
		return
	}

	s.clearProgress()
	s.final = st

	if s.format != nil {
		if st.Status == stream.Done {
			s.write(s.format(st.AccumulatedText))
		} else {
			s.write(st.AccumulatedText)
		}
	} else {
		s.write(ev.Delta)
	}

	if s.wrote && !s.endsNewline {
		fmt.Fprintln(s.out)
	}
	if st.Status == stream.Errored {
		fmt.Fprintln(s.status, st.ErrorText())
	}
}

func (s *Sink) write(text string) {
	if text == "" {
		return
	}
	io.WriteString(s.out, text)
	s.wrote = true
	s.endsNewline = strings.HasSuffix(text, "\n")
}

func (s *Sink) clearProgress() {
	if s.showing {
		fmt.Fprint(s.status, "\r\x1b[K")
		s.showing = false
	}
}

// State returns the terminal state once the stream has ended.
func (s *Sink) State() stream.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.final
}

// Err returns the error of an Errored stream, or nil.
func (s *Sink) Err() error {
	st := s.State()
	if st.Status == stream.Errored {
		return st.Err
	}
	return nil
}
