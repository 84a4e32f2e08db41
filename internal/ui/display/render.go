// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package display renders stream.State for a terminal.
//
// It has no state of its own. Idle shows a hint, InFlight shows a progress
// indicator next to the text received so far, and Done or Errored show the
// final text with the error underneath. Two surfaces share these rules: the
// bubbletea Model for interactive screens, and Sink for plain command output.
package display

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/secureai-tui/internal/stream"
	"github.com/jeranaias/secureai-tui/internal/ui/styles"
)

// IdleHint is shown before the first submission.
const IdleHint = "Type a prompt and press Enter."

// StatusLabel is the short word shown for a status.
func StatusLabel(s stream.Status) string {
	switch s {
	case stream.InFlight:
		return "Generating..."
	case stream.Done:
		return "Done"
	case stream.Errored:
		return "Error"
	default:
		return "Ready"
	}
}

// StatusGlyph is the shape shown for a status, for terminals without color.
func StatusGlyph(s stream.Status) string {
	switch s {
	case stream.InFlight:
		return styles.GlyphInFlight
	case stream.Done:
		return styles.GlyphDone
	case stream.Errored:
		return styles.GlyphError
	default:
		return styles.GlyphIdle
	}
}

// StatusLine renders the indicator row. spinner replaces the glyph while
// in flight.
func StatusLine(st stream.State, spinner string, th *styles.Theme) string {
	glyph := StatusGlyph(st.Status)
	if st.Status == stream.InFlight && spinner != "" {
		glyph = spinner
	}
	label := StatusLabel(st.Status)

	style := th.StatusIdle
	switch st.Status {
	case stream.InFlight:
		style = th.StatusInFlight
	case stream.Done:
		style = th.StatusDone
	case stream.Errored:
		style = th.StatusError
	}
	return style.Render(glyph + " " + label)
}

// Body renders the text area. render, when non-nil, formats a Done answer
// (markdown); text still arriving is shown as is. width wraps the text when
// positive.
func Body(st stream.State, width int, th *styles.Theme, render func(string) string) string {
	wrap := func(s string) string {
		if width <= 0 {
			return s
		}
		return lipgloss.NewStyle().Width(width).Render(s)
	}

	switch st.Status {
	case stream.Idle:
		return th.Muted.Render(IdleHint)
	case stream.InFlight:
		return wrap(st.AccumulatedText)
	case stream.Done:
		if render != nil {
			return strings.TrimRight(render(st.AccumulatedText), "\n")
		}
		return wrap(st.AccumulatedText)
	}

	// Errored: keep whatever arrived, then the error.
	msg := th.ErrorText.Render(wrap(st.ErrorText()))
	if st.AccumulatedText == "" {
		return msg
	}
	return wrap(st.AccumulatedText) + "\n\n" + msg
}
