// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components of a screen.
type Theme struct {
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	Width  int
	Height int

	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Prompt   lipgloss.Style
	Answer   lipgloss.Style
	Muted    lipgloss.Style
	Border   lipgloss.Style

	StatusIdle     lipgloss.Style
	StatusInFlight lipgloss.Style
	StatusDone     lipgloss.Style
	StatusError    lipgloss.Style

	ErrorText lipgloss.Style
	Warning   lipgloss.Style
	Success   lipgloss.Style
	Help      lipgloss.Style
}

// NewTheme builds a theme. mode is "dark", "light" or "auto"; anything else
// is treated as "auto", which asks the terminal.
func NewTheme(mode string) *Theme {
	profile := termenv.ColorProfile()
	t := &Theme{
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,
	}
	switch strings.ToLower(mode) {
	case "dark":
		t.IsDark = true
	case "light":
		t.IsDark = false
	default:
		t.IsDark = termenv.HasDarkBackground()
	}
	lipgloss.SetHasDarkBackground(t.IsDark)

	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Title = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.Subtitle = lipgloss.NewStyle().Foreground(TextSecondary).Italic(true)
	t.Prompt = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.Answer = lipgloss.NewStyle().Foreground(TextPrimary)
	t.Muted = lipgloss.NewStyle().Foreground(TextMuted)
	t.Border = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.StatusIdle = lipgloss.NewStyle().Foreground(TextMuted)
	t.StatusInFlight = lipgloss.NewStyle().Foreground(Cyan)
	t.StatusDone = lipgloss.NewStyle().Foreground(Emerald)
	t.StatusError = lipgloss.NewStyle().Bold(true).Foreground(Rose)

	t.ErrorText = lipgloss.NewStyle().Foreground(Rose)
	t.Warning = lipgloss.NewStyle().Foreground(Amber)
	t.Success = lipgloss.NewStyle().Foreground(Emerald)
	t.Help = lipgloss.NewStyle().Foreground(TextMuted).Background(SurfaceDim)
}

// SetSize updates the dimensions used for layout.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// Colorless reports whether the terminal shows no color at all.
func (t *Theme) Colorless() bool {
	return t.ColorProfile == termenv.Ascii
}
