// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package display

import (
	"bytes"
	"regexp"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/glamour"
)

// =============================================================================
// MARKDOWN
// =============================================================================

// MarkdownRenderer renders finished answers with glamour. It falls back to
// the raw text whenever rendering fails.
type MarkdownRenderer struct {
	mu sync.Mutex
	r  *glamour.TermRenderer
}

// NewMarkdownRenderer returns a renderer wrapping at width. style is
// "dark", "light", "notty" or "auto".
func NewMarkdownRenderer(width int, style string) *MarkdownRenderer {
	if width <= 0 {
		width = 80
	}
	styleOpt := glamour.WithAutoStyle()
	if style != "" && style != "auto" {
		styleOpt = glamour.WithStandardStyle(style)
	}
	r, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return &MarkdownRenderer{}
	}
	return &MarkdownRenderer{r: r}
}

// Render formats md for the terminal.
func (m *MarkdownRenderer) Render(md string) string {
	if m == nil || m.r == nil || md == "" {
		return md
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out, err := m.r.Render(md)
	if err != nil {
		return md
	}
	return out
}

// =============================================================================
// CODE HIGHLIGHTING
// =============================================================================

// Highlight colors code for a 256-color terminal. An unknown language is
// guessed from the code itself.
func Highlight(code, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}

var fencePattern = regexp.MustCompile("(?s)```([A-Za-z0-9_+-]*)\n(.*?)\n```")

// HighlightFences colors the body of every fenced code block in text and
// leaves the prose and the fence lines alone.
func HighlightFences(text string) string {
	return fencePattern.ReplaceAllStringFunc(text, func(block string) string {
		m := fencePattern.FindStringSubmatch(block)
		lang, code := m[1], m[2]
		return "```" + lang + "\n" + strings.TrimRight(Highlight(code, lang), "\n") + "\n```"
	})
}
