// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Table prints aligned columns. Widths are measured in terminal columns,
// so CJK file names line up; cells wider than MaxWidth are truncated.
type Table struct {
	Headers  []string
	Rows     [][]string
	MaxWidth int // per cell; 0 means 40
}

// NewTable creates a table with the given headers.
func NewTable(headers ...string) *Table {
	return &Table{Headers: headers}
}

// Add appends a row. Missing cells are blank.
func (t *Table) Add(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

func (t *Table) cell(s string) string {
	limit := t.MaxWidth
	if limit <= 0 {
		limit = 40
	}
	s = strings.ReplaceAll(s, "\n", " ")
	if runewidth.StringWidth(s) <= limit {
		return s
	}
	return runewidth.Truncate(s, limit, "...")
}

// Render writes the table to w.
func (t *Table) Render(w io.Writer) {
	cols := len(t.Headers)
	for _, r := range t.Rows {
		cols = max(cols, len(r))
	}
	if cols == 0 {
		return
	}

	widths := make([]int, cols)
	grid := make([][]string, 0, len(t.Rows)+1)
	for _, r := range append([][]string{t.Headers}, t.Rows...) {
		row := make([]string, cols)
		for i := range row {
			if i < len(r) {
				row[i] = t.cell(r[i])
			}
			widths[i] = max(widths[i], runewidth.StringWidth(row[i]))
		}
		grid = append(grid, row)
	}

	for n, row := range grid {
		var b strings.Builder
		for i, c := range row {
			if i == cols-1 {
				b.WriteString(c)
				break
			}
			b.WriteString(runewidth.FillRight(c, widths[i]))
			b.WriteString("  ")
		}
		line := strings.TrimRight(b.String(), " ")
		if n == 0 && len(t.Headers) > 0 {
			fmt.Fprintln(w, SectionStyle.Render(line))
			continue
		}
		fmt.Fprintln(w, line)
	}
}
