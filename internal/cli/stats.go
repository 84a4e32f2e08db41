// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	"github.com/jeranaias/secureai-tui/internal/backend"
)

// runStats shows the most recent distinct questions, newest first.
// --list reads /list-stats instead of /stats; --raw prints the log as the
// backend returns it.
func (a *App) runStats(ctx context.Context, args Args) error {
	p := NewArgParser(args.Raw, "list", "raw")
	limit := p.FlagIntOrDefault("limit", backend.RecentLimit)

	load := a.Client.Stats
	if p.BoolFlag("list") {
		load = a.Client.ListStats
	}
	entries, err := load(ctx)
	if err != nil {
		return err
	}
	if !p.BoolFlag("raw") {
		entries = backend.Recent(entries, limit)
	}

	if args.JSON {
		return a.printJSON("stats", entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.Stdout, DimStyle.Render("No questions asked yet."))
		return nil
	}

	t := NewTable("WHEN", "MODEL", "SOURCE", "QUESTION")
	t.MaxWidth = max(GetTerminalWidth()/2, 30)
	for _, e := range entries {
		t.Add(e.Timestamp, e.Model, e.Source, e.Question)
	}
	t.Render(a.Stdout)
	return nil
}
