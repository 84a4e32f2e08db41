// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
)

// =============================================================================
// STATS
// =============================================================================

// RecentLimit is how many stats entries the stats screen shows.
const RecentLimit = 20

// StatEntry is one answered question.
type StatEntry struct {
	Question       string `json:"question"`
	Model          string `json:"model"`
	Source         string `json:"source,omitempty"`
	Timestamp      string `json:"timestamp"`
	ResponseTimeMS int64  `json:"response_time_ms,omitempty"`
	Answer         string `json:"answer,omitempty"`
}

// Stats returns the raw /stats log, oldest first.
func (c *Client) Stats(ctx context.Context) ([]StatEntry, error) {
	return c.statsAt(ctx, keyStats, "/stats")
}

// ListStats returns the /list-stats log, oldest first.
func (c *Client) ListStats(ctx context.Context) ([]StatEntry, error) {
	return c.statsAt(ctx, keyListStat, "/list-stats")
}

func (c *Client) statsAt(ctx context.Context, key, path string) ([]StatEntry, error) {
	return cached(c, key, func() ([]StatEntry, error) {
		var entries []StatEntry
		if err := c.getJSON(ctx, path, &entries); err != nil {
			return nil, err
		}
		if entries == nil {
			entries = []StatEntry{}
		}
		return entries, nil
	})
}

// Dedupe drops repeated (question, model) pairs, keeping the first.
func Dedupe(entries []StatEntry) []StatEntry {
	type key struct{ question, model string }
	seen := make(map[key]bool, len(entries))
	out := make([]StatEntry, 0, len(entries))
	for _, e := range entries {
		k := key{e.Question, e.Model}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}

// Recent dedupes entries, takes the last n, and returns them newest first.
// The input is not modified.
func Recent(entries []StatEntry, n int) []StatEntry {
	deduped := Dedupe(entries)
	if n >= 0 && len(deduped) > n {
		deduped = deduped[len(deduped)-n:]
	}
	out := make([]StatEntry, len(deduped))
	for i, e := range deduped {
		out[len(deduped)-1-i] = e
	}
	return out
}
