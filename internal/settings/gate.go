// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

// =============================================================================
// GATE
// =============================================================================

// Gate is the settings service handed to every screen. It is the only
// component that talks to the Store.
type Gate struct {
	store  Store
	logger *log.Logger

	mu      sync.RWMutex
	current Settings
	loaded  bool

	subMu sync.Mutex
	subs  map[int]chan Settings
	next  int
}

// NewGate wraps store. A nil logger uses the standard logger.
func NewGate(store Store, logger *log.Logger) *Gate {
	if logger == nil {
		logger = log.Default()
	}
	return &Gate{
		store:  store,
		logger: logger,
		subs:   make(map[int]chan Settings),
	}
}

// Store returns the underlying store.
func (g *Gate) Store() Store {
	return g.store
}

// Load reads the record. It never fails: if the store is empty, unreadable,
// or holds garbage, the fixed Fallback() is returned and a warning logged.
func (g *Gate) Load(ctx context.Context) Settings {
	s, err := g.store.Read(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			g.logger.Printf("SETTINGS_DEFAULTS | reason=not_found")
		} else {
			g.logger.Printf("SETTINGS_FALLBACK | error=%v", err)
		}
		s = Fallback()
	}

	g.mu.Lock()
	g.current = s.Clone()
	g.loaded = true
	g.mu.Unlock()

	return s
}

// Read is the strict form of Load, for read-modify-write callers. A missing
// record yields Fallback() with an empty Version, so the write that follows
// creates it. Any other store error is returned and the cached record is left
// alone, so an unreadable store is never overwritten with defaults.
func (g *Gate) Read(ctx context.Context) (Settings, error) {
	s, err := g.store.Read(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		s = Fallback()
	case err != nil:
		g.logger.Printf("SETTINGS_READ_FAILED | error=%v", err)
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	g.mu.Lock()
	g.current = s.Clone()
	g.loaded = true
	g.mu.Unlock()

	return s, nil
}

// Current returns the last loaded or saved record without touching the
// store. Before the first Load it is Fallback().
func (g *Gate) Current() Settings {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.loaded {
		return Fallback()
	}
	return g.current.Clone()
}

// Save normalizes, validates and overwrites the whole record. A non-empty
// s.Version makes the write conditional on nobody having saved since.
func (g *Gate) Save(ctx context.Context, s Settings) (Settings, error) {
	s = s.Normalize()
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}

	stored, err := g.store.Write(ctx, s)
	if err != nil {
		if IsConflict(err) {
			g.logger.Printf("SETTINGS_CONFLICT | version=%s", s.Version)
		} else {
			g.logger.Printf("SETTINGS_SAVE_FAILED | error=%v", err)
		}
		return Settings{}, err
	}

	g.mu.Lock()
	g.current = stored.Clone()
	g.loaded = true
	g.mu.Unlock()

	g.logger.Printf("SETTINGS_SAVED | version=%s text_default=%s image_default=%s",
		stored.Version, stored.DefaultTextModel, stored.DefaultImageModel)
	g.publish(stored)
	return stored, nil
}

// Update reads the current record, applies fn, and saves it conditionally on
// the version that was read. It refuses to write when the store cannot be
// read.
func (g *Gate) Update(ctx context.Context, fn func(*Settings)) (Settings, error) {
	s, err := g.Read(ctx)
	if err != nil {
		return Settings{}, err
	}
	fn(&s)
	return g.Save(ctx, s)
}

// Reload re-reads the store and notifies subscribers if the content changed.
func (g *Gate) Reload(ctx context.Context) Settings {
	before := g.Current()
	wasLoaded := g.isLoaded()
	after := g.Load(ctx)
	if !wasLoaded || !before.Equal(after) || before.Version != after.Version {
		g.publish(after)
	}
	return after
}

func (g *Gate) isLoaded() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.loaded
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe returns a channel that receives every saved or reloaded record.
// Slow receivers miss intermediate values; only the latest is kept.
// The returned func unsubscribes and closes the channel.
func (g *Gate) Subscribe() (<-chan Settings, func()) {
	ch := make(chan Settings, 1)

	g.subMu.Lock()
	id := g.next
	g.next++
	g.subs[id] = ch
	g.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			g.subMu.Lock()
			delete(g.subs, id)
			g.subMu.Unlock()
			close(ch)
		})
	}
}

func (g *Gate) publish(s Settings) {
	g.subMu.Lock()
	defer g.subMu.Unlock()
	for _, ch := range g.subs {
		// Drop a stale pending value so the newest always lands.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s.Clone():
		default:
		}
	}
}
