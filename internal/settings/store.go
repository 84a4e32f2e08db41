// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/jeranaias/secureai-tui/internal/util"
)

// Store persists exactly one Settings record.
//
// Read returns the record with its Version populated. Write stores s and
// returns the stored record with the new Version. When s.Version is non-empty
// and no longer matches, Write must fail with ErrVersionConflict and leave the
// record untouched.
type Store interface {
	Read(ctx context.Context) (Settings, error)
	Write(ctx context.Context, s Settings) (Settings, error)
}

// =============================================================================
// FILE STORE
// =============================================================================

// FileStore keeps the record as indented JSON, the same settings.json the web
// frontend reads. The Version is a digest of the file bytes, so edits made by
// other programs are detected as conflicts too.
type FileStore struct {
	path string
	mu   sync.Mutex // single writer within the process
}

// NewFileStore returns a store backed by path. The file need not exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (f *FileStore) Path() string {
	return f.path
}

// Read implements Store.
func (f *FileStore) Read(ctx context.Context) (Settings, error) {
	if err := ctx.Err(); err != nil {
		return Settings{}, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Settings{}, ErrNotFound
		}
		return Settings{}, fmt.Errorf("read %s: %w", f.path, err)
	}
	return decodeFile(data)
}

func decodeFile(data []byte) (Settings, error) {
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	s.Version = util.ContentToken(data)
	return s, nil
}

// Write implements Store.
func (f *FileStore) Write(ctx context.Context, s Settings) (Settings, error) {
	if err := ctx.Err(); err != nil {
		return Settings{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if s.Version != "" {
		current, err := os.ReadFile(f.path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return Settings{}, ErrVersionConflict
		case err != nil:
			return Settings{}, fmt.Errorf("read %s: %w", f.path, err)
		case util.ContentToken(current) != s.Version:
			return Settings{}, ErrVersionConflict
		}
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return Settings{}, fmt.Errorf("encode settings: %w", err)
	}
	if err := util.AtomicWriteFile(f.path, data, 0600); err != nil {
		return Settings{}, fmt.Errorf("write %s: %w", f.path, err)
	}

	out := s.Clone()
	out.Version = util.ContentToken(data)
	return out, nil
}

// =============================================================================
// MEMORY STORE
// =============================================================================

// MemoryStore keeps the record in memory. Useful for tests and for running
// `secureai serve` without touching disk.
type MemoryStore struct {
	mu      sync.Mutex
	s       *Settings
	version int
	// FailReads makes Read return an error, simulating an unavailable store.
	FailReads bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Read implements Store.
func (m *MemoryStore) Read(ctx context.Context) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailReads {
		return Settings{}, errors.New("memory store: reads disabled")
	}
	if m.s == nil {
		return Settings{}, ErrNotFound
	}
	out := m.s.Clone()
	out.Version = fmt.Sprint(m.version)
	return out, nil
}

// Write implements Store.
func (m *MemoryStore) Write(ctx context.Context, s Settings) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.Version != "" && (m.s == nil || s.Version != fmt.Sprint(m.version)) {
		return Settings{}, ErrVersionConflict
	}
	stored := s.Clone()
	m.s = &stored
	m.version++
	out := stored.Clone()
	out.Version = fmt.Sprint(m.version)
	return out, nil
}
