// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite" // pure-Go sqlite driver
)

// =============================================================================
// SQLITE STORE
// =============================================================================

// sqliteSchema holds a single-row table. The version column is bumped on every
// write and is the compare-and-swap token.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS settings (
    id         INTEGER PRIMARY KEY CHECK (id = 1),
    data       TEXT    NOT NULL,
    version    INTEGER NOT NULL,
    updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
);
`

// SQLiteStore keeps the record in a sqlite database so several processes can
// share it with real compare-and-swap semantics.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLiteStore opens (creating if necessary) the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create settings directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings database: %w", err)
	}

	// sqlite allows one writer; one connection also keeps :memory: coherent.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Read implements Store.
func (s *SQLiteStore) Read(ctx context.Context) (Settings, error) {
	var (
		data    string
		version int64
	)
	err := s.db.QueryRowContext(ctx, "SELECT data, version FROM settings WHERE id = 1").Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return Settings{}, ErrNotFound
	}
	if err != nil {
		return Settings{}, fmt.Errorf("query settings: %w", err)
	}

	var out Settings
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	out.Version = strconv.FormatInt(version, 10)
	return out, nil
}

// Write implements Store.
func (s *SQLiteStore) Write(ctx context.Context, in Settings) (Settings, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return Settings{}, fmt.Errorf("encode settings: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Settings{}, err
	}
	defer tx.Rollback()

	var current int64
	err = tx.QueryRowContext(ctx, "SELECT version FROM settings WHERE id = 1").Scan(&current)
	exists := true
	if errors.Is(err, sql.ErrNoRows) {
		exists = false
	} else if err != nil {
		return Settings{}, fmt.Errorf("query settings version: %w", err)
	}

	if in.Version != "" {
		want, perr := strconv.ParseInt(in.Version, 10, 64)
		if perr != nil || !exists || want != current {
			return Settings{}, ErrVersionConflict
		}
	}

	next := current + 1
	if exists {
		res, err := tx.ExecContext(ctx,
			"UPDATE settings SET data = ?, version = ?, updated_at = strftime('%s','now') WHERE id = 1 AND version = ?",
			string(data), next, current)
		if err != nil {
			return Settings{}, fmt.Errorf("update settings: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return Settings{}, ErrVersionConflict
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO settings (id, data, version) VALUES (1, ?, ?)", string(data), next); err != nil {
			return Settings{}, fmt.Errorf("insert settings: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Settings{}, fmt.Errorf("commit settings: %w", err)
	}

	out := in.Clone()
	out.Version = strconv.FormatInt(next, 10)
	return out, nil
}
