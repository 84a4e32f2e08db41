// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server serves the shared settings record over HTTP so the web
// frontend and other clients edit the same allow-lists.
//
// # Endpoints
//
//   - GET  /api/settings - current record; the fallback when unreadable
//   - POST /api/settings - overwrite the record
//   - GET  /health       - liveness and uptime
//
// The record's version travels in the ETag response header. A POST that
// carries If-Match only succeeds if nobody saved in between; otherwise it
// gets 409 Conflict.
//
// # Middleware
//
// Requests pass through panic recovery, security headers, request logging,
// CORS and a per-client token bucket rate limiter, in that order.
//
// # Usage
//
//	gate := settings.NewGate(settings.NewFileStore(path), nil)
//	srv := server.NewServer(gate, server.ConfigFrom(cfg.Server))
//	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
//		log.Fatal(err)
//	}
package server
