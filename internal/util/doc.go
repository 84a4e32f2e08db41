// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across the secureai client.
//
// # Key Functions
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync and rename
//   - ContentToken: stable hex digest used as a file version token
//
// Display Helpers:
//   - TruncateWidth: display-width aware truncation (CJK safe)
//   - PadWidth: right-pad a cell to a display width
//   - FormatBytes / FormatKB: human-readable sizes for listings
//
// Naming:
//   - Slugify: URL-safe project slugs ("Risk Audit" -> "risk-audit")
//
// # Usage
//
//	// Persist the settings record without ever leaving a torn file behind
//	err := util.AtomicWriteFile(path, data, 0600)
//
//	// Fit a filename into a 32-column table cell
//	cell := util.PadWidth(util.TruncateWidth(name, 32), 32)
package util
