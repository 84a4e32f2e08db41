// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and every command of secureai.
//
// # Key Types
//
//   - Command: enumeration of the available commands
//   - Args: parsed global flags plus the raw command arguments
//   - App: the dependencies a command runs against (config, settings gate,
//     backend client, output writers)
//
// # Usage
//
//	cmd, args := cli.Parse()
//	app := cli.NewApp(cfg, gate, client)
//	if err := app.Run(ctx, cmd, args); err != nil {
//	    os.Exit(cli.GetExitCode(err))
//	}
//
// # Commands Overview
//
// Generation commands stream their answer as it arrives:
//   - ask, image, step
//   - chat: liner REPL over /ask
//   - tui: bubbletea screen over /ask
//
// Management commands:
//   - upload, files, delete, rebuild-index
//   - projects, project
//   - instructions, stats
//   - settings, config, serve
//
// Listing commands support --json for machine-readable output.
package cli
