// secureai - Terminal client for the SecureAI document assistant.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeranaias/secureai-tui/internal/backend"
	"github.com/jeranaias/secureai-tui/internal/cli"
	"github.com/jeranaias/secureai-tui/internal/config"
	"github.com/jeranaias/secureai-tui/internal/settings"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	os.Exit(run())
}

func run() int {
	cmd, args := cli.Parse()

	// Request events go to stderr only with --verbose; commands own stdout.
	logger := log.New(io.Discard, "", log.LstdFlags)
	if args.Verbose {
		logger.SetOutput(os.Stderr)
	}

	if err := config.LoadDotEnv(); err != nil {
		logger.Printf("DOTENV_FAILED | error=%v", err)
	}
	cfg, err := loadConfig(args)
	switch {
	case cfg == nil && cmd == cli.CmdConfig:
		// A broken config must still be fixable with `config set`.
		fmt.Fprintf(os.Stderr, "warning: %v; using defaults\n", err)
		cfg = config.Default()
	case cfg == nil:
		cli.DisplayError(os.Stderr, err, args.JSON)
		return cli.ExitConfigError
	case err != nil:
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		cli.DisplayError(os.Stderr, err, args.JSON)
		return cli.ExitConfigError
	}
	defer closeStore()

	gate := settings.NewGate(store, logger)
	clientCfg := backend.ConfigFrom(cfg)
	clientCfg.Logger = logger
	client := backend.NewClientWithConfig(clientCfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	app := cli.NewApp(cfg, gate, client, logger)
	if err := app.Run(ctx, cmd, args); err != nil {
		return app.Fail(err, args)
	}
	return cli.ExitSuccess
}

// loadConfig reads --config or the default files. A default file that
// fails to decode yields defaults alongside the error; an invalid config
// yields nil. A missing --config file is created by `config set`.
func loadConfig(args cli.Args) (*config.Config, error) {
	if args.ConfigFile == "" {
		return config.Load()
	}
	cfg, err := config.LoadFromPath(args.ConfigFile)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

// openStore opens the settings store the config names.
func openStore(cfg *config.Config) (settings.Store, func(), error) {
	noop := func() {}
	switch cfg.Settings.Store {
	case config.StoreRemote:
		return settings.NewRemoteStore(config.ResolveBackendURL(cfg), cfg.Timeout()), noop, nil
	case config.StoreSQLite:
		path, err := cfg.SettingsPath()
		if err != nil {
			return nil, noop, err
		}
		if cfg.Settings.Path == "" {
			if err := config.EnsureConfigDir(); err != nil {
				return nil, noop, err
			}
		}
		s, err := settings.OpenSQLiteStore(path)
		if err != nil {
			return nil, noop, err
		}
		return s, func() { s.Close() }, nil
	default:
		path, err := cfg.SettingsPath()
		if err != nil {
			return nil, noop, err
		}
		return settings.NewFileStore(path), noop, nil
	}
}
