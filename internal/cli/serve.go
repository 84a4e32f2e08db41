// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve.go - Serves the shared settings record over HTTP.
//
// Examples:
//   secureai serve
//   secureai serve --addr 0.0.0.0:3000 --watch

package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jeranaias/secureai-tui/internal/config"
	"github.com/jeranaias/secureai-tui/internal/server"
	"github.com/jeranaias/secureai-tui/internal/settings"
)

// shutdownTimeout bounds how long in-flight requests get on exit.
const shutdownTimeout = 5 * time.Second

// runServe serves until ctx is done or Ctrl-C.
func (a *App) runServe(ctx context.Context, args Args) error {
	p := NewArgParser(args.Raw, "watch")
	if a.Config.Settings.Store == config.StoreRemote {
		return &ValidationError{
			Field:   "settings.store",
			Value:   config.StoreRemote,
			Reason:  "serve needs a local store",
			Example: "secureai config set settings.store file",
		}
	}

	cfg := server.ConfigFrom(a.Config.Server)
	cfg.Addr = p.FlagOrDefault("addr", cfg.Addr)
	cfg.Logger = a.Logger

	w, err := a.watchSettings(p.BoolFlag("watch"))
	if err != nil {
		return NewCommandError("serve", "watch", "❌ Cannot watch the settings file", err)
	}
	if w != nil {
		defer w.Close()
		cfg.Cached = true
	}
	srv := server.NewServer(a.Gate, cfg)

	a.Gate.Load(ctx)

	l, err := a.Listen(cfg.Addr)
	if err != nil {
		return NewCommandError("serve", cfg.Addr, "❌ Cannot listen on "+cfg.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(l) }()

	if args.JSON {
		if err := a.printJSON("serve", map[string]string{"addr": l.Addr().String()}); err != nil {
			l.Close()
			return err
		}
	} else {
		a.notice(args, "%s %s", SuccessStyle.Render("Serving settings on"), fmt.Sprintf("http://%s%s", l.Addr(), settings.APIPath))
	}

	interrupted := make(chan struct{})
	stop := a.onInterrupt(func() { close(interrupted) })
	defer stop()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return NewCommandError("serve", cfg.Addr, "❌ Server stopped", err)
	case <-ctx.Done():
	case <-interrupted:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	// Serve may not have installed its http.Server yet.
	l.Close()
	<-errCh
	if err != nil {
		return NewCommandError("serve", "shutdown", "❌ Shutdown failed", err)
	}
	a.notice(args, "%s", DimStyle.Render("Server stopped."))
	return nil
}

// watchSettings starts reloading the gate on edits to the settings file. It
// returns nil when the store is not a file or watching is off.
func (a *App) watchSettings(force bool) (*settings.Watcher, error) {
	if a.Config.Settings.Store != config.StoreFile || !(a.Config.Settings.Watch || force) {
		return nil, nil
	}
	path, err := a.Config.SettingsPath()
	if err != nil {
		return nil, err
	}
	w, err := settings.NewWatcher(a.Gate, path, settings.DefaultDebounce, a.Logger)
	if err != nil {
		return nil, err
	}
	if err := w.Watch(); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}
