// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Client configuration command.
//
// Command: config [subcommand]
//
// Subcommands:
//   show (default)      Display current configuration
//   get <key>           Print one value
//   set <key> <value>   Set a value and save
//   keys                List every settable key
//   path                Show the configuration file path
//
// Examples:
//   secureai config set backend.url http://10.0.0.5:8000
//   secureai config set settings.store sqlite
//   secureai config get ui.theme
//   secureai --config ./secureai.toml config show

package cli

import (
	"fmt"
	"strings"

	"github.com/jeranaias/secureai-tui/internal/config"
)

func (a *App) runConfig(args Args) error {
	p := NewArgParser(args.Raw)
	switch sub := p.Subcommand(); sub {
	case "", "show":
		return a.configShow(args)
	case "get":
		return a.configGet(args, p.Positional(1))
	case "set":
		return a.configSet(args, p.Positional(1), JoinPositionalArgs(p, 2))
	case "keys":
		keys := config.GetAllKeys()
		if args.JSON {
			return a.printJSON("config keys", keys)
		}
		for _, k := range keys {
			fmt.Fprintln(a.Stdout, k)
		}
		return nil
	case "path":
		path, err := a.configPath(args)
		if err != nil {
			return err
		}
		if args.JSON {
			return a.printJSON("config path", MessageData{Path: path})
		}
		fmt.Fprintln(a.Stdout, path)
		return nil
	default:
		return ErrUnknownSubcommand("config", sub, "show", "get", "set", "keys", "path")
	}
}

func (a *App) configShow(args Args) error {
	if args.JSON {
		return a.printJSON("config", a.Config)
	}
	fmt.Fprintln(a.Stdout, TitleStyle.Render("Configuration"))
	fmt.Fprintln(a.Stdout, RenderSeparator(50))
	for _, key := range config.GetAllKeys() {
		v, err := a.Config.Get(key)
		if err != nil {
			continue
		}
		fmt.Fprintf(a.Stdout, "%s%v\n", RenderLabel(key+":", 28), v)
	}
	return nil
}

func (a *App) configGet(args Args, key string) error {
	if key == "" {
		return ErrMissingArgument("key", "secureai config get backend.url")
	}
	v, err := a.Config.Get(key)
	if err != nil {
		return &ValidationError{Field: "key", Value: key, Reason: err.Error(), Example: "secureai config keys"}
	}
	if args.JSON {
		return a.printJSON("config get", map[string]interface{}{"key": key, "value": v})
	}
	fmt.Fprintln(a.Stdout, v)
	return nil
}

// configSet changes one key and saves the whole file. An invalid result is
// not written.
func (a *App) configSet(args Args, key, value string) error {
	if key == "" {
		return ErrMissingArgument("key", "secureai config set backend.url http://localhost:8000")
	}
	next := *a.Config
	if err := next.Set(key, value); err != nil {
		return &ValidationError{Field: "key", Value: key, Reason: err.Error(), Example: "secureai config keys"}
	}
	if err := next.Validate(); err != nil {
		return err
	}

	path, err := a.configPath(args)
	if err != nil {
		return err
	}
	if strings.HasSuffix(path, ".json") {
		err = config.SaveJSON(&next, path)
	} else {
		if args.ConfigFile == "" {
			err = config.EnsureConfigDir()
		}
		if err == nil {
			err = config.SaveTOML(&next, path)
		}
	}
	if err != nil {
		return NewCommandError("config", "set", "❌ Failed to save configuration", err)
	}
	*a.Config = next

	if args.JSON {
		return a.printJSON("config set", map[string]interface{}{"key": key, "value": value, "path": path})
	}
	fmt.Fprintf(a.Stdout, "%s %s = %s\n", SuccessStyle.Render("✅"), key, value)
	return nil
}

func (a *App) configPath(args Args) (string, error) {
	if args.ConfigFile != "" {
		return args.ConfigFile, nil
	}
	path, err := config.ConfigPathTOML()
	if err != nil {
		return "", NewCommandError("config", "path", "❌ Cannot locate the configuration directory", err)
	}
	return path, nil
}
