// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// settings_cmd.go - Shared model settings: allow-lists and defaults.
//
// Examples:
//   secureai settings
//   secureai settings set --text-models llama,mistral --default-text mistral
//   secureai settings set --image-models bakllava --default-image bakllava

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeranaias/secureai-tui/internal/settings"
)

// settingsFlags are the fields `settings set` can change.
var settingsFlags = []string{"text-models", "default-text", "image-models", "default-image"}

func (a *App) runSettings(ctx context.Context, args Args) error {
	p := NewArgParser(args.Raw)
	switch sub := p.Subcommand(); sub {
	case "", "show":
		return a.showSettings(args, a.Gate.Load(ctx))
	case "set":
		return a.setSettings(ctx, args, p)
	case "reset":
		saved, err := a.Gate.Save(ctx, settings.Fallback())
		if err != nil {
			return NewCommandError("settings", "reset", "❌ Error saving settings.", err)
		}
		a.notice(args, "%s", SuccessStyle.Render("✅ Settings saved."))
		return a.showSettings(args, saved)
	default:
		return ErrUnknownSubcommand("settings", sub, "show", "set", "reset")
	}
}

// setSettings changes only the fields named on the command line and writes
// the whole record back. A record changed by someone else since it was
// read is a conflict, not an overwrite.
func (a *App) setSettings(ctx context.Context, args Args, p *ArgParser) error {
	given := false
	for _, f := range settingsFlags {
		given = given || p.HasFlag(f)
	}
	if !given {
		return ErrMissingArgument("settings", "secureai settings set --text-models llama,mistral --default-text llama")
	}

	saved, err := a.Gate.Update(ctx, func(next *settings.Settings) {
		if p.HasFlag("text-models") {
			next.AllowedTextModels = SplitList(p.Flag("text-models"))
		}
		if p.HasFlag("default-text") {
			next.DefaultTextModel = p.Flag("default-text")
		}
		if p.HasFlag("image-models") {
			next.AllowedImageModels = SplitList(p.Flag("image-models"))
		}
		if p.HasFlag("default-image") {
			next.DefaultImageModel = p.Flag("default-image")
		}
	})
	if err != nil {
		if settings.IsValidation(err) || settings.IsConflict(err) {
			return err
		}
		return NewCommandError("settings", "set", "❌ Error saving settings.", err)
	}
	a.notice(args, "%s", SuccessStyle.Render("✅ Settings saved."))
	return a.showSettings(args, saved)
}

func (a *App) showSettings(args Args, s settings.Settings) error {
	if args.JSON {
		return a.printJSON("settings", SettingsData{
			AllowedTextModels:  s.AllowedTextModels,
			DefaultTextModel:   s.DefaultTextModel,
			AllowedImageModels: s.AllowedImageModels,
			DefaultImageModel:  s.DefaultImageModel,
			Version:            s.Version,
			Store:              a.Config.Settings.Store,
		})
	}

	fmt.Fprintln(a.Stdout, TitleStyle.Render("Model Settings"))
	fmt.Fprintln(a.Stdout, RenderSeparator(50))
	fmt.Fprintf(a.Stdout, "%s%s\n", RenderLabel("Text models:"), listOrNone(s.AllowedTextModels))
	fmt.Fprintf(a.Stdout, "%s%s\n", RenderLabel("Default text:"), s.DefaultTextModel)
	fmt.Fprintf(a.Stdout, "%s%s\n", RenderLabel("Image models:"), listOrNone(s.AllowedImageModels))
	fmt.Fprintf(a.Stdout, "%s%s\n", RenderLabel("Default image:"), s.DefaultImageModel)
	fmt.Fprintf(a.Stdout, "%s%s\n", RenderLabel("Store:"), a.Config.Settings.Store)
	return nil
}

func listOrNone(models []string) string {
	if len(models) == 0 {
		return DimStyle.Render("(any)")
	}
	return strings.Join(models, ", ")
}
