// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// tui.go - Full-screen ask and image screens.
//
// Examples:
//   secureai
//   secureai --model llama,mistral
//   secureai tui --image photo.jpg

package cli

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/secureai-tui/internal/settings"
	"github.com/jeranaias/secureai-tui/internal/stream"
	"github.com/jeranaias/secureai-tui/internal/submission"
	"github.com/jeranaias/secureai-tui/internal/ui/display"
	"github.com/jeranaias/secureai-tui/internal/ui/styles"
)

// runTUI runs the ask screen, or the image screen when --image is given.
// The log is silenced while the screen owns the terminal. Settings saved or
// edited elsewhere while it runs refresh the models and the header.
func (a *App) runTUI(ctx context.Context, args Args) error {
	if a.RunProgram == nil {
		return NewCommandError("tui", "", "❌ no terminal available", nil)
	}
	p := NewArgParser(args.Raw)

	cfg := display.Config{
		Session: stream.NewSession(a.Logger),
		Theme:   styles.NewTheme(a.Config.UI.Theme),
	}
	if a.Config.UI.Markdown && !args.NoMarkdown {
		cfg.Markdown = display.NewMarkdownRenderer(a.Width, a.Config.UI.Theme)
	}

	screen := &tuiScreen{args: args}
	if path := p.FlagAny("i", "image"); path != "" {
		att, err := submission.FromFile(path, submission.MaxAttachmentSize)
		if err != nil {
			return err
		}
		screen.image = att.Name
		cfg.Placeholder = submission.DefaultImagePrompt
		cfg.StreamOptions = []stream.Option{stream.WithFailureMessage(stream.ImageFailMessage)}
		cfg.Submit = a.imageSubmit(att, screen.models)
	} else {
		cfg.Submit = a.askSubmit(screen.models)
	}
	screen.apply(a.Gate.Load(ctx))
	cfg.Title = screen.title()

	if w, err := a.watchSettings(false); err != nil {
		a.Logger.Printf("SETTINGS_WATCH_FAILED | error=%v", err)
	} else if w != nil {
		defer w.Close()
	}
	sub, unsubscribe := a.Gate.Subscribe()
	defer unsubscribe()
	cfg.Updates = screen.follow(sub)

	prev := a.Logger.Writer()
	a.Logger.SetOutput(io.Discard)
	defer a.Logger.SetOutput(prev)

	err := a.RunProgram(ctx, display.New(cfg))
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// tuiScreen tracks the models a running screen sends to. Models named with
// --model stay fixed; defaults follow the settings record.
type tuiScreen struct {
	args  Args
	image string // attachment name on the image screen

	mu   sync.Mutex
	list []string
}

func (t *tuiScreen) apply(s settings.Settings) {
	var list []string
	if t.image != "" {
		list = imageModels(t.args, s)
	} else {
		list = textModels(t.args, s)
	}
	t.mu.Lock()
	t.list = list
	t.mu.Unlock()
}

func (t *tuiScreen) models() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.list)
}

func (t *tuiScreen) title() string {
	models := strings.Join(t.models(), ", ")
	if t.image != "" {
		return "SecureAI · image · " + t.image + " · " + models
	}
	return "SecureAI · " + models
}

// follow turns settings changes into header updates. Only the newest
// pending update is kept. The channel closes with sub.
func (t *tuiScreen) follow(sub <-chan settings.Settings) <-chan display.Update {
	out := make(chan display.Update, 1)
	go func() {
		defer close(out)
		for s := range sub {
			t.apply(s)
			u := display.Update{Title: t.title(), Notice: "Settings reloaded."}
			select {
			case <-out:
			default:
			}
			out <- u
		}
	}()
	return out
}

// askSubmit checks each prompt against the current allow-list.
func (a *App) askSubmit(models func() []string) display.Submit {
	return func(prompt string) (stream.Request, error) {
		s := a.Gate.Current()
		sub, err := submission.NewBuilder(submission.WithModelCheck(s.AllowsTextModel)).Build(prompt, nil, models()...)
		if err != nil {
			return nil, errors.New(submission.UserMessage(err))
		}
		return a.Client.AskRequest(sub), nil
	}
}

func (a *App) imageSubmit(att *submission.Attachment, models func() []string) display.Submit {
	return func(prompt string) (stream.Request, error) {
		s := a.Gate.Current()
		sub, err := submission.NewImageBuilder(submission.WithModelCheck(s.AllowsImageModel)).Build(prompt, att, models()...)
		if err != nil {
			return nil, errors.New(submission.UserMessage(err))
		}
		return a.Client.ImageRequest(sub), nil
	}
}
