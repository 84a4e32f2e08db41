// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/secureai-tui/internal/backend"
	"github.com/jeranaias/secureai-tui/internal/config"
	"github.com/jeranaias/secureai-tui/internal/settings"
	"github.com/jeranaias/secureai-tui/internal/stream"
	"github.com/jeranaias/secureai-tui/internal/ui/display"
)

// =============================================================================
// APP
// =============================================================================

// App is what every command runs against. main builds one from the loaded
// configuration; tests build one around httptest servers and buffers.
type App struct {
	Config *config.Config
	Gate   *settings.Gate
	Client *backend.Client
	Logger *log.Logger

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Interactive is true when stdout is a terminal: answers are rendered
	// as markdown and progress is shown.
	Interactive bool
	// Color enables code highlighting when markdown is off.
	Color bool
	// Width wraps rendered markdown.
	Width int

	// NewPrompter opens line input. It returns nil when stdin is not a
	// terminal. history names a file to keep input history in, or "".
	NewPrompter func(history string) Prompter
	// Interrupts subscribes to Ctrl-C; the returned func unsubscribes.
	Interrupts func() (<-chan os.Signal, func())
	// RunProgram runs a bubbletea program to completion. The program is
	// killed when ctx is done.
	RunProgram func(ctx context.Context, m tea.Model) error
	// Listen opens the listener for `serve`.
	Listen func(addr string) (net.Listener, error)
}

// NewApp returns an App wired to the process's terminal.
func NewApp(cfg *config.Config, gate *settings.Gate, client *backend.Client, logger *log.Logger) *App {
	if logger == nil {
		logger = log.Default()
	}
	return &App{
		Config:      cfg,
		Gate:        gate,
		Client:      client,
		Logger:      logger,
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Interactive: IsStdoutTTY(),
		Color:       ColorsEnabled(),
		Width:       GetTerminalWidth(),
		NewPrompter: func(history string) Prompter {
			if !CanPrompt() {
				return nil
			}
			return NewLinerPrompter(history)
		},
		Interrupts: func() (<-chan os.Signal, func()) {
			ch := make(chan os.Signal, 1)
			signal.Notify(ch, os.Interrupt)
			return ch, func() { signal.Stop(ch) }
		},
		RunProgram: func(ctx context.Context, m tea.Model) error {
			_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		},
		Listen: func(addr string) (net.Listener, error) {
			return net.Listen("tcp", addr)
		},
	}
}

// Run executes cmd. The error, if any, has not been displayed unless
// IsReported says so; pass it to Fail.
func (a *App) Run(ctx context.Context, cmd Command, args Args) error {
	switch cmd {
	case CmdTUI:
		return a.runTUI(ctx, args)
	case CmdAsk:
		return a.runAsk(ctx, args)
	case CmdImage:
		return a.runImage(ctx, args)
	case CmdStep:
		return a.runStep(ctx, args)
	case CmdChat:
		return a.runChat(ctx, args)
	case CmdUpload:
		return a.runUpload(ctx, args)
	case CmdFiles:
		return a.runFiles(ctx, args)
	case CmdDelete:
		return a.runDelete(ctx, args)
	case CmdRebuildIndex:
		return a.runRebuildIndex(ctx, args)
	case CmdProjects:
		return a.runProjects(ctx, args)
	case CmdProject:
		return a.runProject(ctx, args)
	case CmdInstructions:
		return a.runInstructions(ctx, args)
	case CmdStats:
		return a.runStats(ctx, args)
	case CmdSettings:
		return a.runSettings(ctx, args)
	case CmdConfig:
		return a.runConfig(args)
	case CmdServe:
		return a.runServe(ctx, args)
	case CmdVersion:
		return a.runVersion(args)
	case CmdHelp:
		PrintUsage(a.Stdout)
		return nil
	}

	err := &ValidationError{Field: "command", Value: args.Name, Reason: "unknown command"}
	if s := SuggestCommand(args.Name); s != "" {
		err.Example = "did you mean 'secureai " + s + "'?"
	}
	return err
}

// Fail displays err the way the output mode expects and returns the exit
// code.
func (a *App) Fail(err error, args Args) int {
	if args.JSON {
		DisplayError(a.Stdout, err, true)
	} else {
		DisplayError(a.Stderr, err, false)
	}
	return GetExitCode(err)
}

func (a *App) runVersion(args Args) error {
	if args.JSON {
		return NewJSONResponse("version", map[string]string{
			"version":    Version,
			"git_commit": GitCommit,
			"build_date": BuildDate,
		}).Print(a.Stdout)
	}
	PrintVersion(a.Stdout)
	return nil
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

// printJSON prints a successful JSON envelope.
func (a *App) printJSON(command string, data interface{}) error {
	return NewJSONResponse(command, data).Print(a.Stdout)
}

// notice writes a human-readable line to stderr unless --quiet.
func (a *App) notice(args Args, format string, v ...interface{}) {
	if args.Quiet {
		return
	}
	fmt.Fprintf(a.Stderr, format+"\n", v...)
}

// historyFile returns where an input history named name is kept, or "" when
// the config directory is unavailable.
func historyFile(name string) string {
	if err := config.EnsureConfigDir(); err != nil {
		return ""
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, name)
}

// =============================================================================
// STREAMING
// =============================================================================

// newSink picks how an answer is written. On a terminal with markdown on,
// the answer is rendered once it is Done; with markdown off but color on,
// code blocks are highlighted. Otherwise text is written as it arrives.
// live forces the last mode.
func (a *App) newSink(args Args, live bool) *display.Sink {
	opts := []display.SinkOption{display.WithStatus(a.Stderr)}
	markdown := a.Config.UI.Markdown && !args.NoMarkdown

	switch {
	case live || !a.Interactive:
	case markdown:
		md := display.NewMarkdownRenderer(a.Width, a.Config.UI.Theme)
		opts = append(opts, display.WithFormatter(md.Render))
		if !args.Quiet {
			opts = append(opts, display.WithProgress())
		}
	case a.Color:
		opts = append(opts, display.WithFormatter(display.HighlightFences))
		if !args.Quiet {
			opts = append(opts, display.WithProgress())
		}
	}
	return display.NewSink(a.Stdout, opts...)
}

// onInterrupt calls fn on Ctrl-C until the returned stop is called.
func (a *App) onInterrupt(fn func()) (stop func()) {
	if a.Interrupts == nil {
		return func() {}
	}
	ch, release := a.Interrupts()
	done := make(chan struct{})
	go func() {
		select {
		case <-ch:
			fn()
		case <-done:
		}
	}()
	return func() {
		close(done)
		release()
	}
}

// generate runs req on session and writes the answer. Ctrl-C cancels the
// stream and keeps the text received so far.
func (a *App) generate(ctx context.Context, args Args, session *stream.Session, live bool,
	req stream.Request, opts ...stream.Option) stream.State {
	var cb stream.Callback
	if !args.JSON {
		cb = a.newSink(args, live).Handle
	}

	stop := a.onInterrupt(session.Cancel)
	defer stop()
	return session.Run(ctx, req, cb, opts...)
}

// finishAnswer reports the outcome of a one-shot generation command.
func (a *App) finishAnswer(args Args, command, id, model string, st stream.State) error {
	if args.JSON {
		data := AnswerData{
			ID:      id,
			Model:   model,
			Status:  st.Status.String(),
			Answer:  st.AccumulatedText,
			Pending: st.IsPending(),
		}
		resp := NewJSONResponse(command, data)
		if st.Status == stream.Errored {
			data.Error = st.ErrorText()
			resp.Data = data
			resp.Success = false
			msg := st.ErrorText()
			resp.Error = &msg
		}
		if err := resp.Print(a.Stdout); err != nil {
			return err
		}
	} else if st.IsPending() {
		a.notice(args, "%s", DimStyle.Render("This question is already being answered; ask again in a moment."))
	}

	if st.Status == stream.Errored {
		return Reported(st.Err)
	}
	return nil
}
