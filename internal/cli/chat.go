// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-oriented chat REPL.
//
// Each line is sent as its own question; the backend keeps no conversation.
// Answers stream to the terminal as they arrive.
//
// Command: chat
//
// Interactive Commands (during chat):
//   /help, /h           Show available commands
//   /model [names]      Show or switch models (comma-separated)
//   /models             Show the allowed models
//   /attach <path>      Attach a file to the next question
//   /detach             Drop the pending attachment
//   /status, /s         Show session statistics
//   /quit, /q, /exit    Exit chat
//   Ctrl+C              Cancel current answer
//   Ctrl+D              Exit chat

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeranaias/secureai-tui/internal/stream"
	"github.com/jeranaias/secureai-tui/internal/submission"
)

// chatSession is the state one chat REPL keeps between lines.
type chatSession struct {
	models     []string
	attachment *submission.Attachment
	stream     *stream.Session

	asked   int
	failed  int
	started time.Time
}

func (a *App) runChat(ctx context.Context, args Args) error {
	if args.JSON {
		return &ValidationError{Field: "--json", Reason: "chat is interactive", Example: `secureai ask --json "question"`}
	}
	var p Prompter
	if a.NewPrompter != nil {
		p = a.NewPrompter(historyFile("chat_history"))
	}
	if p == nil {
		return NewCommandError("chat", "", "❌ chat needs a terminal; use `secureai ask` in scripts", nil)
	}
	defer p.Close()

	s := a.Gate.Load(ctx)
	cs := &chatSession{
		models:  textModels(args, s),
		stream:  stream.NewSession(a.Logger),
		started: time.Now(),
	}
	if !args.Quiet {
		a.printChatWelcome(cs)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		input, err := p.Prompt("secureai> ")
		if err != nil {
			if errors.Is(err, ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(a.Stdout)
				a.printChatSummary(cs)
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "/") {
			keepGoing, err := a.chatCommand(cs, input)
			if err != nil {
				fmt.Fprintf(a.Stderr, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
			if !keepGoing {
				a.printChatSummary(cs)
				return nil
			}
			continue
		}
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			a.printChatSummary(cs)
			return nil
		}

		if err := a.chatAsk(ctx, args, cs, input); err != nil {
			fmt.Fprintf(a.Stderr, "%s %s\n", ErrorStyle.Render("[Error]"), UserMessage(err))
		}
	}
}

// chatAsk sends one line. The allow-list is read from the gate each time so
// settings changed elsewhere apply to the next question.
func (a *App) chatAsk(ctx context.Context, args Args, cs *chatSession, prompt string) error {
	s := a.Gate.Current()
	builder := submission.NewBuilder(submission.WithModelCheck(s.AllowsTextModel))
	sub, err := builder.Build(prompt, cs.attachment, cs.models...)
	if err != nil {
		return err
	}
	cs.attachment = nil
	cs.asked++

	fmt.Fprintln(a.Stdout)
	st := a.generate(ctx, args, cs.stream, true, a.Client.AskRequest(sub))
	fmt.Fprintln(a.Stdout)
	switch {
	case st.Status == stream.Errored:
		cs.failed++
	case st.IsPending():
		fmt.Fprintln(a.Stderr, DimStyle.Render("This question is already being answered; ask again in a moment."))
	}
	fmt.Fprintln(a.Stdout)
	return nil
}

// chatCommand handles a slash command. It returns false to end the chat.
func (a *App) chatCommand(cs *chatSession, line string) (bool, error) {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	rest := strings.TrimSpace(strings.TrimPrefix(line, parts[0]))

	switch command {
	case "/help", "/h", "/?", "/":
		a.printChatHelp()
	case "/model", "/m":
		if rest == "" {
			fmt.Fprintf(a.Stdout, "%s %s\n", LabelStyle.Render("Model:"), strings.Join(cs.models, ", "))
			return true, nil
		}
		models := SplitList(rest)
		s := a.Gate.Current()
		for _, m := range models {
			if !s.AllowsTextModel(m) {
				return true, fmt.Errorf("model %q is not allowed (see /models)", m)
			}
		}
		cs.models = models
		fmt.Fprintf(a.Stdout, "%s Switched to %s\n", SuccessStyle.Render("[OK]"), strings.Join(models, ", "))
	case "/models":
		s := a.Gate.Current()
		fmt.Fprintf(a.Stdout, "%s%s\n", RenderLabel("Allowed:", 12), listOrNone(s.AllowedTextModels))
		fmt.Fprintf(a.Stdout, "%s%s\n", RenderLabel("Default:", 12), s.DefaultTextModel)
	case "/attach":
		if rest == "" {
			return true, errors.New("usage: /attach <path>")
		}
		att, err := submission.FromFile(rest, submission.MaxAttachmentSize)
		if err != nil {
			return true, errors.New(UserMessage(err))
		}
		cs.attachment = att
		fmt.Fprintf(a.Stdout, "%s %s will be sent with the next question\n", SuccessStyle.Render("[OK]"), att.Name)
	case "/detach":
		cs.attachment = nil
		fmt.Fprintln(a.Stdout, DimStyle.Render("[Attachment dropped]"))
	case "/status", "/s":
		a.printChatStatus(cs)
	case "/quit", "/q", "/exit":
		return false, nil
	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
	return true, nil
}

// =============================================================================
// DISPLAY
// =============================================================================

func (a *App) printChatWelcome(cs *chatSession) {
	fmt.Fprintln(a.Stdout)
	fmt.Fprintln(a.Stdout, TitleStyle.Render("SecureAI chat"))
	fmt.Fprintln(a.Stdout, RenderSeparator(30))
	fmt.Fprintf(a.Stdout, "%s %s\n", LabelStyle.Render("Model:"), strings.Join(cs.models, ", "))
	fmt.Fprintf(a.Stdout, "%s %s\n", LabelStyle.Render("Backend:"), a.Client.BaseURL())
	fmt.Fprintln(a.Stdout)
	fmt.Fprintln(a.Stdout, DimStyle.Render("Type your question and press Enter. Commands: /help, /quit"))
	fmt.Fprintln(a.Stdout)
}

func (a *App) printChatHelp() {
	commands := []struct{ cmd, desc string }{
		{"/help, /h", "Show this help"},
		{"/model [names]", "Show or switch models"},
		{"/models", "Show the allowed models"},
		{"/attach <path>", "Attach a file to the next question"},
		{"/detach", "Drop the pending attachment"},
		{"/status, /s", "Show session statistics"},
		{"/quit, /q", "Exit chat"},
	}
	fmt.Fprintln(a.Stdout)
	fmt.Fprintln(a.Stdout, SectionStyle.Render("Available Commands"))
	for _, c := range commands {
		fmt.Fprintf(a.Stdout, "  %s  %s\n", PromptStyle.Render(fmt.Sprintf("%-16s", c.cmd)), DimStyle.Render(c.desc))
	}
	fmt.Fprintln(a.Stdout)
	fmt.Fprintln(a.Stdout, DimStyle.Render("Tip: Ctrl+C cancels the current answer, Ctrl+D exits"))
	fmt.Fprintln(a.Stdout)
}

func (a *App) printChatStatus(cs *chatSession) {
	fmt.Fprintf(a.Stdout, "%s%d\n", RenderLabel("Questions:", 14), cs.asked)
	fmt.Fprintf(a.Stdout, "%s%d\n", RenderLabel("Failed:", 14), cs.failed)
	fmt.Fprintf(a.Stdout, "%s%s\n", RenderLabel("Elapsed:", 14), time.Since(cs.started).Round(time.Second))
	if cs.attachment != nil {
		fmt.Fprintf(a.Stdout, "%s%s\n", RenderLabel("Attachment:", 14), cs.attachment.Name)
	}
}

func (a *App) printChatSummary(cs *chatSession) {
	if cs.asked == 0 {
		return
	}
	fmt.Fprintln(a.Stdout, DimStyle.Render(fmt.Sprintf("%d question(s) in %s", cs.asked, time.Since(cs.started).Round(time.Second))))
}
