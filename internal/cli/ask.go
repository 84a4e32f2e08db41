// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - Generation commands: ask, image and step.
//
// Each builds a submission, streams the answer through a stream.Session and
// writes it as it arrives (or rendered once Done on a terminal).
//
// Examples:
//   secureai ask "Summarize the site notes"
//   secureai ask --file notes.pdf "What are the open items?"
//   secureai ask --model llama,mistral "Compare these"
//   echo "question" | secureai ask -
//   secureai image photo.jpg "What is on the whiteboard?"
//   secureai step site-a plan --system "You are an auditor" --user "Plan the review"

package cli

import (
	"context"
	"io"
	"strings"

	"github.com/jeranaias/secureai-tui/internal/backend"
	"github.com/jeranaias/secureai-tui/internal/settings"
	"github.com/jeranaias/secureai-tui/internal/stream"
	"github.com/jeranaias/secureai-tui/internal/submission"
)

// textModels returns the models named by --model, or the settings default.
func textModels(args Args, s settings.Settings) []string {
	if models := SplitList(args.Model); len(models) > 0 {
		return models
	}
	return []string{s.DefaultTextModel}
}

func imageModels(args Args, s settings.Settings) []string {
	if models := SplitList(args.Model); len(models) > 0 {
		return models[:1]
	}
	return []string{s.DefaultImageModel}
}

// readPrompt returns the joined positionals; "-" reads the prompt from stdin.
func (a *App) readPrompt(p *ArgParser, from int) (string, error) {
	prompt := JoinPositionalArgs(p, from)
	if prompt != "-" {
		return prompt, nil
	}
	data, err := io.ReadAll(a.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// =============================================================================
// ASK
// =============================================================================

func (a *App) runAsk(ctx context.Context, args Args) error {
	p := NewArgParser(args.Raw)
	prompt, err := a.readPrompt(p, 0)
	if err != nil {
		return err
	}

	var att *submission.Attachment
	if file := p.FlagAny("f", "file"); file != "" {
		att, err = submission.FromFile(file, submission.MaxAttachmentSize)
		if err != nil {
			return err
		}
	}

	s := a.Gate.Load(ctx)
	builder := submission.NewBuilder(submission.WithModelCheck(s.AllowsTextModel))
	sub, err := builder.Build(prompt, att, textModels(args, s)...)
	if err != nil {
		return err
	}

	session := stream.NewSession(a.Logger)
	st := a.generate(ctx, args, session, false, a.Client.AskRequest(sub))
	return a.finishAnswer(args, "ask", sub.ID, sub.Model(), st)
}

// =============================================================================
// IMAGE
// =============================================================================

func (a *App) runImage(ctx context.Context, args Args) error {
	p := NewArgParser(args.Raw)
	path := p.Positional(0)
	if path == "" {
		return ErrMissingArgument("image", `secureai image photo.jpg "What is shown?"`)
	}

	att, err := submission.FromFile(path, submission.MaxAttachmentSize)
	if err != nil {
		return err
	}
	prompt := p.FlagAny("p", "prompt")
	if prompt == "" {
		prompt = JoinPositionalArgs(p, 1)
	}

	s := a.Gate.Load(ctx)
	builder := submission.NewImageBuilder(submission.WithModelCheck(s.AllowsImageModel))
	sub, err := builder.Build(prompt, att, imageModels(args, s)...)
	if err != nil {
		return err
	}

	session := stream.NewSession(a.Logger)
	st := a.generate(ctx, args, session, false, a.Client.ImageRequest(sub),
		stream.WithFailureMessage(stream.ImageFailMessage))
	return a.finishAnswer(args, "image", sub.ID, sub.Model(), st)
}

// =============================================================================
// STEP
// =============================================================================

// runStep runs one project step. The saved instructions are used unless
// --system or --user is given; --save stores the given ones first.
func (a *App) runStep(ctx context.Context, args Args) error {
	p := NewArgParser(args.Raw, "save")
	slug := p.Positional(0)
	if slug == "" || p.Positional(1) == "" {
		return ErrMissingArgument("step", "secureai step <project> <plan|write|check>")
	}
	step, err := backend.ParseStep(p.Positional(1))
	if err != nil {
		return &ValidationError{Field: "step", Value: p.Positional(1), Reason: err.Error(), Example: "plan, write or check"}
	}

	ins := backend.Instruction{System: p.Flag("system"), User: p.Flag("user")}
	if !p.HasFlag("system") && !p.HasFlag("user") {
		saved, err := a.Client.Instructions(ctx, slug)
		if err != nil {
			a.notice(args, "%s", WarningStyle.Render("⚠️ Failed to load instructions"))
		} else {
			ins = saved[step]
		}
	} else if p.BoolFlag("save") {
		if err := a.Client.SaveInstructions(ctx, slug, step, ins); err != nil {
			return err
		}
	}

	if !args.JSON && !args.Quiet {
		a.notice(args, "%s %s", TitleStyle.Render(step.Title()), DimStyle.Render(slug))
	}

	session := stream.NewSession(a.Logger)
	st := a.generate(ctx, args, session, false, a.Client.StepRequest(slug, step, ins),
		stream.WithNoBodyMessage(stream.NoReaderMessage))
	return a.finishAnswer(args, "step", "", string(step), st)
}
