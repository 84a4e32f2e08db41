// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// projects.go - Project commands: projects, project, instructions.
//
// Examples:
//   secureai projects
//   secureai project create "Site A Review"
//   secureai project files site-a-review
//   secureai project upload site-a-review notes.pdf --category "Gap Analysis"
//   secureai project delete-file site-a-review notes.pdf
//   secureai instructions site-a-review set plan --system "..." --user "..."

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeranaias/secureai-tui/internal/backend"
	"github.com/jeranaias/secureai-tui/internal/submission"
	"github.com/jeranaias/secureai-tui/internal/util"
)

func (a *App) runProjects(ctx context.Context, args Args) error {
	projects, err := a.Client.Projects(ctx)
	if err != nil {
		return err
	}
	if args.JSON {
		return a.printJSON("projects", projects)
	}
	if len(projects) == 0 {
		fmt.Fprintln(a.Stdout, DimStyle.Render("No projects yet. Create one with: secureai project create <name>"))
		return nil
	}
	t := NewTable("NAME", "SLUG")
	for _, p := range projects {
		t.Add(p.Name, p.Slug)
	}
	t.Render(a.Stdout)
	return nil
}

// runProject dispatches the project subcommands.
func (a *App) runProject(ctx context.Context, args Args) error {
	p := NewArgParser(args.Raw, "confirm", "y", "yes")
	switch sub := p.Subcommand(); sub {
	case "create", "new":
		return a.projectCreate(ctx, args, JoinPositionalArgs(p, 1))
	case "show", "":
		if p.Positional(1) == "" {
			return a.runProjects(ctx, args)
		}
		return a.projectShow(ctx, args, p.Positional(1))
	case "files":
		return a.projectFiles(ctx, args, p.Positional(1))
	case "upload":
		return a.projectUpload(ctx, args, p)
	case "delete-file", "rm":
		return a.projectDeleteFile(ctx, args, p)
	default:
		return ErrUnknownSubcommand("project", sub, "create", "show", "files", "upload", "delete-file")
	}
}

func (a *App) projectCreate(ctx context.Context, args Args, name string) error {
	name, err := submission.CheckProjectName(name)
	if err != nil {
		return err
	}
	project, err := a.Client.CreateProject(ctx, name)
	if err != nil {
		return err
	}
	if args.JSON {
		return a.printJSON("project create", map[string]string{
			"name": project.Name,
			"slug": project.Slug,
			"path": backend.ProjectPath(project.Slug),
		})
	}
	fmt.Fprintf(a.Stdout, "%s Created %s (%s)\n", SuccessStyle.Render("✅"), project.Name, project.Slug)
	return nil
}

func (a *App) projectShow(ctx context.Context, args Args, slug string) error {
	project, err := a.Client.Project(ctx, slug)
	if err != nil {
		if backend.IsNotFound(err) {
			return NewNotFoundError("project", slug)
		}
		return err
	}
	files, err := a.Client.ProjectFiles(ctx, slug)
	if err != nil {
		return err
	}
	ins, err := a.Client.Instructions(ctx, slug)
	if err != nil {
		ins = nil
	}

	if args.JSON {
		return a.printJSON("project show", map[string]interface{}{
			"name":         project.Name,
			"slug":         slug,
			"files":        files,
			"instructions": ins,
		})
	}

	fmt.Fprintln(a.Stdout, TitleStyle.Render(project.Name))
	fmt.Fprintln(a.Stdout, RenderSeparator(50))
	fmt.Fprintf(a.Stdout, "%s%s\n", RenderLabel("Slug:"), slug)
	fmt.Fprintf(a.Stdout, "%s%d\n", RenderLabel("Files:"), len(files))
	for _, cat := range backend.Categories {
		n := 0
		for _, f := range files {
			if f.Category == cat {
				n++
			}
		}
		if n > 0 {
			fmt.Fprintf(a.Stdout, "%s%d\n", RenderLabel("  "+cat+":"), n)
		}
	}
	for _, step := range backend.Steps {
		state := DimStyle.Render("[empty]")
		if i, ok := ins[step]; ok && !i.Empty() {
			state = "saved"
		}
		fmt.Fprintf(a.Stdout, "%s%s\n", RenderLabel(step.Title()+":"), state)
	}
	return nil
}

func (a *App) projectFiles(ctx context.Context, args Args, slug string) error {
	if slug == "" {
		return ErrMissingArgument("project", "secureai project files <slug>")
	}
	files, err := a.Client.ProjectFiles(ctx, slug)
	if err != nil {
		return err
	}
	if args.JSON {
		return a.printJSON("project files", files)
	}
	if len(files) == 0 {
		fmt.Fprintln(a.Stdout, DimStyle.Render("No files in this project."))
		return nil
	}
	t := NewTable("FILENAME", "CATEGORY", "SIZE", "UPLOADED")
	for _, f := range files {
		t.Add(f.Filename, f.Category, util.FormatKB(f.SizeKB), f.UploadedAt)
	}
	t.Render(a.Stdout)
	return nil
}

func (a *App) projectUpload(ctx context.Context, args Args, p *ArgParser) error {
	slug, path := p.Positional(1), p.Positional(2)
	if slug == "" || path == "" {
		return ErrMissingArgument("file", `secureai project upload <slug> <path> --category "Site Notes"`)
	}
	category := p.FlagOrDefault("category", backend.DefaultCategory)
	if !backend.ValidCategory(category) {
		return &ValidationError{
			Field:   "category",
			Value:   category,
			Reason:  "unknown category",
			Example: strings.Join(backend.Categories, ", "),
		}
	}

	att, err := submission.FromFile(path, submission.MaxAttachmentSize)
	if err != nil {
		return err
	}
	if err := a.Client.UploadProjectFile(ctx, slug, category, att); err != nil {
		return err
	}
	if args.JSON {
		return a.printJSON("project upload", map[string]string{"project": slug, "filename": att.Name, "category": category})
	}
	fmt.Fprintf(a.Stdout, "%s Uploaded %s to %s as %s\n", SuccessStyle.Render("✅"), att.Name, slug, category)
	return nil
}

func (a *App) projectDeleteFile(ctx context.Context, args Args, p *ArgParser) error {
	slug, name := p.Positional(1), JoinPositionalArgs(p, 2)
	if slug == "" || name == "" {
		return ErrMissingArgument("file", "secureai project delete-file <slug> <filename>")
	}

	ok, err := a.confirm(args, p.BoolFlag("confirm", "y", "yes"), backend.DeleteFilePrompt(name))
	if err != nil {
		return err
	}
	if !ok {
		a.notice(args, "%s", DimStyle.Render("Cancelled."))
		return nil
	}

	if err := a.Client.DeleteProjectFile(ctx, slug, name); err != nil {
		if backend.IsNotFound(err) {
			return NewNotFoundError("file", name)
		}
		return NewCommandError("project", "delete-file", "❌ Failed to delete file", err)
	}
	if args.JSON {
		return a.printJSON("project delete-file", map[string]string{"project": slug, "filename": name})
	}
	fmt.Fprintf(a.Stdout, "Deleted %s from %s.\n", name, slug)
	return nil
}

// =============================================================================
// INSTRUCTIONS
// =============================================================================

func (a *App) runInstructions(ctx context.Context, args Args) error {
	p := NewArgParser(args.Raw)
	slug := p.Positional(0)
	if slug == "" {
		return ErrMissingArgument("project", "secureai instructions <slug> [show | set <step> --system s --user u]")
	}

	switch sub := p.Positional(1); sub {
	case "", "show":
		ins, err := a.Client.Instructions(ctx, slug)
		if err != nil {
			return err
		}
		if args.JSON {
			return a.printJSON("instructions", ins)
		}
		for i, step := range backend.Steps {
			if i > 0 {
				fmt.Fprintln(a.Stdout)
			}
			in := ins[step]
			fmt.Fprintln(a.Stdout, SectionStyle.Render(step.Title()))
			fmt.Fprintf(a.Stdout, "%s%s\n", RenderLabel("System:", 10), orEmpty(in.System))
			fmt.Fprintf(a.Stdout, "%s%s\n", RenderLabel("User:", 10), orEmpty(in.User))
		}
		return nil

	case "set":
		step, err := backend.ParseStep(p.Positional(2))
		if err != nil {
			return &ValidationError{Field: "step", Value: p.Positional(2), Reason: err.Error(), Example: "plan, write or check"}
		}
		ins := backend.Instruction{System: p.Flag("system"), User: p.Flag("user")}
		if err := a.Client.SaveInstructions(ctx, slug, step, ins); err != nil {
			return NewCommandError("instructions", "set", "❌ Failed to save instructions", err)
		}
		if args.JSON {
			return a.printJSON("instructions set", map[backend.Step]backend.Instruction{step: ins})
		}
		fmt.Fprintf(a.Stdout, "%s Saved %s instructions for %s\n", SuccessStyle.Render("✅"), step.Title(), slug)
		return nil

	default:
		return ErrUnknownSubcommand("instructions", sub, "show", "set")
	}
}

func orEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return DimStyle.Render("[empty]")
	}
	return s
}
