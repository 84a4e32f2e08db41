// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// files.go - Upload manager commands: upload, files, delete, rebuild-index.

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeranaias/secureai-tui/internal/backend"
	"github.com/jeranaias/secureai-tui/internal/submission"
)

// runUpload uploads every path as one batch. If any file is invalid or too
// large nothing is sent.
func (a *App) runUpload(ctx context.Context, args Args) error {
	p := NewArgParser(args.Raw)
	paths := p.PositionalFrom(0)
	if len(paths) == 0 {
		return ErrMissingArgument("file", "secureai upload report.pdf notes.txt")
	}

	files := make([]*submission.Attachment, 0, len(paths))
	for _, path := range paths {
		att, err := submission.FromFile(path, submission.MaxAttachmentSize)
		if err != nil {
			return err
		}
		files = append(files, att)
	}

	if err := a.Client.Upload(ctx, files); err != nil {
		return err
	}

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	if args.JSON {
		return a.printJSON("upload", map[string]interface{}{"uploaded": names})
	}
	fmt.Fprintf(a.Stdout, "%s Uploaded %d file(s): %s\n",
		SuccessStyle.Render("✅"), len(files), strings.Join(names, ", "))
	return nil
}

// runFiles lists uploaded files, optionally for one folder.
func (a *App) runFiles(ctx context.Context, args Args) error {
	p := NewArgParser(args.Raw)
	folder := backend.Folder(p.FlagOrDefault("folder", p.Positional(0)))
	if folder != "" && !folder.Valid() {
		return &ValidationError{Field: "folder", Value: string(folder), Reason: "unknown folder", Example: "files, rag or images"}
	}

	records, err := a.Client.ListFiles(ctx)
	if err != nil {
		return err
	}
	if folder != "" {
		kept := records[:0:0]
		for _, r := range records {
			if r.Folder == folder {
				kept = append(kept, r)
			}
		}
		records = kept
	}

	if args.JSON {
		return a.printJSON("files", records)
	}
	if len(records) == 0 {
		fmt.Fprintln(a.Stdout, DimStyle.Render("No files uploaded."))
		return nil
	}

	t := NewTable("NAME", "FOLDER", "TYPE", "SIZE", "SOURCE", "UPLOADED")
	for _, r := range records {
		t.Add(r.Name, string(r.Folder), r.Type, string(r.Size), string(r.Source), r.UploadedAt)
	}
	t.Render(a.Stdout)
	return nil
}

// runDelete removes an uploaded file. Without --folder the folder is looked
// up from the listing.
func (a *App) runDelete(ctx context.Context, args Args) error {
	p := NewArgParser(args.Raw, "confirm", "y", "yes")
	name := JoinPositionalArgs(p, 0)
	if name == "" {
		return ErrMissingArgument("file", "secureai delete report.pdf --folder files")
	}

	folder := backend.Folder(p.Flag("folder"))
	if folder == "" {
		found, err := a.findFolder(ctx, name)
		if err != nil {
			return err
		}
		folder = found
	}

	ok, err := a.confirm(args, p.BoolFlag("confirm", "y", "yes"), backend.DeleteFilePrompt(name))
	if err != nil {
		return err
	}
	if !ok {
		a.notice(args, "%s", DimStyle.Render("Cancelled."))
		return nil
	}

	if err := a.Client.DeleteFile(ctx, name, folder); err != nil {
		if backend.IsNotFound(err) {
			return NewNotFoundError("file", name)
		}
		return NewCommandError("delete", string(folder), "❌ Failed to delete file", err)
	}
	if args.JSON {
		return a.printJSON("delete", map[string]string{"name": name, "folder": string(folder)})
	}
	fmt.Fprintf(a.Stdout, "Deleted %s from %s.\n", name, folder)
	return nil
}

// findFolder returns the only folder holding name.
func (a *App) findFolder(ctx context.Context, name string) (backend.Folder, error) {
	records, err := a.Client.ListFiles(ctx)
	if err != nil {
		return "", err
	}
	var found []backend.Folder
	for _, r := range records {
		if r.Name == name {
			found = append(found, r.Folder)
		}
	}
	switch len(found) {
	case 0:
		return "", NewNotFoundError("file", name)
	case 1:
		return found[0], nil
	}
	return "", &ValidationError{
		Field:   "folder",
		Reason:  fmt.Sprintf("%s exists in %d folders", name, len(found)),
		Example: fmt.Sprintf("secureai delete %q --folder %s", name, found[0]),
	}
}

// confirm asks question on the terminal unless flag or JSON mode settles
// it without asking.
func (a *App) confirm(args Args, flag bool, question string) (bool, error) {
	var p Prompter
	if !flag && !args.JSON && a.NewPrompter != nil {
		if p = a.NewPrompter(""); p != nil {
			defer p.Close()
		}
	}
	return Confirm(p, flag, question, args.JSON)
}

func (a *App) runRebuildIndex(ctx context.Context, args Args) error {
	msg, err := a.Client.RebuildIndex(ctx)
	if err != nil {
		return err
	}
	if args.JSON {
		return a.printJSON("rebuild-index", MessageData{Message: msg})
	}
	fmt.Fprintln(a.Stdout, msg)
	return nil
}
