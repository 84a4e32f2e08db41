// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package submission

import (
	"strings"
	"time"
)

// =============================================================================
// BUILDER
// =============================================================================

// DefaultImagePrompt is sent when an image is submitted without a prompt.
const DefaultImagePrompt = "Describe this image."

// Builder validates and assembles Submissions for one screen.
type Builder struct {
	maxSize       int64
	allowType     func(mimeType string) bool
	allowModel    func(model string) bool
	requirePrompt bool
	requireFile   bool
	defaultPrompt string
}

// Option configures a Builder.
type Option func(*Builder)

// WithMaxSize overrides the attachment ceiling.
func WithMaxSize(n int64) Option {
	return func(b *Builder) { b.maxSize = n }
}

// WithModelCheck rejects models for which allow returns false. Screens pass
// the settings allow-list here.
func WithModelCheck(allow func(model string) bool) Option {
	return func(b *Builder) { b.allowModel = allow }
}

// NewBuilder returns a builder for prompt submissions (/ask): prompt text is
// required, any allow-listed document or image may be attached.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		maxSize:       MaxAttachmentSize,
		allowType:     func(t string) bool { return AllowedMIMETypes[baseMIME(t)] },
		requirePrompt: true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewImageBuilder returns a builder for image analysis: a JPEG, PNG or GIF
// file is required and the prompt defaults to DefaultImagePrompt.
func NewImageBuilder(opts ...Option) *Builder {
	b := &Builder{
		maxSize:       MaxAttachmentSize,
		allowType:     func(t string) bool { return ImageMIMETypes[baseMIME(t)] },
		requireFile:   true,
		defaultPrompt: DefaultImagePrompt,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build validates its inputs and returns an immutable Submission. Rejections
// are *ValidationError values carrying the user-facing message.
func (b *Builder) Build(prompt string, att *Attachment, models ...string) (Submission, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		if b.requirePrompt {
			return Submission{}, reject(ErrEmptyPrompt, "Please enter a question.")
		}
		prompt = b.defaultPrompt
	}

	cleaned := make([]string, 0, len(models))
	for _, m := range models {
		if m = strings.TrimSpace(m); m != "" {
			cleaned = append(cleaned, m)
		}
	}
	if len(cleaned) == 0 {
		return Submission{}, reject(ErrNoModel, "Please select a model.")
	}
	if b.allowModel != nil {
		for _, m := range cleaned {
			if !b.allowModel(m) {
				return Submission{}, reject(ErrModelNotAllowed, "Model %q is not enabled in settings.", m)
			}
		}
	}

	if att == nil && b.requireFile {
		return Submission{}, reject(ErrUnsupportedType, "Please choose an image file.")
	}
	if att != nil {
		if att.Size > b.maxSize {
			return Submission{}, reject(ErrTooLarge, "%s is %s; the limit is %d MB",
				att.Name, humanSize(att.Size), b.maxSize/(1024*1024))
		}
		if !b.allowType(att.MIMEType) {
			if b.requireFile {
				return Submission{}, reject(ErrUnsupportedType, "%s is not a JPEG, PNG or GIF image.", att.Name)
			}
			return Submission{}, reject(ErrUnsupportedType, "%s has unsupported type %q", att.Name, att.MIMEType)
		}
	}

	return Submission{
		ID:         newID(),
		Prompt:     prompt,
		Attachment: att,
		Models:     cleaned,
		CreatedAt:  time.Now(),
	}, nil
}

// =============================================================================
// BATCH UPLOADS
// =============================================================================

// UploadRejectedMessage is shown when any file in a batch fails validation.
const UploadRejectedMessage = "❌ Some files were invalid or too large (max 25MB)."

// CheckBatch validates every file of an upload batch. The whole batch is
// rejected if any single file fails, and nothing is sent.
func CheckBatch(files []*Attachment) error {
	if len(files) == 0 {
		return reject(ErrUnsupportedType, "No files selected.")
	}
	for _, f := range files {
		if err := CheckAttachment(f, AllowedMIMETypes, MaxAttachmentSize); err != nil {
			return &ValidationError{Cause: errorsCause(err), Message: UploadRejectedMessage}
		}
	}
	return nil
}

func errorsCause(err error) error {
	if v, ok := err.(*ValidationError); ok {
		return v.Cause
	}
	return err
}

// =============================================================================
// PROJECT NAMES
// =============================================================================

// ProjectNameRequiredMessage is shown when a project is created without a name.
const ProjectNameRequiredMessage = "Project name is required."

// CheckProjectName trims name and rejects an empty one.
func CheckProjectName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", reject(ErrEmptyName, ProjectNameRequiredMessage)
	}
	return name, nil
}
