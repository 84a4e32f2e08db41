// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package submission validates and assembles one user-initiated request:
// prompt text, an optional attachment, and the selected model(s).
//
// Every check runs before anything touches the network. A Submission that
// Build returns is ready to be encoded and sent; one that Build rejects never
// leaves the process.
package submission

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// LIMITS
// =============================================================================

// MaxAttachmentSize is the attachment ceiling: 25 MiB.
const MaxAttachmentSize int64 = 25 * 1024 * 1024

// MIME types accepted for document and image attachments.
const (
	MIMEPDF  = "application/pdf"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEPPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MIMEXLS  = "application/vnd.ms-excel"
	MIMEXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMETXT  = "text/plain"
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEGIF  = "image/gif"
)

// AllowedMIMETypes is the attachment allow-list.
var AllowedMIMETypes = map[string]bool{
	MIMEPDF:  true,
	MIMEDOCX: true,
	MIMEPPTX: true,
	MIMEXLS:  true,
	MIMEXLSX: true,
	MIMETXT:  true,
	MIMEJPEG: true,
	MIMEPNG:  true,
	MIMEGIF:  true,
}

// ImageMIMETypes is the subset of AllowedMIMETypes accepted for image
// analysis.
var ImageMIMETypes = map[string]bool{
	MIMEJPEG: true,
	MIMEPNG:  true,
	MIMEGIF:  true,
}

// =============================================================================
// TYPES
// =============================================================================

// Attachment is a file chosen by the user. Content is read lazily by the
// encoder; Size and MIMEType are what validation looks at.
type Attachment struct {
	Name     string
	Size     int64
	MIMEType string
	Content  []byte
}

// Submission is one immutable request bundle.
type Submission struct {
	ID         string
	Prompt     string
	Attachment *Attachment
	Models     []string
	CreatedAt  time.Time
}

// Model returns the primary (first) model.
func (s Submission) Model() string {
	if len(s.Models) == 0 {
		return ""
	}
	return s.Models[0]
}

// HasAttachment reports whether a file is attached.
func (s Submission) HasAttachment() bool {
	return s.Attachment != nil
}

// =============================================================================
// ERRORS
// =============================================================================

// Sentinel causes, matched with errors.Is against a *ValidationError.
var (
	ErrTooLarge        = errors.New("attachment too large")
	ErrUnsupportedType = errors.New("unsupported attachment type")
	ErrEmptyPrompt     = errors.New("empty prompt")
	ErrNoModel         = errors.New("no model selected")
	ErrModelNotAllowed = errors.New("model not allowed")
	ErrEmptyName       = errors.New("empty name")
)

// ValidationError is a rejection with the message shown to the user.
type ValidationError struct {
	Cause   error
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

func reject(cause error, format string, args ...interface{}) error {
	return &ValidationError{Cause: cause, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a submission rejection.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// UserMessage returns the user-facing text for err.
func UserMessage(err error) string {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Message
	}
	return err.Error()
}

// =============================================================================
// VALIDATION
// =============================================================================

// CheckAttachment applies the size ceiling and the MIME allow-list.
func CheckAttachment(a *Attachment, allowed map[string]bool, maxSize int64) error {
	if a == nil {
		return nil
	}
	if a.Size > maxSize {
		return reject(ErrTooLarge, "%s is %s; the limit is %d MB",
			a.Name, humanSize(a.Size), maxSize/(1024*1024))
	}
	if !allowed[baseMIME(a.MIMEType)] {
		return reject(ErrUnsupportedType, "%s has unsupported type %q", a.Name, a.MIMEType)
	}
	return nil
}

// baseMIME strips parameters: "text/plain; charset=utf-8" -> "text/plain".
func baseMIME(t string) string {
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.ToLower(strings.TrimSpace(t))
}

func humanSize(n int64) string {
	return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
}

func newID() string {
	return uuid.NewString()
}
