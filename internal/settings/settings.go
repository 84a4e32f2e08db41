// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package settings holds the shared model settings record: which text and
// image models a screen may offer, and which one it preselects.
//
// Screens never read the record directly. They are handed a *Gate, which
// loads fail-soft (any read or decode problem yields Fallback()) and saves
// with an optimistic-concurrency Version token.
package settings

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// =============================================================================
// SETTINGS
// =============================================================================

// Settings is the persisted allow-list record. The JSON keys match the
// settings.json written by the web frontend.
type Settings struct {
	AllowedTextModels  []string `json:"allowed_text_models"`
	DefaultTextModel   string   `json:"default_text_model"`
	AllowedImageModels []string `json:"allowed_image_models"`
	DefaultImageModel  string   `json:"default_image_model"`

	// Version is the store's concurrency token for the record this value was
	// read from. Empty means "unconditional write".
	Version string `json:"-"`
}

// Defaults applied to missing fields on save.
const (
	DefaultTextModel  = "llama"
	DefaultImageModel = "bakllava"
)

// Fallback returns the fixed record used whenever the store is unreadable.
// It returns a fresh copy on every call.
func Fallback() Settings {
	return Settings{
		AllowedTextModels:  []string{"llama", "mistral", "phi"},
		DefaultTextModel:   DefaultTextModel,
		AllowedImageModels: []string{"bakllava", "llava-llama3"},
		DefaultImageModel:  DefaultImageModel,
	}
}

// Normalize fills missing fields the same way the settings endpoint does:
// nil allow-lists become empty, blank defaults become llama / bakllava.
// Model names are trimmed and empty entries dropped.
func (s Settings) Normalize() Settings {
	out := s
	out.AllowedTextModels = cleanList(s.AllowedTextModels)
	out.AllowedImageModels = cleanList(s.AllowedImageModels)
	out.DefaultTextModel = strings.TrimSpace(s.DefaultTextModel)
	out.DefaultImageModel = strings.TrimSpace(s.DefaultImageModel)
	if out.DefaultTextModel == "" {
		out.DefaultTextModel = DefaultTextModel
	}
	if out.DefaultImageModel == "" {
		out.DefaultImageModel = DefaultImageModel
	}
	return out
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, m := range in {
		m = strings.TrimSpace(m)
		if m != "" && !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	return out
}

// Validate rejects a default model that is missing from its own non-empty
// allow-list. An empty allow-list places no restriction on the default.
func (s Settings) Validate() error {
	var errs ValidationErrors
	if len(s.AllowedTextModels) > 0 && !slices.Contains(s.AllowedTextModels, s.DefaultTextModel) {
		errs = append(errs, ValidationError{
			Field:   "default_text_model",
			Message: fmt.Sprintf("%q is not in allowed_text_models", s.DefaultTextModel),
		})
	}
	if len(s.AllowedImageModels) > 0 && !slices.Contains(s.AllowedImageModels, s.DefaultImageModel) {
		errs = append(errs, ValidationError{
			Field:   "default_image_model",
			Message: fmt.Sprintf("%q is not in allowed_image_models", s.DefaultImageModel),
		})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// AllowsTextModel reports whether model may be offered for text prompts.
// An empty allow-list allows everything.
func (s Settings) AllowsTextModel(model string) bool {
	return len(s.AllowedTextModels) == 0 || slices.Contains(s.AllowedTextModels, model)
}

// AllowsImageModel reports whether model may be offered for image analysis.
func (s Settings) AllowsImageModel(model string) bool {
	return len(s.AllowedImageModels) == 0 || slices.Contains(s.AllowedImageModels, model)
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	out := s
	out.AllowedTextModels = slices.Clone(s.AllowedTextModels)
	out.AllowedImageModels = slices.Clone(s.AllowedImageModels)
	return out
}

// Equal compares content, ignoring Version.
func (s Settings) Equal(o Settings) bool {
	return s.DefaultTextModel == o.DefaultTextModel &&
		s.DefaultImageModel == o.DefaultImageModel &&
		slices.Equal(s.AllowedTextModels, o.AllowedTextModels) &&
		slices.Equal(s.AllowedImageModels, o.AllowedImageModels)
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound is returned by a store that has never been written.
	ErrNotFound = errors.New("settings record not found")

	// ErrVersionConflict is returned when the caller's Version no longer
	// matches the stored record.
	ErrVersionConflict = errors.New("settings were changed by another writer; reload and retry")
)

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors is every problem found by Validate.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, v := range e {
		msgs = append(msgs, v.Error())
	}
	return strings.Join(msgs, "; ")
}

// IsValidation reports whether err came from Validate.
func IsValidation(err error) bool {
	var v ValidationErrors
	return errors.As(err, &v)
}

// IsConflict reports whether err is a version conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
