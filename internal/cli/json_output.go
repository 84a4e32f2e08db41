// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - JSON output shared by every command.
//
// In JSON mode stdout carries exactly one JSON document; human-readable
// messages go to stderr.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// JSONResponse is the envelope every command prints with --json.
type JSONResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data"`
	Error     *string     `json:"error"`
	Timestamp string      `json:"timestamp"`
	Command   string      `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a failed response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	msg := UserMessage(err)
	return &JSONResponse{
		Success:   false,
		Error:     &msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print writes the response as indented JSON.
func (r *JSONResponse) Print(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// String returns the response as indented JSON.
func (r *JSONResponse) String() string {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":"failed to marshal response: %s","timestamp":"%s"}`,
			err.Error(), time.Now().UTC().Format(time.RFC3339))
	}
	return string(data)
}

// =============================================================================
// COMMAND DATA
// =============================================================================

// AnswerData is printed by the generation commands.
type AnswerData struct {
	ID      string `json:"id,omitempty"`
	Model   string `json:"model,omitempty"`
	Status  string `json:"status"`
	Answer  string `json:"answer"`
	Error   string `json:"error,omitempty"`
	Pending bool   `json:"pending,omitempty"`
}

// SettingsData is printed by `settings show` and `settings set`.
type SettingsData struct {
	AllowedTextModels  []string `json:"allowed_text_models"`
	DefaultTextModel   string   `json:"default_text_model"`
	AllowedImageModels []string `json:"allowed_image_models"`
	DefaultImageModel  string   `json:"default_image_model"`
	Version            string   `json:"version,omitempty"`
	Store              string   `json:"store"`
}

// MessageData is printed by commands whose result is a single message.
type MessageData struct {
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}
