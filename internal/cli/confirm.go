// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Line input and confirmations for destructive commands.
//
// Deleting a file asks first unless --confirm is given. In JSON mode or
// without a terminal there is nobody to ask, so --confirm is required.

package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/peterh/liner"
)

// Prompter reads one line of input after showing a prompt.
type Prompter interface {
	Prompt(prompt string) (string, error)
	Close() error
}

// ErrPromptAborted is returned by a Prompter when the user presses Ctrl-C
// at the prompt.
var ErrPromptAborted = liner.ErrPromptAborted

// =============================================================================
// LINER PROMPTER
// =============================================================================

// LinerPrompter is a Prompter with line editing and, when historyFile is
// set, persistent history.
type LinerPrompter struct {
	line        *liner.State
	historyFile string
}

// NewLinerPrompter puts the terminal under liner's control. Close must be
// called to restore it.
func NewLinerPrompter(historyFile string) *LinerPrompter {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	p := &LinerPrompter{line: line, historyFile: historyFile}
	if historyFile != "" {
		if f, err := os.Open(historyFile); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
	}
	return p
}

// Prompt reads a line. Non-blank input is added to the history.
func (p *LinerPrompter) Prompt(prompt string) (string, error) {
	input, err := p.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		p.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves the history (mode 0600) and restores the terminal.
func (p *LinerPrompter) Close() error {
	if p.historyFile != "" {
		if f, err := os.OpenFile(p.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			p.line.WriteHistory(f)
			f.Close()
		}
	}
	return p.line.Close()
}

// =============================================================================
// CONFIRMATION
// =============================================================================

// Confirm asks question and reports whether the user answered yes.
// confirmFlag skips the question. p may be nil when stdin is not a
// terminal.
func Confirm(p Prompter, confirmFlag bool, question string, jsonMode bool) (bool, error) {
	if confirmFlag {
		return true, nil
	}
	if jsonMode {
		return false, errors.New("confirmation required: use --confirm for destructive actions in JSON mode")
	}
	if p == nil {
		return false, errors.New("confirmation required but stdin is not a terminal; use --confirm")
	}

	answer, err := p.Prompt(question + " [y/N]: ")
	if err != nil {
		if errors.Is(err, ErrPromptAborted) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
