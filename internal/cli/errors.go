// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types, display and exit codes for every command.
//
// Commands always return their errors; the caller displays them once and
// picks the exit code. A stream that ended Errored has already shown its
// message next to the partial answer, so its error is marked as reported.

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/secureai-tui/internal/backend"
	"github.com/jeranaias/secureai-tui/internal/config"
	"github.com/jeranaias/secureai-tui/internal/settings"
	"github.com/jeranaias/secureai-tui/internal/stream"
	"github.com/jeranaias/secureai-tui/internal/submission"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2 // bad arguments, rejected submission, invalid settings
	ExitConfigError   = 3
	ExitNetworkError  = 5 // backend unreachable
	ExitNotFoundError = 7
	ExitTimeoutError  = 8
	ExitConflictError = 9   // settings changed by another writer
	ExitCanceled      = 130 // interrupted, as a shell would report SIGINT
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a failed command with context.
type CommandError struct {
	Command string // e.g. "project"
	Action  string // e.g. "create"
	Reason  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError represents invalid user input on the command line.
type ValidationError struct {
	Field   string
	Value   string
	Reason  string
	Example string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// reportedError is an error whose message the user has already seen.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// Reported marks err as already shown.
func Reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

// IsReported reports whether err was already shown to the user.
func IsReported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

// NewCommandError creates a new command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{Command: command, Action: action, Reason: reason, Err: err}
}

// NewValidationError creates a new validation error.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// ErrMissingArgument reports a required argument that was not given.
func ErrMissingArgument(argName, usage string) error {
	return &ValidationError{Field: argName, Reason: "required argument missing", Example: usage}
}

// ErrUnknownSubcommand reports a subcommand the command does not have.
func ErrUnknownSubcommand(command, sub string, valid ...string) error {
	return &ValidationError{
		Field:   command + " subcommand",
		Value:   sub,
		Reason:  "unknown subcommand",
		Example: fmt.Sprintf("secureai %s %v", command, valid),
	}
}

// NewNotFoundError creates a new not found error.
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes err in the format of the output mode. Reported
// errors are skipped.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil || IsReported(err) {
		return
	}
	if jsonMode {
		DisplayErrorJSON(w, err)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), UserMessage(err))
}

// DisplayErrorJSON writes err as a JSON object.
func DisplayErrorJSON(w io.Writer, err error) {
	output := map[string]interface{}{
		"success": false,
		"error":   UserMessage(err),
	}

	var (
		cmdErr   *CommandError
		valErr   *ValidationError
		nfErr    *NotFoundError
		clientEr *backend.ClientError
	)
	switch {
	case errors.As(err, &valErr):
		output["error_type"] = "validation_error"
		output["field"] = valErr.Field
		if valErr.Example != "" {
			output["example"] = valErr.Example
		}
	case errors.As(err, &nfErr):
		output["error_type"] = "not_found_error"
		output["resource"] = nfErr.Resource
		output["id"] = nfErr.ID
	case errors.As(err, &clientEr):
		output["error_type"] = "backend_error"
		if clientEr.StatusCode != 0 {
			output["status_code"] = clientEr.StatusCode
		}
	case errors.As(err, &cmdErr):
		output["error_type"] = "command_error"
		output["command"] = cmdErr.Command
		output["action"] = cmdErr.Action
	case settings.IsValidation(err), submission.IsValidation(err):
		output["error_type"] = "validation_error"
	case settings.IsConflict(err):
		output["error_type"] = "conflict_error"
	default:
		output["error_type"] = "generic_error"
	}
	output["exit_code"] = GetExitCode(err)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.Encode(output)
}

// UserMessage returns the text to show for err. Rejected submissions and
// failed streams carry fixed user-facing messages.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var r *reportedError
	if errors.As(err, &r) {
		err = r.err
	}
	if submission.IsValidation(err) {
		return submission.UserMessage(err)
	}
	var se *stream.StreamError
	if errors.As(err, &se) {
		return stream.UserMessage(err)
	}
	return err.Error()
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode returns the exit code for err.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		valErr    *ValidationError
		nfErr     *NotFoundError
		configErr config.ValidateErrors
	)
	switch {
	case stream.IsCanceled(err), errors.Is(err, context.Canceled):
		return ExitCanceled
	case errors.As(err, &valErr),
		submission.IsValidation(err),
		settings.IsValidation(err),
		errors.Is(err, backend.ErrBadRequest):
		return ExitUsageError
	case errors.As(err, &configErr):
		return ExitConfigError
	case settings.IsConflict(err):
		return ExitConflictError
	case errors.As(err, &nfErr), backend.IsNotFound(err):
		return ExitNotFoundError
	case errors.Is(err, backend.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case backend.IsUnreachable(err):
		return ExitNetworkError
	}
	return ExitGeneralError
}
