package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fernworks/docket/internal/todo"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Domain failure (validation, conflicts, scope blocks)
	ExitCommandError = 2 // Command error (invalid paths, database not found, etc.)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// Response is the standard JSON envelope for CLI output.
type Response struct {
	Status string `json:"status"`          // "ok" or "error"
	Data   any    `json:"data,omitempty"`  // success payload
	Error  *Error `json:"error,omitempty"` // error details
}

// Error is the error structure for CLI responses.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON reports whether the formatter emits JSON.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Success outputs a successful result. For text format, data is rendered
// with the given text function; JSON wraps it in the standard envelope.
func (f *OutputFormatter) Success(data any, text func(io.Writer)) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: data})
	}
	text(f.Writer)
	return nil
}

// reportError renders a domain error through the formatter and converts
// it to an ExitError so main exits with the right code. Structured errors
// carry their code and details into the output; anything else is wrapped
// as an internal error.
func reportError(f *OutputFormatter, err error) error {
	var derr *todo.Error
	if errors.As(err, &derr) {
		details := map[string]any{}
		if derr.TodoID != "" {
			details["todo_id"] = derr.TodoID
		}
		if len(derr.Violations) > 0 {
			details["violations"] = derr.Violations
		}
		if len(derr.Conflicts) > 0 {
			details["conflicts"] = derr.Conflicts
		}
		for k, v := range derr.Details {
			details[k] = v
		}
		f.Failure(string(derr.Code), derr.Message, details)
		return WrapExitError(ExitFailure, derr.Message, err)
	}
	f.Failure("internal", err.Error(), nil)
	return WrapExitError(ExitCommandError, "command failed", err)
}

// Failure outputs an error in the configured format.
func (f *OutputFormatter) Failure(code, message string, details any) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(Response{
			Status: "error",
			Error:  &Error{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	return nil
}
