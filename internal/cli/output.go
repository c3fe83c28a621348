package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"Mansoor88-6/team-time-tracker/internal/apperr"
	"Mansoor88-6/team-time-tracker/internal/client"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation rejected or failed (validation, conflict, unreachable server)
	ExitCommandError = 2 // Command error (bad flags, config, not signed in)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
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

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Application and backend
// errors are operation failures; anything else is a command error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) || client.IsBackendError(err) {
		return ExitFailure
	}
	return ExitCommandError
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
}

// CLIResponse is the JSON envelope of every command result.
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

type CLIError struct {
	Kind    string `json:"kind,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success outputs data as JSON, or calls text for human-readable output.
func (f *OutputFormatter) Success(data any, text func(w io.Writer)) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	text(f.Writer)
	return nil
}

// Error outputs err. JSON goes to Writer so callers can parse it; text goes to ErrWriter.
func (f *OutputFormatter) Error(err error) {
	cliErr := &CLIError{Code: "command_error", Message: err.Error()}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		cliErr = &CLIError{Kind: string(appErr.Kind), Code: appErr.Code, Message: appErr.Message}
	}

	if f.Format == "json" {
		json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "error", Error: cliErr})
		return
	}

	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, "Error: %s\n", cliErr.Message)
	if appErr != nil && appErr.Kind == apperr.KindConflict {
		fmt.Fprintln(w, "Your view was out of date. Run the command again to use the latest state.")
	}
}
