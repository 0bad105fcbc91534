package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"restaurant-ops-api/internal/model"
)

// Exit codes for restoctl.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // operation failed (not found, corrupted backup, store write)
	ExitCommandError = 2 // bad flags or configuration
)

// ExitError carries the process exit code of a failed command.
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

// GetExitCode extracts the exit code from an error. Other errors map to ExitFailure.
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

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string      `json:"status"` // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`
	Error  *CLIError   `json:"error,omitempty"`
}

// CLIError is the error part of a JSON response.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success prints data. Text output uses text when given, data otherwise.
func (f *OutputFormatter) Success(data interface{}, text string) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	if text == "" {
		text = fmt.Sprint(data)
	}
	_, err := fmt.Fprintln(f.Writer, text)
	return err
}

// Error prints err and returns it as an *ExitError with ExitFailure.
func (f *OutputFormatter) Error(err error) error {
	code := errorCode(err)
	if f.Format == "json" {
		_ = json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: err.Error()},
		})
	} else {
		fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, err)
	}
	return &ExitError{Code: ExitFailure, Message: code, Err: err}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, model.ErrCorrupted):
		return "CORRUPTED"
	case errors.Is(err, model.ErrInvalidImport):
		return "INVALID_IMPORT"
	case errors.Is(err, model.ErrStoreWrite):
		return "STORE_WRITE"
	}
	return "ERROR"
}
