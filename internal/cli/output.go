package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/blockcfg/internal/engine"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The config or a scenario was rejected
	ExitCommandError = 2 // Command error (bad arguments, unreadable files, database errors)
)

// Error codes reported in JSON output.
const (
	ErrCodeGeneric              = "E001"
	ErrCodeSettings             = "E002" // blockcfg.yaml or flags invalid
	ErrCodeStore                = "E003" // database could not be opened
	ErrCodeConfigInvalid        = "E004" // project config failed to parse or validate
	ErrCodeNotFound             = "E005"
	ErrCodeValidation           = "E006"
	ErrCodeReferentialIntegrity = "E007"
	ErrCodeTransactionFailed    = "E008"
	ErrCodeTestFailed           = "E_TEST_FAILED"
)

// ExitError is an error with a specific exit code and JSON error code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	ErrCode string // JSON error code, ErrCodeGeneric if empty
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

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// wrapEngineError wraps err with the exit and error code of its engine
// error category. Rejected configs exit with ExitFailure; anything else is
// a command error.
func wrapEngineError(message string, err error) *ExitError {
	e := WrapExitError(ExitCommandError, message, err)
	switch {
	case engine.IsValidation(err):
		e.Code, e.ErrCode = ExitFailure, ErrCodeValidation
	case engine.IsReferentialIntegrity(err):
		e.Code, e.ErrCode = ExitFailure, ErrCodeReferentialIntegrity
	case engine.IsNotFound(err):
		e.Code, e.ErrCode = ExitFailure, ErrCodeNotFound
	case engine.IsTransactionFailure(err):
		e.ErrCode = ErrCodeTransactionFailed
	}
	return e
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

// errCode returns the JSON error code of err.
func errCode(err error) string {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.ErrCode != "" {
		return exitErr.ErrCode
	}
	return ErrCodeGeneric
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the JSON envelope of every command's output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// textPrinter is implemented by payloads with a human-readable form.
type textPrinter interface {
	printText(w io.Writer)
}

// Success outputs data in the configured format. In text format, data
// implementing textPrinter prints itself; anything else is printed with
// fmt.Fprintln.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	if p, ok := data.(textPrinter); ok {
		p.printText(f.Writer)
		return nil
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
