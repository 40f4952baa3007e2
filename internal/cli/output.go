package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // a scenario failed or the specs are invalid
	ExitCommandError = 2 // bad arguments, unreadable specs, records or database
)

// ExitError carries the process exit code for a failed command.
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

// NewExitError creates an ExitError.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from err. Errors that are not
// ExitErrors map to ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Response statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// CLIResponse is the envelope of every --format json result. A failed
// command may carry Data too, e.g. the view catalog of a partly valid spec
// or the scenario results of a failed test run.
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error part of a CLIResponse. Code is one of the ErrCode*
// constants or a compiler validation code.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter writes command results either as human-readable text or
// as one CLIResponse per command.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; keeps JSON on Writer parseable
	Verbose   bool
}

// newFormatter builds the formatter for cmd from the resolved root options.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// JSON reports whether results are written as CLIResponse documents.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Emit writes a successful result: data wrapped in a CLIResponse for json,
// otherwise whatever text writes.
func (f *OutputFormatter) Emit(data any, text func(w io.Writer) error) error {
	if f.JSON() {
		return f.encode(CLIResponse{Status: StatusOK, Data: data})
	}
	return text(f.Writer)
}

// Reject writes a failed result that still has a payload and returns an
// ExitError with exitCode and summary. text may be nil.
func (f *OutputFormatter) Reject(exitCode int, cliErr CLIError, data any, summary string, text func(w io.Writer)) error {
	if f.JSON() {
		if err := f.encode(CLIResponse{Status: StatusError, Data: data, Error: &cliErr}); err != nil {
			return err
		}
	} else if text != nil {
		text(f.Writer)
	}
	return NewExitError(exitCode, summary)
}

// Fail reports an error without a payload and returns an ExitError
// carrying exitCode.
func (f *OutputFormatter) Fail(exitCode int, code, message string, details any) error {
	if f.JSON() {
		if err := f.encode(CLIResponse{
			Status: StatusError,
			Error:  &CLIError{Code: code, Message: message, Details: details},
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
		if f.Verbose && details != nil {
			fmt.Fprintf(f.Writer, "Details: %v\n", details)
		}
	}
	return NewExitError(exitCode, fmt.Sprintf("%s: %s", code, message))
}

// VerboseLog writes a diagnostic line to ErrWriter (Writer when unset),
// only in verbose mode.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
