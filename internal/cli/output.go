package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/courier/internal/value"
)

// ExitCode is the process status a command finishes with.
type ExitCode int

const (
	ExitSuccess      ExitCode = iota
	ExitFailure               // failed transaction, scenario or determinism check
	ExitCommandError          // bad input: missing files, invalid flags, unreadable journal
)

func (c ExitCode) String() string {
	switch c {
	case ExitSuccess:
		return "success"
	case ExitFailure:
		return "failure"
	case ExitCommandError:
		return "command error"
	}
	return fmt.Sprintf("exit(%d)", int(c))
}

// ExitError attaches an ExitCode to a command failure.
type ExitError struct {
	Code    ExitCode
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError fails with code and message.
func NewExitError(code ExitCode, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError fails with code, keeping err in the chain.
func WrapExitError(code ExitCode, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode finds the ExitError in err's chain. Anything else is a
// plain ExitFailure.
func GetExitCode(err error) ExitCode {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
	Trace  string    `json:"trace,omitempty"`
}

// CLIError is the error part of a CLIResponse.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// printer routes a command's results. Results go to out, either as a
// CLIResponse envelope or through the command's own text renderer.
// Diagnostics go to diag so JSON on out stays parseable.
type printer struct {
	json    bool
	verbose bool
	out     io.Writer
	diag    io.Writer
}

func newPrinter(cmd *cobra.Command, opts *RootOptions) *printer {
	return &printer{
		json:    opts.Format == "json",
		verbose: opts.Verbose,
		out:     cmd.OutOrStdout(),
		diag:    cmd.ErrOrStderr(),
	}
}

// result prints data under an "ok" envelope tagged with trace, or hands
// out to text.
func (p *printer) result(trace string, data any, text func(w io.Writer) error) error {
	if p.json {
		return p.envelope(CLIResponse{Status: "ok", Data: data, Trace: trace})
	}
	return text(p.out)
}

// failure reports an error that still produced output, such as a
// transaction the runtime rejected.
func (p *printer) failure(code, message string, details any) error {
	if p.json {
		return p.envelope(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(p.out, "Error [%s]: %s\n", code, message)
	if p.verbose && details != nil {
		fmt.Fprintf(p.out, "Details: %v\n", details)
	}
	return nil
}

func (p *printer) envelope(resp CLIResponse) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// debugf writes one diagnostic line, only with --verbose.
func (p *printer) debugf(format string, args ...any) {
	if p.verbose {
		fmt.Fprintf(p.diag, format+"\n", args...)
	}
}

// renderValue prints v as compact JSON for text output.
func renderValue(v value.Value) string {
	data, err := value.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
