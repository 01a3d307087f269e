package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/roach88/kiosksync/internal/engine"
	"github.com/roach88/kiosksync/internal/order"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The operation ran and was refused or failed (refused transition, failed scenario)
	ExitCommandError = 2 // Command error (bad flags, unreadable config, storage cannot open)
)

// Error codes reported in JSON output.
const (
	CodeUnavailable = "E_UNAVAILABLE"
	CodeNotFound    = "E_NOT_FOUND"
	CodeRefused     = "E_REFUSED"
	CodeInvalid     = "E_INVALID"
	CodeTestFailed  = "E_TEST_FAILED"
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

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// TextRenderer is implemented by payloads with a human-readable form.
type TextRenderer interface {
	RenderText(w io.Writer) error
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; defaults to Writer
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
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

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{Status: "ok", Data: data})
	}

	if r, ok := data.(TextRenderer); ok {
		return r.RenderText(f.Writer)
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Verbose lines go to ErrWriter so they never corrupt JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// OrderList renders as a table.
type OrderList []order.Order

func (l OrderList) RenderText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No orders.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NUMBER\tID\tSTATUS\tCUSTOMER\tTOTAL\tCREATED")
	for _, o := range l {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			o.Number, o.ID, o.Status, o.Customer.Name, money(o.Total), o.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

// OrderDetail renders one order with its lines.
type OrderDetail struct {
	Order order.Order `json:"order"`
}

func (d OrderDetail) RenderText(w io.Writer) error {
	o := d.Order
	fmt.Fprintf(w, "Order %s (%s)\n", o.Number, o.ID)
	fmt.Fprintf(w, "  Status:      %s\n", o.Status)
	fmt.Fprintf(w, "  Fulfillment: %s\n", o.Fulfillment)
	fmt.Fprintf(w, "  Customer:    %s\n", customerLine(o.Customer))
	fmt.Fprintf(w, "  Created:     %s\n", o.CreatedAt.Format(time.RFC3339))
	for _, it := range o.Items {
		line := fmt.Sprintf("  %dx %s @ %s", it.Quantity, it.Name, money(it.UnitPrice))
		if len(it.Options) > 0 {
			line += " (" + strings.Join(it.Options, ", ") + ")"
		}
		fmt.Fprintln(w, line)
	}
	if o.Notes != "" {
		fmt.Fprintf(w, "  Notes:       %s\n", o.Notes)
	}
	_, err := fmt.Fprintf(w, "  Total:       %s\n", money(o.Total))
	return err
}

// WriteResult reports where a write landed.
type WriteResult struct {
	Order   order.Order `json:"order"`
	Source  string      `json:"source"`
	Failure string      `json:"failure,omitempty"`
}

func newWriteResult(out engine.Outcome) WriteResult {
	r := WriteResult{Order: out.Order, Source: out.Source.String()}
	if out.FellBack() {
		r.Failure = out.Failure.String()
	}
	return r
}

func (r WriteResult) RenderText(w io.Writer) error {
	label := r.Order.Number
	if label == "" {
		label = r.Order.ID
	}
	if r.Failure == "" {
		_, err := fmt.Fprintf(w, "%s: %s\n", label, r.Order.Status)
		return err
	}
	_, err := fmt.Fprintf(w, "%s: %s (kept %s, backend %s)\n", label, r.Order.Status, r.Source, r.Failure)
	return err
}

func customerLine(c order.Customer) string {
	parts := []string{c.Name}
	for _, s := range []string{c.Phone, c.Email, c.Address} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

func money(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}
