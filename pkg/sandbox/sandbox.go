// Package sandbox runs untrusted code snippets in fresh, isolated processes
// with a hard wall-clock timeout.
package sandbox

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// StderrMarker separates standard error from standard output in Combined.
const StderrMarker = "\nError:\n"

// Executor runs code snippets.
//
// Execute returns an *ExecutionError when the process cannot be launched, or the
// caller's context error when ctx is done before the snippet finishes. A
// snippet that fails, exits non-zero or times out is not an error: it is
// reported through the Outcome.
type Executor interface {
	Execute(ctx context.Context, code string) (*Outcome, error)
}

// Outcome is the captured result of one execution.
type Outcome struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	TimedOut bool          `json:"timed_out"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`

	// Truncated is set when output exceeded the configured cap.
	Truncated bool `json:"truncated,omitempty"`
}

// Combined returns stdout followed by stderr under StderrMarker.
func (o *Outcome) Combined() string {
	var b strings.Builder
	b.WriteString(o.Stdout)
	if o.Stderr != "" {
		b.WriteString(StderrMarker)
		b.WriteString(o.Stderr)
	}
	return b.String()
}

// ExecutionError reports that the snippet could not be launched.
type ExecutionError struct {
	Message string
	Err     error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("execution failed: %s: %v", e.Message, e.Err)
	}
	return "execution failed: " + e.Message
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
