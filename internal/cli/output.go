package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Exit codes. Scripts driving the CLI branch on these: 1 means the
// request was sound but the trace could not be satisfied, 2 means the
// invocation itself was wrong.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // trace failed: seed not found, provider down, bad data
	ExitCommandError = 2 // bad flags, unreadable config or input file
)

// ExitError carries an exit code alongside the error chain so main can
// exit with something more useful than a blanket 1.
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

// NewExitError builds an ExitError without an underlying cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code to an underlying error.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode unwraps the exit code, defaulting to ExitFailure for
// errors that never picked one.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// setupLogging installs the process-wide logger. Commands log to stderr
// so stdout stays clean for result payloads.
func setupLogging(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}
