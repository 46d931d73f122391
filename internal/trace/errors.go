package trace

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes engine failures for the calling layer.
type ErrorCode string

const (
	// ErrCodeInvalidInput marks requests the engine cannot act on: zero
	// or multiple location forms, or a seed with no downstream chain.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrCodeNotFound marks an exhausted search: the expanded bounding
	// box never matched, or an id lookup came back empty.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeProvider marks a query or transport failure from the
	// provider. Never retried by the engine.
	ErrCodeProvider ErrorCode = "PROVIDER_ERROR"
)

// Error is a categorized engine failure. InvalidInput and NotFound are
// surfaced to the caller as client-facing conditions; provider failures
// wrap the underlying error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func wrapError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func isCode(err error, code ErrorCode) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Code == code
	}
	return false
}

// IsInvalidInput reports whether err is an INVALID_INPUT engine error.
func IsInvalidInput(err error) bool { return isCode(err, ErrCodeInvalidInput) }

// IsNotFound reports whether err is a NOT_FOUND engine error.
func IsNotFound(err error) bool { return isCode(err, ErrCodeNotFound) }

// IsProviderError reports whether err is a PROVIDER_ERROR engine error.
func IsProviderError(err error) bool { return isCode(err, ErrCodeProvider) }
