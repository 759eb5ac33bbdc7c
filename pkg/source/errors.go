package source

import (
	"errors"
	"fmt"
)

// Common errors returned by sources.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of retrieval failures.
type ErrorClass string

const (
	// ErrorClassRequest represents a request that could not be built (bad URL).
	ErrorClassRequest ErrorClass = "request"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassParse represents a body that is not a valid feed.
	ErrorClassParse ErrorClass = "parse"

	// ErrorClassUnknown represents failures of unclassified sources.
	ErrorClassUnknown ErrorClass = "unknown"
)

// Error reports a failed feed retrieval.
type Error struct {
	URL        string
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("feed source %s error", e.ErrorClass)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.URL != "" {
		msg += " for " + e.URL
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// AsError returns err as a *Error, wrapping it with ErrorClassUnknown if it
// is not one already. It returns nil for a nil err.
func AsError(url string, err error) error {
	if err == nil {
		return nil
	}
	var srcErr *Error
	if errors.As(err, &srcErr) {
		return err
	}
	return &Error{URL: url, ErrorClass: ErrorClassUnknown, Err: err}
}

// Class returns the ErrorClass carried by err, or "" if err is not a *Error.
func Class(err error) ErrorClass {
	var srcErr *Error
	if errors.As(err, &srcErr) {
		return srcErr.ErrorClass
	}
	return ""
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer:
		// 5xx server errors should be retried
		return true
	case ErrorClassRateLimit:
		return true
	case ErrorClassNetwork:
		// Network errors should be retried
		return true
	default:
		// Bad requests and unparseable feeds fail the same way every time
		return false
	}
}
