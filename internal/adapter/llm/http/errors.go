// Package http holds shared plumbing for HTTP-backed LLM clients:
// a classified error wrapper, safe response logging, and call metrics.
package http

import (
	"fmt"

	"github.com/reviewpilot/reviewpilot/internal/retry"
)

// Error is a provider call failure with its classified type attached.
// The message is what the retry classifier would have matched on, so the
// explicit Type lets clients pin a classification when they know better
// (e.g. an HTTP 429 whose body says nothing about rate limits).
type Error struct {
	Type       retry.ErrorType
	Message    string
	StatusCode int
	Provider   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s (status %d)", e.Provider, e.Type, e.Message, e.StatusCode)
}

// ErrorType implements retry.Classified so the retry policy sees the
// pinned classification instead of re-parsing the message.
func (e *Error) ErrorType() retry.ErrorType {
	return e.Type
}

// Is matches on error type, enabling errors.Is against a prototype.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// NewRateLimitError wraps an HTTP 429.
func NewRateLimitError(provider, message string) *Error {
	return &Error{Type: retry.ErrorRateLimit, Message: message, StatusCode: 429, Provider: provider}
}

// NewTimeoutError wraps a deadline expiry.
func NewTimeoutError(provider, message string) *Error {
	return &Error{Type: retry.ErrorTimeout, Message: message, Provider: provider}
}

// NewNetworkError wraps a transport failure.
func NewNetworkError(provider, message string) *Error {
	return &Error{Type: retry.ErrorNetwork, Message: message, Provider: provider}
}

// NewAPIError wraps a 4xx/5xx response body.
func NewAPIError(provider, message string, statusCode int) *Error {
	return &Error{Type: retry.ErrorAPI, Message: message, StatusCode: statusCode, Provider: provider}
}

// NewTokenLimitError wraps a context-window overflow. Never retryable.
func NewTokenLimitError(provider, message string) *Error {
	return &Error{Type: retry.ErrorTokenLimit, Message: message, StatusCode: 400, Provider: provider}
}

// TypeOf returns the classified type for any error: the pinned type for
// *Error, otherwise the substring classification of its message.
func TypeOf(err error) retry.ErrorType {
	return retry.ClassifyErr(err)
}
