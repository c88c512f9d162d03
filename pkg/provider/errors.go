package provider

import (
	"context"
	"errors"
	"fmt"
	"net"

	"contentforge/internal/model"
)

// ErrorKind classifies a provider failure for the fallback chain.
type ErrorKind string

const (
	KindUnavailable ErrorKind = "unavailable" // transient, try next provider
	KindTimeout     ErrorKind = "timeout"     // transient, try next provider
	KindRejected    ErrorKind = "rejected"    // request malformed/policy-blocked, do NOT retry elsewhere
)

// Error is a typed provider failure.
type Error struct {
	Provider model.ProviderType
	Kind     ErrorKind
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s %s: %s: %v", e.Provider, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("provider %s %s: %s", e.Provider, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the fallback chain may move to the next provider.
func (e *Error) Retryable() bool { return e.Kind != KindRejected }

// NewUnavailable builds an unavailable error.
func NewUnavailable(p model.ProviderType, msg string, err error) *Error {
	return &Error{Provider: p, Kind: KindUnavailable, Message: msg, Err: err}
}

// NewTimeout builds a timeout error.
func NewTimeout(p model.ProviderType, msg string, err error) *Error {
	return &Error{Provider: p, Kind: KindTimeout, Message: msg, Err: err}
}

// NewRejected builds a rejected error.
func NewRejected(p model.ProviderType, msg string, err error) *Error {
	return &Error{Provider: p, Kind: KindRejected, Message: msg, Err: err}
}

// Classify wraps an arbitrary transport error into a typed provider error.
// Deadline and timeout errors become KindTimeout, everything else transient
// becomes KindUnavailable.
func Classify(p model.ProviderType, msg string, err error) *Error {
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeout(p, msg, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewTimeout(p, msg, err)
	}
	return NewUnavailable(p, msg, err)
}

// ClassifyStatus maps an HTTP status code from a provider API to an error kind.
// 4xx (except 408/429) means the request itself was refused and must not be
// retried against other providers.
func ClassifyStatus(p model.ProviderType, status int, body string) *Error {
	msg := fmt.Sprintf("http %d: %s", status, truncate(body, 200))
	switch {
	case status == 408 || status == 504:
		return NewTimeout(p, msg, nil)
	case status == 429 || status >= 500:
		return NewUnavailable(p, msg, nil)
	case status >= 400:
		return NewRejected(p, msg, nil)
	default:
		return NewUnavailable(p, msg, nil)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
