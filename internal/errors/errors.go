// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package errors defines typed errors with categories for user-friendly reporting.
// It provides a structured approach to error handling with machine-readable error kinds
// and human-friendly messages, so callers can tell a recoverable auth expiry from a
// size-limit rejection or a consumer disconnect without string matching.
//
// E values wrap an underlying error while keeping the kind, and work with the
// standard library's errors.Is and errors.As.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// Transport indicates a non-2xx HTTP response or network failure.
	Transport Kind = "transport"
	// AuthExpired indicates an invalid or expired session. Recoverable once by refresh.
	AuthExpired Kind = "auth_expired"
	// ProtocolShape indicates a response value that cannot be coerced safely.
	ProtocolShape Kind = "protocol_shape"
	// SizeLimit indicates a download set larger than the configured ceiling.
	SizeLimit Kind = "size_limit"
	// Timeout indicates a single file download exceeded its bound.
	Timeout Kind = "timeout"
	// Canceled indicates the consumer went away. Not an application failure.
	Canceled Kind = "canceled"
	// Validation indicates invalid caller input.
	Validation Kind = "validation"
	// Config indicates unusable configuration.
	Config Kind = "config"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	// Status is the HTTP status code for transport errors, zero otherwise.
	Status int
	// Code is the server's error code when one was reported
	// (e.g. "INVALID_SESSION_ID", "InvalidBatch").
	Code string
	Err  error
}

func (e *E) Error() string {
	msg := e.Message
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *E) Unwrap() error { return e.Err }

// Is matches another *E by kind so errors.Is(err, errors.New(Timeout, "")) works.
func (e *E) Is(target error) bool {
	t, ok := target.(*E)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// Newf builds an E with a formatted message.
func Newf(kind Kind, format string, args ...any) *E {
	return &E{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Request builds a transport-level error carrying the HTTP status and server code.
func Request(status int, code, msg string) *E {
	return &E{Kind: Transport, Message: msg, Status: status, Code: code}
}

// KindOf returns the kind of the first *E in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// StatusOf returns the HTTP status recorded in err's chain, or zero.
func StatusOf(err error) int {
	var e *E
	if stderrors.As(err, &e) {
		return e.Status
	}
	return 0
}
