package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies failures so the request boundary can translate them into
// structured responses instead of leaking raw errors.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindConfiguration Kind = "configuration"
	KindConnectivity  Kind = "connectivity"
	KindUpstream      Kind = "upstream"
	KindProtocol      Kind = "protocol"
)

// Error is the shared error shape for the taxonomy. Status carries the HTTP
// status of an upstream response when Kind is KindUpstream.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports rejected input that must never reach the index.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Configuration reports a fatal misconfiguration for the current operation.
func Configuration(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

// Connectivity wraps an unreachable-backend failure.
func Connectivity(err error, format string, args ...any) *Error {
	return &Error{Kind: KindConnectivity, Message: fmt.Sprintf(format, args...), Err: err}
}

// Upstream wraps a non-2xx response from an external backend.
func Upstream(status int, body string) *Error {
	return &Error{Kind: KindUpstream, Status: status, Message: body}
}

// Protocol reports a response that lacks the expected structure.
func Protocol(format string, args ...any) *Error {
	return &Error{Kind: KindProtocol, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the taxonomy kind from err, or "" for untyped errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IsKind reports whether err belongs to the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
