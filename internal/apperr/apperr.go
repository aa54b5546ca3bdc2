// Package apperr classifies economy-core errors so callers can react to
// the kind of failure without parsing error text.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind partitions errors by how callers should handle them.
type Kind int

// Error kinds.
const (
	// KindUnknown is an unclassified internal error.
	KindUnknown Kind = iota
	// KindValidation is a malformed input, rejected before any side effect.
	KindValidation
	// KindConflict is a clash with an in-flight or already-applied
	// operation (locked cart, duplicate line, confirmed attempt).
	KindConflict
	// KindPrecondition is a state the caller can retry after it changes
	// (not funded, insufficient balance, sold out).
	KindPrecondition
	// KindExternalRail is a payment-rail failure; no partial effects were
	// applied and the caller may retry with backoff.
	KindExternalRail
	// KindPersistence means a confirmed payment could not be durably
	// recorded; the external reference has been queued for recovery.
	KindPersistence
	// KindNotFound is a missing entity.
	KindNotFound
)

// Error is a kind-tagged error, optionally wrapping a cause.
type Error struct {
	kind Kind
	msg  string
	err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.err }

// Kind returns the error's classification.
func (e *Error) Kind() Kind { return e.kind }

// New builds a kind-tagged error.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap tags an existing error with a kind and context message.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), err: err}
}

// Validation builds a KindValidation error.
func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

// Precondition builds a KindPrecondition error.
func Precondition(format string, args ...any) *Error {
	return New(KindPrecondition, format, args...)
}

// Conflict builds a KindConflict error.
func Conflict(format string, args ...any) *Error {
	return New(KindConflict, format, args...)
}

// NotFound builds a KindNotFound error.
func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

// KindOf extracts the kind from an error chain, KindUnknown when untagged.
func KindOf(err error) Kind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.kind
	}
	return KindUnknown
}

// HTTPStatus maps an error kind to a response status. User-visible
// messages come from the kind, never from raw rail error text.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict, KindPrecondition:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindExternalRail:
		return http.StatusBadGateway
	case KindPersistence:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
