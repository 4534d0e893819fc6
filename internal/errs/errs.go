// Package errs defines the tagged error variants propagated across the
// core boundary. No exception-style control flow crosses a package
// boundary: every failure is a *CoreError carrying a machine-readable
// Kind plus a human-readable message, as called for by the "replace
// exceptions with tagged result types" design note.
package errs

import (
	"errors"
	"fmt"
)

// Kind tags the category of a CoreError.
type Kind string

const (
	KindIntegrityMismatch     Kind = "IntegrityMismatch"
	KindKeyExists             Kind = "KeyExists"
	KindInvalidKey            Kind = "InvalidKey"
	KindNotFound              Kind = "NotFound"
	KindStoreUnavailable      Kind = "StoreUnavailable"
	KindCaseNotFoundOrDenied  Kind = "CaseNotFoundOrDenied"
	KindAlgorithmNotRegistered Kind = "AlgorithmNotRegistered"
	KindValidationError       Kind = "ValidationError"
)

// CoreError is the single tagged error type used throughout the module.
type CoreError struct {
	Kind    Kind
	Message string
	Wrapped error
}

func (e *CoreError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error { return e.Wrapped }

// Is allows errors.Is(err, errs.New(KindNotFound, "")) style comparisons
// by Kind alone, ignoring Message/Wrapped.
func (e *CoreError) Is(target error) bool {
	var other *CoreError
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New constructs a CoreError of the given kind.
func New(kind Kind, message string) *CoreError {
	return &CoreError{Kind: kind, Message: message}
}

// Wrap constructs a CoreError of the given kind wrapping an underlying error.
func Wrap(kind Kind, message string, err error) *CoreError {
	return &CoreError{Kind: kind, Message: message, Wrapped: err}
}

// Sentinel instances for errors.Is comparisons against a fixed kind with no
// message, mirroring the teacher's package-level Err* variables.
var (
	ErrIntegrityMismatch      = New(KindIntegrityMismatch, "integrity mismatch")
	ErrKeyExists              = New(KindKeyExists, "key already exists")
	ErrInvalidKey             = New(KindInvalidKey, "invalid key")
	ErrNotFound               = New(KindNotFound, "not found")
	ErrStoreUnavailable       = New(KindStoreUnavailable, "store unavailable")
	ErrCaseNotFoundOrDenied   = New(KindCaseNotFoundOrDenied, "case not found or access denied")
	ErrAlgorithmNotRegistered = New(KindAlgorithmNotRegistered, "algorithm not registered")
	ErrValidationError        = New(KindValidationError, "validation error")
)

// KindOf extracts the Kind from err, if it is (or wraps) a *CoreError.
func KindOf(err error) (Kind, bool) {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}
