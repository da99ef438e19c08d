// Package errs provides the unified error type used across the assistant.
//
// Every subsystem (warehouse, auth, discovery, archive, …) wraps its native
// errors into *errs.Error before returning them to callers. Callers use the
// Is* predicates or Kind to handle errors without importing driver-specific
// packages.
//
// Usage:
//
//	// In a driver, wrap native errors:
//	return errs.Wrap(errs.ErrKindTimeout, "query timed out", sqlErr)
//
//	// In a caller, check error kind:
//	if errs.IsPermissionDenied(err) {
//	    // record the tier as restricted and keep going
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
// The warehouse driver maps native SQL Server error numbers to one of these
// kinds; the discovery engine keys its fallback policy off them.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // no rows, missing table or object
	ErrKindConnectionFailed         // cannot reach the SQL endpoint
	ErrKindAuthFailed               // token acquisition or login failure
	ErrKindTimeout                  // context deadline / cancellation
	ErrKindQueryFailed              // SQL execution or scan error
	ErrKindInvalidInput             // bad arguments from the caller
	ErrKindPermissionDenied         // access to an object was denied
	ErrKindIncompatible             // feature or view unsupported by this deployment
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindAuthFailed:
		return "auth_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindIncompatible:
		return "incompatible"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all assistant subsystems.
// Drivers produce it; callers inspect it via Kind or the Is* predicates.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a "not found" result.
func IsNotFound(err error) bool {
	return Kind(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return Kind(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity failure.
func IsConnectionFailed(err error) bool {
	return Kind(err) == ErrKindConnectionFailed
}

// IsAuthFailed reports whether err is a token or login failure.
func IsAuthFailed(err error) bool {
	return Kind(err) == ErrKindAuthFailed
}

// IsQueryFailed reports whether err is a SQL execution failure.
func IsQueryFailed(err error) bool {
	return Kind(err) == ErrKindQueryFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return Kind(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return Kind(err) == ErrKindPermissionDenied
}

// IsIncompatible reports whether err means the backend does not support the
// queried feature or system view.
func IsIncompatible(err error) bool {
	return Kind(err) == ErrKindIncompatible
}

// Kind extracts the ErrKind from any error in the chain.
// Returns ErrKindUnknown for nil or foreign errors.
func Kind(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}

// IsFatal reports whether err belongs to a class that must abort an operation
// outright rather than degrade it: connectivity, auth, and timeouts.
func IsFatal(err error) bool {
	switch Kind(err) {
	case ErrKindConnectionFailed, ErrKindAuthFailed, ErrKindTimeout:
		return true
	default:
		return false
	}
}
