// Package errs provides the unified error type used across all of tabula.
//
// Every subsystem (typed access, copy streams, drivers, filestore, …) wraps
// its native errors into *errs.Error before returning them to callers.
// Callers use the Is* predicates to handle errors without importing
// driver-specific packages.
//
// Usage:
//
//	// In a driver, wrap native errors:
//	return errs.Wrap(errs.ErrKindTimeout, "copy timed out", pgErr)
//
//	// In a caller, check the error kind:
//	if errs.IsOutOfRange(err) {
//	    // bad column index or unknown column name
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // no rows, no object, no bucket
	ErrKindConnectionFailed         // cannot reach the backend
	ErrKindTimeout                  // context deadline / cancellation
	ErrKindQueryFailed              // SQL or storage operation error
	ErrKindInvalidInput             // bad arguments from the caller
	ErrKindPermissionDenied         // access denied / auth failure
	ErrKindOutOfRange               // row/column index or name outside the view
	ErrKindConversion               // text cannot be decoded into the target type
	ErrKindConfiguration            // a codec or type binding is unusable
	ErrKindProtocolMisuse           // operation not allowed in the current session state
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindOutOfRange:
		return "out_of_range"
	case ErrKindConversion:
		return "conversion"
	case ErrKindConfiguration:
		return "configuration"
	case ErrKindProtocolMisuse:
		return "protocol_misuse"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all tabula subsystems.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original error, preserved for logging
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

// Newf is New with a format string.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a "not found" result.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity or auth failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a backend operation failure.
func IsQueryFailed(err error) bool {
	return KindOf(err) == ErrKindQueryFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// IsOutOfRange reports whether err is a bad row/column index, an unknown
// column name or a column count mismatch.
func IsOutOfRange(err error) bool {
	return KindOf(err) == ErrKindOutOfRange
}

// IsConversion reports whether err is a malformed or NULL value that could
// not be decoded into the requested type.
func IsConversion(err error) bool {
	return KindOf(err) == ErrKindConversion
}

// IsConfiguration reports whether err is a misconfigured codec or type binding.
func IsConfiguration(err error) bool {
	return KindOf(err) == ErrKindConfiguration
}

// IsProtocolMisuse reports whether err is an operation issued in a session
// state that does not allow it (e.g. a statement while a copy is open).
func IsProtocolMisuse(err error) bool {
	return KindOf(err) == ErrKindProtocolMisuse
}

// KindOf extracts the ErrKind from any error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
