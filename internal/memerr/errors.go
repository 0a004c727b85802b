// Package memerr defines the error kinds shared across the memory
// subsystem's components, and a wrapper that attaches operation context
// to an underlying error without losing errors.Is/errors.As compatibility.
package memerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error the way spec §7 requires: callers branch on
// Kind, not on error string matching.
type Kind string

const (
	// KindNotFound means the requested row/entity was absent. Stores
	// return this as a nil/false result, not as an error, wherever the
	// spec calls for "not found" to be silent; Kind exists for the paths
	// (e.g. tool handlers) that must still report it in-band.
	KindNotFound Kind = "not_found"

	// KindValidation means the caller passed invalid input. Never retried.
	KindValidation Kind = "validation"

	// KindStorageUnavailable means the local sqlite store could not be
	// reached or a write failed. Always surfaced, never swallowed.
	KindStorageUnavailable Kind = "storage_unavailable"

	// KindRemoteTransient means a vector-database request failed in a way
	// classified as retryable (network, connection-refused, timeout,
	// abort, or an HTTP 429/5xx status). VectorGateway retries these per
	// spec §4.3.
	KindRemoteTransient Kind = "remote_transient"

	// KindRemoteRejected means the vector database returned a non-retryable
	// HTTP status (anything other than 429 or 5xx). Surfaces immediately with the remote status code.
	KindRemoteRejected Kind = "remote_rejected"

	// KindExtractionFailure means the LLM extractor could not produce a
	// usable result (HTTP failure or unparsable response). Callers treat
	// this as an empty extraction, never as a hard failure.
	KindExtractionFailure Kind = "extraction_failure"

	// KindCascadeFailure marks a partial failure inside a batch operation
	// (e.g. one slot update in a batch of updates) that must not abort the
	// rest of the batch.
	KindCascadeFailure Kind = "cascade_failure"
)

// Error wraps an underlying error with the operation that failed and its
// Kind, mirroring the teacher's MemoryError but with a Kind field so
// callers can categorize failures instead of pattern-matching messages.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

// Error returns "memcore: <op>: <kind>: <err>".
func (e *Error) Error() string {
	return fmt.Sprintf("memcore: %s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap allows errors.Is/errors.As to see through to Err.
func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap creates an *Error, or returns nil if err is nil.
func Wrap(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// As reports whether err is (or wraps) a *Error and returns it.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is a *Error, or "" otherwise.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// Predefined sentinel errors for common failure scenarios, kept close to
// the teacher's set of package-level sentinels so callers can still use
// errors.Is against a stable value in addition to Kind.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrStorageUnavailable  = errors.New("storage unavailable")
	ErrRemoteUnavailable   = errors.New("remote collaborator unavailable")
	ErrExtractionFailed    = errors.New("extraction failed")
	ErrScopeMismatch       = errors.New("entity does not exist in scope")
	ErrDuplicateConstraint = errors.New("uniqueness constraint violated")
)
