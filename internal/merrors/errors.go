// Package merrors implements memex's structured error type: a closed
// set of error kinds with retry and severity semantics, modeled on the
// teacher's internal/errors package but narrowed to the six kinds named
// by the error-handling design.
package merrors

import "fmt"

// Kind is the closed set of error categories.
type Kind string

const (
	// Io wraps filesystem errors. New marks them Retryable; nothing in
	// memex retries them automatically, so they are surfaced as-is.
	Io Kind = "io"
	// Corruption signals a broken on-disk invariant (dims mismatch,
	// vector/id count mismatch, malformed meta). Fatal to the current
	// operation; the ingest pass aborts without committing.
	Corruption Kind = "corruption"
	// ParseError is a per-record parse failure. Skipped and counted, never
	// surfaced to the caller.
	ParseError Kind = "parse_error"
	// BackendUnavailable means embedder initialization failed; ingest
	// degrades to text-only and the UI shows a status message.
	BackendUnavailable Kind = "backend_unavailable"
	// NotFound means a session or doc_id is absent. Always an empty
	// result, never an error condition by itself — this kind exists so
	// callers that need to distinguish "nothing found" from a real
	// failure can do so via errors.Is.
	NotFound Kind = "not_found"
	// ConfigInvalid means an unknown model tag or malformed TOML. Fatal
	// at startup.
	ConfigInvalid Kind = "config_invalid"
)

// Error is memex's structured error type.
type Error struct {
	Kind      Kind
	Message   string
	Cause     error
	Retryable bool
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is enables errors.Is(err, &Error{Kind: X}) by comparing Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == "" {
		return false
	}
	return e.Kind == t.Kind
}

// New creates an Error of the given kind.
func New(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:      kind,
		Message:   message,
		Cause:     cause,
		Retryable: kind == Io,
	}
}

// Wrap creates an Error from an existing error, or returns nil if err is nil.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return New(kind, err.Error(), err)
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

// Fatal reports whether err should abort the current pass outright
// (Corruption or ConfigInvalid), versus being degradable or swallowed.
func Fatal(err error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Kind == Corruption || e.Kind == ConfigInvalid
}
