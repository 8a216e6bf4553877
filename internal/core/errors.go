package core

import "fmt"

// ErrorKind classifies a DomainError into one of five buckets. Callers
// at the edges (CLI, any future transport) map Kind to exit codes or
// status codes without needing to inspect Message.
type ErrorKind string

const (
	// KindCapability means the caller lacks permission for the
	// requested operation (SelfSubjectAccessReview denied, RBAC
	// forbidden).
	KindCapability ErrorKind = "capability"
	// KindValidation means the request itself is malformed: bad YAML,
	// oversized manifest, missing required field.
	KindValidation ErrorKind = "validation"
	// KindConflict means the request was well-formed but collided with
	// concurrent state: stale resourceVersion, already-exists.
	KindConflict ErrorKind = "conflict"
	// KindNotFound means the referenced object, GVK, or session does
	// not exist.
	KindNotFound ErrorKind = "not_found"
	// KindInternal means an unexpected failure on our side: transport
	// error, marshal failure, programmer error.
	KindInternal ErrorKind = "internal"
)

// DomainError is the single error type returned across package
// boundaries in Orka. Kind lets callers branch on category without
// string-matching Message; Cause preserves the underlying error for
// logging and errors.Is/As chains.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// NewDomainError builds a DomainError of the given kind.
func NewDomainError(kind ErrorKind, message string, cause error) *DomainError {
	return &DomainError{Kind: kind, Message: message, Cause: cause}
}

// Kind returns the ErrorKind of err if it is (or wraps) a *DomainError,
// and KindInternal otherwise — any error Orka didn't deliberately
// classify is treated as an internal failure rather than surfaced to
// the caller as validation or capability.
func Kind(err error) ErrorKind {
	var de *DomainError
	if asDomainError(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// asDomainError is a small local errors.As to avoid importing the
// "errors" package just for this one call site in files that don't
// otherwise need it; kept here so every caller of Kind shares the same
// unwrap behaviour.
func asDomainError(err error, target **DomainError) bool {
	for err != nil {
		if de, ok := err.(*DomainError); ok {
			*target = de
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

// ErrStaleResourceVersion is returned by the apply preflight guard when
// the live object's resourceVersion no longer matches the version the
// caller last observed.
type ErrStaleResourceVersion struct {
	Prev string
	Cur  string
}

func (e *ErrStaleResourceVersion) Error() string {
	return fmt.Sprintf("live object changed (rv %s -> %s) during apply, retry with a fresh get", e.Prev, e.Cur)
}

// ErrNotReady indicates that a required subsystem has not finished
// initializing yet (e.g. the first relist hasn't completed).
type ErrNotReady struct {
	Subsystem string
}

func (e *ErrNotReady) Error() string {
	return fmt.Sprintf("%s not ready", e.Subsystem)
}
