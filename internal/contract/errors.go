package contract

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable classification of engine failures.
type ErrorKind string

// Error kinds. Only EnvironmentFatal aborts a run; the others are isolated
// into diagnostics by the component that observes them.
const (
	IoError          ErrorKind = "IO_ERROR"
	EncodingError    ErrorKind = "ENCODING_ERROR"
	DetectorError    ErrorKind = "DETECTOR_ERROR"
	CacheCorruption  ErrorKind = "CACHE_CORRUPTION"
	FixerFailure     ErrorKind = "FIXER_FAILURE"
	EnvironmentFatal ErrorKind = "ENVIRONMENT_FATAL"
)

// Error is a classified engine error.
type Error struct {
	Kind ErrorKind
	Op   string
	Path string
	Err  error
}

// NewError builds a classified error.
func NewError(kind ErrorKind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg += " " + e.Op
	}
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind, so that
// errors.Is(err, &Error{Kind: IoError}) matches any IoError.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Path == "" && t.Err == nil
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsFatal reports whether err must abort the current run.
func IsFatal(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == EnvironmentFatal
}
