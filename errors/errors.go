package errors

import (
	stderrors "errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// Sentinel errors. Errors returned by New and Wrapf keep them reachable
// through Is when they are passed as the wrapped error.
var (
	// ErrInvalidHandler reports a link handler that cannot be registered.
	ErrInvalidHandler = stderrors.New("invalid link handler")
	// ErrInvalidConfig reports a configuration file that failed validation.
	ErrInvalidConfig = stderrors.New("invalid configuration")
	// ErrUnknownDecoration reports an activation for a decoration that is
	// no longer on screen.
	ErrUnknownDecoration = stderrors.New("unknown decoration")
)

// New creates a new error with file and line number information.
func New(format string, a ...interface{}) error {
	return fmt.Errorf("[%s] %s", caller(), fmt.Sprintf(format, a...))
}

// Wrapf adds context (including file and line number) to an existing error.
// If the provided error is nil, Wrapf returns nil.
func Wrapf(err error, format string, a ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("[%s] %s: %w", caller(), fmt.Sprintf(format, a...), err)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// caller returns "file:line" of the function that called New or Wrapf.
func caller() string {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return "???:0"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}
