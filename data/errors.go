package data

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Configuration errors. They are returned synchronously by the call that
// detected them and never travel through a promise.
var (
	ErrInvalid         = errors.New("feather: invalid argument")
	ErrInvalidPath     = errors.New("feather: invalid path")
	ErrUnsupported     = errors.New("feather: operation not supported")
	ErrUnsupportedGlob = errors.New("feather: recursive glob not supported")
	ErrIllegalState    = errors.New("feather: illegal state transition")
	ErrOrientation     = errors.New("feather: incompatible pipe orientation")
	ErrConnected       = errors.New("feather: pipe already connected")
)

// Operational errors reported by sessions and backends.
var (
	ErrNotExist          = errors.New("feather: object does not exist")
	ErrExist             = errors.New("feather: object already exists")
	ErrIsDirectory       = errors.New("feather: is a directory")
	ErrNotDirectory      = errors.New("feather: not a directory")
	ErrIsSymlink         = errors.New("feather: symbolic link")
	ErrPermission        = errors.New("feather: permission denied")
	ErrReadOnly          = errors.New("feather: read-only session")
	ErrDirectoryNotEmpty = errors.New("feather: directory not empty")
	ErrTooLarge          = errors.New("feather: object exceeds backend size limit")
	ErrClosed            = errors.New("feather: session closed")
	ErrOpenFailed        = errors.New("feather: session initialization failed")
	ErrMalformedAddress  = errors.New("feather: malformed backend address")
	ErrUnknownScheme     = errors.New("feather: unknown backend scheme")
)

// ErrCanceled and ErrTimeout are distinguished from operational failures so
// callers can tell an aborted operation from a failed one.
var (
	ErrCanceled = &kindError{msg: "feather: operation canceled", target: context.Canceled}
	ErrTimeout  = &kindError{msg: "feather: operation timed out", target: context.DeadlineExceeded}
)

type kindError struct {
	msg    string
	target error
}

func (e *kindError) Error() string {
	return e.msg
}

// Is lets errors.Is(ErrCanceled, context.Canceled) hold, so callers that
// only know about context errors still classify them correctly.
func (e *kindError) Is(target error) bool {
	return target == e.target
}

// IsCanceled reports whether err is a cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}

// IsTimeout reports whether err came from a deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// IsConfiguration reports whether err belongs to the configuration class.
func IsConfiguration(err error) bool {
	for _, target := range []error{
		ErrInvalid, ErrInvalidPath, ErrUnsupported, ErrUnsupportedGlob,
		ErrIllegalState, ErrOrientation, ErrConnected,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ResourceError is an operational failure carrying the resource it
// originated from.
type ResourceError struct {
	Op   string
	Path string
	Err  error
}

// NewResourceError wraps err unless it already is a ResourceError, in which
// case the innermost context is kept.
func NewResourceError(op, path string, err error) error {
	if err == nil {
		return nil
	}

	var re *ResourceError
	if errors.As(err, &re) {
		return err
	}

	return &ResourceError{Op: op, Path: path, Err: err}
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// Errors collects failures from concurrent workers.
type Errors struct {
	mu     sync.RWMutex
	errors []error
}

func (e *Errors) Add(err error) {
	if err == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.errors = append(e.errors, err)
}

func (e *Errors) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.errors)
}

func (e *Errors) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.errors = nil
}

func (e *Errors) Errors() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.errors) == 0 {
		return nil
	}

	return errors.Join(e.errors...)
}
