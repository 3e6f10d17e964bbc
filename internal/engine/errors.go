// internal/engine/errors.go
package engine

import (
	"context"
	"errors"
	"fmt"
)

// Common engine errors
var (
	ErrBrowserNotFound = errors.New("chrome browser not found")
	ErrNoMediaLinks    = errors.New("no media links discovered")
	ErrUnexpectedURL   = errors.New("unexpected redirect")
)

// Kind classifies how a run failed. The string form is what lands in the
// persisted error envelope.
type Kind string

const (
	KindSessionExpired        Kind = "SessionExpired"
	KindAuthenticationFailure Kind = "AuthenticationFailure"
	KindLoginWallDetected     Kind = "LoginWallDetected"
	KindNavigationTimeout     Kind = "NavigationTimeout"
	KindWorkerTimeout         Kind = "WorkerTimeout"
	KindPersistenceFailure    Kind = "PersistenceFailure"
	KindProfileNotFound       Kind = "ProfileNotFound"
	KindPlatformBlocked       Kind = "PlatformBlocked"
	KindInternal              Kind = "InternalError"
)

// Error wraps a failure with its Kind
type Error struct {
	Kind    Kind
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by Kind, otherwise defers to the wrapped error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return errors.Is(e.Err, target)
}

// NewError creates a new Error
func NewError(kind Kind, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	e.Details[key] = value
	return e
}

// KindOf classifies err. Unclassified deadline errors are navigation
// timeouts; anything else is internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindNavigationTimeout
	}
	return KindInternal
}

// Message returns the human readable part of err without the kind prefix.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Err)
		}
		return e.Message
	}
	return err.Error()
}

// ExitCode maps a kind to the worker process exit status.
//
//	0 success, 1 internal error, 2 worker timeout,
//	3 no output produced, 4 persistence failure
func ExitCode(kind Kind) int {
	switch kind {
	case "":
		return 0
	case KindWorkerTimeout:
		return 2
	case KindLoginWallDetected, KindProfileNotFound, KindPlatformBlocked,
		KindAuthenticationFailure, KindSessionExpired:
		return 3
	case KindPersistenceFailure:
		return 4
	default:
		return 1
	}
}

// KindFromExitCode is the inverse used by the supervisor when a worker
// died without writing a result.
func KindFromExitCode(code int) Kind {
	switch code {
	case 0:
		return ""
	case 2:
		return KindWorkerTimeout
	case 4:
		return KindPersistenceFailure
	default:
		return KindInternal
	}
}
