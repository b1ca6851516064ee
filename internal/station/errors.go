package station

import (
	"errors"
	"fmt"
)

// ErrorKind represents the category of error returned by the orchestrator
type ErrorKind int

const (
	// KindInit indicates a collaborator could not start
	KindInit ErrorKind = iota
	// KindNotInitialized indicates an operation needs a successful Initialize first
	KindNotInitialized
	// KindPersistence indicates the credential store failed to save, load or erase
	KindPersistence
	// KindAttemptFailed indicates a connection or provisioning attempt could not be started
	KindAttemptFailed
	// KindInvalidArgument indicates a credential or parameter outside its bounds
	KindInvalidArgument
	// KindClosed indicates the orchestrator has been torn down
	KindClosed
)

// String returns a human-readable name for the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindInit:
		return "init error"
	case KindNotInitialized:
		return "not initialized"
	case KindPersistence:
		return "persistence error"
	case KindAttemptFailed:
		return "attempt failed"
	case KindInvalidArgument:
		return "invalid argument"
	case KindClosed:
		return "closed"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// StationError is returned by every Orchestrator operation that fails.
type StationError struct {
	Kind    ErrorKind // Category of error
	Op      string    // Operation that failed (e.g. "connect")
	Message string    // Human-readable detail
	Err     error     // Underlying error (if any)
}

// Sentinels for errors.Is. They match any *StationError of the same kind.
var (
	ErrInit            = &StationError{Kind: KindInit}
	ErrNotInitialized  = &StationError{Kind: KindNotInitialized}
	ErrPersistence     = &StationError{Kind: KindPersistence}
	ErrAttemptFailed   = &StationError{Kind: KindAttemptFailed}
	ErrInvalidArgument = &StationError{Kind: KindInvalidArgument}
	ErrClosed          = &StationError{Kind: KindClosed}
)

func newError(kind ErrorKind, op, message string, err error) *StationError {
	return &StationError{Kind: kind, Op: op, Message: message, Err: err}
}

// Error implements the error interface
func (e *StationError) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Err)
	}
	return "station: " + msg
}

// Unwrap returns the underlying error for error chain inspection
func (e *StationError) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind.
func (e *StationError) Is(target error) bool {
	t, ok := target.(*StationError)
	if !ok {
		return false
	}
	return t.Op == "" && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

func kindOf(err error) (ErrorKind, bool) {
	var se *StationError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}

// IsInitError checks if an error is an init error
func IsInitError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindInit
}

// IsNotInitialized checks if an error reports a missing Initialize
func IsNotInitialized(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindNotInitialized
}

// IsPersistenceError checks if an error came from the credential store
func IsPersistenceError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindPersistence
}

// IsAttemptFailed checks if an error reports a failed attempt
func IsAttemptFailed(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindAttemptFailed
}
