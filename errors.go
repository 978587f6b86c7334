package kvstore

import (
	"errors"
	"fmt"
)

// Sentinel errors for backend and lock conditions
var (
	// Backend errors
	ErrNotFound           = errors.New("object not found")
	ErrAlreadyExists      = errors.New("object already exists")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrUnauthorized       = errors.New("unauthorized access")

	// Lock errors
	ErrLockHeld = errors.New("lock already held by another process")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Protocol errors. Their Error() text is the exact message carried on the
// wire, so renaming one changes the protocol.
var (
	ErrInvalidCommand      = errors.New("Invalid command")
	ErrNilValue            = errors.New("Cannot SET key to NIL")
	ErrUnclosedString      = errors.New("Unclosed string")
	ErrInTransaction       = errors.New("Already in transaction")
	ErrNoTransaction       = errors.New("no_transaction")
	ErrNoActiveTransaction = errors.New("No active transaction")
)

// InvalidKeyError reports a token that is not usable as a key: a run of
// decimal digits or a reserved protocol token.
type InvalidKeyError struct {
	Token string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("Value %s is not valid as key", e.Token)
}

// AtomicityError reports a commit-time validation failure: the named key
// has a committed value different from the one recorded at first read.
type AtomicityError struct {
	Key string
}

func (e *AtomicityError) Error() string {
	return fmt.Sprintf("Atomicity failure (%s)", e.Key)
}

// ErrorWithContext adds additional context to errors for better debugging and logging
type ErrorWithContext struct {
	Err     error
	Context map[string]interface{}
}

func (e *ErrorWithContext) Error() string {
	if len(e.Context) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v (context: %+v)", e.Err, e.Context)
}

func (e *ErrorWithContext) Unwrap() error {
	return e.Err
}

// WithContext adds context to an error
func WithContext(err error, context map[string]interface{}) error {
	if err == nil {
		return nil
	}
	return &ErrorWithContext{
		Err:     err,
		Context: context,
	}
}

// Common error checking helpers

// IsNotFound checks if an error is a "not found" error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an "already exists" error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsAtomicityFailure checks if an error is a commit validation failure
func IsAtomicityFailure(err error) bool {
	var ae *AtomicityError
	return errors.As(err, &ae)
}

// IsProtocolError reports whether an error belongs on the wire as an
// ERR response rather than signalling an internal fault.
func IsProtocolError(err error) bool {
	if IsAtomicityFailure(err) {
		return true
	}
	var ke *InvalidKeyError
	if errors.As(err, &ke) {
		return true
	}
	return errors.Is(err, ErrInvalidCommand) ||
		errors.Is(err, ErrNilValue) ||
		errors.Is(err, ErrUnclosedString) ||
		errors.Is(err, ErrInTransaction) ||
		errors.Is(err, ErrNoTransaction) ||
		errors.Is(err, ErrNoActiveTransaction)
}

// IsRetryable checks if an error is safe to retry
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBackendUnavailable) || errors.Is(err, ErrLockHeld)
}
