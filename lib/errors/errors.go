// Package errors defines the error taxonomy shared by respool packages.
//
// Pool failures are sentinels matched with errors.Is. A structured Error
// pairs a Code with a message that is safe to log or print; the cause,
// which may carry a DSN or password, stays in Err. A structured Error
// matches the sentinel of its Code, so IsConfiguration holds for
// Wrap(CodeConfiguration, ...) without wrapping ErrConfiguration.
package errors

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// Code categorizes a failure for logs and exit reporting.
type Code int

// Error codes.
const (
	CodeInternal        Code = 1000 // unclassified failure
	CodeInvalidInput    Code = 1001 // invalid argument from the caller
	CodeConfiguration   Code = 1002 // invalid or unreadable configuration
	CodeTimeout         Code = 1003 // acquire deadline elapsed
	CodeUnknownResource Code = 1004 // release of a resource the pool does not hold
	CodeClosed          Code = 1005 // pool is closed
	CodeFactory         Code = 1006 // resource factory failed
	CodeConnection      Code = 1007 // collaborator could not connect
	CodeCircuitOpen     Code = 1008 // factory rejected by an open circuit breaker
)

// Sentinel errors.
var (
	// ErrTimeout indicates Acquire could not obtain a resource before its
	// deadline. The pool state is unchanged and the caller may retry.
	ErrTimeout = errors.New("pool: acquire timed out")

	// ErrUnknownResource indicates Release was called with a resource that
	// is not currently held: a double release, a resource from another
	// pool, or one that was never acquired.
	ErrUnknownResource = errors.New("pool: release of unknown resource")

	// ErrClosed indicates the pool has been closed.
	ErrClosed = errors.New("pool: closed")

	// ErrFactory marks an error returned by a resource factory.
	ErrFactory = errors.New("pool: factory")

	// ErrCircuitOpen indicates a guarded factory was not called because its
	// circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	ErrInvalidInput  = errors.New("invalid input")
	ErrConfiguration = errors.New("configuration error")
	ErrConnection    = errors.New("connection error")
	ErrInternal      = errors.New("internal error")
)

// Pool errors derived from the general sentinels.
var (
	// ErrNoFactory indicates neither the pool nor the call supplied a factory.
	ErrNoFactory = fmt.Errorf("pool: no factory: %w", ErrInvalidInput)

	// ErrInvalidCapacity indicates a capacity below one.
	ErrInvalidCapacity = fmt.Errorf("pool: capacity must be at least 1: %w", ErrConfiguration)
)

// Database collaborator errors.
var (
	ErrUnknownDriver   = fmt.Errorf("dbconn: unknown driver: %w", ErrConfiguration)
	ErrMissingHost     = fmt.Errorf("dbconn: host is required: %w", ErrConfiguration)
	ErrMissingDatabase = fmt.Errorf("dbconn: database is required: %w", ErrConfiguration)
)

// classes lists each code with its sentinel and name. CodeOf walks it in
// order, so the more specific classes come before those they overlap:
// a factory error caused by an open circuit is CodeCircuitOpen.
var classes = []struct {
	code     Code
	sentinel error
	name     string
}{
	{CodeTimeout, ErrTimeout, "timeout"},
	{CodeUnknownResource, ErrUnknownResource, "unknown_resource"},
	{CodeCircuitOpen, ErrCircuitOpen, "circuit_open"},
	{CodeClosed, ErrClosed, "closed"},
	{CodeFactory, ErrFactory, "factory"},
	{CodeConfiguration, ErrConfiguration, "configuration"},
	{CodeInvalidInput, ErrInvalidInput, "invalid_input"},
	{CodeConnection, ErrConnection, "connection"},
	{CodeInternal, ErrInternal, "internal"},
}

// String returns the code's short name, such as "timeout".
func (c Code) String() string {
	for _, cl := range classes {
		if cl.code == c {
			return cl.name
		}
	}
	return "code(" + strconv.Itoa(int(c)) + ")"
}

// Sentinel returns the sentinel error for c, or nil for an unknown code.
func (c Code) Sentinel() error {
	for _, cl := range classes {
		if cl.code == c {
			return cl.sentinel
		}
	}
	return nil
}

// FactoryError wraps err so it matches both ErrFactory and err itself.
// It returns nil when err is nil.
func FactoryError(err error) error {
	if err == nil {
		return nil
	}
	return &factoryError{cause: err}
}

type factoryError struct {
	cause error
}

func (e *factoryError) Error() string {
	return ErrFactory.Error() + ": " + e.cause.Error()
}

func (e *factoryError) Unwrap() []error {
	return []error{ErrFactory, e.cause}
}

// Error is a coded failure. Message is safe to print; Err is the cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's code.
func (e *Error) Is(target error) bool {
	s := e.Code.Sentinel()
	return s != nil && s == target
}

// New returns a coded error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap returns a coded error around err. The message should not repeat
// anything sensitive from err.
func Wrap(code Code, message string, err error) *Error {
	if err != nil {
		log.WithField("code", code.String()).WithError(err).Debug("wrapping error")
	}
	return &Error{Code: code, Message: message, Err: err}
}

// FromSentinel returns a coded error for err using CodeOf.
// It returns nil when err is nil.
func FromSentinel(err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: CodeOf(err), Message: err.Error(), Err: err}
}

// CodeOf returns the code for err. A structured *Error in the chain keeps
// its own code; anything unrecognised is CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	for _, cl := range classes {
		if errors.Is(err, cl.sentinel) {
			return cl.code
		}
	}
	return CodeInternal
}

// IsTimeout reports whether err is an acquire timeout.
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }

// IsUnknownResource reports whether err is a release of an untracked resource.
func IsUnknownResource(err error) bool { return errors.Is(err, ErrUnknownResource) }

// IsClosed reports whether err indicates a closed pool.
func IsClosed(err error) bool { return errors.Is(err, ErrClosed) }

// IsFactory reports whether err came from a resource factory.
func IsFactory(err error) bool { return errors.Is(err, ErrFactory) }

// IsCircuitOpen reports whether a circuit breaker rejected the call.
func IsCircuitOpen(err error) bool { return errors.Is(err, ErrCircuitOpen) }

func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }
func IsConfiguration(err error) bool { return errors.Is(err, ErrConfiguration) }

// IsRetriable reports whether the caller may retry the failed operation
// unchanged. Only acquire timeouts qualify; misuse and closed pools do not.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// Join, Is and As re-export the standard library so callers need one
// errors import.
func Join(errs ...error) error { return errors.Join(errs...) }
func Is(err, target error) bool { return errors.Is(err, target) }
func As(err error, target any) bool { return errors.As(err, target) }
