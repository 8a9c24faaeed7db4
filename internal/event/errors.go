package event

import (
	"errors"
	"fmt"
	"reflect"
)

// Sentinel errors for the event bus.
var (
	// ErrNilEvent is returned when a nil value or nil pointer is published.
	ErrNilEvent = errors.New("event cannot be nil")

	// ErrNilListener is returned when a nil listener is registered.
	ErrNilListener = errors.New("listener cannot be nil")

	// ErrInvalidListener is returned when a listener is not a pointer.
	ErrInvalidListener = errors.New("listener must be a non-nil pointer")

	// ErrInvalidReceiver is matched by every ConfigError.
	ErrInvalidReceiver = errors.New("invalid receiver method")

	// ErrReceiverPanic is matched by every PanicError.
	ErrReceiverPanic = errors.New("receiver panicked")
)

// ConfigError describes a malformed receiver declaration found at
// registration time. The whole registration is rejected.
type ConfigError struct {
	// Listener is the type of the listener being registered.
	Listener reflect.Type

	// Method is the offending method name, if any.
	Method string

	// Reason describes what is wrong.
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("invalid listener %v: %s", e.Listener, e.Reason)
	}
	return fmt.Sprintf("invalid receiver %v.%s: %s", e.Listener, e.Method, e.Reason)
}

// Is allows errors.Is to match ConfigError with ErrInvalidReceiver.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidReceiver
}

// InvocationError reports a broken contract between the index and a
// receiver, such as an event that cannot be converted to the receiver's
// parameter type. It is raised with panic and never converted into a
// FailureEvent.
type InvocationError struct {
	// Listener is the type of the listener owning the receiver.
	Listener reflect.Type

	// Method is the receiver method name.
	Method string

	// Event is the type of the event being delivered.
	Event reflect.Type

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *InvocationError) Error() string {
	return fmt.Sprintf("cannot invoke %v.%s with %v: %v", e.Listener, e.Method, e.Event, e.Err)
}

// Unwrap returns the underlying error.
func (e *InvocationError) Unwrap() error {
	return e.Err
}

// PanicError wraps a panic recovered from a receiver body.
type PanicError struct {
	// Listener is the type of the listener owning the receiver.
	Listener reflect.Type

	// Method is the receiver method name.
	Method string

	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("receiver %v.%s panicked: %v", e.Listener, e.Method, e.Value)
}

// Is allows errors.Is to match PanicError with ErrReceiverPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrReceiverPanic
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
