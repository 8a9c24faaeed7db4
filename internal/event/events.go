package event

import "fmt"

// DeadEvent wraps an event that matched no receivers. It is published once
// per unmatched event; a DeadEvent that itself matches nothing is dropped.
type DeadEvent struct {
	// Bus is the bus the event was published on.
	Bus *Bus

	// Event is the original event.
	Event any
}

// String returns a human-readable description.
func (e *DeadEvent) String() string {
	return fmt.Sprintf("DeadEvent{bus=%s, event=%T}", e.Bus.Identifier(), e.Event)
}

// FailureEvent reports a receiver fault: a returned error or a recovered
// panic. Faults raised while handling a FailureEvent are logged and dropped.
type FailureEvent struct {
	// Bus is the bus the faulting delivery ran on.
	Bus *Bus

	// Listener is the listener owning the faulting receiver.
	Listener any

	// Method is the faulting receiver method name.
	Method string

	// Event is the event being delivered.
	Event any

	// Cause is the receiver's error, or a *PanicError.
	Cause error
}

// String returns a human-readable description.
func (e *FailureEvent) String() string {
	return fmt.Sprintf("FailureEvent{bus=%s, receiver=%T.%s, event=%T, cause=%v}",
		e.Bus.Identifier(), e.Listener, e.Method, e.Event, e.Cause)
}
