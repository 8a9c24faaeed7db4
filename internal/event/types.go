package event

import (
	"context"
	"fmt"
	"reflect"
)

// Key identifies a set of receivers in the index.
//
// Ordinary receivers are keyed by their parameter type alone. Receivers of
// a typed container also carry the payload type, so TypedEvent[string] and
// TypedEvent[int] land in different sets.
type Key struct {
	Type    reflect.Type
	Payload reflect.Type
}

// String returns a human-readable key.
func (k Key) String() string {
	if k.Payload == nil {
		return k.Type.String()
	}
	return fmt.Sprintf("%v[%v]", k.Type, k.Payload)
}

// TypeSupplier is implemented by typed containers: events whose routing
// depends on the type of the value they carry.
//
// A typed container is only delivered to receivers declared for exactly the
// same container and payload type; no ancestry walk takes place.
type TypeSupplier interface {
	PayloadType() reflect.Type
}

// Liveness is implemented by listeners that can go away while registered.
// Once Alive reports false the listener's receivers are dropped the next
// time they would be delivered to.
type Liveness interface {
	Alive() bool
}

// ConcurrentLister is implemented by listeners whose receivers may run
// concurrently with themselves. ConcurrentReceivers returns the receiver
// method names that skip per-receiver serialization. It is called on a zero
// value of the listener type and must not depend on listener state.
type ConcurrentLister interface {
	ConcurrentReceivers() []string
}

// TypedEvent is a generic typed container carrying a source value of type T
// and an optional context value.
type TypedEvent[T any] struct {
	Source  T
	Context any
}

// NewTypedEvent creates a typed event for source.
func NewTypedEvent[T any](source T, value any) *TypedEvent[T] {
	return &TypedEvent[T]{Source: source, Context: value}
}

// PayloadType implements TypeSupplier.
func (e TypedEvent[T]) PayloadType() reflect.Type {
	return reflect.TypeFor[T]()
}

var (
	typeSupplierType = reflect.TypeFor[TypeSupplier]()
	contextType      = reflect.TypeFor[context.Context]()
	errorType        = reflect.TypeFor[error]()
)

// isTypedContainer reports whether receivers declared for t are keyed by
// payload type.
func isTypedContainer(t reflect.Type) bool {
	return t.Kind() != reflect.Interface && t.Implements(typeSupplierType)
}
