package event

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"

	"github.com/dshills/typebus/internal/event/hierarchy"
)

// Receiver is one registered (listener, method) pair.
//
// Two receivers are equal when they wrap the same listener pointer and the
// same method name. Unless the method is declared concurrent, invocations
// of a receiver are serialized.
type Receiver struct {
	bus      *Bus
	listener any
	method   Method
	fn       reflect.Value

	// mu serializes invocations of non-concurrent receivers.
	mu sync.Mutex
}

func newReceiver(b *Bus, listener any, m Method) *Receiver {
	return &Receiver{
		bus:      b,
		listener: listener,
		method:   m,
		fn:       reflect.ValueOf(listener).Method(m.Index),
	}
}

// Listener returns the listener owning the receiver.
func (r *Receiver) Listener() any {
	return r.listener
}

// Method returns the receiver method description.
func (r *Receiver) Method() Method {
	return r.method
}

// Key returns the index key the receiver is stored under.
func (r *Receiver) Key() Key {
	return r.method.Key
}

// Equal reports whether o wraps the same listener and method.
func (r *Receiver) Equal(o *Receiver) bool {
	if r == o {
		return true
	}
	if r == nil || o == nil {
		return false
	}
	return r.listener == o.listener && r.method.Name == o.method.Name
}

// String returns a human-readable receiver name.
func (r *Receiver) String() string {
	return fmt.Sprintf("%v.%s", reflect.TypeOf(r.listener), r.method.Name)
}

// Deliver hands event to the receiver through the bus executor.
// Receiver faults never escape Deliver; they are published as FailureEvents.
func (r *Receiver) Deliver(ctx context.Context, event any) {
	r.bus.executor.Execute(func() {
		r.invoke(ctx, event)
	})
}

func (r *Receiver) invoke(ctx context.Context, event any) {
	if !r.alive() {
		r.bus.expire(r)
		return
	}

	arg, err := hierarchy.Convert(reflect.ValueOf(event), r.method.EventType)
	if errors.Is(err, hierarchy.ErrNilBase) {
		// The event embeds a nil base of the receiver's type.
		return
	}
	if err != nil {
		panic(r.invocationError(event, err))
	}
	if !r.fn.IsValid() {
		panic(r.invocationError(event, errors.New("receiver method is not bound")))
	}

	cause := r.call(ctx, arg)
	r.bus.delivered.Add(1)
	if cause != nil {
		r.bus.fault(ctx, r, event, cause)
	}
}

// call runs the method body, holding the receiver lock unless the method
// is concurrent. Panics other than InvocationError become PanicErrors.
func (r *Receiver) call(ctx context.Context, arg reflect.Value) (err error) {
	if !r.method.Concurrent {
		r.mu.Lock()
		defer r.mu.Unlock()
	}

	defer func() {
		if v := recover(); v != nil {
			if ie, ok := v.(*InvocationError); ok {
				panic(ie)
			}
			err = &PanicError{
				Listener: reflect.TypeOf(r.listener),
				Method:   r.method.Name,
				Value:    v,
				Stack:    string(debug.Stack()),
			}
		}
	}()

	in := make([]reflect.Value, 0, 2)
	if r.method.WithContext {
		in = append(in, reflect.ValueOf(&ctx).Elem())
	}
	in = append(in, arg)

	out := r.fn.Call(in)
	if r.method.ReturnsError && !out[0].IsNil() {
		return out[0].Interface().(error)
	}
	return nil
}

func (r *Receiver) alive() bool {
	l, ok := r.listener.(Liveness)
	return !ok || l.Alive()
}

func (r *Receiver) invocationError(event any, err error) *InvocationError {
	return &InvocationError{
		Listener: reflect.TypeOf(r.listener),
		Method:   r.method.Name,
		Event:    reflect.TypeOf(event),
		Err:      err,
	}
}
