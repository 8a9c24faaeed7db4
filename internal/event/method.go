package event

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"unicode"
	"unicode/utf8"
)

// DefaultReceiverPrefix is the method name prefix that marks receivers.
const DefaultReceiverPrefix = "On"

// Method describes one receiver method of a listener type.
type Method struct {
	// Name is the method name.
	Name string

	// Index is the method's index in the listener type's method set.
	Index int

	// EventType is the declared event parameter type.
	EventType reflect.Type

	// Key is the index key the receiver is stored under.
	Key Key

	// WithContext is true if the method takes a leading context.Context.
	WithContext bool

	// ReturnsError is true if the method returns an error.
	ReturnsError bool

	// Concurrent is true if invocations are not serialized.
	Concurrent bool
}

// LoadMethods returns the receiver methods of listener type t, sorted by
// name. A receiver is an exported method whose name is prefix alone or
// prefix followed by an upper-case letter, taking (E) or
// (context.Context, E) and returning nothing or error.
//
// t must be a pointer type. A type without receivers yields an empty list.
func LoadMethods(t reflect.Type, prefix string) ([]Method, error) {
	if t == nil {
		return nil, ErrNilListener
	}
	if t.Kind() != reflect.Pointer {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidListener, t)
	}
	if prefix == "" {
		prefix = DefaultReceiverPrefix
	}

	var methods []Method
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if !isReceiverName(m.Name, prefix) {
			continue
		}
		method, err := buildMethod(t, m)
		if err != nil {
			return nil, err
		}
		methods = append(methods, method)
	}
	slices.SortFunc(methods, func(a, b Method) int {
		return cmp.Compare(a.Name, b.Name)
	})

	concurrent, err := concurrentNames(t)
	if err != nil {
		return nil, err
	}
	for _, name := range concurrent {
		i := slices.IndexFunc(methods, func(m Method) bool { return m.Name == name })
		if i < 0 {
			return nil, &ConfigError{Listener: t, Method: name, Reason: "declared concurrent but is not a receiver"}
		}
		methods[i].Concurrent = true
	}

	return methods, nil
}

func isReceiverName(name, prefix string) bool {
	if len(name) < len(prefix) || name[:len(prefix)] != prefix {
		return false
	}
	if len(name) == len(prefix) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(name[len(prefix):])
	return unicode.IsUpper(r)
}

func buildMethod(t reflect.Type, m reflect.Method) (Method, error) {
	fail := func(reason string) (Method, error) {
		return Method{}, &ConfigError{Listener: t, Method: m.Name, Reason: reason}
	}

	// In(0) is the listener itself.
	mt := m.Type
	if mt.IsVariadic() {
		return fail("variadic receivers are not supported")
	}

	method := Method{Name: m.Name, Index: m.Index}
	switch mt.NumIn() {
	case 2:
		method.EventType = mt.In(1)
	case 3:
		if mt.In(1) != contextType {
			return fail(fmt.Sprintf("first of two parameters must be context.Context, got %v", mt.In(1)))
		}
		method.WithContext = true
		method.EventType = mt.In(2)
	default:
		return fail(fmt.Sprintf("must have exactly one event parameter, has %d parameters", mt.NumIn()-1))
	}

	switch mt.NumOut() {
	case 0:
	case 1:
		if mt.Out(0) != errorType {
			return fail(fmt.Sprintf("result must be error, got %v", mt.Out(0)))
		}
		method.ReturnsError = true
	default:
		return fail(fmt.Sprintf("must return nothing or error, returns %d values", mt.NumOut()))
	}

	key, err := keyFor(method.EventType)
	if err != nil {
		return fail(err.Error())
	}
	method.Key = key

	return method, nil
}

// keyFor computes the registration key for a receiver parameter type.
// The payload of a typed container comes from its zero value.
func keyFor(t reflect.Type) (key Key, err error) {
	key = Key{Type: t}
	if !isTypedContainer(t) {
		return key, nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("payload type of %v: %v", t, r)
		}
	}()

	var zero reflect.Value
	if t.Kind() == reflect.Pointer {
		zero = reflect.New(t.Elem())
	} else {
		zero = reflect.Zero(t)
	}
	payload := zero.Interface().(TypeSupplier).PayloadType()
	if payload == nil {
		return key, fmt.Errorf("typed container %v reports no payload type", t)
	}
	key.Payload = payload
	return key, nil
}

func concurrentNames(t reflect.Type) (names []string, err error) {
	if !t.Implements(reflect.TypeFor[ConcurrentLister]()) {
		return nil, nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = &ConfigError{Listener: t, Method: "ConcurrentReceivers", Reason: fmt.Sprint(r)}
		}
	}()

	return reflect.New(t.Elem()).Interface().(ConcurrentLister).ConcurrentReceivers(), nil
}
