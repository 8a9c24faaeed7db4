// Package hierarchy resolves the type ancestry used to route events.
//
// Go has no class inheritance, so ancestry is built from static type
// information:
//
//   - the type itself, followed by the known interfaces it introduces,
//     each immediately followed by the known interfaces it in turn
//     implements (its super-interfaces)
//   - the type's bases, walked depth first in the same manner: the element
//     type of a pointer and the exported embedded fields of a struct, in
//     declaration order
//   - any, always last
//
// An interface is introduced by the deepest type on a path whose bases do
// not already implement it, so an interface satisfied by promoted methods
// comes after the base that declares them.
//
// The set of known interfaces grows as receivers declare interface
// parameter types. Interfaces are implicit in Go, so only interfaces that
// something subscribed to can ever matter for routing.
package hierarchy

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/dshills/typebus/internal/event/memo"
)

// AnyType is the root of every ancestry.
var AnyType = reflect.TypeFor[any]()

// Ancestry is the structural ancestry of a type: the type followed by its
// bases, depth first and deduplicated. It depends on nothing but the type,
// so one Ancestry cache can be shared by any number of resolvers.
type Ancestry struct {
	Types []reflect.Type
}

// Structure computes the structural ancestry of t without caching.
func Structure(t reflect.Type) Ancestry {
	seen := make(map[reflect.Type]struct{})
	var types []reflect.Type

	var walk func(t reflect.Type)
	walk = func(t reflect.Type) {
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		types = append(types, t)
		for _, base := range Bases(t) {
			walk(base)
		}
	}

	walk(t)
	return Ancestry{Types: types}
}

// resolved is an ancestry with the known interfaces of one resolver
// applied, stamped with the interface generation it was built against.
type resolved struct {
	types      []reflect.Type
	generation uint64
}

// Resolver computes and caches type ancestries.
// It is safe for concurrent use.
type Resolver struct {
	mu         sync.RWMutex
	interfaces []reflect.Type
	known      map[reflect.Type]struct{}
	generation atomic.Uint64

	// structure may be shared; resolved is private to this resolver.
	structure memo.Cache[Ancestry]
	resolved  *memo.Map[resolved]
}

// NewResolver creates a resolver whose structural ancestries are cached in
// cache. A nil cache selects the default in-memory cache.
func NewResolver(cache memo.Cache[Ancestry]) *Resolver {
	if cache == nil {
		cache = memo.New[Ancestry]()
	}
	return &Resolver{
		known:     make(map[reflect.Type]struct{}),
		structure: cache,
		resolved:  memo.New[resolved](),
	}
}

// AddInterface records t as a known interface type. It reports whether t
// was newly added. Adding an interface invalidates resolved ancestries.
func (r *Resolver) AddInterface(t reflect.Type) bool {
	if t == nil || t.Kind() != reflect.Interface || t == AnyType {
		return false
	}

	r.mu.Lock()
	if _, ok := r.known[t]; ok {
		r.mu.Unlock()
		return false
	}
	r.known[t] = struct{}{}
	r.interfaces = append(r.interfaces, t)
	r.generation.Add(1)
	r.mu.Unlock()

	r.resolved.InvalidateAll()
	return true
}

// Interfaces returns the known interfaces in the order they were added.
func (r *Resolver) Interfaces() []reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]reflect.Type, len(r.interfaces))
	copy(result, r.interfaces)
	return result
}

// Ancestry returns the ancestry of t.
func (r *Resolver) Ancestry(t reflect.Type) []reflect.Type {
	for {
		current := r.generation.Load()
		a, err := r.resolved.Load(t, r.resolve)
		if err != nil {
			a, _ = r.resolve(t)
		}
		if a.generation == current {
			return a.types
		}
		// Resolved against an older interface set while one was being added.
		r.resolved.InvalidateAll()
	}
}

// InvalidateAll drops every cached ancestry.
func (r *Resolver) InvalidateAll() {
	r.resolved.InvalidateAll()
	r.structure.InvalidateAll()
}

// Reset forgets all known interfaces and drops the caches.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.interfaces = nil
	r.known = make(map[reflect.Type]struct{})
	r.generation.Add(1)
	r.mu.Unlock()

	r.InvalidateAll()
}

func (r *Resolver) resolve(t reflect.Type) (resolved, error) {
	r.mu.RLock()
	interfaces := r.interfaces
	generation := r.generation.Load()
	r.mu.RUnlock()

	structure, err := r.structure.Load(t, func(t reflect.Type) (Ancestry, error) {
		return Structure(t), nil
	})
	if err != nil || len(structure.Types) == 0 {
		structure = Structure(t)
	}

	return resolved{
		types:      overlay(structure.Types, interfaces),
		generation: generation,
	}, nil
}

// Flatten computes the ancestry of t against the given interface set
// without caching.
func Flatten(t reflect.Type, interfaces []reflect.Type) []reflect.Type {
	return overlay(Structure(t).Types, interfaces)
}

// overlay inserts the interfaces each structural type introduces right
// after it and appends any.
func overlay(types, interfaces []reflect.Type) []reflect.Type {
	seen := make(map[reflect.Type]struct{})
	result := make([]reflect.Type, 0, len(types)+len(interfaces)+1)

	add := func(t reflect.Type) bool {
		if _, ok := seen[t]; ok {
			return false
		}
		seen[t] = struct{}{}
		result = append(result, t)
		return true
	}

	var expand func(iface reflect.Type)
	expand = func(iface reflect.Type) {
		if !add(iface) {
			return
		}
		for _, super := range interfaces {
			if super != iface && iface.Implements(super) {
				expand(super)
			}
		}
	}

	for _, t := range types {
		if !add(t) {
			continue
		}
		for _, iface := range interfaces {
			if iface != t && t.Implements(iface) && !inherited(t, iface) {
				expand(iface)
			}
		}
	}
	add(AnyType)
	return result
}

// inherited reports whether a direct base of t already implements iface.
func inherited(t, iface reflect.Type) bool {
	for _, base := range Bases(t) {
		if base.Implements(iface) {
			return true
		}
	}
	return false
}

// Bases returns the direct bases of t: the element of a pointer type, or
// the exported embedded fields of a struct type.
func Bases(t reflect.Type) []reflect.Type {
	switch t.Kind() {
	case reflect.Pointer:
		return []reflect.Type{t.Elem()}
	case reflect.Struct:
		var bases []reflect.Type
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.Anonymous && f.IsExported() {
				bases = append(bases, f.Type)
			}
		}
		return bases
	default:
		return nil
	}
}

var (
	// ErrNilBase means the value holds no instance of the target type
	// because a pointer or interface on the way to it is nil.
	ErrNilBase = errors.New("nil base on conversion path")

	// ErrNotConvertible means the target type is not in the value's ancestry.
	ErrNotConvertible = errors.New("value is not convertible to target type")
)

// Convert upcasts v to target following the same bases Flatten walks:
// interfaces by assignment, pointers by dereference, embedded structs by
// field extraction.
func Convert(v reflect.Value, target reflect.Type) (reflect.Value, error) {
	if !v.IsValid() {
		return reflect.Value{}, ErrNotConvertible
	}

	sawNil := false
	out, ok := convert(v, target, &sawNil)
	if ok {
		return out, nil
	}
	if sawNil {
		return reflect.Value{}, ErrNilBase
	}
	return reflect.Value{}, ErrNotConvertible
}

func convert(v reflect.Value, target reflect.Type, sawNil *bool) (reflect.Value, bool) {
	nilable := v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface
	if v.Type().AssignableTo(target) {
		if nilable && v.IsNil() && target != AnyType {
			*sawNil = true
			return reflect.Value{}, false
		}
		return v, true
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			if reachable(v.Type(), target) {
				*sawNil = true
			}
			return reflect.Value{}, false
		}
		return convert(v.Elem(), target, sawNil)
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.Anonymous || !f.IsExported() {
				continue
			}
			if out, ok := convert(v.Field(i), target, sawNil); ok {
				return out, true
			}
		}
	}
	return reflect.Value{}, false
}

// reachable reports whether target lies somewhere below t's bases, ignoring
// interfaces known only at runtime.
func reachable(t, target reflect.Type) bool {
	return reachableFrom(t, target, make(map[reflect.Type]bool))
}

func reachableFrom(t, target reflect.Type, visited map[reflect.Type]bool) bool {
	if visited[t] {
		return false
	}
	visited[t] = true
	if t.AssignableTo(target) {
		return true
	}
	for _, base := range Bases(t) {
		if reachableFrom(base, target, visited) {
			return true
		}
	}
	return false
}
