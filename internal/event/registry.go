package event

import (
	"iter"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/dshills/typebus/internal/event/dispatch"
	"github.com/dshills/typebus/internal/event/hierarchy"
)

// Registry indexes receivers by key.
// It is thread-safe for concurrent access. Lookups never block on writers:
// every key holds an immutable snapshot that writers replace wholesale.
type Registry struct {
	sets     sync.Map // Key -> *receiverSet
	resolver *hierarchy.Resolver
}

// NewRegistry creates an empty registry that resolves ancestries with
// resolver.
func NewRegistry(resolver *hierarchy.Resolver) *Registry {
	if resolver == nil {
		resolver = hierarchy.NewResolver(nil)
	}
	return &Registry{resolver: resolver}
}

// Add unions receivers into their key sets. Receivers already present are
// kept as they are.
func (r *Registry) Add(receivers []*Receiver) int {
	groups := make(map[Key][]*Receiver)
	var order []Key
	for _, rc := range receivers {
		key := rc.Key()
		if key.Payload == nil && key.Type.Kind() == reflect.Interface {
			// Publishers must see the interface in ancestries before they
			// can see the receiver.
			r.resolver.AddInterface(key.Type)
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], rc)
	}

	added := 0
	for _, key := range order {
		added += r.set(key).union(groups[key])
	}
	return added
}

// RemoveListener removes the receivers of listener described by methods.
// Keys and receivers that are not present are ignored.
func (r *Registry) RemoveListener(listener any, methods []Method) int {
	removed := 0
	for _, m := range methods {
		s, ok := r.lookupSet(m.Key)
		if !ok {
			continue
		}
		removed += s.remove(func(rc *Receiver) bool {
			return rc.listener == listener && rc.method.Name == m.Name
		})
	}
	return removed
}

// Remove removes a single receiver. It reports whether it was present.
func (r *Registry) Remove(rc *Receiver) bool {
	s, ok := r.lookupSet(rc.Key())
	if !ok {
		return false
	}
	return s.remove(rc.Equal) > 0
}

// Lookup returns the receivers matching event in delivery order.
//
// A typed container only matches its exact key. Any other event matches
// the receivers of every type in its ancestry, nearest first. Each key's
// snapshot is taken during Lookup; later changes are not observed.
func (r *Registry) Lookup(event any) Matches {
	t := reflect.TypeOf(event)
	if t == nil {
		return Matches{}
	}

	if ts, ok := event.(TypeSupplier); ok && isTypedContainer(t) {
		var m Matches
		m.add(r.snapshot(Key{Type: t, Payload: ts.PayloadType()}))
		return m
	}

	var m Matches
	for _, a := range r.resolver.Ancestry(t) {
		m.add(r.snapshot(Key{Type: a}))
	}
	return m
}

// Receivers returns the current receivers stored under key.
func (r *Registry) Receivers(key Key) []*Receiver {
	snap := r.snapshot(key)
	result := make([]*Receiver, len(snap))
	copy(result, snap)
	return result
}

// Len returns the total number of registered receivers.
func (r *Registry) Len() int {
	n := 0
	r.sets.Range(func(_, v any) bool {
		n += len(v.(*receiverSet).load())
		return true
	})
	return n
}

// Keys returns the number of keys with at least one receiver.
func (r *Registry) Keys() int {
	n := 0
	r.sets.Range(func(_, v any) bool {
		if len(v.(*receiverSet).load()) > 0 {
			n++
		}
		return true
	})
	return n
}

// Clear drops every receiver.
func (r *Registry) Clear() {
	r.sets.Clear()
}

func (r *Registry) set(key Key) *receiverSet {
	if s, ok := r.sets.Load(key); ok {
		return s.(*receiverSet)
	}
	s, _ := r.sets.LoadOrStore(key, &receiverSet{})
	return s.(*receiverSet)
}

func (r *Registry) lookupSet(key Key) (*receiverSet, bool) {
	s, ok := r.sets.Load(key)
	if !ok {
		return nil, false
	}
	return s.(*receiverSet), true
}

func (r *Registry) snapshot(key Key) []*Receiver {
	s, ok := r.lookupSet(key)
	if !ok {
		return nil
	}
	return s.load()
}

// receiverSet is a copy-on-write, insertion-ordered set of receivers.
type receiverSet struct {
	mu   sync.Mutex // serializes writers
	snap atomic.Pointer[[]*Receiver]
}

func (s *receiverSet) load() []*Receiver {
	if p := s.snap.Load(); p != nil {
		return *p
	}
	return nil
}

func (s *receiverSet) union(receivers []*Receiver) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.load()
	next := make([]*Receiver, len(current), len(current)+len(receivers))
	copy(next, current)

	added := 0
	for _, rc := range receivers {
		if containsReceiver(next, rc) {
			continue
		}
		next = append(next, rc)
		added++
	}
	if added > 0 {
		s.snap.Store(&next)
	}
	return added
}

func (s *receiverSet) remove(match func(*Receiver) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.load()
	next := make([]*Receiver, 0, len(current))
	for _, rc := range current {
		if !match(rc) {
			next = append(next, rc)
		}
	}

	removed := len(current) - len(next)
	if removed > 0 {
		s.snap.Store(&next)
	}
	return removed
}

func containsReceiver(receivers []*Receiver, rc *Receiver) bool {
	for _, existing := range receivers {
		if existing.Equal(rc) {
			return true
		}
	}
	return false
}

// Matches is the ordered result of a lookup.
type Matches struct {
	segments [][]*Receiver
	n        int
}

func (m *Matches) add(snap []*Receiver) {
	if len(snap) == 0 {
		return
	}
	m.segments = append(m.segments, snap)
	m.n += len(snap)
}

// Len returns the number of matched receivers.
func (m Matches) Len() int {
	return m.n
}

// All iterates over the matched receivers in delivery order.
func (m Matches) All() iter.Seq[*Receiver] {
	return func(yield func(*Receiver) bool) {
		for _, seg := range m.segments {
			for _, rc := range seg {
				if !yield(rc) {
					return
				}
			}
		}
	}
}

// dispatchable adapts All to the dispatch package.
func (m Matches) dispatchable() iter.Seq[dispatch.Receiver] {
	return func(yield func(dispatch.Receiver) bool) {
		for rc := range m.All() {
			if !yield(rc) {
				return
			}
		}
	}
}
