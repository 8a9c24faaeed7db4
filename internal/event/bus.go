package event

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/typebus/internal/event/dispatch"
	"github.com/dshills/typebus/internal/event/hierarchy"
	"github.com/dshills/typebus/internal/event/memo"
)

// Bus routes published values to the receivers of registered listeners
// by type. It is safe for concurrent use.
type Bus struct {
	id         uuid.UUID
	identifier string
	prefix     string

	registry   *Registry
	resolver   *hierarchy.Resolver
	methods    memo.Cache[[]Method]
	dispatcher dispatch.Dispatcher
	executor   dispatch.Executor
	logger     *slog.Logger

	// Stats
	published  atomic.Uint64
	delivered  atomic.Uint64
	failures   atomic.Uint64
	suppressed atomic.Uint64
	deadEvents atomic.Uint64
	expired    atomic.Uint64
}

// New creates a bus with the given options.
func New(opts ...Option) *Bus {
	config := defaultBusConfig()
	for _, opt := range opts {
		opt(&config)
	}

	if config.dispatcher == nil {
		config.dispatcher = dispatch.PerChainQueue()
	}
	if config.executor == nil {
		config.executor = dispatch.Direct()
	}
	if config.methodCache == nil {
		config.methodCache = memo.New[[]Method]()
	}
	if config.logger == nil {
		config.logger = slog.New(slog.DiscardHandler)
	}

	resolver := hierarchy.NewResolver(config.hierarchyCache)
	return &Bus{
		id:         uuid.New(),
		identifier: config.identifier,
		prefix:     config.receiverPrefix,
		registry:   NewRegistry(resolver),
		resolver:   resolver,
		methods:    config.methodCache,
		dispatcher: config.dispatcher,
		executor:   config.executor,
		logger:     config.logger.With("bus", config.identifier),
	}
}

// ID returns the unique instance ID of the bus.
func (b *Bus) ID() uuid.UUID {
	return b.id
}

// Identifier returns the bus identifier.
func (b *Bus) Identifier() string {
	if b == nil {
		return ""
	}
	return b.identifier
}

// String returns a human-readable bus name.
func (b *Bus) String() string {
	return fmt.Sprintf("Bus[%s]", b.identifier)
}

// Registry returns the receiver index.
func (b *Bus) Registry() *Registry {
	return b.registry
}

// Register adds every receiver method of listener. listener must be a
// non-nil pointer. A malformed receiver rejects the whole call and nothing
// is registered.
func (b *Bus) Register(listener any) error {
	methods, err := b.loadMethods(listener)
	if err != nil {
		return err
	}

	receivers := make([]*Receiver, len(methods))
	for i, m := range methods {
		receivers[i] = newReceiver(b, listener, m)
	}
	added := b.registry.Add(receivers)

	b.logger.Debug("registered listener",
		"listener", reflect.TypeOf(listener).String(),
		"receivers", len(receivers),
		"added", added)
	return nil
}

// Unregister removes every receiver of listener. Unknown, partially
// registered and invalid listeners are ignored.
func (b *Bus) Unregister(listener any) {
	methods, err := b.loadMethods(listener)
	if err != nil {
		return
	}

	removed := b.registry.RemoveListener(listener, methods)
	b.logger.Debug("unregistered listener",
		"listener", reflect.TypeOf(listener).String(),
		"removed", removed)
}

// Publish delivers event to every matching receiver. Receiver faults are
// never returned; they are published as FailureEvents. An event with no
// receivers is republished as a DeadEvent.
//
// Receivers that publish must pass the context they were given so that
// nested events are ordered by the bus dispatcher.
func (b *Bus) Publish(ctx context.Context, event any) error {
	if isNilEvent(event) {
		return ErrNilEvent
	}
	if ctx == nil {
		ctx = context.Background()
	}

	b.published.Add(1)
	matches := b.registry.Lookup(event)
	if matches.Len() > 0 {
		b.dispatcher.Dispatch(ctx, event, matches.dispatchable())
		return nil
	}

	switch event.(type) {
	case *DeadEvent, *FailureEvent:
		return nil
	}

	b.deadEvents.Add(1)
	b.logger.Debug("no receivers for event", "event_type", fmt.Sprintf("%T", event))
	return b.Publish(ctx, &DeadEvent{Bus: b, Event: event})
}

// Close drops every receiver and clears the caches. The bus stays usable.
func (b *Bus) Close() {
	b.registry.Clear()
	b.resolver.Reset()
	b.methods.InvalidateAll()
	b.logger.Debug("bus closed")
}

// Stats returns current bus statistics.
func (b *Bus) Stats() Stats {
	return Stats{
		Published:          b.published.Load(),
		Delivered:          b.delivered.Load(),
		Failures:           b.failures.Load(),
		SuppressedFailures: b.suppressed.Load(),
		DeadEvents:         b.deadEvents.Load(),
		Expired:            b.expired.Load(),
		Receivers:          b.registry.Len(),
	}
}

// Stats contains bus statistics.
type Stats struct {
	// Published is the number of accepted Publish calls, including
	// FailureEvents and DeadEvents generated by the bus.
	Published uint64

	// Delivered is the number of receiver invocations.
	Delivered uint64

	// Failures is the number of receiver faults.
	Failures uint64

	// SuppressedFailures is the number of faults raised while handling a
	// FailureEvent.
	SuppressedFailures uint64

	// DeadEvents is the number of events that matched no receivers.
	DeadEvents uint64

	// Expired is the number of receivers dropped because their listener
	// was no longer alive.
	Expired uint64

	// Receivers is the number of currently registered receivers.
	Receivers int
}

func (b *Bus) loadMethods(listener any) ([]Method, error) {
	if listener == nil {
		return nil, ErrNilListener
	}
	v := reflect.ValueOf(listener)
	if v.Kind() != reflect.Pointer {
		return nil, fmt.Errorf("%w: got %T", ErrInvalidListener, listener)
	}
	if v.IsNil() {
		return nil, ErrNilListener
	}

	return b.methods.Load(v.Type(), func(t reflect.Type) ([]Method, error) {
		return LoadMethods(t, b.prefix)
	})
}

// fault handles a receiver fault raised while delivering event.
func (b *Bus) fault(ctx context.Context, r *Receiver, event any, cause error) {
	b.failures.Add(1)

	if _, ok := event.(*FailureEvent); ok {
		b.suppressed.Add(1)
		b.logger.Warn("failure receiver failed",
			"receiver", r.String(),
			"error", cause)
		return
	}

	_ = b.Publish(ctx, &FailureEvent{
		Bus:      b,
		Listener: r.listener,
		Method:   r.method.Name,
		Event:    event,
		Cause:    cause,
	})
}

// expire drops a receiver whose listener is no longer alive.
func (b *Bus) expire(r *Receiver) {
	if b.registry.Remove(r) {
		b.expired.Add(1)
		b.logger.Debug("dropped receiver of dead listener", "receiver", r.String())
	}
}

func isNilEvent(event any) bool {
	if event == nil {
		return true
	}
	v := reflect.ValueOf(event)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
