// Package event provides a type-routed, in-process event bus.
//
// Listeners are plain pointers whose methods act as receivers. Publishers
// hand arbitrary values to the bus, and the bus decides at publish time
// which receivers accept the value's type, its embedded bases and the
// interfaces it implements.
//
// # Architecture
//
//	                    ┌──────────────────────────────────────────┐
//	                    │                   Bus                     │
//	                    │  - Register / Unregister / Publish        │
//	                    │  - DeadEvent and FailureEvent routing     │
//	                    └──────────────────────────────────────────┘
//	                                      │
//	          ┌───────────────────────────┼───────────────────────────┐
//	          ▼                           ▼                           ▼
//	┌─────────────────┐         ┌─────────────────┐         ┌─────────────────┐
//	│    Registry     │         │   Dispatcher    │         │    Receiver     │
//	│  - Key -> set   │         │  - Immediate    │         │  - Liveness     │
//	│  - Snapshots    │         │  - PerChainQueue│         │  - Serialization│
//	│  - Ancestry     │         └─────────────────┘         │  - Fault capture│
//	└─────────────────┘                                     └─────────────────┘
//
// # Receivers
//
// A receiver is an exported method whose name starts with the receiver
// prefix ("On" by default) followed by an upper-case letter, with one of
// the shapes:
//
//	func (l *L) OnThing(e E)
//	func (l *L) OnThing(e E) error
//	func (l *L) OnThing(ctx context.Context, e E)
//	func (l *L) OnThing(ctx context.Context, e E) error
//
// Receivers of the same listener and method are serialized unless the
// listener lists the method in ConcurrentReceivers.
//
// # Routing
//
// An event of type T reaches receivers declared for, in order:
//
//   - T itself
//   - every interface T implements that some receiver is declared for
//   - the element type when T is a pointer, and exported embedded struct
//     fields, walked the same way
//   - any
//
// Typed containers such as TypedEvent[T] only reach receivers declared for
// the exact same container and payload type.
//
// # Ordering
//
// The default dispatcher delivers breadth first: events published by a
// receiver are queued behind the event being delivered. The Immediate
// dispatcher delivers them depth first, before the next receiver runs.
//
// # Faults
//
// A receiver that returns an error or panics does not affect the publisher
// or the remaining receivers. The bus publishes a FailureEvent describing
// the fault instead. An event nobody receives is republished once as a
// DeadEvent.
//
// # Usage
//
//	bus := event.New(event.WithLogger(logger))
//
//	type audit struct{}
//
//	func (a *audit) OnSaved(ctx context.Context, e *Saved) error { ... }
//	func (a *audit) OnFailure(e *event.FailureEvent) { ... }
//
//	if err := bus.Register(&audit{}); err != nil {
//	    return err
//	}
//	_ = bus.Publish(ctx, &Saved{Path: path})
package event
