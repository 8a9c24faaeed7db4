// Package dispatch provides the delivery ordering strategies and receiver
// executors used by the event bus.
//
// # Dispatchers
//
// A Dispatcher decides the order in which an event and its matching
// receivers are delivered, in particular when a receiver publishes further
// events while it is being delivered to. Two strategies are provided:
//
//   - Immediate: delivers nested events as soon as they are published.
//     Delivery is depth first; a receiver's nested publish completes before
//     the next receiver of the outer event runs.
//
//   - PerChainQueue: queues nested events behind the event currently being
//     delivered. Delivery is breadth first; every receiver of the outer event
//     runs before any receiver of a nested one.
//
// PerChainQueue tracks one queue per publish chain. The chain travels in the
// context.Context handed to each receiver, so a receiver must publish with
// that context for its events to join the chain. Publishing with an
// unrelated context starts a new chain.
//
// Neither strategy recovers panics or examines errors. Receiver faults are
// handled by the receiver itself before Deliver returns.
//
// # Executors
//
// An Executor runs the body of a single delivery. Direct runs it on the
// calling goroutine. Pool hands it to a fixed set of worker goroutines,
// which changes where a receiver runs but never the order in which
// deliveries are started:
//
//	pool := dispatch.NewPool(dispatch.WithWorkerCount(4))
//	if err := pool.Start(); err != nil {
//	    return err
//	}
//	defer pool.Stop(ctx)
package dispatch
