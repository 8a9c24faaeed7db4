package dispatch

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
)

// Receiver is a single delivery target.
// This mirrors the event package's receiver handle to avoid circular imports.
type Receiver interface {
	Deliver(ctx context.Context, event any)
}

// Dispatcher is the interface for event ordering strategies.
type Dispatcher interface {
	// Dispatch delivers event to every receiver in order.
	// Nested dispatches made from inside a delivery must pass the context
	// the receiver was given.
	Dispatch(ctx context.Context, event any, receivers iter.Seq[Receiver])
}

// Immediate returns the depth-first dispatcher.
func Immediate() Dispatcher {
	return immediate{}
}

type immediate struct{}

func (immediate) Dispatch(ctx context.Context, event any, receivers iter.Seq[Receiver]) {
	for r := range receivers {
		r.Deliver(ctx, event)
	}
}

// ChainDispatcher is the breadth-first dispatcher returned by PerChainQueue.
type ChainDispatcher struct {
	chains atomic.Uint64
}

// PerChainQueue returns a breadth-first dispatcher that queues nested
// events per publish chain.
func PerChainQueue() *ChainDispatcher {
	return &ChainDispatcher{}
}

// chainKey scopes chain state to one dispatcher instance.
type chainKey struct {
	d *ChainDispatcher
}

// Dispatch implements Dispatcher.
func (d *ChainDispatcher) Dispatch(ctx context.Context, event any, receivers iter.Seq[Receiver]) {
	if c, ok := ctx.Value(chainKey{d}).(*chain); ok && c.offer(event, receivers) {
		return
	}

	c := &chain{}
	c.offer(event, receivers)
	d.chains.Add(1)
	c.drain(context.WithValue(ctx, chainKey{d}, c))
}

// Chains returns how many publish chains have been started.
func (d *ChainDispatcher) Chains() uint64 {
	return d.chains.Load()
}

// InChain reports whether ctx carries a chain of this dispatcher that is
// still being drained.
func (d *ChainDispatcher) InChain(ctx context.Context) bool {
	c, ok := ctx.Value(chainKey{d}).(*chain)
	if !ok {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.done
}

// pending is a queued event with the receivers it matched when published.
type pending struct {
	event     any
	receivers iter.Seq[Receiver]
}

// chain is the queue of one publish chain. It is drained by the goroutine
// that started it; other goroutines holding its context may only append.
type chain struct {
	mu    sync.Mutex
	queue []pending
	head  int
	done  bool
}

// offer appends to the queue. It fails once the chain has finished.
func (c *chain) offer(event any, receivers iter.Seq[Receiver]) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done {
		return false
	}
	c.queue = append(c.queue, pending{event: event, receivers: receivers})
	return true
}

// poll removes the next queued event. An empty queue finishes the chain.
func (c *chain) poll() (pending, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.head == len(c.queue) {
		c.finishLocked()
		return pending{}, false
	}
	p := c.queue[c.head]
	c.queue[c.head] = pending{}
	c.head++
	return p, true
}

func (c *chain) drain(ctx context.Context) {
	// A panicking receiver must not leave the chain open.
	defer c.finish()

	for {
		p, ok := c.poll()
		if !ok {
			return
		}
		for r := range p.receivers {
			r.Deliver(ctx, p.event)
		}
	}
}

func (c *chain) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finishLocked()
}

func (c *chain) finishLocked() {
	c.done = true
	c.queue = nil
	c.head = 0
}
