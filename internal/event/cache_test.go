package event

import (
	"context"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/dshills/typebus/internal/event/hierarchy"
	"github.com/dshills/typebus/internal/event/memo"
)

type countingCache[V any] struct {
	inner       *memo.Map[V]
	loads       atomic.Int64
	invalidated atomic.Int64
}

func newCountingCache[V any]() *countingCache[V] {
	return &countingCache[V]{inner: memo.New[V]()}
}

func (c *countingCache[V]) Load(t reflect.Type, compute func(reflect.Type) (V, error)) (V, error) {
	c.loads.Add(1)
	return c.inner.Load(t, compute)
}

func (c *countingCache[V]) InvalidateAll() {
	c.invalidated.Add(1)
	c.inner.InvalidateAll()
}

type leftSide interface{ Left() string }
type rightSide interface{ Right() string }

type bothSides struct{}

func (*bothSides) Left() string  { return "left" }
func (*bothSides) Right() string { return "right" }

type leftListener struct{ calls atomic.Int64 }

func (l *leftListener) OnLeft(s leftSide) { l.calls.Add(1) }

type rightListener struct{ calls atomic.Int64 }

func (l *rightListener) OnRight(s rightSide) { l.calls.Add(1) }

func TestBus_InjectedCachesAreUsed(t *testing.T) {
	methods := newCountingCache[[]Method]()
	ancestry := newCountingCache[hierarchy.Ancestry]()
	bus := New(WithMethodCache(methods), WithHierarchyCache(ancestry))

	listener := &textListener{name: "l", j: &journal{}}
	if err := bus.Register(listener); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = bus.Publish(context.Background(), "x")

	if methods.loads.Load() == 0 {
		t.Error("expected the method cache to be consulted")
	}
	if ancestry.loads.Load() == 0 {
		t.Error("expected the hierarchy cache to be consulted")
	}
	if methods.inner.Len() != 1 || ancestry.inner.Len() != 1 {
		t.Errorf("expected one entry per cache, got %d and %d", methods.inner.Len(), ancestry.inner.Len())
	}

	bus.Close()
	if methods.invalidated.Load() == 0 || ancestry.invalidated.Load() == 0 {
		t.Errorf("expected Close to invalidate both caches, got %d and %d",
			methods.invalidated.Load(), ancestry.invalidated.Load())
	}
}

func TestBus_SharedCachesRouteIndependently(t *testing.T) {
	methods := newCountingCache[[]Method]()
	ancestry := newCountingCache[hierarchy.Ancestry]()
	first := New(WithMethodCache(methods), WithHierarchyCache(ancestry))
	second := New(WithMethodCache(methods), WithHierarchyCache(ancestry))

	left := &leftListener{}
	right := &rightListener{}
	if err := first.Register(left); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := second.Register(right); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	_ = first.Publish(ctx, &bothSides{})
	_ = second.Publish(ctx, &bothSides{})

	if left.calls.Load() != 1 {
		t.Errorf("expected left receiver once, got %d", left.calls.Load())
	}
	if right.calls.Load() != 1 {
		t.Errorf("expected right receiver once, got %d", right.calls.Load())
	}
	if first.Stats().DeadEvents != 0 || second.Stats().DeadEvents != 0 {
		t.Errorf("expected no dead events, got %d and %d",
			first.Stats().DeadEvents, second.Stats().DeadEvents)
	}

	// A receiver added later on one bus does not leak into the other.
	late := &leftListener{}
	if err := second.Register(late); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = first.Publish(ctx, &bothSides{})
	_ = second.Publish(ctx, &bothSides{})
	if left.calls.Load() != 2 || right.calls.Load() != 2 || late.calls.Load() != 1 {
		t.Errorf("expected 2/2/1 calls, got %d/%d/%d",
			left.calls.Load(), right.calls.Load(), late.calls.Load())
	}
}
