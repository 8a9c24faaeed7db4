package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/dshills/typebus/internal/event"
)

// Named is implemented by every demo business event.
type Named interface {
	EventName() string
}

// OrderPlaced starts the demo flow.
type OrderPlaced struct {
	ID       int
	Quantity int
}

func (*OrderPlaced) EventName() string { return "order.placed" }

// StockReserved is published by the inventory for every order.
type StockReserved struct {
	OrderID int
}

func (*StockReserved) EventName() string { return "stock.reserved" }

// Heartbeat has no receivers and ends up as a dead event.
type Heartbeat struct {
	Seq int
}

// demoEvent returns the i-th event of the load: mostly orders, with a
// heartbeat every 25 events.
func demoEvent(i int) any {
	if i%25 == 24 {
		return &Heartbeat{Seq: i}
	}
	return &OrderPlaced{ID: i, Quantity: 1 + i%3}
}

type inventory struct {
	bus      *event.Bus
	reserved atomic.Int64
}

func (inv *inventory) OnOrderPlaced(ctx context.Context, o *OrderPlaced) error {
	inv.reserved.Add(int64(o.Quantity))
	return inv.bus.Publish(ctx, &StockReserved{OrderID: o.ID})
}

type shipping struct {
	shipped atomic.Int64
}

// OnStockReserved fails for one order in ten.
func (s *shipping) OnStockReserved(r *StockReserved) error {
	if r.OrderID%10 == 9 {
		return fmt.Errorf("no carrier for order %d", r.OrderID)
	}
	s.shipped.Add(1)
	return nil
}

type audit struct {
	seen atomic.Int64
}

func (a *audit) OnNamed(n Named) {
	a.seen.Add(1)
}

func (a *audit) ConcurrentReceivers() []string {
	return []string{"OnNamed"}
}
