package engine

import (
	"math"
	"sort"
	"sync"

	"gridbot/internal/domain"
)

// Ledger is the in-memory authoritative record of orders the engine believes
// are resting on the exchange, keyed by exchange order id.
//
// It is shared by the reconciliation loop and the position monitor, so all
// access goes through a mutex with short critical sections. The contents are
// eventually consistent with the exchange: they are corrected by periodic
// reconciliation, never by synchronous confirmation.
type Ledger struct {
	mu     sync.Mutex
	orders map[int64]domain.Order
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{orders: make(map[int64]domain.Order)}
}

// Insert records an acknowledged order.
func (l *Ledger) Insert(o domain.Order) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.orders[o.ID] = o
}

// Remove deletes an order by id, returning it if it was present.
// Removing a nonexistent id is a no-op, not an error.
func (l *Ledger) Remove(id int64) (domain.Order, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.orders[id]
	if ok {
		delete(l.orders, id)
	}
	return o, ok
}

// Get returns the order with the given id, if tracked.
func (l *Ledger) Get(id int64) (domain.Order, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.orders[id]
	return o, ok
}

// Contains reports whether the id is tracked.
func (l *Ledger) Contains(id int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.orders[id]
	return ok
}

// Len returns the number of tracked orders.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.orders)
}

// Snapshot returns a copy of all tracked orders, sorted by id for
// deterministic iteration.
func (l *Ledger) Snapshot() []domain.Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Order, 0, len(l.orders))
	for _, o := range l.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDs returns the set of tracked order ids.
func (l *Ledger) IDs() map[int64]struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make(map[int64]struct{}, len(l.orders))
	for id := range l.orders {
		ids[id] = struct{}{}
	}
	return ids
}

// ContainsPrice reports whether an order on the given side rests within
// tolerance of the price. Used to avoid duplicating a level when topping up
// a partially populated grid.
func (l *Ledger) ContainsPrice(side domain.OrderSide, price, tolerance float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, o := range l.orders {
		if o.Side == side && math.Abs(o.Price-price) <= tolerance {
			return true
		}
	}
	return false
}

// Clear removes every entry, used when a position closes and the symbol's
// orders are cancelled wholesale.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.orders = make(map[int64]domain.Order)
}
