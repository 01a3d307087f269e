package remote

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/roach88/kiosksync/internal/order"
)

// Simulated is an in-process Adapter over a mutable collection. It never
// rejects a write, so the overlay fallback only triggers against a real
// backend (or a wrapper such as FailingUpdates).
//
// Thread-safety: all methods are safe for concurrent use.
type Simulated struct {
	mu     sync.RWMutex
	orders map[string]order.Order

	ids     order.IDGenerator
	numbers *order.NumberGenerator
	now     func() time.Time
}

var _ Adapter = (*Simulated)(nil)

// SimulatedOption configures a Simulated adapter.
type SimulatedOption func(*Simulated)

// WithOrders seeds the collection.
func WithOrders(orders ...order.Order) SimulatedOption {
	return func(s *Simulated) {
		for _, o := range orders {
			s.orders[o.ID] = o.Clone()
		}
	}
}

// WithIDGenerator overrides id generation (default UUIDv7).
func WithIDGenerator(g order.IDGenerator) SimulatedOption {
	return func(s *Simulated) { s.ids = g }
}

// WithNumberGenerator overrides order number generation.
func WithNumberGenerator(g *order.NumberGenerator) SimulatedOption {
	return func(s *Simulated) { s.numbers = g }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) SimulatedOption {
	return func(s *Simulated) { s.now = now }
}

// NewSimulated creates an empty collection.
func NewSimulated(opts ...SimulatedOption) *Simulated {
	s := &Simulated{
		orders:  make(map[string]order.Order),
		ids:     order.UUIDv7Generator{},
		numbers: order.NewNumberGenerator(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder builds and stores a new order.
func (s *Simulated) CreateOrder(ctx context.Context, payload order.Create) (order.Order, error) {
	if err := ctxError(ctx, OpCreate); err != nil {
		return order.Order{}, err
	}
	o := payload.Build(s.ids.Generate(), s.numbers.Next(), s.now())

	s.mu.Lock()
	s.orders[o.ID] = o
	s.mu.Unlock()
	return o.Clone(), nil
}

// Put stores o as-is, replacing any order with the same id.
func (s *Simulated) Put(o order.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o.Clone()
}

// ListOrders returns matching orders, newest first.
func (s *Simulated) ListOrders(ctx context.Context, filter order.Filter) ([]order.Order, error) {
	if err := ctxError(ctx, OpList); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]order.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if filter.Match(o) {
			out = append(out, o.Clone())
		}
	}
	s.mu.RUnlock()

	SortNewestFirst(out)
	return out, nil
}

// GetOrder finds an order by id, then by order number.
func (s *Simulated) GetOrder(ctx context.Context, key string) (*order.Order, error) {
	if err := ctxError(ctx, OpGet); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if o, ok := s.orders[key]; ok {
		c := o.Clone()
		return &c, nil
	}
	for _, o := range s.orders {
		if o.Number == key {
			c := o.Clone()
			return &c, nil
		}
	}
	return nil, nil
}

// Has reports whether id is in the collection.
func (s *Simulated) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.orders[id]
	return ok
}

// All returns every order, newest first.
func (s *Simulated) All() []order.Order {
	s.mu.RLock()
	out := make([]order.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o.Clone())
	}
	s.mu.RUnlock()
	SortNewestFirst(out)
	return out
}

// UpdateOrderStatus applies patch to the stored order.
func (s *Simulated) UpdateOrderStatus(ctx context.Context, id string, patch order.Patch) (order.Order, error) {
	if err := ctxError(ctx, OpUpdate); err != nil {
		return order.Order{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return order.Order{}, NotFound(OpUpdate, id)
	}
	o = patch.Apply(o)
	s.orders[id] = o
	return o.Clone(), nil
}

// SortNewestFirst orders by created_at descending, ties by id.
func SortNewestFirst(orders []order.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID < orders[j].ID
	})
}
