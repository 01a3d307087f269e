package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/kiosksync/internal/order"
	"github.com/roach88/kiosksync/internal/overlay"
	"github.com/roach88/kiosksync/internal/remote"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// downAdapter fails every call with the configured kind.
type downAdapter struct {
	kind remote.Kind
}

func (d downAdapter) fail(op string) error {
	if d.kind == remote.KindRejected {
		return remote.Rejected(op, "permission denied")
	}
	return remote.Unreachable(op, context.DeadlineExceeded)
}

func (d downAdapter) CreateOrder(context.Context, order.Create) (order.Order, error) {
	return order.Order{}, d.fail(remote.OpCreate)
}

func (d downAdapter) ListOrders(context.Context, order.Filter) ([]order.Order, error) {
	return nil, d.fail(remote.OpList)
}

func (d downAdapter) GetOrder(context.Context, string) (*order.Order, error) {
	return nil, d.fail(remote.OpGet)
}

func (d downAdapter) UpdateOrderStatus(context.Context, string, order.Patch) (order.Order, error) {
	return order.Order{}, d.fail(remote.OpUpdate)
}

// slowAdapter blocks updates until the context ends.
type slowAdapter struct {
	remote.Adapter
}

func (s slowAdapter) UpdateOrderStatus(ctx context.Context, _ string, _ order.Patch) (order.Order, error) {
	<-ctx.Done()
	return order.Order{}, remote.Unreachable(remote.OpUpdate, ctx.Err())
}

// hangingReads blocks reads until the context ends, like a backend that
// accepts the connection and never answers.
type hangingReads struct {
	remote.Adapter
}

func (h hangingReads) GetOrder(ctx context.Context, _ string) (*order.Order, error) {
	<-ctx.Done()
	return nil, remote.Unreachable(remote.OpGet, ctx.Err())
}

func (h hangingReads) ListOrders(ctx context.Context, _ order.Filter) ([]order.Order, error) {
	<-ctx.Done()
	return nil, remote.Unreachable(remote.OpList, ctx.Err())
}

type fixture struct {
	sim        *remote.Simulated
	local      *remote.Simulated
	overlay    *overlay.Store
	reconciler *Reconciler
	pipeline   *Pipeline
}

func newSim(orders ...order.Order) *remote.Simulated {
	return remote.NewSimulated(
		remote.WithClock(fixedClock),
		remote.WithIDGenerator(order.NewSequentialIDs("remote")),
		remote.WithNumberGenerator(order.NewSeededNumberGenerator(1)),
		remote.WithOrders(orders...),
	)
}

// newFixture wires the engine over adapter. When adapter is nil a simulated
// backend seeded with the sample orders is used.
func newFixture(t *testing.T, adapter remote.Adapter, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		local:   remote.NewSimulated(remote.WithClock(fixedClock)),
		overlay: overlay.New(nil),
	}
	if adapter == nil {
		f.sim = newSim(remote.SampleOrders(testNow)...)
		adapter = f.sim
	}
	require.NoError(t, f.overlay.LoadAll(context.Background()))

	base := []Option{
		WithLocal(f.local),
		WithClock(fixedClock),
		WithIDGenerator(order.NewSequentialIDs("local")),
		WithNumberGenerator(order.NewSeededNumberGenerator(2)),
	}
	opts = append(base, opts...)
	f.reconciler = NewReconciler(adapter, f.overlay, opts...)
	f.pipeline = NewPipeline(adapter, f.overlay, f.reconciler, opts...)
	return f
}

func statusPatch(t *testing.T, s order.Status) order.Patch {
	t.Helper()
	p, err := order.StatusPatch(s, testNow)
	require.NoError(t, err)
	return p
}

func sampleCreate() order.Create {
	return order.Create{
		Customer: order.Customer{Name: "Ines", Phone: "555-0100"},
		Items:    []order.Item{{ProductID: "soup", Name: "Tomato Soup", Quantity: 1, UnitPrice: 650}},
	}
}
