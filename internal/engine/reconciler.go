package engine

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/kiosksync/internal/metrics"
	"github.com/roach88/kiosksync/internal/order"
	"github.com/roach88/kiosksync/internal/overlay"
	"github.com/roach88/kiosksync/internal/remote"
	"github.com/roach88/kiosksync/internal/tracing"
)

// Reconciler produces the order view callers observe: the remote record
// with the overlay patch written over it.
//
// Thread-safety: safe for concurrent use; state lives in the overlay store
// and the adapters.
type Reconciler struct {
	remote  remote.Adapter
	overlay *overlay.Store
	local   *remote.Simulated
	logger  *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration
}

// NewReconciler creates a reconciler over adapter and ov.
func NewReconciler(adapter remote.Adapter, ov *overlay.Store, opts ...Option) *Reconciler {
	o := buildOptions(opts)
	return &Reconciler{
		remote:  adapter,
		overlay: ov,
		local:   o.local,
		logger:  o.logger,
		metrics: o.metrics,
		timeout: o.timeout,
	}
}

// ReadOne returns the reconciled order for an id or order number.
//
// A missing order is (nil, nil). When the backend fails, the session-local
// collection is consulted; if it does not know the key either, the remote
// error is returned. The remote call is bounded by the remote timeout.
func (r *Reconciler) ReadOne(ctx context.Context, key string) (*order.Order, error) {
	ctx, span := tracing.Start(ctx, tracing.LayerReconcile, "ReadOne", attribute.String("order.key", key))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	found, err := r.remote.GetOrder(callCtx, key)
	cancel()
	if err != nil {
		r.logger.Warn("remote read failed, using local session",
			"key", key,
			"kind", remote.KindOf(err).String(),
			"error", err,
		)
		if local := r.lookupLocal(ctx, key); local != nil {
			merged := r.apply(*local)
			return &merged, nil
		}
		tracing.Fail(span, err)
		return nil, err
	}

	if found == nil {
		local := r.lookupLocal(ctx, key)
		if local == nil {
			return nil, nil
		}
		merged := r.apply(*local)
		return &merged, nil
	}

	merged := r.reconcile(ctx, *found)
	return &merged, nil
}

// ReadMany returns reconciled orders matching filter, newest first.
//
// The status predicate is dropped for the remote query and applied again
// after the overlay merge, because the overlay may have moved an order into
// or out of the requested statuses. A failing backend degrades to the local
// session view instead of an error.
func (r *Reconciler) ReadMany(ctx context.Context, filter order.Filter) ([]order.Order, error) {
	ctx, span := tracing.Start(ctx, tracing.LayerReconcile, "ReadMany",
		attribute.Int("filter.statuses", len(filter.Statuses)))
	defer span.End()

	query := filter.WithoutStatus()

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	fetched, err := r.remote.ListOrders(callCtx, query)
	cancel()
	if err != nil {
		r.logger.Warn("remote list failed, showing local session only",
			"kind", remote.KindOf(err).String(),
			"error", err,
		)
		fetched = nil
	}

	seen := make(map[string]bool, len(fetched))
	out := make([]order.Order, 0, len(fetched))
	for _, o := range fetched {
		seen[o.ID] = true
		out = append(out, r.reconcile(ctx, o))
	}

	if r.local != nil {
		localOrders, lerr := r.local.ListOrders(ctx, query)
		if lerr != nil {
			r.logger.Warn("local session list failed", "error", lerr)
		}
		for _, o := range localOrders {
			if seen[o.ID] {
				continue
			}
			out = append(out, r.apply(o))
		}
	}

	out = filter.Apply(out)
	remote.SortNewestFirst(out)
	span.SetAttributes(attribute.Int("orders.returned", len(out)))
	return out, nil
}

// reconcile merges the overlay onto a remote record and clears the entry
// when the remote has already caught up with it.
func (r *Reconciler) reconcile(ctx context.Context, o order.Order) order.Order {
	patch, ok := r.overlay.Get(o.ID)
	if !ok {
		return o
	}
	if patch.Status != nil && *patch.Status == o.Status {
		if _, err := r.overlay.Clear(ctx, o.ID); err != nil {
			r.logger.Warn("opportunistic overlay clear failed", "order_id", o.ID, "error", err)
			return patch.Apply(o)
		}
		r.metrics.OpportunisticClear()
		r.logger.Debug("overlay entry cleared, remote caught up", "order_id", o.ID, "status", o.Status)
		return o
	}
	return patch.Apply(o)
}

// apply merges without clearing; used for session-local orders, which the
// remote never confirms.
func (r *Reconciler) apply(o order.Order) order.Order {
	if patch, ok := r.overlay.Get(o.ID); ok {
		return patch.Apply(o)
	}
	return o
}

func (r *Reconciler) lookupLocal(ctx context.Context, key string) *order.Order {
	if r.local == nil {
		return nil
	}
	o, err := r.local.GetOrder(ctx, key)
	if err != nil {
		return nil
	}
	return o
}
