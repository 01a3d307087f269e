package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/kiosksync/internal/metrics"
	"github.com/roach88/kiosksync/internal/order"
	"github.com/roach88/kiosksync/internal/overlay"
	"github.com/roach88/kiosksync/internal/remote"
	"github.com/roach88/kiosksync/internal/tracing"
)

// Source says where an Outcome's order came from.
type Source int

const (
	// SourceRemote: the backend accepted the write and returned the record.
	SourceRemote Source = iota
	// SourceOverlay: the backend failed; the status change lives in the overlay.
	SourceOverlay
	// SourceLocal: the backend failed a creation; the order lives in the
	// session-local collection.
	SourceLocal
)

func (s Source) String() string {
	switch s {
	case SourceRemote:
		return "remote"
	case SourceOverlay:
		return "overlay"
	case SourceLocal:
		return "local"
	}
	return fmt.Sprintf("source(%d)", int(s))
}

// Outcome is the typed result of a write.
type Outcome struct {
	Order  order.Order
	Source Source
	// Failure is the remote failure that caused a fallback; KindNone when
	// Source is SourceRemote.
	Failure remote.Kind
}

// FellBack reports whether the write was absorbed locally.
func (o Outcome) FellBack() bool {
	return o.Source != SourceRemote
}

// Pipeline is the write-through mutation path.
//
// Every write goes to the backend first, once, under a timeout. On any
// failure the change is kept locally and the caller still gets an order to
// show. Callers never see remote failures as errors.
type Pipeline struct {
	remote     remote.Adapter
	overlay    *overlay.Store
	reconciler *Reconciler
	local      *remote.Simulated

	now     func() time.Time
	ids     order.IDGenerator
	numbers *order.NumberGenerator
	timeout time.Duration
	policy  TerminalPolicy

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewPipeline creates a pipeline. When no WithLocal option is given, a fresh
// session-local collection is created so creation fallbacks always have
// somewhere to go.
func NewPipeline(adapter remote.Adapter, ov *overlay.Store, reconciler *Reconciler, opts ...Option) *Pipeline {
	o := buildOptions(opts)
	local := o.local
	if local == nil {
		local = remote.NewSimulated(remote.WithClock(o.now))
	}
	return &Pipeline{
		remote:     adapter,
		overlay:    ov,
		reconciler: reconciler,
		local:      local,
		now:        o.now,
		ids:        o.ids,
		numbers:    o.numbers,
		timeout:    o.timeout,
		policy:     o.policy,
		logger:     o.logger,
		metrics:    o.metrics,
	}
}

// Policy returns the configured terminal policy.
func (p *Pipeline) Policy() TerminalPolicy {
	return p.policy
}

// CreateOrder persists a new order, falling back to the session-local
// collection with a locally generated id and order number.
func (p *Pipeline) CreateOrder(ctx context.Context, payload order.Create) (Outcome, error) {
	ctx, span := tracing.Start(ctx, tracing.LayerPipeline, "CreateOrder",
		attribute.Int("order.items", len(payload.Items)))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	created, err := p.remote.CreateOrder(callCtx, payload)
	cancel()
	if err == nil {
		p.logger.Info("order created", "order_id", created.ID, "order_number", created.Number)
		return Outcome{Order: created, Source: SourceRemote}, nil
	}

	kind := remote.KindOf(err)
	p.metrics.Fallback(remote.OpCreate, kind.String())
	tracing.Fail(span, err)

	synthesized := payload.Build(p.ids.Generate(), p.numbers.Next(), p.now())
	p.local.Put(synthesized)

	p.logger.Warn("remote create failed, order kept in local session",
		"order_id", synthesized.ID,
		"order_number", synthesized.Number,
		"kind", kind.String(),
		"error", err,
	)
	return Outcome{Order: synthesized, Source: SourceLocal, Failure: kind}, nil
}

// TransitionStatus moves an order to status.
//
// The current status is read through the Reconciler and checked against the
// terminal policy and the forward-only rule. If that read fails, the check is
// skipped rather than blocking the kiosk. On remote success the overlay entry
// is cleared; on failure the patch is merged into the overlay.
func (p *Pipeline) TransitionStatus(ctx context.Context, id string, status order.Status) (Outcome, error) {
	ctx, span := tracing.Start(ctx, tracing.LayerPipeline, "TransitionStatus",
		attribute.String("order.key", id),
		attribute.String("order.status", string(status)))
	defer span.End()

	if !status.Valid() {
		return Outcome{}, &TransitionError{OrderID: id, To: status, Err: ErrInvalidStatus}
	}

	current, readErr := p.reconciler.ReadOne(ctx, id)
	switch {
	case readErr != nil && order.NumberPattern.MatchString(id):
		// The overlay is keyed by id; a patch stored under a number would
		// never be applied.
		tracing.Fail(span, readErr)
		return Outcome{Failure: remote.KindOf(readErr)},
			&TransitionError{OrderID: id, To: status, Err: ErrUnresolvedOrder}
	case readErr != nil:
		p.logger.Warn("transition without status check, current state unreadable",
			"order_id", id,
			"error", readErr,
		)
	case current == nil:
		return Outcome{}, &TransitionError{OrderID: id, To: status, Err: ErrOrderNotFound}
	default:
		id = current.ID
		if err := p.policy.Check(id, current.Status, status); err != nil {
			return Outcome{Order: *current}, err
		}
	}

	patch, err := p.statusPatch(id, status)
	if err != nil {
		return Outcome{}, &TransitionError{OrderID: id, To: status, Err: ErrInvalidStatus}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	updated, err := p.remote.UpdateOrderStatus(callCtx, id, patch)
	cancel()

	if err == nil {
		if _, cerr := p.overlay.Clear(ctx, id); cerr != nil {
			p.logger.Warn("overlay clear after remote write failed", "order_id", id, "error", cerr)
		}
		p.logger.Info("order status updated", "order_id", id, "status", status)
		return Outcome{Order: updated, Source: SourceRemote}, nil
	}

	kind := remote.KindOf(err)
	p.metrics.Fallback(remote.OpUpdate, kind.String())
	tracing.Fail(span, err)

	if _, merr := p.overlay.Merge(ctx, id, patch); merr != nil {
		p.logger.Warn("overlay merge failed", "order_id", id, "error", merr)
	}

	base := order.Order{ID: id}
	if current != nil {
		base = *current
	}
	p.logger.Warn("remote status update failed, change kept in overlay",
		"order_id", id,
		"status", status,
		"kind", kind.String(),
		"error", err,
	)
	return Outcome{Order: patch.Apply(base), Source: SourceOverlay, Failure: kind}, nil
}

// statusPatch builds the patch for moving id to status. A pending overlay
// entry for the same status is reused as is, so a retried transition leaves
// the overlay exactly as the first attempt did.
func (p *Pipeline) statusPatch(id string, status order.Status) (order.Patch, error) {
	if pending, ok := p.overlay.Get(id); ok && pending.StatusValue() == status {
		return pending, nil
	}
	return order.StatusPatch(status, p.now())
}

// CancelOrder transitions an order to cancelled.
func (p *Pipeline) CancelOrder(ctx context.Context, id string) (Outcome, error) {
	return p.TransitionStatus(ctx, id, order.StatusCancelled)
}
