package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/roach88/kiosksync/internal/app"
	"github.com/roach88/kiosksync/internal/config"
	"github.com/roach88/kiosksync/internal/engine"
	"github.com/roach88/kiosksync/internal/order"
	"github.com/roach88/kiosksync/internal/remote"
	"github.com/roach88/kiosksync/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and id sources.
type Harness struct {
	scenario *Scenario
	dir      string
	det      *testutil.Deterministic
	backend  *scriptedBackend
	app      *app.App
	aliases  map[string]string
	logger   *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh backend and a fresh storage directory.
//
// Execution flow:
// 1. Seed the simulated backend and open a kiosk context
// 2. Execute steps, checking each expect clause
// 3. Evaluate assertions
// 4. Return result with pass/fail, trace, and errors
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario, nil)
}

// RunContext is Run with a caller context and logger. A nil logger
// discards output.
func RunContext(ctx context.Context, scenario *Scenario, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	dir, err := os.MkdirTemp("", "kiosksync-harness-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	defer os.RemoveAll(dir)

	det := testutil.NewDeterministic("local", testutil.DefaultSeed)
	simOpts := []remote.SimulatedOption{
		remote.WithClock(det.Clock.Now),
		remote.WithIDGenerator(order.NewSequentialIDs("remote")),
		remote.WithNumberGenerator(order.NewSeededNumberGenerator(testutil.DefaultSeed + 1)),
	}
	if scenario.sampleData() {
		simOpts = append(simOpts, remote.WithOrders(remote.SampleOrders(testutil.DefaultBase)...))
	}

	h := &Harness{
		scenario: scenario,
		dir:      dir,
		det:      det,
		backend:  &scriptedBackend{sim: remote.NewSimulated(simOpts...)},
		aliases:  make(map[string]string),
		logger:   logger.With("scenario", scenario.Name),
	}
	if err := h.open(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = h.app.Close() }()

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.execute(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("steps[%d] %s: %w", i, step.Action, err)
		}
	}

	actx := &AssertionContext{
		Ctx:     ctx,
		Overlay: h.app.Overlay,
		Resolve: h.resolve,
	}
	if h.app.Store != nil {
		actx.Durable = h.app.Store
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) open(ctx context.Context) error {
	cfg := config.Default()
	cfg.Storage.Path = filepath.Join(h.dir, "kiosk.db")
	if h.scenario.TerminalPolicy != "" {
		cfg.Policy.Terminal = h.scenario.TerminalPolicy
	}

	a, err := app.New(ctx, cfg, app.Options{
		Logger:  h.logger,
		Adapter: h.backend,
		Clock:   h.det.Clock.Now,
		IDs:     h.det.IDs,
		Numbers: h.det.Numbers,
	})
	if err != nil {
		return fmt.Errorf("failed to open kiosk context: %w", err)
	}
	h.app = a
	return nil
}

// restart simulates closing and reopening the kiosk. The backend survives;
// the overlay comes back from storage and the session-local orders do not.
func (h *Harness) restart(ctx context.Context) error {
	if err := h.app.Close(); err != nil {
		return fmt.Errorf("failed to close kiosk context: %w", err)
	}
	return h.open(ctx)
}

func (h *Harness) resolve(key string) string {
	if alias, ok := strings.CutPrefix(key, "$"); ok {
		return h.aliases[alias]
	}
	return key
}

func (h *Harness) execute(ctx context.Context, idx int, step Step, result *Result) error {
	var ev TraceEvent

	switch step.Action {
	case ActionCreate:
		out, err := h.app.Pipeline.CreateOrder(ctx, step.payload())
		if err != nil {
			return err
		}
		ev = outcomeEvent(out)
		if step.As != "" {
			h.aliases[step.As] = out.Order.ID
		}

	case ActionTransition, ActionCancel:
		key := h.resolve(step.Order)
		var (
			out engine.Outcome
			err error
		)
		if step.Action == ActionCancel {
			out, err = h.app.Pipeline.CancelOrder(ctx, key)
		} else {
			out, err = h.app.Pipeline.TransitionStatus(ctx, key, order.Status(step.Status))
		}
		switch {
		case err == nil:
			ev = outcomeEvent(out)
		case engine.IsCallerError(err):
			ev = TraceEvent{Order: key, Error: errorClass(err)}
		default:
			return err
		}

	case ActionRead:
		key := h.resolve(step.Order)
		o, err := h.app.Reconciler.ReadOne(ctx, key)
		switch {
		case err != nil:
			ev = TraceEvent{Order: key, Error: "unavailable"}
		case o == nil:
			ev = TraceEvent{Order: key, Error: "not_found"}
		default:
			ev = TraceEvent{Order: o.ID, Status: string(o.Status)}
		}

	case ActionList:
		filter := order.Filter{SearchText: step.Search}
		for _, s := range step.Statuses {
			filter.Statuses = append(filter.Statuses, order.Status(s))
		}
		orders, err := h.app.Reconciler.ReadMany(ctx, filter)
		if err != nil {
			return err
		}
		ids := make([]string, len(orders))
		for i, o := range orders {
			ids[i] = o.ID
		}
		ev = TraceEvent{Orders: ids}

	case ActionRestart:
		if err := h.restart(ctx); err != nil {
			return err
		}

	case ActionRejectUpdates:
		h.backend.setMode(backendRejectUpdates)
	case ActionGoOffline:
		h.backend.setMode(backendOffline)
	case ActionGoOnline:
		h.backend.setMode(backendOnline)

	case ActionBackendStatus:
		updated, err := h.backend.setStatus(ctx, h.resolve(step.Order), order.Status(step.Status), h.det.Clock.Now())
		if err != nil {
			return err
		}
		ev = TraceEvent{Order: updated.ID, Status: string(updated.Status)}

	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}

	ev.Action = step.Action
	if ev.Order != "" {
		_, ev.Overlay = h.app.Overlay.Get(ev.Order)
	}
	ev = result.record(ev)

	if step.Expect != nil {
		for _, msg := range h.checkExpect(step.Expect, ev) {
			result.AddError(fmt.Sprintf("steps[%d] %s: %s", idx, step.Action, msg))
		}
	}
	return nil
}

func (s Step) payload() order.Create {
	c := order.Create{
		Fulfillment: order.Fulfillment(s.Fulfillment),
		Customer:    order.Customer{Name: s.Customer},
	}
	for _, it := range s.Items {
		c.Items = append(c.Items, order.Item{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return c
}

func outcomeEvent(out engine.Outcome) TraceEvent {
	ev := TraceEvent{
		Order:  out.Order.ID,
		Status: string(out.Order.Status),
		Source: out.Source.String(),
	}
	if out.Failure != remote.KindNone {
		ev.Failure = out.Failure.String()
	}
	return ev
}

func errorClass(err error) string {
	switch {
	case errors.Is(err, engine.ErrInvalidStatus):
		return "invalid_status"
	case errors.Is(err, engine.ErrTerminalState):
		return "terminal_state"
	case errors.Is(err, engine.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, engine.ErrOrderNotFound):
		return "not_found"
	case errors.Is(err, engine.ErrUnresolvedOrder):
		return "unresolved"
	}
	return err.Error()
}

func (h *Harness) checkExpect(e *Expect, ev TraceEvent) []string {
	var errs []string
	mismatch := func(field, want, got string) {
		errs = append(errs, fmt.Sprintf("expected %s %q, got %q", field, want, got))
	}

	if e.Error != ev.Error {
		mismatch("error", e.Error, ev.Error)
	}
	if e.Status != "" && e.Status != ev.Status {
		mismatch("status", e.Status, ev.Status)
	}
	if e.Source != "" && e.Source != ev.Source {
		mismatch("source", e.Source, ev.Source)
	}
	if e.Failure != "" && e.Failure != ev.Failure {
		mismatch("failure", e.Failure, ev.Failure)
	}
	if e.Overlay != nil && *e.Overlay != ev.Overlay {
		errs = append(errs, fmt.Sprintf("expected overlay entry %t, got %t", *e.Overlay, ev.Overlay))
	}

	listed := make(map[string]bool, len(ev.Orders))
	for _, id := range ev.Orders {
		listed[id] = true
	}
	for _, key := range e.Includes {
		if id := h.resolve(key); !listed[id] {
			errs = append(errs, fmt.Sprintf("expected %s in %v", id, ev.Orders))
		}
	}
	for _, key := range e.Excludes {
		if id := h.resolve(key); listed[id] {
			errs = append(errs, fmt.Sprintf("expected %s absent from %v", id, ev.Orders))
		}
	}
	if e.Count != nil && *e.Count != len(ev.Orders) {
		errs = append(errs, fmt.Sprintf("expected %d orders, got %d", *e.Count, len(ev.Orders)))
	}
	return errs
}

type backendMode int

const (
	backendOnline backendMode = iota
	backendRejectUpdates
	backendOffline
)

var errBackendOffline = errors.New("backend offline")

// scriptedBackend is the simulated backend with a switch for how it answers.
type scriptedBackend struct {
	sim *remote.Simulated

	mu   sync.Mutex
	mode backendMode
}

var _ remote.Adapter = (*scriptedBackend)(nil)

func (b *scriptedBackend) setMode(m backendMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mode = m
}

func (b *scriptedBackend) current() backendMode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mode
}

func (b *scriptedBackend) CreateOrder(ctx context.Context, payload order.Create) (order.Order, error) {
	if b.current() == backendOffline {
		return order.Order{}, remote.Unreachable(remote.OpCreate, errBackendOffline)
	}
	return b.sim.CreateOrder(ctx, payload)
}

func (b *scriptedBackend) ListOrders(ctx context.Context, filter order.Filter) ([]order.Order, error) {
	if b.current() == backendOffline {
		return nil, remote.Unreachable(remote.OpList, errBackendOffline)
	}
	return b.sim.ListOrders(ctx, filter)
}

func (b *scriptedBackend) GetOrder(ctx context.Context, key string) (*order.Order, error) {
	if b.current() == backendOffline {
		return nil, remote.Unreachable(remote.OpGet, errBackendOffline)
	}
	return b.sim.GetOrder(ctx, key)
}

func (b *scriptedBackend) UpdateOrderStatus(ctx context.Context, id string, patch order.Patch) (order.Order, error) {
	switch b.current() {
	case backendOffline:
		return order.Order{}, remote.Unreachable(remote.OpUpdate, errBackendOffline)
	case backendRejectUpdates:
		return remote.FailingUpdates{Adapter: b.sim}.UpdateOrderStatus(ctx, id, patch)
	}
	return b.sim.UpdateOrderStatus(ctx, id, patch)
}

// setStatus changes an order behind the kiosk's back, regardless of mode.
func (b *scriptedBackend) setStatus(ctx context.Context, key string, status order.Status, now time.Time) (order.Order, error) {
	found, err := b.sim.GetOrder(ctx, key)
	if err != nil {
		return order.Order{}, err
	}
	if found == nil {
		return order.Order{}, remote.NotFound(remote.OpUpdate, key)
	}
	patch, err := order.StatusPatch(status, now)
	if err != nil {
		return order.Order{}, err
	}
	return b.sim.UpdateOrderStatus(ctx, found.ID, patch)
}
