package engine

import (
	"io"
	"log/slog"
	"time"

	"github.com/roach88/kiosksync/internal/metrics"
	"github.com/roach88/kiosksync/internal/order"
	"github.com/roach88/kiosksync/internal/remote"
)

// DefaultRemoteTimeout bounds a single remote attempt on the write path.
const DefaultRemoteTimeout = 5 * time.Second

type options struct {
	local   *remote.Simulated
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	ids     order.IDGenerator
	numbers *order.NumberGenerator
	timeout time.Duration
	policy  TerminalPolicy
}

// Option configures a Reconciler or Pipeline. Options that do not apply to
// a component are ignored by it.
type Option func(*options)

// WithLocal sets the session-local collection that holds orders created
// while the backend was failing.
func WithLocal(local *remote.Simulated) Option {
	return func(o *options) { o.local = local }
}

// WithLogger sets the logger. Default discards.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics sink. Default none.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock overrides the time source for patch timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator overrides ids for locally synthesized orders.
func WithIDGenerator(g order.IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithNumberGenerator overrides order numbers for locally synthesized orders.
func WithNumberGenerator(g *order.NumberGenerator) Option {
	return func(o *options) { o.numbers = g }
}

// WithRemoteTimeout bounds each remote attempt.
//
// Default: 5s (DefaultRemoteTimeout). Zero or negative keeps the default.
func WithRemoteTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithTerminalPolicy selects how terminal orders are treated.
func WithTerminalPolicy(p TerminalPolicy) Option {
	return func(o *options) { o.policy = p }
}

func buildOptions(opts []Option) options {
	o := options{
		now:     time.Now,
		ids:     order.UUIDv7Generator{},
		timeout: DefaultRemoteTimeout,
		policy:  TerminalReject,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.numbers == nil {
		o.numbers = order.NewNumberGenerator()
	}
	return o
}
