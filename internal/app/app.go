// Package app is the composition root. It builds exactly one instance of
// every sync component from a Config and wires them together; nothing else
// in the module decides between connected and simulated mode.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/kiosksync/internal/broadcast"
	"github.com/roach88/kiosksync/internal/config"
	"github.com/roach88/kiosksync/internal/engine"
	"github.com/roach88/kiosksync/internal/feed"
	"github.com/roach88/kiosksync/internal/metrics"
	"github.com/roach88/kiosksync/internal/order"
	"github.com/roach88/kiosksync/internal/overlay"
	"github.com/roach88/kiosksync/internal/remote"
	"github.com/roach88/kiosksync/internal/store"
)

// Options overrides collaborators, mostly for tests and embedding.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Adapter replaces the adapter the config would select.
	Adapter remote.Adapter
	// Feed replaces the change feed source. Ignored in simulated mode.
	Feed feed.Source
	// Hub joins an in-process broadcast hub instead of Kafka.
	Hub *broadcast.Hub

	Clock   func() time.Time
	IDs     order.IDGenerator
	Numbers *order.NumberGenerator
}

// App holds the long-lived components of one kiosk context.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	Store       *store.Store // nil when durable storage is unavailable
	Overlay     *overlay.Store
	Remote      remote.Adapter
	Local       *remote.Simulated
	Broadcast   broadcast.Channel // nil when broadcast is disabled
	Reconciler  *engine.Reconciler
	Pipeline    *engine.Pipeline
	Listener    *engine.Listener
	Invalidator *engine.Invalidator
}

// New builds an App. The overlay is loaded before New returns, so the
// result is ready to serve reads.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	ids := opts.IDs
	if ids == nil {
		ids = order.UUIDv7Generator{}
	}
	numbers := opts.Numbers
	if numbers == nil {
		numbers = order.NewNumberGenerator()
	}

	policy, err := engine.ParseTerminalPolicy(cfg.Policy.Terminal)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	a := &App{
		Config:      cfg,
		Logger:      logger.With("mode", cfg.Mode()),
		Metrics:     opts.Metrics,
		Invalidator: engine.NewInvalidator(opts.Metrics),
	}

	// Durable storage. Failing to open it degrades to a memory-only overlay.
	var durable overlay.Durable
	st, err := store.Open(cfg.Storage.Path, store.WithClock(clock))
	if err != nil {
		a.Logger.Warn("durable storage unavailable; overlay is memory-only",
			"path", cfg.Storage.Path,
			"error", err,
		)
	} else {
		a.Store = st
		durable = st
	}

	a.Overlay = overlay.New(durable,
		overlay.WithLogger(a.Logger),
		overlay.WithMetrics(opts.Metrics),
	)
	if err := a.Overlay.LoadAll(ctx); err != nil {
		a.closeStore()
		return nil, fmt.Errorf("app: %w", err)
	}

	a.Remote, err = a.selectAdapter(opts, clock)
	if err != nil {
		a.closeStore()
		return nil, err
	}
	a.Local = remote.NewSimulated(
		remote.WithClock(clock),
		remote.WithIDGenerator(ids),
		remote.WithNumberGenerator(numbers),
	)

	if err := a.joinBroadcast(opts); err != nil {
		a.closeStore()
		return nil, err
	}

	engineOpts := []engine.Option{
		engine.WithLocal(a.Local),
		engine.WithLogger(a.Logger),
		engine.WithMetrics(opts.Metrics),
		engine.WithClock(clock),
		engine.WithIDGenerator(ids),
		engine.WithNumberGenerator(numbers),
		engine.WithRemoteTimeout(cfg.Backend.Timeout),
		engine.WithTerminalPolicy(policy),
	}
	a.Reconciler = engine.NewReconciler(a.Remote, a.Overlay, engineOpts...)
	a.Pipeline = engine.NewPipeline(a.Remote, a.Overlay, a.Reconciler, engineOpts...)

	source, err := a.selectFeed(opts)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Listener = engine.NewListener(source, engine.WithLogger(a.Logger))

	a.Logger.Debug("app ready",
		"overlay_entries", a.Overlay.Len(),
		"broadcast", a.Broadcast != nil,
		"listener", a.Listener.Enabled(),
		"terminal_policy", policy.String(),
	)
	return a, nil
}

func (a *App) selectAdapter(opts Options, clock func() time.Time) (remote.Adapter, error) {
	if opts.Adapter != nil {
		return opts.Adapter, nil
	}
	if a.Config.Connected() {
		client, err := remote.NewClient(remote.ClientOptions{
			BaseURL: a.Config.Backend.URL,
			APIKey:  a.Config.Backend.APIKey,
			Logger:  a.Logger,
			Metrics: a.Metrics,
		})
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		return client, nil
	}
	simOpts := []remote.SimulatedOption{remote.WithClock(clock)}
	if a.Config.Simulated.SampleData {
		simOpts = append(simOpts, remote.WithOrders(remote.SampleOrders(clock())...))
	}
	return remote.NewSimulated(simOpts...), nil
}

// joinBroadcast attaches the overlay to other contexts. Kafka is only used
// in connected mode; simulated mode has a single logical backend and nothing
// to be inconsistent with across processes.
func (a *App) joinBroadcast(opts Options) error {
	switch {
	case opts.Hub != nil:
		a.Broadcast = opts.Hub.Join(a.Metrics)
	case a.Config.Connected() && a.Config.KafkaEnabled():
		ch, err := broadcast.NewKafkaChannel(broadcast.KafkaOptions{
			Brokers: a.Config.Kafka.Brokers,
			Topic:   a.Config.Kafka.BroadcastTopic,
			Logger:  a.Logger,
			Metrics: a.Metrics,
		})
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
		a.Broadcast = ch
	default:
		return nil
	}

	a.Broadcast.Subscribe(func(set order.PatchSet) {
		a.Overlay.ReplaceAll(set)
		a.Invalidator.Notify(engine.InvalidateBroadcast)
	})
	a.Overlay.SetPublisher(a.Broadcast)
	return nil
}

func (a *App) selectFeed(opts Options) (feed.Source, error) {
	if !a.Config.Connected() {
		return nil, nil
	}
	if opts.Feed != nil {
		return opts.Feed, nil
	}
	if !a.Config.KafkaEnabled() {
		return nil, nil
	}
	src, err := feed.NewKafkaSource(feed.KafkaOptions{
		Brokers: a.Config.Kafka.Brokers,
		Topic:   a.Config.Kafka.FeedTopic,
		Logger:  a.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return src, nil
}

// Start begins listening for backend changes. Each change fires the
// invalidator.
func (a *App) Start(ctx context.Context) error {
	return a.Listener.Start(ctx, func(ev feed.Event) {
		a.Logger.Debug("backend change", "collection", ev.Collection, "op", ev.Op, "record_id", ev.RecordID)
		a.Invalidator.Notify(engine.InvalidateFeed)
	})
}

// Close stops the listener and releases every resource.
func (a *App) Close() error {
	var errs []error
	if a.Listener != nil {
		a.Listener.Stop()
	}
	if a.Broadcast != nil {
		a.Overlay.SetPublisher(nil)
		if err := a.Broadcast.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close broadcast: %w", err))
		}
		a.Broadcast = nil
	}
	a.Invalidator.Close()
	if err := a.closeStore(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeStore() error {
	if a.Store == nil {
		return nil
	}
	err := a.Store.Close()
	a.Store = nil
	if err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}
