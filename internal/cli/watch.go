package cli

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/kiosksync/internal/app"
	"github.com/roach88/kiosksync/internal/backend"
	"github.com/roach88/kiosksync/internal/metrics"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	OrdersListOptions
	MetricsAddr string
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{OrdersListOptions: OrdersListOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show orders and refresh them on every change",
		Long: `Show the order list and print it again whenever the backend's change
feed or another kiosk's overlay broadcast reports a change.

In simulated mode there is no change feed; only an in-process broadcast can
trigger a refresh.`,
		Example: `  kiosksync watch --status new,preparing
  kiosksync watch --metrics-addr 127.0.0.1:9464`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Statuses, "status", nil, "only these statuses (repeatable or comma separated)")
	cmd.Flags().StringVar(&opts.Search, "search", "", "match order number, customer name or phone")
	cmd.Flags().StringVar(&opts.From, "from", "", "created at or after (RFC 3339)")
	cmd.Flags().StringVar(&opts.To, "to", "", "created before (RFC 3339)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	filter, err := opts.filter()
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	if opts.MetricsAddr != "" {
		m = metrics.New()
	}

	a, err := opts.openApp(commandContext(cmd), m)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			a.Logger.Error("error closing kiosk context", "error", cerr)
		}
	}()

	ctx, cancel := signalContext(cmd, a.Logger)
	defer cancel()

	metricsErr := make(chan error, 1)
	if m != nil {
		go func() {
			metricsErr <- backend.ListenAndServe(ctx, opts.MetricsAddr, m.Handler(), func(addr net.Addr) {
				a.Logger.Info("metrics listening", "addr", addr.String())
			})
		}()
	}

	if err := a.Start(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to start listener", err)
	}

	f := opts.formatter(cmd)
	render := func() error {
		orders, err := a.Reconciler.ReadMany(ctx, filter)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to list orders", err)
		}
		if f.Format == "text" {
			fmt.Fprintf(f.Writer, "--- %s (%d orders)\n", time.Now().Format(time.TimeOnly), len(orders))
		}
		return f.Success(OrderList(orders))
	}

	if err := render(); err != nil {
		return err
	}
	return watchLoop(ctx, a, metricsErr, render)
}

func watchLoop(ctx context.Context, a *app.App, metricsErr <-chan error, render func() error) error {
	for {
		select {
		case <-ctx.Done():
			a.Logger.Info("watch stopped")
			return nil
		case err := <-metricsErr:
			if err != nil {
				return WrapExitError(ExitCommandError, "metrics server failed", err)
			}
		case _, ok := <-a.Invalidator.C():
			if !ok {
				return nil
			}
			if err := render(); err != nil {
				return err
			}
		}
	}
}
