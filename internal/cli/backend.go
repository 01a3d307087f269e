package cli

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/kiosksync/internal/backend"
	"github.com/roach88/kiosksync/internal/feed"
	"github.com/roach88/kiosksync/internal/metrics"
	"github.com/roach88/kiosksync/internal/remote"
)

// BackendOptions holds flags for the backend command.
type BackendOptions struct {
	*RootOptions
	Addr              string
	APIKey            string
	DenyStatusUpdates bool
	NoSampleData      bool

	// Ready, when set, receives the bound address (for tests).
	Ready func(net.Addr)
}

// NewBackendCommand creates the backend command.
func NewBackendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BackendOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "backend",
		Short: "Serve a reference order backend",
		Long: `Serve the order HTTP contract over an in-memory collection.

Kiosks connect with backend.url and backend.api_key. With
--deny-status-updates every status change is refused with 403, the way a
misconfigured permission policy behaves, so kiosks fall back to their
overlay. When kafka.brokers is configured, every change is published to
the change feed topic.`,
		Example: `  kiosksync backend --addr 127.0.0.1:8088 --api-key dev-key
  kiosksync backend --api-key dev-key --deny-status-updates`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackend(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config server.addr)")
	cmd.Flags().StringVar(&opts.APIKey, "api-key", "", "required bearer key (default from config server.api_key)")
	cmd.Flags().BoolVar(&opts.DenyStatusUpdates, "deny-status-updates", false, "refuse every status change with 403")
	cmd.Flags().BoolVar(&opts.NoSampleData, "no-sample-data", false, "start with an empty collection")
	return cmd
}

func runBackend(opts *BackendOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := opts.logger().With("component", "backend")

	policy := backend.Policy{
		APIKey:            cfg.Server.APIKey,
		DenyStatusUpdates: cfg.Server.DenyStatusUpdates || opts.DenyStatusUpdates,
	}
	if opts.APIKey != "" {
		policy.APIKey = opts.APIKey
	}
	addr := cfg.Server.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}

	var simOpts []remote.SimulatedOption
	if !opts.NoSampleData {
		simOpts = append(simOpts, remote.WithOrders(remote.SampleOrders(time.Now())...))
	}
	m := metrics.New()
	serverOpts := []backend.Option{
		backend.WithPolicy(policy),
		backend.WithLogger(logger),
		backend.WithMetrics(m),
	}

	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := feed.NewKafkaSink(feed.KafkaOptions{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.FeedTopic,
			Logger:  logger,
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open change feed", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := sink.Close(flushCtx); err != nil {
				logger.Error("error closing change feed", "error", err)
			}
		}()
		serverOpts = append(serverOpts, backend.WithSink(sink))
	} else {
		logger.Info("no kafka brokers configured, change feed disabled")
	}

	srv := backend.NewServer(remote.NewSimulated(simOpts...), serverOpts...)

	ctx, cancel := signalContext(cmd, logger)
	defer cancel()

	w := cmd.OutOrStdout()
	err = backend.ListenAndServe(ctx, addr, srv, func(bound net.Addr) {
		logger.Info("backend listening",
			"addr", bound.String(),
			"auth", policy.APIKey != "",
			"deny_status_updates", policy.DenyStatusUpdates,
		)
		fmt.Fprintf(w, "Backend listening on http://%s\n", bound)
		fmt.Fprintln(w, "Press Ctrl-C to stop.")
		if opts.Ready != nil {
			opts.Ready(bound)
		}
	})
	if err != nil {
		return WrapExitError(ExitFailure, "backend error", err)
	}
	logger.Info("backend stopped gracefully")
	return nil
}
