package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/rickgao/wsstress/internal/config"
	"github.com/rickgao/wsstress/internal/engine"
	"github.com/rickgao/wsstress/internal/logging"
	"github.com/rickgao/wsstress/internal/metrics"
	"github.com/rickgao/wsstress/internal/orchestrator"
	"github.com/rickgao/wsstress/internal/rlimit"
	"github.com/rickgao/wsstress/internal/stats"
	"github.com/rickgao/wsstress/internal/version"
)

const shutdownTimeout = 10 * time.Second

// options holds the command-line flags.
type options struct {
	config      string
	logLevel    string
	metricsAddr string
}

func main() {
	os.Exit(execute(newRootCmd()))
}

// execute runs cmd and reports any failure as "Exception: <err>" on its
// error stream. The exit code is always 0.
func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Exception: %v\n", err)
	}
	return 0
}

func newRootCmd() *cobra.Command {
	return newCommand(&options{})
}

// newCommand builds the root command with its flags bound to opts.
func newCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stress_client [flags] <uri> <num_batches> <batch_size>",
		Short: "WebSocket connection stress client",
		Long: `stress_client opens num_batches x batch_size WebSocket connections to uri,
pausing between batches. Every connection counts received messages by MD5
digest and reports the counts back to the server as an "acks" message.

Without exactly three arguments it prints usage and runs with the values
from --config, or the defaults (ws://localhost:9002/ 1 1).

Examples:
  stress_client ws://localhost:9002/ 10 100
  stress_client --config stress.yaml
  stress_client --metrics-addr :9464 ws://echo:9002/ 50 200`,
		Version:       version.String(),
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.config, "config", "c", "", "Path to YAML config file")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve /metrics and /health on this address")

	return cmd
}

func run(cmd *cobra.Command, opts *options, args []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	cfg, err := loadConfig(cmd, opts, args)
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}, "stress_client", cmd.OutOrStdout())
	slog.SetDefault(logger)

	logger.Info("starting stress client",
		"version", version.Version,
		"commit", version.Commit,
		"config", opts.config,
	)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	negotiator := rlimit.NewNegotiator(cfg.Limits.FDOverhead, logger)

	eng := engine.NewEndpoint(engine.Config{
		HandshakeTimeout: cfg.Engine.HandshakeTimeout,
		WriteTimeout:     cfg.Engine.WriteTimeout,
		ReadLimit:        cfg.Engine.ReadLimit,
		QueueSize:        cfg.Engine.QueueSize,
		SendQueue:        cfg.Engine.SendQueue,
	}, logger)
	m.ObserveEventQueue(func() metrics.QueueSample {
		qs := eng.QueueStats()
		return metrics.QueueSample{Pending: qs.Pending, HighWater: qs.HighWater}
	})

	logger.Info("run configured",
		"uri", cfg.Target.URI,
		"connections", cfg.Target.Total(),
		"fd_overhead", negotiator.Overhead(),
		"send_queue", cfg.Engine.SendQueue,
	)

	orch := orchestrator.New(orchestrator.Config{
		URI:        cfg.Target.URI,
		NumBatches: cfg.Target.NumBatches,
		BatchSize:  cfg.Target.BatchSize,
		BatchDelay: cfg.Ramp.BatchDelay,
	}, eng, func() engine.Handler {
		return stats.NewAggregator(cfg.Reports.Interval, logger, m)
	},
		orchestrator.WithNegotiator(negotiator),
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(m),
	)

	if cfg.Metrics.Addr != "" {
		srv := metrics.NewServer(cfg.Metrics.Addr, cfg.Metrics.Path, reg, func() metrics.Status {
			qs := eng.QueueStats()
			return metrics.Status{
				Target:         orch.Target(),
				Established:    orch.Conns().Len(),
				Live:           eng.Len(),
				FDLimit:        orch.FDLimit(),
				QueuePending:   qs.Pending,
				QueueHighWater: qs.HighWater,
			}
		}, logger)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			srv.Stop(ctx)
		}()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
			stopEngine(eng, logger)
		case <-done:
		}
	}()

	err = orch.Run(ctx)
	if err != nil {
		stopEngine(eng, logger)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// loadConfig applies defaults, the config file, positional arguments and
// flags, in that order. Usage goes to the command's output stream.
func loadConfig(cmd *cobra.Command, opts *options, args []string) (*config.Config, error) {
	cfg := config.Default()
	if opts.config != "" {
		var err error
		if cfg, err = config.LoadWithDefaults(opts.config); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyArgs(args, cmd.OutOrStdout()); err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.Metrics.Addr = opts.metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func stopEngine(eng *engine.Endpoint, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := eng.Stop(ctx); err != nil {
		logger.Warn("engine did not stop cleanly", "error", err)
	}
}
