package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/wsstress/internal/logging"
	"github.com/rickgao/wsstress/internal/version"
)

var (
	flagAddr         string
	flagEmitInterval time.Duration
	flagDistinct     int
	flagLogLevel     string
	flagLogFormat    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "echo_server",
	Short: "WebSocket peer for stress_client",
	Long: `echo_server accepts WebSocket connections, echoes data messages, sends a
rotating set of payloads to every client and logs the ack reports it gets back.

Examples:
  echo_server
  echo_server --addr :9002 --emit-interval 50ms --distinct 8
  echo_server --emit-interval 0   # pure echo`,
	Version:      version.String(),
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func init() {
	rootCmd.Flags().StringVarP(&flagAddr, "addr", "a", ":9002", "Listen address")
	rootCmd.Flags().DurationVar(&flagEmitInterval, "emit-interval", 100*time.Millisecond, "Payload emit period per connection (0 disables)")
	rootCmd.Flags().IntVar(&flagDistinct, "distinct", 4, "Number of distinct payloads to rotate through")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")
}

func serve() error {
	logger := logging.New(logging.Config{Level: flagLogLevel, Format: flagLogFormat}, "echo_server", os.Stdout)
	slog.SetDefault(logger)

	s := newServer(flagEmitInterval, flagDistinct, logger)
	srv := &http.Server{
		Addr:    flagAddr,
		Handler: s,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting echo server", "addr", flagAddr, "emit_interval", flagEmitInterval)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down...",
		"reports", s.reports.Load(),
		"acked_messages", s.acked.Load(),
		"emitted_messages", s.messages.Load(),
	)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
