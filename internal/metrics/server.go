package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status is the run state reported by /health.
type Status struct {
	Target      int    `json:"target"`      // Connections the run will attempt
	Established int    `json:"established"` // Connect calls issued so far
	Live        int    `json:"live"`        // Connections dialing or open in the engine
	FDLimit     uint64 `json:"fd_limit"`    // Effective soft RLIMIT_NOFILE (0 = unknown)

	QueuePending   int `json:"queue_pending"`    // Callbacks waiting on the event loop
	QueueHighWater int `json:"queue_high_water"` // Peak of QueuePending
}

// StatusFunc reports the current run state.
type StatusFunc func() Status

// Server exposes /metrics and /health over HTTP.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer builds a server listening on addr. metricsPath is where the
// Prometheus handler is mounted.
func NewServer(addr, metricsPath string, gatherer prometheus.Gatherer, status StatusFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		srv: &http.Server{
			Addr:    addr,
			Handler: newHandler(metricsPath, gatherer, status),
		},
		logger: logger,
	}
}

// Start listens in the background. Listen errors are returned directly.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}

	s.logger.Info("starting metrics server", "addr", ln.Addr().String())

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func newHandler(metricsPath string, gatherer prometheus.Gatherer, status StatusFunc) http.Handler {
	mux := http.NewServeMux()

	mux.Handle(metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		health := struct {
			Status string `json:"status"`
			Run    Status `json:"run"`
		}{
			Status: "healthy",
		}

		if status != nil {
			health.Run = status()
		}
		if health.Run.Established > 0 && health.Run.Live == 0 {
			health.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
