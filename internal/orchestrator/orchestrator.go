package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/wsstress/internal/engine"
	"github.com/rickgao/wsstress/internal/metrics"
)

// DefaultBatchDelay is the pause before each batch of connects.
const DefaultBatchDelay = time.Second

// Errors
var (
	ErrInvalidBatches     = errors.New("num_batches and batch_size must be >= 1")
	ErrEmptyURI           = errors.New("uri is required")
	ErrTooManyConnections = errors.New("connection count overflows")
	ErrNilHandler         = errors.New("handler factory returned nil")
)

// Config describes one ramp-up.
type Config struct {
	URI        string
	NumBatches int
	BatchSize  int
	BatchDelay time.Duration // Zero selects DefaultBatchDelay
}

// Validate checks the ramp shape.
func (c Config) Validate() error {
	if c.NumBatches < 1 || c.BatchSize < 1 {
		return fmt.Errorf("%w: got %d x %d", ErrInvalidBatches, c.NumBatches, c.BatchSize)
	}
	if c.BatchSize > math.MaxInt/c.NumBatches {
		return fmt.Errorf("%w: %d x %d overflows", ErrTooManyConnections, c.NumBatches, c.BatchSize)
	}
	if c.URI == "" {
		return ErrEmptyURI
	}
	return nil
}

// Total returns the number of connections the ramp opens.
func (c Config) Total() int {
	return c.NumBatches * c.BatchSize
}

// Negotiator sizes the process open-file limit for a connection count.
type Negotiator interface {
	Negotiate(desired uint64) uint64
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNegotiator sets the open-file limit negotiator.
func WithNegotiator(n Negotiator) Option {
	return func(o *Orchestrator) {
		o.negotiator = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithSleep replaces the batch pause.
func WithSleep(fn SleepFunc) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.sleep = fn
		}
	}
}

// Orchestrator opens a fixed number of connections in batches.
type Orchestrator struct {
	cfg        Config
	eng        engine.Engine
	newHandler func() engine.Handler
	negotiator Negotiator
	sleep      SleepFunc
	logger     *slog.Logger
	metrics    *metrics.Metrics

	conns   *ConnSet
	fdLimit atomic.Uint64
}

// New creates an Orchestrator. newHandler is called once per connection.
func New(cfg Config, eng engine.Engine, newHandler func() engine.Handler, opts ...Option) *Orchestrator {
	if cfg.BatchDelay == 0 {
		cfg.BatchDelay = DefaultBatchDelay
	}

	o := &Orchestrator{
		cfg:        cfg,
		eng:        eng,
		newHandler: newHandler,
		sleep:      sleepContext,
		logger:     slog.Default(),
		conns:      NewConnSet(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Conns returns the handles issued so far.
func (o *Orchestrator) Conns() *ConnSet {
	return o.conns
}

// Target returns the number of connections the run will open.
func (o *Orchestrator) Target() int {
	return o.cfg.Total()
}

// FDLimit returns the negotiated open-file limit, 0 if unknown.
func (o *Orchestrator) FDLimit() uint64 {
	return o.fdLimit.Load()
}

// Run performs the ramp-up and blocks until the engine loop exits.
//
// A synchronous connect error is returned at once; the engine loop may
// still be running and must be stopped by the caller.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.cfg.Validate(); err != nil {
		return err
	}
	total := o.cfg.Total()

	if o.negotiator != nil {
		limit := o.negotiator.Negotiate(uint64(total))
		o.fdLimit.Store(limit)
		o.metrics.SetFDLimit(limit)
	}

	o.logger.Info("launching connections",
		"count", total,
		"uri", o.cfg.URI,
		"batch_size", o.cfg.BatchSize)

	if err := o.connect(); err != nil {
		return err
	}

	var g errgroup.Group
	g.Go(o.eng.Run)

	for i := 0; i < total-1; i++ {
		if i%o.cfg.BatchSize == 0 {
			if err := o.sleep(ctx, o.cfg.BatchDelay); err != nil {
				o.logger.Warn("ramp-up interrupted", "established", o.conns.Len(), "error", err)
				return err
			}
		}
		if err := o.connect(); err != nil {
			return err
		}
	}

	o.logger.Info("ramp-up complete", "established", o.conns.Len())

	err := g.Wait()
	o.logger.Info("engine loop finished")
	if err != nil {
		return fmt.Errorf("engine loop: %w", err)
	}
	return nil
}

func (o *Orchestrator) connect() error {
	h := o.newHandler()
	if h == nil {
		return ErrNilHandler
	}

	o.metrics.ConnectAttempt()
	c, err := o.eng.Connect(o.cfg.URI, h)
	if err != nil {
		return fmt.Errorf("connect %s: %w", o.cfg.URI, err)
	}
	o.conns.Add(c)
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
