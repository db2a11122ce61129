package rlimit

import (
	"errors"
	"log/slog"
	"syscall"
)

// DefaultOverhead is the number of descriptors reserved beyond one per
// connection.
const DefaultOverhead = 200

// Limit is a soft/hard pair for the open-file resource.
type Limit struct {
	Soft uint64
	Hard uint64
}

// Syscaller reads and writes RLIMIT_NOFILE.
type Syscaller interface {
	Getrlimit() (Limit, error)
	Setrlimit(Limit) error
}

// Option configures a Negotiator.
type Option func(*Negotiator)

// WithSyscaller replaces the OS syscaller, mostly for tests.
func WithSyscaller(s Syscaller) Option {
	return func(n *Negotiator) {
		n.sys = s
	}
}

// Negotiator raises the open-file limit to fit a desired connection count.
type Negotiator struct {
	overhead uint64
	sys      Syscaller
	logger   *slog.Logger
}

// NewNegotiator creates a Negotiator reserving overhead descriptors on top of
// each request. Zero overhead selects DefaultOverhead.
func NewNegotiator(overhead uint64, logger *slog.Logger, opts ...Option) *Negotiator {
	if logger == nil {
		logger = slog.Default()
	}
	if overhead == 0 {
		overhead = DefaultOverhead
	}

	n := &Negotiator{
		overhead: overhead,
		sys:      osSyscaller{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Overhead returns the reserved descriptor count.
func (n *Negotiator) Overhead() uint64 {
	return n.overhead
}

// Negotiate makes room for desired connections and returns the effective
// soft limit. It returns 0 when the limit cannot be read.
func (n *Negotiator) Negotiate(desired uint64) uint64 {
	ideal := n.overhead + desired

	cur, err := n.sys.Getrlimit()
	if err != nil {
		n.logger.Warn("unable to read file descriptor limit", "error", err)
		return 0
	}

	if cur.Soft >= ideal {
		n.logger.Debug("file descriptor limit sufficient", "limit", cur.Soft, "needed", ideal)
		return cur.Soft
	}

	n.logger.Info("raising file descriptor limit", "from", cur.Soft, "to", ideal)

	next := Limit{Soft: ideal, Hard: max(cur.Hard, ideal)}
	if err := n.sys.Setrlimit(next); err != nil {
		var errno syscall.Errno
		switch {
		case errors.Is(err, syscall.EPERM):
			n.logger.Warn("failed to raise file descriptor limit, permission denied",
				"limit", cur.Soft,
				"system_max", cur.Hard,
				"hint", "run as root to raise the hard limit")
		case errors.As(err, &errno):
			n.logger.Warn("failed to raise file descriptor limit",
				"limit", cur.Soft,
				"errno", int(errno),
				"error", err)
		default:
			n.logger.Warn("failed to raise file descriptor limit",
				"limit", cur.Soft,
				"error", err)
		}
		return cur.Soft
	}

	n.logger.Info("file descriptor limit raised", "limit", ideal)
	return ideal
}
