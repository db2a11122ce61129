package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Target.URI == "" {
		return errors.New("target.uri is required")
	}
	u, err := url.Parse(c.Target.URI)
	if err != nil {
		return fmt.Errorf("target.uri: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("target.uri scheme must be ws or wss, got %q", u.Scheme)
	}
	if c.Target.NumBatches < 1 {
		return errors.New("target.num_batches must be >= 1")
	}
	if c.Target.BatchSize < 1 {
		return errors.New("target.batch_size must be >= 1")
	}
	if c.Target.BatchSize > math.MaxInt/c.Target.NumBatches {
		return fmt.Errorf("target.num_batches (%d) x target.batch_size (%d) overflows", c.Target.NumBatches, c.Target.BatchSize)
	}

	if c.Ramp.BatchDelay < 0 {
		return errors.New("ramp.batch_delay must be >= 0")
	}
	if c.Reports.Interval <= 0 {
		return errors.New("reports.interval must be > 0")
	}

	if c.Engine.HandshakeTimeout < 0 {
		return errors.New("engine.handshake_timeout must be >= 0")
	}
	if c.Engine.WriteTimeout < 0 {
		return errors.New("engine.write_timeout must be >= 0")
	}
	if c.Engine.ReadLimit < 0 {
		return errors.New("engine.read_limit must be >= 0")
	}
	if c.Engine.QueueSize < 1 {
		return errors.New("engine.queue_size must be >= 1")
	}
	if c.Engine.SendQueue < 1 {
		return errors.New("engine.send_queue must be >= 1")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return errors.New("metrics.path must start with /")
	}

	return nil
}
