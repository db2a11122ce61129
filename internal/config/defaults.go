package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultURI              = "ws://localhost:9002/"
	DefaultNumBatches       = 1
	DefaultBatchSize        = 1
	DefaultBatchDelay       = 1 * time.Second
	DefaultReportInterval   = 250 * time.Millisecond
	DefaultFDOverhead       = 200
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultQueueSize        = 4096
	DefaultSendQueue        = 64
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultMetricsPath      = "/metrics"
)

func (c *Config) applyDefaults() {
	// Target defaults
	if c.Target.URI == "" {
		c.Target.URI = DefaultURI
	}
	if c.Target.NumBatches == 0 {
		c.Target.NumBatches = DefaultNumBatches
	}
	if c.Target.BatchSize == 0 {
		c.Target.BatchSize = DefaultBatchSize
	}

	if c.Ramp.BatchDelay == 0 {
		c.Ramp.BatchDelay = DefaultBatchDelay
	}
	if c.Reports.Interval == 0 {
		c.Reports.Interval = DefaultReportInterval
	}
	if c.Limits.FDOverhead == 0 {
		c.Limits.FDOverhead = DefaultFDOverhead
	}

	// Engine defaults
	if c.Engine.HandshakeTimeout == 0 {
		c.Engine.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Engine.WriteTimeout == 0 {
		c.Engine.WriteTimeout = DefaultWriteTimeout
	}
	if c.Engine.QueueSize == 0 {
		c.Engine.QueueSize = DefaultQueueSize
	}
	if c.Engine.SendQueue == 0 {
		c.Engine.SendQueue = DefaultSendQueue
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
