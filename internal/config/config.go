// Package config loads stress client configuration from YAML, the
// environment and positional command-line arguments.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full stress client configuration.
type Config struct {
	Target  TargetConfig  `yaml:"target"`
	Ramp    RampConfig    `yaml:"ramp"`
	Reports ReportsConfig `yaml:"reports"`
	Limits  LimitsConfig  `yaml:"limits"`
	Engine  EngineConfig  `yaml:"engine"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// TargetConfig selects the server and the number of connections.
type TargetConfig struct {
	URI        string `yaml:"uri"`
	NumBatches int    `yaml:"num_batches"`
	BatchSize  int    `yaml:"batch_size"`
}

// Total returns the number of connections a run opens.
func (t TargetConfig) Total() int {
	return t.NumBatches * t.BatchSize
}

// RampConfig controls batch pacing.
type RampConfig struct {
	BatchDelay time.Duration `yaml:"batch_delay"`
}

// ReportsConfig controls ack reporting.
type ReportsConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// LimitsConfig controls open-file limit negotiation.
type LimitsConfig struct {
	FDOverhead uint64 `yaml:"fd_overhead"`
}

// EngineConfig tunes the WebSocket engine.
type EngineConfig struct {
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	ReadLimit        int64         `yaml:"read_limit"` // 0 = unlimited
	QueueSize        int           `yaml:"queue_size"`
	SendQueue        int           `yaml:"send_queue"` // Per-connection outbound messages
}

// LoggingConfig selects log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // Empty disables the server
	Path string `yaml:"path"`
}

// Load reads a YAML file, expanding ${VAR} references from the environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// LoadWithDefaults reads a YAML file and fills unset fields.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate reads a YAML file, fills unset fields and validates.
// An empty path yields the defaults.
func LoadAndValidate(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		var err error
		if cfg, err = LoadWithDefaults(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Default returns a configuration with every field at its default.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}
