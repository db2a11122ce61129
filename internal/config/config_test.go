package config

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
target:
  uri: ws://stress.internal:9002/
  num_batches: 10
  batch_size: 100
ramp:
  batch_delay: 500ms
engine:
  queue_size: 1024
logging:
  level: debug
  format: json
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Target.URI != "ws://stress.internal:9002/" {
		t.Errorf("Target.URI = %q, want %q", cfg.Target.URI, "ws://stress.internal:9002/")
	}
	if cfg.Target.Total() != 1000 {
		t.Errorf("Target.Total() = %d, want %d", cfg.Target.Total(), 1000)
	}
	if cfg.Ramp.BatchDelay != 500*time.Millisecond {
		t.Errorf("Ramp.BatchDelay = %v, want %v", cfg.Ramp.BatchDelay, 500*time.Millisecond)
	}
	if cfg.Engine.QueueSize != 1024 {
		t.Errorf("Engine.QueueSize = %d, want %d", cfg.Engine.QueueSize, 1024)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
	// Load does not apply defaults.
	if cfg.Reports.Interval != 0 {
		t.Errorf("Reports.Interval = %v, want 0", cfg.Reports.Interval)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_STRESS_HOST", "echo.internal")
	t.Setenv("TEST_METRICS_ADDR", ":9464")

	yaml := `
target:
  uri: ws://${TEST_STRESS_HOST}:9002/
metrics:
  addr: ${TEST_METRICS_ADDR}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Target.URI != "ws://echo.internal:9002/" {
		t.Errorf("Target.URI = %q, want %q", cfg.Target.URI, "ws://echo.internal:9002/")
	}
	if cfg.Metrics.Addr != ":9464" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9464")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load error = %v, want os.ErrNotExist", err)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
target:
  num_batches: 4
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Target.URI != DefaultURI {
		t.Errorf("Target.URI = %q, want default %q", cfg.Target.URI, DefaultURI)
	}
	if cfg.Target.NumBatches != 4 {
		t.Errorf("Target.NumBatches = %d, want %d", cfg.Target.NumBatches, 4)
	}
	if cfg.Target.BatchSize != DefaultBatchSize {
		t.Errorf("Target.BatchSize = %d, want default %d", cfg.Target.BatchSize, DefaultBatchSize)
	}
	if cfg.Ramp.BatchDelay != DefaultBatchDelay {
		t.Errorf("Ramp.BatchDelay = %v, want default %v", cfg.Ramp.BatchDelay, DefaultBatchDelay)
	}
	if cfg.Reports.Interval != DefaultReportInterval {
		t.Errorf("Reports.Interval = %v, want default %v", cfg.Reports.Interval, DefaultReportInterval)
	}
	if cfg.Limits.FDOverhead != DefaultFDOverhead {
		t.Errorf("Limits.FDOverhead = %d, want default %d", cfg.Limits.FDOverhead, DefaultFDOverhead)
	}
	if cfg.Metrics.Addr != "" {
		t.Errorf("Metrics.Addr = %q, want empty", cfg.Metrics.Addr)
	}
	if cfg.Engine.SendQueue != DefaultSendQueue {
		t.Errorf("Engine.SendQueue = %d, want default %d", cfg.Engine.SendQueue, DefaultSendQueue)
	}
	if cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics.Path = %q, want default %q", cfg.Metrics.Path, DefaultMetricsPath)
	}
}

func TestLoadAndValidate(t *testing.T) {
	cfg, err := LoadAndValidate("")
	if err != nil {
		t.Fatalf("LoadAndValidate(\"\") failed: %v", err)
	}
	if cfg.Target.URI != DefaultURI || cfg.Target.Total() != 1 {
		t.Errorf("defaults = %q x %d, want %q x 1", cfg.Target.URI, cfg.Target.Total(), DefaultURI)
	}

	path := writeTempFile(t, "target:\n  uri: http://localhost:9002/\n")
	if _, err := LoadAndValidate(path); err == nil {
		t.Error("LoadAndValidate accepted an http uri")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid defaults",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "missing uri",
			mutate:  func(c *Config) { c.Target.URI = "" },
			wantErr: "target.uri is required",
		},
		{
			name:    "wrong scheme",
			mutate:  func(c *Config) { c.Target.URI = "tcp://localhost:9002" },
			wantErr: `target.uri scheme must be ws or wss, got "tcp"`,
		},
		{
			name:    "zero batches",
			mutate:  func(c *Config) { c.Target.NumBatches = 0 },
			wantErr: "target.num_batches must be >= 1",
		},
		{
			name:    "negative batch size",
			mutate:  func(c *Config) { c.Target.BatchSize = -3 },
			wantErr: "target.batch_size must be >= 1",
		},
		{
			name:    "count overflows",
			mutate:  func(c *Config) { c.Target.NumBatches = math.MaxInt; c.Target.BatchSize = 2 },
			wantErr: fmt.Sprintf("target.num_batches (%d) x target.batch_size (2) overflows", math.MaxInt),
		},
		{
			name:    "zero send queue",
			mutate:  func(c *Config) { c.Engine.SendQueue = 0 },
			wantErr: "engine.send_queue must be >= 1",
		},
		{
			name:    "negative delay",
			mutate:  func(c *Config) { c.Ramp.BatchDelay = -time.Second },
			wantErr: "ramp.batch_delay must be >= 0",
		},
		{
			name:    "zero queue",
			mutate:  func(c *Config) { c.Engine.QueueSize = 0 },
			wantErr: "engine.queue_size must be >= 1",
		},
		{
			name:    "bad level",
			mutate:  func(c *Config) { c.Logging.Level = "trace" },
			wantErr: `logging.level must be one of debug, info, warn, error, got "trace"`,
		},
		{
			name:    "bad format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: `logging.format must be text or json, got "xml"`,
		},
		{
			name:    "relative metrics path",
			mutate:  func(c *Config) { c.Metrics.Path = "metrics" },
			wantErr: "metrics.path must start with /",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestApplyArgs(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantURI    string
		wantTotal  int
		wantUsage  bool
		wantErrArg bool
	}{
		{
			name:      "three args",
			args:      []string{"ws://localhost:9002/", "10", "50"},
			wantURI:   "ws://localhost:9002/",
			wantTotal: 500,
		},
		{
			name:      "no args",
			args:      nil,
			wantURI:   DefaultURI,
			wantTotal: 1,
			wantUsage: true,
		},
		{
			name:      "too few",
			args:      []string{"ws://other:1/", "3"},
			wantURI:   DefaultURI,
			wantTotal: 1,
			wantUsage: true,
		},
		{
			name:      "too many",
			args:      []string{"ws://other:1/", "3", "4", "5"},
			wantURI:   DefaultURI,
			wantTotal: 1,
			wantUsage: true,
		},
		{
			name:       "non numeric",
			args:       []string{"ws://other:1/", "three", "4"},
			wantURI:    DefaultURI,
			wantTotal:  1,
			wantErrArg: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			var out bytes.Buffer

			err := cfg.ApplyArgs(tt.args, &out)

			if tt.wantErrArg {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Errorf("ApplyArgs error = %v, want ErrInvalidArgument", err)
				}
			} else if err != nil {
				t.Errorf("ApplyArgs unexpected error: %v", err)
			}

			gotUsage := strings.Contains(out.String(), Usage)
			if gotUsage != tt.wantUsage {
				t.Errorf("usage printed = %v, want %v (out %q)", gotUsage, tt.wantUsage, out.String())
			}
			if cfg.Target.URI != tt.wantURI {
				t.Errorf("Target.URI = %q, want %q", cfg.Target.URI, tt.wantURI)
			}
			if cfg.Target.Total() != tt.wantTotal {
				t.Errorf("Target.Total() = %d, want %d", cfg.Target.Total(), tt.wantTotal)
			}
		})
	}
}

func TestApplyArgsOverridesFile(t *testing.T) {
	path := writeTempFile(t, "target:\n  uri: ws://from-file:1/\n  num_batches: 7\n  batch_size: 7\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}
	if err := cfg.ApplyArgs([]string{"ws://from-args:2/", "2", "3"}, &bytes.Buffer{}); err != nil {
		t.Fatalf("ApplyArgs failed: %v", err)
	}

	if cfg.Target.URI != "ws://from-args:2/" || cfg.Target.NumBatches != 2 || cfg.Target.BatchSize != 3 {
		t.Errorf("Target = %+v, want args to win", cfg.Target)
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
