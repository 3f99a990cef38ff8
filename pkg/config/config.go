// Package config loads the tunables named throughout spec.md into a
// single YAML-backed Config struct, following the teacher's
// pkg/openapi struct-tag convention (yaml struct tags mirrored onto
// the wire fields) rather than the teacher's own pkg/config (a single
// constant, too thin a shape for this many knobs).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TableGenConfig holds the dispatch-table-generator thresholds of §4.5.
type TableGenConfig struct {
	MinCallSites        int `yaml:"min_call_sites"`
	MinImplementations  int `yaml:"min_implementations"`
}

// InlineCacheConfig holds the §4.7 inline-cache sizing policy.
type InlineCacheConfig struct {
	InitialSize          int     `yaml:"initial_size"`
	MaxSize              int     `yaml:"max_size"`
	ResizeAfterAccesses  int     `yaml:"resize_after_accesses"`
	ResizeMissRate       float64 `yaml:"resize_miss_rate"`
}

// OptimizerConfig holds the §4.8 compression thresholds.
type OptimizerConfig struct {
	CompressionMinEntries int `yaml:"compression_min_entries"`
	CompressionMinBytes   int `yaml:"compression_min_bytes"`
}

// DiagnosticConfig bounds the §4.9 hypothesis/fix ranking output.
type DiagnosticConfig struct {
	MaxHypotheses     int `yaml:"max_hypotheses"`
	MaxFixSuggestions int `yaml:"max_fix_suggestions"`
}

// IncrementalConfig holds the §4.10 disk/remote cache settings.
type IncrementalConfig struct {
	CacheDir  string `yaml:"cache_dir"`
	RedisAddr string `yaml:"redis_addr,omitempty"`
}

// FixStoreConfig selects the persisted fix-learning store backend by
// connection-string scheme (file://, sqlite://, postgres://, mysql://,
// mongodb://), the same scheme-dispatch pattern as the teacher's
// pkg/database.
type FixStoreConfig struct {
	DriverURL string `yaml:"driver_url"`
}

// TracingConfig configures the OTel exporter for pkg/tracing.
type TracingConfig struct {
	Enabled        bool    `yaml:"enabled"`
	ServiceName    string  `yaml:"service_name"`
	OTLPEndpoint   string  `yaml:"otlp_endpoint,omitempty"`
	SampleRatio    float64 `yaml:"sample_ratio"`
	UseStdout      bool    `yaml:"use_stdout"`
}

// ProfilerConfig configures the Prometheus namespace used by pkg/profiler.
type ProfilerConfig struct {
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}

// Config is the top-level configuration object loaded from YAML.
type Config struct {
	TableGen    TableGenConfig    `yaml:"table_gen"`
	InlineCache InlineCacheConfig `yaml:"inline_cache"`
	Optimizer   OptimizerConfig   `yaml:"optimizer"`
	Diagnostic  DiagnosticConfig  `yaml:"diagnostic"`
	Incremental IncrementalConfig `yaml:"incremental"`
	FixStore    FixStoreConfig    `yaml:"fix_store"`
	Tracing     TracingConfig     `yaml:"tracing"`
	Profiler    ProfilerConfig    `yaml:"profiler"`
}

// Default returns the literal defaults named throughout spec.md, so a
// zero-config Compilation behaves exactly as specified.
func Default() Config {
	return Config{
		TableGen: TableGenConfig{
			MinCallSites:       1,
			MinImplementations: 2,
		},
		InlineCache: InlineCacheConfig{
			InitialSize:         1,
			MaxSize:             8,
			ResizeAfterAccesses: 100,
			ResizeMissRate:      0.3,
		},
		Optimizer: OptimizerConfig{
			CompressionMinEntries: 10,
			CompressionMinBytes:   1024,
		},
		Diagnostic: DiagnosticConfig{
			MaxHypotheses:     5,
			MaxFixSuggestions: 3,
		},
		Incremental: IncrementalConfig{
			CacheDir: ".janus-cache",
		},
		FixStore: FixStoreConfig{
			DriverURL: "file://.janus-cache/fixstore.log",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "janusc",
			SampleRatio: 1.0,
			UseStdout:   true,
		},
		Profiler: ProfilerConfig{
			Namespace: "janus",
			Subsystem: "dispatch",
		},
	}
}

// Load reads a YAML config file at path, overlaying it onto Default()
// so an omitted section keeps its default rather than zeroing out.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
