package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"llmd/pkg/types"
)

// Defaults applied by WithDefaults.
const (
	DefaultAddr           = ":8082"
	DefaultServiceName    = "llmd"
	DefaultReportInterval = 30
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "console"
	DefaultStartup        = StartupBringUp
)

// Startup modes select what serve loads once the HTTP server is up.
const (
	// StartupBringUp loads the lowest-priority model, then its dependents.
	StartupBringUp = "bring-up"
	// StartupDefault switches to DefaultModel.
	StartupDefault = "default"
	// StartupNone loads nothing until the first switch or inference.
	StartupNone = "none"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by WithDefaults or by the
// component that consumes them.
type Config struct {
	Addr         string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir    string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	DefaultModel string `json:"default_model" yaml:"default_model" toml:"default_model"`
	CacheDir     string `json:"cache_dir" yaml:"cache_dir" toml:"cache_dir"`
	Startup      string `json:"startup" yaml:"startup" toml:"startup"`

	// LlamaBin runs local models under a spawned llama-server.
	LlamaBin  string `json:"llama_bin" yaml:"llama_bin" toml:"llama_bin"`
	LlamaHost string `json:"llama_host" yaml:"llama_host" toml:"llama_host"`
	// Threads and GPULayers apply to models that leave them unset.
	Threads   int `json:"threads" yaml:"threads" toml:"threads"`
	GPULayers int `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`

	MaxQueueDepth  int `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxInflight    int `json:"max_inflight" yaml:"max_inflight" toml:"max_inflight"`
	MaxWaitMS      int `json:"max_wait_ms" yaml:"max_wait_ms" toml:"max_wait_ms"`
	DrainTimeoutMS int `json:"drain_timeout_ms" yaml:"drain_timeout_ms" toml:"drain_timeout_ms"`

	MaxBodyBytes        int64 `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	InferTimeoutSeconds int64 `json:"infer_timeout_seconds" yaml:"infer_timeout_seconds" toml:"infer_timeout_seconds"`

	CORS   CORS   `json:"cors" yaml:"cors" toml:"cors"`
	Log    Log    `json:"log" yaml:"log" toml:"log"`
	Status Status `json:"status" yaml:"status" toml:"status"`

	Models []types.Model `json:"models" yaml:"models" toml:"models"`
}

// CORS configures the optional CORS middleware.
type CORS struct {
	Enabled        bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	AllowedMethods []string `json:"allowed_methods" yaml:"allowed_methods" toml:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers" yaml:"allowed_headers" toml:"allowed_headers"`
}

// Log selects the log level and output format (console or json).
type Log struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Format string `json:"format" yaml:"format" toml:"format"`
}

// Status configures the periodic status reporter. An empty SinkURL
// disables it.
type Status struct {
	SinkURL         string `json:"sink_url" yaml:"sink_url" toml:"sink_url"`
	ServiceName     string `json:"service_name" yaml:"service_name" toml:"service_name"`
	IntervalSeconds int    `json:"interval_seconds" yaml:"interval_seconds" toml:"interval_seconds"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// Validate checks enumerated fields. It expects WithDefaults to have run.
func (c Config) Validate() error {
	switch c.Startup {
	case StartupBringUp, StartupNone:
	case StartupDefault:
		if c.DefaultModel == "" {
			return fmt.Errorf("startup %q requires default_model", c.Startup)
		}
	default:
		return fmt.Errorf("unknown startup mode %q", c.Startup)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// WithDefaults returns a copy with unset service-level fields filled in.
// Queue and timeout knobs stay zero; the manager and HTTP layer own those
// defaults.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.Startup == "" {
		c.Startup = DefaultStartup
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.Status.ServiceName == "" {
		c.Status.ServiceName = DefaultServiceName
	}
	if c.Status.IntervalSeconds <= 0 {
		c.Status.IntervalSeconds = DefaultReportInterval
	}
	return c
}

// ApplyModelDefaults copies the global Threads and GPULayers onto models
// that leave them unset. The input slice is not modified.
func (c Config) ApplyModelDefaults(models []types.Model) []types.Model {
	out := make([]types.Model, len(models))
	for i, m := range models {
		if m.Threads <= 0 && c.Threads > 0 {
			m.Threads = c.Threads
		}
		if m.GPULayers <= 0 && c.GPULayers > 0 {
			m.GPULayers = c.GPULayers
		}
		out[i] = m
	}
	return out
}

// MaxWait is MaxWaitMS as a duration.
func (c Config) MaxWait() time.Duration { return time.Duration(c.MaxWaitMS) * time.Millisecond }

// DrainTimeout is DrainTimeoutMS as a duration.
func (c Config) DrainTimeout() time.Duration {
	return time.Duration(c.DrainTimeoutMS) * time.Millisecond
}

// ReportInterval is Status.IntervalSeconds as a duration.
func (c Config) ReportInterval() time.Duration {
	return time.Duration(c.Status.IntervalSeconds) * time.Second
}
