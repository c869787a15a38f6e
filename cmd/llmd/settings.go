package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"llmd/internal/config"
)

// legacyEnv maps setting keys to the env names older deployments use. The
// LLMD_* name is always bound first.
var legacyEnv = map[string]string{
	"port":            "PORT",
	"default-model":   "DEFAULT_MODEL",
	"threads":         "N_THREADS",
	"gpu-layers":      "N_GPU_LAYERS",
	"status-sink":     "CONVEX_URL",
	"status-interval": "STATUS_REPORT_INTERVAL",
}

// newViper returns a viper instance reading LLMD_* env vars; dashes in
// keys become underscores (models-dir -> LLMD_MODELS_DIR).
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("LLMD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		_ = v.BindEnv(key, "LLMD_"+strings.ToUpper(strings.ReplaceAll(key, "-", "_")), legacy)
	}
	return v
}

// loadSettings reads the optional config file and overlays every setting
// that was given as a flag or env var.
func loadSettings(v *viper.Viper) (config.Config, error) {
	var cfg config.Config
	if path := v.GetString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}

	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	num := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	num64 := func(key string, dst *int64) {
		if v.IsSet(key) {
			*dst = v.GetInt64(key)
		}
	}

	str("addr", &cfg.Addr)
	if v.IsSet("port") && !v.IsSet("addr") {
		cfg.Addr = ":" + strings.TrimPrefix(v.GetString("port"), ":")
	}
	str("models-dir", &cfg.ModelsDir)
	str("default-model", &cfg.DefaultModel)
	str("startup", &cfg.Startup)
	str("cache-dir", &cfg.CacheDir)
	str("llama-bin", &cfg.LlamaBin)
	str("llama-host", &cfg.LlamaHost)
	num("threads", &cfg.Threads)
	num("gpu-layers", &cfg.GPULayers)
	num("max-queue-depth", &cfg.MaxQueueDepth)
	num("max-inflight", &cfg.MaxInflight)
	num("max-wait-ms", &cfg.MaxWaitMS)
	num("drain-timeout-ms", &cfg.DrainTimeoutMS)
	num64("max-body-bytes", &cfg.MaxBodyBytes)
	num64("infer-timeout-seconds", &cfg.InferTimeoutSeconds)
	if v.IsSet("cors-enabled") {
		cfg.CORS.Enabled = v.GetBool("cors-enabled")
	}
	if v.IsSet("cors-origins") {
		cfg.CORS.AllowedOrigins = splitCSV(v.GetString("cors-origins"))
	}
	str("log-level", &cfg.Log.Level)
	str("log-format", &cfg.Log.Format)
	str("status-sink", &cfg.Status.SinkURL)
	num("status-interval", &cfg.Status.IntervalSeconds)

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// splitCSV splits a comma-separated list, dropping blanks.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
