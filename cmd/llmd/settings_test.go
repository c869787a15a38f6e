package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"llmd/internal/config"
)

func testViper(t *testing.T) (*viper.Viper, *cobra.Command) {
	t.Helper()
	v := newViper()
	cmd := &cobra.Command{Use: "llmd"}
	bindFlags(cmd, v)
	return v, cmd
}

func TestLoadSettings_Defaults(t *testing.T) {
	v, _ := testViper(t)
	cfg, err := loadSettings(v)
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if cfg.Addr != config.DefaultAddr || cfg.Startup != config.StartupBringUp || cfg.Log.Format != "console" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadSettings_LegacyEnv(t *testing.T) {
	t.Setenv("PORT", "9001")
	t.Setenv("DEFAULT_MODEL", "tiny")
	t.Setenv("N_THREADS", "6")
	t.Setenv("N_GPU_LAYERS", "12")
	t.Setenv("CONVEX_URL", "http://convex:3211")
	t.Setenv("STATUS_REPORT_INTERVAL", "15")
	v, _ := testViper(t)
	cfg, err := loadSettings(v)
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if cfg.Addr != ":9001" || cfg.DefaultModel != "tiny" || cfg.Threads != 6 || cfg.GPULayers != 12 {
		t.Fatalf("legacy env not applied: %+v", cfg)
	}
	if cfg.Status.SinkURL != "http://convex:3211" || cfg.ReportInterval() != 15*time.Second {
		t.Fatalf("status env not applied: %+v", cfg.Status)
	}
}

func TestLoadSettings_PrefixedEnvWins(t *testing.T) {
	t.Setenv("DEFAULT_MODEL", "legacy")
	t.Setenv("LLMD_DEFAULT_MODEL", "prefixed")
	t.Setenv("LLMD_MODELS_DIR", "/models")
	t.Setenv("LLMD_ADDR", "127.0.0.1:7000")
	t.Setenv("PORT", "9001")
	v, _ := testViper(t)
	cfg, err := loadSettings(v)
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if cfg.DefaultModel != "prefixed" || cfg.ModelsDir != "/models" {
		t.Fatalf("LLMD_* env not preferred: %+v", cfg)
	}
	if cfg.Addr != "127.0.0.1:7000" {
		t.Fatalf("explicit addr must win over PORT, got %q", cfg.Addr)
	}
}

func TestLoadSettings_FileThenFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "llmd.yaml")
	body := "addr: :8000\ndefault_model: a\nmax_queue_depth: 3\nmodels:\n  - id: a\n    backend: ollama\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	v, cmd := testViper(t)
	flags := cmd.PersistentFlags()
	for k, val := range map[string]string{"config": path, "max-queue-depth": "9", "cors-origins": "https://a, https://b", "log-format": "json"} {
		if err := flags.Set(k, val); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}
	cfg, err := loadSettings(v)
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if cfg.Addr != ":8000" || cfg.DefaultModel != "a" || len(cfg.Models) != 1 {
		t.Fatalf("file values lost: %+v", cfg)
	}
	if cfg.MaxQueueDepth != 9 || cfg.Log.Format != "json" {
		t.Fatalf("flags must override the file: %+v", cfg)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b" {
		t.Fatalf("cors origins = %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadSettings_Invalid(t *testing.T) {
	v, cmd := testViper(t)
	if err := cmd.PersistentFlags().Set("startup", "whenever"); err != nil {
		t.Fatal(err)
	}
	if _, err := loadSettings(v); err == nil {
		t.Fatalf("expected invalid startup mode error")
	}

	v, cmd = testViper(t)
	if err := cmd.PersistentFlags().Set("config", filepath.Join(t.TempDir(), "missing.yaml")); err != nil {
		t.Fatal(err)
	}
	if _, err := loadSettings(v); err == nil {
		t.Fatalf("expected missing config file error")
	}
}
