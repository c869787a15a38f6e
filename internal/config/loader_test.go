package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"llmd/pkg/types"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

const yamlConfig = `addr: :9999
models_dir: /tmp
default_model: m1
max_queue_depth: 8
drain_timeout_ms: 1500
log:
  level: debug
  format: json
status:
  sink_url: http://convex:3211
models:
  - id: m1
    backend: ollama
    remote_model: llama3.2:1b
    priority: 0
  - id: m2
    backend: hub
    remote_model: org/m2
    file: m2.gguf
    auto_download: true
    load_after: m1
    use_mmap: false
`

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", yamlConfig)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.ModelsDir != "/tmp" || cfg.DefaultModel != "m1" || cfg.MaxQueueDepth != 8 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.DrainTimeout() != 1500*time.Millisecond {
		t.Fatalf("drain timeout = %v", cfg.DrainTimeout())
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" || cfg.Status.SinkURL != "http://convex:3211" {
		t.Fatalf("nested sections not decoded: %+v", cfg)
	}
	if len(cfg.Models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(cfg.Models))
	}
	m2 := cfg.Models[1]
	if m2.Backend != types.BackendHub || m2.File != "m2.gguf" || !m2.AutoDownload || m2.LoadAfter != "m1" {
		t.Fatalf("unexpected model: %+v", m2)
	}
	if m2.UseMMap == nil || *m2.UseMMap {
		t.Fatalf("use_mmap: false must be kept")
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","models_dir":"/m","default_model":"m2",
		"cors":{"enabled":true,"allowed_origins":["https://a.example"]},
		"models":[{"id":"m2","backend":"local","path":"/m/m2.gguf","threads":4}]}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.ModelsDir != "/m" || cfg.DefaultModel != "m2" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if !cfg.CORS.Enabled || len(cfg.CORS.AllowedOrigins) != 1 {
		t.Fatalf("cors not decoded: %+v", cfg.CORS)
	}
	if len(cfg.Models) != 1 || cfg.Models[0].Path != "/m/m2.gguf" || cfg.Models[0].Threads != 4 {
		t.Fatalf("unexpected models: %+v", cfg.Models)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", `addr = ":8081"
models_dir = "/x"
default_model = "m3"
max_wait_ms = 250

[status]
interval_seconds = 5

[[models]]
id = "m3"
backend = "openai"
endpoint = "https://api.example/v1"
remote_model = "gpt-4o-mini"
api_key = "sk-test"
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.ModelsDir != "/x" || cfg.DefaultModel != "m3" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.MaxWait() != 250*time.Millisecond || cfg.ReportInterval() != 5*time.Second {
		t.Fatalf("durations: wait=%v interval=%v", cfg.MaxWait(), cfg.ReportInterval())
	}
	if len(cfg.Models) != 1 || cfg.Models[0].APIKey != "sk-test" || cfg.Models[0].Backend != types.BackendOpenAI {
		t.Fatalf("unexpected models: %+v", cfg.Models)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
}

func TestWithDefaults(t *testing.T) {
	cfg := Config{}.WithDefaults()
	if cfg.Addr != DefaultAddr || cfg.Log.Level != "info" || cfg.Log.Format != "console" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Status.ServiceName != "llmd" || cfg.ReportInterval() != 30*time.Second {
		t.Fatalf("unexpected status defaults: %+v", cfg.Status)
	}
	if cfg.MaxQueueDepth != 0 || cfg.MaxWait() != 0 {
		t.Fatalf("manager knobs must stay unset")
	}

	kept := Config{Addr: ":1", Log: Log{Level: "warn"}}.WithDefaults()
	if kept.Addr != ":1" || kept.Log.Level != "warn" {
		t.Fatalf("explicit values overwritten: %+v", kept)
	}
}

func TestApplyModelDefaults(t *testing.T) {
	cfg := Config{Threads: 6, GPULayers: 20}
	in := []types.Model{{ID: "a"}, {ID: "b", Threads: 2, GPULayers: 1}}
	out := cfg.ApplyModelDefaults(in)
	if out[0].Threads != 6 || out[0].GPULayers != 20 {
		t.Fatalf("globals not applied: %+v", out[0])
	}
	if out[1].Threads != 2 || out[1].GPULayers != 1 {
		t.Fatalf("per-model values overwritten: %+v", out[1])
	}
	if in[0].Threads != 0 {
		t.Fatalf("input slice modified")
	}
}

func TestValidate(t *testing.T) {
	if err := (Config{}).WithDefaults().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	bad := []Config{
		{Startup: "eventually"},
		{Startup: StartupDefault},
		{Log: Log{Format: "xml"}},
	}
	for _, c := range bad {
		if err := c.WithDefaults().Validate(); err == nil {
			t.Fatalf("expected error for %+v", c)
		}
	}
	ok := Config{Startup: StartupDefault, DefaultModel: "m"}.WithDefaults()
	if err := ok.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoad_MalformedFiles(t *testing.T) {
	cases := map[string]string{
		"bad.yaml": "addr: :8080\n: broken\n",
		"bad.json": `{ "addr": ":8080", "models_dir": }`,
		"bad.toml": "addr=:8080\nmodels_dir\n",
	}
	d := t.TempDir()
	for name, body := range cases {
		p := writeTempFile(t, d, name, body)
		_, err := Load(p)
		if err == nil || !strings.Contains(err.Error(), name) {
			t.Fatalf("%s: expected parse error naming the file, got %v", name, err)
		}
	}
	if _, err := Load(filepath.Join(d, "missing.yaml")); err == nil {
		t.Fatalf("expected error for nonexistent file")
	}
}
