package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"llmd/internal/config"
	"llmd/internal/manager"
	"llmd/pkg/types"
)

func TestModelsCmd_JSON(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "tinyllama.Q4_K_M.gguf"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"models", "--models-dir", dir, "--json"})
	if err := root.Execute(); err != nil {
		t.Fatalf("models: %v", err)
	}
	var models []types.Model
	if err := json.Unmarshal(out.Bytes(), &models); err != nil {
		t.Fatalf("decode: %v\n%s", err, out.String())
	}
	if len(models) != 1 || models[0].ID != "tinyllama.Q4_K_M.gguf" || models[0].Quant != "Q4_K_M" {
		t.Fatalf("unexpected models %+v", models)
	}
}

func TestModelsCmd_Table(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "llmd.toml")
	body := "[[models]]\nid = \"remote\"\nbackend = \"ollama\"\nendpoint = \"http://ollama:11434\"\n\n" +
		"[[models]]\nid = \"big\"\nbackend = \"hf\"\nremote_model = \"org/big\"\nfile = \"big.gguf\"\nload_after = \"remote\"\npriority = 2\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"models", "--config", cfgPath})
	if err := root.Execute(); err != nil {
		t.Fatalf("models: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "ID") {
		t.Fatalf("unexpected table:\n%s", out.String())
	}
	if !strings.Contains(lines[1], "http://ollama:11434") || !strings.Contains(lines[2], "org/big/big.gguf") || !strings.Contains(lines[2], "hub") {
		t.Fatalf("unexpected rows:\n%s", out.String())
	}
}

func TestModelsCmd_InvalidRegistry(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "llmd.json")
	if err := os.WriteFile(cfgPath, []byte(`{"models":[{"id":"a","backend":"ollama","load_after":"ghost"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"models", "--config", cfgPath})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "ghost") {
		t.Fatalf("expected dangling load_after error, got %v", err)
	}
}

func TestCheckCmd_ReportsMissingLlamaBin(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"check", "--llama-bin", filepath.Join(t.TempDir(), "no-such-llama-server"), "--log-level", "error"})
	err := root.Execute()
	if err == nil {
		t.Fatalf("expected an error for a missing llama-server binary")
	}
	var rep manager.SanityReport
	if jerr := json.Unmarshal(out.Bytes(), &rep); jerr != nil {
		t.Fatalf("decode report: %v\n%s", jerr, out.String())
	}
	if rep.LlamaFound || rep.Error == "" {
		t.Fatalf("unexpected report %+v", rep)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := config.Config{Addr: "127.0.0.1:0"}.WithDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, zerolog.Nop()) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRun_BadRegistry(t *testing.T) {
	cfg := config.Config{
		Addr:   "127.0.0.1:0",
		Models: []types.Model{{ID: "a", Backend: "nope"}},
	}.WithDefaults()
	if err := run(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatalf("expected registry error")
	}
}

func TestFanoutAndLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)
	mem := manager.NewMemoryPublisher()
	f := fanout{mem, logPublisher{log: log}}
	f.Publish(manager.Event{ID: "1", Name: "load_failed", ModelID: "a", Fields: map[string]any{"error": "boom"}})
	f.Publish(manager.Event{ID: "2", Name: "load_done", ModelID: "a"})

	if len(mem.Events()) != 2 {
		t.Fatalf("memory publisher got %d events", len(mem.Events()))
	}
	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, `"error":"boom"`) || !strings.Contains(out, `"event":"load_done"`) {
		t.Fatalf("unexpected log output %s", out)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "warn", "json")
	l.Info().Msg("hidden")
	l.Warn().Msg("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), `"service":"llmd"`) {
		t.Fatalf("unexpected output %s", buf.String())
	}
	buf.Reset()
	fl := newLogger(&buf, "bogus", "console")
	fl.Info().Msg("fallback")
	if !strings.Contains(buf.String(), "fallback") {
		t.Fatalf("unknown level must fall back to info: %q", buf.String())
	}
}
