package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"llmd/pkg/types"
)

func TestMerge_ConfiguredWins(t *testing.T) {
	configured := []types.Model{
		{ID: "tiny", Backend: types.BackendLocal, Path: "/models/tiny.gguf"},
		{ID: "remote", Backend: types.BackendOllama},
	}
	discovered := []types.Model{
		{ID: "tiny.gguf", Backend: types.BackendLocal, Path: "/models/tiny.gguf"}, // same file
		{ID: "remote", Backend: types.BackendLocal, Path: "/models/remote.gguf"},  // same id
		{ID: "other.gguf", Backend: types.BackendLocal, Path: "/models/other.gguf"},
	}
	got := Merge(configured, discovered)
	if len(got) != 3 {
		t.Fatalf("expected 3 models, got %+v", got)
	}
	if got[0].ID != "tiny" || got[1].Backend != types.BackendOllama || got[2].ID != "other.gguf" {
		t.Fatalf("unexpected merge result %+v", got)
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize([]types.Model{
		{ID: " a ", Path: "/a.gguf"},
		{ID: "b", Backend: "HuggingFace", LoadAfter: " a"},
		{ID: "c", Backend: "carrier-pigeon"},
	})
	if got[0].ID != "a" || got[0].Backend != types.BackendLocal {
		t.Fatalf("unexpected %+v", got[0])
	}
	if got[1].Backend != types.BackendHub || got[1].LoadAfter != "a" {
		t.Fatalf("unexpected %+v", got[1])
	}
	if got[2].Backend != "carrier-pigeon" {
		t.Fatalf("unknown backend must be kept for Validate")
	}
}

func TestValidate_OK(t *testing.T) {
	models := []types.Model{
		{ID: "a", Backend: types.BackendOllama},
		{ID: "b", Backend: types.BackendHub, File: "b.gguf", LoadAfter: "a"},
		{ID: "c", Backend: types.BackendOpenAI, Endpoint: "https://api.example/v1", LoadAfter: "b"},
		{ID: "d", Backend: types.BackendLocal, Path: "/d.gguf", LoadAfter: "b"},
	}
	if err := Validate(models); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	cases := []struct {
		name   string
		models []types.Model
		want   string
	}{
		{"empty id", []types.Model{{Backend: types.BackendOllama}}, "empty id"},
		{"duplicate", []types.Model{{ID: "a", Backend: types.BackendOllama}, {ID: "a", Backend: types.BackendOllama}}, "duplicate model id"},
		{"unknown backend", []types.Model{{ID: "a", Backend: "nope"}}, "unknown backend"},
		{"local without path", []types.Model{{ID: "a", Backend: types.BackendLocal}}, "requires path"},
		{"hub without file", []types.Model{{ID: "a", Backend: types.BackendHub}}, "requires file"},
		{"openai without endpoint", []types.Model{{ID: "a", Backend: types.BackendOpenAI}}, "requires endpoint"},
		{"dangling", []types.Model{{ID: "a", Backend: types.BackendOllama, LoadAfter: "ghost"}}, "unknown model \"ghost\""},
		{"self", []types.Model{{ID: "a", Backend: types.BackendOllama, LoadAfter: "a"}}, "references itself"},
		{"cycle", []types.Model{
			{ID: "a", Backend: types.BackendOllama, LoadAfter: "c"},
			{ID: "b", Backend: types.BackendOllama, LoadAfter: "a"},
			{ID: "c", Backend: types.BackendOllama, LoadAfter: "b"},
		}, "load_after cycle"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.models)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate = %v, want error containing %q", err, tc.want)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	err := Validate([]types.Model{
		{ID: "a", Backend: "nope"},
		{ID: "b", Backend: types.BackendOllama, LoadAfter: "ghost"},
	})
	if err == nil || !strings.Contains(err.Error(), "unknown backend") || !strings.Contains(err.Error(), "ghost") {
		t.Fatalf("expected both problems, got %v", err)
	}
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "phi-2.Q8_0.gguf"), nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	models, err := Build([]types.Model{{ID: "remote", Backend: "ollama"}}, dir)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(models) != 2 || models[0].ID != "remote" || models[1].ID != "phi-2.Q8_0.gguf" {
		t.Fatalf("unexpected models %+v", models)
	}
	if models[1].Quant != "Q8_0" || models[1].Family != "phi" {
		t.Fatalf("metadata not guessed: %+v", models[1])
	}

	if _, err := Build(nil, filepath.Join(dir, "missing")); err == nil {
		t.Fatalf("expected scan error")
	}
	if _, err := Build([]types.Model{{ID: "x", Backend: "ollama", LoadAfter: "y"}}, ""); err == nil {
		t.Fatalf("expected validation error")
	}
}
