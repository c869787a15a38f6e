package types

import "strings"

// Backend identifies which provider variant serves a model.
type Backend string

const (
	BackendLocal  Backend = "local"
	BackendOllama Backend = "ollama"
	BackendOpenAI Backend = "openai"
	BackendHub    Backend = "hub"
)

// ParseBackend normalizes a backend name, accepting a few common aliases.
// ok is false for unknown names.
func ParseBackend(s string) (Backend, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local", "llama", "llama_cpp", "llamacpp", "gguf":
		return BackendLocal, true
	case "ollama":
		return BackendOllama, true
	case "openai", "openai_compatible":
		return BackendOpenAI, true
	case "hub", "huggingface", "hf":
		return BackendHub, true
	}
	return "", false
}

// Defaults applied by Model.WithDefaults.
const (
	DefaultMaxTokens     = 512
	DefaultTemperature   = 0.7
	DefaultTopP          = 0.9
	DefaultContextWindow = 4096
	DefaultThreads       = 8
	DefaultBatchSize     = 256
)

// Model describes one logical model and how to reach or run it.
// Values are built once from configuration and treated as read-only.
type Model struct {
	// Stable identifier for the model.
	// example: tinyllama-q4
	ID string `json:"id" yaml:"id" toml:"id" example:"tinyllama-q4"`
	// Human-friendly name.
	// example: TinyLlama (Q4)
	Name string `json:"name" yaml:"name" toml:"name" example:"TinyLlama (Q4)"`
	// Short description for listings.
	Description string `json:"description,omitempty" yaml:"description" toml:"description"`
	// Provider variant: local, ollama, openai or hub.
	// example: local
	Backend Backend `json:"backend" yaml:"backend" toml:"backend" example:"local"`

	// Path to the GGUF file on disk (local backend).
	// example: /home/user/models/TinyLlama.Q4_K_M.gguf
	Path string `json:"path,omitempty" yaml:"path" toml:"path" example:"/home/user/models/TinyLlama.Q4_K_M.gguf"`
	// Base URL for remote backends and the weights hub.
	// example: http://localhost:11434
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint" toml:"endpoint" example:"http://localhost:11434"`
	// Model identifier understood by the remote service or hub repository.
	// example: llama3.2:1b
	RemoteModel string `json:"remote_model,omitempty" yaml:"remote_model" toml:"remote_model" example:"llama3.2:1b"`
	// Weights filename inside the hub repository.
	File string `json:"file,omitempty" yaml:"file" toml:"file"`
	// Optional hex sha256 of the weights file.
	SHA256 string `json:"sha256,omitempty" yaml:"sha256" toml:"sha256"`
	// API key for OpenAI-compatible endpoints.
	APIKey string `json:"-" yaml:"api_key" toml:"api_key"`

	// Quantization level or variant string.
	// example: Q4_K_M
	Quant string `json:"quant,omitempty" yaml:"quant" toml:"quant" example:"Q4_K_M"`
	// Optional family (e.g., llama, mistral, phi).
	// example: llama
	Family string `json:"family,omitempty" yaml:"family" toml:"family" example:"llama"`

	ContextWindow int   `json:"context_window,omitempty" yaml:"context_window" toml:"context_window"`
	Threads       int   `json:"threads,omitempty" yaml:"threads" toml:"threads"`
	GPULayers     int   `json:"gpu_layers,omitempty" yaml:"gpu_layers" toml:"gpu_layers"`
	BatchSize     int   `json:"batch_size,omitempty" yaml:"batch_size" toml:"batch_size"`
	UseMMap       *bool `json:"use_mmap,omitempty" yaml:"use_mmap" toml:"use_mmap"`
	UseMLock      bool  `json:"use_mlock,omitempty" yaml:"use_mlock" toml:"use_mlock"`
	F16KV         *bool `json:"f16_kv,omitempty" yaml:"f16_kv" toml:"f16_kv"`

	MaxTokens   int      `json:"max_tokens,omitempty" yaml:"max_tokens" toml:"max_tokens"`
	Temperature float64  `json:"temperature,omitempty" yaml:"temperature" toml:"temperature"`
	TopP        float64  `json:"top_p,omitempty" yaml:"top_p" toml:"top_p"`
	Stop        []string `json:"stop,omitempty" yaml:"stop" toml:"stop"`

	// Lower values load first during bring-up.
	Priority int `json:"priority" yaml:"priority" toml:"priority"`
	// Load automatically once LoadAfter finishes loading.
	AutoDownload bool `json:"auto_download,omitempty" yaml:"auto_download" toml:"auto_download"`
	// ID of the model whose successful load triggers this one.
	LoadAfter string `json:"load_after,omitempty" yaml:"load_after" toml:"load_after"`
}

// WithDefaults returns a copy with unset knobs filled in.
func (m Model) WithDefaults() Model {
	if m.Name == "" {
		m.Name = m.ID
	}
	if m.MaxTokens <= 0 {
		m.MaxTokens = DefaultMaxTokens
	}
	if m.Temperature <= 0 {
		m.Temperature = DefaultTemperature
	}
	if m.TopP <= 0 {
		m.TopP = DefaultTopP
	}
	if m.ContextWindow <= 0 {
		m.ContextWindow = DefaultContextWindow
	}
	if m.Threads <= 0 {
		m.Threads = DefaultThreads
	}
	if m.BatchSize <= 0 {
		m.BatchSize = DefaultBatchSize
	}
	if m.GPULayers < 0 {
		m.GPULayers = 0
	}
	if m.UseMMap == nil {
		t := true
		m.UseMMap = &t
	}
	if m.F16KV == nil {
		t := true
		m.F16KV = &t
	}
	if m.RemoteModel == "" {
		m.RemoteModel = m.ID
	}
	return m
}

// MMap reports whether the weights file should be memory-mapped.
func (m Model) MMap() bool { return m.UseMMap == nil || *m.UseMMap }

// F16Memory reports whether the KV cache uses f16.
func (m Model) F16Memory() bool { return m.F16KV == nil || *m.F16KV }
