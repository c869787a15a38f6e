package llm

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"llmd/pkg/types"
)

// Provider is one backend able to serve a single configured model.
// The manager owns every Provider; nothing else holds its backend handle.
type Provider interface {
	// Load acquires the backend resource. Loading an already loaded
	// provider is a no-op success.
	Load(ctx context.Context) error
	// Unload releases the backend resource and nudges the runtime to return
	// memory before anything else is loaded.
	Unload() error
	// Generate starts a lazy fragment stream. It returns ErrNotLoaded when
	// Load has not succeeded.
	Generate(ctx context.Context, prompt string, params Params) (*Stream, error)
	// Available is a side-effect free capability probe.
	Available(ctx context.Context) bool
	// Loaded reports whether the backend resource is held.
	Loaded() bool
}

// Params carries per-request generation knobs. Zero values mean "use the
// model default", except Temperature where only nil does.
type Params struct {
	MaxTokens   int
	Temperature *float64
	TopP        float64
	Stop        []string
}

// Resolve fills unset fields from the model descriptor.
func (p Params) Resolve(m types.Model) Params {
	if p.MaxTokens <= 0 {
		p.MaxTokens = m.MaxTokens
	}
	if p.Temperature == nil {
		t := m.Temperature
		p.Temperature = &t
	}
	if p.TopP <= 0 {
		p.TopP = m.TopP
	}
	if len(p.Stop) == 0 {
		p.Stop = m.Stop
	}
	return p
}

// temperature returns the requested temperature, 0 when unset.
func (p Params) temperature() float64 {
	if p.Temperature == nil {
		return 0
	}
	return *p.Temperature
}

// Options configures provider construction.
type Options struct {
	Logger zerolog.Logger
	// HTTPClient is used by the remote providers and the hub downloader.
	// It must not set a Timeout; deadlines are applied per request.
	HTTPClient *http.Client
	// CacheDir holds weights fetched by hub models.
	CacheDir string
	// LlamaBin, when set, runs local and hub models under a spawned
	// llama-server instead of the in-process engine.
	LlamaBin  string
	LlamaHost string
	// Engine overrides engine selection entirely.
	Engine EngineFactory
	// OnProgress observes download progress of hub models.
	OnProgress func(model string, p Progress)
}

const defaultCacheDir = "~/.cache/llmd/hub"

// DefaultHTTPClient mirrors the transport settings used for streaming
// backends: dial and handshake timeouts, no overall client timeout.
func DefaultHTTPClient() *http.Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: tr, Timeout: 0}
}

func (o Options) withDefaults() Options {
	if o.HTTPClient == nil {
		o.HTTPClient = DefaultHTTPClient()
	}
	if o.CacheDir == "" {
		o.CacheDir = defaultCacheDir
	}
	if o.LlamaHost == "" {
		o.LlamaHost = "127.0.0.1"
	}
	return o
}

// New builds the provider variant matching m.Backend.
func New(m types.Model, opts Options) (Provider, error) {
	opts = opts.withDefaults()
	m = m.WithDefaults()
	log := opts.Logger.With().Str("model", m.ID).Str("backend", string(m.Backend)).Logger()
	switch m.Backend {
	case types.BackendLocal:
		return newLocalProvider(m, opts, log), nil
	case types.BackendOllama:
		return newOllamaProvider(m, opts, log), nil
	case types.BackendOpenAI:
		return newOpenAIProvider(m, opts, log), nil
	case types.BackendHub:
		return newHubProvider(m, opts, log), nil
	default:
		return nil, fmt.Errorf("model %s: unknown backend %q", m.ID, m.Backend)
	}
}
