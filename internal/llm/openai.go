package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"llmd/pkg/types"
)

const openAIListTimeout = 10 * time.Second

// openAIProvider talks to any OpenAI-compatible chat completions API.
type openAIProvider struct {
	desc     types.Model
	endpoint string
	apiKey   string
	client   *http.Client
	log      zerolog.Logger

	loadMu sync.Mutex
	loaded atomic.Bool
}

func newOpenAIProvider(m types.Model, opts Options, log zerolog.Logger) *openAIProvider {
	key := m.APIKey
	if key == "" {
		key = "dummy-key"
	}
	return &openAIProvider{
		desc:     m,
		endpoint: strings.TrimRight(m.Endpoint, "/"),
		apiKey:   key,
		client:   opts.HTTPClient,
		log:      log,
	}
}

// Available only checks configuration; remote APIs are probed on Load.
func (p *openAIProvider) Available(context.Context) bool { return p.endpoint != "" }

func (p *openAIProvider) Loaded() bool {
	return p.loaded.Load()
}

func (p *openAIProvider) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, p.endpoint+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Load lists models to verify the endpoint and credentials.
func (p *openAIProvider) Load(ctx context.Context) error {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()
	if p.loaded.Load() {
		return nil
	}
	if p.endpoint == "" {
		return fmt.Errorf("model %s: endpoint not configured", p.desc.ID)
	}
	ctx, cancel := context.WithTimeout(ctx, openAIListTimeout)
	defer cancel()
	req, err := p.newRequest(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("openai endpoint %s: %w", p.endpoint, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("openai endpoint %s: list models: %s", p.endpoint, resp.Status)
	}
	p.loaded.Store(true)
	p.log.Info().Str("event", "load_ready").Str("endpoint", p.endpoint).Msg("openai")
	return nil
}

func (p *openAIProvider) Unload() error {
	p.loadMu.Lock()
	p.loaded.Store(false)
	p.loadMu.Unlock()
	Reclaim()
	return nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
	Stream      bool          `json:"stream"`
}

func (p *openAIProvider) Generate(ctx context.Context, prompt string, params Params) (*Stream, error) {
	if !p.Loaded() {
		return nil, ErrNotLoaded
	}
	params = params.Resolve(p.desc)
	body, err := json.Marshal(chatCompletionRequest{
		Model:       p.desc.RemoteModel,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		Stop:        params.Stop,
		Stream:      true,
	})
	if err != nil {
		return nil, err
	}
	return NewStream(ctx, func(ctx context.Context, yield func(string) bool) error {
		req, err := p.newRequest(ctx, http.MethodPost, "/chat/completions", bytes.NewReader(body))
		if err != nil {
			return generationFailed(p.desc.ID, err)
		}
		req.Header.Set("Accept", "text/event-stream")
		resp, err := p.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return generationFailed(p.desc.ID, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return generationFailed(p.desc.ID, fmt.Errorf("openai http error: %s: %s", resp.Status, strings.TrimSpace(string(b))))
		}
		if err := readSSE(ctx, resp.Body, p.log, yield); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return generationFailed(p.desc.ID, err)
		}
		return nil
	}), nil
}
