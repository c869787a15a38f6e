package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
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

const (
	defaultOllamaEndpoint = "http://localhost:11434"
	ollamaProbeTimeout    = 5 * time.Second
	// ollamaIdleTimeout bounds each wait for the next NDJSON line, not the
	// whole generation.
	ollamaIdleTimeout = 60 * time.Second
)

var errOllamaIdle = errors.New("ollama stopped sending data")

// ollamaProvider talks to a running Ollama daemon.
type ollamaProvider struct {
	desc     types.Model
	endpoint string
	client   *http.Client
	log      zerolog.Logger
	idle     time.Duration

	loadMu sync.Mutex
	loaded atomic.Bool
}

func newOllamaProvider(m types.Model, opts Options, log zerolog.Logger) *ollamaProvider {
	ep := strings.TrimRight(m.Endpoint, "/")
	if ep == "" {
		ep = defaultOllamaEndpoint
	}
	return &ollamaProvider{desc: m, endpoint: ep, client: opts.HTTPClient, log: log, idle: ollamaIdleTimeout}
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// tags lists the daemon's local models within the probe timeout.
func (p *ollamaProvider) tags(ctx context.Context) (ollamaTagsResponse, error) {
	var out ollamaTagsResponse
	ctx, cancel := context.WithTimeout(ctx, ollamaProbeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/api/tags", nil)
	if err != nil {
		return out, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("ollama tags: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("ollama tags: %w", err)
	}
	return out, nil
}

func (p *ollamaProvider) Available(ctx context.Context) bool {
	_, err := p.tags(ctx)
	return err == nil
}

func (p *ollamaProvider) Loaded() bool {
	return p.loaded.Load()
}

func (p *ollamaProvider) Load(ctx context.Context) error {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()
	if p.loaded.Load() {
		return nil
	}
	tags, err := p.tags(ctx)
	if err != nil {
		return fmt.Errorf("ollama not reachable at %s: %w", p.endpoint, err)
	}
	found := false
	for _, m := range tags.Models {
		if m.Name == p.desc.RemoteModel || strings.TrimSuffix(m.Name, ":latest") == p.desc.RemoteModel {
			found = true
			break
		}
	}
	if !found {
		p.log.Warn().Str("event", "model_not_pulled").Str("remote_model", p.desc.RemoteModel).Msg("ollama")
	}
	p.loaded.Store(true)
	p.log.Info().Str("event", "load_ready").Str("endpoint", p.endpoint).Msg("ollama")
	return nil
}

func (p *ollamaProvider) Unload() error {
	p.loadMu.Lock()
	p.loaded.Store(false)
	p.loadMu.Unlock()
	Reclaim()
	return nil
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func (p *ollamaProvider) Generate(ctx context.Context, prompt string, params Params) (*Stream, error) {
	if !p.Loaded() {
		return nil, ErrNotLoaded
	}
	params = params.Resolve(p.desc)
	opts := map[string]any{
		"temperature": params.temperature(),
		"top_p":       params.TopP,
		"num_predict": params.MaxTokens,
	}
	if len(params.Stop) > 0 {
		opts["stop"] = params.Stop
	}
	body, err := json.Marshal(ollamaGenerateRequest{Model: p.desc.RemoteModel, Prompt: prompt, Stream: true, Options: opts})
	if err != nil {
		return nil, err
	}
	return NewStream(ctx, func(ctx context.Context, yield func(string) bool) error {
		ctx, cancel := context.WithCancelCause(ctx)
		defer cancel(nil)
		// The timer runs only while waiting on the daemon, never while the
		// consumer holds a fragment.
		timer := time.AfterFunc(p.idle, func() { cancel(errOllamaIdle) })
		defer timer.Stop()
		failed := func(err error) error {
			if cause := context.Cause(ctx); errors.Is(cause, errOllamaIdle) {
				return generationFailed(p.desc.ID, fmt.Errorf("%w for %s", errOllamaIdle, p.idle))
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return generationFailed(p.desc.ID, err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/api/generate", bytes.NewReader(body))
		if err != nil {
			return generationFailed(p.desc.ID, err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := p.client.Do(req)
		if err != nil {
			return failed(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return generationFailed(p.desc.ID, fmt.Errorf("ollama http error: %s: %s", resp.Status, strings.TrimSpace(string(b))))
		}
		r := bufio.NewReader(resp.Body)
		for {
			timer.Reset(p.idle)
			line, rerr := r.ReadBytes('\n')
			timer.Stop()
			if l := bytes.TrimSpace(line); len(l) > 0 {
				var chunk ollamaGenerateChunk
				if err := json.Unmarshal(l, &chunk); err != nil {
					p.log.Debug().Str("event", "bad_chunk").Bytes("line", l).Msg("ollama")
				} else {
					if chunk.Error != "" {
						return generationFailed(p.desc.ID, errors.New(chunk.Error))
					}
					if chunk.Response != "" && !yield(chunk.Response) {
						return nil
					}
					if chunk.Done {
						return nil
					}
				}
			}
			if rerr != nil {
				if errors.Is(rerr, io.EOF) {
					return nil
				}
				return failed(rerr)
			}
		}
	}), nil
}
