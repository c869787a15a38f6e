//go:build llama

package llm

import (
	"context"
	"errors"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"

	"llmd/pkg/types"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

// llamaEngine owns one in-process model. go-llama.cpp models are not safe
// for concurrent prediction, so Predict and Close serialize on mu.
type llamaEngine struct {
	mu      sync.Mutex
	model   *llama.LLama
	threads int
}

func openLlamaEngine(_ context.Context, m types.Model, path string) (Engine, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("model path is empty")
	}
	mo := []llama.ModelOption{
		llama.SetContext(m.ContextWindow),
		llama.SetNBatch(m.BatchSize),
		llama.SetGPULayers(m.GPULayers),
		llama.SetMMap(m.MMap()),
	}
	if m.UseMLock {
		mo = append(mo, llama.EnableMLock)
	}
	if m.F16Memory() {
		mo = append(mo, llama.EnableF16Memory)
	}
	l, err := llama.New(path, mo...)
	if err != nil {
		return nil, err
	}
	return &llamaEngine{model: l, threads: m.Threads}, nil
}

func (e *llamaEngine) Predict(ctx context.Context, prompt string, p Params, onToken func(string) bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return ErrNotLoaded
	}
	e.model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		return onToken(tok)
	})
	defer e.model.SetTokenCallback(nil)
	_, err := e.model.Predict(prompt, predictOptions(p, e.threads)...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (e *llamaEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model != nil {
		e.model.Free()
		e.model = nil
	}
	return nil
}

func zf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

// predictOptions converts Params into go-llama.cpp options.
func predictOptions(p Params, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(max(1, p.MaxTokens)),
		llama.SetThreads(max(1, threads)),
		llama.SetTopP(zf(float32(p.TopP), llama.DefaultOptions.TopP)),
	}
	if p.Temperature != nil {
		po = append(po, llama.SetTemperature(float32(*p.Temperature)))
	} else {
		po = append(po, llama.SetTemperature(llama.DefaultOptions.Temperature))
	}
	if len(p.Stop) > 0 {
		po = append(po, llama.SetStopWords(p.Stop...))
	}
	return po
}
