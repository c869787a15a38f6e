package llm

import (
	"context"
	"os/exec"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog"

	"llmd/internal/common/fsutil"
	"llmd/pkg/types"
)

// defaultStopWords end generation for the common chat templates.
var defaultStopWords = []string{"<|eot_id|>", "<|end_of_text|>", "</s>"}

// Engine runs inference over a GGUF weights file.
type Engine interface {
	// Predict blocks until generation ends. onToken returning false stops
	// generation early; Predict then returns without error.
	Predict(ctx context.Context, prompt string, p Params, onToken func(string) bool) error
	// Close frees the weights. It waits for a running Predict to return.
	Close() error
}

// EngineFactory opens an engine for the weights file at path.
type EngineFactory func(ctx context.Context, m types.Model, path string) (Engine, error)

func (o Options) engineFactory(log zerolog.Logger) EngineFactory {
	if o.Engine != nil {
		return o.Engine
	}
	if o.LlamaBin != "" {
		return func(ctx context.Context, m types.Model, path string) (Engine, error) {
			e, err := startServerEngine(ctx, serverEngineConfig{
				Bin:    o.LlamaBin,
				Host:   o.LlamaHost,
				Client: o.HTTPClient,
				Log:    log,
			}, m, path)
			if err != nil {
				return nil, err
			}
			return e, nil
		}
	}
	return openLlamaEngine
}

// EngineAvailable reports whether local weights can be run with these options.
func EngineAvailable(o Options) bool {
	if o.Engine != nil {
		return true
	}
	if o.LlamaBin != "" {
		if p, err := fsutil.ExpandHome(o.LlamaBin); err == nil && fsutil.PathExists(p) {
			return true
		}
		_, err := exec.LookPath(o.LlamaBin)
		return err == nil
	}
	return llamaBuilt
}

// Reclaim asks the runtime to collect garbage and return freed memory to the
// OS. Called after every unload so the next load starts from a low watermark.
func Reclaim() { debug.FreeOSMemory() }

// engineSlot holds the engine of a loaded local or hub model.
type engineSlot struct {
	mu     sync.RWMutex
	engine Engine
}

func (s *engineSlot) loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine != nil
}

func (s *engineSlot) set(e Engine) {
	s.mu.Lock()
	s.engine = e
	s.mu.Unlock()
}

func (s *engineSlot) get() Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// release closes the engine, if any, and reclaims memory.
func (s *engineSlot) release() error {
	s.mu.Lock()
	e := s.engine
	s.engine = nil
	s.mu.Unlock()
	if e == nil {
		return nil
	}
	err := e.Close()
	Reclaim()
	return err
}

// engineStream bridges the engine's token callback into a Stream. Predict
// runs on its own goroutine; the producer hands each token to the consumer
// and cancels Predict when the consumer stops.
func engineStream(ctx context.Context, model string, e Engine, prompt string, p Params) *Stream {
	if len(p.Stop) == 0 {
		p.Stop = defaultStopWords
	}
	return NewStream(ctx, func(ctx context.Context, yield func(string) bool) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		toks := make(chan string)
		done := make(chan error, 1)
		go func() {
			done <- e.Predict(ctx, prompt, p, func(tok string) bool {
				select {
				case toks <- tok:
					return true
				case <-ctx.Done():
					return false
				}
			})
		}()
		for {
			select {
			case tok := <-toks:
				if !yield(tok) {
					cancel()
					<-done
					return nil
				}
			case err := <-done:
				if cerr := ctx.Err(); cerr != nil {
					return cerr
				}
				return generationFailed(model, err)
			}
		}
	})
}
