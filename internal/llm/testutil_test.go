package llm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"llmd/pkg/types"
)

// fakeEngine replays tokens, then returns err.
type fakeEngine struct {
	tokens []string
	err    error
	closed atomic.Bool
	prompt string
	params Params
}

func (e *fakeEngine) Predict(ctx context.Context, prompt string, p Params, onToken func(string) bool) error {
	e.prompt = prompt
	e.params = p
	for _, t := range e.tokens {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !onToken(t) {
			return nil
		}
	}
	return e.err
}

func (e *fakeEngine) Close() error {
	e.closed.Store(true)
	return nil
}

// endlessEngine emits tokens until the consumer stops it.
type endlessEngine struct {
	running sync.WaitGroup
	stopped atomic.Bool
}

func (e *endlessEngine) Predict(ctx context.Context, _ string, _ Params, onToken func(string) bool) error {
	e.running.Add(1)
	defer e.running.Done()
	for {
		if !onToken("x") {
			e.stopped.Store(true)
			return nil
		}
		select {
		case <-ctx.Done():
			e.stopped.Store(true)
			return nil
		default:
		}
	}
}

func (e *endlessEngine) Close() error { return nil }

func engineFactoryFor(e Engine, err error) EngineFactory {
	return func(context.Context, types.Model, string) (Engine, error) {
		if err != nil {
			return nil, err
		}
		return e, nil
	}
}

var errBoom = errors.New("boom")

func testOptions() Options {
	return Options{Logger: zerolog.Nop()}
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

// capture hands a value from a server handler to the test goroutine.
type capture[T any] struct {
	mu sync.Mutex
	v  T
}

func (c *capture[T]) set(v T) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *capture[T]) get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}
