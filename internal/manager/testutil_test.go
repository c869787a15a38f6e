package manager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"llmd/internal/llm"
	"llmd/pkg/types"
)

var errBoom = errors.New("boom")

// recorder logs provider calls in order and tracks resident providers.
type recorder struct {
	mu          sync.Mutex
	calls       []string
	resident    int
	maxResident int
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *recorder) residentDelta(d int) {
	r.mu.Lock()
	r.resident += d
	if r.resident > r.maxResident {
		r.maxResident = r.resident
	}
	r.mu.Unlock()
}

func (r *recorder) log() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *recorder) max() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxResident
}

func (r *recorder) count(call string) int {
	n := 0
	for _, c := range r.log() {
		if c == call {
			n++
		}
	}
	return n
}

// fakeProvider is an in-memory provider. Configure fields before the
// manager uses it.
type fakeProvider struct {
	id          string
	rec         *recorder
	loadErr     error
	gate        chan struct{} // when set, Load blocks until closed or ctx ends
	tokens      []string
	streamErr   error
	unavailable bool

	mu         sync.Mutex
	loaded     bool
	loads      int
	lastParams llm.Params
}

func (p *fakeProvider) Load(ctx context.Context) error {
	p.rec.add("load:" + p.id)
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if p.loadErr != nil {
		return p.loadErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		p.loaded = true
		p.loads++
		p.rec.residentDelta(1)
	}
	return nil
}

func (p *fakeProvider) Unload() error {
	p.mu.Lock()
	if p.loaded {
		p.loaded = false
		p.rec.residentDelta(-1)
	}
	p.mu.Unlock()
	p.rec.add("unload:" + p.id)
	return nil
}

func (p *fakeProvider) Generate(ctx context.Context, prompt string, params llm.Params) (*llm.Stream, error) {
	if !p.Loaded() {
		return nil, llm.ErrNotLoaded
	}
	p.mu.Lock()
	p.lastParams = params
	p.mu.Unlock()
	toks := p.tokens
	if toks == nil {
		toks = []string{p.id, ": ", prompt}
	}
	streamErr := p.streamErr
	return llm.NewStream(ctx, func(ctx context.Context, yield func(string) bool) error {
		for _, t := range toks {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !yield(t) {
				return nil
			}
		}
		return streamErr
	}), nil
}

func (p *fakeProvider) Available(context.Context) bool { return !p.unavailable }

func (p *fakeProvider) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded
}

func (p *fakeProvider) params() llm.Params {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastParams
}

func (p *fakeProvider) loadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loads
}

// fakeHubProvider adds download progress to fakeProvider.
type fakeHubProvider struct {
	*fakeProvider
	pmu      sync.Mutex
	progress llm.Progress
}

func (p *fakeHubProvider) setProgress(pr llm.Progress) {
	p.pmu.Lock()
	p.progress = pr
	p.pmu.Unlock()
}

func (p *fakeHubProvider) Progress() llm.Progress {
	p.pmu.Lock()
	defer p.pmu.Unlock()
	return p.progress
}

type fixture struct {
	m     *Manager
	rec   *recorder
	pub   *MemoryPublisher
	provs map[string]*fakeProvider
	hubs  map[string]*fakeHubProvider
}

// newFixture builds a Manager whose providers are fakes sharing one recorder.
// Hub descriptors get a fakeHubProvider. tweak, when set, runs on every fake
// before the manager is built.
func newFixture(t *testing.T, cfg ManagerConfig, tweak func(*fakeProvider)) *fixture {
	t.Helper()
	f := &fixture{
		rec:   &recorder{},
		pub:   NewMemoryPublisher(),
		provs: map[string]*fakeProvider{},
		hubs:  map[string]*fakeHubProvider{},
	}
	cfg.Publisher = f.pub
	cfg.Logger = zerolog.Nop()
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = 200 * time.Millisecond
	}
	cfg.NewProvider = func(mdl types.Model, _ llm.Options) (llm.Provider, error) {
		fp := &fakeProvider{id: mdl.ID, rec: f.rec}
		if tweak != nil {
			tweak(fp)
		}
		f.provs[mdl.ID] = fp
		if mdl.Backend == types.BackendHub {
			hp := &fakeHubProvider{fakeProvider: fp, progress: llm.Progress{Status: llm.DownloadReady}}
			f.hubs[mdl.ID] = hp
			return hp, nil
		}
		return fp, nil
	}
	m, err := NewWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	t.Cleanup(m.Cleanup)
	f.m = m
	return f
}

func localModels(ids ...string) []types.Model {
	out := make([]types.Model, 0, len(ids))
	for _, id := range ids {
		out = append(out, types.Model{ID: id, Backend: types.BackendLocal, Path: id + ".gguf"})
	}
	return out
}

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}
