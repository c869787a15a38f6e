package llm

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"llmd/internal/common/fsutil"
	"llmd/pkg/types"
)

// localProvider serves a GGUF file already on disk.
type localProvider struct {
	desc    types.Model
	log     zerolog.Logger
	factory EngineFactory

	loadMu sync.Mutex
	slot   engineSlot
}

func newLocalProvider(m types.Model, opts Options, log zerolog.Logger) *localProvider {
	return &localProvider{desc: m, log: log, factory: opts.engineFactory(log)}
}

func (p *localProvider) path() (string, error) {
	return fsutil.ExpandHome(p.desc.Path)
}

func (p *localProvider) Available(context.Context) bool {
	path, err := p.path()
	if err != nil || path == "" {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

func (p *localProvider) Loaded() bool { return p.slot.loaded() }

func (p *localProvider) Load(ctx context.Context) error {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()
	if p.slot.loaded() {
		return nil
	}
	path, err := p.path()
	if err != nil {
		return err
	}
	if !p.Available(ctx) {
		return fmt.Errorf("model file not found: %s", path)
	}
	p.log.Info().Str("event", "load_start").Str("path", path).Msg("local")
	e, err := p.factory(ctx, p.desc, path)
	if err != nil {
		p.log.Error().Str("event", "load_error").Err(err).Msg("local")
		return err
	}
	p.slot.set(e)
	p.log.Info().Str("event", "load_ready").Msg("local")
	return nil
}

func (p *localProvider) Unload() error {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()
	err := p.slot.release()
	p.log.Info().Str("event", "unloaded").Msg("local")
	return err
}

func (p *localProvider) Generate(ctx context.Context, prompt string, params Params) (*Stream, error) {
	e := p.slot.get()
	if e == nil {
		return nil, ErrNotLoaded
	}
	return engineStream(ctx, p.desc.ID, e, prompt, params.Resolve(p.desc)), nil
}
