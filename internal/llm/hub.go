package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"llmd/internal/common/fsutil"
	"llmd/pkg/types"
)

const defaultHubEndpoint = "https://huggingface.co"

// Progress checkpoints for a hub load.
const (
	pctResolve       = 5
	pctDownloadStart = 10
	pctDownloadEnd   = 80
	pctVerify        = 85
	pctLoad          = 90
)

// hubProvider fetches GGUF weights from a model hub on first load, caches
// them, and runs them on the local engine.
type hubProvider struct {
	desc     types.Model
	opts     Options
	log      zerolog.Logger
	factory  EngineFactory
	endpoint string
	tracker  *Tracker

	loadMu sync.Mutex
	slot   engineSlot
}

func newHubProvider(m types.Model, opts Options, log zerolog.Logger) *hubProvider {
	ep := strings.TrimRight(m.Endpoint, "/")
	if ep == "" {
		ep = defaultHubEndpoint
	}
	var onChange func(Progress)
	if opts.OnProgress != nil {
		onChange = func(pr Progress) { opts.OnProgress(m.ID, pr) }
	}
	return &hubProvider{
		desc:     m,
		opts:     opts,
		log:      log,
		factory:  opts.engineFactory(log),
		endpoint: ep,
		tracker:  NewTracker(onChange),
	}
}

// Progress implements ProgressReporter.
func (p *hubProvider) Progress() Progress { return p.tracker.Progress() }

func (p *hubProvider) Available(context.Context) bool { return EngineAvailable(p.opts) }

func (p *hubProvider) Loaded() bool { return p.slot.loaded() }

func (p *hubProvider) weightsURL() string {
	return p.endpoint + "/" + p.desc.RemoteModel + "/resolve/main/" + p.desc.File
}

func (p *hubProvider) cachePath() (string, error) {
	dir, err := fsutil.ExpandHome(p.opts.CacheDir)
	if err != nil {
		return "", err
	}
	repo := strings.ReplaceAll(p.desc.RemoteModel, "/", "--")
	return filepath.Join(dir, repo, filepath.Base(p.desc.File)), nil
}

func (p *hubProvider) Load(ctx context.Context) error {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()
	if p.slot.loaded() {
		return nil
	}
	if err := p.load(ctx); err != nil {
		p.tracker.Fail(err)
		p.log.Error().Str("event", "load_error").Err(err).Msg("hub")
		return err
	}
	p.tracker.Complete()
	p.log.Info().Str("event", "load_ready").Msg("hub")
	return nil
}

func (p *hubProvider) load(ctx context.Context) error {
	p.tracker.Begin()
	p.tracker.Step(DownloadDownloading, pctResolve, "resolve")
	if p.desc.File == "" {
		return fmt.Errorf("model %s: weights file not configured", p.desc.ID)
	}
	dest, err := p.cachePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(dest); err == nil {
		p.log.Info().Str("event", "cache_hit").Str("path", dest).Msg("hub")
	} else if errors.Is(err, os.ErrNotExist) {
		p.tracker.Step(DownloadDownloading, pctDownloadStart, "model_weights")
		url := p.weightsURL()
		p.log.Info().Str("event", "download_start").Str("url", url).Msg("hub")
		err := downloadFile(ctx, p.opts.HTTPClient, url, dest, func(done, total int64) {
			fields := map[string]any{"downloaded_bytes": done}
			pct := float64(pctDownloadStart)
			if total > 0 {
				fields["total_bytes"] = total
				pct += float64(pctDownloadEnd-pctDownloadStart) * float64(done) / float64(total)
			}
			p.tracker.Advance(pct, fields)
		})
		if err != nil {
			return err
		}
	} else {
		return err
	}
	p.tracker.Advance(pctDownloadEnd, nil)

	if p.desc.SHA256 != "" {
		p.tracker.Step(DownloadLoading, pctVerify, "verify")
		if err := verifySHA256(dest, p.desc.SHA256); err != nil {
			_ = os.Remove(dest)
			return fmt.Errorf("verify %s: %w", dest, err)
		}
	}

	p.tracker.Step(DownloadLoading, pctLoad, "load")
	e, err := p.factory(ctx, p.desc, dest)
	if err != nil {
		return err
	}
	p.slot.set(e)
	return nil
}

func (p *hubProvider) Unload() error {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()
	err := p.slot.release()
	p.tracker.Reset()
	p.log.Info().Str("event", "unloaded").Msg("hub")
	return err
}

func (p *hubProvider) Generate(ctx context.Context, prompt string, params Params) (*Stream, error) {
	e := p.slot.get()
	if e == nil {
		return nil, ErrNotLoaded
	}
	return engineStream(ctx, p.desc.ID, e, prompt, params.Resolve(p.desc)), nil
}
