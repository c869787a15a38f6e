package manager

import (
	"context"
	"os/exec"

	"llmd/internal/common/fsutil"
	"llmd/internal/llm"
	"llmd/pkg/types"
)

// SanityReport describes runtime checks for engines and configured models.
type SanityReport struct {
	EngineAvailable bool         `json:"engine_available"`
	LlamaBin        string       `json:"llama_bin,omitempty"`
	LlamaFound      bool         `json:"llama_found"`
	Models          []ModelCheck `json:"models"`
	Error           string       `json:"error,omitempty"`
}

// ModelCheck is the availability probe result of one model.
type ModelCheck struct {
	ID        string        `json:"id"`
	Backend   types.Backend `json:"backend"`
	Available bool          `json:"available"`
}

// SanityCheck probes the local engine and every provider's Available. It
// does not mutate state and is safe to call at any time.
func (m *Manager) SanityCheck(ctx context.Context, opts llm.Options) SanityReport {
	r := SanityReport{EngineAvailable: llm.EngineAvailable(opts), LlamaBin: opts.LlamaBin}
	if opts.LlamaBin != "" {
		bin, err := fsutil.ExpandHome(opts.LlamaBin)
		if err == nil {
			bin, err = exec.LookPath(bin)
		}
		if err == nil {
			r.LlamaFound = true
			r.LlamaBin = bin
		} else {
			r.Error = err.Error()
		}
	}
	for _, mdl := range m.ListModels() {
		r.Models = append(r.Models, ModelCheck{
			ID:        mdl.ID,
			Backend:   mdl.Backend,
			Available: m.instance(mdl.ID).Provider.Available(ctx),
		})
	}
	if !r.EngineAvailable && r.Error == "" {
		for _, mdl := range m.registry {
			if mdl.Backend == types.BackendLocal || mdl.Backend == types.BackendHub {
				r.Error = "no local inference engine: build with -tags=llama or set llama_bin"
				break
			}
		}
	}
	return r
}
