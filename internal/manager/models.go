package manager

import (
	"context"

	"llmd/internal/llm"
	"llmd/pkg/types"
)

// GetAvailableModels lists the configured models whose provider reports
// itself available, in registry order. Probes run sequentially and may
// touch the network for remote backends.
func (m *Manager) GetAvailableModels(ctx context.Context) []types.AvailableModel {
	cur := m.CurrentModel()
	out := make([]types.AvailableModel, 0, len(m.registry))
	for _, mdl := range m.ListModels() {
		inst := m.instance(mdl.ID)
		if !inst.Provider.Available(ctx) {
			continue
		}
		out = append(out, types.AvailableModel{
			ID:          mdl.ID,
			DisplayName: mdl.Name,
			Description: mdl.Description,
			Backend:     mdl.Backend,
			Loaded:      inst.Provider.Loaded(),
			Current:     mdl.ID == cur,
		})
	}
	return out
}

// ModelStatus returns the orchestration status of id. A loading hub model
// that is still fetching weights reports StateDownloading. Unknown ids
// report StateUnknown.
func (m *Manager) ModelStatus(id string) State {
	inst := m.instance(id)
	if inst == nil {
		return StateUnknown
	}
	m.mu.RLock()
	st := inst.State
	m.mu.RUnlock()
	if st == StateLoading {
		if pr, ok := inst.Provider.(llm.ProgressReporter); ok && pr.Progress().Status == llm.DownloadDownloading {
			return StateDownloading
		}
	}
	return st
}

// ModelError returns the last load error of id, if any.
func (m *Manager) ModelError(id string) string {
	inst := m.instance(id)
	if inst == nil {
		return ""
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return inst.Err
}

func (m *Manager) progress(id string) (llm.Progress, bool) {
	inst := m.instance(id)
	if inst == nil {
		return llm.Progress{}, false
	}
	pr, ok := inst.Provider.(llm.ProgressReporter)
	if !ok {
		return llm.Progress{}, false
	}
	return pr.Progress(), true
}

// DownloadProgress returns 0..100 for models that fetch weights, else 0.
func (m *Manager) DownloadProgress(id string) float64 {
	p, _ := m.progress(id)
	return p.Percent
}

// DownloadStatus returns the weights status, or unknown for models that
// do not fetch weights.
func (m *Manager) DownloadStatus(id string) llm.DownloadStatus {
	p, ok := m.progress(id)
	if !ok {
		return llm.DownloadUnknown
	}
	return p.Status
}

// DownloadDetails returns a copy of the step details; never nil.
func (m *Manager) DownloadDetails(id string) map[string]any {
	p, ok := m.progress(id)
	if !ok || p.Details == nil {
		return map[string]any{}
	}
	return p.Details
}

// IsDownloading reports whether id is fetching weights right now.
func (m *Manager) IsDownloading(id string) bool {
	return m.DownloadStatus(id) == llm.DownloadDownloading
}

// IsModelLoaded reports whether the provider of id holds its backend.
func (m *Manager) IsModelLoaded(id string) bool {
	inst := m.instance(id)
	return inst != nil && inst.Provider.Loaded()
}

// ModelStatusResponse gathers every per-model accessor for the HTTP layer.
func (m *Manager) ModelStatusResponse(id string) (types.ModelStatusResponse, error) {
	if m.instance(id) == nil {
		return types.ModelStatusResponse{}, ErrModelNotFound(id)
	}
	return types.ModelStatusResponse{
		Model:          id,
		Status:         string(m.ModelStatus(id)),
		DownloadStatus: string(m.DownloadStatus(id)),
		Progress:       m.DownloadProgress(id),
		Details:        m.DownloadDetails(id),
		Downloading:    m.IsDownloading(id),
		Loaded:         m.IsModelLoaded(id),
		Error:          m.ModelError(id),
	}, nil
}
