package manager

import (
	"llmd/internal/common/fsutil"
	"llmd/pkg/types"
)

// instance returns the slot for id, or nil. The map is fixed at
// construction so no lock is needed.
func (m *Manager) instance(id string) *Instance {
	return m.instances[id]
}

// currentAndLoaded reports whether id is current with a loaded provider.
func (m *Manager) currentAndLoaded(id string) bool {
	m.mu.RLock()
	cur := m.current
	m.mu.RUnlock()
	inst := m.instance(id)
	return cur == id && inst != nil && inst.Provider.Loaded()
}

// Helper: estimate resident size of a local model from its file (MB).
// Remote backends report 0.
func estimateMB(mdl types.Model) int {
	if mdl.Backend != types.BackendLocal || mdl.Path == "" {
		return 0
	}
	mb, err := fsutil.SizeMB(mdl.Path)
	if err != nil {
		return 0
	}
	return mb
}

func modelInfo(mdl types.Model) *ModelInfo {
	return &ModelInfo{
		ID:      mdl.ID,
		Name:    mdl.Name,
		Backend: mdl.Backend,
		Path:    mdl.Path,
		Quant:   mdl.Quant,
		Family:  mdl.Family,
	}
}
