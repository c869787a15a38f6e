package manager

import (
	"time"

	"llmd/pkg/types"
)

// Snapshot returns a read-only view of the manager state. It never waits
// for the switch lock, so it may observe a transition in progress.
func (m *Manager) Snapshot() Snapshot {
	switching := m.IsSwitching()
	models := make(map[string]ModelState, len(m.registry))
	for _, mdl := range m.registry {
		models[mdl.ID] = ModelState{
			Status:   m.ModelStatus(mdl.ID),
			Loaded:   m.IsModelLoaded(mdl.ID),
			Progress: m.DownloadProgress(mdl.ID),
			Err:      m.ModelError(mdl.ID),
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Snapshot{Switching: switching, Err: m.err, Models: models}
	if inst := m.instances[m.current]; inst != nil {
		s.CurrentModel = modelInfo(inst.Model)
		s.Loaded = inst.Provider.Loaded()
	}
	s.State = StateReady
	for _, ms := range models {
		if ms.Status == StateLoading || ms.Status == StateDownloading {
			s.State = StateLoading
		}
	}
	if switching {
		s.State = StateLoading
	}
	if s.State == StateReady && s.CurrentModel == nil && m.err != "" {
		s.State = StateError
	}
	return s
}

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	now := time.Now()
	snap := m.Snapshot()

	m.mu.RLock()
	defer m.mu.RUnlock()
	resp := types.StatusResponse{
		CurrentModel:   m.current,
		Switching:      snap.Switching,
		LastError:      m.err,
		UptimeSeconds:  int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix: now.Unix(),
		LoadsTotal:     uint64(m.loadsTotal.Load()),
		UnloadsTotal:   uint64(m.unloadsTotal.Load()),
		State:          string(snap.State),
	}
	resp.Instances = make([]types.InstanceStatus, 0, len(m.registry))
	warmups := 0
	draining := 0
	for _, mdl := range m.registry {
		inst := m.instances[mdl.ID]
		ms := snap.Models[mdl.ID]
		if ms.Status == StateLoading || ms.Status == StateDownloading {
			warmups++
		}
		if inst.draining {
			draining++
		}
		var lastUsed int64
		if !inst.LastUsed.IsZero() {
			lastUsed = inst.LastUsed.Unix()
		}
		resp.Instances = append(resp.Instances, types.InstanceStatus{
			ModelID:       inst.ID,
			Backend:       mdl.Backend,
			State:         string(ms.Status),
			Loaded:        ms.Loaded,
			Current:       inst.ID == m.current,
			Progress:      ms.Progress,
			LastUsed:      lastUsed,
			EstMB:         estimateMB(mdl),
			QueueLen:      len(inst.queueCh),
			Inflight:      len(inst.genCh),
			MaxQueueDepth: cap(inst.queueCh),
			Error:         inst.Err,
		})
	}
	resp.WarmupsInProgress = warmups
	resp.DrainingCount = draining
	return resp
}
