package manager

import (
	"context"
	"time"
)

// LoadModel makes id the current model. A different current model is
// drained and unloaded before the target's Load runs, so at most one
// provider is resident. On failure the target is left in StateError, the
// error is returned as a load failure, and no model is current.
//
// LoadModel does not take the switch lock. Use SwitchTo from concurrent
// callers.
func (m *Manager) LoadModel(ctx context.Context, id string) error {
	inst := m.instance(id)
	if inst == nil {
		m.log.Warn().Str("event", "load_model_not_found").Str("model", id).Msg("manager")
		m.publish("load_model_not_found", id, nil)
		return ErrModelNotFound(id)
	}
	start := time.Now()
	m.log.Info().Str("event", "load_start").Str("model", id).Msg("manager")
	m.publish("load_start", id, nil)

	m.mu.Lock()
	inst.State = StateLoading
	inst.Err = ""
	cur := m.current
	m.mu.Unlock()

	if cur != "" && cur != id {
		m.UnloadCurrentModel()
	}

	err := inst.Provider.Load(ctx)
	dur := time.Since(start)
	if err != nil {
		m.mu.Lock()
		inst.State = StateError
		inst.Err = err.Error()
		m.err = err.Error()
		m.mu.Unlock()
		loadsTotal.WithLabelValues(id, "error").Inc()
		m.log.Error().Str("event", "load_failed").Str("model", id).Dur("dur", dur).Err(err).Msg("manager")
		m.publish("load_failed", id, map[string]any{"error": err.Error(), "dur_ms": dur.Milliseconds()})
		return loadFailedError{modelID: id, err: err}
	}

	m.mu.Lock()
	inst.State = StateReady
	inst.Err = ""
	inst.LastUsed = time.Now()
	m.current = id
	m.err = ""
	m.mu.Unlock()
	m.loadsTotal.Add(1)
	currentModelGauge.WithLabelValues(id).Set(1)
	loadsTotal.WithLabelValues(id, "ok").Inc()
	loadDuration.WithLabelValues(id).Observe(dur.Seconds())
	m.log.Info().Str("event", "load_ready").Str("model", id).Dur("dur", dur).Msg("manager")
	m.publish("load_ready", id, map[string]any{"dur_ms": dur.Milliseconds()})
	return nil
}

// UnloadCurrentModel drains and unloads the current model, if any, and
// clears the current pointer. Providers reclaim memory as part of Unload,
// so the next load starts from a low watermark.
//
// Like LoadModel it does not take the switch lock.
func (m *Manager) UnloadCurrentModel() {
	m.mu.Lock()
	id := m.current
	inst := m.instances[id]
	if inst == nil {
		m.mu.Unlock()
		return
	}
	inst.draining = true
	m.mu.Unlock()
	m.log.Info().Str("event", "unload_start").Str("model", id).Msg("manager")
	m.publish("unload_start", id, nil)

	m.drain(inst)

	if err := inst.Provider.Unload(); err != nil {
		m.log.Warn().Str("event", "unload_error").Str("model", id).Err(err).Msg("manager")
	}
	m.mu.Lock()
	inst.draining = false
	if m.current == id {
		m.current = ""
	}
	m.mu.Unlock()
	m.unloadsTotal.Add(1)
	unloadsTotal.WithLabelValues(id).Inc()
	currentModelGauge.WithLabelValues(id).Set(0)
	m.log.Info().Str("event", "unload_done").Str("model", id).Msg("manager")
	m.publish("unload_done", id, nil)
}
