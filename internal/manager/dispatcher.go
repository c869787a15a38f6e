package manager

import (
	"context"
	"errors"
	"sort"
	"sync"

	"llmd/pkg/types"
)

// ErrClosed is returned by operations attempted after Cleanup.
var ErrClosed = errors.New("manager closed")

// loadResult is the completion event of one background load.
type loadResult struct {
	model string
	err   error
}

// Start launches the background load dispatcher. It stops when ctx is
// canceled or Cleanup runs. Later calls are no-ops.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		stop := context.AfterFunc(m.ctx, cancel)
		m.bg.Add(1)
		go func() {
			defer m.bg.Done()
			defer stop()
			defer cancel()
			m.dispatch(ctx)
		}()
		m.log.Info().Str("event", "dispatcher_start").Msg("manager")
	})
}

// Enqueue schedules a background load of id. It never blocks; a full task
// queue is reported as backpressure.
func (m *Manager) Enqueue(id string) error {
	if m.instance(id) == nil {
		return ErrModelNotFound(id)
	}
	if m.ctx.Err() != nil {
		return ErrClosed
	}
	select {
	case m.tasks <- id:
		m.publish("background_load_queued", id, nil)
		return nil
	default:
		return tooBusyError{modelID: id}
	}
}

// BringUp enqueues the model with the lowest priority value (registry order
// breaks ties). Its dependents follow as each load completes. Returns the
// chosen id, or "" for an empty registry.
func (m *Manager) BringUp() (string, error) {
	order := m.byPriority()
	if len(order) == 0 {
		return "", nil
	}
	id := order[0].ID
	m.log.Info().Str("event", "bring_up").Str("model", id).Msg("manager")
	return id, m.Enqueue(id)
}

func (m *Manager) dispatch(ctx context.Context) {
	results := make(chan loadResult)
	pending := map[string]bool{}
	var workers sync.WaitGroup
	defer workers.Wait()

	launch := func(id string) {
		if pending[id] {
			return
		}
		pending[id] = true
		workers.Add(1)
		go func() {
			defer workers.Done()
			err := m.backgroundLoad(ctx, id)
			select {
			case results <- loadResult{model: id, err: err}:
			case <-ctx.Done():
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			m.log.Info().Str("event", "dispatcher_stop").Msg("manager")
			return
		case id := <-m.tasks:
			launch(id)
		case r := <-results:
			delete(pending, r.model)
			for _, dep := range m.complete(r) {
				launch(dep)
			}
		}
	}
}

// backgroundLoad loads id under the switch lock.
func (m *Manager) backgroundLoad(ctx context.Context, id string) error {
	if err := m.lockSwitch(ctx); err != nil {
		return err
	}
	defer m.unlockSwitch()
	return m.LoadModel(ctx, id)
}

// complete records a load result and returns the dependents to load next.
// A failure affects only the failed model.
func (m *Manager) complete(r loadResult) []string {
	if r.err != nil {
		m.log.Warn().Str("event", "background_load_failed").Str("model", r.model).Err(r.err).Msg("manager")
		m.publish("background_load_failed", r.model, map[string]any{"error": r.err.Error()})
		return nil
	}
	m.publish("background_load_done", r.model, nil)
	deps := m.dependents(r.model)
	for _, dep := range deps {
		m.log.Info().Str("event", "dependent_load").Str("model", dep).Str("after", r.model).Msg("manager")
	}
	return deps
}

// dependents lists auto-download models that load after id, are idle and
// not loaded, in priority order.
func (m *Manager) dependents(id string) []string {
	var out []string
	for _, mdl := range m.byPriority() {
		if !mdl.AutoDownload || mdl.LoadAfter != id {
			continue
		}
		inst := m.instance(mdl.ID)
		m.mu.RLock()
		st := inst.State
		m.mu.RUnlock()
		if st != StateReady || inst.Provider.Loaded() {
			continue
		}
		out = append(out, mdl.ID)
	}
	return out
}

func (m *Manager) byPriority() []types.Model {
	out := m.ListModels()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// Cleanup stops background work and unloads the current model. It is
// idempotent.
func (m *Manager) Cleanup() {
	m.cleanupOnce.Do(func() {
		m.cancel()
		m.bg.Wait()
		_ = m.lockSwitch(context.Background())
		m.UnloadCurrentModel()
		m.unlockSwitch()
		m.log.Info().Str("event", "cleanup_done").Msg("manager")
		m.publish("cleanup_done", "", nil)
	})
}
