package manager

import (
	"context"
	"errors"

	"llmd/internal/llm"
)

// GenerateOptions selects the model and overrides its generation defaults.
// Zero values (nil Temperature) fall back to the model descriptor.
type GenerateOptions struct {
	Model       string
	MaxTokens   int
	Temperature *float64
	TopP        float64
	Stop        []string
}

func (o GenerateOptions) params() llm.Params {
	return llm.Params{MaxTokens: o.MaxTokens, Temperature: o.Temperature, TopP: o.TopP, Stop: o.Stop}
}

// Generate streams fragments for prompt. With an empty opts.Model it uses
// the current model. A named model that is not current is switched to
// through the switch lock first.
//
// The stream holds an admission slot of its model until it is closed or
// drained, and an unload waits for it up to the drain timeout, then
// cancels it.
func (m *Manager) Generate(ctx context.Context, prompt string, opts GenerateOptions) (*llm.Stream, error) {
	id := opts.Model
	if id != "" {
		if m.instance(id) == nil {
			return nil, ErrModelNotFound(id)
		}
		if !m.currentAndLoaded(id) {
			m.log.Info().Str("event", "generate_switch").Str("model", id).Msg("manager")
			if err := m.SwitchTo(ctx, id); err != nil {
				return nil, err
			}
		}
	} else {
		id = m.CurrentModel()
		if id == "" {
			return nil, ErrNoModelLoaded("")
		}
	}

	release, err := m.beginGeneration(ctx, id)
	if err != nil {
		return nil, err
	}
	inst := m.instance(id)
	gctx, cancel := context.WithCancel(ctx)
	s, err := inst.Provider.Generate(gctx, prompt, opts.params())
	if err != nil {
		cancel()
		release()
		if errors.Is(err, llm.ErrNotLoaded) {
			return nil, ErrNoModelLoaded(id)
		}
		return nil, err
	}
	key := m.trackStream(inst, cancel)
	streamsInflight.WithLabelValues(id).Inc()
	s.OnClose(func() {
		m.untrackStream(inst, key)
		cancel()
		streamsInflight.WithLabelValues(id).Dec()
		release()
	})
	return s, nil
}

func (m *Manager) trackStream(inst *Instance, cancel context.CancelFunc) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inst.streams == nil {
		inst.streams = make(map[uint64]context.CancelFunc)
	}
	inst.nextStream++
	inst.streams[inst.nextStream] = cancel
	return inst.nextStream
}

func (m *Manager) untrackStream(inst *Instance, key uint64) {
	m.mu.Lock()
	delete(inst.streams, key)
	m.mu.Unlock()
}

// cancelStreams cancels every open stream of inst and returns how many.
func (m *Manager) cancelStreams(inst *Instance) int {
	m.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(inst.streams))
	for _, c := range inst.streams {
		cancels = append(cancels, c)
	}
	m.mu.Unlock()
	for _, c := range cancels {
		c()
	}
	return len(cancels)
}
