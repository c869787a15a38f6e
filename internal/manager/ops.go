package manager

import (
	"context"

	"github.com/google/uuid"
)

// SwitchTo makes id the current model under the switch lock. If id is
// already current and loaded it returns nil without reloading. Concurrent
// calls run one at a time; the last to acquire the lock wins.
func (m *Manager) SwitchTo(ctx context.Context, id string) error {
	if m.instance(id) == nil {
		switchesTotal.WithLabelValues("not_found").Inc()
		return ErrModelNotFound(id)
	}
	if err := m.lockSwitch(ctx); err != nil {
		switchesTotal.WithLabelValues("canceled").Inc()
		return err
	}
	defer m.unlockSwitch()

	if m.currentAndLoaded(id) {
		switchesTotal.WithLabelValues("noop").Inc()
		return nil
	}
	if err := m.LoadModel(ctx, id); err != nil {
		switchesTotal.WithLabelValues("error").Inc()
		return err
	}
	switchesTotal.WithLabelValues("ok").Inc()
	return nil
}

// Switch kicks off an async SwitchTo and returns an operation ID. The
// outcome is published as switch_done or switch_failed carrying the op id.
// The switch runs on the manager's lifetime context, not ctx.
func (m *Manager) Switch(ctx context.Context, id string) (string, error) {
	if m.instance(id) == nil {
		return "", ErrModelNotFound(id)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.ctx.Err() != nil {
		return "", ErrClosed
	}
	op := uuid.NewString()
	m.publish("switch_start", id, map[string]any{"op": op})
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		if err := m.SwitchTo(m.ctx, id); err != nil {
			m.log.Warn().Str("event", "switch_failed").Str("model", id).Str("op", op).Err(err).Msg("manager")
			m.publish("switch_failed", id, map[string]any{"op": op, "error": err.Error()})
			return
		}
		m.publish("switch_done", id, map[string]any{"op": op})
	}()
	return op, nil
}

// Unload drains and unloads the current model under the switch lock.
// It is a no-op when nothing is current.
func (m *Manager) Unload(ctx context.Context) error {
	if err := m.lockSwitch(ctx); err != nil {
		return err
	}
	defer m.unlockSwitch()
	m.UnloadCurrentModel()
	return nil
}
