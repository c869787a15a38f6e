package manager

import (
	"context"
	"sync"
	"time"
)

// beginGeneration reserves a queue slot and then an in-flight slot of the
// current model. Returns a release func; calling it more than once is safe.
func (m *Manager) beginGeneration(ctx context.Context, modelID string) (func(), error) {
	inst := m.instance(modelID)
	if inst == nil {
		return func() {}, ErrModelNotFound(modelID)
	}
	// If draining, reject new work so the unload can proceed
	m.mu.RLock()
	draining := inst.draining
	m.mu.RUnlock()
	if draining {
		return func() {}, tooBusyError{modelID: modelID}
	}

	// Fast path: respect an already-canceled context
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}

	timer := time.NewTimer(m.maxWait)
	defer timer.Stop()
	select {
	case inst.queueCh <- struct{}{}:
		// reserved queue slot
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		return func() {}, tooBusyError{modelID: modelID}
	}

	// Wait to acquire an in-flight slot
	acquired := false
	defer func() {
		if !acquired {
			<-inst.queueCh
		}
	}()
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	select {
	case inst.genCh <- struct{}{}:
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		return func() {}, tooBusyError{modelID: modelID}
	}

	// Re-check under the lock: a switch may have started while we queued.
	m.mu.Lock()
	switch {
	case inst.draining:
		m.mu.Unlock()
		<-inst.genCh
		return func() {}, tooBusyError{modelID: modelID}
	case m.current != modelID:
		m.mu.Unlock()
		<-inst.genCh
		return func() {}, ErrNoModelLoaded(modelID)
	}
	inst.LastUsed = time.Now()
	m.mu.Unlock()
	acquired = true

	var once sync.Once
	return func() {
		once.Do(func() { <-inst.genCh; <-inst.queueCh })
	}, nil
}
