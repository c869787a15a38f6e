package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"llmd/internal/llm"
	"llmd/pkg/types"
)

type Manager struct {
	mu           sync.RWMutex
	current      string
	err          string
	registry     []types.Model
	defaultModel string
	instances    map[string]*Instance

	// switchCh is the switch lock; a send acquires it.
	switchCh  chan struct{}
	switching atomic.Bool

	log       zerolog.Logger
	pubMu     sync.RWMutex
	publisher EventPublisher

	// Queue config
	maxQueueDepth int
	maxWait       time.Duration
	maxInflight   int
	drainTimeout  time.Duration

	// Lifetime and background loading
	ctx         context.Context
	cancel      context.CancelFunc
	tasks       chan string
	startOnce   sync.Once
	cleanupOnce sync.Once
	bg          sync.WaitGroup

	startTime    time.Time
	loadsTotal   atomic.Int64
	unloadsTotal atomic.Int64
}

// Ready reports whether a current model is loaded and able to serve.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	inst := m.instances[m.current]
	m.mu.RUnlock()
	return inst != nil && inst.Provider.Loaded()
}

func (m *Manager) ListModels() []types.Model {
	m.mu.RLock()
	defer m.mu.RUnlock()
	// return a shallow copy to avoid external mutation
	out := make([]types.Model, len(m.registry))
	copy(out, m.registry)
	return out
}

// CurrentModel returns the current model id or "".
func (m *Manager) CurrentModel() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// CurrentProvider returns the provider of the current model, or nil.
func (m *Manager) CurrentProvider() llm.Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if inst := m.instances[m.current]; inst != nil {
		return inst.Provider
	}
	return nil
}

// IsSwitching reports whether a transition holds the switch lock.
func (m *Manager) IsSwitching() bool { return m.switching.Load() }

// DefaultModel returns the configured default model id.
func (m *Manager) DefaultModel() string { return m.defaultModel }

// lockSwitch acquires the switch lock or returns ctx's error.
func (m *Manager) lockSwitch(ctx context.Context) error {
	select {
	case m.switchCh <- struct{}{}:
		m.switching.Store(true)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) unlockSwitch() {
	m.switching.Store(false)
	<-m.switchCh
}
