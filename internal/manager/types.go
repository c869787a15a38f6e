package manager

import (
	"context"
	"time"

	"llmd/internal/llm"
	"llmd/pkg/types"
)

// State represents the manager-side status of a model.
type State string

const (
	StateReady       State = "ready"
	StateLoading     State = "loading"
	StateDownloading State = "downloading"
	StateError       State = "error"
	StateUnknown     State = "unknown"
)

// ModelInfo is a minimal view of the current model.
type ModelInfo struct {
	ID      string
	Name    string
	Backend types.Backend
	Path    string
	Quant   string
	Family  string
}

// ModelState is the per-model part of a Snapshot.
type ModelState struct {
	Status   State
	Loaded   bool
	Progress float64
	Err      string
}

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	State        State
	CurrentModel *ModelInfo
	Loaded       bool
	Switching    bool
	Err          string
	Models       map[string]ModelState
}

// Instance is the manager's slot for one configured model. The set of
// instances is fixed at construction.
type Instance struct {
	ID       string
	Model    types.Model
	Provider llm.Provider
	State    State
	Err      string
	LastUsed time.Time
	// Queueing primitives
	genCh    chan struct{} // in-flight generations
	queueCh  chan struct{} // buffered: queue slots
	draining bool
	// cancel funcs of open streams, guarded by Manager.mu
	streams    map[uint64]context.CancelFunc
	nextStream uint64
}
