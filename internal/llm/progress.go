package llm

import (
	"maps"
	"sync"
)

// DownloadStatus is the weights lifecycle reported by downloading providers.
type DownloadStatus string

const (
	DownloadReady       DownloadStatus = "ready"
	DownloadDownloading DownloadStatus = "downloading"
	DownloadLoading     DownloadStatus = "loading"
	DownloadComplete    DownloadStatus = "complete"
	DownloadError       DownloadStatus = "error"
	DownloadUnknown     DownloadStatus = "unknown"
)

// Progress is a point-in-time copy of a Tracker.
type Progress struct {
	Status  DownloadStatus
	Percent float64
	Details map[string]any
}

// ProgressReporter is implemented by providers that fetch weights on demand.
type ProgressReporter interface {
	Progress() Progress
}

// Tracker records download status, percent and step details. Percent never
// decreases within one attempt; Begin starts a new attempt at zero.
type Tracker struct {
	mu       sync.RWMutex
	status   DownloadStatus
	pct      float64
	details  map[string]any
	onChange func(Progress)
}

// NewTracker returns a tracker in the ready state. onChange, when non-nil,
// receives every update.
func NewTracker(onChange func(Progress)) *Tracker {
	return &Tracker{status: DownloadReady, details: map[string]any{}, onChange: onChange}
}

// Begin resets the tracker for a fresh load attempt.
func (t *Tracker) Begin() {
	t.mu.Lock()
	t.status = DownloadDownloading
	t.pct = 0
	t.details = map[string]any{}
	p := t.snapshotLocked()
	t.mu.Unlock()
	t.notify(p)
}

// Step moves to status at pct and records the current step name.
func (t *Tracker) Step(status DownloadStatus, pct float64, step string) {
	t.update(status, pct, map[string]any{"current_step": step})
}

// Advance raises the percent and merges detail fields without changing status.
func (t *Tracker) Advance(pct float64, fields map[string]any) {
	t.update("", pct, fields)
}

// Complete marks a successful load.
func (t *Tracker) Complete() {
	t.update(DownloadComplete, 100, map[string]any{"current_step": "complete"})
}

// Fail marks the attempt failed, keeping the percent reached so far.
func (t *Tracker) Fail(err error) {
	t.update(DownloadError, -1, map[string]any{"error": err.Error()})
}

// Reset returns the tracker to ready, e.g. after unload.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.status = DownloadReady
	t.pct = 0
	t.details = map[string]any{}
	p := t.snapshotLocked()
	t.mu.Unlock()
	t.notify(p)
}

func (t *Tracker) update(status DownloadStatus, pct float64, fields map[string]any) {
	t.mu.Lock()
	if status != "" {
		t.status = status
	}
	if pct > 100 {
		pct = 100
	}
	if pct > t.pct {
		t.pct = pct
	}
	for k, v := range fields {
		t.details[k] = v
	}
	p := t.snapshotLocked()
	t.mu.Unlock()
	t.notify(p)
}

func (t *Tracker) notify(p Progress) {
	if t.onChange != nil {
		t.onChange(p)
	}
}

func (t *Tracker) snapshotLocked() Progress {
	return Progress{Status: t.status, Percent: t.pct, Details: maps.Clone(t.details)}
}

// Progress returns a copy of the current state.
func (t *Tracker) Progress() Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked()
}
