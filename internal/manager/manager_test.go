package manager

import (
	"testing"

	"llmd/pkg/types"
)

func TestNewWithConfigDefaults(t *testing.T) {
	m, err := NewWithConfig(ManagerConfig{})
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	if m.maxQueueDepth != defaultMaxQueueDepth {
		t.Fatalf("expected default maxQueueDepth=%d got %d", defaultMaxQueueDepth, m.maxQueueDepth)
	}
	if m.maxWait != defaultMaxWait {
		t.Fatalf("expected default maxWait=%v got %v", defaultMaxWait, m.maxWait)
	}
	if m.maxInflight != defaultMaxInflight || m.drainTimeout != defaultDrainTimeout {
		t.Fatalf("expected defaults, got inflight=%d drain=%s", m.maxInflight, m.drainTimeout)
	}
	if m.CurrentModel() != "" || m.CurrentProvider() != nil || m.Ready() {
		t.Fatalf("expected no current model")
	}
}

func TestNewWithConfig_AppliesDescriptorDefaults(t *testing.T) {
	f := newFixture(t, ManagerConfig{Registry: []types.Model{{ID: "a", Backend: types.BackendLocal}}}, nil)
	got := f.m.ListModels()[0]
	if got.MaxTokens != types.DefaultMaxTokens || got.Name != "a" {
		t.Fatalf("expected defaults applied, got %+v", got)
	}
}

func TestNewWithConfig_RejectsDuplicateIDs(t *testing.T) {
	_, err := NewWithConfig(ManagerConfig{Registry: []types.Model{
		{ID: "a", Backend: types.BackendOllama},
		{ID: "a", Backend: types.BackendOllama},
	}})
	if err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestNewWithConfig_UnknownDefaultModel(t *testing.T) {
	_, err := NewWithConfig(ManagerConfig{
		Registry:     []types.Model{{ID: "a", Backend: types.BackendOllama}},
		DefaultModel: "missing",
	})
	if !IsModelNotFound(err) {
		t.Fatalf("expected model not found, got %v", err)
	}
}

func TestNewWithConfig_UnknownBackend(t *testing.T) {
	_, err := NewWithConfig(ManagerConfig{Registry: []types.Model{{ID: "a", Backend: "telepathy"}}})
	if err == nil {
		t.Fatalf("expected unknown backend error")
	}
}

func TestListModelsReturnsCopy(t *testing.T) {
	f := newFixture(t, ManagerConfig{Registry: localModels("a", "b")}, nil)
	out := f.m.ListModels()
	if len(out) != 2 {
		t.Fatalf("expected 2 got %d", len(out))
	}
	// mutate returned slice and ensure internal registry remains intact
	out[0].ID = "z"
	if f.m.ListModels()[0].ID != "a" {
		t.Fatalf("registry mutated via returned slice")
	}
}

func TestReadyReflectsCurrent(t *testing.T) {
	f := newFixture(t, ManagerConfig{Registry: localModels("m1")}, nil)
	if f.m.Ready() {
		t.Fatalf("expected not ready initially")
	}
	if err := f.m.SwitchTo(testCtx(t), "m1"); err != nil {
		t.Fatalf("SwitchTo: %v", err)
	}
	if !f.m.Ready() {
		t.Fatalf("expected ready after switch")
	}
	if f.m.CurrentProvider() != f.provs["m1"] {
		t.Fatalf("CurrentProvider does not return the m1 provider")
	}
}
