package manager

import (
	"testing"
)

func TestEvents_SwitchAndUnload(t *testing.T) {
	f := newFixture(t, ManagerConfig{Registry: localModels("m")}, nil)
	if err := f.m.SwitchTo(testCtx(t), "m"); err != nil {
		t.Fatalf("SwitchTo: %v", err)
	}
	if err := f.m.Unload(testCtx(t)); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	evts := f.pub.Events()
	// Make sure at least these events occurred in some order
	want := map[string]bool{
		"load_start":   false,
		"load_ready":   false,
		"unload_start": false,
		"unload_done":  false,
	}
	ids := map[string]bool{}
	for _, e := range evts {
		if _, ok := want[e.Name]; ok {
			want[e.Name] = true
		}
		if e.ID == "" || ids[e.ID] {
			t.Fatalf("event %q has missing or duplicate id %q", e.Name, e.ID)
		}
		ids[e.ID] = true
		if e.Time.IsZero() || e.Fields == nil {
			t.Fatalf("event %q missing time or fields: %+v", e.Name, e)
		}
	}
	for k, v := range want {
		if !v {
			t.Fatalf("expected event %q to be published; got events: %+v", k, evts)
		}
	}
}

func TestEvents_LoadFailedCarriesError(t *testing.T) {
	f := newFixture(t, ManagerConfig{Registry: localModels("m")}, nil)
	f.provs["m"].loadErr = errBoom
	_ = f.m.SwitchTo(testCtx(t), "m")
	got := f.pub.Named("load_failed")
	if len(got) != 1 || got[0].ModelID != "m" || got[0].Fields["error"] != "boom" {
		t.Fatalf("unexpected load_failed events %+v", got)
	}
}

func TestSetEventPublisher_NilIsNoop(t *testing.T) {
	f := newFixture(t, ManagerConfig{Registry: localModels("m")}, nil)
	f.m.SetEventPublisher(nil)
	if err := f.m.SwitchTo(testCtx(t), "m"); err != nil {
		t.Fatalf("SwitchTo: %v", err)
	}
	if n := len(f.pub.Events()); n != 0 {
		t.Fatalf("replaced publisher still received %d events", n)
	}
}
