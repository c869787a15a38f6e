package httpapi

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"llmd/internal/manager"
	"llmd/pkg/types"
)

// fakeOllama serves /api/tags and a three-chunk /api/generate stream.
func fakeOllama(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"name":"tiny:latest"}]}`))
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, c := range []string{`{"response":"Hel"}`, `{"response":"lo"}`, `{"response":"","done":true}`} {
			fmt.Fprintln(w, c)
		}
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestManagerOverHTTP_SwitchInferStatus(t *testing.T) {
	ollama := fakeOllama(t)
	m, err := manager.NewWithConfig(manager.ManagerConfig{
		Registry: []types.Model{{ID: "tiny", Backend: types.BackendOllama, Endpoint: ollama.URL}},
		Logger:   zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	t.Cleanup(m.Cleanup)
	h := NewMux(m, nil)

	// nothing loaded yet
	if w := postJSON(h, "/infer", `{"prompt":"hi"}`); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before any switch, got %d", w.Code)
	}
	if w := postJSON(h, "/switch", `{"model":"missing"}`); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown model, got %d", w.Code)
	}
	if w := postJSON(h, "/switch", `{"model":"tiny"}`); w.Code != http.StatusOK {
		t.Fatalf("switch: %d %s", w.Code, w.Body.String())
	}

	w := postJSON(h, "/infer", `{"prompt":"hi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("infer: %d %s", w.Code, w.Body.String())
	}
	var last map[string]any
	sc := bufio.NewScanner(strings.NewReader(w.Body.String()))
	lines := 0
	for sc.Scan() {
		lines++
		last = nil
		if err := json.Unmarshal(sc.Bytes(), &last); err != nil {
			t.Fatalf("bad line %q", sc.Text())
		}
	}
	if lines != 3 || last["done"] != true || last["content"] != "Hello" || last["model"] != "tiny" {
		t.Fatalf("unexpected stream (%d lines): %s", lines, w.Body.String())
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	var st types.StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("json: %v", err)
	}
	if st.CurrentModel != "tiny" || st.State != "ready" || st.LoadsTotal != 1 {
		t.Fatalf("unexpected status %+v", st)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/unload", nil))
	if rec.Code != http.StatusOK || m.CurrentModel() != "" {
		t.Fatalf("unload: %d current=%q", rec.Code, m.CurrentModel())
	}
}
