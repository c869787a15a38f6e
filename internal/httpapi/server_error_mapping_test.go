package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"llmd/internal/llm"
	"llmd/internal/manager"
)

func TestInfer_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"model not found", manager.ErrModelNotFound("m-missing"), http.StatusNotFound},
		{"no model loaded", manager.ErrNoModelLoaded(""), http.StatusServiceUnavailable},
		{"dependency unavailable", llm.ErrDependencyUnavailable("no engine"), http.StatusServiceUnavailable},
		{"closed", manager.ErrClosed, http.StatusServiceUnavailable},
		{"too busy", manager.ErrTooBusy("m"), http.StatusTooManyRequests},
		{"http error", mockHTTPError{msg: "too busy", code: http.StatusTooManyRequests}, http.StatusTooManyRequests},
		{"generic", io.EOF, http.StatusInternalServerError},
		{"deadline", context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := postJSON(NewMux(&mockService{inferErr: c.err}, nil), "/infer", `{"prompt":"hi"}`)
			if w.Code != c.want {
				t.Fatalf("expected %d, got %d", c.want, w.Code)
			}
		})
	}
}

func TestSwitch_LoadFailureMaps503(t *testing.T) {
	svc := &mockService{switchErr: errors.Join(errors.New("x"), manager.ErrNoModelLoaded("m"))}
	if w := postJSON(NewMux(svc, nil), "/switch", `{"model":"m"}`); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	svc = &mockService{switchErr: manager.ErrModelNotFound("m")}
	if w := postJSON(NewMux(svc, nil), "/switch", `{"model":"m","async":true}`); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
