package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"llmd/internal/manager"
	"llmd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
// *manager.Manager implements it.
type Service interface {
	GetAvailableModels(ctx context.Context) []types.AvailableModel
	CurrentModel() string
	IsSwitching() bool
	ModelStatusResponse(id string) (types.ModelStatusResponse, error)
	SwitchTo(ctx context.Context, id string) error
	Switch(ctx context.Context, id string) (string, error)
	Unload(ctx context.Context) error
	Status() types.StatusResponse
	Infer(ctx context.Context, req types.InferRequest, w io.Writer, flush func()) error
	Ready() bool
}

var _ Service = (*manager.Manager)(nil)

// NewMux builds the router. events may be nil, in which case /events is
// not mounted.
func NewMux(svc Service, events *EventHub) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	// JSON endpoints are compressed; streaming endpoints are not.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5))

		r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, types.ModelsResponse{Models: svc.GetAvailableModels(r.Context())})
		})

		r.Get("/models/current", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, types.CurrentModelResponse{Model: svc.CurrentModel(), Switching: svc.IsSwitching()})
		})

		r.Get("/models/{id}/status", func(w http.ResponseWriter, r *http.Request) {
			resp, err := svc.ModelStatusResponse(chi.URLParam(r, "id"))
			if err != nil {
				writeJSONError(w, statusFor(err), err.Error())
				return
			}
			writeJSON(w, http.StatusOK, resp)
		})

		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, svc.Status())
		})
	})

	r.Post("/switch", func(w http.ResponseWriter, r *http.Request) {
		var req types.SwitchRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		req.Model = strings.TrimSpace(req.Model)
		if req.Model == "" {
			writeJSONError(w, http.StatusBadRequest, "model is required")
			return
		}
		if req.Async {
			op, err := svc.Switch(r.Context(), req.Model)
			if err != nil {
				writeJSONError(w, statusFor(err), err.Error())
				return
			}
			writeJSON(w, http.StatusAccepted, types.SwitchResponse{Model: req.Model, OK: true, OpID: op})
			return
		}
		ctx, cancel := handlerContext(r, inferDeadline())
		defer cancel()
		start := time.Now()
		if err := svc.SwitchTo(ctx, req.Model); err != nil {
			zlog.Info().Str("model", req.Model).Dur("dur", time.Since(start)).Err(err).Msg("switch failed")
			writeJSONError(w, statusFor(err), err.Error())
			return
		}
		zlog.Info().Str("model", req.Model).Dur("dur", time.Since(start)).Msg("switch done")
		writeJSON(w, http.StatusOK, types.SwitchResponse{Model: req.Model, OK: true})
	})

	r.Post("/unload", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := handlerContext(r, 0)
		defer cancel()
		if err := svc.Unload(ctx); err != nil {
			writeJSONError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	r.Post("/infer", func(w http.ResponseWriter, r *http.Request) {
		var req types.InferRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		// Basic validation
		if strings.TrimSpace(req.Prompt) == "" {
			writeJSONError(w, http.StatusBadRequest, "prompt is required")
			return
		}

		var flush func()
		if f, ok := w.(http.Flusher); ok {
			flush = f.Flush
		}
		rid := middleware.GetReqID(r.Context())
		lvl := requestLogLevel(r)
		ow := &onceHeaderWriter{w: w}
		writer := io.Writer(ow)
		if lvl <= zerolog.DebugLevel {
			writer = io.MultiWriter(ow, &loggingLineWriter{requestID: rid})
		}
		start := time.Now()
		if lvl <= zerolog.InfoLevel {
			zlog.Info().Str("path", r.URL.Path).Str("model", req.Model).Str("request_id", rid).Msg("infer start")
		}
		ctx, cancel := handlerContext(r, inferDeadline())
		defer cancel()
		err := svc.Infer(ctx, req, writer, flush)
		status := http.StatusOK
		switch {
		case err == nil:
		case r.Context().Err() != nil || serverBaseCtx.Err() != nil:
			// client went away or the server is shutting down
			status = 499
		case ow.started:
			// headers are gone; the stream just ends
			status = http.StatusInternalServerError
		default:
			status = statusFor(err)
			writeJSONError(w, status, err.Error())
		}
		if lvl <= zerolog.InfoLevel || (lvl <= zerolog.ErrorLevel && err != nil) {
			ev := zlog.Info()
			if err != nil {
				ev = zlog.Error().Err(err)
			}
			ev.Int("status", status).Dur("dur", time.Since(start)).Str("request_id", rid).Msg("infer end")
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})

	if events != nil {
		r.Get("/events", events.ServeHTTP)
	}

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// decodeJSON enforces the JSON content type and body limit and decodes the
// body into v. It writes the error response and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// An oversized body is reported as 400 too, to avoid leaking size details
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// onceHeaderWriter sets the NDJSON content type on the first write, so an
// error before any output can still be sent as a JSON error.
type onceHeaderWriter struct {
	w       http.ResponseWriter
	started bool
}

func (o *onceHeaderWriter) Write(p []byte) (int, error) {
	if !o.started {
		o.started = true
		o.w.Header().Set("Content-Type", "application/x-ndjson")
		o.w.WriteHeader(http.StatusOK)
	}
	return o.w.Write(p)
}
