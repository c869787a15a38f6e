// Package reporter periodically pushes a service status document derived
// from the manager snapshot to an HTTP sink.
package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"llmd/internal/manager"
)

// Defaults applied by New when the corresponding Config fields are unset.
const (
	defaultInterval        = 30 * time.Second
	defaultTimeout         = 10 * time.Second
	defaultStartupAttempts = 3
	defaultStartupBackoff  = 2 * time.Second
	defaultServiceName     = "llmd"
)

// Service status values understood by the sink.
const (
	StatusStarting = "starting"
	StatusHealthy  = "healthy"
	StatusLoading  = "loading"
	StatusDegraded = "degraded"
	StatusError    = "error"
)

// Source is what the reporter observes. *manager.Manager implements it.
type Source interface {
	Snapshot() manager.Snapshot
}

// Config configures a Reporter.
type Config struct {
	// SinkURL is the base URL; payloads go to SinkURL + "/updateServiceStatus".
	SinkURL     string
	ServiceName string
	Interval    time.Duration
	// Timeout bounds each POST.
	Timeout         time.Duration
	StartupAttempts int
	StartupBackoff  time.Duration
	Client          *http.Client
	Logger          zerolog.Logger
}

// Payload is the JSON document posted to the sink.
type Payload struct {
	ServiceName  string      `json:"serviceName"`
	Status       string      `json:"status"`
	Ready        bool        `json:"ready"`
	Message      string      `json:"message"`
	Timestamp    int64       `json:"timestamp"`
	Uptime       float64     `json:"uptime"`
	MemoryUsage  MemoryUsage `json:"memoryUsage"`
	ModelLoaded  *bool       `json:"modelLoaded,omitempty"`
	ModelLoading *bool       `json:"modelLoading,omitempty"`
	Model        string      `json:"model,omitempty"`
	Error        string      `json:"error,omitempty"`
	DegradedMode *bool       `json:"degradedMode,omitempty"`
}

// Reporter posts status payloads. Sink failures are logged and never
// returned to the caller of Run.
type Reporter struct {
	cfg   Config
	src   Source
	log   zerolog.Logger
	start time.Time
	now   func() time.Time
	// memory is swapped in tests.
	memory func() MemoryUsage
}

// New returns a Reporter with defaults applied.
func New(cfg Config, src Source) *Reporter {
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaultServiceName
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.StartupAttempts <= 0 {
		cfg.StartupAttempts = defaultStartupAttempts
	}
	if cfg.StartupBackoff <= 0 {
		cfg.StartupBackoff = defaultStartupBackoff
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	cfg.SinkURL = strings.TrimRight(cfg.SinkURL, "/")
	return &Reporter{
		cfg:    cfg,
		src:    src,
		log:    cfg.Logger.With().Str("component", "reporter").Logger(),
		start:  time.Now(),
		now:    time.Now,
		memory: readMemory,
	}
}

// Run sends the startup status, then the derived status every interval
// until ctx is done. It always returns nil once ctx is canceled.
func (r *Reporter) Run(ctx context.Context) error {
	r.log.Info().Str("sink", r.cfg.SinkURL).Dur("interval", r.cfg.Interval).Msg("status reporting started")
	r.SendStartup(ctx)
	t := time.NewTicker(r.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := r.Send(ctx, r.Current()); err != nil && ctx.Err() == nil {
				r.log.Warn().Err(err).Msg("status update failed")
			}
		}
	}
}

// SendStartup posts the "starting" status, retrying a bounded number of
// times. It reports whether any attempt succeeded.
func (r *Reporter) SendStartup(ctx context.Context) bool {
	p := r.payload(StatusStarting, false, "Service is starting up")
	for attempt := 1; attempt <= r.cfg.StartupAttempts; attempt++ {
		err := r.Send(ctx, p)
		if err == nil {
			return true
		}
		r.log.Warn().Err(err).Int("attempt", attempt).Int("of", r.cfg.StartupAttempts).Msg("startup status failed")
		if attempt == r.cfg.StartupAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(r.cfg.StartupBackoff):
		}
	}
	r.log.Error().Msg("failed to send startup status after all retries")
	return false
}

// Current derives a payload from the source snapshot.
func (r *Reporter) Current() Payload {
	s := r.src.Snapshot()
	var model string
	if s.CurrentModel != nil {
		model = s.CurrentModel.ID
	}
	switch {
	case s.Switching || s.State == manager.StateLoading:
		p := r.payload(StatusLoading, false, "Loading model")
		p.ModelLoading, p.ModelLoaded = ptr(true), ptr(false)
		p.Model = model
		return p
	case s.CurrentModel != nil && s.Loaded:
		p := r.payload(StatusHealthy, true, "Service is running normally")
		p.ModelLoading, p.ModelLoaded = ptr(false), ptr(true)
		p.Model = model
		return p
	case s.CurrentModel == nil && failedModel(s) != "":
		msg := failedModel(s)
		p := r.payload(StatusDegraded, true, "No model loaded: "+msg)
		p.DegradedMode = ptr(true)
		p.Error = msg
		return p
	default:
		return r.payload(StatusHealthy, true, "Service is running normally")
	}
}

// failedModel returns the manager error, or the first model error found.
func failedModel(s manager.Snapshot) string {
	if s.Err != "" {
		return s.Err
	}
	for id, ms := range s.Models {
		if ms.Status == manager.StateError {
			if ms.Err != "" {
				return id + ": " + ms.Err
			}
			return id + ": load failed"
		}
	}
	return ""
}

func (r *Reporter) payload(status string, ready bool, msg string) Payload {
	now := r.now()
	return Payload{
		ServiceName: r.cfg.ServiceName,
		Status:      status,
		Ready:       ready,
		Message:     msg,
		Timestamp:   now.UnixMilli(),
		Uptime:      now.Sub(r.start).Seconds(),
		MemoryUsage: r.memory(),
	}
}

// Send posts one payload. Any non-200 reply is an error.
func (r *Reporter) Send(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.SinkURL+"/updateServiceStatus", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.cfg.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status sink returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	r.log.Debug().Str("status", p.Status).Msg("status update sent")
	return nil
}

func ptr[T any](v T) *T { return &v }
