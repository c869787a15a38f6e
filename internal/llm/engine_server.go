package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"llmd/pkg/types"
)

const (
	serverReadyTimeout = 60 * time.Second
	serverStopGrace    = 2 * time.Second
)

type serverEngineConfig struct {
	Bin    string
	Host   string
	Client *http.Client
	Log    zerolog.Logger
}

// serverEngine runs one llama-server process for one weights file and talks
// to it over its OpenAI-compatible completions endpoint.
type serverEngine struct {
	cfg     serverEngineConfig
	cmd     *exec.Cmd
	baseURL string
	exited  chan struct{}
	waitErr error
	stderr  *lockedBuffer

	mu     sync.RWMutex
	closed bool
}

// lockedBuffer collects process stderr for diagnostics.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// tail returns at most n trailing bytes.
func (b *lockedBuffer) tail(n int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.buf.String()
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return s
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	_, p, err := net.SplitHostPort(l.Addr().String())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(p)
}

func serverArgs(m types.Model, path, host string, port int) []string {
	args := []string{
		"-m", path,
		"--host", host,
		"--port", strconv.Itoa(port),
		"-c", strconv.Itoa(m.ContextWindow),
		"-t", strconv.Itoa(m.Threads),
		"-b", strconv.Itoa(m.BatchSize),
	}
	if m.GPULayers > 0 {
		args = append(args, "-ngl", strconv.Itoa(m.GPULayers))
	}
	if !m.MMap() {
		args = append(args, "--no-mmap")
	}
	if m.UseMLock {
		args = append(args, "--mlock")
	}
	return args
}

// startServerEngine spawns llama-server and waits until /v1/models answers.
func startServerEngine(ctx context.Context, cfg serverEngineConfig, m types.Model, path string) (*serverEngine, error) {
	port, err := pickFreePort(cfg.Host)
	if err != nil {
		return nil, err
	}
	e := &serverEngine{
		cfg:     cfg,
		baseURL: "http://" + net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		exited:  make(chan struct{}),
		stderr:  &lockedBuffer{},
	}
	e.cmd = exec.Command(cfg.Bin, serverArgs(m, path, cfg.Host, port)...)
	e.cmd.Stderr = e.stderr
	if err := e.cmd.Start(); err != nil {
		return nil, fmt.Errorf("start llama-server: %w", err)
	}
	pid := e.cmd.Process.Pid
	cfg.Log.Info().Str("event", "spawn_start").Int("pid", pid).Int("port", port).Msg("llama-server")
	go func() {
		e.waitErr = e.cmd.Wait()
		close(e.exited)
	}()

	deadline := time.NewTimer(serverReadyTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		if e.healthy(ctx, time.Second) {
			cfg.Log.Info().Str("event", "spawn_ready").Int("pid", pid).Str("url", e.baseURL).Msg("llama-server")
			return e, nil
		}
		select {
		case <-e.exited:
			cfg.Log.Error().Str("event", "spawn_exit").Int("pid", pid).AnErr("err", e.waitErr).Msg("llama-server")
			return nil, fmt.Errorf("llama-server exited before ready: %v; stderr tail: %s", e.waitErr, e.stderr.tail(4096))
		case <-ctx.Done():
			_ = e.Close()
			return nil, ctx.Err()
		case <-deadline.C:
			cfg.Log.Error().Str("event", "spawn_timeout").Int("pid", pid).Msg("llama-server")
			_ = e.Close()
			return nil, fmt.Errorf("llama-server not ready in time: %s", e.baseURL)
		case <-tick.C:
		}
	}
}

func (e *serverEngine) healthy(ctx context.Context, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/v1/models", nil)
	if err != nil {
		return false
	}
	resp, err := e.cfg.Client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// completionRequest is the payload for /v1/completions.
type completionRequest struct {
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        float64  `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	Stream      bool     `json:"stream"`
}

func (e *serverEngine) Predict(ctx context.Context, prompt string, p Params, onToken func(string) bool) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrNotLoaded
	}
	body, err := json.Marshal(completionRequest{
		Prompt:      prompt,
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
		TopP:        p.TopP,
		Stop:        p.Stop,
		Stream:      true,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.cfg.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("llama-server http error: %s: %s", resp.Status, string(b))
	}
	return readSSE(ctx, resp.Body, e.cfg.Log, onToken)
}

// Close terminates the process: SIGTERM first, then kill after a grace period.
// It waits for running predictions to return.
func (e *serverEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if e.cmd == nil || e.cmd.Process == nil {
		return nil
	}
	_ = e.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-e.exited:
	case <-time.After(serverStopGrace):
		_ = e.cmd.Process.Kill()
		<-e.exited
	}
	e.cfg.Log.Info().Str("event", "spawn_stop").Int("pid", e.cmd.Process.Pid).Msg("llama-server")
	return nil
}
