package manager

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"llmd/pkg/types"
)

// Infer streams NDJSON to w: one {"token":...} line per fragment, then a
// final {"done":true,...} line with the full content. With no model in req
// and nothing current, the default model is switched to.
func (m *Manager) Infer(ctx context.Context, req types.InferRequest, w io.Writer, flusher func()) error {
	opts := GenerateOptions{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
	}
	if opts.Model == "" && m.CurrentModel() == "" {
		opts.Model = m.defaultModel
	}
	s, err := m.Generate(ctx, req.Prompt, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	var b strings.Builder
	for s.Next() {
		tok := s.Text()
		if _, err := w.Write(tokenLineJSON(tok)); err != nil {
			return err
		}
		b.WriteString(tok)
		safeFlush(flusher)
	}
	if err := s.Err(); err != nil {
		return err
	}

	model := opts.Model
	if model == "" {
		model = m.CurrentModel()
	}
	end := map[string]any{
		"done":    true,
		"content": b.String(),
		"model":   model,
	}
	jb, _ := json.Marshal(end)
	if _, err := w.Write(append(jb, '\n')); err != nil {
		return err
	}
	safeFlush(flusher)
	return nil
}

// safeFlush calls flusher, swallowing panics from writers that lost their
// connection.
func safeFlush(flusher func()) {
	if flusher == nil {
		return
	}
	defer func() { _ = recover() }()
	flusher()
}

// tokenLineJSON formats a token NDJSON line using json.Marshal for correctness.
func tokenLineJSON(tok string) []byte {
	type tokenMsg struct {
		Token string `json:"token"`
	}
	b, _ := json.Marshal(tokenMsg{Token: tok})
	return append(b, '\n')
}
