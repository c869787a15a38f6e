package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// openAIStreamChoice is the subset of a streaming choice we read. Chat
// completions fill Delta.Content; plain completions fill Text.
type openAIStreamChoice struct {
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason"`
}

type openAIStreamResponse struct {
	Object  string               `json:"object"`
	Choices []openAIStreamChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// readSSE parses an OpenAI-style event stream and yields text fragments
// until "[DONE]" or EOF. It returns nil when yield stops the stream.
func readSSE(ctx context.Context, body io.Reader, log zerolog.Logger, yield func(string) bool) error {
	r := bufio.NewReader(body)
	for {
		line, err := r.ReadString('\n')
		if l := strings.TrimSpace(line); l != "" && strings.HasPrefix(strings.ToLower(l), "data:") {
			data := strings.TrimSpace(l[len("data:"):])
			if data == "[DONE]" {
				return nil
			}
			var msg openAIStreamResponse
			if e := json.Unmarshal([]byte(data), &msg); e == nil {
				if msg.Error != nil {
					return errors.New(msg.Error.Message)
				}
				if len(msg.Choices) > 0 {
					frag := msg.Choices[0].Delta.Content
					if frag == "" {
						frag = msg.Choices[0].Text
					}
					if frag != "" && !yield(frag) {
						return nil
					}
					continue
				}
			}
			// llama-server's native endpoint streams {"content": "..."} objects.
			var generic map[string]any
			if e := json.Unmarshal([]byte(data), &generic); e == nil {
				if tok, ok := generic["content"].(string); ok {
					if tok != "" && !yield(tok) {
						return nil
					}
					continue
				}
			}
			log.Debug().Str("event", "unknown_stream_line").Str("line", l).Msg("sse")
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}
