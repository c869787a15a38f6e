//go:build !llama

package llm

import (
	"context"

	"llmd/pkg/types"
)

// llamaBuilt is false in CGO-free builds; local models then need a
// llama-server binary (Options.LlamaBin).
var llamaBuilt = false

func openLlamaEngine(context.Context, types.Model, string) (Engine, error) {
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
