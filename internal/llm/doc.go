// Package llm implements the provider contract used by the manager and the
// backends behind it. It is structured into small files by concern:
//
//   - provider.go: Provider interface, Params, Options and New.
//   - stream.go: Stream, the single-use fragment sequence returned by Generate.
//   - progress.go: Tracker and the optional ProgressReporter interface.
//   - errors.go: ErrNotLoaded, GenerationError, dependency errors.
//   - engine.go: Engine abstraction shared by the local and hub providers.
//   - local.go, ollama.go, openai.go, hub.go: the four provider variants.
//   - download.go: resumable weights download used by the hub provider.
//   - sse.go: server-sent events reader for OpenAI-style streams.
//
// Engines:
//
//   - In-process llama (standard):
//     Uses go-llama.cpp. Enabled with `-tags=llama`.
//     Files: engine_llama.go, llama_cgo.go (linker rpath hints).
//     A no-CGO stub exists when the tag is not set: engine_llama_stub.go.
//
//   - Spawned llama-server:
//     Used when Options.LlamaBin is set. One process per loaded model.
//     File: engine_server.go.
package llm
