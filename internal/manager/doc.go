// Package manager owns the configured providers and the single "current
// model". It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: state types (State, ModelInfo, Instance, Snapshot).
//   - errors.go: error types and helpers (IsTooBusy, IsModelNotFound, IsLoadFailed).
//   - helpers.go: small utilities (instance lookup, size estimation).
//   - load.go: LoadModel/UnloadCurrentModel, the unlocked lifecycle primitives.
//   - unload.go: drain of admitted streams before a provider is released.
//   - ops.go: SwitchTo/Switch/Unload, the entry points serialized by the switch lock.
//   - queue_admission.go: per-instance queueing and generation admission.
//   - generate.go: Generate, returning an llm.Stream bound to an admission slot.
//   - inference.go: Infer, the NDJSON writer used by the HTTP layer.
//   - dispatcher.go: Start/BringUp/Cleanup and dependency-ordered background loads.
//   - models.go: listing and per-model status accessors.
//   - status_report.go: Snapshot/Status reporting helpers.
//   - metrics.go: Prometheus collectors.
//
// Every transition of the current model goes through the switch lock:
// SwitchTo, Unload, background loads and the explicit-model path of
// Generate. Reads never take it and may observe a transition in progress.
//
// External packages should treat this package as the orchestration layer and use
// public methods only (e.g., New/NewWithConfig, Ready, ListModels, Status, Infer).
// Internal types are subject to change.
package manager
