package manager

import (
	"errors"

	"llmd/internal/llm"
)

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{ modelID string }

func (e tooBusyError) Error() string { return "too busy: " + e.modelID }

// ErrTooBusy returns the backpressure error for modelID.
func ErrTooBusy(modelID string) error { return tooBusyError{modelID: modelID} }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}

// ErrModelNotFound returns an error when a requested model id is not present in the registry.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

// loadFailedError carries a provider load failure. The model is left in
// the error state with the same message.
type loadFailedError struct {
	modelID string
	err     error
}

func (e loadFailedError) Error() string { return "load " + e.modelID + ": " + e.err.Error() }

func (e loadFailedError) Unwrap() error { return e.err }

// IsLoadFailed reports whether err came from a failed provider load.
func IsLoadFailed(err error) bool {
	var e loadFailedError
	return errors.As(err, &e)
}

// noModelLoadedError is returned by Generate when nothing resolves to a
// loaded provider.
type noModelLoadedError struct{ modelID string }

func (e noModelLoadedError) Error() string {
	if e.modelID == "" {
		return "no model loaded"
	}
	return "model not loaded: " + e.modelID
}

func (e noModelLoadedError) Is(target error) bool { return target == llm.ErrNotLoaded }

// ErrNoModelLoaded constructs a noModelLoadedError; it matches llm.ErrNotLoaded.
func ErrNoModelLoaded(id string) error { return noModelLoadedError{modelID: id} }

// IsNoModelLoaded reports whether err indicates a missing loaded model.
func IsNoModelLoaded(err error) bool {
	var e noModelLoadedError
	return errors.As(err, &e) || errors.Is(err, llm.ErrNotLoaded)
}

// IsDependencyUnavailable reports whether err indicates a missing runtime dependency.
func IsDependencyUnavailable(err error) bool { return llm.IsDependencyUnavailable(err) }
