package llm

import "errors"

// ErrNotLoaded is returned by Generate before a successful Load.
var ErrNotLoaded = errors.New("model not loaded")

// GenerationError wraps a backend failure that happened while producing
// fragments. It is delivered as the terminal error of a Stream.
type GenerationError struct {
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	return "generation failed for " + e.Model + ": " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error { return e.Err }

// IsGenerationFailure reports whether err came from a backend mid-stream.
func IsGenerationFailure(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}

func generationFailed(model string, err error) error {
	if err == nil {
		return nil
	}
	var ge *GenerationError
	if errors.As(err, &ge) {
		return err
	}
	return &GenerationError{Model: model, Err: err}
}

// dependencyUnavailableError signals a missing runtime dependency (e.g.,
// llama.cpp) so the HTTP layer can return 503 instead of 500.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var de dependencyUnavailableError
	return errors.As(err, &de)
}
