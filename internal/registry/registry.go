package registry

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"llmd/pkg/types"
)

// Merge returns the configured models followed by discovered ones.
// Configured entries win: a discovered model is dropped when its ID is
// already configured or its file is already referenced by a configured
// local model.
func Merge(configured, discovered []types.Model) []types.Model {
	ids := make(map[string]struct{}, len(configured))
	paths := make(map[string]struct{}, len(configured))
	out := make([]types.Model, 0, len(configured)+len(discovered))
	for _, m := range configured {
		ids[m.ID] = struct{}{}
		if m.Path != "" {
			paths[filepath.Clean(m.Path)] = struct{}{}
		}
		out = append(out, m)
	}
	for _, m := range discovered {
		if _, ok := ids[m.ID]; ok {
			continue
		}
		if _, ok := paths[filepath.Clean(m.Path)]; ok {
			continue
		}
		ids[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}

// Normalize trims ids and maps backend aliases to canonical names. A model
// with no backend but a path is local. Unknown backends are left as-is for
// Validate to report.
func Normalize(models []types.Model) []types.Model {
	out := make([]types.Model, len(models))
	for i, m := range models {
		m.ID = strings.TrimSpace(m.ID)
		m.LoadAfter = strings.TrimSpace(m.LoadAfter)
		switch {
		case m.Backend == "" && m.Path != "":
			m.Backend = types.BackendLocal
		case m.Backend != "":
			if b, ok := types.ParseBackend(string(m.Backend)); ok {
				m.Backend = b
			}
		}
		out[i] = m
	}
	return out
}

// Validate reports every problem in models: empty or duplicate ids, unknown
// backends, missing backend fields, and load_after references that dangle
// or form a cycle.
func Validate(models []types.Model) error {
	var errs []error
	byID := make(map[string]types.Model, len(models))
	for _, m := range models {
		if m.ID == "" {
			errs = append(errs, errors.New("model with empty id"))
			continue
		}
		if _, dup := byID[m.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate model id %q", m.ID))
			continue
		}
		byID[m.ID] = m
		if err := checkBackend(m); err != nil {
			errs = append(errs, err)
		}
	}
	for _, m := range models {
		if m.LoadAfter == "" {
			continue
		}
		if m.LoadAfter == m.ID {
			errs = append(errs, fmt.Errorf("model %s: load_after references itself", m.ID))
			continue
		}
		if _, ok := byID[m.LoadAfter]; !ok {
			errs = append(errs, fmt.Errorf("model %s: load_after references unknown model %q", m.ID, m.LoadAfter))
		}
	}
	if cyc := findCycle(byID); cyc != nil {
		errs = append(errs, fmt.Errorf("load_after cycle: %s", strings.Join(cyc, " -> ")))
	}
	return errors.Join(errs...)
}

func checkBackend(m types.Model) error {
	switch m.Backend {
	case types.BackendLocal:
		if m.Path == "" {
			return fmt.Errorf("model %s: local backend requires path", m.ID)
		}
	case types.BackendHub:
		if m.File == "" {
			return fmt.Errorf("model %s: hub backend requires file", m.ID)
		}
	case types.BackendOpenAI:
		if m.Endpoint == "" {
			return fmt.Errorf("model %s: openai backend requires endpoint", m.ID)
		}
	case types.BackendOllama:
	default:
		return fmt.Errorf("model %s: unknown backend %q", m.ID, m.Backend)
	}
	return nil
}

// findCycle follows load_after edges; each model has at most one, so a walk
// from every node either ends or revisits a node on the current path.
// Self references are reported separately.
func findCycle(byID map[string]types.Model) []string {
	done := make(map[string]bool, len(byID))
	for start := range byID {
		if done[start] {
			continue
		}
		onPath := map[string]int{}
		var path []string
		for id := start; id != ""; {
			if done[id] {
				break
			}
			if i, seen := onPath[id]; seen {
				if len(path)-i > 1 {
					return append(path[i:], id)
				}
				break
			}
			onPath[id] = len(path)
			path = append(path, id)
			m, ok := byID[id]
			if !ok {
				break
			}
			id = m.LoadAfter
		}
		for _, id := range path {
			done[id] = true
		}
	}
	return nil
}

// Build merges configured models with those discovered in modelsDir (when
// non-empty), normalizes and validates the result.
func Build(configured []types.Model, modelsDir string) ([]types.Model, error) {
	var discovered []types.Model
	if modelsDir != "" {
		var err error
		discovered, err = LoadDir(modelsDir)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", modelsDir, err)
		}
	}
	models := Normalize(Merge(Normalize(configured), discovered))
	if err := Validate(models); err != nil {
		return nil, err
	}
	return models, nil
}
