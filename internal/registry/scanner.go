package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"llmd/internal/common/fsutil"
	"llmd/pkg/types"
)

// Scanner discovers model descriptors in a directory.
type Scanner interface {
	Scan(dir string) ([]types.Model, error)
}

// GGUFScanner builds local descriptors from *.gguf files.
type GGUFScanner struct{}

// NewGGUFScanner returns a scanner for GGUF weight files.
func NewGGUFScanner() *GGUFScanner { return &GGUFScanner{} }

var quantRe = regexp.MustCompile(`(?i)(?:^|[.\-_])(I?Q\d(?:_[A-Z0-9]+)*|BF16|F16|F32)(?:[.\-_]|$)`)

// Known families, matched as substrings of the lowercased filename.
var families = []string{"mixtral", "mistral", "llama", "phi", "qwen", "gemma", "deepseek", "falcon", "starcoder"}

// Scan lists dir (a leading '~' is expanded) and returns one local model
// per *.gguf file. ID is the full filename (including extension); Path is the
// absolute file path. Quant and Family are guessed from the filename.
func (s *GGUFScanner) Scan(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		stem := name[:len(name)-len(".gguf")]
		models = append(models, types.Model{
			ID:      name,
			Name:    stem,
			Backend: types.BackendLocal,
			Path:    filepath.Join(abs, name),
			Quant:   guessQuant(stem),
			Family:  guessFamily(stem),
		})
	}
	return models, nil
}

// LoadDir scans dir with a GGUFScanner.
func LoadDir(dir string) ([]types.Model, error) {
	return NewGGUFScanner().Scan(dir)
}

func guessQuant(stem string) string {
	m := quantRe.FindStringSubmatch(stem)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

func guessFamily(stem string) string {
	lower := strings.ToLower(stem)
	for _, f := range families {
		if strings.Contains(lower, f) {
			return f
		}
	}
	return ""
}
