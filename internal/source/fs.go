// Package source provides payment advice document sources. The core
// pipeline only sees raw text; how a PDF or email became text is the
// upstream collaborator's concern.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"payrecon/internal/port"
)

// FSSource reads advice documents from a local directory.
type FSSource struct {
	dir     string
	pattern string
}

func NewFSSource(dir, pattern string) *FSSource {
	if pattern == "" {
		pattern = "*.txt"
	}
	return &FSSource{dir: dir, pattern: pattern}
}

// List returns every matching document in the directory, sorted by name so
// ingestion order is stable across runs.
func (s *FSSource) List(ctx context.Context) ([]port.AdviceDocument, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, s.pattern))
	if err != nil {
		return nil, fmt.Errorf("listing advice documents in %s: %w", s.dir, err)
	}
	sort.Strings(matches)

	docs := make([]port.AdviceDocument, 0, len(matches))
	for _, path := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading advice document %s: %w", path, err)
		}
		docs = append(docs, port.AdviceDocument{
			FileName: filepath.Base(path),
			Location: path,
			Text:     string(data),
		})
	}
	return docs, nil
}
