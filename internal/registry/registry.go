package registry

import (
	"fmt"
	"io"
	"os"

	"github.com/rumor-ml/commons.systems/tesoro/internal/parser"
	"github.com/rumor-ml/commons.systems/tesoro/internal/parsers/csv"
	"github.com/rumor-ml/commons.systems/tesoro/internal/parsers/ofx"
)

// Registry holds all registered parsers
type Registry struct {
	parsers []parser.Parser
}

// New creates a registry with all built-in parsers
func New() *Registry {
	return &Registry{
		parsers: []parser.Parser{
			ofx.NewParser(),
			csv.NewParser(),
		},
	}
}

// Register adds a custom parser (for extensibility)
func (r *Registry) Register(p parser.Parser) {
	r.parsers = append(r.parsers, p)
}

// FindParser returns the best parser for this file.
// Reads the first 512 bytes for format detection via header inspection,
// enough to detect the markers of the supported statement formats.
func (r *Registry) FindParser(path string) (parser.Parser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	header := make([]byte, 512)
	n, err := f.Read(header)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read header from %s: %w", path, err)
	}
	// EOF is fine, small exports may be under 512 bytes
	header = header[:n]

	for _, p := range r.parsers {
		if p.CanParse(path, header) {
			return p, nil
		}
	}

	return nil, fmt.Errorf("no parser found for file: %s", path)
}

// ListParsers returns all registered parser names
func (r *Registry) ListParsers() []string {
	names := make([]string, len(r.parsers))
	for i, p := range r.parsers {
		names[i] = p.Name()
	}
	return names
}
