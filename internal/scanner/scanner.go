package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rumor-ml/commons.systems/tesoro/internal/parser"
)

// Scanner walks a directory tree and finds statement files
type Scanner struct {
	rootDir string
}

// New creates a new scanner for the given root directory
func New(rootDir string) *Scanner {
	return &Scanner{rootDir: rootDir}
}

// ScanResult represents a found file with metadata
type ScanResult struct {
	Path     string
	Metadata parser.Metadata
}

// Scan walks the directory tree and finds all statement files.
// Expected layout: {root}/{institution}/{account}/[{period}/]file.ext
func (s *Scanner) Scan() ([]ScanResult, error) {
	var results []ScanResult

	rootDir := s.expandHome(s.rootDir)

	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !s.isStatementFile(path) {
			return nil
		}

		meta, err := s.extractMetadata(path, rootDir)
		if err != nil {
			return err
		}

		results = append(results, ScanResult{
			Path:     path,
			Metadata: *meta,
		})
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	return results, nil
}

// isStatementFile checks if file is a known statement format
func (s *Scanner) isStatementFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".qfx" || ext == ".ofx" || ext == ".csv"
}

// extractMetadata parses the directory structure for institution and
// account info. Files outside the expected layout still get metadata,
// just without institution or account set.
func (s *Scanner) extractMetadata(filePath, rootDir string) (*parser.Metadata, error) {
	relPath, err := filepath.Rel(rootDir, filePath)
	if err != nil {
		relPath = filePath
	}

	parts := strings.Split(filepath.ToSlash(relPath), "/")

	meta, err := parser.NewMetadata(filePath, time.Now())
	if err != nil {
		return nil, err
	}

	if len(parts) >= 2 {
		meta.SetInstitution(s.normalizeInstitutionName(parts[0]))
	}
	if len(parts) >= 3 {
		meta.SetAccountNumber(parts[1])
	}
	if len(parts) >= 4 && s.looksLikePeriod(parts[2]) {
		meta.SetPeriod(parts[2])
	}

	return meta, nil
}

// normalizeInstitutionName converts a directory name to a readable name,
// "la_caixa" -> "La Caixa"
func (s *Scanner) normalizeInstitutionName(dirName string) string {
	name := strings.ReplaceAll(dirName, "_", " ")

	words := strings.Split(name, " ")
	for i, word := range words {
		if len(word) > 0 {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}

	return strings.Join(words, " ")
}

// looksLikePeriod checks if string looks like a date period (YYYY-MM)
func (s *Scanner) looksLikePeriod(str string) bool {
	return len(str) >= 7 && str[4] == '-'
}

// expandHome expands ~ to the home directory
func (s *Scanner) expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
