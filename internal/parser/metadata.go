package parser

import (
	"fmt"
	"time"
)

// Metadata contains context about the file being parsed.
// Extracted from directory structure: ~/statements/{institution}/{account}/[{period}/]file.ext
//
// Create instances using NewMetadata(filePath, detectedAt). Optional fields
// (institution, account, period) are set after construction by the scanner.
// Empty Institution()/AccountNumber() means the path didn't match the
// expected layout; downstream code treats such files as unorganized rather
// than erroring.
type Metadata struct {
	filePath      string
	institution   string // Inferred from directory (e.g., "caixabank")
	accountNumber string // Inferred from directory (e.g., "0042")
	period        string // Optional period directory (e.g., "2026-02")
	detectedAt    time.Time
}

// NewMetadata creates a new Metadata instance with validated required fields.
func NewMetadata(filePath string, detectedAt time.Time) (*Metadata, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}
	if detectedAt.IsZero() {
		return nil, fmt.Errorf("detected time cannot be zero")
	}
	return &Metadata{
		filePath:   filePath,
		detectedAt: detectedAt,
	}, nil
}

// FilePath returns the absolute file path
func (m *Metadata) FilePath() string {
	return m.filePath
}

// Institution returns the institution name inferred from directory structure.
// Returns empty string if path didn't match expected structure.
func (m *Metadata) Institution() string {
	return m.institution
}

// AccountNumber returns the account number inferred from directory structure.
// Returns empty string if path didn't match expected structure.
func (m *Metadata) AccountNumber() string {
	return m.accountNumber
}

// Period returns the period inferred from directory structure.
// Returns empty string if no period directory exists.
func (m *Metadata) Period() string {
	return m.period
}

// DetectedAt returns the timestamp when the file was detected
func (m *Metadata) DetectedAt() time.Time {
	return m.detectedAt
}

// SetInstitution sets the institution name
func (m *Metadata) SetInstitution(institution string) {
	m.institution = institution
}

// SetAccountNumber sets the account number
func (m *Metadata) SetAccountNumber(accountNumber string) {
	m.accountNumber = accountNumber
}

// SetPeriod sets the period
func (m *Metadata) SetPeriod(period string) {
	m.period = period
}
