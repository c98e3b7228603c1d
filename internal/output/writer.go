// Package output serializes import reports for the CLI. A report captures
// one classified statement so the run can be inspected, archived, or fed
// back into a later commit.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rumor-ml/commons.systems/tesoro/internal/domain"
)

// Report is the on-disk record of one classification run.
type Report struct {
	SessionID   string                 `json:"sessionId"`
	FileName    string                 `json:"fileName"`
	AccountID   string                 `json:"accountId"`
	SearchRange *domain.SearchRange    `json:"searchRange,omitempty"`
	Rows        []domain.ClassifiedRow `json:"rows"`
	Summary     Summary                `json:"summary"`
}

// Summary counts verdicts for quick reading without scanning rows.
type Summary struct {
	Total              int `json:"total"`
	New                int `json:"new"`
	DuplicateSafe      int `json:"duplicateSafe"`
	DuplicateCandidate int `json:"duplicateCandidate"`
}

// WriteOptions configures how the report is written
type WriteOptions struct {
	FilePath string // Output path (empty = stdout)
}

// NewReport assembles a report from a classified batch, deriving the
// summary from the verdicts.
func NewReport(sessionID, fileName, accountID string, rng *domain.SearchRange, rows []domain.ClassifiedRow) *Report {
	report := &Report{
		SessionID:   sessionID,
		FileName:    fileName,
		AccountID:   accountID,
		SearchRange: rng,
		Rows:        rows,
		Summary:     Summary{Total: len(rows)},
	}
	for _, cr := range rows {
		switch cr.Status {
		case domain.StatusNew:
			report.Summary.New++
		case domain.StatusDuplicateSafe:
			report.Summary.DuplicateSafe++
		case domain.StatusDuplicateCandidate:
			report.Summary.DuplicateCandidate++
		}
	}
	return report
}

// WriteReport serializes the report to JSON with 2-space indentation
func WriteReport(report *Report, w io.Writer) error {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report as JSON: %w", err)
	}

	return nil
}

// WriteReportToFile writes the report to file or stdout based on options
func WriteReportToFile(report *Report, opts WriteOptions) (err error) {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}

	if opts.FilePath == "" {
		return WriteReport(report, os.Stdout)
	}

	f, err := os.Create(opts.FilePath)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", opts.FilePath, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close output file %s: %w", opts.FilePath, closeErr)
		}
	}()

	if err = WriteReport(report, f); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", opts.FilePath, err)
	}

	return nil
}

// LoadReport reads a previously written report, for resuming a run or
// committing a reviewed selection from the CLI.
func LoadReport(filePath string) (*Report, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	f, err := os.Open(filePath)
	if err != nil {
		// Return unwrapped error so caller can check os.IsNotExist
		return nil, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close %s: %v\n", filePath, closeErr)
		}
	}()

	var report Report
	decoder := json.NewDecoder(f)
	if err := decoder.Decode(&report); err != nil {
		return nil, fmt.Errorf("failed to decode report JSON: %w", err)
	}

	return &report, nil
}
