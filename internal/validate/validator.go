package validate

import (
	"fmt"
	"time"

	"github.com/rumor-ml/commons.systems/tesoro/internal/domain"
)

// ValidationResult contains all validation errors and warnings for an
// import run
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// ValidationError represents a validation error
type ValidationError struct {
	Entity  string // "row", "classification", "selection"
	ID      string
	Field   string
	Value   string
	Message string
}

// ValidationWarning represents a non-critical validation issue
type ValidationWarning struct {
	Entity  string
	ID      string
	Field   string
	Value   string
	Message string
}

// HasErrors reports whether any hard errors were found
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

func (r *ValidationResult) addError(entity, id, field, value, message string) {
	r.Errors = append(r.Errors, ValidationError{
		Entity:  entity,
		ID:      id,
		Field:   field,
		Value:   value,
		Message: message,
	})
}

func (r *ValidationResult) addWarning(entity, id, field, value, message string) {
	r.Warnings = append(r.Warnings, ValidationWarning{
		Entity:  entity,
		ID:      id,
		Field:   field,
		Value:   value,
		Message: message,
	})
}

// rowID gives a stable identifier for error reporting. Rows have no
// persisted ID before commit, so the batch position is used.
func rowID(index int) string {
	return fmt.Sprintf("row[%d]", index)
}

// ValidateClassified checks a classified batch for internal consistency:
// enum validity, verdict/reason pairing, and per-row field constraints.
// Unparseable dates are warnings, not errors; the matcher degrades
// gracefully on them but the operator should know.
func ValidateClassified(rows []domain.ClassifiedRow) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationWarning{},
	}

	accountIDs := make(map[string]bool)

	for i, cr := range rows {
		id := rowID(i)

		if !domain.ValidateImportStatus(cr.Status) {
			result.addError("classification", id, "Status", string(cr.Status),
				fmt.Sprintf("invalid import status: %s (must be new, duplicate_safe, or duplicate_candidate)", cr.Status))
		}
		if !domain.ValidateMatchReason(cr.Reason) {
			result.addError("classification", id, "Reason", string(cr.Reason),
				fmt.Sprintf("invalid match reason: %s", cr.Reason))
		}

		// Verdict/reason pairing
		switch cr.Status {
		case domain.StatusNew:
			if cr.Reason != domain.ReasonNone {
				result.addError("classification", id, "Reason", string(cr.Reason),
					"new row must not carry a match reason")
			}
			if len(cr.MatchedExistingIDs) > 0 {
				result.addError("classification", id, "MatchedExistingIDs",
					fmt.Sprintf("%d ids", len(cr.MatchedExistingIDs)),
					"new row must not reference existing transactions")
			}
		case domain.StatusDuplicateSafe, domain.StatusDuplicateCandidate:
			if cr.Reason == domain.ReasonNone {
				result.addError("classification", id, "Reason", "",
					fmt.Sprintf("%s verdict requires a match reason", cr.Status))
			}
			// Intra-file matches point at earlier batch rows, not store
			// records, so an empty ID list is expected there.
			if cr.Reason != domain.ReasonIntraFile && cr.Reason != domain.ReasonNone && len(cr.MatchedExistingIDs) == 0 {
				result.addWarning("classification", id, "MatchedExistingIDs", "",
					fmt.Sprintf("%s match without matched transaction IDs", cr.Reason))
			}
		}

		validateRow(result, id, cr.Row)

		if cr.Row.AccountID != "" {
			accountIDs[cr.Row.AccountID] = true
		}
	}

	// The engine classifies one account's statement at a time; a mixed
	// batch means upstream metadata extraction went wrong.
	if len(accountIDs) > 1 {
		result.addError("classification", "", "AccountID",
			fmt.Sprintf("%d distinct accounts", len(accountIDs)),
			"batch spans multiple accounts")
	}

	return result
}

func validateRow(result *ValidationResult, id string, row domain.IncomingRow) {
	if row.AccountID == "" {
		result.addError("row", id, "AccountID", "", "row accountId cannot be empty")
	}
	if row.Description == "" {
		result.addWarning("row", id, "Description", "", "row has no description")
	}
	if row.Date == "" {
		result.addError("row", id, "Date", "", "row date cannot be empty")
	} else if !parseableDate(row.Date) {
		result.addWarning("row", id, "Date", row.Date,
			"date not in a recognized format, matching strength reduced")
	}
	if row.OperationDate != "" && !parseableDate(row.OperationDate) {
		result.addWarning("row", id, "OperationDate", row.OperationDate,
			"operation date not in a recognized format, matching strength reduced")
	}
	if row.Amount == 0 {
		result.addWarning("row", id, "Amount", "0", "zero-amount movement")
	}
}

// parseableDate accepts the forms the parsers emit: ISO and the Spanish
// bank export convention.
func parseableDate(s string) bool {
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// ValidateSelection cross-checks an opt-in selection against the
// classified batch it was built from. The core invariant is conservation:
// every row to import is either new or an explicitly opted-in candidate,
// and the statistics account for every duplicate verdict exactly once.
func ValidateSelection(rows []domain.ClassifiedRow, sel *domain.ImportSelection) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationWarning{},
	}

	if sel == nil {
		result.addError("selection", "", "", "", "selection cannot be nil")
		return result
	}

	var newCount, safeCount, candidateCount int
	for _, cr := range rows {
		switch cr.Status {
		case domain.StatusNew:
			newCount++
		case domain.StatusDuplicateSafe:
			safeCount++
		case domain.StatusDuplicateCandidate:
			candidateCount++
		}
	}

	stats := sel.Stats

	if stats.DuplicateSkippedCount != safeCount {
		result.addError("selection", "", "DuplicateSkippedCount",
			fmt.Sprintf("%d", stats.DuplicateSkippedCount),
			fmt.Sprintf("batch has %d safe duplicates", safeCount))
	}
	if stats.CandidateCount != candidateCount {
		result.addError("selection", "", "CandidateCount",
			fmt.Sprintf("%d", stats.CandidateCount),
			fmt.Sprintf("batch has %d candidates", candidateCount))
	}
	if stats.CandidateUserImportedCount+stats.CandidateUserSkippedCount != stats.CandidateCount {
		result.addError("selection", "", "CandidateCount",
			fmt.Sprintf("%d", stats.CandidateCount),
			fmt.Sprintf("imported (%d) + skipped (%d) candidates must equal candidate count",
				stats.CandidateUserImportedCount, stats.CandidateUserSkippedCount))
	}
	if stats.CandidateUserImportedCount < 0 || stats.CandidateUserSkippedCount < 0 {
		result.addError("selection", "", "Stats", "",
			"candidate decision counts cannot be negative")
	}

	wantImport := newCount + stats.CandidateUserImportedCount
	if len(sel.RowsToImport) != wantImport {
		result.addError("selection", "", "RowsToImport",
			fmt.Sprintf("%d rows", len(sel.RowsToImport)),
			fmt.Sprintf("expected %d rows to import (%d new + %d opted-in candidates)",
				wantImport, newCount, stats.CandidateUserImportedCount))
	}

	// Safe duplicates must never leak into the import set. Rows are
	// value types without IDs, so match on the composite identity the
	// batch guarantees unique enough for this check.
	safeRows := make(map[string]bool)
	for _, cr := range rows {
		if cr.Status == domain.StatusDuplicateSafe {
			safeRows[rowFingerprint(cr.Row)] = true
		}
	}
	for i, row := range sel.RowsToImport {
		if safeRows[rowFingerprint(row)] {
			result.addError("selection", rowID(i), "RowsToImport", row.Description,
				"safe duplicate present in rows to import")
		}
	}

	return result
}

func rowFingerprint(row domain.IncomingRow) string {
	return fmt.Sprintf("%s|%s|%.2f|%s", row.Date, row.Description, row.Amount, row.BankReference)
}
