package dedupe

import (
	"github.com/rumor-ml/commons.systems/tesoro/internal/domain"
)

// BuildSelection combines classified rows with the user's opt-in choices
// into the final list of rows to persist.
//
// selectedCandidateIndexes are indexes into the candidate subgroup only
// (0 = first duplicate candidate in batch order), not into the full batch.
// Indexes outside [0, candidateCount) are silently ignored: the review UI
// may hand back stale indexes after a re-render and that must not abort an
// import.
//
// New rows are always imported, safe duplicates never are regardless of the
// selection input, and candidates are imported iff their candidate-local
// index was selected. Relative order within each group follows batch order.
func BuildSelection(classified []domain.ClassifiedRow, selectedCandidateIndexes []int) domain.ImportSelection {
	selected := make(map[int]struct{}, len(selectedCandidateIndexes))
	for _, i := range selectedCandidateIndexes {
		selected[i] = struct{}{}
	}

	var (
		newRows       []domain.IncomingRow
		candidateRows []domain.IncomingRow
		stats         domain.SelectionStats
	)

	candidateIdx := 0
	for _, cr := range classified {
		switch cr.Status {
		case domain.StatusNew:
			newRows = append(newRows, cr.Row)
		case domain.StatusDuplicateSafe:
			stats.DuplicateSkippedCount++
		case domain.StatusDuplicateCandidate:
			stats.CandidateCount++
			if _, ok := selected[candidateIdx]; ok {
				candidateRows = append(candidateRows, cr.Row)
				stats.CandidateUserImportedCount++
			} else {
				stats.CandidateUserSkippedCount++
			}
			candidateIdx++
		}
	}

	rows := make([]domain.IncomingRow, 0, len(newRows)+len(candidateRows))
	rows = append(rows, newRows...)
	rows = append(rows, candidateRows...)

	return domain.ImportSelection{
		RowsToImport: rows,
		Stats:        stats,
	}
}
