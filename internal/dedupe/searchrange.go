package dedupe

import (
	"github.com/rumor-ml/commons.systems/tesoro/internal/domain"
	"github.com/rumor-ml/commons.systems/tesoro/internal/normalize"
)

// ComputeSearchRange returns the minimal inclusive date window the store
// must be queried with before classifying the batch. Both the booking date
// and the value date of every row contribute: a row's persisted counterpart
// may have been filed under either field, and a range covering only one of
// the two would hide a genuine duplicate from the store query and produce a
// false NEW. This is a correctness requirement, not an optimization.
//
// Returns nil when the batch is empty or no row carries a parseable date.
func ComputeSearchRange(rows []domain.IncomingRow) *domain.SearchRange {
	var from, to string

	for _, row := range rows {
		for _, raw := range []string{row.Date, row.OperationDate} {
			d := normalize.DateOnly(raw)
			if d == "" {
				continue
			}
			if from == "" || d < from {
				from = d
			}
			if to == "" || d > to {
				to = d
			}
		}
	}

	if from == "" {
		return nil
	}

	return &domain.SearchRange{From: from, To: to}
}
