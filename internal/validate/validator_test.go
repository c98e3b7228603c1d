package validate

import (
	"strings"
	"testing"

	"github.com/rumor-ml/commons.systems/tesoro/internal/domain"
)

func classifiedBatch() []domain.ClassifiedRow {
	return []domain.ClassifiedRow{
		{
			Row: domain.IncomingRow{
				Date:        "2026-01-05",
				Description: "Cuota socio enero",
				Amount:      -25.00,
				AccountID:   "acc-caixa-0042",
			},
			Status: domain.StatusNew,
		},
		{
			Row: domain.IncomingRow{
				Date:          "2026-01-07",
				Description:   "Recibo luz",
				Amount:        -88.40,
				BankReference: "REF-002",
				AccountID:     "acc-caixa-0042",
			},
			Status:             domain.StatusDuplicateSafe,
			Reason:             domain.ReasonBankRef,
			MatchedExistingIDs: []string{"txn-9"},
		},
		{
			Row: domain.IncomingRow{
				Date:        "2026-01-09",
				Description: "Transferencia recibida",
				Amount:      500.00,
				AccountID:   "acc-caixa-0042",
			},
			Status:             domain.StatusDuplicateCandidate,
			Reason:             domain.ReasonBaseKey,
			MatchedExistingIDs: []string{"txn-4"},
		},
	}
}

func hasError(result *ValidationResult, substr string) bool {
	for _, e := range result.Errors {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func hasWarning(result *ValidationResult, substr string) bool {
	for _, w := range result.Warnings {
		if strings.Contains(w.Message, substr) {
			return true
		}
	}
	return false
}

func TestValidateClassified_CleanBatch(t *testing.T) {
	result := ValidateClassified(classifiedBatch())

	if result.HasErrors() {
		t.Errorf("expected no errors, got %+v", result.Errors)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("expected no warnings, got %+v", result.Warnings)
	}
}

func TestValidateClassified_VerdictReasonPairing(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(rows []domain.ClassifiedRow)
		wantErr string
	}{
		{
			name: "invalid status",
			mutate: func(rows []domain.ClassifiedRow) {
				rows[0].Status = "maybe"
			},
			wantErr: "invalid import status",
		},
		{
			name: "invalid reason",
			mutate: func(rows []domain.ClassifiedRow) {
				rows[1].Reason = "vibes"
			},
			wantErr: "invalid match reason",
		},
		{
			name: "new row with reason",
			mutate: func(rows []domain.ClassifiedRow) {
				rows[0].Reason = domain.ReasonBankRef
			},
			wantErr: "new row must not carry a match reason",
		},
		{
			name: "new row with matched IDs",
			mutate: func(rows []domain.ClassifiedRow) {
				rows[0].MatchedExistingIDs = []string{"txn-1"}
			},
			wantErr: "must not reference existing transactions",
		},
		{
			name: "safe duplicate without reason",
			mutate: func(rows []domain.ClassifiedRow) {
				rows[1].Reason = domain.ReasonNone
			},
			wantErr: "requires a match reason",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := classifiedBatch()
			tt.mutate(rows)

			result := ValidateClassified(rows)
			if !hasError(result, tt.wantErr) {
				t.Errorf("expected error containing %q, got %+v", tt.wantErr, result.Errors)
			}
		})
	}
}

func TestValidateClassified_IntraFileNeedsNoIDs(t *testing.T) {
	rows := classifiedBatch()
	rows[1].Reason = domain.ReasonIntraFile
	rows[1].MatchedExistingIDs = nil

	result := ValidateClassified(rows)
	if result.HasErrors() {
		t.Errorf("expected no errors, got %+v", result.Errors)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("expected no warnings, got %+v", result.Warnings)
	}
}

func TestValidateClassified_StoreMatchWithoutIDsWarns(t *testing.T) {
	rows := classifiedBatch()
	rows[1].MatchedExistingIDs = nil

	result := ValidateClassified(rows)
	if result.HasErrors() {
		t.Errorf("expected no errors, got %+v", result.Errors)
	}
	if !hasWarning(result, "without matched transaction IDs") {
		t.Errorf("expected missing-IDs warning, got %+v", result.Warnings)
	}
}

func TestValidateClassified_RowFields(t *testing.T) {
	rows := classifiedBatch()
	rows[0].Row.AccountID = ""
	rows[0].Row.Date = ""
	rows[1].Row.Date = "07-01-2026"
	rows[2].Row.Amount = 0

	result := ValidateClassified(rows)

	if !hasError(result, "accountId cannot be empty") {
		t.Errorf("expected empty accountId error, got %+v", result.Errors)
	}
	if !hasError(result, "date cannot be empty") {
		t.Errorf("expected empty date error, got %+v", result.Errors)
	}
	if !hasWarning(result, "not in a recognized format") {
		t.Errorf("expected date format warning, got %+v", result.Warnings)
	}
	if !hasWarning(result, "zero-amount") {
		t.Errorf("expected zero-amount warning, got %+v", result.Warnings)
	}
}

func TestValidateClassified_SpanishDateAccepted(t *testing.T) {
	rows := classifiedBatch()
	rows[0].Row.Date = "05/01/2026"

	result := ValidateClassified(rows)
	if len(result.Warnings) != 0 {
		t.Errorf("expected no warnings for DD/MM/YYYY date, got %+v", result.Warnings)
	}
}

func TestValidateClassified_MixedAccounts(t *testing.T) {
	rows := classifiedBatch()
	rows[2].Row.AccountID = "acc-santander-9001"

	result := ValidateClassified(rows)
	if !hasError(result, "spans multiple accounts") {
		t.Errorf("expected mixed-account error, got %+v", result.Errors)
	}
}

func TestValidateSelection_Consistent(t *testing.T) {
	rows := classifiedBatch()
	sel := &domain.ImportSelection{
		RowsToImport: []domain.IncomingRow{rows[0].Row, rows[2].Row},
		Stats: domain.SelectionStats{
			DuplicateSkippedCount:      1,
			CandidateCount:             1,
			CandidateUserImportedCount: 1,
			CandidateUserSkippedCount:  0,
		},
	}

	result := ValidateSelection(rows, sel)
	if result.HasErrors() {
		t.Errorf("expected no errors, got %+v", result.Errors)
	}
}

func TestValidateSelection_Nil(t *testing.T) {
	result := ValidateSelection(classifiedBatch(), nil)
	if !hasError(result, "cannot be nil") {
		t.Errorf("expected nil-selection error, got %+v", result.Errors)
	}
}

func TestValidateSelection_StatsMismatch(t *testing.T) {
	tests := []struct {
		name    string
		sel     *domain.ImportSelection
		wantErr string
	}{
		{
			name: "wrong skipped duplicate count",
			sel: &domain.ImportSelection{
				RowsToImport: []domain.IncomingRow{classifiedBatch()[0].Row},
				Stats: domain.SelectionStats{
					DuplicateSkippedCount:     0,
					CandidateCount:            1,
					CandidateUserSkippedCount: 1,
				},
			},
			wantErr: "safe duplicates",
		},
		{
			name: "wrong candidate count",
			sel: &domain.ImportSelection{
				RowsToImport: []domain.IncomingRow{classifiedBatch()[0].Row},
				Stats: domain.SelectionStats{
					DuplicateSkippedCount: 1,
					CandidateCount:        3,
				},
			},
			wantErr: "batch has 1 candidates",
		},
		{
			name: "candidate decisions do not sum",
			sel: &domain.ImportSelection{
				RowsToImport: []domain.IncomingRow{classifiedBatch()[0].Row},
				Stats: domain.SelectionStats{
					DuplicateSkippedCount:      1,
					CandidateCount:             1,
					CandidateUserImportedCount: 1,
					CandidateUserSkippedCount:  1,
				},
			},
			wantErr: "must equal candidate count",
		},
		{
			name: "import set size off",
			sel: &domain.ImportSelection{
				RowsToImport: nil,
				Stats: domain.SelectionStats{
					DuplicateSkippedCount:     1,
					CandidateCount:            1,
					CandidateUserSkippedCount: 1,
				},
			},
			wantErr: "expected 1 rows to import",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateSelection(classifiedBatch(), tt.sel)
			if !hasError(result, tt.wantErr) {
				t.Errorf("expected error containing %q, got %+v", tt.wantErr, result.Errors)
			}
		})
	}
}

func TestValidateSelection_SafeDuplicateLeak(t *testing.T) {
	rows := classifiedBatch()
	sel := &domain.ImportSelection{
		// rows[1] is a safe duplicate and must never appear here
		RowsToImport: []domain.IncomingRow{rows[0].Row, rows[1].Row},
		Stats: domain.SelectionStats{
			DuplicateSkippedCount:     1,
			CandidateCount:            1,
			CandidateUserSkippedCount: 1,
		},
	}

	result := ValidateSelection(rows, sel)
	if !hasError(result, "safe duplicate present") {
		t.Errorf("expected leak error, got %+v", result.Errors)
	}
}
