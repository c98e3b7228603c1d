package dedupe

import (
	"strconv"
	"strings"

	"github.com/rumor-ml/commons.systems/tesoro/internal/domain"
	"github.com/rumor-ml/commons.systems/tesoro/internal/normalize"
)

// ExtraMatchField names an additional field the base-key tier must agree on
// before emitting a duplicate candidate. Used by callers that want stricter
// candidate matching for banks known to repeat date+amount+description.
type ExtraMatchField string

const (
	ExtraFieldBankReference ExtraMatchField = "bankReference"
	ExtraFieldBalanceAfter  ExtraMatchField = "balanceAfter"
)

// Options tunes classification. The zero value is the standard behavior.
type Options struct {
	// ExtraMatchFields narrows the base-key candidate tier: a candidate
	// match additionally requires equality of each named field in its
	// normalized form. Absence on both sides counts as equal here, since
	// the candidate tier only flags rows for human review and never
	// produces an automatic safe verdict.
	ExtraMatchFields []ExtraMatchField
}

// Classify decides, for every incoming row in input order, whether it is
// new, a certain duplicate, or a duplicate candidate requiring human
// opt-in. Tiers are evaluated in strict priority order and the first match
// wins:
//
//  1. intra-file: an earlier row in this batch has the same fingerprint
//  2. bank reference: an existing transaction carries the same reference
//  3. balance anchor: balance-after, amount and value date all agree
//  4. base key: date+amount+description agree but nothing stronger did
//  5. otherwise the row is new
//
// Every safe tier requires all of its contributing fields to be present on
// the incoming row; absence never matches absence. Malformed dates or
// amounts never fail the run, they simply fail to equal anything and the
// row degrades to a weaker tier or to new.
//
// Only existing transactions for accountID participate in matching.
func Classify(incoming []domain.IncomingRow, existing []domain.ExistingTransaction, accountID string) []domain.ClassifiedRow {
	return ClassifyWithOptions(incoming, existing, accountID, Options{})
}

// ClassifyWithOptions is Classify with tuning options.
func ClassifyWithOptions(incoming []domain.IncomingRow, existing []domain.ExistingTransaction, accountID string, opts Options) []domain.ClassifiedRow {
	idx := indexExisting(existing, accountID)

	classified := make([]domain.ClassifiedRow, 0, len(incoming))
	seenKeys := make(map[string]struct{}, len(incoming))

	for _, row := range incoming {
		verdict := classifyRow(row, idx, seenKeys, opts)
		classified = append(classified, verdict)

		if key := BuildDedupeKey(row); key != "" {
			seenKeys[key] = struct{}{}
		}
	}

	return classified
}

// existingIndex holds the per-tier lookup tables over the fetched existing
// transactions. Slices preserve store order so matched IDs are
// deterministic.
type existingIndex struct {
	byRef       map[string][]domain.ExistingTransaction
	byBalance   map[string][]domain.ExistingTransaction
	byComposite map[string][]domain.ExistingTransaction
}

func indexExisting(existing []domain.ExistingTransaction, accountID string) *existingIndex {
	idx := &existingIndex{
		byRef:       make(map[string][]domain.ExistingTransaction),
		byBalance:   make(map[string][]domain.ExistingTransaction),
		byComposite: make(map[string][]domain.ExistingTransaction),
	}

	for _, txn := range existing {
		if txn.AccountID != accountID {
			continue
		}

		if ref := normalize.BankReference(txn.BankReference); ref != "" {
			idx.byRef[ref] = append(idx.byRef[ref], txn)
		}

		if key := balanceKey(txn.BalanceAfter, txn.Amount, txn.OperationDate, txn.Date); key != "" {
			idx.byBalance[key] = append(idx.byBalance[key], txn)
		}

		for _, key := range rowCompositeKeys(txn.Date, txn.OperationDate, txn.Amount, txn.Description) {
			idx.byComposite[key] = append(idx.byComposite[key], txn)
		}
	}

	return idx
}

// balanceKey builds the balance-anchored fingerprint: running balance,
// amount and value date (falling back to booking date), all in normalized
// form. Returns "" when the balance is absent or the date is unparseable,
// so this tier can never be satisfied by missing data.
func balanceKey(balanceAfter *float64, amount float64, operationDateRaw, dateRaw string) string {
	if balanceAfter == nil {
		return ""
	}

	raw := operationDateRaw
	if raw == "" {
		raw = dateRaw
	}
	date := normalize.DateOnly(raw)
	if date == "" {
		return ""
	}

	parts := []string{
		strconv.FormatInt(normalize.AmountMinorUnits(*balanceAfter), 10),
		strconv.FormatInt(normalize.AmountMinorUnits(amount), 10),
		date,
	}
	return strings.Join(parts, keyDelimiter)
}

func classifyRow(row domain.IncomingRow, idx *existingIndex, seenKeys map[string]struct{}, opts Options) domain.ClassifiedRow {
	// Tier 1: repeated line within the same file. Catches overlapping
	// export windows before ever touching the store.
	if key := BuildDedupeKey(row); key != "" {
		if _, ok := seenKeys[key]; ok {
			return domain.ClassifiedRow{
				Row:    row,
				Status: domain.StatusDuplicateSafe,
				Reason: domain.ReasonIntraFile,
			}
		}
	}

	// Tier 2: bank references are authoritative, no further checks needed.
	if ref := normalize.BankReference(row.BankReference); ref != "" {
		if matches := idx.byRef[ref]; len(matches) > 0 {
			return domain.ClassifiedRow{
				Row:                row,
				Status:             domain.StatusDuplicateSafe,
				Reason:             domain.ReasonBankRef,
				MatchedExistingIDs: transactionIDs(matches),
			}
		}
	}

	// Tier 3: a running balance is a cumulative fingerprint of everything
	// before it; balance+amount+date agreeing is treated as certain. Rows
	// without a balance value skip the tier entirely.
	if row.BalanceAfter != nil {
		if key := balanceKey(row.BalanceAfter, row.Amount, row.OperationDate, row.Date); key != "" {
			if matches := idx.byBalance[key]; len(matches) > 0 {
				return domain.ClassifiedRow{
					Row:                row,
					Status:             domain.StatusDuplicateSafe,
					Reason:             domain.ReasonBalanceAmountDate,
					MatchedExistingIDs: transactionIDs(matches),
				}
			}
		}
	}

	// Tier 4: date+amount+description agree but supporting metadata is
	// missing or disagrees. Ambiguous by construction (two legitimate
	// membership fees of the same amount on the same day look identical),
	// so the verdict is a candidate, never an automatic safe duplicate.
	// Both date interpretations of the row participate, which also keeps
	// re-exported rows with revised value-dating from slipping through as
	// new.
	if matches := baseKeyMatches(row, idx, opts); len(matches) > 0 {
		return domain.ClassifiedRow{
			Row:                row,
			Status:             domain.StatusDuplicateCandidate,
			Reason:             domain.ReasonBaseKey,
			MatchedExistingIDs: transactionIDs(matches),
		}
	}

	return domain.ClassifiedRow{
		Row:    row,
		Status: domain.StatusNew,
		Reason: domain.ReasonNone,
	}
}

func baseKeyMatches(row domain.IncomingRow, idx *existingIndex, opts Options) []domain.ExistingTransaction {
	var matches []domain.ExistingTransaction
	seen := make(map[string]struct{})

	for _, key := range rowCompositeKeys(row.Date, row.OperationDate, row.Amount, row.Description) {
		for _, txn := range idx.byComposite[key] {
			if _, ok := seen[txn.ID]; ok {
				continue
			}
			if !extraFieldsAgree(row, txn, opts.ExtraMatchFields) {
				continue
			}
			seen[txn.ID] = struct{}{}
			matches = append(matches, txn)
		}
	}

	return matches
}

// extraFieldsAgree applies the optional caller-requested field checks to a
// base-key match. Both-absent counts as agreement: this tier only flags
// rows for review.
func extraFieldsAgree(row domain.IncomingRow, txn domain.ExistingTransaction, fields []ExtraMatchField) bool {
	for _, field := range fields {
		switch field {
		case ExtraFieldBankReference:
			if normalize.BankReference(row.BankReference) != normalize.BankReference(txn.BankReference) {
				return false
			}
		case ExtraFieldBalanceAfter:
			if (row.BalanceAfter == nil) != (txn.BalanceAfter == nil) {
				return false
			}
			if row.BalanceAfter != nil &&
				normalize.AmountMinorUnits(*row.BalanceAfter) != normalize.AmountMinorUnits(*txn.BalanceAfter) {
				return false
			}
		}
	}
	return true
}

func transactionIDs(txns []domain.ExistingTransaction) []string {
	ids := make([]string, 0, len(txns))
	for _, txn := range txns {
		ids = append(ids, txn.ID)
	}
	return ids
}
