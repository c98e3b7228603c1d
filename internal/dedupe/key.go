// Package dedupe implements the statement-import deduplication engine:
// fingerprint keys, the store search range, tiered duplicate classification
// and the opt-in import selection. The engine is pure and stateless; the
// persistent store is a collaborator queried once per run, before
// classification begins.
package dedupe

import (
	"strconv"
	"strings"

	"github.com/rumor-ml/commons.systems/tesoro/internal/domain"
	"github.com/rumor-ml/commons.systems/tesoro/internal/normalize"
)

// keyDelimiter joins composite key parts. Normalization collapses all
// whitespace and never emits a pipe, so the delimiter cannot be forged by
// field content.
const keyDelimiter = "|"

// refKeyPrefix marks bank-reference keys so they can never collide with a
// composite key.
const refKeyPrefix = "ref:"

// BuildDedupeKey derives the dedupe fingerprint for a row.
//
// A bank-assigned reference is the strongest signal and wins outright when
// present: the key is "ref:" plus the normalized reference. Otherwise the
// key is date|amountMinorUnits|DESCRIPTION built from the value date
// (falling back to the booking date), so rows with identical
// date+amount+description always produce identical keys regardless of
// which tier reached this branch.
//
// Returns "" when the row has neither a reference nor a parseable date;
// an empty key matches nothing.
func BuildDedupeKey(row domain.IncomingRow) string {
	if ref := normalize.BankReference(row.BankReference); ref != "" {
		return refKeyPrefix + ref
	}

	date := row.OperationDate
	if date == "" {
		date = row.Date
	}
	return compositeKey(normalize.DateOnly(date), row.Amount, row.Description)
}

// compositeKey builds the date|amount|description fingerprint from an
// already-normalized date-only string. An unparseable date yields "":
// malformed fields fail to equal anything rather than matching other
// malformed fields.
func compositeKey(dateOnly string, amount float64, description string) string {
	if dateOnly == "" {
		return ""
	}

	parts := []string{
		dateOnly,
		strconv.FormatInt(normalize.AmountMinorUnits(amount), 10),
		normalize.Description(description),
	}
	return strings.Join(parts, keyDelimiter)
}

// rowCompositeKeys returns the composite fingerprints of a row under every
// date interpretation it admits. A row whose booking date and value date
// disagree could correspond to a persisted record filed under either, so
// both variants participate in base-key matching.
func rowCompositeKeys(dateRaw, operationDateRaw string, amount float64, description string) []string {
	keys := make([]string, 0, 2)
	seen := ""

	for _, raw := range []string{dateRaw, operationDateRaw} {
		d := normalize.DateOnly(raw)
		if d == "" || d == seen {
			continue
		}
		if key := compositeKey(d, amount, description); key != "" {
			keys = append(keys, key)
			seen = d
		}
	}

	return keys
}
