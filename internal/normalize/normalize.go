// Package normalize provides the pure comparison-form functions the import
// engine matches on. All functions are total: malformed input yields the
// zero/absent form, never an error, so data-quality problems degrade
// matching strength instead of aborting an import run.
package normalize

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// dateOnlyPattern matches a leading YYYY-MM-DD (or YYYY/MM/DD) component.
// Anything after it (time-of-day marker, zone suffix) is ignored.
var dateOnlyPattern = regexp.MustCompile(`^(\d{4})[-/](\d{2})[-/](\d{2})`)

// Description collapses every run of Unicode whitespace (including
// non-breaking space) to a single ASCII space, trims, and upper-cases.
// Two descriptions that differ only in whitespace run-length or case
// normalize identically.
func Description(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	inSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inSpace = false
		b.WriteRune(r)
	}

	return strings.ToUpper(b.String())
}

// DateOnly extracts the YYYY-MM-DD component from a date-only string or a
// full timestamp. Returns "" when the value does not carry a
// 4-digit-year/2-digit-month/2-digit-day prefix after trimming.
//
// Parsing is deliberately textual: the source data is date-only, and
// routing it through a timezone-aware parser risks off-by-one-day shifts
// that would corrupt the search-range invariant.
func DateOnly(value string) string {
	m := dateOnlyPattern.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return ""
	}

	year, month, day := m[1], m[2], m[3]
	if !plausibleDate(month, day) {
		return ""
	}

	return year + "-" + month + "-" + day
}

// plausibleDate rejects month/day components no calendar produces.
// Month/day are two-digit strings validated by the regexp, so Atoi-free
// digit arithmetic is safe here.
func plausibleDate(month, day string) bool {
	m := int(month[0]-'0')*10 + int(month[1]-'0')
	d := int(day[0]-'0')*10 + int(day[1]-'0')
	return m >= 1 && m <= 12 && d >= 1 && d <= 31
}

// AmountMinorUnits converts a currency amount to integer minor units
// (cents), rounding to the nearest integer. Every amount equality check in
// the classifier operates on this form, never on the raw float, so binary
// representation drift (0.1+0.2 style) cannot split or merge matches.
func AmountMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// BankReference trims and upper-cases a bank-assigned reference.
// Empty or whitespace-only input yields "" meaning absent; an absent
// reference never matches another absent reference.
func BankReference(ref string) string {
	return strings.ToUpper(strings.TrimSpace(ref))
}
