package transform

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SlugifyInstitution converts an institution name to a URL-safe slug.
// Examples: "CaixaBank" → "caixabank", "Banco Sabadell" → "banco-sabadell",
// accented names like "Crédito Agrícola" normalize to plain ASCII.
func SlugifyInstitution(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("institution name cannot be empty")
	}

	// Normalize unicode (e.g., accented characters)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	normalized, _, err := transform.String(t, name)
	if err != nil {
		return "", fmt.Errorf("failed to normalize institution name %q: %w", name, err)
	}

	slug := strings.ToLower(normalized)

	reg := regexp.MustCompile(`[^a-z0-9]+`)
	slug = reg.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	if slug == "" {
		return "", fmt.Errorf("institution name %q contains no alphanumeric characters", name)
	}

	return slug, nil
}

// ExtractLast4 returns the last 4 characters of the account number.
// If the account number has fewer than 4 characters, returns the full number.
func ExtractLast4(accountNumber string) string {
	if len(accountNumber) <= 4 {
		return accountNumber
	}
	return accountNumber[len(accountNumber)-4:]
}

// GenerateAccountID creates a deterministic account ID.
// Format: "acc-{institutionSlug}-{last4}"
// Example: GenerateAccountID("caixabank", "ES7621000042") → "acc-caixa-0042"
func GenerateAccountID(institutionSlug, accountNumber string) string {
	return fmt.Sprintf("acc-%s-%s", abbreviateSlug(institutionSlug), ExtractLast4(accountNumber))
}

// abbreviateSlug creates shorter versions of common institution names
func abbreviateSlug(slug string) string {
	abbreviations := map[string]string{
		"caixabank":       "caixa",
		"la-caixa":        "caixa",
		"banco-santander": "santander",
		"banco-sabadell":  "sabadell",
	}

	if abbrev, ok := abbreviations[slug]; ok {
		return abbrev
	}

	return slug
}

// GenerateSessionID creates a unique import session identifier.
// Sessions are audit records, not deterministic derivations, so a random
// UUID is the right shape.
func GenerateSessionID() string {
	return fmt.Sprintf("imp-%s", uuid.NewString())
}
