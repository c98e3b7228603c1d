// Package rules provides a YAML-based rules engine for transaction categorization.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rumor-ml/commons.systems/tesoro/internal/domain"
)

//go:embed rules.yaml
var embeddedRules []byte

// MatchType defines how patterns are matched against transaction descriptions
type MatchType string

const (
	// MatchTypeExact requires the pattern to match the entire description exactly
	MatchTypeExact MatchType = "exact"
	// MatchTypeContains requires the pattern to be a substring of the description
	MatchTypeContains MatchType = "contains"
)

// Rule represents a single categorization rule.
//
// Rules should be created via YAML loading (NewEngine, LoadEmbedded,
// LoadFromFile) or the NewRule constructor. Both validate all invariants:
//   - Priority in range [0, 999]
//   - Pattern must not be empty after trimming
//   - MatchType must be "exact" or "contains"
//   - Category must be a valid domain.Category
//
// Direct struct construction bypasses validation. Fields are exported for
// YAML unmarshaling and testing.
type Rule struct {
	Name      string    `yaml:"name"`
	Pattern   string    `yaml:"pattern"`
	MatchType MatchType `yaml:"match_type"`
	Priority  int       `yaml:"priority"`
	Category  string    `yaml:"category"`
}

// NewRule creates a validated rule
func NewRule(name, pattern string, matchType MatchType, priority int, category string) (*Rule, error) {
	rule := Rule{
		Name:      name,
		Pattern:   pattern,
		MatchType: matchType,
		Priority:  priority,
		Category:  category,
	}
	if err := validateRule(rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

func validateRule(rule Rule) error {
	if !domain.ValidateCategory(domain.Category(rule.Category)) {
		return fmt.Errorf("invalid category %q", rule.Category)
	}
	if rule.Priority < 0 || rule.Priority > 999 {
		return fmt.Errorf("priority must be in [0,999], got %d", rule.Priority)
	}
	if rule.MatchType != MatchTypeExact && rule.MatchType != MatchTypeContains {
		return fmt.Errorf("invalid match_type %q (must be 'exact' or 'contains')", rule.MatchType)
	}
	if strings.TrimSpace(rule.Pattern) == "" {
		return fmt.Errorf("pattern cannot be empty")
	}
	return nil
}

// RuleSet represents the top-level YAML structure
type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

// Engine performs rule matching on transaction descriptions
type Engine struct {
	rules []Rule // Sorted by priority (highest first)
}

// MatchResult contains the result of applying a rule
type MatchResult struct {
	Category domain.Category
	RuleName string // For debugging
}

// NewEngine creates a rules engine from YAML data
func NewEngine(rulesData []byte) (*Engine, error) {
	var ruleSet RuleSet
	if err := yaml.Unmarshal(rulesData, &ruleSet); err != nil {
		return nil, fmt.Errorf("failed to parse YAML rules (check syntax, indentation, and field names): %w", err)
	}

	for i, rule := range ruleSet.Rules {
		if err := validateRule(rule); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, rule.Name, err)
		}
	}

	// Sort rules by priority, highest first. SliceStable preserves YAML file
	// order for rules with equal priority, which keeps matching deterministic.
	sortedRules := make([]Rule, len(ruleSet.Rules))
	copy(sortedRules, ruleSet.Rules)
	sort.SliceStable(sortedRules, func(i, j int) bool {
		return sortedRules[i].Priority > sortedRules[j].Priority
	})

	return &Engine{
		rules: sortedRules,
	}, nil
}

// LoadEmbedded loads the embedded rules.yaml file
func LoadEmbedded() (*Engine, error) {
	engine, err := NewEngine(embeddedRules)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded rules: %w", err)
	}
	return engine, nil
}

// LoadFromFile loads rules from a filesystem path
func LoadFromFile(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	engine, err := NewEngine(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules from %q: %w", path, err)
	}
	return engine, nil
}

// Match applies rules to a transaction description and returns the first
// match. Rules are evaluated in priority order, highest first; equal
// priorities keep their YAML file order. Returns (nil, false) if no rule
// matches.
func (e *Engine) Match(description string) (*MatchResult, bool) {
	normalizedDesc := strings.ToLower(strings.TrimSpace(description))

	for _, rule := range e.rules {
		normalizedPattern := strings.ToLower(strings.TrimSpace(rule.Pattern))

		matched := false
		switch rule.MatchType {
		case MatchTypeExact:
			matched = normalizedDesc == normalizedPattern
		case MatchTypeContains:
			matched = strings.Contains(normalizedDesc, normalizedPattern)
		}

		if matched {
			return &MatchResult{
				Category: domain.Category(rule.Category),
				RuleName: rule.Name,
			}, true
		}
	}

	return nil, false
}

// Categorize returns the category for a description, falling back to
// CategoryOther when no rule matches.
func (e *Engine) Categorize(description string) domain.Category {
	if result, ok := e.Match(description); ok {
		return result.Category
	}
	return domain.CategoryOther
}

// GetRules returns a copy of the rules in priority order for inspection.
// Rule fields are all value types, so callers cannot mutate engine state
// through the copy.
func (e *Engine) GetRules() []Rule {
	result := make([]Rule, len(e.rules))
	copy(result, e.rules)
	return result
}
