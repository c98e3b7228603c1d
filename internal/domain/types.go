package domain

import (
	"fmt"
	"time"
)

// ImportStatus is the three-way classification verdict for an incoming
// statement row. The set is closed: every consumer (selection builder,
// review API, report writer) switches over exactly these values.
// Use ValidateImportStatus to ensure validity before use.
type ImportStatus string

const (
	// StatusNew marks a row with no match against the batch or the store.
	StatusNew ImportStatus = "new"
	// StatusDuplicateSafe marks a row the engine is certain duplicates an
	// existing record. Never imported regardless of user input.
	StatusDuplicateSafe ImportStatus = "duplicate_safe"
	// StatusDuplicateCandidate marks an ambiguous row that requires an
	// explicit human opt-in before import.
	StatusDuplicateCandidate ImportStatus = "duplicate_candidate"
)

// MatchReason records which tier produced a duplicate verdict.
// ReasonNone accompanies StatusNew only.
type MatchReason string

const (
	ReasonNone              MatchReason = ""
	ReasonIntraFile         MatchReason = "intra_file"
	ReasonBankRef           MatchReason = "bank_ref"
	ReasonBalanceAmountDate MatchReason = "balance_amount_date"
	ReasonBaseKey           MatchReason = "base_key"
)

// Category represents the nonprofit bookkeeping category enum.
// Use ValidateCategory to ensure validity before use.
type Category string

const (
	CategoryDonation   Category = "donation"
	CategoryMembership Category = "membership"
	CategoryGrant      Category = "grant"
	CategoryPayroll    Category = "payroll"
	CategoryRent       Category = "rent"
	CategoryUtilities  Category = "utilities"
	CategorySupplies   Category = "supplies"
	CategoryEvents     Category = "events"
	CategoryBankFees   Category = "bank_fees"
	CategoryTransfer   Category = "transfer"
	CategoryOther      Category = "other"
)

// AccountType represents the account type enum.
// Use ValidateAccountType to ensure validity before use.
type AccountType string

const (
	AccountTypeChecking AccountType = "checking"
	AccountTypeSavings  AccountType = "savings"
	AccountTypeCredit   AccountType = "credit"
)

var (
	validStatuses = map[ImportStatus]struct{}{
		StatusNew: {}, StatusDuplicateSafe: {}, StatusDuplicateCandidate: {},
	}

	validReasons = map[MatchReason]struct{}{
		ReasonNone: {}, ReasonIntraFile: {}, ReasonBankRef: {},
		ReasonBalanceAmountDate: {}, ReasonBaseKey: {},
	}

	validCategories = map[Category]struct{}{
		CategoryDonation: {}, CategoryMembership: {}, CategoryGrant: {},
		CategoryPayroll: {}, CategoryRent: {}, CategoryUtilities: {},
		CategorySupplies: {}, CategoryEvents: {}, CategoryBankFees: {},
		CategoryTransfer: {}, CategoryOther: {},
	}

	validAccountTypes = map[AccountType]struct{}{
		AccountTypeChecking: {}, AccountTypeSavings: {}, AccountTypeCredit: {},
	}
)

// ValidateImportStatus checks if the status is a known classification value
func ValidateImportStatus(s ImportStatus) bool {
	_, ok := validStatuses[s]
	return ok
}

// ValidateMatchReason checks if the reason is a known tier identifier
func ValidateMatchReason(r MatchReason) bool {
	_, ok := validReasons[r]
	return ok
}

// ValidateCategory checks if category is valid
func ValidateCategory(c Category) bool {
	_, ok := validCategories[c]
	return ok
}

// ValidateAccountType checks if account type is valid
func ValidateAccountType(t AccountType) bool {
	_, ok := validAccountTypes[t]
	return ok
}

// IncomingRow is one freshly parsed statement line. Immutable within an
// import run. Date fields are kept as the raw strings the parser produced;
// all comparison happens on normalized forms, so an unparseable field
// degrades matching strength instead of failing the run.
//
// Sign convention for Amount:
//
//	Positive = inflow (donations, grants, membership fees received)
//	Negative = outflow (payroll, rent, supplier payments)
//
// Parsers must normalize to this convention regardless of source file
// representation.
type IncomingRow struct {
	Date          string   `json:"date"`                    // bank booking date
	OperationDate string   `json:"operationDate,omitempty"` // value date, may disagree with Date
	Description   string   `json:"description"`
	Amount        float64  `json:"amount"`
	BankReference string   `json:"bankReference,omitempty"` // empty = absent
	BalanceAfter  *float64 `json:"balanceAfter,omitempty"`  // nil = absent
	AccountID     string   `json:"accountId"`
	RawPayload    string   `json:"rawPayload,omitempty"` // original line, audit only
}

// ExistingTransaction is a persisted transaction as returned by the store
// query layer. Read-only to the import engine.
type ExistingTransaction struct {
	ID            string   `json:"id"`
	AccountID     string   `json:"accountId"`
	Date          string   `json:"date"` // YYYY-MM-DD
	OperationDate string   `json:"operationDate,omitempty"`
	Description   string   `json:"description"`
	Amount        float64  `json:"amount"`
	BankReference string   `json:"bankReference,omitempty"`
	BalanceAfter  *float64 `json:"balanceAfter,omitempty"`
	Category      Category `json:"category,omitempty"`
}

// ClassifiedRow is the classifier's verdict for a single incoming row.
// Never mutated after creation; the user's opt-in decision lives outside
// the engine (in the selection input and the audit record).
type ClassifiedRow struct {
	Row                IncomingRow  `json:"row"`
	Status             ImportStatus `json:"status"`
	Reason             MatchReason  `json:"reason,omitempty"`
	MatchedExistingIDs []string     `json:"matchedExistingIds,omitempty"`
}

// SearchRange is the inclusive date-only window the store must be queried
// with so that no true duplicate is missed. From is the minimum and To the
// maximum over every parseable Date and OperationDate in the batch; the
// range must never be narrowed to a single date field.
type SearchRange struct {
	From string `json:"from"` // YYYY-MM-DD
	To   string `json:"to"`   // YYYY-MM-DD
}

// Contains reports whether the date-only string falls inside the range.
// Date-only strings in YYYY-MM-DD form compare correctly lexicographically.
func (r SearchRange) Contains(dateOnly string) bool {
	return dateOnly >= r.From && dateOnly <= r.To
}

// SelectionStats summarizes one opt-in selection for audit output.
type SelectionStats struct {
	DuplicateSkippedCount      int `json:"duplicateSkippedCount"`
	CandidateCount             int `json:"candidateCount"`
	CandidateUserImportedCount int `json:"candidateUserImportedCount"`
	CandidateUserSkippedCount  int `json:"candidateUserSkippedCount"`
}

// ImportSelection is the final outcome of an import run: the rows the
// caller should persist plus statistics. Derived, never persisted by the
// engine itself.
type ImportSelection struct {
	RowsToImport []IncomingRow  `json:"rowsToImport"`
	Stats        SelectionStats `json:"stats"`
}

// Account matches the account document stored for the organization
type Account struct {
	ID            string      `json:"id"`
	InstitutionID string      `json:"institutionId"`
	Name          string      `json:"name"`
	Type          AccountType `json:"type"`
}

// Institution matches the institution document stored for the organization
type Institution struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewAccount creates a validated account
func NewAccount(id, institutionID, name string, accountType AccountType) (*Account, error) {
	if id == "" {
		return nil, fmt.Errorf("account ID cannot be empty")
	}
	if institutionID == "" {
		return nil, fmt.Errorf("institution ID cannot be empty")
	}
	if name == "" {
		return nil, fmt.Errorf("account name cannot be empty")
	}
	if !ValidateAccountType(accountType) {
		return nil, fmt.Errorf("invalid account type: %s", accountType)
	}

	return &Account{
		ID:            id,
		InstitutionID: institutionID,
		Name:          name,
		Type:          accountType,
	}, nil
}

// NewInstitution creates a validated institution
func NewInstitution(id, name string) (*Institution, error) {
	if id == "" {
		return nil, fmt.Errorf("institution ID cannot be empty")
	}
	if name == "" {
		return nil, fmt.Errorf("institution name cannot be empty")
	}

	return &Institution{
		ID:   id,
		Name: name,
	}, nil
}

// NewExistingTransaction creates a validated persisted-transaction view.
// Date must already be in YYYY-MM-DD form.
func NewExistingTransaction(id, accountID, date, description string, amount float64) (*ExistingTransaction, error) {
	if id == "" {
		return nil, fmt.Errorf("transaction ID cannot be empty")
	}
	if accountID == "" {
		return nil, fmt.Errorf("account ID cannot be empty")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("invalid date format: %w", err)
	}
	if description == "" {
		return nil, fmt.Errorf("description cannot be empty")
	}

	return &ExistingTransaction{
		ID:          id,
		AccountID:   accountID,
		Date:        date,
		Description: description,
		Amount:      amount,
		Category:    CategoryOther,
	}, nil
}
