package parser

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Parser is the strategy interface for all statement format parsers
type Parser interface {
	// Name returns parser identifier (e.g., "ofx", "csv-caixa")
	Name() string

	// CanParse checks if parser can handle this file
	// Returns true if this parser should be used for the file
	CanParse(path string, header []byte) bool

	// Parse extracts raw data from file
	Parse(ctx context.Context, r io.Reader, meta *Metadata) (*RawStatement, error)
}

// RawStatement represents parsed data before normalization
type RawStatement struct {
	Account      RawAccount
	Period       Period
	Transactions []RawTransaction
}

// RawAccount represents account information from the file
type RawAccount struct {
	institutionID   string // e.g., "CAIXA", "BBVA"
	institutionName string // e.g., "CaixaBank"
	accountID       string // From file or directory
	accountType     string // "checking", "savings", "credit"
}

// InstitutionID returns the institution identifier
func (r *RawAccount) InstitutionID() string { return r.institutionID }

// InstitutionName returns the institution name
func (r *RawAccount) InstitutionName() string { return r.institutionName }

// AccountID returns the account identifier
func (r *RawAccount) AccountID() string { return r.accountID }

// AccountType returns the account type
func (r *RawAccount) AccountType() string { return r.accountType }

// SetInstitutionName updates the institution name (populated from directory
// metadata after construction when the file itself doesn't carry one)
func (r *RawAccount) SetInstitutionName(name string) {
	r.institutionName = name
}

// NewRawAccount creates a validated raw account.
// InstitutionName is optional; the scanner fills it in from the directory
// layout when the statement file doesn't carry one.
func NewRawAccount(institutionID, institutionName, accountID, accountType string) (*RawAccount, error) {
	if institutionID == "" {
		return nil, fmt.Errorf("institution ID cannot be empty")
	}
	if accountID == "" {
		return nil, fmt.Errorf("account ID cannot be empty")
	}

	return &RawAccount{
		institutionID:   institutionID,
		institutionName: institutionName,
		accountID:       accountID,
		accountType:     accountType,
	}, nil
}

// Period represents the statement period
type Period struct {
	start time.Time
	end   time.Time
}

// Start returns the period start time
func (p *Period) Start() time.Time { return p.start }

// End returns the period end time
func (p *Period) End() time.Time { return p.end }

// Contains returns true if the given time falls within the period (inclusive)
func (p *Period) Contains(t time.Time) bool {
	return !t.Before(p.start) && !t.After(p.end)
}

// NewPeriod creates a validated period
func NewPeriod(start, end time.Time) (*Period, error) {
	if start.IsZero() {
		return nil, fmt.Errorf("start time cannot be zero")
	}
	if end.IsZero() {
		return nil, fmt.Errorf("end time cannot be zero")
	}
	if end.Before(start) {
		return nil, fmt.Errorf("start must not be after end")
	}

	return &Period{
		start: start,
		end:   end,
	}, nil
}

// RawTransaction represents one statement line before normalization.
// Date fields stay textual: the import engine normalizes them itself and
// treats unparseable values as absent rather than failing the parse.
type RawTransaction struct {
	date          string // bank booking date as printed in the file
	operationDate string // value date, may disagree with date
	description   string
	amount        float64  // Positive=inflow, Negative=outflow
	bankReference string   // FITID or bank line reference, "" when absent
	balanceAfter  *float64 // running balance after the line, nil when absent
	rawPayload    string   // original line, preserved for audit only
}

// Date returns the booking date as printed in the file
func (r *RawTransaction) Date() string { return r.date }

// OperationDate returns the value date, "" when the file has none
func (r *RawTransaction) OperationDate() string { return r.operationDate }

// Description returns the transaction description
func (r *RawTransaction) Description() string { return r.description }

// Amount returns the transaction amount
func (r *RawTransaction) Amount() float64 { return r.amount }

// BankReference returns the bank-assigned line reference, "" when absent
func (r *RawTransaction) BankReference() string { return r.bankReference }

// BalanceAfter returns the running balance after the line, nil when absent
func (r *RawTransaction) BalanceAfter() *float64 { return r.balanceAfter }

// RawPayload returns the original statement line for audit
func (r *RawTransaction) RawPayload() string { return r.rawPayload }

// SetOperationDate sets the optional value date
func (r *RawTransaction) SetOperationDate(date string) {
	r.operationDate = date
}

// SetBankReference sets the optional bank-assigned reference
func (r *RawTransaction) SetBankReference(ref string) {
	r.bankReference = ref
}

// SetBalanceAfter sets the optional running balance
func (r *RawTransaction) SetBalanceAfter(balance float64) {
	r.balanceAfter = &balance
}

// SetRawPayload preserves the original line for audit
func (r *RawTransaction) SetRawPayload(payload string) {
	r.rawPayload = payload
}

// NewRawTransaction creates a validated raw transaction
func NewRawTransaction(date, description string, amount float64) (*RawTransaction, error) {
	if date == "" {
		return nil, fmt.Errorf("transaction date cannot be empty")
	}
	if description == "" {
		return nil, fmt.Errorf("description cannot be empty")
	}

	return &RawTransaction{
		date:        date,
		description: description,
		amount:      amount,
	}, nil
}
