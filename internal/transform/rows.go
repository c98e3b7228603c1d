package transform

import (
	"fmt"
	"strings"

	"github.com/rumor-ml/commons.systems/tesoro/internal/domain"
	"github.com/rumor-ml/commons.systems/tesoro/internal/parser"
)

// ImportBatch is a parsed statement converted to domain terms: the
// institution and account documents it belongs to plus the incoming rows
// ready for classification.
type ImportBatch struct {
	Institution domain.Institution
	Account     domain.Account
	Rows        []domain.IncomingRow
}

// BuildImportBatch converts a RawStatement into an ImportBatch. The
// account ID is derived deterministically from the institution slug and
// account number, so re-importing the same file targets the same account.
func BuildImportBatch(raw *parser.RawStatement) (*ImportBatch, error) {
	if raw == nil {
		return nil, fmt.Errorf("raw statement cannot be nil")
	}

	institution, err := buildInstitution(&raw.Account)
	if err != nil {
		return nil, fmt.Errorf("failed to build institution: %w", err)
	}

	account, err := buildAccount(&raw.Account, institution.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to build account: %w", err)
	}

	rows := make([]domain.IncomingRow, 0, len(raw.Transactions))
	for i, txn := range raw.Transactions {
		row, err := buildRow(&txn, account.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to build row %d: %w", i, err)
		}
		rows = append(rows, *row)
	}

	return &ImportBatch{
		Institution: *institution,
		Account:     *account,
		Rows:        rows,
	}, nil
}

// buildInstitution creates a domain Institution from RawAccount
func buildInstitution(raw *parser.RawAccount) (*domain.Institution, error) {
	name := raw.InstitutionName()
	if name == "" {
		name = raw.InstitutionID()
	}
	if name == "" {
		return nil, fmt.Errorf("institution name cannot be empty")
	}

	slug, err := SlugifyInstitution(name)
	if err != nil {
		return nil, err
	}

	return domain.NewInstitution(slug, name)
}

// buildAccount creates a domain Account from RawAccount
func buildAccount(raw *parser.RawAccount, institutionID string) (*domain.Account, error) {
	accountNumber := raw.AccountID()
	if accountNumber == "" {
		return nil, fmt.Errorf("account number cannot be empty")
	}

	accountID := GenerateAccountID(institutionID, accountNumber)

	accountType, err := mapAccountType(raw.AccountType())
	if err != nil {
		return nil, err
	}

	accountName := fmt.Sprintf("Account %s", ExtractLast4(accountNumber))

	return domain.NewAccount(accountID, institutionID, accountName, accountType)
}

// buildRow creates an IncomingRow from a RawTransaction. Date fields stay
// textual, the import engine normalizes them itself.
func buildRow(raw *parser.RawTransaction, accountID string) (*domain.IncomingRow, error) {
	if raw.Date() == "" {
		return nil, fmt.Errorf("transaction date cannot be empty")
	}
	if raw.Description() == "" {
		return nil, fmt.Errorf("transaction description cannot be empty")
	}

	return &domain.IncomingRow{
		Date:          raw.Date(),
		OperationDate: raw.OperationDate(),
		Description:   raw.Description(),
		Amount:        raw.Amount(),
		BankReference: raw.BankReference(),
		BalanceAfter:  raw.BalanceAfter(),
		AccountID:     accountID,
		RawPayload:    raw.RawPayload(),
	}, nil
}

// mapAccountType converts raw account type string to domain AccountType
func mapAccountType(rawType string) (domain.AccountType, error) {
	normalized := strings.ToLower(strings.TrimSpace(rawType))

	switch normalized {
	case "checking", "checking account", "cuenta corriente":
		return domain.AccountTypeChecking, nil
	case "savings", "savings account", "cuenta de ahorro":
		return domain.AccountTypeSavings, nil
	case "credit", "credit card", "creditcard", "tarjeta":
		return domain.AccountTypeCredit, nil
	default:
		return "", fmt.Errorf("unknown account type: %s", rawType)
	}
}
