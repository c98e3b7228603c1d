package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/commons.systems/tesoro/internal/domain"
	"github.com/rumor-ml/commons.systems/tesoro/internal/parser"
)

func rawStatement(t *testing.T) *parser.RawStatement {
	t.Helper()

	account, err := parser.NewRawAccount("CAIXA", "CaixaBank", "ES7621000042", "checking")
	require.NoError(t, err)

	txn, err := parser.NewRawTransaction("2026-01-05", "Recibo luz", -88.40)
	require.NoError(t, err)
	txn.SetOperationDate("2026-01-05")
	txn.SetBankReference("REF-002")
	txn.SetBalanceAfter(1411.60)
	txn.SetRawPayload("05/01/2026;05/01/2026;Recibo luz;-88,40;1.411,60;REF-002")

	return &parser.RawStatement{
		Account:      *account,
		Transactions: []parser.RawTransaction{*txn},
	}
}

func TestBuildImportBatch(t *testing.T) {
	batch, err := BuildImportBatch(rawStatement(t))
	require.NoError(t, err)

	assert.Equal(t, "caixabank", batch.Institution.ID)
	assert.Equal(t, "CaixaBank", batch.Institution.Name)

	assert.Equal(t, "acc-caixa-0042", batch.Account.ID)
	assert.Equal(t, "caixabank", batch.Account.InstitutionID)
	assert.Equal(t, domain.AccountTypeChecking, batch.Account.Type)

	require.Len(t, batch.Rows, 1)
	row := batch.Rows[0]
	assert.Equal(t, "2026-01-05", row.Date)
	assert.Equal(t, "Recibo luz", row.Description)
	assert.InDelta(t, -88.40, row.Amount, 0.001)
	assert.Equal(t, "REF-002", row.BankReference)
	require.NotNil(t, row.BalanceAfter)
	assert.InDelta(t, 1411.60, *row.BalanceAfter, 0.001)
	assert.Equal(t, "acc-caixa-0042", row.AccountID)
	assert.NotEmpty(t, row.RawPayload)
}

func TestBuildImportBatch_NilStatement(t *testing.T) {
	_, err := BuildImportBatch(nil)
	assert.Error(t, err)
}

func TestBuildImportBatch_FallsBackToInstitutionID(t *testing.T) {
	stmt := rawStatement(t)
	account, err := parser.NewRawAccount("BBVA", "", "7001", "savings")
	require.NoError(t, err)
	stmt.Account = *account

	batch, err := BuildImportBatch(stmt)
	require.NoError(t, err)
	assert.Equal(t, "bbva", batch.Institution.ID)
	assert.Equal(t, "BBVA", batch.Institution.Name)
	assert.Equal(t, domain.AccountTypeSavings, batch.Account.Type)
}

func TestBuildImportBatch_UnknownAccountType(t *testing.T) {
	stmt := rawStatement(t)
	account, err := parser.NewRawAccount("CAIXA", "CaixaBank", "0042", "brokerage")
	require.NoError(t, err)
	stmt.Account = *account

	_, err = BuildImportBatch(stmt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown account type")
}

func TestMapAccountType_SpanishAliases(t *testing.T) {
	got, err := mapAccountType("Cuenta Corriente")
	require.NoError(t, err)
	assert.Equal(t, domain.AccountTypeChecking, got)

	got, err = mapAccountType("tarjeta")
	require.NoError(t, err)
	assert.Equal(t, domain.AccountTypeCredit, got)
}
