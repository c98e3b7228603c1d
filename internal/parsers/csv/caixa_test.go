package csv

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/commons.systems/tesoro/internal/parser"
)

const sampleExport = `Fecha;Fecha valor;Concepto;Importe;Saldo;Referencia
30/12/2025;02/01/2026;Transferencia recibida;500,00;1.500,00;REF-001
05/01/2026;05/01/2026;Recibo luz;-88,40;1.411,60;
07/01/2026;07/01/2026;Cuota socio enero;-25,00;1.386,60;REF-003
`

func testMeta(t *testing.T) *parser.Metadata {
	t.Helper()
	meta, err := parser.NewMetadata("/statements/caixabank/0042/export.csv", time.Now())
	require.NoError(t, err)
	meta.SetInstitution("CaixaBank")
	meta.SetAccountNumber("0042")
	return meta
}

func TestCanParse(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name   string
		path   string
		header string
		want   bool
	}{
		{
			name:   "caixa export header",
			path:   "export.csv",
			header: "Fecha;Fecha valor;Concepto;Importe;Saldo;Referencia\n30/12/2025;...",
			want:   true,
		},
		{
			name:   "wrong extension",
			path:   "export.txt",
			header: "Fecha;Fecha valor;Concepto;Importe;Saldo;Referencia",
			want:   false,
		},
		{
			name:   "comma separated file",
			path:   "export.csv",
			header: "Date,Description,Amount",
			want:   false,
		},
		{
			name:   "empty header",
			path:   "export.csv",
			header: "",
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.CanParse(tt.path, []byte(tt.header)))
		})
	}
}

func TestParse(t *testing.T) {
	p := NewParser()

	stmt, err := p.Parse(context.Background(), strings.NewReader(sampleExport), testMeta(t))
	require.NoError(t, err)
	require.NotNil(t, stmt)

	assert.Equal(t, "CaixaBank", stmt.Account.InstitutionID())
	assert.Equal(t, "0042", stmt.Account.AccountID())
	assert.Equal(t, "checking", stmt.Account.AccountType())

	require.Len(t, stmt.Transactions, 3)

	first := stmt.Transactions[0]
	assert.Equal(t, "2025-12-30", first.Date())
	assert.Equal(t, "2026-01-02", first.OperationDate())
	assert.Equal(t, "Transferencia recibida", first.Description())
	assert.InDelta(t, 500.00, first.Amount(), 0.001)
	assert.Equal(t, "REF-001", first.BankReference())
	require.NotNil(t, first.BalanceAfter())
	assert.InDelta(t, 1500.00, *first.BalanceAfter(), 0.001)
	assert.NotEmpty(t, first.RawPayload())

	second := stmt.Transactions[1]
	assert.InDelta(t, -88.40, second.Amount(), 0.001)
	assert.Empty(t, second.BankReference())

	// Period spans the booking dates
	assert.Equal(t, "2025-12-30", stmt.Period.Start().Format("2006-01-02"))
	assert.Equal(t, "2026-01-07", stmt.Period.End().Format("2006-01-02"))
}

func TestParse_EmptyFile(t *testing.T) {
	p := NewParser()

	_, err := p.Parse(context.Background(), strings.NewReader("Fecha;Fecha valor;Concepto;Importe;Saldo\n"), testMeta(t))
	assert.Error(t, err)
}

func TestParse_BadAmount(t *testing.T) {
	p := NewParser()
	content := "Fecha;Fecha valor;Concepto;Importe;Saldo\n05/01/2026;05/01/2026;Recibo;abc;100,00\n"

	_, err := p.Parse(context.Background(), strings.NewReader(content), testMeta(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid amount")
}

func TestParse_BadBookingDate(t *testing.T) {
	p := NewParser()
	content := "Fecha;Fecha valor;Concepto;Importe;Saldo\n2026-01-05;05/01/2026;Recibo;-10,00;100,00\n"

	_, err := p.Parse(context.Background(), strings.NewReader(content), testMeta(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid booking date")
}

func TestParse_CancelledContext(t *testing.T) {
	p := NewParser()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Parse(ctx, strings.NewReader(sampleExport), testMeta(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParse_MissingDirectoryMetadata(t *testing.T) {
	p := NewParser()
	meta, err := parser.NewMetadata("/tmp/export.csv", time.Now())
	require.NoError(t, err)

	stmt, err := p.Parse(context.Background(), strings.NewReader(sampleExport), meta)
	require.NoError(t, err)
	assert.Equal(t, "UNKNOWN", stmt.Account.InstitutionID())
	assert.Equal(t, "UNKNOWN", stmt.Account.AccountID())
}
