package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/commons.systems/tesoro/internal/domain"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func cachedTransactions() []domain.ExistingTransaction {
	balance := 1500.00
	return []domain.ExistingTransaction{
		{
			ID:            "txn-1",
			AccountID:     "acc-caixa-0042",
			Date:          "2025-12-30",
			OperationDate: "2026-01-02",
			Description:   "Transferencia recibida",
			Amount:        500.00,
			BankReference: "REF-001",
			BalanceAfter:  &balance,
			Category:      domain.CategoryTransfer,
		},
		{
			ID:          "txn-2",
			AccountID:   "acc-caixa-0042",
			Date:        "2026-01-05",
			Description: "Recibo luz",
			Amount:      -88.40,
			Category:    domain.CategoryUtilities,
		},
		{
			ID:          "txn-3",
			AccountID:   "acc-bbva-7001",
			Date:        "2026-01-05",
			Description: "Otro banco",
			Amount:      -10.00,
		},
	}
}

func TestPutAndGetTransactionsInRange(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, cachedTransactions()))

	got, err := c.GetTransactionsInRange(ctx, "acc-caixa-0042",
		domain.SearchRange{From: "2025-12-01", To: "2026-01-31"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Sorted by date then ID
	assert.Equal(t, "txn-1", got[0].ID)
	assert.Equal(t, "txn-2", got[1].ID)

	assert.Equal(t, "2026-01-02", got[0].OperationDate)
	assert.Equal(t, "REF-001", got[0].BankReference)
	require.NotNil(t, got[0].BalanceAfter)
	assert.InDelta(t, 1500.00, *got[0].BalanceAfter, 0.001)
	assert.Equal(t, domain.CategoryTransfer, got[0].Category)

	assert.Nil(t, got[1].BalanceAfter)
}

func TestGetTransactionsInRange_OperationDateOnlyOverlap(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, cachedTransactions()))

	// Window covers txn-1 only through its value date
	got, err := c.GetTransactionsInRange(ctx, "acc-caixa-0042",
		domain.SearchRange{From: "2026-01-01", To: "2026-01-03"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "txn-1", got[0].ID)
}

func TestGetTransactionsInRange_AccountIsolation(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, cachedTransactions()))

	got, err := c.GetTransactionsInRange(ctx, "acc-bbva-7001",
		domain.SearchRange{From: "2026-01-01", To: "2026-01-31"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "txn-3", got[0].ID)
}

func TestPut_Upsert(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	txns := cachedTransactions()
	require.NoError(t, c.Put(ctx, txns))

	txns[1].Description = "Recibo luz enero"
	require.NoError(t, c.Put(ctx, txns))

	count, err := c.Count(ctx, "acc-caixa-0042")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	got, err := c.GetTransactionsInRange(ctx, "acc-caixa-0042",
		domain.SearchRange{From: "2026-01-05", To: "2026-01-05"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Recibo luz enero", got[0].Description)
}

func TestGetTransactionsInRange_Empty(t *testing.T) {
	c := openTestCache(t)

	got, err := c.GetTransactionsInRange(context.Background(), "acc-caixa-0042",
		domain.SearchRange{From: "2026-01-01", To: "2026-01-31"})
	require.NoError(t, err)
	assert.Empty(t, got)
}
