// Package cache provides a local SQLite mirror of persisted transactions
// so imports can be previewed offline and re-runs avoid repeated remote
// range queries.
package cache

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/rumor-ml/commons.systems/tesoro/internal/domain"
)

// Cache is a SQLite-backed store of existing transactions keyed the same
// way as the remote collection. Safe for concurrent use; database/sql
// serializes access to the single connection pool.
type Cache struct {
	db *sql.DB
}

// Open opens (or creates) a cache database at path. Use ":memory:" for an
// ephemeral cache.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	c := &Cache{db: db}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	return c, nil
}

func (c *Cache) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		date TEXT NOT NULL,
		operation_date TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL,
		amount REAL NOT NULL,
		bank_reference TEXT NOT NULL DEFAULT '',
		balance_after REAL,
		category TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_txn_account_date ON transactions(account_id, date);
	CREATE INDEX IF NOT EXISTS idx_txn_account_opdate ON transactions(account_id, operation_date);
	`

	_, err := c.db.Exec(schema)
	return err
}

// Close closes the underlying database
func (c *Cache) Close() error {
	return c.db.Close()
}

// Put upserts a batch of transactions into the cache
func (c *Cache) Put(ctx context.Context, txns []domain.ExistingTransaction) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin cache write: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions
			(id, account_id, date, operation_date, description, amount, bank_reference, balance_after, category)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			account_id = excluded.account_id,
			date = excluded.date,
			operation_date = excluded.operation_date,
			description = excluded.description,
			amount = excluded.amount,
			bank_reference = excluded.bank_reference,
			balance_after = excluded.balance_after,
			category = excluded.category`)
	if err != nil {
		return fmt.Errorf("failed to prepare cache write: %w", err)
	}
	defer stmt.Close()

	for _, txn := range txns {
		var balance sql.NullFloat64
		if txn.BalanceAfter != nil {
			balance = sql.NullFloat64{Float64: *txn.BalanceAfter, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			txn.ID, txn.AccountID, txn.Date, txn.OperationDate,
			txn.Description, txn.Amount, txn.BankReference, balance, string(txn.Category),
		); err != nil {
			return fmt.Errorf("failed to cache transaction %s: %w", txn.ID, err)
		}
	}

	return tx.Commit()
}

// GetTransactionsInRange returns the cached transactions for an account
// whose booking date OR value date falls inside the inclusive range,
// sorted by date then ID. Same contract as the remote store query.
func (c *Cache) GetTransactionsInRange(ctx context.Context, accountID string, rng domain.SearchRange) ([]domain.ExistingTransaction, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, account_id, date, operation_date, description, amount, bank_reference, balance_after, category
		FROM transactions
		WHERE account_id = ?
		  AND (date BETWEEN ? AND ?
		       OR (operation_date != '' AND operation_date BETWEEN ? AND ?))
		ORDER BY date, id`,
		accountID, rng.From, rng.To, rng.From, rng.To)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}
	defer rows.Close()

	var results []domain.ExistingTransaction
	for rows.Next() {
		var (
			txn      domain.ExistingTransaction
			balance  sql.NullFloat64
			category string
		)
		if err := rows.Scan(&txn.ID, &txn.AccountID, &txn.Date, &txn.OperationDate,
			&txn.Description, &txn.Amount, &txn.BankReference, &balance, &category); err != nil {
			return nil, fmt.Errorf("failed to scan cached transaction: %w", err)
		}
		if balance.Valid {
			value := balance.Float64
			txn.BalanceAfter = &value
		}
		txn.Category = domain.Category(category)
		results = append(results, txn)
	}

	return results, rows.Err()
}

// Count returns the number of cached transactions for an account
func (c *Cache) Count(ctx context.Context, accountID string) (int, error) {
	var count int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE account_id = ?`, accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count cached transactions: %w", err)
	}
	return count, nil
}
