package firestore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/rumor-ml/commons.systems/tesoro/internal/domain"
)

// Client wraps the Firestore client with organization-scoped operations
type Client struct {
	Firestore *firestore.Client
	Auth      *auth.Client
	projectID string
}

// NewClient creates a new Firestore client
func NewClient(ctx context.Context, projectID string) (*Client, error) {
	conf := &firebase.Config{ProjectID: projectID}

	// Application Default Credentials; an explicit credentials file can be
	// added through opts when running outside GCP.
	var opts []option.ClientOption

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	firestoreClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		firestoreClient.Close()
		return nil, fmt.Errorf("failed to create Auth client: %w", err)
	}

	return &Client{
		Firestore: firestoreClient,
		Auth:      authClient,
		projectID: projectID,
	}, nil
}

// Close closes the Firestore client
func (c *Client) Close() error {
	return c.Firestore.Close()
}

// Transaction represents a persisted bank movement in Firestore
type Transaction struct {
	ID            string    `firestore:"id"`
	OrgID         string    `firestore:"orgId"`
	AccountID     string    `firestore:"accountId"`
	Date          string    `firestore:"date"` // YYYY-MM-DD
	OperationDate string    `firestore:"operationDate,omitempty"`
	Description   string    `firestore:"description"`
	Amount        float64   `firestore:"amount"`
	BankReference string    `firestore:"bankReference,omitempty"`
	BalanceAfter  *float64  `firestore:"balanceAfter,omitempty"`
	Category      string    `firestore:"category"`
	RawPayload    string    `firestore:"rawPayload,omitempty"`
	SessionID     string    `firestore:"sessionId,omitempty"`
	CreatedAt     time.Time `firestore:"createdAt"`
}

// Validate checks if the Transaction has valid data
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("transaction ID is required")
	}
	if t.OrgID == "" {
		return fmt.Errorf("org ID is required")
	}
	if t.AccountID == "" {
		return fmt.Errorf("account ID is required")
	}
	if _, err := time.Parse("2006-01-02", t.Date); err != nil {
		return fmt.Errorf("invalid date format (expected YYYY-MM-DD): %w", err)
	}
	if t.Category != "" && !domain.ValidateCategory(domain.Category(t.Category)) {
		return fmt.Errorf("invalid category: %s", t.Category)
	}
	return nil
}

// ToDomain converts the stored document to the read-only view the import
// engine matches against.
func (t *Transaction) ToDomain() domain.ExistingTransaction {
	return domain.ExistingTransaction{
		ID:            t.ID,
		AccountID:     t.AccountID,
		Date:          t.Date,
		OperationDate: t.OperationDate,
		Description:   t.Description,
		Amount:        t.Amount,
		BankReference: t.BankReference,
		BalanceAfter:  t.BalanceAfter,
		Category:      domain.Category(t.Category),
	}
}

// Account represents a bank account document in Firestore
type Account struct {
	ID            string    `firestore:"id"`
	OrgID         string    `firestore:"orgId"`
	InstitutionID string    `firestore:"institutionId"`
	Name          string    `firestore:"name"`
	Type          string    `firestore:"type"`
	CreatedAt     time.Time `firestore:"createdAt"`
}

// Institution represents a financial institution document in Firestore
type Institution struct {
	ID        string    `firestore:"id"`
	OrgID     string    `firestore:"orgId"`
	Name      string    `firestore:"name"`
	CreatedAt time.Time `firestore:"createdAt"`
}

// GetTransactionsInRange retrieves the persisted transactions for an
// account whose booking date OR value date falls inside the inclusive
// range. Firestore cannot express the disjunction in one query, so two
// range queries run and their results merge by document ID. The merged
// set is returned sorted by date then ID so callers see a deterministic
// order.
func (c *Client) GetTransactionsInRange(ctx context.Context, orgID, accountID string, rng domain.SearchRange) ([]domain.ExistingTransaction, error) {
	byDate := c.Firestore.Collection("tesoro-transactions").
		Where("orgId", "==", orgID).
		Where("accountId", "==", accountID).
		Where("date", ">=", rng.From).
		Where("date", "<=", rng.To)

	byOperationDate := c.Firestore.Collection("tesoro-transactions").
		Where("orgId", "==", orgID).
		Where("accountId", "==", accountID).
		Where("operationDate", ">=", rng.From).
		Where("operationDate", "<=", rng.To)

	merged := make(map[string]domain.ExistingTransaction)
	for _, query := range []firestore.Query{byDate, byOperationDate} {
		if err := c.collectTransactions(ctx, query, merged); err != nil {
			return nil, err
		}
	}

	results := make([]domain.ExistingTransaction, 0, len(merged))
	for _, txn := range merged {
		results = append(results, txn)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Date != results[j].Date {
			return results[i].Date < results[j].Date
		}
		return results[i].ID < results[j].ID
	})

	return results, nil
}

func (c *Client) collectTransactions(ctx context.Context, query firestore.Query, merged map[string]domain.ExistingTransaction) error {
	iter := query.Documents(ctx)
	defer iter.Stop()

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to iterate transactions: %w", err)
		}

		var txn Transaction
		if err := doc.DataTo(&txn); err != nil {
			return fmt.Errorf("failed to parse transaction: %w", err)
		}
		merged[txn.ID] = txn.ToDomain()
	}
}

// GetTransactions retrieves all transactions for an organization
func (c *Client) GetTransactions(ctx context.Context, orgID string) ([]*Transaction, error) {
	iter := c.Firestore.Collection("tesoro-transactions").
		Where("orgId", "==", orgID).
		OrderBy("date", firestore.Desc).
		Documents(ctx)

	var transactions []*Transaction
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate transactions for org %s: %w", orgID, err)
		}

		var txn Transaction
		if err := doc.DataTo(&txn); err != nil {
			return nil, fmt.Errorf("failed to parse transaction: %w", err)
		}
		transactions = append(transactions, &txn)
	}

	return transactions, nil
}

// CreateTransaction creates a new transaction
func (c *Client) CreateTransaction(ctx context.Context, txn *Transaction) error {
	if err := txn.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}
	_, err := c.Firestore.Collection("tesoro-transactions").Doc(txn.ID).Set(ctx, txn)
	return err
}

// CreateTransactions writes a batch of transactions through a BulkWriter.
// Used by the import commit path where a selection may hold hundreds of
// rows.
func (c *Client) CreateTransactions(ctx context.Context, txns []*Transaction) error {
	for _, txn := range txns {
		if err := txn.Validate(); err != nil {
			return fmt.Errorf("invalid transaction %s: %w", txn.ID, err)
		}
	}

	bw := c.Firestore.BulkWriter(ctx)
	for _, txn := range txns {
		if _, err := bw.Set(c.Firestore.Collection("tesoro-transactions").Doc(txn.ID), txn); err != nil {
			return fmt.Errorf("failed to enqueue transaction %s: %w", txn.ID, err)
		}
	}
	bw.End()

	return nil
}

// GetAccounts retrieves all accounts for an organization
func (c *Client) GetAccounts(ctx context.Context, orgID string) ([]*Account, error) {
	iter := c.Firestore.Collection("tesoro-accounts").
		Where("orgId", "==", orgID).
		Documents(ctx)

	var accounts []*Account
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate accounts for org %s: %w", orgID, err)
		}

		var acc Account
		if err := doc.DataTo(&acc); err != nil {
			return nil, fmt.Errorf("failed to parse account: %w", err)
		}
		accounts = append(accounts, &acc)
	}

	return accounts, nil
}

// CreateAccount creates a new account
func (c *Client) CreateAccount(ctx context.Context, acc *Account) error {
	_, err := c.Firestore.Collection("tesoro-accounts").Doc(acc.ID).Set(ctx, acc)
	return err
}

// GetInstitutions retrieves all institutions for an organization
func (c *Client) GetInstitutions(ctx context.Context, orgID string) ([]*Institution, error) {
	iter := c.Firestore.Collection("tesoro-institutions").
		Where("orgId", "==", orgID).
		Documents(ctx)

	var institutions []*Institution
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate institutions for org %s: %w", orgID, err)
		}

		var inst Institution
		if err := doc.DataTo(&inst); err != nil {
			return nil, fmt.Errorf("failed to parse institution: %w", err)
		}
		institutions = append(institutions, &inst)
	}

	return institutions, nil
}

// CreateInstitution creates a new institution
func (c *Client) CreateInstitution(ctx context.Context, inst *Institution) error {
	_, err := c.Firestore.Collection("tesoro-institutions").Doc(inst.ID).Set(ctx, inst)
	return err
}
