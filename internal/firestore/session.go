package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/rumor-ml/commons.systems/tesoro/internal/domain"
)

// ImportSessionStatus represents the status of an import session
type ImportSessionStatus string

const (
	ImportSessionStatusPreviewed ImportSessionStatus = "previewed"
	ImportSessionStatusCommitted ImportSessionStatus = "committed"
	ImportSessionStatusError     ImportSessionStatus = "error"
)

// CandidateDecision records the user's opt-in choice for one duplicate
// candidate. Kept per session so every skipped candidate stays auditable.
type CandidateDecision struct {
	CandidateIndex int     `firestore:"candidateIndex"`
	Description    string  `firestore:"description"`
	Date           string  `firestore:"date"`
	Amount         float64 `firestore:"amount"`
	Imported       bool    `firestore:"imported"`
}

// ImportSession is the audit record of one statement import run
type ImportSession struct {
	ID          string                `firestore:"id"`
	OrgID       string                `firestore:"orgId"`
	AccountID   string                `firestore:"accountId"`
	FileName    string                `firestore:"fileName,omitempty"`
	Status      ImportSessionStatus   `firestore:"status"`
	RowCount    int                   `firestore:"rowCount"`
	Stats       domain.SelectionStats `firestore:"stats"`
	Decisions   []CandidateDecision   `firestore:"decisions,omitempty"`
	Error       string                `firestore:"error,omitempty"`
	CommittedAt *time.Time            `firestore:"committedAt,omitempty"`
	CreatedAt   time.Time             `firestore:"createdAt"`
}

// Validate checks if the ImportSession has valid data
func (s *ImportSession) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("session ID is required")
	}
	if s.OrgID == "" {
		return fmt.Errorf("org ID is required")
	}

	validStatuses := map[ImportSessionStatus]bool{
		ImportSessionStatusPreviewed: true,
		ImportSessionStatusCommitted: true,
		ImportSessionStatusError:     true,
	}
	if !validStatuses[s.Status] {
		return fmt.Errorf("invalid status: %s", s.Status)
	}

	if s.RowCount < 0 {
		return fmt.Errorf("row count cannot be negative")
	}

	return nil
}

// CreateImportSession creates a new import session record
func (c *Client) CreateImportSession(ctx context.Context, session *ImportSession) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("invalid import session: %w", err)
	}
	_, err := c.Firestore.Collection("tesoro-import-sessions").Doc(session.ID).Set(ctx, session)
	return err
}

// UpdateImportSession updates an existing import session record
func (c *Client) UpdateImportSession(ctx context.Context, session *ImportSession) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("invalid import session: %w", err)
	}
	_, err := c.Firestore.Collection("tesoro-import-sessions").Doc(session.ID).Set(ctx, session)
	return err
}

// GetImportSession retrieves an import session by ID
func (c *Client) GetImportSession(ctx context.Context, sessionID string) (*ImportSession, error) {
	doc, err := c.Firestore.Collection("tesoro-import-sessions").Doc(sessionID).Get(ctx)
	if err != nil {
		return nil, err
	}

	var session ImportSession
	if err := doc.DataTo(&session); err != nil {
		return nil, fmt.Errorf("failed to parse import session: %w", err)
	}

	return &session, nil
}

// ListImportSessions retrieves recent import sessions for an organization
func (c *Client) ListImportSessions(ctx context.Context, orgID string) ([]*ImportSession, error) {
	iter := c.Firestore.Collection("tesoro-import-sessions").
		Where("orgId", "==", orgID).
		OrderBy("createdAt", firestore.Desc).
		Limit(50).
		Documents(ctx)

	var sessions []*ImportSession
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate import sessions for org %s: %w", orgID, err)
		}

		var sess ImportSession
		if err := doc.DataTo(&sess); err != nil {
			return nil, fmt.Errorf("failed to parse import session: %w", err)
		}
		sessions = append(sessions, &sess)
	}

	return sessions, nil
}
