// Package pipeline orchestrates a statement import run: parse, compute
// the search window, fetch the overlapping stored transactions, classify
// each row and build the final opt-in selection.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rumor-ml/commons.systems/tesoro/internal/dedupe"
	"github.com/rumor-ml/commons.systems/tesoro/internal/domain"
	"github.com/rumor-ml/commons.systems/tesoro/internal/parser"
	"github.com/rumor-ml/commons.systems/tesoro/internal/registry"
	"github.com/rumor-ml/commons.systems/tesoro/internal/rules"
	"github.com/rumor-ml/commons.systems/tesoro/internal/streaming"
	"github.com/rumor-ml/commons.systems/tesoro/internal/transform"
)

// Store is the transaction lookup the classifier matches against. Both
// the Firestore client (org-scoped) and the local SQLite cache satisfy
// it.
type Store interface {
	GetTransactionsInRange(ctx context.Context, accountID string, rng domain.SearchRange) ([]domain.ExistingTransaction, error)
}

// Pipeline runs imports against a store using the registered parsers
type Pipeline struct {
	registry *registry.Registry
	store    Store
	rules    *rules.Engine
	hub      *streaming.StreamHub // nil disables event streaming
}

// New creates a pipeline. hub may be nil when no one streams events
// (CLI runs).
func New(store Store, engine *rules.Engine, hub *streaming.StreamHub) *Pipeline {
	return &Pipeline{
		registry: registry.New(),
		store:    store,
		rules:    engine,
		hub:      hub,
	}
}

// PreviewResult is the outcome of classifying one statement file
type PreviewResult struct {
	SessionID   string
	FileName    string
	Batch       *transform.ImportBatch
	SearchRange *domain.SearchRange
	Existing    []domain.ExistingTransaction
	Classified  []domain.ClassifiedRow
}

// CandidateRows returns the duplicate candidates in batch order. The
// slice index is the candidate index the commit call selects by.
func (r *PreviewResult) CandidateRows() []domain.ClassifiedRow {
	var candidates []domain.ClassifiedRow
	for _, row := range r.Classified {
		if row.Status == domain.StatusDuplicateCandidate {
			candidates = append(candidates, row)
		}
	}
	return candidates
}

// Preview parses and classifies a statement file without writing
// anything. The sessionID scopes streamed events.
func (p *Pipeline) Preview(ctx context.Context, sessionID, filePath string) (*PreviewResult, error) {
	meta, err := parser.NewMetadata(filePath, time.Now())
	if err != nil {
		return nil, err
	}
	return p.PreviewFile(ctx, sessionID, filePath, meta)
}

// PreviewFile is Preview with caller-supplied metadata, for inputs whose
// directory layout carries institution and account information the file
// itself lacks.
func (p *Pipeline) PreviewFile(ctx context.Context, sessionID, filePath string, meta *parser.Metadata) (*PreviewResult, error) {
	fileParser, err := p.registry.FindParser(filePath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	stmt, err := fileParser.Parse(ctx, f, meta)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filePath, err)
	}

	return p.PreviewStatement(ctx, sessionID, filepath.Base(filePath), stmt)
}

// PreviewStatement classifies an already-parsed statement. Split out so
// the HTTP upload path can parse from the request body instead of disk.
func (p *Pipeline) PreviewStatement(ctx context.Context, sessionID, fileName string, stmt *parser.RawStatement) (*PreviewResult, error) {
	batch, err := transform.BuildImportBatch(stmt)
	if err != nil {
		return nil, err
	}

	p.broadcast(sessionID, streaming.NewEvent(streaming.EventTypeSession, streaming.SessionEvent{
		ID:        sessionID,
		AccountID: batch.Account.ID,
		Status:    "classifying",
	}))

	// The search window spans both date fields of every row; a batch with
	// no parseable date at all skips the store fetch and classifies
	// everything against the batch alone.
	var existing []domain.ExistingTransaction
	searchRange := dedupe.ComputeSearchRange(batch.Rows)
	if searchRange != nil {
		existing, err = p.store.GetTransactionsInRange(ctx, batch.Account.ID, *searchRange)
		if err != nil {
			p.broadcast(sessionID, streaming.NewEvent(streaming.EventTypeError, streaming.ErrorEvent{
				Message:   err.Error(),
				SessionID: sessionID,
			}))
			return nil, fmt.Errorf("failed to fetch stored transactions: %w", err)
		}
	}

	classified := dedupe.Classify(batch.Rows, existing, batch.Account.ID)

	total := len(classified)
	for i, row := range classified {
		p.broadcast(sessionID, streaming.NewEvent(streaming.EventTypeClassified, streaming.ClassifiedEvent{
			Index:       i,
			Date:        row.Row.Date,
			Description: row.Row.Description,
			Amount:      row.Row.Amount,
			Status:      row.Status,
			Reason:      row.Reason,
		}))
		p.broadcast(sessionID, streaming.NewEvent(streaming.EventTypeProgress, streaming.ProgressEvent{
			Processed:  i + 1,
			Total:      total,
			Percentage: float64(i+1) / float64(total) * 100,
		}))
	}

	return &PreviewResult{
		SessionID:   sessionID,
		FileName:    fileName,
		Batch:       batch,
		SearchRange: searchRange,
		Existing:    existing,
		Classified:  classified,
	}, nil
}

// CommitResult pairs the selected rows with their rule-derived
// categories. Categories align by index with Selection.RowsToImport.
type CommitResult struct {
	Selection  domain.ImportSelection
	Categories []domain.Category
}

// Commit applies the user's candidate opt-in to a previewed batch and
// categorizes the rows that will be imported. Persistence stays with the
// caller.
func (p *Pipeline) Commit(sessionID string, classified []domain.ClassifiedRow, selectedCandidateIndexes []int) *CommitResult {
	selection := dedupe.BuildSelection(classified, selectedCandidateIndexes)

	categories := make([]domain.Category, len(selection.RowsToImport))
	for i, row := range selection.RowsToImport {
		categories[i] = p.rules.Categorize(row.Description)
	}

	p.broadcast(sessionID, streaming.NewEvent(streaming.EventTypeComplete, streaming.CompleteEvent{
		SessionID: sessionID,
		Imported:  len(selection.RowsToImport),
		Stats:     selection.Stats,
	}))

	return &CommitResult{
		Selection:  selection,
		Categories: categories,
	}
}

func (p *Pipeline) broadcast(sessionID string, event streaming.SSEEvent) {
	if p.hub != nil {
		p.hub.Broadcast(sessionID, event)
	}
}
