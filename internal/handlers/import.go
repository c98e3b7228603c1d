package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rumor-ml/commons.systems/tesoro/internal/domain"
	"github.com/rumor-ml/commons.systems/tesoro/internal/firestore"
	"github.com/rumor-ml/commons.systems/tesoro/internal/middleware"
	"github.com/rumor-ml/commons.systems/tesoro/internal/pipeline"
	"github.com/rumor-ml/commons.systems/tesoro/internal/rules"
	"github.com/rumor-ml/commons.systems/tesoro/internal/streaming"
	"github.com/rumor-ml/commons.systems/tesoro/internal/transform"
)

// maxUploadBytes bounds statement uploads. Exports are text; anything
// bigger than this is not a statement.
const maxUploadBytes = 32 << 20

// previewState holds a classified batch between preview and commit.
// Kept in memory: a preview that outlives the process simply has to be
// re-run.
type previewState struct {
	orgID  string
	result *pipeline.PreviewResult
}

// ImportHandlers handles the statement import flow
type ImportHandlers struct {
	store Store
	rules *rules.Engine
	hub   *streaming.StreamHub

	mu       sync.Mutex
	previews map[string]*previewState
}

// NewImportHandlers creates a new import handlers instance
func NewImportHandlers(store Store, engine *rules.Engine, hub *streaming.StreamHub) *ImportHandlers {
	return &ImportHandlers{
		store:    store,
		rules:    engine,
		hub:      hub,
		previews: make(map[string]*previewState),
	}
}

// orgStore narrows the handler store to one organization so the pipeline
// stays org-agnostic.
type orgStore struct {
	store Store
	orgID string
}

func (s *orgStore) GetTransactionsInRange(ctx context.Context, accountID string, rng domain.SearchRange) ([]domain.ExistingTransaction, error) {
	return s.store.GetTransactionsInRange(ctx, s.orgID, accountID, rng)
}

// classifiedRowView is the preview response shape for one row
type classifiedRowView struct {
	Index          int                 `json:"index"`
	Date           string              `json:"date"`
	OperationDate  string              `json:"operationDate,omitempty"`
	Description    string              `json:"description"`
	Amount         float64             `json:"amount"`
	Status         domain.ImportStatus `json:"status"`
	Reason         domain.MatchReason  `json:"reason,omitempty"`
	MatchedIDs     []string            `json:"matchedExistingIds,omitempty"`
	CandidateIndex *int                `json:"candidateIndex,omitempty"`
}

// previewResponse is the body returned by POST /api/import/preview
type previewResponse struct {
	SessionID   string              `json:"sessionId"`
	FileName    string              `json:"fileName"`
	AccountID   string              `json:"accountId"`
	SearchRange *domain.SearchRange `json:"searchRange,omitempty"`
	Rows        []classifiedRowView `json:"rows"`
	Stats       previewStats        `json:"stats"`
}

type previewStats struct {
	Total      int `json:"total"`
	New        int `json:"new"`
	Safe       int `json:"duplicateSafe"`
	Candidates int `json:"duplicateCandidates"`
}

// Preview handles POST /api/import/preview. The uploaded statement is
// parsed and classified; nothing is written except the session audit
// record. The response lists every row verdict and the candidate indexes
// the commit call may opt in.
func (h *ImportHandlers) Preview(w http.ResponseWriter, r *http.Request) {
	authInfo, ok := middleware.GetAuth(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "No statement file uploaded", http.StatusBadRequest)
		return
	}
	defer file.Close()

	// The parser registry sniffs by path and header bytes, so the upload
	// lands in a temp file that keeps its original extension.
	tmpPath, err := saveUpload(file, header.Filename)
	if err != nil {
		log.Printf("ERROR: Failed to save upload: %v", err)
		http.Error(w, "Failed to save upload", http.StatusInternalServerError)
		return
	}
	defer os.Remove(tmpPath)

	sessionID := transform.GenerateSessionID()
	pipe := pipeline.New(&orgStore{store: h.store, orgID: authInfo.OrgID}, h.rules, h.hub)

	result, err := pipe.Preview(r.Context(), sessionID, tmpPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to classify statement: %v", err), http.StatusUnprocessableEntity)
		return
	}
	result.FileName = header.Filename

	stats := countStatuses(result.Classified)
	session := &firestore.ImportSession{
		ID:        sessionID,
		OrgID:     authInfo.OrgID,
		AccountID: result.Batch.Account.ID,
		FileName:  header.Filename,
		Status:    firestore.ImportSessionStatusPreviewed,
		RowCount:  len(result.Classified),
		Stats: domain.SelectionStats{
			CandidateCount:        stats.Candidates,
			DuplicateSkippedCount: stats.Safe,
		},
		CreatedAt: time.Now(),
	}
	if err := h.store.CreateImportSession(r.Context(), session); err != nil {
		log.Printf("ERROR: Failed to create import session: %v", err)
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	h.mu.Lock()
	h.previews[sessionID] = &previewState{orgID: authInfo.OrgID, result: result}
	h.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(buildPreviewResponse(result, stats)); err != nil {
		log.Printf("ERROR: Failed to encode preview response: %v", err)
	}
}

func saveUpload(file io.Reader, fileName string) (string, error) {
	tmp, err := os.CreateTemp("", "tesoro-upload-*"+filepath.Ext(fileName))
	if err != nil {
		return "", err
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, file); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func countStatuses(classified []domain.ClassifiedRow) previewStats {
	stats := previewStats{Total: len(classified)}
	for _, row := range classified {
		switch row.Status {
		case domain.StatusNew:
			stats.New++
		case domain.StatusDuplicateSafe:
			stats.Safe++
		case domain.StatusDuplicateCandidate:
			stats.Candidates++
		}
	}
	return stats
}

func buildPreviewResponse(result *pipeline.PreviewResult, stats previewStats) previewResponse {
	rows := make([]classifiedRowView, len(result.Classified))
	candidateIndex := 0
	for i, row := range result.Classified {
		view := classifiedRowView{
			Index:         i,
			Date:          row.Row.Date,
			OperationDate: row.Row.OperationDate,
			Description:   row.Row.Description,
			Amount:        row.Row.Amount,
			Status:        row.Status,
			Reason:        row.Reason,
			MatchedIDs:    row.MatchedExistingIDs,
		}
		if row.Status == domain.StatusDuplicateCandidate {
			idx := candidateIndex
			view.CandidateIndex = &idx
			candidateIndex++
		}
		rows[i] = view
	}

	return previewResponse{
		SessionID:   result.SessionID,
		FileName:    result.FileName,
		AccountID:   result.Batch.Account.ID,
		SearchRange: result.SearchRange,
		Rows:        rows,
		Stats:       stats,
	}
}

// commitRequest is the body accepted by POST /api/import/commit
type commitRequest struct {
	SessionID                string `json:"sessionId"`
	SelectedCandidateIndexes []int  `json:"selectedCandidateIndexes"`
}

// commitResponse is the body returned by POST /api/import/commit
type commitResponse struct {
	SessionID string                `json:"sessionId"`
	Imported  int                   `json:"imported"`
	Stats     domain.SelectionStats `json:"stats"`
}

// Commit handles POST /api/import/commit. It applies the user's opt-in
// to a previewed session, persists the selected rows and finalizes the
// audit record.
func (h *ImportHandlers) Commit(w http.ResponseWriter, r *http.Request) {
	authInfo, ok := middleware.GetAuth(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		http.Error(w, "sessionId is required", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	state, exists := h.previews[req.SessionID]
	h.mu.Unlock()
	if !exists {
		http.Error(w, "Session not found or expired", http.StatusNotFound)
		return
	}
	if state.orgID != authInfo.OrgID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	pipe := pipeline.New(&orgStore{store: h.store, orgID: authInfo.OrgID}, h.rules, h.hub)
	commit := pipe.Commit(req.SessionID, state.result.Classified, req.SelectedCandidateIndexes)

	if err := h.persistCommit(r.Context(), authInfo.OrgID, req, state.result, commit); err != nil {
		log.Printf("ERROR: Failed to persist import %s: %v", req.SessionID, err)
		http.Error(w, "Failed to persist import", http.StatusInternalServerError)
		return
	}

	h.mu.Lock()
	delete(h.previews, req.SessionID)
	h.mu.Unlock()
	h.hub.Close(req.SessionID)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(commitResponse{
		SessionID: req.SessionID,
		Imported:  len(commit.Selection.RowsToImport),
		Stats:     commit.Selection.Stats,
	}); err != nil {
		log.Printf("ERROR: Failed to encode commit response: %v", err)
	}
}

func (h *ImportHandlers) persistCommit(ctx context.Context, orgID string, req commitRequest, preview *pipeline.PreviewResult, commit *pipeline.CommitResult) error {
	now := time.Now()

	inst := &firestore.Institution{
		ID:        preview.Batch.Institution.ID,
		OrgID:     orgID,
		Name:      preview.Batch.Institution.Name,
		CreatedAt: now,
	}
	if err := h.store.CreateInstitution(ctx, inst); err != nil {
		return fmt.Errorf("failed to persist institution: %w", err)
	}

	acc := &firestore.Account{
		ID:            preview.Batch.Account.ID,
		OrgID:         orgID,
		InstitutionID: preview.Batch.Account.InstitutionID,
		Name:          preview.Batch.Account.Name,
		Type:          string(preview.Batch.Account.Type),
		CreatedAt:     now,
	}
	if err := h.store.CreateAccount(ctx, acc); err != nil {
		return fmt.Errorf("failed to persist account: %w", err)
	}

	txns := make([]*firestore.Transaction, len(commit.Selection.RowsToImport))
	for i, row := range commit.Selection.RowsToImport {
		txns[i] = &firestore.Transaction{
			ID:            fmt.Sprintf("txn-%s", uuid.NewString()),
			OrgID:         orgID,
			AccountID:     row.AccountID,
			Date:          row.Date,
			OperationDate: row.OperationDate,
			Description:   row.Description,
			Amount:        row.Amount,
			BankReference: row.BankReference,
			BalanceAfter:  row.BalanceAfter,
			Category:      string(commit.Categories[i]),
			RawPayload:    row.RawPayload,
			SessionID:     req.SessionID,
			CreatedAt:     now,
		}
	}
	if err := h.store.CreateTransactions(ctx, txns); err != nil {
		return fmt.Errorf("failed to persist transactions: %w", err)
	}

	session := &firestore.ImportSession{
		ID:          req.SessionID,
		OrgID:       orgID,
		AccountID:   preview.Batch.Account.ID,
		FileName:    preview.FileName,
		Status:      firestore.ImportSessionStatusCommitted,
		RowCount:    len(preview.Classified),
		Stats:       commit.Selection.Stats,
		Decisions:   buildDecisions(preview, req.SelectedCandidateIndexes),
		CommittedAt: &now,
		CreatedAt:   now,
	}
	if err := h.store.UpdateImportSession(ctx, session); err != nil {
		return fmt.Errorf("failed to finalize session: %w", err)
	}

	return nil
}

// buildDecisions records the opt-in verdict for every candidate so the
// audit trail shows what the user skipped, not only what got imported.
func buildDecisions(preview *pipeline.PreviewResult, selected []int) []firestore.CandidateDecision {
	selectedSet := make(map[int]bool, len(selected))
	for _, idx := range selected {
		selectedSet[idx] = true
	}

	candidates := preview.CandidateRows()
	decisions := make([]firestore.CandidateDecision, len(candidates))
	for i, candidate := range candidates {
		decisions[i] = firestore.CandidateDecision{
			CandidateIndex: i,
			Description:    candidate.Row.Description,
			Date:           candidate.Row.Date,
			Amount:         candidate.Row.Amount,
			Imported:       selectedSet[i],
		}
	}
	return decisions
}

// Events handles GET /api/import/{id}/events, streaming session progress
// as Server-Sent Events until the client disconnects.
func (h *ImportHandlers) Events(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		http.Error(w, "Missing session ID", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client := h.hub.Register(sessionID)
	defer h.hub.Unregister(sessionID, client)

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			writeSSE(w, streaming.NewEvent(streaming.EventTypeHeartbeat, nil))
			flusher.Flush()
		case event, open := <-client.Events:
			if !open {
				return
			}
			writeSSE(w, event)
			flusher.Flush()
		}
	}
}

func writeSSE(w io.Writer, event streaming.SSEEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("ERROR: Failed to marshal SSE event: %v", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload)
}
