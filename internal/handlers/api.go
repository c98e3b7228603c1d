package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/rumor-ml/commons.systems/tesoro/internal/domain"
	"github.com/rumor-ml/commons.systems/tesoro/internal/firestore"
	"github.com/rumor-ml/commons.systems/tesoro/internal/middleware"
)

// Store is the persistence surface the handlers depend on. *firestore.Client
// satisfies it; tests inject a fake.
type Store interface {
	GetTransactions(ctx context.Context, orgID string) ([]*firestore.Transaction, error)
	GetAccounts(ctx context.Context, orgID string) ([]*firestore.Account, error)
	GetInstitutions(ctx context.Context, orgID string) ([]*firestore.Institution, error)
	GetTransactionsInRange(ctx context.Context, orgID, accountID string, rng domain.SearchRange) ([]domain.ExistingTransaction, error)
	CreateTransactions(ctx context.Context, txns []*firestore.Transaction) error
	CreateAccount(ctx context.Context, acc *firestore.Account) error
	CreateInstitution(ctx context.Context, inst *firestore.Institution) error
	CreateImportSession(ctx context.Context, session *firestore.ImportSession) error
	UpdateImportSession(ctx context.Context, session *firestore.ImportSession) error
	GetImportSession(ctx context.Context, sessionID string) (*firestore.ImportSession, error)
	ListImportSessions(ctx context.Context, orgID string) ([]*firestore.ImportSession, error)
}

// APIHandler handles read-only API requests
type APIHandler struct {
	store Store
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(store Store) *APIHandler {
	return &APIHandler{store: store}
}

func writeJSON(w http.ResponseWriter, orgID string, what string, value interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(value); err != nil {
		log.Printf("ERROR: Failed to encode %s for org %s: %v", what, orgID, err)
	}
}

// GetTransactions handles GET /api/transactions
func (h *APIHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	orgID, ok := middleware.GetOrgID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	transactions, err := h.store.GetTransactions(r.Context(), orgID)
	if err != nil {
		http.Error(w, "Failed to fetch transactions", http.StatusInternalServerError)
		return
	}

	writeJSON(w, orgID, "transactions", transactions)
}

// GetAccounts handles GET /api/accounts
func (h *APIHandler) GetAccounts(w http.ResponseWriter, r *http.Request) {
	orgID, ok := middleware.GetOrgID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	accounts, err := h.store.GetAccounts(r.Context(), orgID)
	if err != nil {
		http.Error(w, "Failed to fetch accounts", http.StatusInternalServerError)
		return
	}

	writeJSON(w, orgID, "accounts", accounts)
}

// GetInstitutions handles GET /api/institutions
func (h *APIHandler) GetInstitutions(w http.ResponseWriter, r *http.Request) {
	orgID, ok := middleware.GetOrgID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	institutions, err := h.store.GetInstitutions(r.Context(), orgID)
	if err != nil {
		http.Error(w, "Failed to fetch institutions", http.StatusInternalServerError)
		return
	}

	writeJSON(w, orgID, "institutions", institutions)
}

// ListImportSessions handles GET /api/import/sessions
func (h *APIHandler) ListImportSessions(w http.ResponseWriter, r *http.Request) {
	orgID, ok := middleware.GetOrgID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sessions, err := h.store.ListImportSessions(r.Context(), orgID)
	if err != nil {
		http.Error(w, "Failed to fetch import sessions", http.StatusInternalServerError)
		return
	}

	writeJSON(w, orgID, "import sessions", sessions)
}

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
