package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/commons.systems/tesoro/internal/domain"
	"github.com/rumor-ml/commons.systems/tesoro/internal/firestore"
	"github.com/rumor-ml/commons.systems/tesoro/internal/rules"
	"github.com/rumor-ml/commons.systems/tesoro/internal/streaming"
)

const importExport = `Fecha;Fecha valor;Concepto;Importe;Saldo;Referencia
30/12/2025;02/01/2026;Transferencia recibida;500,00;1.500,00;REF-001
05/01/2026;05/01/2026;Recibo luz;-88,40;1.411,60;
07/01/2026;07/01/2026;Cuota socio enero;-25,00;1.386,60;REF-003
`

func newImportHandlers(t *testing.T, store Store) *ImportHandlers {
	t.Helper()
	engine, err := rules.LoadEmbedded()
	require.NoError(t, err)
	return NewImportHandlers(store, engine, streaming.NewStreamHub())
}

func uploadRequest(t *testing.T, orgID, fileName, content string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import/preview", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return withOrg(req, orgID)
}

func previewStatement(t *testing.T, h *ImportHandlers, orgID string) previewResponse {
	t.Helper()

	w := httptest.NewRecorder()
	h.Preview(w, uploadRequest(t, orgID, "export.csv", importExport))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp previewResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func commitRequestBody(t *testing.T, orgID, sessionID string, selected []int) *http.Request {
	t.Helper()

	payload, err := json.Marshal(commitRequest{
		SessionID:                sessionID,
		SelectedCandidateIndexes: selected,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/import/commit", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return withOrg(req, orgID)
}

func TestPreview_AllNew(t *testing.T) {
	store := newFakeStore()
	h := newImportHandlers(t, store)

	resp := previewStatement(t, h, "org-asoc")

	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "export.csv", resp.FileName)
	require.Len(t, resp.Rows, 3)
	assert.Equal(t, 3, resp.Stats.New)
	assert.Equal(t, 0, resp.Stats.Candidates)

	require.NotNil(t, resp.SearchRange)
	assert.Equal(t, "2025-12-30", resp.SearchRange.From)
	assert.Equal(t, "2026-01-07", resp.SearchRange.To)

	// Session audit record is written at preview time
	session, ok := store.sessions[resp.SessionID]
	require.True(t, ok)
	assert.Equal(t, firestore.ImportSessionStatusPreviewed, session.Status)
	assert.Equal(t, 3, session.RowCount)
}

func TestPreview_MarksCandidates(t *testing.T) {
	store := newFakeStore()
	// Same account as the one the batch derives: UNKNOWN metadata
	store.transactions = []*firestore.Transaction{
		{
			ID:          "txn-1",
			OrgID:       "org-asoc",
			AccountID:   "acc-unknown-NOWN",
			Date:        "2026-01-05",
			Description: "Recibo luz",
			Amount:      -88.40,
		},
	}
	h := newImportHandlers(t, store)

	resp := previewStatement(t, h, "org-asoc")

	require.Len(t, resp.Rows, 3)
	luz := resp.Rows[1]
	assert.Equal(t, domain.StatusDuplicateCandidate, luz.Status)
	assert.Equal(t, domain.ReasonBaseKey, luz.Reason)
	require.NotNil(t, luz.CandidateIndex)
	assert.Equal(t, 0, *luz.CandidateIndex)
	assert.Equal(t, []string{"txn-1"}, luz.MatchedIDs)
}

func TestPreview_NoFile(t *testing.T) {
	h := newImportHandlers(t, newFakeStore())

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import/preview", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	h.Preview(w, withOrg(req, "org-asoc"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreview_UnparseableFile(t *testing.T) {
	h := newImportHandlers(t, newFakeStore())

	w := httptest.NewRecorder()
	h.Preview(w, uploadRequest(t, "org-asoc", "notes.txt", "not a statement"))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestPreview_Unauthorized(t *testing.T) {
	h := newImportHandlers(t, newFakeStore())

	req := httptest.NewRequest(http.MethodPost, "/api/import/preview", strings.NewReader(""))
	w := httptest.NewRecorder()
	h.Preview(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCommit_PersistsSelection(t *testing.T) {
	store := newFakeStore()
	store.transactions = []*firestore.Transaction{
		{
			ID:          "txn-1",
			OrgID:       "org-asoc",
			AccountID:   "acc-unknown-NOWN",
			Date:        "2026-01-05",
			Description: "Recibo luz",
			Amount:      -88.40,
		},
	}
	h := newImportHandlers(t, store)

	resp := previewStatement(t, h, "org-asoc")
	require.Equal(t, 1, resp.Stats.Candidates)

	// Opt the single candidate in
	w := httptest.NewRecorder()
	h.Commit(w, commitRequestBody(t, "org-asoc", resp.SessionID, []int{0}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var commit commitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &commit))
	assert.Equal(t, 3, commit.Imported) // 2 new + 1 opted-in candidate
	assert.Equal(t, 1, commit.Stats.CandidateUserImportedCount)
	assert.Equal(t, 0, commit.Stats.CandidateUserSkippedCount)

	// 1 pre-existing + 3 imported
	assert.Len(t, store.transactions, 4)

	// Imported rows carry rule-derived categories
	var categories []string
	for _, txn := range store.transactions[1:] {
		categories = append(categories, txn.Category)
		assert.Equal(t, resp.SessionID, txn.SessionID)
		assert.Equal(t, "org-asoc", txn.OrgID)
	}
	assert.Contains(t, categories, string(domain.CategoryTransfer))
	assert.Contains(t, categories, string(domain.CategoryMembership))
	assert.Contains(t, categories, string(domain.CategoryUtilities))

	// Session finalized with decision audit
	session := store.sessions[resp.SessionID]
	require.NotNil(t, session)
	assert.Equal(t, firestore.ImportSessionStatusCommitted, session.Status)
	require.Len(t, session.Decisions, 1)
	assert.True(t, session.Decisions[0].Imported)
	require.NotNil(t, session.CommittedAt)

	// Account and institution documents were persisted
	require.Len(t, store.accounts, 1)
	require.Len(t, store.institutions, 1)
}

func TestCommit_SkippedCandidateAudited(t *testing.T) {
	store := newFakeStore()
	store.transactions = []*firestore.Transaction{
		{
			ID:          "txn-1",
			OrgID:       "org-asoc",
			AccountID:   "acc-unknown-NOWN",
			Date:        "2026-01-05",
			Description: "Recibo luz",
			Amount:      -88.40,
		},
	}
	h := newImportHandlers(t, store)
	resp := previewStatement(t, h, "org-asoc")

	w := httptest.NewRecorder()
	h.Commit(w, commitRequestBody(t, "org-asoc", resp.SessionID, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var commit commitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &commit))
	assert.Equal(t, 2, commit.Imported)
	assert.Equal(t, 1, commit.Stats.CandidateUserSkippedCount)

	session := store.sessions[resp.SessionID]
	require.Len(t, session.Decisions, 1)
	assert.False(t, session.Decisions[0].Imported)
}

func TestCommit_UnknownSession(t *testing.T) {
	h := newImportHandlers(t, newFakeStore())

	w := httptest.NewRecorder()
	h.Commit(w, commitRequestBody(t, "org-asoc", "imp-missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCommit_WrongOrgForbidden(t *testing.T) {
	store := newFakeStore()
	h := newImportHandlers(t, store)
	resp := previewStatement(t, h, "org-asoc")

	w := httptest.NewRecorder()
	h.Commit(w, commitRequestBody(t, "org-otra", resp.SessionID, nil))

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCommit_SecondCommitNotFound(t *testing.T) {
	store := newFakeStore()
	h := newImportHandlers(t, store)
	resp := previewStatement(t, h, "org-asoc")

	w := httptest.NewRecorder()
	h.Commit(w, commitRequestBody(t, "org-asoc", resp.SessionID, nil))
	require.Equal(t, http.StatusOK, w.Code)

	// Preview state is consumed on commit
	w = httptest.NewRecorder()
	h.Commit(w, commitRequestBody(t, "org-asoc", resp.SessionID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
