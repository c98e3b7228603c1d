package server

import (
	"context"
	"net/http"

	"github.com/rumor-ml/commons.systems/tesoro/internal/firestore"
	"github.com/rumor-ml/commons.systems/tesoro/internal/handlers"
	"github.com/rumor-ml/commons.systems/tesoro/internal/middleware"
	"github.com/rumor-ml/commons.systems/tesoro/internal/rules"
	"github.com/rumor-ml/commons.systems/tesoro/internal/streaming"
)

// Server is the import review API server
type Server struct {
	fsClient *firestore.Client
	mux      *http.ServeMux
}

// New creates a new server instance. rulesPath overrides the embedded
// categorization rules when non-empty.
func New(ctx context.Context, projectID, rulesPath string) (*Server, error) {
	fsClient, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var engine *rules.Engine
	if rulesPath != "" {
		engine, err = rules.LoadFromFile(rulesPath)
	} else {
		engine, err = rules.LoadEmbedded()
	}
	if err != nil {
		fsClient.Close()
		return nil, err
	}

	s := &Server{
		fsClient: fsClient,
		mux:      http.NewServeMux(),
	}
	s.setupRoutes(engine)

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(engine *rules.Engine) {
	// Health check (no auth required)
	s.mux.HandleFunc("/health", handlers.HealthCheck)

	apiHandler := handlers.NewAPIHandler(s.fsClient)
	authMiddleware := middleware.NewAuthMiddleware(s.fsClient.Auth)

	hub := streaming.NewStreamHub()
	importHandler := handlers.NewImportHandlers(s.fsClient, engine, hub)

	// Protected API routes
	s.mux.Handle("/api/transactions", authMiddleware.RequireAuth(http.HandlerFunc(apiHandler.GetTransactions)))
	s.mux.Handle("/api/accounts", authMiddleware.RequireAuth(http.HandlerFunc(apiHandler.GetAccounts)))
	s.mux.Handle("/api/institutions", authMiddleware.RequireAuth(http.HandlerFunc(apiHandler.GetInstitutions)))
	s.mux.Handle("/api/import/sessions", authMiddleware.RequireAuth(http.HandlerFunc(apiHandler.ListImportSessions)))

	// Import flow
	s.mux.Handle("/api/import/preview", authMiddleware.RequireAuth(http.HandlerFunc(importHandler.Preview)))
	s.mux.Handle("/api/import/commit", authMiddleware.RequireAuth(http.HandlerFunc(importHandler.Commit)))
	s.mux.Handle("/api/import/{id}/events", authMiddleware.RequireAuth(http.HandlerFunc(importHandler.Events)))

	// Static files for the frontend (when deployed together)
	fs := http.FileServer(http.Dir("./dist"))
	s.mux.Handle("/", fs)
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return middleware.CORS(s.mux)
}

// Close closes the server resources
func (s *Server) Close() error {
	return s.fsClient.Close()
}
