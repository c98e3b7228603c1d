// tesorod serves the import review API: statement upload, duplicate
// preview, candidate opt-in commit, and progress streaming for the web
// frontend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rumor-ml/commons.systems/tesoro/internal/server"
)

var (
	port      = flag.String("port", "", "Listen port (default: PORT env or 8080)")
	projectID = flag.String("project", "", "Google Cloud project (default: GOOGLE_CLOUD_PROJECT env)")
	rulesFile = flag.String("rules", "", "Category rules file (default: embedded rules)")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		log.Fatalf("tesorod: %v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	project := *projectID
	if project == "" {
		project = os.Getenv("GOOGLE_CLOUD_PROJECT")
	}
	if project == "" {
		return fmt.Errorf("project ID required (-project flag or GOOGLE_CLOUD_PROJECT)")
	}

	listenPort := *port
	if listenPort == "" {
		listenPort = os.Getenv("PORT")
	}
	if listenPort == "" {
		listenPort = "8080"
	}

	srv, err := server.New(ctx, project, *rulesFile)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	defer srv.Close()

	httpServer := &http.Server{
		Addr:    ":" + listenPort,
		Handler: srv.Handler(),
		// No WriteTimeout: the event stream endpoint holds its response
		// open for the life of an import session.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on :%s (project %s)", listenPort, project)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Println("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
	}

	return nil
}
