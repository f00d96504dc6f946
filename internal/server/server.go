// Package server provides the HTTP REST API for the discovery pipeline.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lferraz/leadscout/internal/enrich"
	"github.com/lferraz/leadscout/internal/events"
	"github.com/lferraz/leadscout/internal/pipeline"
	"github.com/lferraz/leadscout/internal/scoring"
	"github.com/lferraz/leadscout/internal/store"
)

// Deps holds the wired components the server exposes.
type Deps struct {
	Port        int
	Store       store.Store
	Runs        *pipeline.Controller
	Enrich      *enrich.Controller
	Scoring     *scoring.Controller
	Broadcaster *events.Broadcaster
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	store       store.Store
	runs        *pipeline.Controller
	enrich      *enrich.Controller
	scoring     *scoring.Controller
	broadcaster *events.Broadcaster

	// cancels the run loop context on shutdown
	runCtx    context.Context
	runCancel context.CancelFunc
}

// New creates a new server instance
func New(deps Deps) *Server {
	runCtx, runCancel := context.WithCancel(context.Background())

	s := &Server{
		store:       deps.Store,
		runs:        deps.Runs,
		enrich:      deps.Enrich,
		scoring:     deps.Scoring,
		broadcaster: deps.Broadcaster,
		runCtx:      runCtx,
		runCancel:   runCancel,
	}

	mux := http.NewServeMux()

	// Run lifecycle
	mux.HandleFunc("POST /api/runs", s.handleStartRun)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("POST /api/runs/{id}/stop", s.handleStopRun)
	mux.HandleFunc("GET /api/runs/{id}/queries", s.handleListQueries)

	// Background phases
	mux.HandleFunc("POST /api/enrich", s.handleTriggerEnrich)
	mux.HandleFunc("GET /api/enrich/status", s.handleEnrichStatus)
	mux.HandleFunc("POST /api/score", s.handleTriggerScore)
	mux.HandleFunc("GET /api/score/status", s.handleScoreStatus)

	// Results
	mux.HandleFunc("GET /api/candidates", s.handleListCandidates)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	// Event stream
	mux.HandleFunc("GET /api/events/{run_id}", s.handleEventStream)

	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", deps.Port),
		Handler:      s.withLogging(s.withCORS(mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE streams stay open indefinitely
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening for requests
func (s *Server) Start() error {
	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	// Abort any active run loop before closing connections.
	s.runCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}
