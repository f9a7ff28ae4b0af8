// Package server provides the HTTP API for starting pipeline runs, following
// their progress and answering their checkpoints.
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

	"github.com/jonathan/process-pipelines/internal/checkpoint"
	"github.com/jonathan/process-pipelines/internal/config"
	"github.com/jonathan/process-pipelines/internal/db"
	"github.com/jonathan/process-pipelines/internal/pipeline"
	"github.com/jonathan/process-pipelines/internal/server/middleware"
	"github.com/jonathan/process-pipelines/internal/storage"
	"github.com/jonathan/process-pipelines/internal/task"
)

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	db         *db.DB
	runs       *Registry
	broker     *checkpoint.Broker
	jwtService *JWTService
	executor   task.Executor
	store      storage.Persister
	recorder   pipeline.Recorder
	outputDir  string
	policyFile string
}

// Config holds server configuration
type Config struct {
	Port          int
	DatabaseURL   string
	OutputDir     string
	PolicyFile    string
	MaxActiveRuns int
	// JWT signs reviewer tokens. When nil it is read from the environment.
	JWT *config.JWTConfig
	// Executor performs the runs' tasks.
	Executor task.Executor
	// Store receives invocation payloads and artifacts. When nil the database
	// is used if configured, otherwise memory.
	Store storage.Persister
}

// New creates a new server instance
func New(cfg Config) (*Server, error) {
	if cfg.Executor == nil {
		return nil, fmt.Errorf("an executor is required")
	}

	jwtConfig := cfg.JWT
	if jwtConfig == nil {
		var err error
		jwtConfig, err = config.NewJWTConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to create JWT config: %w", err)
		}
	}

	s := &Server{
		runs:       NewRegistry(cfg.MaxActiveRuns),
		broker:     checkpoint.NewBroker(),
		jwtService: NewJWTService(jwtConfig),
		executor:   cfg.Executor,
		store:      cfg.Store,
		outputDir:  cfg.OutputDir,
		policyFile: cfg.PolicyFile,
	}

	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, err
		}
		s.db = database
		s.recorder = db.NewRecorder(database)
		if s.store == nil {
			s.store = db.NewArtifactStore(database)
		}
	}
	if s.store == nil {
		s.store = storage.NewMemory()
	}

	s.broker.OnRequest = func(req checkpoint.Requested) {
		log.Printf("[checkpoint] run %s waiting on %s (%s)", req.RunID, req.Name, req.ID)
	}

	requireReviewer := middleware.RequireReviewer(s.jwtService.AsTokenValidator())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /runs", s.handleCreateRun)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /runs/{id}/events", s.handleRunEvents)
	mux.HandleFunc("GET /runs/{id}/checkpoints", s.handleListCheckpoints)
	mux.Handle("POST /runs/{id}/checkpoints/{checkpoint_id}/resume", requireReviewer(http.HandlerFunc(s.handleResumeCheckpoint)))
	mux.HandleFunc("POST /runs/{id}/cancel", s.handleCancelRun)

	port := cfg.Port
	if port == 0 {
		port = config.DefaultPort
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.withLogging(s.withCORS(mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // event streams stay open for the life of a run
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for requests
func (s *Server) Start() error {
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.runs.CancelAll()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.Close()
	log.Println("Server stopped")
	return nil
}

// Close releases the database connection.
func (s *Server) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

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
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "database": "disabled"}
	if s.db != nil {
		status["database"] = "ok"
		if err := s.db.Ping(r.Context()); err != nil {
			status["database"] = "unreachable"
		}
	}
	s.jsonResponse(w, http.StatusOK, status)
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

// errorFor writes err with the status HTTPStatus maps it to
func (s *Server) errorFor(w http.ResponseWriter, err error) {
	s.errorResponse(w, HTTPStatus(err), err.Error())
}
