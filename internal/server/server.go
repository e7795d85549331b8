// Package server exposes the HTTP surface around the orchestration core.
// Transport concerns only: routing, JSON envelopes, CORS. All analysis
// semantics live in the orchestrator and its collaborators.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"fcvanalyst/internal/dataset"
	"fcvanalyst/internal/executor"
	"fcvanalyst/internal/indicator"
	"fcvanalyst/internal/llm"
	"fcvanalyst/internal/orchestrator"
	"fcvanalyst/internal/profile"
)

// DefaultSession is the session id used when a request names none.
const DefaultSession = "default"

// Server wires the HTTP routes to the orchestration core.
type Server struct {
	mu       sync.RWMutex
	orch     *orchestrator.Orchestrator
	engine   executor.Engine
	store    dataset.Store
	enricher *indicator.Service
	log      *zap.Logger
}

// New creates a server around an orchestrator and its collaborators.
func New(client llm.Client, engine executor.Engine, store dataset.Store, enricher *indicator.Service, log *zap.Logger) *Server {
	return &Server{
		orch:     orchestrator.New(client, engine, store, enricher, log),
		engine:   engine,
		store:    store,
		enricher: enricher,
		log:      log,
	}
}

// Handler returns the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/data/upload", s.handleUpload)
	mux.HandleFunc("POST /api/data/load-path", s.handleLoadPath)
	mux.HandleFunc("POST /api/data/load-url", s.handleLoadURL)
	mux.HandleFunc("GET /api/data/schema", s.handleSchema)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/sessions", s.handleSessions)
	mux.HandleFunc("DELETE /api/session/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/config", s.handleConfig)
	// SQL ingestion lives in an external collaborator; the routes are held
	// so clients get a stable answer instead of a 404.
	mux.HandleFunc("POST /api/data/load-sql", s.handleNotImplemented)
	mux.HandleFunc("POST /api/sql/query", s.handleNotImplemented)
	return cors.AllowAll().Handler(mux)
}

func (s *Server) orchestratorRef() *orchestrator.Orchestrator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orch
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   "fcvanalyst",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

type loadResponse struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message"`
	Schema    *profile.Snapshot `json:"schema,omitempty"`
	SessionID string            `json:"session_id"`
	Warnings  []string          `json:"warnings,omitempty"`
}

func (s *Server) storeFrame(w http.ResponseWriter, sessionID string, frame *dataset.Frame, message string, warnings []string) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	s.store.Put(sessionID, frame)
	writeJSON(w, http.StatusOK, loadResponse{
		Success:   true,
		Message:   message,
		Schema:    profile.Build(frame),
		SessionID: sessionID,
		Warnings:  warnings,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("error loading data: %w", err))
		return
	}
	defer file.Close()
	frame, err := dataset.ReadCSV(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("error loading data: %w", err))
		return
	}
	sessionID := r.FormValue("session_id")
	if sessionID == "" {
		sessionID = DefaultSession
	}
	s.storeFrame(w, sessionID, frame, fmt.Sprintf("Successfully loaded %d rows", frame.NumRows()), nil)
}

func (s *Server) handleLoadPath(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path      string `json:"path"`
		SessionID string `json:"session_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Path == "" {
		req.Path = os.Getenv("ACLED_DEFAULT_PATH")
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, errors.New("no path provided and no default configured"))
		return
	}
	frame, err := dataset.LoadPath(req.Path)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if req.SessionID == "" {
		req.SessionID = DefaultSession
	}
	s.storeFrame(w, req.SessionID, frame, fmt.Sprintf("Successfully loaded %d rows from %s", frame.NumRows(), req.Path), nil)
}

func (s *Server) handleLoadURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URLs      []string `json:"urls"`
		SessionID string   `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	frame, warnings, err := dataset.LoadURLs(nil, req.URLs)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("error loading data: %w", err))
		return
	}
	// A blank session id gets a fresh one so ad hoc loads never clobber
	// the default dataset; the response names the session to query.
	s.storeFrame(w, req.SessionID, frame,
		fmt.Sprintf("Successfully loaded %d rows from %d file(s)", frame.NumRows(), len(req.URLs)), warnings)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = DefaultSession
	}
	frame, ok := s.store.Get(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("no data loaded"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schema": profile.Build(frame)})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.SessionID == "" {
		req.SessionID = DefaultSession
	}
	resp, err := s.orchestratorRef().Chat(r.Context(), req)
	switch {
	case errors.Is(err, orchestrator.ErrNoData):
		writeError(w, http.StatusNotFound, errors.New("no data loaded; please upload data first"))
	case err != nil:
		s.log.Error("chat request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Errorf("error processing chat: %w", err))
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	type session struct {
		ID       string `json:"id"`
		HasData  bool   `json:"has_data"`
		RowCount int    `json:"row_count"`
	}
	var out []session
	for _, id := range s.store.List() {
		frame, ok := s.store.Get(id)
		entry := session{ID: id, HasData: ok}
		if ok {
			entry.RowCount = frame.NumRows()
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.store.Delete(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Session %s deleted", id),
	})
}

func (s *Server) handleNotImplemented(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotImplemented, map[string]string{
		"detail": "SQL ingestion is not available in this deployment",
	})
}

// handleConfig swaps the completion provider at runtime. The new client is
// built once here; subsequent chats use it without re-dispatching.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider      string `json:"provider"`
		APIKey        string `json:"api_key"`
		Model         string `json:"model"`
		AzureEndpoint string `json:"azure_endpoint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	client, err := llm.NewClientFromConfig(r.Context(), llm.ProviderConfig{
		Provider:      llm.Provider(req.Provider),
		APIKey:        req.APIKey,
		Model:         req.Model,
		AzureEndpoint: req.AzureEndpoint,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.mu.Lock()
	s.orch = orchestrator.New(client, s.engine, s.store, s.enricher, s.log)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Configuration updated"})
}
