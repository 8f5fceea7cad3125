// Package server exposes the conversation engine over a small JSON HTTP
// API. The transport owns session lifecycle; the engine stays
// transport-agnostic.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"ragchat/internal/domain"
	"ragchat/internal/port"
)

// ConversationEngine is the transport-facing surface of one session's
// engine. *usecase.Engine satisfies it.
type ConversationEngine interface {
	StartConversation() string
	Respond(ctx context.Context, userText string) (*domain.ChatResponse, error)
	ChangeModel(ctx context.Context, name string, temperature float64) error
	ClearMemory()
}

// Config holds options for creating a Server.
type Config struct {
	// SessionTTL is how long an idle session survives. Defaults to 30m.
	SessionTTL time.Duration
}

// Server routes the HTTP API. One engine is created per session via the
// factory; the model catalog is shared because listing models needs no
// session state.
type Server struct {
	registry *sessionRegistry
	catalog  port.ModelCatalog
	log      *slog.Logger
}

// New creates a Server. factory builds a fresh engine per session.
func New(factory func() ConversationEngine, catalog port.ModelCatalog, logger *slog.Logger, cfg Config) *Server {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		registry: newSessionRegistry(factory, cfg.SessionTTL),
		catalog:  catalog,
		log:      logger,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/start-conversation", s.handleStartConversation)
	mux.HandleFunc("/api/send-message", s.handleSendMessage)
	mux.HandleFunc("/api/available-models", s.handleAvailableModels)
	mux.HandleFunc("/api/select-model", s.handleSelectModel)
	mux.HandleFunc("/api/clear-memory", s.handleClearMemory)
	return mux
}

// Close stops the session expiry loop.
func (s *Server) Close() {
	s.registry.close()
}

// --- request/response bodies ---

type startConversationRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

type startConversationResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type sendMessageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chunkPayload struct {
	Content string `json:"content"`
	URL     string `json:"url"`
}

type sendMessageResponse struct {
	Answer         string         `json:"answer"`
	RelevantChunks []chunkPayload `json:"relevant_chunks"`
	TokenUsage     int            `json:"token_usage"`
}

type availableModelsResponse struct {
	Models []string `json:"models"`
}

type selectModelRequest struct {
	SessionID   string  `json:"session_id"`
	ModelName   string  `json:"model_name"`
	Temperature float64 `json:"temperature"`
}

type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// --- handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStartConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req startConversationRequest
	// An empty body is fine: it means "give me a new session".
	_ = json.NewDecoder(r.Body).Decode(&req)

	sess, ok := s.registry.lookup(req.SessionID)
	if !ok {
		sess = s.registry.create()
	}

	sess.mu.Lock()
	opening := sess.engine.StartConversation()
	sess.mu.Unlock()

	writeJSON(w, http.StatusOK, startConversationResponse{
		SessionID: sess.id,
		Message:   opening,
	})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, domain.Ef(domain.KindValidation, "invalid JSON body: %v", err))
		return
	}

	sess, ok := s.registry.lookup(req.SessionID)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown session", Kind: "not_found"})
		return
	}

	sess.mu.Lock()
	resp, err := sess.engine.Respond(r.Context(), req.Message)
	sess.mu.Unlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	chunks := make([]chunkPayload, 0, len(resp.Passages))
	for _, p := range resp.Passages {
		chunks = append(chunks, chunkPayload{Content: p.Content, URL: p.Source})
	}

	writeJSON(w, http.StatusOK, sendMessageResponse{
		Answer:         resp.Answer,
		RelevantChunks: chunks,
		TokenUsage:     resp.Usage.TotalTokens,
	})
}

func (s *Server) handleAvailableModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	models, err := s.catalog.ListModels(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, availableModelsResponse{Models: models})
}

func (s *Server) handleSelectModel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req selectModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, domain.Ef(domain.KindValidation, "invalid JSON body: %v", err))
		return
	}

	sess, ok := s.registry.lookup(req.SessionID)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown session", Kind: "not_found"})
		return
	}

	sess.mu.Lock()
	err := sess.engine.ChangeModel(r.Context(), req.ModelName, req.Temperature)
	sess.mu.Unlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Success: true,
		Message: "model " + req.ModelName + " selected",
	})
}

func (s *Server) handleClearMemory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req startConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, domain.Ef(domain.KindValidation, "invalid JSON body: %v", err))
		return
	}

	sess, ok := s.registry.lookup(req.SessionID)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown session", Kind: "not_found"})
		return
	}

	sess.mu.Lock()
	sess.engine.ClearMemory()
	sess.mu.Unlock()

	writeJSON(w, http.StatusOK, statusResponse{Success: true, Message: "memory cleared"})
}

// writeError maps the error taxonomy onto HTTP statuses. Unclassified
// errors are logged with full context and surfaced generically.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)

	var status int
	message := err.Error()

	switch kind {
	case domain.KindValidation:
		status = http.StatusBadRequest
	case domain.KindRetrievalUnavailable, domain.KindGenerationFailure:
		status = http.StatusBadGateway
		s.log.Warn("backend failure", "kind", kind.String(), "path", r.URL.Path, "err", err)
	default:
		status = http.StatusInternalServerError
		message = "internal error"
		s.log.Error("unexpected failure", "path", r.URL.Path, "err", err)
	}

	writeJSON(w, status, errorResponse{Error: message, Kind: kind.String()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		slog.Debug("write response", "err", err)
	}
}
