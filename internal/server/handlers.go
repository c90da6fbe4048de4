package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"qbank/config"
	"qbank/internal/domain"
	"qbank/internal/port"
)

// Version is reported by the index endpoint.
const Version = "1.0.0"

// Engine is what the HTTP handlers need from the retrieval engine.
type Engine interface {
	port.Searcher
	port.StatsProvider
	Ask(ctx context.Context, query string, k int) (*domain.Answer, error)
	Snapshot() domain.Stats
	Ready() bool
}

// Handler serves the question bank HTTP API.
type Handler struct {
	engine Engine
	cfg    config.RetrieveConfig
	logger *zap.Logger
}

// NewHandler creates a new Handler
func NewHandler(engine Engine, cfg config.RetrieveConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		engine: engine,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "http")),
	}
}

// SearchResponse is the body of GET /search.
type SearchResponse struct {
	Query        string                `json:"query"`
	Results      []domain.ResultRecord `json:"results"`
	TotalResults int                   `json:"total_results"`
	SystemStats  domain.Stats          `json:"system_stats"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message string `json:"message" validate:"required"`
	K       *int   `json:"k,omitempty"`
}

// ChatResponse is the body of a POST /chat reply.
type ChatResponse struct {
	UserMessage  string                `json:"user_message"`
	Answer       *string               `json:"answer"`
	Match        *domain.ResultRecord  `json:"match"`
	Alternatives []domain.ResultRecord `json:"alternatives"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status         string `json:"status"`
	Initialized    bool   `json:"rag_system_initialized"`
	TotalQuestions int    `json:"total_questions,omitempty"`
}

type endpoint struct {
	Method string   `json:"method"`
	Path   string   `json:"path"`
	Params []string `json:"params,omitempty"`
}

// HandleIndex handles GET /
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	_ = WriteJSON(w, http.StatusOK, map[string]any{
		"name":    "Bengali Question Bank API",
		"version": Version,
		"endpoints": map[string]endpoint{
			"search": {Method: http.MethodGet, Path: "/search", Params: []string{"query", "k"}},
			"ask":    {Method: http.MethodGet, Path: "/ask", Params: []string{"query", "k"}},
			"chat":   {Method: http.MethodPost, Path: "/chat", Params: []string{"message", "k"}},
			"stats":  {Method: http.MethodGet, Path: "/stats"},
			"health": {Method: http.MethodGet, Path: "/health"},
		},
	})
}

// HandleSearch handles GET /search
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if !h.requireReady(w) {
		return
	}
	query, k, err := h.queryParams(r, h.cfg.DefaultK, h.cfg.MaxK)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	results, err := h.engine.Search(r.Context(), query, k)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	stats, err := h.engine.Stats()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, SearchResponse{
		Query:        query,
		Results:      results,
		TotalResults: len(results),
		SystemStats:  stats,
	})
}

// HandleAsk handles GET /ask
func (h *Handler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	if !h.requireReady(w) {
		return
	}
	query, k, err := h.queryParams(r, h.cfg.AskK, h.cfg.AskMaxK)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ans, err := h.engine.Ask(r.Context(), query, k)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, ans)
}

// HandleChat handles POST /chat
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if !h.requireReady(w) {
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = WriteError(w, http.StatusBadRequest, "Invalid request body", map[string]any{"error": err.Error()})
		return
	}
	if err := validateStruct(req); err != nil {
		h.writeError(w, r, err)
		return
	}
	k := h.cfg.AskK
	if req.K != nil {
		k = *req.K
		if err := validateK(k, h.cfg.MaxK); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	ans, err := h.engine.Ask(r.Context(), req.Message, k)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, ChatResponse{
		UserMessage:  req.Message,
		Answer:       ans.Answer,
		Match:        ans.Match,
		Alternatives: ans.Alternatives,
	})
}

// HandleStats handles GET /stats
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, stats)
}

// HandleHealth handles GET /health
// Always 200 while the process is up.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = WriteJSON(w, http.StatusOK, HealthResponse{
		Status:         "healthy",
		Initialized:    h.engine.Ready(),
		TotalQuestions: h.engine.Snapshot().TotalQuestions,
	})
}

// HandleReadiness handles GET /health/ready
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	if !h.engine.Ready() {
		_ = WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) requireReady(w http.ResponseWriter) bool {
	if h.engine.Ready() {
		return true
	}
	_ = WriteError(w, http.StatusServiceUnavailable, "engine not initialized", nil)
	return false
}

// queryParams reads the query and k parameters, applying defaultK when k is
// absent.
func (h *Handler) queryParams(r *http.Request, defaultK, maxK int) (string, int, error) {
	params := struct {
		Query string `json:"query" validate:"required"`
	}{Query: strings.TrimSpace(r.URL.Query().Get("query"))}
	if err := validateStruct(params); err != nil {
		return "", 0, err
	}

	k := defaultK
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return "", 0, &ValidationError{
				Message: "Validation failed",
				Fields:  map[string]string{"k": "k must be an integer"},
			}
		}
		k = n
	}
	if err := validateK(k, maxK); err != nil {
		return "", 0, err
	}
	return r.URL.Query().Get("query"), k, nil
}

// writeError maps engine and validation errors to HTTP responses.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		details := make(map[string]any, len(verr.Fields))
		for k, v := range verr.Fields {
			details[k] = v
		}
		_ = WriteError(w, http.StatusBadRequest, verr.Message, details)
	case errors.Is(err, domain.ErrNotReady):
		_ = WriteError(w, http.StatusServiceUnavailable, "engine not initialized", nil)
	case errors.Is(err, domain.ErrInvalidArgument):
		_ = WriteError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		_ = WriteError(w, http.StatusInternalServerError, err.Error(), nil)
	}
}
