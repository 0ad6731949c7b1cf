// Package server exposes the chat pipeline over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bizchat-ai/bizchat/internal/agent"
	"github.com/bizchat-ai/bizchat/internal/bizdata"
	apperr "github.com/bizchat-ai/bizchat/internal/errors"
	"github.com/bizchat-ai/bizchat/internal/store"
)

// Server is the HTTP surface over the agent.
type Server struct {
	agent        *agent.Agent
	store        *store.Store
	log          *zap.Logger
	maxBodyBytes int64
}

// Config configures the Server.
type Config struct {
	Agent        *agent.Agent
	Store        *store.Store
	Logger       *zap.Logger
	MaxBodyBytes int64
}

// New creates the Server and its route table.
func New(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 16 << 20
	}
	return &Server{
		agent:        cfg.Agent,
		store:        cfg.Store,
		log:          log,
		maxBodyBytes: maxBody,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat/", s.handleSubmit)
	mux.HandleFunc("GET /api/chat/status/{id}", s.handleStatus)
	mux.HandleFunc("GET /api/chat/history", s.handleHistory)
	mux.HandleFunc("GET /api/chat/history/{id}", s.handleHistoryByID)
	mux.HandleFunc("GET /api/llm/health", s.handleHealth)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	return s.logRequests(mux)
}

// ============================================================
// Request / Response Shapes
// ============================================================

type chatRequest struct {
	Message string           `json:"message"`
	Context *bizdata.Context `json:"context,omitempty"`
	Files   []chatFile       `json:"files,omitempty"`
}

type chatFile struct {
	Name    string `json:"name"`
	MIME    string `json:"mime_type"`
	Content string `json:"content"`
}

type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type statusResponse struct {
	RequestID    string          `json:"request_id"`
	Status       store.Status    `json:"status"`
	Reply        string          `json:"reply,omitempty"`
	Action       json.RawMessage `json:"action,omitempty"`
	Error        string          `json:"error,omitempty"`
	ProcessingMS int64           `json:"processing_ms,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type historyResponse struct {
	RequestID   string          `json:"request_id"`
	UserMessage string          `json:"user_message"`
	Reply       string          `json:"reply"`
	Action      json.RawMessage `json:"action,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, apperr.User(apperr.CodeRequestTooLarge, "request body too large").WithStatus(413))
			return
		}
		s.writeError(w, apperr.User(apperr.CodeRequestMalformed, "request body is not valid JSON").WithStatus(400))
		return
	}

	files := make([]agent.Attachment, 0, len(req.Files))
	for _, f := range req.Files {
		files = append(files, agent.Attachment{Name: f.Name, MIME: f.MIME, Content: f.Content})
	}

	sub, err := s.agent.Submit(r.Context(), req.Message, req.Context, files)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, envelope{Success: true, Data: map[string]any{
		"request_id": sub.RequestID,
		"status":     sub.Status,
	}})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	req, err := s.agent.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := statusResponse{
		RequestID: req.ID,
		Status:    req.Status,
		CreatedAt: req.CreatedAt,
	}
	switch req.Status {
	case store.StatusCompleted:
		resp.Reply = req.Reply
		resp.ProcessingMS = req.ProcessingMS
		if req.ActionJSON != "" {
			resp.Action = json.RawMessage(req.ActionJSON)
		}
	case store.StatusFailed:
		resp.Error = req.ErrorText
		resp.ProcessingMS = req.ProcessingMS
	}

	s.writeJSON(w, http.StatusOK, envelope{Success: true, Data: resp})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	entries, err := s.agent.History(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]historyResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toHistoryResponse(e))
	}
	s.writeJSON(w, http.StatusOK, envelope{Success: true, Data: out})
}

func (s *Server) handleHistoryByID(w http.ResponseWriter, r *http.Request) {
	entry, err := s.agent.HistoryByRequest(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{Success: true, Data: toHistoryResponse(*entry)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.agent.Health(r.Context()); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, envelope{
			Success: false,
			Error:   apperr.UserMessage(err),
			Code:    apperr.CodeModelUnavailable,
		})
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]string{"status": "ok"}})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap, err := s.agent.Metrics().Collect(r.Context(), s.store.DB())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{Success: true, Data: snap})
}

func toHistoryResponse(e store.HistoryEntry) historyResponse {
	resp := historyResponse{
		RequestID:   e.RequestID,
		UserMessage: e.UserMessage,
		Reply:       e.Reply,
		CreatedAt:   e.CreatedAt,
	}
	if e.ActionJSON != "" {
		resp.Action = json.RawMessage(e.ActionJSON)
	}
	return resp
}

// ============================================================
// Plumbing
// ============================================================

func (s *Server) writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("cannot encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := apperr.GetHTTPStatus(err)
	if status == 0 {
		switch apperr.GetCategory(err) {
		case apperr.CategoryUser:
			status = http.StatusBadRequest
		case apperr.CategoryTemporary:
			status = http.StatusServiceUnavailable
		default:
			status = http.StatusInternalServerError
		}
	}

	var appErr *apperr.AppError
	code := ""
	if errors.As(err, &appErr) {
		code = appErr.Code
	}

	s.writeJSON(w, status, envelope{
		Success: false,
		Error:   apperr.UserMessage(err),
		Code:    code,
	})
}

// logRequests logs each request with its outcome status.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.log.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", sanitizePath(r.URL.Path)),
			zap.Int("status", rw.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// sanitizePath keeps log lines bounded even for hostile paths.
func sanitizePath(p string) string {
	if len(p) > 200 {
		p = p[:200]
	}
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, p)
}
