package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sotaro-f/kioku/pkg/model"
	"github.com/sotaro-f/kioku/pkg/usecase/agent"
	"github.com/sotaro-f/kioku/pkg/usecase/thread"
	"github.com/sotaro-f/kioku/pkg/utils/logging"
)

// Server exposes the agentic chat flow and thread management over HTTP
type Server struct {
	flow    *agent.Flow
	threads *thread.UseCase
}

func New(flow *agent.Flow, threads *thread.UseCase) *Server {
	return &Server{flow: flow, threads: threads}
}

// Handler builds the chi router with all routes registered
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)

	r.Get("/status", s.handleStatus)

	r.Post("/journal_chat_agent", s.handleChat)
	r.Post("/journal_chat_agent/stream", s.handleChatStream)

	r.Route("/threads", func(r chi.Router) {
		r.Post("/", s.handleCreateThread)
		r.Get("/", s.handleListThreads)
		r.Route("/{threadID}", func(r chi.Router) {
			r.Get("/", s.handleGetThread)
			r.Put("/", s.handleUpdateThread)
			r.Delete("/", s.handleDeleteThread)
			r.Get("/messages", s.handleListMessages)
			r.Post("/messages", s.handleAddMessage)
		})
	})

	return r
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ready"})
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func errorResponse(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrThreadNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrInvalidRequest), errors.Is(err, model.ErrInvalidRole):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		logging.From(ctx).Error("request failed", "error", err)
	}
	jsonResponse(w, status, map[string]string{"detail": err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
