package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/sotaro-f/kioku/pkg/model"
)

type createThreadRequest struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags,omitempty"`
}

type updateThreadRequest struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags,omitempty"`
}

type addMessageRequest struct {
	Role    model.Role `json:"role"`
	Content string     `json:"content"`
}

func (s *Server) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createThreadRequest
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(ctx, w, goerr.Wrap(model.ErrInvalidRequest, "malformed request body"))
		return
	}

	th, err := s.threads.Create(ctx, req.Title, req.Tags)
	if err != nil {
		errorResponse(ctx, w, err)
		return
	}
	jsonResponse(w, http.StatusOK, th)
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := s.threads.List(r.Context())
	if err != nil {
		errorResponse(r.Context(), w, err)
		return
	}
	if threads == nil {
		threads = []*model.Thread{}
	}
	jsonResponse(w, http.StatusOK, threads)
}

func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	id := model.ThreadID(chi.URLParam(r, "threadID"))

	th, _, err := s.threads.Get(r.Context(), id)
	if err != nil {
		errorResponse(r.Context(), w, err)
		return
	}
	jsonResponse(w, http.StatusOK, th)
}

func (s *Server) handleUpdateThread(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := model.ThreadID(chi.URLParam(r, "threadID"))

	var req updateThreadRequest
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(ctx, w, goerr.Wrap(model.ErrInvalidRequest, "malformed request body"))
		return
	}

	th, err := s.threads.Update(ctx, id, req.Title, req.Tags)
	if err != nil {
		errorResponse(ctx, w, err)
		return
	}
	jsonResponse(w, http.StatusOK, th)
}

func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	id := model.ThreadID(chi.URLParam(r, "threadID"))

	if err := s.threads.Delete(r.Context(), id); err != nil {
		errorResponse(r.Context(), w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "thread deleted"})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id := model.ThreadID(chi.URLParam(r, "threadID"))

	_, msgs, err := s.threads.Get(r.Context(), id)
	if err != nil {
		errorResponse(r.Context(), w, err)
		return
	}
	if msgs == nil {
		msgs = []*model.Message{}
	}
	jsonResponse(w, http.StatusOK, msgs)
}

func (s *Server) handleAddMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := model.ThreadID(chi.URLParam(r, "threadID"))

	var req addMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(ctx, w, goerr.Wrap(model.ErrInvalidRequest, "malformed request body"))
		return
	}

	msg, err := s.threads.AppendMessage(ctx, id, req.Role, req.Content)
	if err != nil {
		errorResponse(ctx, w, err)
		return
	}
	jsonResponse(w, http.StatusOK, msg)
}
