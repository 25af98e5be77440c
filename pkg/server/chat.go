package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/sotaro-f/kioku/pkg/model"
	"github.com/sotaro-f/kioku/pkg/usecase/agent"
	"github.com/sotaro-f/kioku/pkg/utils/logging"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(ctx, w, goerr.Wrap(model.ErrInvalidRequest, "malformed request body"))
		return
	}

	resp, err := s.flow.Run(ctx, &req)
	if err != nil {
		errorResponse(ctx, w, err)
		return
	}

	s.recordExchange(r, &req, resp)
	jsonResponse(w, http.StatusOK, resp)
}

// handleChatStream runs the agentic flow and streams progress as SSE: one
// `search_iteration` event per completed iteration, then a single
// `chat_response` event with the final payload.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		errorResponse(ctx, w, goerr.Wrap(model.ErrInvalidRequest, "malformed request body"))
		return
	}
	if err := req.Validate(); err != nil {
		errorResponse(ctx, w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		errorResponse(ctx, w, goerr.New("streaming unsupported by connection"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	hook := agent.WithIterationHook(func(it model.SearchIteration) {
		writeSSE(w, "search_iteration", it)
		flusher.Flush()
	})

	resp, err := s.flow.Run(ctx, &req, hook)
	if err != nil {
		// Headers are already out; the error travels as a terminal event.
		writeSSE(w, "error", map[string]string{"detail": err.Error()})
		flusher.Flush()
		return
	}

	s.recordExchange(r, &req, resp)
	writeSSE(w, "chat_response", resp)
	flusher.Flush()
}

func writeSSE(w http.ResponseWriter, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}

// recordExchange persists the turn when the request targets a thread.
// Persistence failures degrade to a log line; the answer already exists.
func (s *Server) recordExchange(r *http.Request, req *model.ChatRequest, resp *model.ChatResponse) {
	if req.ThreadID == "" {
		return
	}
	ctx := r.Context()
	if err := s.threads.RecordExchange(ctx, req.ThreadID, req.Query, resp.Response); err != nil {
		logging.From(ctx).Warn("failed to persist chat exchange", "thread_id", req.ThreadID, "error", err)
	}
}
