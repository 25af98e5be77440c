package model

import (
	"github.com/m-mizutani/goerr/v2"
)

var ErrInvalidRequest = goerr.New("invalid chat request")

const DefaultTopK = 5

// HistoryMessage is a prior chat turn supplied inline with a request, used
// for temporary chats that have no persisted thread.
type HistoryMessage struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// ChatRequest is the inbound shape of an agentic chat call.
type ChatRequest struct {
	Query          string           `json:"query"`
	TopK           int              `json:"top_k"`
	Provider       string           `json:"provider"`
	Model          string           `json:"model"`
	ThreadID       ThreadID         `json:"thread_id,omitempty"`
	MessageHistory []HistoryMessage `json:"message_history,omitempty"`

	// ExistingDocs short-circuits retrieval: when supplied, these are used
	// verbatim as context and the agent loop is skipped.
	ExistingDocs []*RetrievedDoc `json:"existing_docs,omitempty"`
}

// Validate checks the request shape and applies defaults.
func (r *ChatRequest) Validate() error {
	if r.Query == "" {
		return goerr.Wrap(ErrInvalidRequest, "query is required")
	}
	if r.TopK < 0 {
		return goerr.Wrap(ErrInvalidRequest, "top_k must be positive", goerr.V("top_k", r.TopK))
	}
	if r.TopK == 0 {
		r.TopK = DefaultTopK
	}
	return nil
}

// ChatResponse is returned to the frontend: the synthesized answer plus the
// deduplicated evidence list in accumulated order.
type ChatResponse struct {
	Response string          `json:"response"`
	Docs     []*RetrievedDoc `json:"docs"`
	ThreadID ThreadID        `json:"thread_id,omitempty"`
}
