package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/sotaro-f/kioku/pkg/adapter"
	"github.com/sotaro-f/kioku/pkg/model"
	"github.com/sotaro-f/kioku/pkg/repository"
	"github.com/sotaro-f/kioku/pkg/server"
	"github.com/sotaro-f/kioku/pkg/usecase/agent"
	"github.com/sotaro-f/kioku/pkg/usecase/thread"
	"google.golang.org/genai"
)

type fakeGemini struct{}

func (fakeGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return nil, goerr.New("not used")
}

func (fakeGemini) Embedding(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (f fakeGemini) WithModel(name string) adapter.Gemini { return f }

type donePolicy struct{}

func (donePolicy) Select(ctx context.Context, in agent.SelectInput) (*model.ToolCall, error) {
	return &model.ToolCall{Tool: model.ToolDone, Reasoning: "test"}, nil
}

type cannedChat struct{}

func (cannedChat) Generate(ctx context.Context, messages []model.ChatMessage) (string, error) {
	return "canned answer", nil
}

func newTestServer(t *testing.T) (*server.Server, *repository.Memory) {
	t.Helper()
	repo := repository.NewMemory()
	gt.NoError(t, repo.PutEntry(context.Background(), &model.Entry{
		Date:      "2024-03-11",
		Title:     "03-11-2024",
		Text:      "ran by the river",
		Embedding: firestore.Vector32([]float32{1, 0}),
		EntryType: model.EntryTypeDaily,
	}))

	factory := func(provider, modelName string) (adapter.ChatModel, error) {
		return cannedChat{}, nil
	}
	flow, err := agent.New(repo, fakeGemini{}, factory, agent.WithPolicy(donePolicy{}))
	gt.NoError(t, err)

	return server.New(flow, thread.New(repo)), repo
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	gt.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	gt.Equal(t, rec.Code, http.StatusOK)
	gt.S(t, rec.Body.String()).Contains("ready")
}

func TestChatEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := postJSON(t, h, "/journal_chat_agent", map[string]any{
		"query": "what did I do lately?",
	})
	gt.Equal(t, rec.Code, http.StatusOK)

	var resp model.ChatResponse
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	gt.Equal(t, resp.Response, "canned answer")
	gt.A(t, resp.Docs).Longer(0)
}

func TestChatEndpointRejectsEmptyQuery(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := postJSON(t, h, "/journal_chat_agent", map[string]any{"query": ""})
	gt.Equal(t, rec.Code, http.StatusBadRequest)
}

func TestChatStreamEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := postJSON(t, h, "/journal_chat_agent/stream", map[string]any{
		"query": "what did I do lately?",
	})
	gt.Equal(t, rec.Code, http.StatusOK)
	gt.S(t, rec.Header().Get("Content-Type")).Contains("text/event-stream")

	body := rec.Body.String()
	gt.S(t, body).Contains("event: search_iteration")
	gt.S(t, body).Contains("RECENT_ENTRIES_PRESEED")
	gt.S(t, body).Contains("event: chat_response")
	gt.S(t, body).Contains("canned answer")
}

func TestThreadCRUD(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	// create
	rec := postJSON(t, h, "/threads", map[string]any{"title": "moving plans"})
	gt.Equal(t, rec.Code, http.StatusOK)

	var created model.Thread
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	gt.Equal(t, created.Title, "moving plans")

	// get
	req := httptest.NewRequest(http.MethodGet, "/threads/"+string(created.ID), nil)
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req)
	gt.Equal(t, rec2.Code, http.StatusOK)

	// update
	raw, _ := json.Marshal(map[string]any{"title": "finalized plans"})
	req = httptest.NewRequest(http.MethodPut, "/threads/"+string(created.ID), bytes.NewReader(raw))
	rec3 := httptest.NewRecorder()
	h.ServeHTTP(rec3, req)
	gt.Equal(t, rec3.Code, http.StatusOK)
	gt.S(t, rec3.Body.String()).Contains("finalized plans")

	// add + list messages
	rec4 := postJSON(t, h, "/threads/"+string(created.ID)+"/messages", map[string]any{
		"role": "user", "content": "hello",
	})
	gt.Equal(t, rec4.Code, http.StatusOK)

	req = httptest.NewRequest(http.MethodGet, "/threads/"+string(created.ID)+"/messages", nil)
	rec5 := httptest.NewRecorder()
	h.ServeHTTP(rec5, req)
	gt.Equal(t, rec5.Code, http.StatusOK)
	gt.S(t, rec5.Body.String()).Contains("hello")

	// delete
	req = httptest.NewRequest(http.MethodDelete, "/threads/"+string(created.ID), nil)
	rec6 := httptest.NewRecorder()
	h.ServeHTTP(rec6, req)
	gt.Equal(t, rec6.Code, http.StatusOK)

	// gone now
	req = httptest.NewRequest(http.MethodGet, "/threads/"+string(created.ID), nil)
	rec7 := httptest.NewRecorder()
	h.ServeHTTP(rec7, req)
	gt.Equal(t, rec7.Code, http.StatusNotFound)
}

func TestThreadNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/threads/does-not-exist", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	gt.Equal(t, rec.Code, http.StatusNotFound)
}

func TestChatPersistsThreadExchange(t *testing.T) {
	srv, repo := newTestServer(t)
	h := srv.Handler()

	rec := postJSON(t, h, "/threads", map[string]any{"title": "t"})
	var created model.Thread
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = postJSON(t, h, "/journal_chat_agent", map[string]any{
		"query":     "remember this",
		"thread_id": created.ID,
	})
	gt.Equal(t, rec.Code, http.StatusOK)

	msgs, err := repo.ListMessages(context.Background(), created.ID)
	gt.NoError(t, err)
	gt.A(t, msgs).Length(2)
	gt.Equal(t, msgs[0].Role, model.RoleUser)
	gt.Equal(t, msgs[0].Content, "remember this")
	gt.Equal(t, msgs[1].Role, model.RoleAssistant)
}
