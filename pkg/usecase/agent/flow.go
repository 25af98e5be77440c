package agent

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/sotaro-f/kioku/pkg/adapter"
	"github.com/sotaro-f/kioku/pkg/model"
	"github.com/sotaro-f/kioku/pkg/repository"
	"github.com/sotaro-f/kioku/pkg/utils/logging"
)

const (
	// RecentPreseedCount entries are folded in unconditionally before the
	// loop starts, a deliberate bias toward recency for a journal corpus.
	RecentPreseedCount = 4

	// MaxAgentIterations is a hard ceiling on policy calls per session,
	// not a soft hint.
	MaxAgentIterations = 5

	preseedReasoning = "Preseeding recent entries to guarantee temporal context"
	fallbackReason   = "Loop failed with no evidence; direct vector search on the raw query"
)

// Embedder turns text into a fixed-dimension vector
type Embedder interface {
	Embedding(ctx context.Context, text string) ([]float32, error)
}

// Flow orchestrates the agentic retrieval-and-synthesis loop. Each request
// runs sequentially: policy call, tool execution, and store mutation of one
// iteration strictly happen before the next iteration's policy call.
type Flow struct {
	repo        repository.Repository
	embedder    Embedder
	policy      Policy
	synthesizer *Synthesizer

	maxIterations int
	preseedCount  int
}

type Option func(*Flow)

// WithPolicy replaces the default Gemini-backed tool selection policy
func WithPolicy(p Policy) Option {
	return func(f *Flow) {
		f.policy = p
	}
}

// WithMaxIterations overrides the iteration budget
func WithMaxIterations(n int) Option {
	return func(f *Flow) {
		f.maxIterations = n
	}
}

// WithPreseedCount overrides the recency preseed batch size
func WithPreseedCount(n int) Option {
	return func(f *Flow) {
		f.preseedCount = n
	}
}

// New creates an agent flow. The Gemini client drives the tool selection
// policy and embeddings; the chat model factory resolves the per-request
// synthesis provider.
func New(repo repository.Repository, gemini adapter.Gemini, models adapter.ChatModelFactory, opts ...Option) (*Flow, error) {
	policy, err := NewPolicy(gemini)
	if err != nil {
		return nil, err
	}

	f := &Flow{
		repo:          repo,
		embedder:      gemini,
		policy:        policy,
		synthesizer:   NewSynthesizer(models),
		maxIterations: MaxAgentIterations,
		preseedCount:  RecentPreseedCount,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

type runConfig struct {
	iterationHook func(model.SearchIteration)
}

type RunOption func(*runConfig)

// WithIterationHook registers a callback invoked after each completed
// iteration, before the next begins. Used by the streaming surface.
func WithIterationHook(fn func(model.SearchIteration)) RunOption {
	return func(c *runConfig) {
		c.iterationHook = fn
	}
}

// Run executes the full agentic flow for one chat request and returns the
// synthesized answer plus the deduplicated evidence list. Every failure
// path short of synthesis itself still produces an answer.
func (f *Flow) Run(ctx context.Context, req *model.ChatRequest, opts ...RunOption) (*model.ChatResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	history := f.loadChatHistory(ctx, req)
	state := NewSearchState()

	var contextStr string
	var docs []*model.RetrievedDoc

	if len(req.ExistingDocs) > 0 {
		// Caller-controlled override: reuse prior results verbatim and
		// skip retrieval entirely.
		contextStr = existingDocsContext(req.ExistingDocs)
		docs = req.ExistingDocs
	} else {
		f.runLoop(ctx, req, state, &cfg)
		contextStr = state.ContextString()
		docs = state.Docs()
	}

	answer, err := f.synthesizer.Synthesize(ctx, req, history, contextStr, state.TraceString())
	if err != nil {
		return nil, goerr.Wrap(err, "synthesis failed")
	}

	return &model.ChatResponse{
		Response: answer,
		Docs:     docs,
		ThreadID: req.ThreadID,
	}, nil
}

// runLoop drives the state machine: preseed, up to maxIterations policy
// calls, and the one-shot empty-store fallback on error. It never returns
// an error; degraded evidence is preferred over a hard failure.
func (f *Flow) runLoop(ctx context.Context, req *model.ChatRequest, state *SearchState, cfg *runConfig) {
	logger := logging.From(ctx)

	// Iteration 0: unconditional recency preseed.
	recent, err := f.repo.RecentEntries(ctx, f.preseedCount)
	if err != nil {
		logger.Warn("recency preseed failed", "error", err)
	}
	preseeded := wrapEntries(recent)
	added := state.AddEntries(preseeded)
	f.emit(cfg, state.RecordIteration(0, model.ToolRecentPreseed, preseedReasoning, "", len(preseeded), added))

	for i := 1; i <= f.maxIterations; i++ {
		call, err := f.policy.Select(ctx, SelectInput{
			Query:         req.Query,
			Context:       state.ContextString(),
			Trace:         state.TraceString(),
			Iteration:     i,
			MaxIterations: f.maxIterations,
		})
		if err != nil {
			logger.Warn("tool selection failed, aborting loop", "iteration", i, "error", err)
			f.fallback(ctx, req, state, cfg, i)
			return
		}

		if call.Tool == model.ToolDone {
			f.emit(cfg, state.RecordIteration(i, model.ToolDone, call.Reasoning, "", 0, 0))
			return
		}

		results, err := f.executeTool(ctx, call, req.TopK)
		if err != nil {
			logger.Warn("tool execution failed, aborting loop", "iteration", i, "tool", call.Tool, "error", err)
			f.fallback(ctx, req, state, cfg, i)
			return
		}

		added := state.AddEntries(results)
		f.emit(cfg, state.RecordIteration(i, call.Tool, call.Reasoning, call.Query, len(results), added))
		logger.Debug("search iteration completed",
			"iteration", i, "tool", call.Tool, "results", len(results), "new", added)
	}
	// Budget exhausted without DONE; proceed to synthesis regardless.
}

// fallback runs a one-shot vector search on the raw user query, but only
// when the loop failed before accumulating any evidence. Its own failures
// are swallowed; the session proceeds to synthesis either way.
func (f *Flow) fallback(ctx context.Context, req *model.ChatRequest, state *SearchState, cfg *runConfig, iteration int) {
	if !state.Empty() {
		return
	}

	logger := logging.From(ctx)

	embedding, err := f.embedder.Embedding(ctx, req.Query)
	if err != nil {
		logger.Warn("fallback embedding failed", "error", err)
		return
	}

	results, err := f.repo.SearchSimilarEntries(ctx, firestore.Vector32(embedding), req.TopK)
	if err != nil {
		logger.Warn("fallback vector search failed", "error", err)
		return
	}

	added := state.AddEntries(results)
	f.emit(cfg, state.RecordIteration(iteration, model.ToolVectorSearch, fallbackReason, req.Query, len(results), added))
}

func (f *Flow) emit(cfg *runConfig, it model.SearchIteration) {
	if cfg.iterationHook != nil {
		cfg.iterationHook(it)
	}
}

// loadChatHistory merges persisted thread messages with any inline history
// from the request. Load failures degrade to an empty history; roles that
// fail validation normalize to user.
func (f *Flow) loadChatHistory(ctx context.Context, req *model.ChatRequest) []model.ChatMessage {
	var history []model.ChatMessage

	if req.ThreadID != "" {
		msgs, err := f.repo.ListMessages(ctx, req.ThreadID)
		if err != nil {
			logging.From(ctx).Warn("failed to load thread messages", "thread_id", req.ThreadID, "error", err)
		}
		for _, msg := range msgs {
			role := msg.Role
			if role.Validate() != nil {
				role = model.RoleUser
			}
			history = append(history, model.ChatMessage{Role: role, Content: msg.Content})
		}
	}

	for _, msg := range req.MessageHistory {
		role := model.Role(msg.Sender)
		if role.Validate() != nil {
			role = model.RoleUser
		}
		history = append(history, model.ChatMessage{Role: role, Content: msg.Text})
	}

	return history
}

func existingDocsContext(docs []*model.RetrievedDoc) string {
	s := "Here are the relevant journal entries from our previous conversation:\n"
	for i, doc := range docs {
		s += fmt.Sprintf("Entry %d:\n", i+1)
		s += "  title: " + doc.Entry.Title + "\n"
		s += "  content: " + doc.Entry.Text + "\n\n"
	}
	return s
}
