package mcp

import (
	"context"
	"encoding/json"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sotaro-f/kioku/pkg/model"
	"github.com/sotaro-f/kioku/pkg/repository"
)

const defaultLimit = 5

// Embedder turns a query string into a vector for similarity search
type Embedder interface {
	Embedding(ctx context.Context, text string) ([]float32, error)
}

// Server exposes the journal retrieval tools over MCP so external agents
// can query the index directly.
type Server struct {
	repo     repository.Repository
	embedder Embedder
}

func New(repo repository.Repository, embedder Embedder) *Server {
	return &Server{repo: repo, embedder: embedder}
}

// Run serves the tools over stdio until the context is canceled
func (s *Server) Run(ctx context.Context) error {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "kioku-journal",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_journal",
		Description: "Semantic similarity search over journal entries",
	}, s.searchJournal)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "recent_entries",
		Description: "Most recent journal entries by date",
	}, s.recentEntries)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "date_range_search",
		Description: "Journal entries between two dates (YYYY-MM-DD, inclusive)",
	}, s.dateRangeSearch)

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return goerr.Wrap(err, "mcp server failed")
	}
	return nil
}

type searchJournalParams struct {
	Query string `json:"query" jsonschema:"The search query"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of entries to return (default 5)"`
}

func (s *Server) searchJournal(ctx context.Context, req *mcp.CallToolRequest, params *searchJournalParams) (*mcp.CallToolResult, any, error) {
	if params.Query == "" {
		return nil, nil, goerr.New("query is required")
	}

	embedding, err := s.embedder.Embedding(ctx, params.Query)
	if err != nil {
		return nil, nil, err
	}

	docs, err := s.repo.SearchSimilarEntries(ctx, firestore.Vector32(embedding), limitOrDefault(params.Limit))
	if err != nil {
		return nil, nil, err
	}

	entries := make([]*model.Entry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, doc.Entry)
	}
	return entriesResult(entries)
}

type recentEntriesParams struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of entries to return (default 5)"`
}

func (s *Server) recentEntries(ctx context.Context, req *mcp.CallToolRequest, params *recentEntriesParams) (*mcp.CallToolResult, any, error) {
	entries, err := s.repo.RecentEntries(ctx, limitOrDefault(params.Limit))
	if err != nil {
		return nil, nil, err
	}
	return entriesResult(entries)
}

type dateRangeParams struct {
	StartDate string `json:"start_date" jsonschema:"Range start, YYYY-MM-DD inclusive"`
	EndDate   string `json:"end_date" jsonschema:"Range end, YYYY-MM-DD inclusive"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Maximum number of entries to return (default 5)"`
}

func (s *Server) dateRangeSearch(ctx context.Context, req *mcp.CallToolRequest, params *dateRangeParams) (*mcp.CallToolResult, any, error) {
	if params.StartDate == "" || params.EndDate == "" {
		return nil, nil, goerr.New("start_date and end_date are required")
	}

	entries, err := s.repo.EntriesByDateRange(ctx, params.StartDate, params.EndDate, limitOrDefault(params.Limit))
	if err != nil {
		return nil, nil, err
	}
	return entriesResult(entries)
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return limit
}

func entriesResult(entries []*model.Entry) (*mcp.CallToolResult, any, error) {
	if len(entries) == 0 {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "No entries found."}},
		}, nil, nil
	}

	stripped := make([]*model.Entry, 0, len(entries))
	for _, e := range entries {
		stripped = append(stripped, e.WithoutEmbedding())
	}

	payload, err := json.MarshalIndent(stripped, "", "  ")
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to encode entries")
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(payload)}},
	}, nil, nil
}
