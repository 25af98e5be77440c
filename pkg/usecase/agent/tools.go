package agent

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/sotaro-f/kioku/pkg/model"
	"github.com/sotaro-f/kioku/pkg/utils/logging"
)

// executeTool dispatches a policy decision to the matching retrieval
// strategy. Missing required parameters mean empty result, never an error;
// an empty slice is the universal not-found signal. Backend failures
// propagate to the loop boundary.
func (f *Flow) executeTool(ctx context.Context, call *model.ToolCall, topK int) ([]*model.RetrievedDoc, error) {
	limit := call.Limit
	if limit <= 0 {
		limit = topK
	}

	switch call.Tool {
	case model.ToolVectorSearch:
		return f.vectorSearch(ctx, call.Query, limit)

	case model.ToolRecentEntries:
		entries, err := f.repo.RecentEntries(ctx, limit)
		if err != nil {
			return nil, err
		}
		return wrapEntries(entries), nil

	case model.ToolDateRangeSearch:
		// The policy sometimes omits bounds; that is a no-op, not an error.
		if call.StartDate == "" || call.EndDate == "" {
			return nil, nil
		}
		entries, err := f.repo.EntriesByDateRange(ctx, call.StartDate, call.EndDate, limit)
		if err != nil {
			return nil, err
		}
		return wrapEntries(entries), nil

	default:
		// Unmatched tool variants are an empty-result no-op, never a crash.
		logging.From(ctx).Warn("policy selected unknown tool", "tool", call.Tool)
		return nil, nil
	}
}

// vectorSearch embeds the query and runs nearest-neighbor retrieval. An
// embedding failure counts as zero results here; only the top-level
// fallback treats it as fatal.
func (f *Flow) vectorSearch(ctx context.Context, query string, limit int) ([]*model.RetrievedDoc, error) {
	if query == "" {
		return nil, nil
	}

	embedding, err := f.embedder.Embedding(ctx, query)
	if err != nil {
		logging.From(ctx).Warn("embedding failed, treating as zero results", "error", err)
		return nil, nil
	}

	return f.repo.SearchSimilarEntries(ctx, firestore.Vector32(embedding), limit)
}

func wrapEntries(entries []*model.Entry) []*model.RetrievedDoc {
	docs := make([]*model.RetrievedDoc, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, &model.RetrievedDoc{Entry: e.WithoutEmbedding()})
	}
	return docs
}
