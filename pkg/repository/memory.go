package repository

import (
	"context"
	"math"
	"sort"
	"sync"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/sotaro-f/kioku/pkg/model"
)

// Memory is an in-process Repository with the same semantics as the
// Firestore implementation. Used by tests and local runs without GCP.
type Memory struct {
	mu       sync.RWMutex
	entries  []*model.Entry
	index    map[string]int // entry key -> position in entries
	threads  map[model.ThreadID]*model.Thread
	messages map[model.ThreadID][]*model.Message
}

// NewMemory creates an empty in-memory repository
func NewMemory() *Memory {
	return &Memory{
		index:    make(map[string]int),
		threads:  make(map[model.ThreadID]*model.Thread),
		messages: make(map[model.ThreadID][]*model.Message),
	}
}

func (r *Memory) PutEntry(ctx context.Context, entry *model.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *entry
	if pos, ok := r.index[entry.Key()]; ok {
		r.entries[pos] = &clone
		return nil
	}
	r.index[entry.Key()] = len(r.entries)
	r.entries = append(r.entries, &clone)
	return nil
}

func (r *Memory) SearchSimilarEntries(ctx context.Context, embedding firestore.Vector32, limit int) ([]*model.RetrievedDoc, error) {
	if limit <= 0 {
		limit = model.DefaultTopK
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	type scored struct {
		entry    *model.Entry
		distance float64
	}

	var candidates []scored
	for _, entry := range r.entries {
		if len(entry.Embedding) == 0 {
			continue
		}
		d, err := cosineDistance(embedding, entry.Embedding)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, scored{entry: entry, distance: d})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	docs := make([]*model.RetrievedDoc, 0, len(candidates))
	for _, c := range candidates {
		d := c.distance
		docs = append(docs, &model.RetrievedDoc{
			Entry:    c.entry.WithoutEmbedding(),
			Distance: &d,
		})
	}
	return docs, nil
}

func (r *Memory) RecentEntries(ctx context.Context, limit int) ([]*model.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sorted := make([]*model.Entry, len(r.entries))
	copy(sorted, r.entries)
	// Stable sort keeps insertion order as the tie-break on equal dates.
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date > sorted[j].Date
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	return stripEmbeddings(sorted), nil
}

func (r *Memory) EntriesByDateRange(ctx context.Context, start, end string, limit int) ([]*model.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*model.Entry
	for _, entry := range r.entries {
		if entry.Date >= start && entry.Date <= end {
			matched = append(matched, entry)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Date < matched[j].Date
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	return stripEmbeddings(matched), nil
}

func (r *Memory) PutThread(ctx context.Context, thread *model.Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *thread
	r.threads[thread.ID] = &clone
	return nil
}

func (r *Memory) GetThread(ctx context.Context, id model.ThreadID) (*model.Thread, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	thread, ok := r.threads[id]
	if !ok {
		return nil, goerr.Wrap(model.ErrThreadNotFound, "no such thread", goerr.V("thread_id", id))
	}
	clone := *thread
	return &clone, nil
}

func (r *Memory) ListThreads(ctx context.Context) ([]*model.Thread, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	threads := make([]*model.Thread, 0, len(r.threads))
	for _, t := range r.threads {
		clone := *t
		threads = append(threads, &clone)
	}
	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].UpdatedAt.After(threads[j].UpdatedAt)
	})
	return threads, nil
}

func (r *Memory) DeleteThread(ctx context.Context, id model.ThreadID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.threads[id]; !ok {
		return goerr.Wrap(model.ErrThreadNotFound, "no such thread", goerr.V("thread_id", id))
	}
	delete(r.threads, id)
	delete(r.messages, id)
	return nil
}

func (r *Memory) PutMessage(ctx context.Context, msg *model.Message) error {
	if err := msg.Role.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	thread, ok := r.threads[msg.ThreadID]
	if !ok {
		return goerr.Wrap(model.ErrThreadNotFound, "no such thread", goerr.V("thread_id", msg.ThreadID))
	}

	clone := *msg
	r.messages[msg.ThreadID] = append(r.messages[msg.ThreadID], &clone)
	thread.UpdatedAt = msg.Timestamp
	return nil
}

func (r *Memory) ListMessages(ctx context.Context, id model.ThreadID) ([]*model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := make([]*model.Message, 0, len(r.messages[id]))
	for _, m := range r.messages[id] {
		clone := *m
		msgs = append(msgs, &clone)
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
	return msgs, nil
}

func stripEmbeddings(entries []*model.Entry) []*model.Entry {
	out := make([]*model.Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.WithoutEmbedding())
	}
	return out
}

// cosineDistance is 1 - cosine similarity, matching Firestore's cosine
// distance measure (0 identical, 2 opposite).
func cosineDistance(a, b firestore.Vector32) (float64, error) {
	if len(a) != len(b) {
		return 0, goerr.New("embedding dimension mismatch",
			goerr.V("query_dim", len(a)), goerr.V("entry_dim", len(b)))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2, nil
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB)), nil
}
