package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/sotaro-f/kioku/pkg/model"
)

// Repository defines persistence for the journal index and the chat
// thread/message store. Retrieval methods return entries without their
// embedding vectors so raw vectors never reach LLM context.
type Repository interface {
	// PutEntry upserts a journal entry, keyed by (date, title)
	PutEntry(ctx context.Context, entry *model.Entry) error

	// SearchSimilarEntries returns the limit nearest entries by cosine
	// distance, ascending (closest first)
	SearchSimilarEntries(ctx context.Context, embedding firestore.Vector32, limit int) ([]*model.RetrievedDoc, error)

	// RecentEntries returns the limit most recent entries by date
	// descending. Equal dates keep storage insertion order.
	RecentEntries(ctx context.Context, limit int) ([]*model.Entry, error)

	// EntriesByDateRange returns entries within the closed interval
	// [start, end] in ascending date order
	EntriesByDateRange(ctx context.Context, start, end string, limit int) ([]*model.Entry, error)

	// PutThread saves a thread (last writer wins)
	PutThread(ctx context.Context, thread *model.Thread) error

	// GetThread retrieves a thread, returning model.ErrThreadNotFound when absent
	GetThread(ctx context.Context, id model.ThreadID) (*model.Thread, error)

	// ListThreads returns all threads sorted by updated_at descending
	ListThreads(ctx context.Context) ([]*model.Thread, error)

	// DeleteThread removes a thread and all of its messages
	DeleteThread(ctx context.Context, id model.ThreadID) error

	// PutMessage appends a message to a thread and bumps the thread's
	// updated_at. The two writes are not transactional; a crash in between
	// leaves the thread timestamp stale, which is accepted.
	PutMessage(ctx context.Context, msg *model.Message) error

	// ListMessages returns a thread's messages sorted by timestamp ascending
	ListMessages(ctx context.Context, id model.ThreadID) ([]*model.Message, error)
}
