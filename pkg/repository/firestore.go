package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/sotaro-f/kioku/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	collectionEntries  = "entries"
	collectionThreads  = "threads"
	collectionMessages = "messages"

	distanceField = "vector_distance"
)

// entryProjection excludes the embedding field from reads that feed LLM context
var entryProjection = []string{"date", "title", "text", "tags", "entry_type"}

// Firestore implements Repository using Cloud Firestore. Entries use
// Firestore vector search (FindNearest) for similarity queries.
type Firestore struct {
	client *firestore.Client
}

// New creates a new Firestore repository
func New(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client")
	}

	return &Firestore{client: client}, nil
}

// Close releases the underlying client
func (r *Firestore) Close() error {
	return r.client.Close()
}

// entryDocID derives a stable document ID from the (date, title) identity
// key, so re-ingesting the same entry overwrites rather than duplicates.
func entryDocID(entry *model.Entry) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(entry.Key())).String()
}

func (r *Firestore) PutEntry(ctx context.Context, entry *model.Entry) error {
	doc := r.client.Collection(collectionEntries).Doc(entryDocID(entry))
	if _, err := doc.Set(ctx, entry); err != nil {
		return goerr.Wrap(err, "failed to put entry", goerr.V("key", entry.Key()))
	}
	return nil
}

func (r *Firestore) SearchSimilarEntries(ctx context.Context, embedding firestore.Vector32, limit int) ([]*model.RetrievedDoc, error) {
	if limit <= 0 {
		limit = model.DefaultTopK
	}

	q := r.client.Collection(collectionEntries).
		Select(entryProjection...).
		FindNearest("embedding", embedding, limit, firestore.DistanceMeasureCosine, &firestore.FindNearestOptions{
			DistanceResultField: distanceField,
		})

	iter := q.Documents(ctx)
	defer iter.Stop()

	var docs []*model.RetrievedDoc
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to run vector search")
		}

		var entry model.Entry
		if err := snap.DataTo(&entry); err != nil {
			return nil, goerr.Wrap(err, "failed to decode entry")
		}

		doc := &model.RetrievedDoc{Entry: &entry}
		if d, ok := snap.Data()[distanceField].(float64); ok {
			doc.Distance = &d
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

func (r *Firestore) RecentEntries(ctx context.Context, limit int) ([]*model.Entry, error) {
	q := r.client.Collection(collectionEntries).
		Select(entryProjection...).
		OrderBy("date", firestore.Desc).
		Limit(limit)

	return r.queryEntries(ctx, q)
}

func (r *Firestore) EntriesByDateRange(ctx context.Context, start, end string, limit int) ([]*model.Entry, error) {
	q := r.client.Collection(collectionEntries).
		Select(entryProjection...).
		Where("date", ">=", start).
		Where("date", "<=", end).
		OrderBy("date", firestore.Asc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	return r.queryEntries(ctx, q)
}

func (r *Firestore) queryEntries(ctx context.Context, q firestore.Query) ([]*model.Entry, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var entries []*model.Entry
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to query entries")
		}

		var entry model.Entry
		if err := snap.DataTo(&entry); err != nil {
			return nil, goerr.Wrap(err, "failed to decode entry")
		}
		entries = append(entries, &entry)
	}

	return entries, nil
}

func (r *Firestore) PutThread(ctx context.Context, thread *model.Thread) error {
	doc := r.client.Collection(collectionThreads).Doc(string(thread.ID))
	if _, err := doc.Set(ctx, thread); err != nil {
		return goerr.Wrap(err, "failed to put thread", goerr.V("thread_id", thread.ID))
	}
	return nil
}

func (r *Firestore) GetThread(ctx context.Context, id model.ThreadID) (*model.Thread, error) {
	snap, err := r.client.Collection(collectionThreads).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrThreadNotFound, "no such thread", goerr.V("thread_id", id))
		}
		return nil, goerr.Wrap(err, "failed to get thread", goerr.V("thread_id", id))
	}

	var thread model.Thread
	if err := snap.DataTo(&thread); err != nil {
		return nil, goerr.Wrap(err, "failed to decode thread")
	}
	return &thread, nil
}

func (r *Firestore) ListThreads(ctx context.Context) ([]*model.Thread, error) {
	iter := r.client.Collection(collectionThreads).
		OrderBy("updated_at", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	var threads []*model.Thread
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list threads")
		}

		var thread model.Thread
		if err := snap.DataTo(&thread); err != nil {
			return nil, goerr.Wrap(err, "failed to decode thread")
		}
		threads = append(threads, &thread)
	}

	return threads, nil
}

func (r *Firestore) DeleteThread(ctx context.Context, id model.ThreadID) error {
	if _, err := r.GetThread(ctx, id); err != nil {
		return err
	}

	if _, err := r.client.Collection(collectionThreads).Doc(string(id)).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete thread", goerr.V("thread_id", id))
	}

	iter := r.client.Collection(collectionMessages).
		Where("thread_id", "==", string(id)).
		Documents(ctx)
	defer iter.Stop()

	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to list messages for deletion")
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return goerr.Wrap(err, "failed to delete message", goerr.V("message_id", snap.Ref.ID))
		}
	}

	return nil
}

func (r *Firestore) PutMessage(ctx context.Context, msg *model.Message) error {
	if err := msg.Role.Validate(); err != nil {
		return err
	}

	thread, err := r.GetThread(ctx, msg.ThreadID)
	if err != nil {
		return err
	}

	doc := r.client.Collection(collectionMessages).Doc(string(msg.ID))
	if _, err := doc.Set(ctx, msg); err != nil {
		return goerr.Wrap(err, "failed to put message", goerr.V("message_id", msg.ID))
	}

	// Bump the thread timestamp. Not transactional with the message write:
	// a crash here leaves updated_at stale.
	thread.UpdatedAt = msg.Timestamp
	return r.PutThread(ctx, thread)
}

func (r *Firestore) ListMessages(ctx context.Context, id model.ThreadID) ([]*model.Message, error) {
	iter := r.client.Collection(collectionMessages).
		Where("thread_id", "==", string(id)).
		OrderBy("timestamp", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var msgs []*model.Message
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list messages")
		}

		var msg model.Message
		if err := snap.DataTo(&msg); err != nil {
			return nil, goerr.Wrap(err, "failed to decode message")
		}
		msgs = append(msgs, &msg)
	}

	return msgs, nil
}
