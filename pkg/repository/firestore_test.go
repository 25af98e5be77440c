package repository_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/gt"
	"github.com/sotaro-f/kioku/pkg/model"
	"github.com/sotaro-f/kioku/pkg/repository"
)

func setupFirestore(t *testing.T) *repository.Firestore {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")

	if projectID == "" || databaseID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID and TEST_FIRESTORE_DATABASE_ID must be set to run Firestore tests")
	}

	repo, err := repository.New(context.Background(), projectID, databaseID)
	gt.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

func testEntry(date string) *model.Entry {
	embedding := make(firestore.Vector32, 8)
	for i := range embedding {
		embedding[i] = rand.Float32()
	}
	return &model.Entry{
		Date:      date,
		Title:     fmt.Sprintf("test-%s-%d", date, rand.Int()),
		Text:      "integration test entry",
		Tags:      []string{"#test"},
		Embedding: embedding,
		EntryType: model.EntryTypeDaily,
	}
}

func TestFirestorePutAndQueryEntries(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	entry := testEntry("2024-03-11")
	gt.NoError(t, repo.PutEntry(ctx, entry))

	// Upsert: same (date, title) overwrites
	entry.Text = "revised"
	gt.NoError(t, repo.PutEntry(ctx, entry))

	entries, err := repo.EntriesByDateRange(ctx, "2024-03-11", "2024-03-11", 0)
	gt.NoError(t, err)
	gt.A(t, entries).Longer(0)

	// Projection strips the embedding
	for _, e := range entries {
		gt.A(t, e.Embedding).Length(0)
	}
}

func TestFirestoreVectorSearch(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	entry := testEntry("2024-03-12")
	gt.NoError(t, repo.PutEntry(ctx, entry))

	docs, err := repo.SearchSimilarEntries(ctx, entry.Embedding, 3)
	gt.NoError(t, err)
	gt.A(t, docs).Longer(0)
	gt.V(t, docs[0].Distance).NotNil()
}

func TestFirestoreRecentEntries(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	gt.NoError(t, repo.PutEntry(ctx, testEntry("2024-03-13")))

	entries, err := repo.RecentEntries(ctx, 5)
	gt.NoError(t, err)
	gt.A(t, entries).Longer(0)
}

func TestFirestoreThreads(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	thread := &model.Thread{
		ID:        model.NewThreadID(),
		Title:     "integration thread",
		CreatedAt: now,
		UpdatedAt: now,
	}
	gt.NoError(t, repo.PutThread(ctx, thread))

	got, err := repo.GetThread(ctx, thread.ID)
	gt.NoError(t, err)
	gt.Equal(t, got.Title, thread.Title)

	gt.NoError(t, repo.PutMessage(ctx, &model.Message{
		ID:        model.NewMessageID(),
		ThreadID:  thread.ID,
		Timestamp: now.Add(time.Second),
		Role:      model.RoleUser,
		Content:   "hello",
	}))

	msgs, err := repo.ListMessages(ctx, thread.ID)
	gt.NoError(t, err)
	gt.A(t, msgs).Length(1)

	gt.NoError(t, repo.DeleteThread(ctx, thread.ID))

	_, err = repo.GetThread(ctx, thread.ID)
	gt.Error(t, err)
	gt.V(t, errors.Is(err, model.ErrThreadNotFound)).Equal(true)
}
