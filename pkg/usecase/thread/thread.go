package thread

import (
	"context"
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/sotaro-f/kioku/pkg/adapter"
	"github.com/sotaro-f/kioku/pkg/model"
	"github.com/sotaro-f/kioku/pkg/repository"
	"github.com/sotaro-f/kioku/pkg/utils/logging"
)

// UseCase manages chat thread lifecycle: creation, history, updates, and
// export archives.
type UseCase struct {
	repo    repository.Repository
	storage adapter.Storage
}

type Option func(*UseCase)

// WithStorage enables thread export archives. Without it Export fails.
func WithStorage(storage adapter.Storage) Option {
	return func(uc *UseCase) {
		uc.storage = storage
	}
}

func New(repo repository.Repository, opts ...Option) *UseCase {
	uc := &UseCase{repo: repo}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Create starts a new thread. An empty title gets a timestamp-derived one.
func (uc *UseCase) Create(ctx context.Context, title string, tags []string) (*model.Thread, error) {
	now := time.Now().UTC()
	if title == "" {
		title = "Chat " + now.Format("2006-01-02 15:04")
	}

	thread := &model.Thread{
		ID:        model.NewThreadID(),
		Title:     title,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := uc.repo.PutThread(ctx, thread); err != nil {
		return nil, goerr.Wrap(err, "failed to create thread")
	}

	logging.From(ctx).Info("thread created", "thread_id", thread.ID, "title", thread.Title)
	return thread, nil
}

// List returns all threads, most recently updated first
func (uc *UseCase) List(ctx context.Context) ([]*model.Thread, error) {
	return uc.repo.ListThreads(ctx)
}

// Get returns a thread and its full message history in timestamp order
func (uc *UseCase) Get(ctx context.Context, id model.ThreadID) (*model.Thread, []*model.Message, error) {
	thread, err := uc.repo.GetThread(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	msgs, err := uc.repo.ListMessages(ctx, id)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to load messages", goerr.V("thread_id", id))
	}

	return thread, msgs, nil
}

// Update renames or retags a thread. Nil slices and empty strings leave the
// corresponding field untouched.
func (uc *UseCase) Update(ctx context.Context, id model.ThreadID, title string, tags []string) (*model.Thread, error) {
	thread, err := uc.repo.GetThread(ctx, id)
	if err != nil {
		return nil, err
	}

	if title != "" {
		thread.Title = title
	}
	if tags != nil {
		thread.Tags = tags
	}
	thread.UpdatedAt = time.Now().UTC()

	if err := uc.repo.PutThread(ctx, thread); err != nil {
		return nil, goerr.Wrap(err, "failed to update thread", goerr.V("thread_id", id))
	}
	return thread, nil
}

// Delete removes a thread and all of its messages
func (uc *UseCase) Delete(ctx context.Context, id model.ThreadID) error {
	if _, err := uc.repo.GetThread(ctx, id); err != nil {
		return err
	}
	return uc.repo.DeleteThread(ctx, id)
}

// AppendMessage records one chat turn. The role must validate; unknown
// senders are the caller's bug, not data to normalize here.
func (uc *UseCase) AppendMessage(ctx context.Context, id model.ThreadID, role model.Role, content string) (*model.Message, error) {
	if err := role.Validate(); err != nil {
		return nil, err
	}
	if _, err := uc.repo.GetThread(ctx, id); err != nil {
		return nil, err
	}

	msg := &model.Message{
		ID:        model.NewMessageID(),
		ThreadID:  id,
		Timestamp: time.Now().UTC(),
		Role:      role,
		Content:   content,
	}

	if err := uc.repo.PutMessage(ctx, msg); err != nil {
		return nil, goerr.Wrap(err, "failed to append message", goerr.V("thread_id", id))
	}
	return msg, nil
}

// RecordExchange persists a user query and the assistant's answer as two
// consecutive messages. Used by the chat surfaces after each completed turn.
func (uc *UseCase) RecordExchange(ctx context.Context, id model.ThreadID, query, answer string) error {
	if _, err := uc.AppendMessage(ctx, id, model.RoleUser, query); err != nil {
		return err
	}
	if _, err := uc.AppendMessage(ctx, id, model.RoleAssistant, answer); err != nil {
		return err
	}
	return nil
}

type exportDoc struct {
	Thread   *model.Thread    `json:"thread"`
	Messages []*model.Message `json:"messages"`
}

// Export archives a thread with its messages as a JSON object in the
// configured storage bucket and returns the object key.
func (uc *UseCase) Export(ctx context.Context, id model.ThreadID) (string, error) {
	if uc.storage == nil {
		return "", goerr.New("export storage is not configured")
	}

	thread, msgs, err := uc.Get(ctx, id)
	if err != nil {
		return "", err
	}

	key := "threads/" + string(id) + ".json"
	w, err := uc.storage.Put(ctx, key)
	if err != nil {
		return "", goerr.Wrap(err, "failed to open export object", goerr.V("key", key))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&exportDoc{Thread: thread, Messages: msgs}); err != nil {
		_ = w.Close()
		return "", goerr.Wrap(err, "failed to encode thread export", goerr.V("key", key))
	}
	if err := w.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to finalize export object", goerr.V("key", key))
	}

	logging.From(ctx).Info("thread exported", "thread_id", id, "key", key)
	return key, nil
}
