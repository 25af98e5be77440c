package thread_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/sotaro-f/kioku/pkg/model"
	"github.com/sotaro-f/kioku/pkg/repository"
	"github.com/sotaro-f/kioku/pkg/usecase/thread"
)

type memStorage struct {
	objects map[string]*bytes.Buffer
}

type nopCloser struct{ *bytes.Buffer }

func (nopCloser) Close() error { return nil }

func (s *memStorage) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	if s.objects == nil {
		s.objects = make(map[string]*bytes.Buffer)
	}
	buf := &bytes.Buffer{}
	s.objects[key] = buf
	return nopCloser{buf}, nil
}

func TestCreateAndList(t *testing.T) {
	ctx := context.Background()
	uc := thread.New(repository.NewMemory())

	created, err := uc.Create(ctx, "spring cleaning", []string{"#home"})
	gt.NoError(t, err)
	gt.Equal(t, created.Title, "spring cleaning")
	gt.V(t, created.ID != "").Equal(true)

	// Empty title gets a generated one
	unnamed, err := uc.Create(ctx, "", nil)
	gt.NoError(t, err)
	gt.S(t, unnamed.Title).Contains("Chat ")

	threads, err := uc.List(ctx)
	gt.NoError(t, err)
	gt.A(t, threads).Length(2)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	uc := thread.New(repository.NewMemory())

	created, err := uc.Create(ctx, "before", []string{"#a"})
	gt.NoError(t, err)

	updated, err := uc.Update(ctx, created.ID, "after", nil)
	gt.NoError(t, err)
	gt.Equal(t, updated.Title, "after")
	// Nil tags leave the existing ones alone
	gt.A(t, updated.Tags).Length(1)

	_, err = uc.Update(ctx, model.ThreadID("missing"), "x", nil)
	gt.Error(t, err)
	gt.V(t, errors.Is(err, model.ErrThreadNotFound)).Equal(true)
}

func TestRecordExchange(t *testing.T) {
	ctx := context.Background()
	uc := thread.New(repository.NewMemory())

	created, err := uc.Create(ctx, "t", nil)
	gt.NoError(t, err)

	gt.NoError(t, uc.RecordExchange(ctx, created.ID, "question", "answer"))

	_, msgs, err := uc.Get(ctx, created.ID)
	gt.NoError(t, err)
	gt.A(t, msgs).Length(2)
	gt.Equal(t, msgs[0].Role, model.RoleUser)
	gt.Equal(t, msgs[0].Content, "question")
	gt.Equal(t, msgs[1].Role, model.RoleAssistant)
	gt.Equal(t, msgs[1].Content, "answer")
}

func TestAppendMessageValidation(t *testing.T) {
	ctx := context.Background()
	uc := thread.New(repository.NewMemory())

	created, err := uc.Create(ctx, "t", nil)
	gt.NoError(t, err)

	_, err = uc.AppendMessage(ctx, created.ID, model.Role("system"), "nope")
	gt.Error(t, err)
	gt.V(t, errors.Is(err, model.ErrInvalidRole)).Equal(true)

	_, err = uc.AppendMessage(ctx, model.ThreadID("missing"), model.RoleUser, "hi")
	gt.Error(t, err)
	gt.V(t, errors.Is(err, model.ErrThreadNotFound)).Equal(true)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	storage := &memStorage{}
	uc := thread.New(repository.NewMemory(), thread.WithStorage(storage))

	created, err := uc.Create(ctx, "archive me", nil)
	gt.NoError(t, err)
	gt.NoError(t, uc.RecordExchange(ctx, created.ID, "q", "a"))

	key, err := uc.Export(ctx, created.ID)
	gt.NoError(t, err)
	gt.Equal(t, key, "threads/"+string(created.ID)+".json")

	var exported struct {
		Thread   *model.Thread    `json:"thread"`
		Messages []*model.Message `json:"messages"`
	}
	gt.NoError(t, json.Unmarshal(storage.objects[key].Bytes(), &exported))
	gt.Equal(t, exported.Thread.Title, "archive me")
	gt.A(t, exported.Messages).Length(2)
}

func TestExportWithoutStorage(t *testing.T) {
	uc := thread.New(repository.NewMemory())
	_, err := uc.Export(context.Background(), model.ThreadID("any"))
	gt.Error(t, err)
}
