package loader_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/sotaro-f/kioku/pkg/loader"
	"github.com/sotaro-f/kioku/pkg/model"
	"github.com/sotaro-f/kioku/pkg/repository"
)

const dailyNote = `## 03-11-2024

### Transcription

Went for a run along the river. Thinking about the #move again.

### Notes

Reviewer scribbles that should not be indexed.
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	gt.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDaily(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	writeFile(t, dir, "03-11-2024.md", dailyNote)
	writeFile(t, dir, "03-12-2024_03-13-2024.md", "### Transcription\n\nDoubleheader day. #travel\n")
	writeFile(t, dir, "2024-03 - Week.md", "weekly rollup, skip me")
	writeFile(t, dir, "not-a-date.md", "### Transcription\n\norphan\n")
	writeFile(t, dir, "03-14-2024.md", "### Transcription\n\nno embedding for this one\n")

	embeddings := writeFile(t, dir, "embeddings.jsonl",
		`{"path": "notes/03-11-2024.md", "embedding": [1, 0]}
{"path": "notes/03-12-2024_03-13-2024.md", "embedding": [0, 1]}
`)

	repo := repository.NewMemory()
	stats, err := loader.New(repo).LoadDaily(ctx, dir, embeddings)
	gt.NoError(t, err)

	// doubleheader yields one entry per date
	gt.Equal(t, stats.Loaded, 3)
	gt.Equal(t, stats.Skipped, 2)
	gt.Equal(t, stats.MissingEmbeddings, 1)

	entries, err := repo.RecentEntries(ctx, 10)
	gt.NoError(t, err)
	gt.A(t, entries).Length(3)

	// Only the Transcription section is indexed
	docs, err := repo.EntriesByDateRange(ctx, "2024-03-11", "2024-03-11", 0)
	gt.NoError(t, err)
	gt.A(t, docs).Length(1)
	gt.S(t, docs[0].Text).Contains("run along the river")
	gt.S(t, docs[0].Text).NotContains("Reviewer scribbles")
	gt.A(t, docs[0].Tags).Has("#move")
	gt.Equal(t, docs[0].EntryType, model.EntryTypeDaily)

	// Doubleheader entries share the title but carry distinct dates
	both, err := repo.EntriesByDateRange(ctx, "2024-03-12", "2024-03-13", 0)
	gt.NoError(t, err)
	gt.A(t, both).Length(2)
	gt.Equal(t, both[0].Title, "03-12-2024_03-13-2024")
	gt.Equal(t, both[1].Title, "03-12-2024_03-13-2024")
}

func TestLoadDailyWithEmbedder(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, dir, "03-11-2024.md", dailyNote)

	repo := repository.NewMemory()
	stats, err := loader.New(repo, loader.WithEmbedder(stubEmbedder{})).LoadDaily(ctx, dir, "")
	gt.NoError(t, err)

	gt.Equal(t, stats.Loaded, 1)
	gt.Equal(t, stats.MissingEmbeddings, 0)
}

type stubEmbedder struct{}

func (stubEmbedder) Embedding(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.5, 0.5}, nil
}

func TestLoadEvergreen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	withFM := writeFile(t, dir, "on-writing.md", `---
tags: ["#craft"]
content_hash: abc123
---
Writing every day beats writing well. #practice
`)
	writeFile(t, dir, "empty.md", "---\ntags: []\n---\n")

	embeddings := writeFile(t, dir, "evergreen.jsonl",
		`{"path": "`+withFM+`", "embedding": [1, 0]}
`)

	repo := repository.NewMemory()
	stats, err := loader.New(repo).LoadEvergreen(ctx, dir, embeddings)
	gt.NoError(t, err)

	gt.Equal(t, stats.Loaded, 1)
	gt.Equal(t, stats.Skipped, 1)

	entries, err := repo.RecentEntries(ctx, 10)
	gt.NoError(t, err)
	gt.A(t, entries).Length(1)

	e := entries[0]
	gt.Equal(t, e.Title, "on-writing")
	gt.Equal(t, e.EntryType, model.EntryTypeEvergreen)
	gt.S(t, e.Text).NotContains("content_hash")
	gt.A(t, e.Tags).Has("#craft")
	gt.A(t, e.Tags).Has("#practice")
}

func TestLoadEvergreenMissingDir(t *testing.T) {
	repo := repository.NewMemory()
	stats, err := loader.New(repo).LoadEvergreen(context.Background(), filepath.Join(t.TempDir(), "nope"), "")
	gt.NoError(t, err)
	gt.Equal(t, stats.Loaded, 0)
}
