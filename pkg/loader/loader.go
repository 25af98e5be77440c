package loader

import (
	"bufio"
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/sotaro-f/kioku/pkg/model"
	"github.com/sotaro-f/kioku/pkg/repository"
	"github.com/sotaro-f/kioku/pkg/utils/logging"
	"gopkg.in/yaml.v3"
)

// journal filenames encode MM-DD-YYYY; doubleheader scans join two dates
// with an underscore ("03-11-2024_03-12-2024.md").
const dateLayout = "01-02-2006"

var (
	transcriptionRe = regexp.MustCompile(`(?ms)### Transcription\s*(.*?)\s*(?:^###|\z)`)
	tagRe           = regexp.MustCompile(`#\w+`)
)

// Embedder fills in vectors for entries missing from the embeddings file
type Embedder interface {
	Embedding(ctx context.Context, text string) ([]float32, error)
}

// Loader ingests journal markdown plus a precomputed JSONL embeddings file
// into the repository. Transcription/OCR happens upstream; the loader only
// indexes its output.
type Loader struct {
	repo     repository.Repository
	embedder Embedder
}

type Option func(*Loader)

// WithEmbedder computes embeddings on the fly for entries absent from the
// embeddings file instead of skipping them.
func WithEmbedder(e Embedder) Option {
	return func(l *Loader) {
		l.embedder = e
	}
}

func New(repo repository.Repository, opts ...Option) *Loader {
	l := &Loader{repo: repo}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Stats summarizes one ingestion run
type Stats struct {
	Loaded            int
	Skipped           int
	MissingEmbeddings int
}

// LoadDaily ingests daily entries from notesDir. Weekly rollup files
// ("... - Week.md") and files whose stem is not a valid date are skipped. A
// doubleheader file produces one entry per encoded date, sharing the text
// and embedding.
func (l *Loader) LoadDaily(ctx context.Context, notesDir, embeddingsPath string) (*Stats, error) {
	logger := logging.From(ctx)

	embeddings, err := loadEmbeddings(embeddingsPath, stemKey)
	if err != nil {
		logger.Warn("failed to load embeddings file", "path", embeddingsPath, "error", err)
	}

	stats := &Stats{}
	err = walkMarkdown(notesDir, func(path string) error {
		stem := fileStem(path)

		if strings.HasSuffix(stem, "- Week") {
			logger.Debug("skipping weekly rollup", "file", stem)
			stats.Skipped++
			return nil
		}

		var dates []time.Time
		for _, part := range strings.Split(stem, "_") {
			d, err := time.Parse(dateLayout, part)
			if err != nil {
				logger.Warn("skipping file with invalid date stem", "file", stem)
				stats.Skipped++
				return nil
			}
			dates = append(dates, d)
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return goerr.Wrap(err, "failed to read note", goerr.V("path", path))
		}
		content := string(raw)
		text := extractTranscription(content)
		tags := extractTags(content)

		embedding, err := l.resolveEmbedding(ctx, embeddings, stem, text)
		if err != nil {
			return err
		}
		if embedding == nil {
			logger.Warn("no embedding for entry", "file", stem)
			stats.MissingEmbeddings++
			return nil
		}

		for _, d := range dates {
			entry := &model.Entry{
				Date:      d.Format("2006-01-02"),
				Title:     stem,
				Text:      text,
				Tags:      tags,
				Embedding: embedding,
				EntryType: model.EntryTypeDaily,
			}
			if err := l.repo.PutEntry(ctx, entry); err != nil {
				return goerr.Wrap(err, "failed to store entry", goerr.V("title", stem))
			}
			stats.Loaded++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("daily ingestion finished",
		"loaded", stats.Loaded, "skipped", stats.Skipped, "missing_embeddings", stats.MissingEmbeddings)
	return stats, nil
}

// evergreen frontmatter; tags listed here merge with inline #tags
type frontmatter struct {
	Tags        []string `yaml:"tags"`
	ContentHash string   `yaml:"content_hash"`
}

// LoadEvergreen ingests evergreen notes. Filenames are free-form, so the
// embeddings file is keyed by full path and the entry date falls back to the
// file's modification time.
func (l *Loader) LoadEvergreen(ctx context.Context, evergreenDir, embeddingsPath string) (*Stats, error) {
	logger := logging.From(ctx)

	if _, err := os.Stat(evergreenDir); err != nil {
		logger.Info("evergreen directory not found, skipping", "dir", evergreenDir)
		return &Stats{}, nil
	}

	embeddings, err := loadEmbeddings(embeddingsPath, func(p string) string { return p })
	if err != nil {
		logger.Warn("failed to load embeddings file", "path", embeddingsPath, "error", err)
	}

	stats := &Stats{}
	err = walkMarkdown(evergreenDir, func(path string) error {
		raw, err := os.ReadFile(path)
		if err != nil {
			return goerr.Wrap(err, "failed to read note", goerr.V("path", path))
		}
		content := string(raw)

		fm, body := splitFrontmatter(content)
		if strings.TrimSpace(body) == "" {
			stats.Skipped++
			return nil
		}

		embedding, err := l.resolveEmbedding(ctx, embeddings, path, body)
		if err != nil {
			return err
		}
		if embedding == nil {
			logger.Warn("no embedding for evergreen note", "path", path)
			stats.MissingEmbeddings++
			return nil
		}

		info, err := os.Stat(path)
		if err != nil {
			return goerr.Wrap(err, "failed to stat note", goerr.V("path", path))
		}

		entry := &model.Entry{
			Date:      info.ModTime().Format("2006-01-02"),
			Title:     fileStem(path),
			Text:      body,
			Tags:      mergeTags(fm.Tags, extractTags(content)),
			Embedding: embedding,
			EntryType: model.EntryTypeEvergreen,
		}
		if err := l.repo.PutEntry(ctx, entry); err != nil {
			return goerr.Wrap(err, "failed to store entry", goerr.V("title", entry.Title))
		}
		stats.Loaded++
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("evergreen ingestion finished",
		"loaded", stats.Loaded, "skipped", stats.Skipped, "missing_embeddings", stats.MissingEmbeddings)
	return stats, nil
}

func (l *Loader) resolveEmbedding(ctx context.Context, embeddings map[string][]float32, key, text string) (firestore.Vector32, error) {
	if v, ok := embeddings[key]; ok {
		return firestore.Vector32(v), nil
	}
	if l.embedder == nil {
		return nil, nil
	}
	v, err := l.embedder.Embedding(ctx, text)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed entry", goerr.V("key", key))
	}
	return firestore.Vector32(v), nil
}

// extractTranscription returns the body of the "### Transcription" section,
// up to the next heading or end of file.
func extractTranscription(content string) string {
	m := transcriptionRe.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// extractTags collects inline #tag tokens, deduplicated in first-seen order
func extractTags(content string) []string {
	return mergeTags(nil, tagRe.FindAllString(content, -1))
}

func mergeTags(groups ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, group := range groups {
		for _, tag := range group {
			if !seen[tag] {
				seen[tag] = true
				out = append(out, tag)
			}
		}
	}
	return out
}

// splitFrontmatter separates a leading YAML frontmatter block from the
// markdown body. Malformed frontmatter is treated as body content.
func splitFrontmatter(content string) (frontmatter, string) {
	var fm frontmatter
	if !strings.HasPrefix(content, "---") {
		return fm, content
	}
	end := strings.Index(content[3:], "---")
	if end < 0 {
		return fm, content
	}
	block := content[3 : 3+end]
	body := strings.TrimLeft(content[3+end+3:], "\n")
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return frontmatter{}, content
	}
	return fm, body
}

// embeddings file is JSONL: {"path": "...", "embedding": [...]} per line
type embeddingRecord struct {
	Path      string    `json:"path"`
	Embedding []float32 `json:"embedding"`
}

func loadEmbeddings(path string, keyFn func(string) string) (map[string][]float32, error) {
	out := make(map[string][]float32)
	if path == "" {
		return out, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return out, goerr.Wrap(err, "failed to open embeddings file")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec embeddingRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return out, goerr.Wrap(err, "malformed embeddings line")
		}
		out[keyFn(rec.Path)] = rec.Embedding
	}
	if err := scanner.Err(); err != nil {
		return out, goerr.Wrap(err, "failed to read embeddings file")
	}
	return out, nil
}

func walkMarkdown(dir string, fn func(path string) error) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		return fn(path)
	})
}

func fileStem(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".md")
}

func stemKey(path string) string {
	return fileStem(path)
}
