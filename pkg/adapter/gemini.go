package adapter

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

type Gemini interface {
	GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	Embedding(ctx context.Context, text string) ([]float32, error)

	// WithModel returns a view of the client bound to another generative
	// model, for per-request model selection
	WithModel(name string) Gemini
}

type GeminiClient struct {
	client          *genai.Client
	generativeModel string
	embeddingModel  string
}

type GeminiOption func(*GeminiClient)

func WithGenerativeModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.generativeModel = model
	}
}

func WithEmbeddingModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.embeddingModel = model
	}
}

func NewGemini(ctx context.Context, projectID, location string, opts ...GeminiOption) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	g := &GeminiClient{
		client:          client,
		generativeModel: "gemini-2.5-flash",
		embeddingModel:  "gemini-embedding-001",
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

func (g *GeminiClient) WithModel(name string) Gemini {
	if name == "" {
		return g
	}
	clone := *g
	clone.generativeModel = name
	return &clone
}

func (g *GeminiClient) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.generativeModel, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content")
	}
	return resp, nil
}

const (
	maxEmbedAttempts = 5
	embedBaseDelay   = 500 * time.Millisecond
)

// Embedding embeds text, retrying rate-limit errors with exponential
// backoff plus jitter. Non-rate-limit errors surface immediately.
func (g *GeminiClient) Embedding(ctx context.Context, text string) ([]float32, error) {
	delay := embedBaseDelay
	var lastErr error

	for attempt := 0; attempt < maxEmbedAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, withJitter(delay)); err != nil {
				return nil, goerr.Wrap(err, "canceled while waiting to retry embedding")
			}
			delay *= 2
		}

		resp, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, genai.Text(text), &genai.EmbedContentConfig{})
		if err != nil {
			if isRateLimitError(err) {
				lastErr = err
				continue
			}
			return nil, goerr.Wrap(err, "failed to embed content")
		}

		if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
			return nil, goerr.New("no embeddings returned")
		}
		return resp.Embeddings[0].Values, nil
	}

	return nil, goerr.Wrap(lastErr, "embedding rate limit persisted",
		goerr.V("attempts", maxEmbedAttempts))
}

// isRateLimitError checks for the Gemini API resource-exhausted response
func isRateLimitError(err error) bool {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == 429
}

func withJitter(d time.Duration) time.Duration {
	return d + time.Duration(rand.Int63n(int64(d/2)+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
