package adapter

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m-mizutani/goerr/v2"
)

// Claude is the interface for the Anthropic API client
type Claude interface {
	// Chat sends messages to the given Claude model and returns the response
	Chat(ctx context.Context, model string, messages []anthropic.MessageParam) (*anthropic.Message, error)
}

type claudeClient struct {
	client *anthropic.Client
}

// NewClaude creates a new Anthropic API client
func NewClaude(apiKey string) Claude {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	return &claudeClient{
		client: &client,
	}
}

func (c *claudeClient) Chat(ctx context.Context, model string, messages []anthropic.MessageParam) (*anthropic.Message, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 4096,
		Messages:  messages,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to call claude", goerr.V("model", model))
	}
	return msg, nil
}
