package adapter

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/sotaro-f/kioku/pkg/model"
	"google.golang.org/genai"
)

const (
	ProviderGemini = "gemini"
	ProviderClaude = "anthropic"

	defaultClaudeModel = "claude-sonnet-4-5"
)

var ErrUnknownProvider = goerr.New("unknown LLM provider")

// ChatModel generates a completion from a role-tagged transcript. It is the
// provider-neutral surface the synthesizer talks to.
type ChatModel interface {
	Generate(ctx context.Context, messages []model.ChatMessage) (string, error)
}

// ChatModelFactory resolves a (provider, model) pair from a request into a
// ChatModel. Injected into the agent flow so tests can substitute fakes.
type ChatModelFactory func(provider, modelName string) (ChatModel, error)

// ChatModels holds the configured provider clients and selects between them
// per request.
type ChatModels struct {
	gemini Gemini
	claude Claude
}

func NewChatModels(gemini Gemini, claude Claude) *ChatModels {
	return &ChatModels{gemini: gemini, claude: claude}
}

// Select returns the ChatModel for a provider name. An empty provider
// defaults to Gemini.
func (m *ChatModels) Select(provider, modelName string) (ChatModel, error) {
	switch provider {
	case ProviderGemini, "":
		if m.gemini == nil {
			return nil, goerr.Wrap(ErrUnknownProvider, "gemini client not configured")
		}
		return &geminiChatModel{client: m.gemini.WithModel(modelName)}, nil

	case ProviderClaude:
		if m.claude == nil {
			return nil, goerr.Wrap(ErrUnknownProvider, "claude client not configured")
		}
		if modelName == "" {
			modelName = defaultClaudeModel
		}
		return &claudeChatModel{client: m.claude, model: modelName}, nil

	default:
		return nil, goerr.Wrap(ErrUnknownProvider, "unsupported provider", goerr.V("provider", provider))
	}
}

type geminiChatModel struct {
	client Gemini
}

func (g *geminiChatModel) Generate(ctx context.Context, messages []model.ChatMessage) (string, error) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		role := genai.Role(genai.RoleUser)
		if msg.Role == model.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}

	resp, err := g.client.GenerateContent(ctx, contents, nil)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", goerr.New("empty response from gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

type claudeChatModel struct {
	client Claude
	model  string
}

func (c *claudeChatModel) Generate(ctx context.Context, messages []model.ChatMessage) (string, error) {
	params := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		block := anthropic.NewTextBlock(msg.Content)
		if msg.Role == model.RoleAssistant {
			params = append(params, anthropic.NewAssistantMessage(block))
		} else {
			params = append(params, anthropic.NewUserMessage(block))
		}
	}

	resp, err := c.client.Chat(ctx, c.model, params)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, content := range resp.Content {
		if content.Type == "text" {
			sb.WriteString(content.Text)
		}
	}
	if sb.Len() == 0 {
		return "", goerr.New("empty response from claude")
	}
	return sb.String(), nil
}
