package adapter_test

import (
	"context"
	"errors"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/m-mizutani/gt"
	"github.com/sotaro-f/kioku/pkg/adapter"
	"github.com/sotaro-f/kioku/pkg/model"
	"google.golang.org/genai"
)

type recordingGemini struct {
	boundModel string
	contents   []*genai.Content
	reply      string
}

func (g *recordingGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	g.contents = contents
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: g.reply}}}},
		},
	}, nil
}

func (g *recordingGemini) Embedding(ctx context.Context, text string) ([]float32, error) {
	return []float32{1}, nil
}

func (g *recordingGemini) WithModel(name string) adapter.Gemini {
	g.boundModel = name
	return g
}

func TestSelectGemini(t *testing.T) {
	gem := &recordingGemini{reply: "hello from gemini"}
	models := adapter.NewChatModels(gem, nil)

	chat, err := models.Select("gemini", "gemini-2.5-pro")
	gt.NoError(t, err)
	gt.Equal(t, gem.boundModel, "gemini-2.5-pro")

	answer, err := chat.Generate(context.Background(), []model.ChatMessage{
		{Role: model.RoleUser, Content: "hi"},
		{Role: model.RoleAssistant, Content: "hello"},
		{Role: model.RoleUser, Content: "how are you?"},
	})
	gt.NoError(t, err)
	gt.Equal(t, answer, "hello from gemini")

	// Assistant turns map to the model role on the wire
	gt.A(t, gem.contents).Length(3)
	gt.Equal(t, gem.contents[0].Role, genai.RoleUser)
	gt.Equal(t, gem.contents[1].Role, genai.RoleModel)
}

func TestSelectDefaultsToGemini(t *testing.T) {
	gem := &recordingGemini{reply: "ok"}
	models := adapter.NewChatModels(gem, nil)

	_, err := models.Select("", "")
	gt.NoError(t, err)
}

func TestSelectUnknownProvider(t *testing.T) {
	models := adapter.NewChatModels(&recordingGemini{}, nil)

	_, err := models.Select("openai", "")
	gt.Error(t, err)
	gt.V(t, errors.Is(err, adapter.ErrUnknownProvider)).Equal(true)
}

func TestSelectClaudeUnconfigured(t *testing.T) {
	models := adapter.NewChatModels(&recordingGemini{}, nil)

	_, err := models.Select("anthropic", "")
	gt.Error(t, err)
	gt.V(t, errors.Is(err, adapter.ErrUnknownProvider)).Equal(true)
}

type recordingClaude struct {
	model    string
	messages []anthropic.MessageParam
}

func (c *recordingClaude) Chat(ctx context.Context, model string, messages []anthropic.MessageParam) (*anthropic.Message, error) {
	c.model = model
	c.messages = messages
	return &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: "hello from claude"},
		},
	}, nil
}

func TestSelectClaude(t *testing.T) {
	claude := &recordingClaude{}
	models := adapter.NewChatModels(&recordingGemini{}, claude)

	chat, err := models.Select("anthropic", "")
	gt.NoError(t, err)

	answer, err := chat.Generate(context.Background(), []model.ChatMessage{
		{Role: model.RoleUser, Content: "hi"},
		{Role: model.RoleAssistant, Content: "hello"},
	})
	gt.NoError(t, err)
	gt.Equal(t, answer, "hello from claude")

	// Empty model name falls back to the default
	gt.S(t, claude.model).Contains("claude")
	gt.A(t, claude.messages).Length(2)
}
