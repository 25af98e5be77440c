package agent_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/sotaro-f/kioku/pkg/adapter"
	"github.com/sotaro-f/kioku/pkg/model"
	"github.com/sotaro-f/kioku/pkg/usecase/agent"
	"google.golang.org/genai"
)

// structuredGemini returns a fixed JSON body and records the prompt and
// generation config it was called with.
type structuredGemini struct {
	fakeGemini
	json   string
	prompt string
	config *genai.GenerateContentConfig
}

func (g *structuredGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	g.config = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		g.prompt = contents[0].Parts[0].Text
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: g.json}}}},
		},
	}, nil
}

func (g *structuredGemini) WithModel(name string) adapter.Gemini { return g }

func TestPolicySelect(t *testing.T) {
	gem := &structuredGemini{
		json: `{"tool": "VECTOR_SEARCH", "reasoning": "look for the theme", "query": "the move", "limit": 5}`,
	}
	policy, err := agent.NewPolicy(gem)
	gt.NoError(t, err)

	call, err := policy.Select(context.Background(), agent.SelectInput{
		Query:         "when did I decide to move?",
		Context:       "No entries retrieved yet.",
		Trace:         "No searches performed yet.",
		Iteration:     1,
		MaxIterations: 5,
	})
	gt.NoError(t, err)

	gt.Equal(t, call.Tool, model.ToolVectorSearch)
	gt.Equal(t, call.Query, "the move")
	gt.Equal(t, call.Limit, 5)

	// Prompt carries the session state
	gt.S(t, gem.prompt).Contains("when did I decide to move?")
	gt.S(t, gem.prompt).Contains("No entries retrieved yet.")
	gt.S(t, gem.prompt).Contains("iteration 1 of at most 5")

	// Structured output is enforced
	gt.Equal(t, gem.config.ResponseMIMEType, "application/json")
	gt.V(t, gem.config.ResponseSchema).NotNil()
}

func TestPolicySelectMalformedJSON(t *testing.T) {
	gem := &structuredGemini{json: `not json at all`}
	policy, err := agent.NewPolicy(gem)
	gt.NoError(t, err)

	_, err = policy.Select(context.Background(), agent.SelectInput{Query: "q", Iteration: 1, MaxIterations: 5})
	gt.Error(t, err)
}
