package agent

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/sotaro-f/kioku/pkg/adapter"
	"github.com/sotaro-f/kioku/pkg/model"
	"google.golang.org/genai"
)

//go:embed prompt/select_tool.md
var selectToolPromptRaw string

var selectToolPromptTmpl = template.Must(template.New("select_tool").Parse(selectToolPromptRaw))

// SelectInput is everything the policy sees when deciding the next tool
type SelectInput struct {
	Query         string
	Context       string
	Trace         string
	Iteration     int
	MaxIterations int
}

// Policy decides the next retrieval tool for one loop iteration. From the
// controller's perspective it is an opaque function that may fail
// (network/provider errors) and otherwise returns a syntactically valid
// ToolCall.
type Policy interface {
	Select(ctx context.Context, in SelectInput) (*model.ToolCall, error)
}

// geminiPolicy implements Policy with a Gemini structured-output call
type geminiPolicy struct {
	gemini adapter.Gemini
	schema *genai.Schema
}

// NewPolicy creates the default tool selection policy
func NewPolicy(gemini adapter.Gemini) (Policy, error) {
	schema, err := convertJSONSchemaToGenai(toolCallJSONSchema)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build tool call schema")
	}
	return &geminiPolicy{gemini: gemini, schema: schema}, nil
}

func (p *geminiPolicy) Select(ctx context.Context, in SelectInput) (*model.ToolCall, error) {
	var buf bytes.Buffer
	if err := selectToolPromptTmpl.Execute(&buf, in); err != nil {
		return nil, goerr.Wrap(err, "failed to execute tool selection template")
	}

	thinkingBudget := int32(0)
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   p.schema,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  &thinkingBudget,
		},
	}

	contents := []*genai.Content{
		genai.NewContentFromText(buf.String(), genai.RoleUser),
	}

	resp, err := p.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to select search tool")
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, goerr.New("invalid response structure from gemini")
	}

	rawJSON := resp.Candidates[0].Content.Parts[0].Text

	var call model.ToolCall
	if err := json.Unmarshal([]byte(rawJSON), &call); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal tool call", goerr.V("json", rawJSON))
	}

	return &call, nil
}
