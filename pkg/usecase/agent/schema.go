package agent

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// toolCallJSONSchema constrains the policy's structured output to a
// syntactically valid ToolCall. Semantic plausibility (e.g. a vector search
// with no query) is not validated here; adapters fail soft instead.
var toolCallJSONSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"tool": {
			Type:        "string",
			Description: "Next retrieval tool to invoke, or DONE when enough evidence is accumulated",
			Enum:        []any{"VECTOR_SEARCH", "RECENT_ENTRIES", "DATE_RANGE_SEARCH", "DONE"},
		},
		"reasoning": {
			Type:        "string",
			Description: "Why this tool (or DONE) is the right next step",
		},
		"query": {
			Type:        "string",
			Description: "Search query for VECTOR_SEARCH",
		},
		"start_date": {
			Type:        "string",
			Description: "Inclusive start date (YYYY-MM-DD) for DATE_RANGE_SEARCH",
		},
		"end_date": {
			Type:        "string",
			Description: "Inclusive end date (YYYY-MM-DD) for DATE_RANGE_SEARCH",
		},
		"limit": {
			Type:        "integer",
			Description: "Max results to fetch (default 5)",
		},
	},
	Required: []string{"tool", "reasoning"},
}

// convertJSONSchemaToGenai converts JSON Schema to Gemini genai.Schema
func convertJSONSchemaToGenai(schema *jsonschema.Schema) (*genai.Schema, error) {
	if schema == nil {
		return nil, nil
	}

	genaiSchema := &genai.Schema{}

	switch schema.Type {
	case "object":
		genaiSchema.Type = genai.TypeObject
	case "string":
		genaiSchema.Type = genai.TypeString
	case "number":
		genaiSchema.Type = genai.TypeNumber
	case "integer":
		genaiSchema.Type = genai.TypeInteger
	case "boolean":
		genaiSchema.Type = genai.TypeBoolean
	case "array":
		genaiSchema.Type = genai.TypeArray
	default:
		if schema.Type != "" {
			return nil, goerr.New("unsupported schema type", goerr.V("type", schema.Type))
		}
	}

	if schema.Description != "" {
		genaiSchema.Description = schema.Description
	}

	if len(schema.Enum) > 0 {
		genaiSchema.Enum = make([]string, len(schema.Enum))
		for i, v := range schema.Enum {
			if s, ok := v.(string); ok {
				genaiSchema.Enum[i] = s
			}
		}
	}

	if len(schema.Properties) > 0 {
		genaiSchema.Properties = make(map[string]*genai.Schema)
		for name, propSchema := range schema.Properties {
			converted, err := convertJSONSchemaToGenai(propSchema)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to convert property schema",
					goerr.V("property", name))
			}
			genaiSchema.Properties[name] = converted
		}
	}

	if len(schema.Required) > 0 {
		genaiSchema.Required = schema.Required
	}

	if schema.Items != nil {
		converted, err := convertJSONSchemaToGenai(schema.Items)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert items schema")
		}
		genaiSchema.Items = converted
	}

	return genaiSchema, nil
}
