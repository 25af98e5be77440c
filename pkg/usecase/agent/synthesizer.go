package agent

import (
	"context"
	_ "embed"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/sotaro-f/kioku/pkg/adapter"
	"github.com/sotaro-f/kioku/pkg/model"
)

//go:embed prompt/synthesize.md
var synthesizePromptRaw string

const (
	entriesOpenTag = "<ENTRIES>"
	traceOpenTag   = "<SEARCH_TRACE>"
)

// Synthesizer produces the final answer from accumulated evidence and chat
// history. Failures are not retried here; they propagate to the caller as
// the request's failure.
type Synthesizer struct {
	models adapter.ChatModelFactory
}

func NewSynthesizer(models adapter.ChatModelFactory) *Synthesizer {
	return &Synthesizer{models: models}
}

// Synthesize appends the live query to the chat history, replaces any prior
// evidence blocks so the model sees exactly one current snapshot, and
// delegates to the provider selected by the request.
func (s *Synthesizer) Synthesize(ctx context.Context, req *model.ChatRequest, history []model.ChatMessage, contextStr, traceStr string) (string, error) {
	chat, err := s.models(req.Provider, req.Model)
	if err != nil {
		return "", err
	}

	messages := BuildTranscript(req.Query, history, contextStr, traceStr)

	answer, err := chat.Generate(ctx, messages)
	if err != nil {
		return "", goerr.Wrap(err, "failed to synthesize response")
	}
	return answer, nil
}

// BuildTranscript assembles the role-tagged message sequence handed to the
// chat model: instructions, prior turns minus stale evidence blocks, the
// live query, then exactly one evidence block and one trace block.
func BuildTranscript(query string, history []model.ChatMessage, contextStr, traceStr string) []model.ChatMessage {
	messages := make([]model.ChatMessage, 0, len(history)+4)
	messages = append(messages, model.ChatMessage{
		Role:    model.RoleUser,
		Content: synthesizePromptRaw,
	})

	for _, msg := range history {
		// Drop evidence blocks embedded by prior turns so the model never
		// sees a stale snapshot next to the current one.
		if strings.Contains(msg.Content, entriesOpenTag) || strings.Contains(msg.Content, traceOpenTag) {
			continue
		}
		messages = append(messages, msg)
	}

	messages = append(messages,
		model.ChatMessage{Role: model.RoleUser, Content: "<QUERY>" + query + "</QUERY>"},
		model.ChatMessage{Role: model.RoleUser, Content: entriesOpenTag + "\n" + contextStr + "\n</ENTRIES>"},
		model.ChatMessage{Role: model.RoleUser, Content: traceOpenTag + "\n" + traceStr + "\n</SEARCH_TRACE>"},
	)
	return messages
}
