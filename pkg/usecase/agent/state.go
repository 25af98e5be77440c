package agent

import (
	"fmt"
	"strings"

	"github.com/sotaro-f/kioku/pkg/model"
)

const (
	noEntriesSentinel  = "No entries retrieved yet."
	noSearchesSentinel = "No searches performed yet."
)

// SearchState accumulates deduplicated evidence and the search trace for a
// single agent session. It is constructed fresh per request and never shared
// across sessions; no concurrent mutation is supported.
type SearchState struct {
	docs  []*model.RetrievedDoc
	seen  map[string]struct{}
	trace []model.SearchIteration
}

// NewSearchState creates an empty per-session state
func NewSearchState() *SearchState {
	return &SearchState{
		seen: make(map[string]struct{}),
	}
}

// AddEntry inserts a retrieved doc iff its (date, title) key is not already
// present. Returns whether it was newly added; duplicates have no side
// effect, so the first-seen distance wins.
func (s *SearchState) AddEntry(doc *model.RetrievedDoc) bool {
	key := doc.Entry.Key()
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	s.docs = append(s.docs, doc)
	return true
}

// AddEntries inserts docs in order, returning the count of new entries
func (s *SearchState) AddEntries(docs []*model.RetrievedDoc) int {
	added := 0
	for _, doc := range docs {
		if s.AddEntry(doc) {
			added++
		}
	}
	return added
}

// RecordIteration appends a search iteration record. Pure append, never fails.
func (s *SearchState) RecordIteration(iteration int, tool model.SearchTool, reasoning, query string, resultsCount, newEntries int) model.SearchIteration {
	it := model.SearchIteration{
		Iteration:       iteration,
		Tool:            tool,
		Reasoning:       reasoning,
		Query:           query,
		ResultsCount:    resultsCount,
		NewEntriesAdded: newEntries,
	}
	s.trace = append(s.trace, it)
	return it
}

// Docs returns the accumulated entries in insertion order
func (s *SearchState) Docs() []*model.RetrievedDoc {
	return s.docs
}

// Trace returns the iteration log in order
func (s *SearchState) Trace() []model.SearchIteration {
	return s.trace
}

// Empty reports whether no evidence has been accumulated
func (s *SearchState) Empty() bool {
	return len(s.docs) == 0
}

// ContextString renders accumulated entries for LLM context. This is the
// only view of the evidence the policy and synthesizer receive, and it is
// deterministic for a given state.
func (s *SearchState) ContextString() string {
	if len(s.docs) == 0 {
		return noEntriesSentinel
	}

	var lines []string
	for i, doc := range s.docs {
		lines = append(lines, fmt.Sprintf("Entry %d:", i+1))
		lines = append(lines, "  date: "+doc.Entry.Date)
		lines = append(lines, "  title: "+doc.Entry.Title)
		lines = append(lines, "  text: "+doc.Entry.Text)
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// TraceString renders the search trace for LLM context
func (s *SearchState) TraceString() string {
	if len(s.trace) == 0 {
		return noSearchesSentinel
	}

	var lines []string
	for _, it := range s.trace {
		lines = append(lines, fmt.Sprintf("Iteration %d: %s", it.Iteration, it.Tool))
		lines = append(lines, "  Reasoning: "+it.Reasoning)
		if it.Query != "" {
			lines = append(lines, "  Query: "+it.Query)
		}
		lines = append(lines, fmt.Sprintf("  Results: %d found, %d new", it.ResultsCount, it.NewEntriesAdded))
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}
