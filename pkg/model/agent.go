package model

// SearchTool identifies a retrieval strategy the agent loop can invoke.
type SearchTool string

const (
	ToolVectorSearch    SearchTool = "VECTOR_SEARCH"
	ToolRecentEntries   SearchTool = "RECENT_ENTRIES"
	ToolDateRangeSearch SearchTool = "DATE_RANGE_SEARCH"
	ToolDone            SearchTool = "DONE"

	// ToolRecentPreseed is the sentinel recorded for the unconditional
	// recency preseed at iteration 0. The policy never selects it.
	ToolRecentPreseed SearchTool = "RECENT_ENTRIES_PRESEED"
)

// ToolCall is the policy's decision for one loop iteration. Query is
// required semantically for VECTOR_SEARCH, StartDate/EndDate for
// DATE_RANGE_SEARCH; adapters treat missing fields as empty-result, never
// as a crash.
type ToolCall struct {
	Tool      SearchTool `json:"tool"`
	Reasoning string     `json:"reasoning"`
	Query     string     `json:"query,omitempty"`
	StartDate string     `json:"start_date,omitempty"`
	EndDate   string     `json:"end_date,omitempty"`
	Limit     int        `json:"limit,omitempty"`
}

// SearchIteration records one agent-loop step. Iteration 0 is always the
// recency preseed; records are appended once and never mutated.
type SearchIteration struct {
	Iteration       int        `json:"iteration"`
	Tool            SearchTool `json:"tool"`
	Reasoning       string     `json:"reasoning"`
	Query           string     `json:"query,omitempty"`
	ResultsCount    int        `json:"results_count"`
	NewEntriesAdded int        `json:"new_entries_added"`
}
