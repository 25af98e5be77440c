package model

import (
	"cloud.google.com/go/firestore"
)

type EntryType string

const (
	EntryTypeDaily     EntryType = "daily"
	EntryTypeEvergreen EntryType = "evergreen"
)

// Entry is a single retrievable unit of journal content. Entries are created
// by the ingestion pipeline and never mutated during a retrieval session.
type Entry struct {
	Date      string             `json:"date" firestore:"date"`
	Title     string             `json:"title" firestore:"title"`
	Text      string             `json:"text" firestore:"text"`
	Tags      []string           `json:"tags" firestore:"tags"`
	Embedding firestore.Vector32 `json:"embedding,omitempty" firestore:"embedding,omitempty"`
	EntryType EntryType          `json:"entry_type" firestore:"entry_type"`
}

// Key identifies an entry for dedup purposes. Two entries are the same
// evidentiary unit iff (date, title) matches; titles encode canonical
// dates/filenames, so content hashing is not needed.
func (e *Entry) Key() string {
	return e.Date + ":" + e.Title
}

// WithoutEmbedding returns a copy with the embedding vector stripped, so raw
// vectors never leak into LLM context or API responses.
func (e *Entry) WithoutEmbedding() *Entry {
	clone := *e
	clone.Embedding = nil
	return &clone
}

// RetrievedDoc is an entry as surfaced to the caller, with the cosine
// distance from vector search or nil for recency/date-range results.
type RetrievedDoc struct {
	Entry    *Entry   `json:"entry"`
	Distance *float64 `json:"distance"`
}
