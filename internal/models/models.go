package models

import "time"

// Chunk represents a contiguous span of extracted document text with
// positional metadata. Chunks are created at ingestion and never mutated.
type Chunk struct {
	ID     string
	Source string
	Index  int
	Text   string
	Start  int
	End    int
}

// SearchResult is a chunk matched by similarity search with its score.
type SearchResult struct {
	Chunk Chunk
	Score float32
}

// ConversationTurn is one message in the per-session chat history.
type ConversationTurn struct {
	ID       string    `json:"id"`
	Role     string    `json:"role"`
	Text     string    `json:"text"`
	ChunkIDs []string  `json:"chunk_ids,omitempty"`
	Time     time.Time `json:"time"`
}

// Answer is the result of one ask: the generated text plus the
// retrieved chunks it was grounded on, for citation display.
type Answer struct {
	Text   string
	Chunks []SearchResult
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
