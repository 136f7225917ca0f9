package types

import "time"

// Paper is an ingested research paper. Immutable after creation.
type Paper struct {
	PaperID   string    `json:"paper_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	SourceRef string    `json:"source_ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Chunk is a contiguous window of a paper's body used for retrieval.
// Embedding is populated after indexing.
type Chunk struct {
	ChunkID   string    `json:"chunk_id"`
	PaperID   string    `json:"paper_id"`
	Ordinal   int       `json:"ordinal"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// StyleSection identifies which part of an episode a style pattern serves.
type StyleSection string

const (
	StyleSectionOpening    StyleSection = "opening"
	StyleSectionTransition StyleSection = "transition"
	StyleSectionReaction   StyleSection = "reaction"
	StyleSectionExplainer  StyleSection = "explainer"
	StyleSectionClosing    StyleSection = "closing"
)

// StylePattern is an indexed example of podcast phrasing for a section.
type StylePattern struct {
	StyleID   string       `json:"style_id"`
	Section   StyleSection `json:"section"`
	Text      string       `json:"text"`
	Embedding []float32    `json:"embedding,omitempty"`
}

// ScoredChunk pairs a retrieved chunk with its similarity score.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float32 `json:"score"`
}

// ScoredStylePattern pairs a retrieved style pattern with its similarity score.
type ScoredStylePattern struct {
	Pattern StylePattern `json:"pattern"`
	Score   float32      `json:"score"`
}
