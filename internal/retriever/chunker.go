// Package retriever is the uniform call surface over the embedder and the
// vector index. It chunks papers, batches embedding calls against quota,
// tracks index coverage, and retrieves fact and style context.
package retriever

import (
	"fmt"
	"strings"

	"github.com/papercast-ai/papercast/internal/types"
)

// ChunkConfig controls how a paper body is windowed.
type ChunkConfig struct {
	Words        int `mapstructure:"chunk_words"`
	OverlapWords int `mapstructure:"chunk_overlap_words"`
	MinWords     int `mapstructure:"min_chunk_words"`
}

// DefaultChunkConfig returns the standard windowing: ~300-word windows with
// ~100-word overlap, dropping fragments under 50 words.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{Words: 300, OverlapWords: 100, MinWords: 50}
}

func (c ChunkConfig) normalized() ChunkConfig {
	if c.Words <= 0 {
		c.Words = 300
	}
	if c.OverlapWords < 0 || c.OverlapWords >= c.Words {
		c.OverlapWords = c.Words / 3
	}
	if c.MinWords <= 0 {
		c.MinWords = 50
	}
	return c
}

// ChunkPaper splits a paper body into overlapping windows with strictly
// increasing ordinals. Chunks cover the body; the final fragment is dropped
// only when shorter than the minimum.
func ChunkPaper(paperID, body string, cfg ChunkConfig) []types.Chunk {
	cfg = cfg.normalized()
	words := strings.Fields(body)
	if len(words) == 0 {
		return nil
	}

	step := cfg.Words - cfg.OverlapWords
	var chunks []types.Chunk
	ordinal := 0
	for start := 0; start < len(words); start += step {
		end := start + cfg.Words
		if end > len(words) {
			end = len(words)
		}
		window := words[start:end]
		if len(window) >= cfg.MinWords {
			chunks = append(chunks, types.Chunk{
				ChunkID: ChunkID(paperID, ordinal),
				PaperID: paperID,
				Ordinal: ordinal,
				Text:    strings.Join(window, " "),
			})
			ordinal++
		}
		if end == len(words) {
			break
		}
	}

	// A short paper still yields one chunk so retrieval has something to
	// stand on.
	if len(chunks) == 0 {
		chunks = append(chunks, types.Chunk{
			ChunkID: ChunkID(paperID, 0),
			PaperID: paperID,
			Ordinal: 0,
			Text:    strings.Join(words, " "),
		})
	}
	return chunks
}

// ChunkID builds the stable chunk identifier.
func ChunkID(paperID string, ordinal int) string {
	return fmt.Sprintf("%s_chunk_%d", paperID, ordinal)
}
