package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/papercast-ai/papercast/internal/budget"
	"github.com/papercast-ai/papercast/internal/providers"
	"github.com/papercast-ai/papercast/internal/types"
)

const (
	// StyleNamespace holds the style pattern corpus.
	StyleNamespace = "styles"

	defaultBatchSize  = 16
	defaultBatchDelay = 200 * time.Millisecond
)

// FactNamespace returns the per-paper index namespace.
func FactNamespace(paperID string) string {
	return "facts_" + paperID
}

// IndexReceipt reports how much of a corpus made it into the index.
// CoverageRatio below 1 means some batches failed to embed; the orchestrator
// decides whether the fallback text slices are good enough to proceed.
type IndexReceipt struct {
	Namespace     string  `json:"namespace"`
	Total         int     `json:"total"`
	Indexed       int     `json:"indexed"`
	CoverageRatio float64 `json:"coverage_ratio"`
}

// Config configures a gateway.
type Config struct {
	Embedder providers.Embedder
	Index    Index
	Governor *budget.Governor
	Logger   *slog.Logger

	Chunking   ChunkConfig
	BatchSize  int
	BatchDelay time.Duration
}

// Gateway wraps the embedder and the vector index. It also keeps the raw
// chunk texts per paper so retrieval can degrade to text slices when
// embedding quota runs out.
type Gateway struct {
	embedder providers.Embedder
	index    Index
	governor *budget.Governor
	logger   *slog.Logger

	chunking   ChunkConfig
	batchSize  int
	batchDelay time.Duration

	mu       sync.RWMutex
	chunks   map[string][]types.Chunk // paperID -> raw chunks
	patterns []types.StylePattern
}

// NewGateway creates a retriever gateway.
func NewGateway(cfg Config) (*Gateway, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if cfg.Index == nil {
		return nil, fmt.Errorf("index is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	batchDelay := cfg.BatchDelay
	if batchDelay == 0 {
		batchDelay = defaultBatchDelay
	}
	if batchDelay < 0 {
		batchDelay = 0
	}
	return &Gateway{
		embedder:   cfg.Embedder,
		index:      cfg.Index,
		governor:   cfg.Governor,
		logger:     logger.With("component", "retriever"),
		chunking:   cfg.Chunking,
		batchSize:  batchSize,
		batchDelay: batchDelay,
	}, nil
}

func (g *Gateway) init() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.chunks == nil {
		g.chunks = make(map[string][]types.Chunk)
	}
}

// IndexPaper chunks a paper body, embeds the chunks in bounded batches, and
// upserts them into the paper's namespace. Embedding failures degrade
// coverage instead of failing the whole call.
func (g *Gateway) IndexPaper(ctx context.Context, jobID, paperID, body string) (*IndexReceipt, error) {
	g.init()

	chunks := ChunkPaper(paperID, body, g.chunking)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("paper %s produced no chunks", paperID)
	}

	// Raw chunks are kept regardless of embedding outcome so the fallback
	// context path has something to serve.
	g.mu.Lock()
	g.chunks[paperID] = chunks
	g.mu.Unlock()

	namespace := FactNamespace(paperID)
	indexed := 0

	for start := 0; start < len(chunks); start += g.batchSize {
		end := start + g.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		if start > 0 && g.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(g.batchDelay):
			}
		}

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := g.embedder.Embed(ctx, texts, providers.InputPassage)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			g.logger.Warn("embedding batch failed, continuing with partial coverage",
				"paper_id", paperID, "batch_start", start, "error", err)
			continue
		}
		g.recordEmbedding(jobID, texts)

		items := make([]Item, len(batch))
		for i, c := range batch {
			c.Embedding = vectors[i]
			chunks[start+i] = c
			items[i] = Item{
				ID:     c.ChunkID,
				Vector: vectors[i],
				Text:   c.Text,
				Metadata: map[string]string{
					"paper_id": c.PaperID,
					"ordinal":  fmt.Sprintf("%d", c.Ordinal),
				},
			}
		}
		if err := g.index.Upsert(ctx, namespace, items); err != nil {
			g.logger.Warn("index upsert failed, continuing with partial coverage",
				"paper_id", paperID, "batch_start", start, "error", err)
			continue
		}
		indexed += len(batch)
	}

	receipt := &IndexReceipt{
		Namespace:     namespace,
		Total:         len(chunks),
		Indexed:       indexed,
		CoverageRatio: float64(indexed) / float64(len(chunks)),
	}
	g.logger.Info("paper indexed",
		"paper_id", paperID, "chunks", receipt.Total, "coverage", receipt.CoverageRatio)
	return receipt, nil
}

// IndexStyles embeds and upserts the style pattern corpus.
func (g *Gateway) IndexStyles(ctx context.Context, patterns []types.StylePattern) (*IndexReceipt, error) {
	g.init()

	g.mu.Lock()
	g.patterns = append([]types.StylePattern(nil), patterns...)
	g.mu.Unlock()

	indexed := 0
	for start := 0; start < len(patterns); start += g.batchSize {
		end := start + g.batchSize
		if end > len(patterns) {
			end = len(patterns)
		}
		batch := patterns[start:end]

		if start > 0 && g.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(g.batchDelay):
			}
		}

		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.Text
		}
		vectors, err := g.embedder.Embed(ctx, texts, providers.InputPassage)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			g.logger.Warn("style embedding batch failed", "batch_start", start, "error", err)
			continue
		}

		items := make([]Item, len(batch))
		for i, p := range batch {
			items[i] = Item{
				ID:     fmt.Sprintf("%s_%s_%d", p.StyleID, p.Section, start+i),
				Vector: vectors[i],
				Text:   p.Text,
				Metadata: map[string]string{
					"style_id": p.StyleID,
					"section":  string(p.Section),
				},
			}
		}
		if err := g.index.Upsert(ctx, StyleNamespace, items); err != nil {
			g.logger.Warn("style upsert failed", "batch_start", start, "error", err)
			continue
		}
		indexed += len(batch)
	}

	total := len(patterns)
	ratio := 1.0
	if total > 0 {
		ratio = float64(indexed) / float64(total)
	}
	return &IndexReceipt{Namespace: StyleNamespace, Total: total, Indexed: indexed, CoverageRatio: ratio}, nil
}

// RetrieveFacts returns the k chunks most relevant to the query, scoped to a
// paper when paperID is set. When query embedding fails with a transient
// error, or the index query fails or finds nothing, the gateway degrades to
// keyword-overlap scoring over the raw chunk texts instead of failing;
// cancellation and permanent upstream errors are returned.
func (g *Gateway) RetrieveFacts(ctx context.Context, query string, k int, paperID string) ([]types.ScoredChunk, error) {
	g.init()
	if k <= 0 {
		k = 5
	}

	vectors, err := g.embedder.Embed(ctx, []string{query}, providers.InputQuery)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, types.ErrUpstreamPermanent) {
			return nil, err
		}
		g.logger.Warn("query embedding failed, using text-slice fallback", "error", err)
		return g.fallbackFacts(query, k, paperID), nil
	}

	hits, err := g.index.Query(ctx, FactNamespace(paperID), vectors[0], k, nil)
	if err != nil || len(hits) == 0 {
		if err != nil {
			g.logger.Warn("index query failed, using text-slice fallback", "error", err)
		}
		return g.fallbackFacts(query, k, paperID), nil
	}

	out := make([]types.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		out = append(out, types.ScoredChunk{
			Chunk: types.Chunk{ChunkID: h.ID, PaperID: h.Metadata["paper_id"], Text: h.Text},
			Score: h.Score,
		})
	}
	return out, nil
}

// RetrieveStyles returns the k style patterns most relevant to the query,
// optionally filtered to one style.
func (g *Gateway) RetrieveStyles(ctx context.Context, query string, k int, styleID string) ([]types.ScoredStylePattern, error) {
	g.init()
	if k <= 0 {
		k = 3
	}

	var filter map[string]string
	if styleID != "" {
		filter = map[string]string{"style_id": styleID}
	}

	vectors, err := g.embedder.Embed(ctx, []string{query}, providers.InputQuery)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return g.fallbackStyles(k, styleID), nil
	}

	hits, err := g.index.Query(ctx, StyleNamespace, vectors[0], k, filter)
	if err != nil {
		return g.fallbackStyles(k, styleID), nil
	}

	out := make([]types.ScoredStylePattern, 0, len(hits))
	for _, h := range hits {
		out = append(out, types.ScoredStylePattern{
			Pattern: types.StylePattern{
				StyleID: h.Metadata["style_id"],
				Section: types.StyleSection(h.Metadata["section"]),
				Text:    h.Text,
			},
			Score: h.Score,
		})
	}
	return out, nil
}

// Chunks returns the stored raw chunks for a paper.
func (g *Gateway) Chunks(paperID string) []types.Chunk {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]types.Chunk(nil), g.chunks[paperID]...)
}

// fallbackFacts scores raw chunks by keyword overlap with the query. Scores
// are word-overlap ratios, far below embedding similarity quality but enough
// to keep a degraded job grounded in the paper.
func (g *Gateway) fallbackFacts(query string, k int, paperID string) []types.ScoredChunk {
	g.mu.RLock()
	chunks := g.chunks[paperID]
	g.mu.RUnlock()

	queryWords := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len(w) > 3 {
			queryWords[w] = true
		}
	}

	scored := make([]types.ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		overlap := 0
		for _, w := range strings.Fields(strings.ToLower(c.Text)) {
			if queryWords[w] {
				overlap++
			}
		}
		score := float32(0)
		if len(queryWords) > 0 {
			score = float32(overlap) / float32(len(queryWords)*4)
			if score > 1 {
				score = 1
			}
		}
		scored = append(scored, types.ScoredChunk{Chunk: c, Score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

func (g *Gateway) fallbackStyles(k int, styleID string) []types.ScoredStylePattern {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]types.ScoredStylePattern, 0, k)
	for _, p := range g.patterns {
		if styleID != "" && p.StyleID != styleID {
			continue
		}
		out = append(out, types.ScoredStylePattern{Pattern: p, Score: 0})
		if len(out) == k {
			break
		}
	}
	return out
}

func (g *Gateway) recordEmbedding(jobID string, texts []string) {
	if g.governor == nil || jobID == "" {
		return
	}
	chars := 0
	for _, t := range texts {
		chars += len(t)
	}
	g.governor.RecordTokens(jobID, budget.OpEmbedding, chars/4)
}
