package retriever

import (
	"context"
	"strings"
	"testing"

	"github.com/papercast-ai/papercast/internal/providers"
	"github.com/papercast-ai/papercast/internal/types"
)

func TestChunkPaper(t *testing.T) {
	words := func(n int) string {
		parts := make([]string, n)
		for i := range parts {
			parts[i] = "w"
		}
		return strings.Join(parts, " ")
	}

	t.Run("windows with overlap", func(t *testing.T) {
		chunks := ChunkPaper("p1", words(700), DefaultChunkConfig())
		if len(chunks) < 3 {
			t.Fatalf("got %d chunks, want >= 3", len(chunks))
		}
		for i, c := range chunks {
			if c.Ordinal != i {
				t.Errorf("chunk %d ordinal = %d", i, c.Ordinal)
			}
			if c.PaperID != "p1" {
				t.Errorf("chunk %d paper = %s", i, c.PaperID)
			}
			if got := len(strings.Fields(c.Text)); got > 300 {
				t.Errorf("chunk %d has %d words", i, got)
			}
		}
	})

	t.Run("drops short fragments", func(t *testing.T) {
		// 320 words: window of 300, then a 120-word tail starting at 200.
		chunks := ChunkPaper("p1", words(320), DefaultChunkConfig())
		for _, c := range chunks {
			if got := len(strings.Fields(c.Text)); got < 50 {
				t.Errorf("chunk below minimum: %d words", got)
			}
		}
	})

	t.Run("short paper still yields one chunk", func(t *testing.T) {
		chunks := ChunkPaper("p1", "tiny body of text", DefaultChunkConfig())
		if len(chunks) != 1 {
			t.Fatalf("got %d chunks, want 1", len(chunks))
		}
	})

	t.Run("empty body yields none", func(t *testing.T) {
		if chunks := ChunkPaper("p1", "   ", DefaultChunkConfig()); chunks != nil {
			t.Errorf("got %d chunks, want none", len(chunks))
		}
	})
}

func TestMemoryIndex(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	items := []Item{
		{ID: "a", Vector: []float32{1, 0}, Text: "alpha", Metadata: map[string]string{"paper_id": "p1"}},
		{ID: "b", Vector: []float32{0, 1}, Text: "beta", Metadata: map[string]string{"paper_id": "p1"}},
		{ID: "c", Vector: []float32{0.9, 0.1}, Text: "gamma", Metadata: map[string]string{"paper_id": "p2"}},
	}
	if err := idx.Upsert(ctx, "facts", items); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	t.Run("orders by similarity", func(t *testing.T) {
		hits, err := idx.Query(ctx, "facts", []float32{1, 0}, 3, nil)
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if hits[0].ID != "a" {
			t.Errorf("top hit = %s, want a", hits[0].ID)
		}
		for i := 1; i < len(hits); i++ {
			if hits[i].Score > hits[i-1].Score {
				t.Error("hits not in descending score order")
			}
		}
	})

	t.Run("applies filters", func(t *testing.T) {
		hits, err := idx.Query(ctx, "facts", []float32{1, 0}, 3, map[string]string{"paper_id": "p2"})
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if len(hits) != 1 || hits[0].ID != "c" {
			t.Errorf("hits = %+v", hits)
		}
	})

	t.Run("respects k", func(t *testing.T) {
		hits, _ := idx.Query(ctx, "facts", []float32{1, 0}, 1, nil)
		if len(hits) != 1 {
			t.Errorf("got %d hits, want 1", len(hits))
		}
	})
}

func body(words int) string {
	parts := make([]string, words)
	for i := range parts {
		parts[i] = "attention"
		if i%7 == 0 {
			parts[i] = "transformer"
		}
	}
	return strings.Join(parts, " ")
}

func newTestGateway(t *testing.T, embedder providers.Embedder) *Gateway {
	t.Helper()
	g, err := NewGateway(Config{
		Embedder:   embedder,
		Index:      NewMemoryIndex(),
		BatchSize:  4,
		BatchDelay: -1, // no inter-batch sleep in tests
	})
	if err != nil {
		t.Fatalf("NewGateway() error = %v", err)
	}
	return g
}

func TestIndexPaper(t *testing.T) {
	ctx := context.Background()

	t.Run("full coverage", func(t *testing.T) {
		g := newTestGateway(t, providers.NewMockEmbedder())
		receipt, err := g.IndexPaper(ctx, "job1", "p1", body(900))
		if err != nil {
			t.Fatalf("IndexPaper() error = %v", err)
		}
		if receipt.CoverageRatio != 1.0 {
			t.Errorf("coverage = %v, want 1.0", receipt.CoverageRatio)
		}
		if receipt.Indexed != receipt.Total {
			t.Errorf("indexed %d of %d", receipt.Indexed, receipt.Total)
		}
	})

	t.Run("partial coverage on embed failure", func(t *testing.T) {
		g := newTestGateway(t, &providers.MockEmbedder{Dim: 8, FailAfter: 1})
		receipt, err := g.IndexPaper(ctx, "job1", "p2", body(2500))
		if err != nil {
			t.Fatalf("IndexPaper() error = %v", err)
		}
		if receipt.CoverageRatio >= 1.0 || receipt.CoverageRatio <= 0 {
			t.Errorf("coverage = %v, want partial", receipt.CoverageRatio)
		}
		// Raw chunks must survive for the fallback path.
		if len(g.Chunks("p2")) != receipt.Total {
			t.Errorf("stored %d chunks, want %d", len(g.Chunks("p2")), receipt.Total)
		}
	})
}

func TestRetrieveFacts(t *testing.T) {
	ctx := context.Background()

	t.Run("retrieves indexed chunks", func(t *testing.T) {
		g := newTestGateway(t, providers.NewMockEmbedder())
		if _, err := g.IndexPaper(ctx, "job1", "p1", body(900)); err != nil {
			t.Fatal(err)
		}
		facts, err := g.RetrieveFacts(ctx, "transformer attention", 3, "p1")
		if err != nil {
			t.Fatalf("RetrieveFacts() error = %v", err)
		}
		if len(facts) == 0 {
			t.Fatal("no facts retrieved")
		}
		for i := 1; i < len(facts); i++ {
			if facts[i].Score > facts[i-1].Score {
				t.Error("facts not in descending score order")
			}
		}
	})

	t.Run("falls back to text slices when embedding fails", func(t *testing.T) {
		embedder := &providers.MockEmbedder{Dim: 8}
		g := newTestGateway(t, embedder)
		if _, err := g.IndexPaper(ctx, "job1", "p1", body(900)); err != nil {
			t.Fatal(err)
		}
		embedder.FailAll = true

		facts, err := g.RetrieveFacts(ctx, "transformer", 3, "p1")
		if err != nil {
			t.Fatalf("RetrieveFacts() fallback error = %v", err)
		}
		if len(facts) == 0 {
			t.Fatal("fallback returned no context")
		}
		for _, f := range facts {
			if f.Chunk.Text == "" {
				t.Error("fallback chunk has no text")
			}
		}
	})
}

func TestIndexAndRetrieveStyles(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway(t, providers.NewMockEmbedder())

	patterns := []types.StylePattern{
		{StyleID: "npr_calm", Section: types.StyleSectionOpening, Text: "Today, a study."},
		{StyleID: "npr_calm", Section: types.StyleSectionReaction, Text: "That's striking."},
		{StyleID: "news_flash", Section: types.StyleSectionOpening, Text: "Breaking news."},
	}
	receipt, err := g.IndexStyles(ctx, patterns)
	if err != nil {
		t.Fatalf("IndexStyles() error = %v", err)
	}
	if receipt.CoverageRatio != 1.0 {
		t.Errorf("coverage = %v", receipt.CoverageRatio)
	}

	hits, err := g.RetrieveStyles(ctx, "an opening line", 2, "npr_calm")
	if err != nil {
		t.Fatalf("RetrieveStyles() error = %v", err)
	}
	for _, h := range hits {
		if h.Pattern.StyleID != "npr_calm" {
			t.Errorf("style filter leaked: %+v", h.Pattern)
		}
	}
}
