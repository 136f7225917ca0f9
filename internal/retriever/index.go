package retriever

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Item is one vector record upserted into the index.
type Item struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata map[string]string
}

// Hit is one query result, highest similarity first.
type Hit struct {
	ID       string
	Score    float32
	Text     string
	Metadata map[string]string
}

// Index abstracts the vector store. Namespaces isolate papers from each
// other and from the style corpus; reads may run concurrently with writes to
// a different namespace.
type Index interface {
	Upsert(ctx context.Context, namespace string, items []Item) error
	Query(ctx context.Context, namespace string, vector []float32, k int, filter map[string]string) ([]Hit, error)
}

// MemoryIndex is a process-local Index used for tests and single-node runs.
type MemoryIndex struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]Item
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{namespaces: make(map[string]map[string]Item)}
}

// Upsert stores items, replacing any with matching IDs.
func (m *MemoryIndex) Upsert(ctx context.Context, namespace string, items []Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.namespaces[namespace]
	if !ok {
		ns = make(map[string]Item)
		m.namespaces[namespace] = ns
	}
	for _, it := range items {
		ns[it.ID] = it
	}
	return nil
}

// Query returns the k most similar items by cosine similarity.
func (m *MemoryIndex) Query(ctx context.Context, namespace string, vector []float32, k int, filter map[string]string) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	ns := m.namespaces[namespace]
	hits := make([]Hit, 0, len(ns))
	for _, it := range ns {
		if !matchesFilter(it.Metadata, filter) {
			continue
		}
		hits = append(hits, Hit{
			ID:       it.ID,
			Score:    cosine(vector, it.Vector),
			Text:     it.Text,
			Metadata: it.Metadata,
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Count returns the number of items in a namespace.
func (m *MemoryIndex) Count(namespace string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.namespaces[namespace])
}

func matchesFilter(meta, filter map[string]string) bool {
	for k, v := range filter {
		if meta[k] != v {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
