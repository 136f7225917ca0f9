// Package ingest turns uploaded files into Paper records and keeps the
// in-process paper registry.
package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercast-ai/papercast/internal/types"
)

// MinPaperChars guards against empty or near-empty uploads.
const MinPaperChars = 100

// Store is the in-process paper registry. Papers are immutable once added.
type Store struct {
	mu     sync.RWMutex
	papers map[string]*types.Paper
}

// NewStore creates an empty paper store.
func NewStore() *Store {
	return &Store{papers: make(map[string]*types.Paper)}
}

// Add registers a paper.
func (s *Store) Add(p *types.Paper) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.papers[p.PaperID] = p
}

// Get returns a paper by ID.
func (s *Store) Get(paperID string) (*types.Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.papers[paperID]
	if !ok {
		return nil, fmt.Errorf("paper %s: %w", paperID, types.ErrNotFound)
	}
	return p, nil
}

// List returns all papers.
func (s *Store) List() []*types.Paper {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Paper, 0, len(s.papers))
	for _, p := range s.papers {
		out = append(out, p)
	}
	return out
}

// FromText builds a paper from raw text. The title is taken from the first
// non-empty line when not supplied.
func FromText(title, body, sourceRef string) (*types.Paper, error) {
	body = strings.TrimSpace(body)
	if len(body) < MinPaperChars {
		return nil, types.NewJobError(types.ErrKindBadInput,
			fmt.Sprintf("paper body has %d characters, need at least %d", len(body), MinPaperChars))
	}
	if title == "" {
		title = ExtractTitle(body)
	}
	if title == "" {
		return nil, types.NewJobError(types.ErrKindBadInput, "could not determine paper title")
	}
	return &types.Paper{
		PaperID:   uuid.New().String(),
		Title:     title,
		Body:      body,
		SourceRef: sourceRef,
		CreatedAt: time.Now(),
	}, nil
}

// FromFile builds a paper from a .txt, .md, or .pdf file.
func FromFile(path string) (*types.Paper, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		return FromText("", string(data), path)
	case ".pdf":
		text, err := ExtractPDFText(path)
		if err != nil {
			return nil, fmt.Errorf("extracting text from %s: %w", path, err)
		}
		return FromText("", text, path)
	default:
		return nil, types.NewJobError(types.ErrKindBadInput,
			fmt.Sprintf("unsupported file type %s", filepath.Ext(path)))
	}
}

// ExtractTitle picks the first plausible title line from a body.
func ExtractTitle(body string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "# "))
		if line == "" {
			continue
		}
		// Skip obvious non-title lines.
		if strings.HasPrefix(strings.ToLower(line), "abstract") {
			continue
		}
		if len(line) > 200 {
			line = line[:200]
		}
		return line
	}
	return ""
}
