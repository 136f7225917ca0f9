package ingest

import (
	"errors"
	"strings"
	"testing"

	"github.com/papercast-ai/papercast/internal/types"
)

func longBody(prefix string) string {
	return prefix + strings.Repeat("This sentence pads the paper body with enough text to pass validation. ", 10)
}

func TestFromText(t *testing.T) {
	t.Run("uses supplied title", func(t *testing.T) {
		p, err := FromText("My Paper", longBody(""), "src")
		if err != nil {
			t.Fatalf("FromText() error = %v", err)
		}
		if p.Title != "My Paper" || p.PaperID == "" || p.SourceRef != "src" {
			t.Errorf("paper = %+v", p)
		}
	})

	t.Run("extracts title from first line", func(t *testing.T) {
		body := "Attention Is All You Need\n\n" + longBody("")
		p, err := FromText("", body, "")
		if err != nil {
			t.Fatalf("FromText() error = %v", err)
		}
		if p.Title != "Attention Is All You Need" {
			t.Errorf("title = %q", p.Title)
		}
	})

	t.Run("strips markdown heading", func(t *testing.T) {
		body := "# A Heading Title\n" + longBody("")
		p, err := FromText("", body, "")
		if err != nil {
			t.Fatal(err)
		}
		if p.Title != "A Heading Title" {
			t.Errorf("title = %q", p.Title)
		}
	})

	t.Run("rejects short bodies", func(t *testing.T) {
		_, err := FromText("t", "too short", "")
		var je *types.JobError
		if !errors.As(err, &je) || je.Kind != types.ErrKindBadInput {
			t.Errorf("got %v, want bad input", err)
		}
	})
}

func TestStore(t *testing.T) {
	s := NewStore()
	p, err := FromText("T", longBody(""), "")
	if err != nil {
		t.Fatal(err)
	}
	s.Add(p)

	got, err := s.Get(p.PaperID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.PaperID != p.PaperID {
		t.Error("wrong paper")
	}

	if _, err := s.Get("missing"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("got %v, want not found", err)
	}

	if len(s.List()) != 1 {
		t.Errorf("list = %d, want 1", len(s.List()))
	}
}

func TestExtractTitle(t *testing.T) {
	t.Run("skips abstract heading", func(t *testing.T) {
		got := ExtractTitle("\nAbstract\nThe Real Title\nbody")
		if got != "The Real Title" {
			t.Errorf("title = %q", got)
		}
	})

	t.Run("empty body yields empty title", func(t *testing.T) {
		if got := ExtractTitle("   \n  "); got != "" {
			t.Errorf("title = %q", got)
		}
	})
}

func TestFromFileUnsupported(t *testing.T) {
	_, err := FromFile("paper.docx")
	var je *types.JobError
	if !errors.As(err, &je) || je.Kind != types.ErrKindBadInput {
		t.Errorf("got %v, want bad input", err)
	}
}
