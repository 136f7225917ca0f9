package synth

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/papercast-ai/papercast/internal/providers"
	"github.com/papercast-ai/papercast/internal/storage"
	"github.com/papercast-ai/papercast/internal/types"
)

func TestVoiceMapResolve(t *testing.T) {
	v := DefaultVoiceMap()

	t.Run("style override wins", func(t *testing.T) {
		if got := v.Resolve("npr_calm", types.SpeakerHost1); got != "shimmer" {
			t.Errorf("got %s, want shimmer", got)
		}
	})

	t.Run("unmapped style uses defaults", func(t *testing.T) {
		if got := v.Resolve("classroom", types.SpeakerHost1); got != "nova" {
			t.Errorf("got %s, want nova", got)
		}
	})

	t.Run("unmapped speaker falls back to narrator", func(t *testing.T) {
		v := VoiceMap{
			Default: map[types.Speaker]string{types.SpeakerNarrator: "alloy"},
			Styles: map[string]map[types.Speaker]string{
				"debate_format": {types.SpeakerNarrator: "sage"},
			},
		}
		if got := v.Resolve("debate_format", types.SpeakerHost1); got != "sage" {
			t.Errorf("got %s, want style narrator sage", got)
		}
		if got := v.Resolve("other", types.SpeakerHost1); got != "alloy" {
			t.Errorf("got %s, want global narrator alloy", got)
		}
	})

	t.Run("resolution is deterministic", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			if v.Resolve("npr_calm", types.SpeakerHost2) != v.Resolve("npr_calm", types.SpeakerHost2) {
				t.Fatal("resolution not deterministic")
			}
		}
	})
}

func newTestGateway(t *testing.T, s providers.Synthesizer) *Gateway {
	t.Helper()
	store, err := storage.NewLocalAdapter(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	g, err := NewGateway(Config{
		Synthesizer: s,
		Store:       store,
		Stitcher:    &ByteStitcher{},
	})
	if err != nil {
		t.Fatalf("NewGateway() error = %v", err)
	}
	return g
}

func TestSynthesizeLine(t *testing.T) {
	ctx := context.Background()

	t.Run("stores the artifact", func(t *testing.T) {
		g := newTestGateway(t, providers.NewMockSynthesizer())
		ref, err := g.SynthesizeLine(ctx, "j1", 0, 0, "hello world", "nova", providers.SpeechHints{})
		if err != nil {
			t.Fatalf("SynthesizeLine() error = %v", err)
		}
		if ref.Key == "" || ref.DurationMS <= 0 || ref.Degraded {
			t.Errorf("ref = %+v", ref)
		}
	})

	t.Run("permanent failure substitutes placeholder", func(t *testing.T) {
		mock := providers.NewMockSynthesizer()
		mock.FailTexts = []string{"cursed"}
		g := newTestGateway(t, mock)

		ref, err := g.SynthesizeLine(ctx, "j1", 0, 1, "a cursed line", "nova", providers.SpeechHints{})
		if err != nil {
			t.Fatalf("SynthesizeLine() should degrade, got error %v", err)
		}
		if !ref.Degraded {
			t.Error("ref should be marked degraded")
		}
		if ref.DurationMS <= 0 {
			t.Error("placeholder must carry an estimated duration")
		}
	})
}

func TestConcatenate(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway(t, providers.NewMockSynthesizer())

	lineRefs := make([]AudioRef, 3)
	for i, text := range []string{"first line", "second line", "third line"} {
		ref, err := g.SynthesizeLine(ctx, "j1", 0, i, text, "nova", providers.SpeechHints{})
		if err != nil {
			t.Fatal(err)
		}
		lineRefs[i] = ref
	}

	segRef, err := g.ConcatenateSegment(ctx, "j1", 0, lineRefs, 100)
	if err != nil {
		t.Fatalf("ConcatenateSegment() error = %v", err)
	}

	rc, err := g.store.Get(ctx, segRef.Key)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()

	content := string(data)
	first := strings.Index(content, "first line")
	second := strings.Index(content, "second line")
	third := strings.Index(content, "third line")
	if first < 0 || second < first || third < second {
		t.Errorf("line order lost in segment: %q", content)
	}
	if !strings.Contains(content, "[silence:100ms]") {
		t.Error("inter-line gap missing")
	}

	t.Run("episode follows ref order", func(t *testing.T) {
		ep, err := g.ConcatenateEpisode(ctx, "j1", []AudioRef{segRef, segRef}, 200, 50, 75)
		if err != nil {
			t.Fatalf("ConcatenateEpisode() error = %v", err)
		}
		rc, err := g.store.Get(ctx, ep.Key)
		if err != nil {
			t.Fatal(err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		s := string(data)
		if !strings.HasPrefix(s, "[silence:50ms]") || !strings.HasSuffix(s, "[silence:75ms]") {
			t.Error("lead-in/lead-out missing")
		}
		if !strings.Contains(s, "[silence:200ms]") {
			t.Error("inter-segment gap missing")
		}
	})

	t.Run("empty refs fail", func(t *testing.T) {
		if _, err := g.ConcatenateSegment(ctx, "j1", 1, nil, 100); err == nil {
			t.Error("expected error for empty refs")
		}
	})
}
