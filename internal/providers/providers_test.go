package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/papercast-ai/papercast/internal/contract"
	"github.com/papercast-ai/papercast/internal/types"
)

func TestRateLimiter(t *testing.T) {
	t.Run("allows burst then throttles", func(t *testing.T) {
		r := NewRateLimiter(10)
		ctx := context.Background()

		start := time.Now()
		for i := 0; i < 10; i++ {
			if err := r.Wait(ctx); err != nil {
				t.Fatalf("Wait() error = %v", err)
			}
		}
		if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
			t.Errorf("burst took %s", elapsed)
		}

		// Bucket drained; the next token must wait ~100ms at 10 rps.
		start = time.Now()
		if err := r.Wait(ctx); err != nil {
			t.Fatal(err)
		}
		if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
			t.Errorf("throttle too permissive: %s", elapsed)
		}
	})

	t.Run("respects cancellation", func(t *testing.T) {
		r := NewRateLimiter(0.1)
		ctx := context.Background()
		_ = r.Wait(ctx) // drain

		cancelCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		if err := r.Wait(cancelCtx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("got %v, want deadline exceeded", err)
		}
	})

	t.Run("429 drains the bucket", func(t *testing.T) {
		r := NewRateLimiter(100)
		r.Record429(time.Second)
		if status := r.Status(); status.TokensAvail >= 1 {
			t.Errorf("tokens = %v after 429", status.TokensAvail)
		}
	})
}

func TestMockReasoner(t *testing.T) {
	ctx := context.Background()

	t.Run("scripted responses served in order", func(t *testing.T) {
		m := NewMockReasoner()
		m.Script(contract.ResponseOutline, "first", "second")

		req := &ReasonRequest{
			Messages:     []Message{{Role: "user", Content: "plan"}},
			ResponseType: contract.ResponseOutline,
		}
		res, _ := m.Invoke(ctx, req)
		if res.Content != "first" {
			t.Errorf("got %q", res.Content)
		}
		res, _ = m.Invoke(ctx, req)
		if res.Content != "second" {
			t.Errorf("got %q", res.Content)
		}
		// Queue exhausted: canned fallback is valid JSON.
		res, _ = m.Invoke(ctx, req)
		if res.Content == "" || res.Content == "second" {
			t.Errorf("got %q", res.Content)
		}
	})

	t.Run("canned responses satisfy the codec", func(t *testing.T) {
		m := NewMockReasoner()
		codec, err := contract.NewCodec()
		if err != nil {
			t.Fatal(err)
		}

		res, err := m.Invoke(ctx, &ReasonRequest{
			Messages:     []Message{{Role: "user", Content: "x"}},
			ResponseType: contract.ResponseOutline,
		})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := codec.DecodeOutline(res.Content); err != nil {
			t.Errorf("canned outline invalid: %v", err)
		}

		res, _ = m.Invoke(ctx, &ReasonRequest{
			Messages:     []Message{{Role: "user", Content: "x"}},
			ResponseType: contract.ResponseSegment,
		})
		hosts := []types.Speaker{types.SpeakerHost1, types.SpeakerHost2}
		if _, err := codec.DecodeSegment(contract.ResponseSegment, res.Content, hosts); err != nil {
			t.Errorf("canned segment invalid: %v", err)
		}

		res, _ = m.Invoke(ctx, &ReasonRequest{
			Messages:     []Message{{Role: "user", Content: "x"}},
			ResponseType: contract.ResponseFactCheck,
		})
		if _, err := codec.DecodeFactCheck(res.Content); err != nil {
			t.Errorf("canned factcheck invalid: %v", err)
		}
	})

	t.Run("reports usage", func(t *testing.T) {
		m := NewMockReasoner()
		res, _ := m.Invoke(ctx, &ReasonRequest{
			Messages:     []Message{{Role: "user", Content: "a long enough prompt body"}},
			ResponseType: contract.ResponseFactCheck,
		})
		if res.Usage.PromptTokens <= 0 || res.Usage.CompletionTokens <= 0 {
			t.Errorf("usage = %+v", res.Usage)
		}
	})
}

func TestMockEmbedder(t *testing.T) {
	ctx := context.Background()
	m := NewMockEmbedder()

	t.Run("deterministic per text", func(t *testing.T) {
		a, err := m.Embed(ctx, []string{"hello", "world"}, InputPassage)
		if err != nil {
			t.Fatal(err)
		}
		b, err := m.Embed(ctx, []string{"hello", "world"}, InputQuery)
		if err != nil {
			t.Fatal(err)
		}
		for i := range a {
			for j := range a[i] {
				if a[i][j] != b[i][j] {
					t.Fatal("embeddings not deterministic")
				}
			}
		}
		if len(a[0]) != m.Dimension() {
			t.Errorf("dimension = %d, want %d", len(a[0]), m.Dimension())
		}
	})

	t.Run("different texts differ", func(t *testing.T) {
		vecs, _ := m.Embed(ctx, []string{"alpha", "omega"}, InputPassage)
		same := true
		for j := range vecs[0] {
			if vecs[0][j] != vecs[1][j] {
				same = false
				break
			}
		}
		if same {
			t.Error("distinct texts produced identical vectors")
		}
	})
}

func TestMockSynthesizer(t *testing.T) {
	ctx := context.Background()
	m := NewMockSynthesizer()

	res, err := m.Synthesize(ctx, "hello there", "nova", SpeechHints{})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if len(res.Audio) == 0 || res.DurationMS <= 0 {
		t.Errorf("result = %+v", res)
	}

	m.FailTexts = []string{"bad"}
	if _, err := m.Synthesize(ctx, "a bad line", "nova", SpeechHints{}); !errors.Is(err, types.ErrUpstreamPermanent) {
		t.Errorf("got %v, want permanent", err)
	}
}

func TestRegistry(t *testing.T) {
	t.Run("defaults to mocks", func(t *testing.T) {
		r, err := NewRegistry(RegistryConfig{}, nil)
		if err != nil {
			t.Fatalf("NewRegistry() error = %v", err)
		}
		if r.Reasoner().Name() != "mock" || r.Embedder().Name() != "mock" || r.Synthesizer().Name() != "mock" {
			t.Error("empty config should select mocks")
		}
	})

	t.Run("rejects unknown types", func(t *testing.T) {
		_, err := NewRegistry(RegistryConfig{Reasoner: ProviderConfig{Type: "quantum"}}, nil)
		if err == nil {
			t.Error("expected error for unknown provider type")
		}
	})

	t.Run("builds openai backends", func(t *testing.T) {
		r, err := NewRegistry(RegistryConfig{
			Reasoner:    ProviderConfig{Type: "openai", APIKey: "sk-test"},
			Embedder:    ProviderConfig{Type: "openai", APIKey: "sk-test"},
			Synthesizer: ProviderConfig{Type: "openai", APIKey: "sk-test"},
		}, nil)
		if err != nil {
			t.Fatalf("NewRegistry() error = %v", err)
		}
		if r.Reasoner().Name() != OpenAIReasonerName {
			t.Errorf("reasoner = %s", r.Reasoner().Name())
		}
	})
}
