package reasoner

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/papercast-ai/papercast/internal/budget"
	"github.com/papercast-ai/papercast/internal/contract"
	"github.com/papercast-ai/papercast/internal/providers"
	"github.com/papercast-ai/papercast/internal/types"
)

func newTestGateway(t *testing.T, mock *providers.MockReasoner, governor *budget.Governor) *Gateway {
	t.Helper()
	codec, err := contract.NewCodec()
	if err != nil {
		t.Fatal(err)
	}
	g, err := NewGateway(Config{Client: mock, Codec: codec, Governor: governor})
	if err != nil {
		t.Fatalf("NewGateway() error = %v", err)
	}
	return g
}

func outlinePrompt() OutlinePrompt {
	return OutlinePrompt{
		PaperTitle:      "A Paper",
		PaperContext:    "some context",
		StyleName:       "Public Radio Calm",
		TargetDurationS: 900,
	}
}

func TestGenerateOutline(t *testing.T) {
	t.Run("valid response decodes", func(t *testing.T) {
		g := newTestGateway(t, providers.NewMockReasoner(), nil)
		out, usage, err := g.GenerateOutline(context.Background(), outlinePrompt(), CallOpts{})
		if err != nil {
			t.Fatalf("GenerateOutline() error = %v", err)
		}
		if len(out.Segments) < types.MinOutlineSegments {
			t.Errorf("got %d segments", len(out.Segments))
		}
		if usage.Total() <= 0 {
			t.Errorf("usage = %+v", usage)
		}
	})

	t.Run("model repair recovers malformed output", func(t *testing.T) {
		mock := providers.NewMockReasoner()
		mock.Script(contract.ResponseOutline, "definitely not json")
		// The repair call gets the canned valid outline via its own path.
		valid, _ := providers.NewMockReasoner().Invoke(context.Background(), &providers.ReasonRequest{
			Messages:     []providers.Message{{Role: "user", Content: "x"}},
			ResponseType: contract.ResponseOutline,
		})
		mock.Script(contract.ResponseRepair, valid.Content)

		g := newTestGateway(t, mock, nil)
		out, _, err := g.GenerateOutline(context.Background(), outlinePrompt(), CallOpts{})
		if err != nil {
			t.Fatalf("GenerateOutline() after repair error = %v", err)
		}
		if len(out.Segments) == 0 {
			t.Error("repair produced empty outline")
		}
	})

	t.Run("repair exhausted surfaces contract error", func(t *testing.T) {
		mock := providers.NewMockReasoner()
		mock.Script(contract.ResponseOutline, "garbage")
		mock.Script(contract.ResponseRepair, "more garbage")

		g := newTestGateway(t, mock, nil)
		_, _, err := g.GenerateOutline(context.Background(), outlinePrompt(), CallOpts{})
		if !errors.Is(err, types.ErrMalformedContract) {
			t.Errorf("got %v, want malformed contract", err)
		}
	})
}

func TestBudgetDenial(t *testing.T) {
	governor := budget.NewGovernor(budget.Limits{
		MaxCost:           0.01,
		MaxTokensPerPaper: 10,
	}, budget.DefaultRates(), nil)
	governor.Open("j1", budget.Limits{})

	g := newTestGateway(t, providers.NewMockReasoner(), governor)
	_, _, err := g.GenerateOutline(context.Background(), outlinePrompt(), CallOpts{JobID: "j1"})
	if !errors.Is(err, types.ErrBudgetExceeded) {
		t.Errorf("got %v, want budget exceeded", err)
	}
}

func TestTransportRetry(t *testing.T) {
	t.Run("transient errors retried", func(t *testing.T) {
		mock := providers.NewMockReasoner()
		calls := 0
		mock.OnInvoke = func(ctx context.Context, req *providers.ReasonRequest) (*providers.ReasonResult, error) {
			calls++
			if calls == 1 {
				return nil, fmt.Errorf("%w: connection reset", types.ErrUpstreamTransient)
			}
			return nil, nil // fall through to canned response
		}

		g := newTestGateway(t, mock, nil)
		_, _, err := g.GenerateOutline(context.Background(), outlinePrompt(), CallOpts{})
		if err != nil {
			t.Fatalf("GenerateOutline() error = %v", err)
		}
		if calls < 2 {
			t.Errorf("calls = %d, want retry", calls)
		}
	})

	t.Run("permanent errors fail fast", func(t *testing.T) {
		mock := providers.NewMockReasoner()
		calls := 0
		mock.OnInvoke = func(ctx context.Context, req *providers.ReasonRequest) (*providers.ReasonResult, error) {
			calls++
			return nil, fmt.Errorf("%w: invalid api key", types.ErrUpstreamPermanent)
		}

		g := newTestGateway(t, mock, nil)
		_, _, err := g.GenerateOutline(context.Background(), outlinePrompt(), CallOpts{})
		if !errors.Is(err, types.ErrUpstreamPermanent) {
			t.Errorf("got %v, want permanent", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})
}

func TestFactCheckAndRewrite(t *testing.T) {
	g := newTestGateway(t, providers.NewMockReasoner(), nil)
	hosts := []types.Speaker{types.SpeakerHost1, types.SpeakerHost2}
	lines := []types.ScriptLine{
		{Speaker: types.SpeakerHost1, Text: "a claim", NeedsRewrite: true},
		{Speaker: types.SpeakerHost2, Text: "another claim"},
	}

	fc, _, err := g.FactCheck(context.Background(), FactCheckPrompt{
		SegmentTitle: "Title",
		Lines:        lines,
	}, CallOpts{})
	if err != nil {
		t.Fatalf("FactCheck() error = %v", err)
	}
	if fc.Accuracy <= 0 {
		t.Errorf("accuracy = %v", fc.Accuracy)
	}

	seg, _, err := g.Rewrite(context.Background(), RewritePrompt{
		Lines:    lines,
		Feedback: "fix it",
		Hosts:    hosts,
	}, CallOpts{})
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	if len(seg.Script) == 0 {
		t.Error("empty rewrite script")
	}
}
