package budget

import (
	"errors"
	"testing"
	"time"

	"github.com/papercast-ai/papercast/internal/types"
)

func newTestGovernor() *Governor {
	return NewGovernor(Limits{
		MaxCost:           1.00,
		AlertThreshold:    0.8,
		MaxTokensPerPaper: 1000,
		MaxProcessingTime: time.Hour,
	}, DefaultRates(), nil)
}

func TestCheckPrecall(t *testing.T) {
	t.Run("allows within budget", func(t *testing.T) {
		g := newTestGovernor()
		g.Open("j1", Limits{})
		if err := g.CheckPrecall("j1", 100); err != nil {
			t.Errorf("CheckPrecall() error = %v", err)
		}
	})

	t.Run("denies when cost cap reached", func(t *testing.T) {
		g := newTestGovernor()
		g.Open("j1", Limits{})
		g.RecordUsage("j1", 0, 1.50)
		err := g.CheckPrecall("j1", 1)
		if !errors.Is(err, types.ErrBudgetExceeded) {
			t.Errorf("got %v, want budget exceeded", err)
		}
	})

	t.Run("denies when tokens would exceed cap", func(t *testing.T) {
		g := newTestGovernor()
		g.Open("j1", Limits{})
		g.RecordUsage("j1", 950, 0)
		if err := g.CheckPrecall("j1", 100); !errors.Is(err, types.ErrBudgetExceeded) {
			t.Errorf("got %v, want budget exceeded", err)
		}
	})

	t.Run("denies when processing time elapsed", func(t *testing.T) {
		g := newTestGovernor()
		g.Open("j1", Limits{})
		now := time.Now()
		g.SetClock(func() time.Time { return now.Add(2 * time.Hour) })
		if err := g.CheckPrecall("j1", 1); !errors.Is(err, types.ErrBudgetExceeded) {
			t.Errorf("got %v, want budget exceeded", err)
		}
	})

	t.Run("unknown job errors", func(t *testing.T) {
		g := newTestGovernor()
		if err := g.CheckPrecall("nope", 1); err == nil {
			t.Error("expected error for unknown job")
		}
	})
}

func TestRecordUsage(t *testing.T) {
	g := newTestGovernor()
	g.Open("j1", Limits{})

	g.RecordUsage("j1", 100, 0.10)
	g.RecordUsage("j1", -50, -0.05) // negative inputs ignored
	g.RecordUsage("j1", 100, 0.10)

	snap, ok := g.Snapshot("j1")
	if !ok {
		t.Fatal("no snapshot")
	}
	if snap.TokensUsed != 200 {
		t.Errorf("tokens = %d, want 200", snap.TokensUsed)
	}
	if diff := snap.CostEstimate - 0.20; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("cost = %v, want 0.20", snap.CostEstimate)
	}
}

func TestRates(t *testing.T) {
	g := newTestGovernor()
	g.Open("j1", Limits{})

	closeTo := func(got, want float64) bool {
		diff := got - want
		return diff < 1e-9 && diff > -1e-9
	}

	g.RecordTokens("j1", OpReasoning, 1000)
	snap, _ := g.Snapshot("j1")
	want := 1000 * DefaultRates().ReasoningPerToken
	if !closeTo(snap.CostEstimate, want) {
		t.Errorf("reasoning cost = %v, want %v", snap.CostEstimate, want)
	}

	g.RecordSynthesis("j1", 1000)
	snap, _ = g.Snapshot("j1")
	want += 1000 * DefaultRates().SynthesisPerChar
	if !closeTo(snap.CostEstimate, want) {
		t.Errorf("total cost = %v, want %v", snap.CostEstimate, want)
	}
}

func TestExceeded(t *testing.T) {
	g := newTestGovernor()
	g.Open("j1", Limits{MaxCost: 0.10})

	if exceeded, _ := g.Exceeded("j1"); exceeded {
		t.Error("fresh job should not be exceeded")
	}
	g.RecordUsage("j1", 0, 0.10)
	exceeded, reason := g.Exceeded("j1")
	if !exceeded {
		t.Error("cost at cap should be exceeded")
	}
	if reason == "" {
		t.Error("exceeded should report a reason")
	}
}

func TestClose(t *testing.T) {
	g := newTestGovernor()
	g.Open("j1", Limits{})
	g.Close("j1")
	if _, ok := g.Snapshot("j1"); ok {
		t.Error("snapshot should be gone after close")
	}
}
