// Package budget implements process-wide cost and token accounting with
// hard-stop checks. The reasoner gateway calls CheckPrecall before each
// reasoner call and the orchestrator checks Exceeded before each state
// transition; gateways record usage as calls complete.
package budget

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/papercast-ai/papercast/internal/types"
)

// OpClass identifies a billing class for cost estimation.
type OpClass string

const (
	OpReasoning OpClass = "reasoning"
	OpEmbedding OpClass = "embedding"
	OpSynthesis OpClass = "synthesis"
)

// Rates maps operation classes to dollar costs. Reasoning and embedding are
// priced per token; synthesis per character.
type Rates struct {
	ReasoningPerToken float64 `mapstructure:"reasoning_per_token"`
	EmbeddingPerToken float64 `mapstructure:"embedding_per_token"`
	SynthesisPerChar  float64 `mapstructure:"synthesis_per_char"`
}

// DefaultRates returns the default pricing model.
func DefaultRates() Rates {
	return Rates{
		ReasoningPerToken: 0.0001,
		EmbeddingPerToken: 0.00001,
		SynthesisPerChar:  0.000016,
	}
}

// Limits are the per-job budget caps, initialized from configuration at job
// start.
type Limits struct {
	MaxCost           float64       `mapstructure:"max_cost_usd"`
	AlertThreshold    float64       `mapstructure:"alert_threshold"`
	MaxTokensPerPaper int           `mapstructure:"max_tokens_per_paper"`
	MaxProcessingTime time.Duration `mapstructure:"max_processing_time"`
}

// DefaultLimits returns the default budget caps.
func DefaultLimits() Limits {
	return Limits{
		MaxCost:           5.00,
		AlertThreshold:    0.8,
		MaxTokensPerPaper: 500_000,
		MaxProcessingTime: 30 * time.Minute,
	}
}

// account is the mutable per-job ledger. Each account has its own mutex so
// parallel segments of one job contend only with each other.
type account struct {
	mu sync.Mutex

	limits    Limits
	cost      float64
	tokens    int
	startedAt time.Time
	alerted   bool
}

// Governor tracks budgets for all active jobs.
type Governor struct {
	mu       sync.RWMutex
	accounts map[string]*account

	defaults Limits
	rates    Rates
	logger   *slog.Logger

	now func() time.Time
}

// NewGovernor creates a governor with the given default limits and rates.
func NewGovernor(defaults Limits, rates Rates, logger *slog.Logger) *Governor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Governor{
		accounts: make(map[string]*account),
		defaults: defaults,
		rates:    rates,
		logger:   logger.With("component", "budget"),
		now:      time.Now,
	}
}

// Open starts the ledger for a job. Limits fall back to the governor
// defaults when zero-valued.
func (g *Governor) Open(jobID string, limits Limits) {
	if limits.MaxCost <= 0 {
		limits.MaxCost = g.defaults.MaxCost
	}
	if limits.AlertThreshold <= 0 {
		limits.AlertThreshold = g.defaults.AlertThreshold
	}
	if limits.MaxTokensPerPaper <= 0 {
		limits.MaxTokensPerPaper = g.defaults.MaxTokensPerPaper
	}
	if limits.MaxProcessingTime <= 0 {
		limits.MaxProcessingTime = g.defaults.MaxProcessingTime
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.accounts[jobID] = &account{limits: limits, startedAt: g.now()}
}

// Close drops the ledger for a finished job.
func (g *Governor) Close(jobID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.accounts, jobID)
}

func (g *Governor) account(jobID string) *account {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.accounts[jobID]
}

// CheckPrecall reports whether a call estimated at estimatedTokens may
// proceed. Returns a wrapped types.ErrBudgetExceeded when any cap is hit.
func (g *Governor) CheckPrecall(jobID string, estimatedTokens int) error {
	a := g.account(jobID)
	if a == nil {
		return fmt.Errorf("no budget account for job %s", jobID)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cost >= a.limits.MaxCost {
		return fmt.Errorf("%w: cost %.4f reached max %.4f", types.ErrBudgetExceeded, a.cost, a.limits.MaxCost)
	}
	if a.tokens+estimatedTokens > a.limits.MaxTokensPerPaper {
		return fmt.Errorf("%w: tokens %d + %d would exceed max %d",
			types.ErrBudgetExceeded, a.tokens, estimatedTokens, a.limits.MaxTokensPerPaper)
	}
	if elapsed := g.now().Sub(a.startedAt); elapsed >= a.limits.MaxProcessingTime {
		return fmt.Errorf("%w: elapsed %s reached max %s", types.ErrBudgetExceeded, elapsed, a.limits.MaxProcessingTime)
	}

	if !a.alerted && a.cost >= a.limits.MaxCost*a.limits.AlertThreshold {
		a.alerted = true
		g.logger.Warn("budget alert threshold crossed",
			"job_id", jobID, "cost", a.cost, "max_cost", a.limits.MaxCost)
	}
	return nil
}

// RecordUsage adds tokens and dollars to the job ledger. Totals are
// monotonically non-decreasing; negative inputs are ignored.
func (g *Governor) RecordUsage(jobID string, tokens int, dollars float64) {
	a := g.account(jobID)
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if tokens > 0 {
		a.tokens += tokens
	}
	if dollars > 0 {
		a.cost += dollars
	}
}

// RecordTokens records reasoning or embedding usage priced by the class's
// configured per-token rate.
func (g *Governor) RecordTokens(jobID string, class OpClass, tokens int) {
	var rate float64
	switch class {
	case OpReasoning:
		rate = g.rates.ReasoningPerToken
	case OpEmbedding:
		rate = g.rates.EmbeddingPerToken
	}
	g.RecordUsage(jobID, tokens, float64(tokens)*rate)
}

// RecordSynthesis records synthesis usage priced per character.
func (g *Governor) RecordSynthesis(jobID string, chars int) {
	g.RecordUsage(jobID, 0, float64(chars)*g.rates.SynthesisPerChar)
}

// Snapshot returns the job's limits and current totals.
func (g *Governor) Snapshot(jobID string) (types.BudgetSnapshot, bool) {
	a := g.account(jobID)
	if a == nil {
		return types.BudgetSnapshot{}, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return types.BudgetSnapshot{
		MaxCost:           a.limits.MaxCost,
		AlertThreshold:    a.limits.AlertThreshold,
		MaxTokensPerPaper: a.limits.MaxTokensPerPaper,
		MaxProcessingTime: a.limits.MaxProcessingTime,
		CostEstimate:      a.cost,
		TokensUsed:        a.tokens,
		Elapsed:           g.now().Sub(a.startedAt),
	}, true
}

// Exceeded reports whether any cap has been breached, and which.
func (g *Governor) Exceeded(jobID string) (bool, string) {
	a := g.account(jobID)
	if a == nil {
		return false, ""
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case a.cost >= a.limits.MaxCost:
		return true, fmt.Sprintf("cost %.4f >= max %.4f", a.cost, a.limits.MaxCost)
	case a.tokens >= a.limits.MaxTokensPerPaper:
		return true, fmt.Sprintf("tokens %d >= max %d", a.tokens, a.limits.MaxTokensPerPaper)
	case g.now().Sub(a.startedAt) >= a.limits.MaxProcessingTime:
		return true, fmt.Sprintf("elapsed %s >= max %s", g.now().Sub(a.startedAt), a.limits.MaxProcessingTime)
	}
	return false, ""
}

// SetClock overrides the time source. Tests only.
func (g *Governor) SetClock(now func() time.Time) { g.now = now }
