// Package reasoner is the uniform call surface over the reasoner backend.
// It owns per-call deadlines, transport retries, token accounting, and the
// contract repair loop; callers receive validated contracts or typed errors.
package reasoner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/papercast-ai/papercast/internal/budget"
	"github.com/papercast-ai/papercast/internal/contract"
	"github.com/papercast-ai/papercast/internal/metrics"
	"github.com/papercast-ai/papercast/internal/providers"
	"github.com/papercast-ai/papercast/internal/types"
)

// DefaultDeadline bounds a single reasoner call.
const DefaultDeadline = 60 * time.Second

// maxRateLimitDelay caps the jittered backoff applied on quota signals
// before the fault surfaces as transient.
const maxRateLimitDelay = 30 * time.Second

// Config configures a gateway.
type Config struct {
	Client   providers.Reasoner
	Limiter  *providers.RateLimiter
	Codec    *contract.Codec
	Governor *budget.Governor
	Recorder *metrics.Recorder
	Logger   *slog.Logger
	Deadline time.Duration
}

// Gateway wraps the reasoner backend.
type Gateway struct {
	client   providers.Reasoner
	limiter  *providers.RateLimiter
	codec    *contract.Codec
	governor *budget.Governor
	recorder *metrics.Recorder
	logger   *slog.Logger
	deadline time.Duration
}

// CallOpts attributes a call to a job for budget and metrics.
type CallOpts struct {
	JobID   string
	Stage   string
	ItemKey string

	Temperature float64
	MaxTokens   int
}

// NewGateway creates a reasoner gateway.
func NewGateway(cfg Config) (*Gateway, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("reasoner client is required")
	}
	if cfg.Codec == nil {
		return nil, fmt.Errorf("contract codec is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = providers.NewRateLimiter(cfg.Client.RequestsPerSecond())
	}
	deadline := cfg.Deadline
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Gateway{
		client:   cfg.Client,
		limiter:  limiter,
		codec:    cfg.Codec,
		governor: cfg.Governor,
		recorder: cfg.Recorder,
		logger:   logger.With("component", "reasoner"),
		deadline: deadline,
	}, nil
}

// invoke performs a single logical call: budget precall, rate limit, the
// upstream request with transport-level retries, then usage recording.
func (g *Gateway) invoke(ctx context.Context, req *providers.ReasonRequest, opts CallOpts) (*providers.ReasonResult, error) {
	estimated := estimateTokens(req)
	if g.governor != nil && opts.JobID != "" {
		if err := g.governor.CheckPrecall(opts.JobID, estimated); err != nil {
			return nil, err
		}
	}

	if req.Deadline <= 0 {
		req.Deadline = g.deadline
	}
	req.Temperature = opts.Temperature
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}

	start := time.Now()
	attempts := 0

	result, err := retry.DoWithData(
		func() (*providers.ReasonResult, error) {
			attempts++
			if err := g.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			res, err := g.client.Invoke(ctx, req)
			if err != nil {
				var rl *providers.RateLimitedError
				if errors.As(err, &rl) {
					delay := rl.RetryAfter
					if delay <= 0 || delay > maxRateLimitDelay {
						delay = maxRateLimitDelay
					}
					g.limiter.Record429(delay)
				}
				return nil, err
			}
			return res, nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(g.client.MaxRetries()+1)),
		retry.Delay(g.client.RetryDelayBase()),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.RetryIf(providers.IsTransient),
		retry.LastErrorOnly(true),
	)

	m := metrics.Metric{
		JobID:            opts.JobID,
		Stage:            opts.Stage,
		ItemKey:          opts.ItemKey,
		Provider:         g.client.Name(),
		ExecutionSeconds: time.Since(start).Seconds(),
		Success:          err == nil,
	}
	if err != nil {
		m.ErrorType = string(types.KindOf(err))
		if g.recorder != nil {
			g.recorder.Record(m)
		}
		return nil, err
	}

	m.Model = result.ModelUsed
	m.PromptTokens = result.Usage.PromptTokens
	m.CompletionTokens = result.Usage.CompletionTokens
	if g.governor != nil && opts.JobID != "" {
		g.governor.RecordTokens(opts.JobID, budget.OpReasoning, result.Usage.Total())
	}
	if g.recorder != nil {
		m.CostUSD = float64(result.Usage.Total()) * 0.0001
		g.recorder.Record(m)
	}

	result.Attempts = attempts
	return result, nil
}

// RepairJSON re-prompts the backend once with the malformed output and the
// contract schema, per the repair policy's final model-assisted stage.
func (g *Gateway) RepairJSON(ctx context.Context, rt contract.ResponseType, malformed string, opts CallOpts) (string, providers.Usage, error) {
	req := &providers.ReasonRequest{
		Messages: []providers.Message{
			{Role: "system", Content: "You fix malformed JSON. Respond with valid JSON only."},
			{Role: "user", Content: contract.RepairPrompt(contract.SchemaFor(rt), malformed)},
		},
		ResponseType: contract.ResponseRepair,
	}
	res, err := g.invoke(ctx, req, opts)
	if err != nil {
		return "", providers.Usage{}, err
	}
	return res.Content, res.Usage, nil
}

// decodeWithRepair runs the decode function over raw output, falling back to
// a single model-assisted repair round before giving up with a contract error.
func decodeWithRepair[T any](
	ctx context.Context,
	g *Gateway,
	rt contract.ResponseType,
	raw string,
	opts CallOpts,
	usage *providers.Usage,
	decode func(string) (T, error),
) (T, error) {
	out, err := decode(raw)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, types.ErrMalformedContract) {
		var zero T
		return zero, err
	}

	g.logger.Warn("contract decode failed, attempting model repair",
		"response_type", rt, "job_id", opts.JobID, "error", err)

	repaired, repairUsage, repairErr := g.RepairJSON(ctx, rt, raw, opts)
	if repairErr != nil {
		var zero T
		return zero, fmt.Errorf("%w: repair call failed: %v", types.ErrMalformedContract, repairErr)
	}
	usage.PromptTokens += repairUsage.PromptTokens
	usage.CompletionTokens += repairUsage.CompletionTokens

	out, err = decode(repaired)
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// GenerateOutline plans the episode structure from the paper.
func (g *Gateway) GenerateOutline(ctx context.Context, in OutlinePrompt, opts CallOpts) (*contract.Outline, providers.Usage, error) {
	req := in.request()
	res, err := g.invoke(ctx, req, opts)
	if err != nil {
		return nil, providers.Usage{}, err
	}
	usage := res.Usage
	out, err := decodeWithRepair(ctx, g, contract.ResponseOutline, res.Content, opts, &usage, g.codec.DecodeOutline)
	if err != nil {
		return nil, usage, err
	}
	return out, usage, nil
}

// GenerateDraft produces the dialogue script for one segment.
func (g *Gateway) GenerateDraft(ctx context.Context, in DraftPrompt, opts CallOpts) (*contract.Segment, providers.Usage, error) {
	req := in.request()
	res, err := g.invoke(ctx, req, opts)
	if err != nil {
		return nil, providers.Usage{}, err
	}
	usage := res.Usage
	seg, err := decodeWithRepair(ctx, g, contract.ResponseSegment, res.Content, opts, &usage, func(raw string) (*contract.Segment, error) {
		return g.codec.DecodeSegment(contract.ResponseSegment, raw, in.Hosts)
	})
	if err != nil {
		return nil, usage, err
	}
	return seg, usage, nil
}

// FactCheck verifies a segment script against retrieved context.
func (g *Gateway) FactCheck(ctx context.Context, in FactCheckPrompt, opts CallOpts) (*contract.FactCheck, providers.Usage, error) {
	req := in.request()
	res, err := g.invoke(ctx, req, opts)
	if err != nil {
		return nil, providers.Usage{}, err
	}
	usage := res.Usage
	fc, err := decodeWithRepair(ctx, g, contract.ResponseFactCheck, res.Content, opts, &usage, g.codec.DecodeFactCheck)
	if err != nil {
		return nil, usage, err
	}
	return fc, usage, nil
}

// Rewrite regenerates flagged lines using factcheck feedback.
func (g *Gateway) Rewrite(ctx context.Context, in RewritePrompt, opts CallOpts) (*contract.Segment, providers.Usage, error) {
	req := in.request()
	res, err := g.invoke(ctx, req, opts)
	if err != nil {
		return nil, providers.Usage{}, err
	}
	usage := res.Usage
	seg, err := decodeWithRepair(ctx, g, contract.ResponseRewrite, res.Content, opts, &usage, func(raw string) (*contract.Segment, error) {
		return g.codec.DecodeSegment(contract.ResponseRewrite, raw, in.Hosts)
	})
	if err != nil {
		return nil, usage, err
	}
	return seg, usage, nil
}

// estimateTokens approximates the token footprint of a request for the
// budget precall: prompt characters at ~4/token plus the completion cap.
func estimateTokens(req *providers.ReasonRequest) int {
	chars := 0
	for _, m := range req.Messages {
		chars += len(m.Content)
	}
	est := chars / 4
	if req.MaxTokens > 0 {
		est += req.MaxTokens
	} else {
		est += 2048
	}
	return est
}
