// Package segment drives one outline segment through drafting, fact
// checking, the bounded rewrite loop, arrangement, and synthesis. The
// orchestrator sequences these steps so the job-level state machine can
// interleave segments; Run executes the whole chain for standalone use.
package segment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/papercast-ai/papercast/internal/contract"
	"github.com/papercast-ai/papercast/internal/providers"
	"github.com/papercast-ai/papercast/internal/reasoner"
	"github.com/papercast-ai/papercast/internal/retriever"
	"github.com/papercast-ai/papercast/internal/style"
	"github.com/papercast-ai/papercast/internal/synth"
	"github.com/papercast-ai/papercast/internal/types"
)

// Defaults for the pipeline's bounded loops.
const (
	DefaultAccThreshold = 0.75
	DefaultMaxRewrites  = 2
	DefaultMaxRetries   = 2
	DefaultFactsK       = 5
	DefaultStylesK      = 3
)

// Config configures a pipeline.
type Config struct {
	Reasoner  *reasoner.Gateway
	Retriever *retriever.Gateway
	Synth     *synth.Gateway
	Styles    *style.Engine
	Logger    *slog.Logger

	AccThreshold   float64
	MaxRewrites    int
	MaxRetries     int
	FactsK         int
	InterLineGapMS int
}

// Pipeline produces verified, synthesized segment drafts.
type Pipeline struct {
	reasoner  *reasoner.Gateway
	retriever *retriever.Gateway
	synth     *synth.Gateway
	styles    *style.Engine
	logger    *slog.Logger

	accThreshold   float64
	maxRewrites    int
	maxRetries     int
	factsK         int
	interLineGapMS int
}

// NewPipeline creates a segment pipeline.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Reasoner == nil || cfg.Retriever == nil || cfg.Synth == nil || cfg.Styles == nil {
		return nil, fmt.Errorf("pipeline requires reasoner, retriever, synth, and style engine")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		reasoner:       cfg.Reasoner,
		retriever:      cfg.Retriever,
		synth:          cfg.Synth,
		styles:         cfg.Styles,
		logger:         logger.With("component", "segment"),
		accThreshold:   cfg.AccThreshold,
		maxRewrites:    cfg.MaxRewrites,
		maxRetries:     cfg.MaxRetries,
		factsK:         cfg.FactsK,
		interLineGapMS: cfg.InterLineGapMS,
	}
	if p.accThreshold <= 0 {
		p.accThreshold = DefaultAccThreshold
	}
	if p.maxRewrites <= 0 {
		p.maxRewrites = DefaultMaxRewrites
	}
	if p.maxRetries <= 0 {
		p.maxRetries = DefaultMaxRetries
	}
	if p.factsK <= 0 {
		p.factsK = DefaultFactsK
	}
	return p, nil
}

// MaxRewrites returns the configured rewrite cap.
func (p *Pipeline) MaxRewrites() int { return p.maxRewrites }

// Request identifies the segment to produce.
type Request struct {
	JobID    string
	PaperID  string
	StyleID  string
	Plan     types.SegmentPlan
	FastMode bool
}

// Unit is the mutable state of one segment moving through the pipeline.
// A unit is owned by exactly one goroutine at a time.
type Unit struct {
	Req      Request
	Facts    []types.ScoredChunk
	Draft    types.SegmentDraft
	Feedback string

	// Settled is set once the verification loop has concluded for this
	// unit, whether it passed or exhausted its rewrite cap.
	Settled bool
}

// Prepare retrieves the segment's fact context.
func (p *Pipeline) Prepare(ctx context.Context, req Request) (*Unit, error) {
	query := req.Plan.Title
	if len(req.Plan.KeyPoints) > 0 {
		query += " " + strings.Join(req.Plan.KeyPoints, " ")
	}
	facts, err := p.retriever.RetrieveFacts(ctx, query, p.factsK, req.PaperID)
	if err != nil {
		return nil, fmt.Errorf("retrieving facts for segment %d: %w", req.Plan.Index, err)
	}
	return &Unit{Req: req, Facts: facts, Draft: types.SegmentDraft{Plan: req.Plan}}, nil
}

// Draft generates the initial script, retrying per the segment retry budget
// and degrading to a deterministic template when the contract cannot be
// satisfied.
func (p *Pipeline) Draft(ctx context.Context, u *Unit) error {
	st, err := style.Lookup(u.Req.StyleID)
	if err != nil {
		return err
	}
	hosts := st.HostSpeakers()

	var styleHints string
	if u.Req.FastMode {
		styleHints = style.StyleHints(st, nil)
	} else {
		patterns, err := p.retriever.RetrieveStyles(ctx, u.Req.Plan.Title, DefaultStylesK, u.Req.StyleID)
		if err != nil {
			patterns = nil
		}
		styleHints = style.StyleHints(st, patterns)
	}

	prompt := reasoner.DraftPrompt{
		Plan:       u.Req.Plan,
		Facts:      u.Facts,
		StyleHints: styleHints,
		Hosts:      hosts,
	}
	opts := reasoner.CallOpts{JobID: u.Req.JobID, Stage: "drafting", ItemKey: itemKey(u.Req.Plan.Index)}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		seg, _, err := p.reasoner.GenerateDraft(ctx, prompt, opts)
		if err == nil {
			lines := turnsToLines(seg.Script)
			if len(lines) >= 2 {
				u.Draft.Lines = lines
				u.Draft.IsComplete = true
				return nil
			}
			err = fmt.Errorf("%w: draft produced %d lines, want >= 2", types.ErrMalformedContract, len(lines))
		}
		lastErr = err
		if !retriable(err) {
			break
		}
		p.logger.Warn("draft attempt failed", "segment", u.Req.Plan.Index, "attempt", attempt, "error", err)
	}

	if errors.Is(lastErr, types.ErrMalformedContract) {
		// Contract exhausted: fall back to a deterministic template so the
		// episode is still produced.
		p.logger.Warn("draft contract exhausted, using template fallback",
			"segment", u.Req.Plan.Index, "error", lastErr)
		u.Draft.Lines = templateLines(u.Req.Plan)
		u.Draft.DegradedDraft = true
		u.Draft.IsComplete = true
		return nil
	}
	return fmt.Errorf("drafting segment %d: %w", u.Req.Plan.Index, lastErr)
}

// FactCheckOnce runs a single verification round, updating line flags and
// the draft's score. It returns whether a rewrite is still wanted, which is
// true only while the rewrite cap has not been reached.
func (p *Pipeline) FactCheckOnce(ctx context.Context, u *Unit) (bool, error) {
	opts := reasoner.CallOpts{JobID: u.Req.JobID, Stage: "fact_checking", ItemKey: itemKey(u.Req.Plan.Index)}

	var fc *contract.FactCheck
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		res, _, err := p.reasoner.FactCheck(ctx, reasoner.FactCheckPrompt{
			SegmentTitle: u.Req.Plan.Title,
			Lines:        u.Draft.Lines,
			Facts:        u.Facts,
		}, opts)
		if err == nil {
			fc = res
			break
		}
		lastErr = err
		if !retriable(err) {
			break
		}
	}
	if fc == nil {
		return false, fmt.Errorf("fact checking segment %d: %w", u.Req.Plan.Index, lastErr)
	}

	u.Draft.FactcheckScore = fc.Accuracy
	u.Feedback = fc.Feedback

	verdicts := fc.DeriveVerdicts(len(u.Draft.Lines), p.accThreshold)
	for i, v := range verdicts {
		u.Draft.Lines[i].IsVerified = v.IsVerified
		u.Draft.Lines[i].NeedsRewrite = !v.IsVerified
		if len(v.Citations) > 0 {
			u.Draft.Lines[i].Citations = v.Citations
		}
	}

	if !fc.RewriteNeeded(len(u.Draft.Lines), p.accThreshold) {
		u.Draft.VerificationPassed = true
		for i := range u.Draft.Lines {
			u.Draft.Lines[i].NeedsRewrite = false
		}
		u.Settled = true
		return false, nil
	}

	if u.Draft.RewriteCount >= p.maxRewrites {
		// Rewrites exhausted: the segment continues with the best available
		// lines and the episode's verification rate records the deficit.
		p.logger.Warn("rewrite cap reached, continuing unverified",
			"segment", u.Req.Plan.Index, "score", fc.Accuracy)
		u.Draft.VerificationPassed = false
		u.Settled = true
		return false, nil
	}
	return true, nil
}

// RewriteOnce regenerates flagged lines once. Unflagged lines are preserved
// byte-for-byte regardless of what the model returns for them.
func (p *Pipeline) RewriteOnce(ctx context.Context, u *Unit) error {
	st, err := style.Lookup(u.Req.StyleID)
	if err != nil {
		return err
	}
	opts := reasoner.CallOpts{JobID: u.Req.JobID, Stage: "rewriting", ItemKey: itemKey(u.Req.Plan.Index)}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		seg, _, err := p.reasoner.Rewrite(ctx, reasoner.RewritePrompt{
			Lines:    u.Draft.Lines,
			Feedback: u.Feedback,
			Facts:    u.Facts,
			Hosts:    st.HostSpeakers(),
		}, opts)
		if err == nil {
			rewritten := turnsToLines(seg.Script)
			for i := range u.Draft.Lines {
				if u.Draft.Lines[i].NeedsRewrite && i < len(rewritten) {
					u.Draft.Lines[i].Text = rewritten[i].Text
					u.Draft.Lines[i].Emotion = rewritten[i].Emotion
					u.Draft.Lines[i].IsVerified = false
					u.Draft.Lines[i].Arranged = false
				}
			}
			u.Draft.RewriteCount++
			return nil
		}
		lastErr = err
		if !retriable(err) {
			break
		}
	}
	return fmt.Errorf("rewriting segment %d: %w", u.Req.Plan.Index, lastErr)
}

// Arrange applies the style engine to the draft's lines.
func (p *Pipeline) Arrange(u *Unit) error {
	arranged, err := p.styles.ArrangeSegment(u.Draft.Lines, u.Req.StyleID)
	if err != nil {
		return fmt.Errorf("arranging segment %d: %w", u.Req.Plan.Index, err)
	}
	u.Draft.Lines = arranged
	return nil
}

// Synthesize produces per-line audio and the stitched segment artifact.
// Only verified drafts (or cap-exhausted ones the orchestrator elected to
// keep) should reach this step.
func (p *Pipeline) Synthesize(ctx context.Context, u *Unit) error {
	refs := make([]synth.AudioRef, len(u.Draft.Lines))
	for i, line := range u.Draft.Lines {
		voice := p.synth.ResolveVoice(u.Req.StyleID, line.Speaker)
		ref, err := p.synth.SynthesizeLine(ctx, u.Req.JobID, u.Req.Plan.Index, i, line.Text, voice, providers.SpeechHints{
			Emotion: string(line.Emotion),
		})
		if err != nil {
			return fmt.Errorf("synthesizing segment %d line %d: %w", u.Req.Plan.Index, i, err)
		}
		if ref.Degraded {
			u.Draft.Lines[i].SynthesisDegraded = true
			u.Draft.SynthesisDegraded = true
		}
		refs[i] = ref
	}

	segRef, err := p.synth.ConcatenateSegment(ctx, u.Req.JobID, u.Req.Plan.Index, refs, p.interLineGapMS)
	if err != nil {
		return fmt.Errorf("stitching segment %d: %w", u.Req.Plan.Index, err)
	}
	u.Draft.AudioRef = segRef.Key
	u.Draft.DurationS = float64(segRef.DurationMS) / 1000.0
	if segRef.Degraded {
		u.Draft.SynthesisDegraded = true
	}
	return nil
}

// Run executes the full per-segment chain: prepare, draft, the
// factcheck/rewrite loop, arrangement, and synthesis.
func (p *Pipeline) Run(ctx context.Context, req Request) (types.SegmentDraft, error) {
	u, err := p.Prepare(ctx, req)
	if err != nil {
		return types.SegmentDraft{Plan: req.Plan}, err
	}
	if err := p.Draft(ctx, u); err != nil {
		return u.Draft, err
	}
	for {
		again, err := p.FactCheckOnce(ctx, u)
		if err != nil {
			return u.Draft, err
		}
		if !again {
			break
		}
		if err := p.RewriteOnce(ctx, u); err != nil {
			return u.Draft, err
		}
	}
	if err := p.Arrange(u); err != nil {
		return u.Draft, err
	}
	if err := p.Synthesize(ctx, u); err != nil {
		return u.Draft, err
	}
	return u.Draft, nil
}

// retriable reports whether an error is worth another segment-level attempt.
func retriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, types.ErrBudgetExceeded) || errors.Is(err, types.ErrUpstreamPermanent) {
		return false
	}
	return true
}

// turnsToLines converts contract turns to script lines, normalizing
// emotions outside the closed set to neutral.
func turnsToLines(turns []contract.ScriptTurn) []types.ScriptLine {
	lines := make([]types.ScriptLine, len(turns))
	for i, t := range turns {
		emotion := types.Emotion(t.Emotion)
		if !types.ValidEmotion(emotion) {
			emotion = types.EmotionNeutral
		}
		text := t.Text
		if len(text) > types.MaxLineChars {
			text = text[:types.MaxLineChars]
		}
		lines[i] = types.ScriptLine{
			Speaker: types.Speaker(t.Speaker),
			Text:    text,
			Emotion: emotion,
		}
	}
	return lines
}

// templateLines builds the deterministic fallback script used when the
// reasoner cannot produce a valid draft.
func templateLines(plan types.SegmentPlan) []types.ScriptLine {
	summary := plan.Description
	if summary == "" {
		summary = strings.Join(plan.KeyPoints, ". ")
	}
	return []types.ScriptLine{
		{
			Speaker: types.SpeakerHost1,
			Text:    fmt.Sprintf("Let's talk about %s.", plan.Title),
			Emotion: types.EmotionNeutral,
		},
		{
			Speaker: types.SpeakerHost2,
			Text:    fmt.Sprintf("Here's the short version: %s.", summary),
			Emotion: types.EmotionNeutral,
		},
	}
}

func itemKey(index int) string {
	return fmt.Sprintf("segment_%04d", index)
}
