// Package orchestrator runs the per-job state machine that drives a paper
// through indexing, planning, drafting, verification, synthesis, and
// stitching, with bounded retries, budget gating, and cancellation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercast-ai/papercast/internal/budget"
	"github.com/papercast-ai/papercast/internal/contract"
	"github.com/papercast-ai/papercast/internal/episode"
	"github.com/papercast-ai/papercast/internal/jobstore"
	"github.com/papercast-ai/papercast/internal/reasoner"
	"github.com/papercast-ai/papercast/internal/retriever"
	"github.com/papercast-ai/papercast/internal/segment"
	"github.com/papercast-ai/papercast/internal/style"
	"github.com/papercast-ai/papercast/internal/types"
)

// Defaults for the workflow bounds.
const (
	DefaultMaxStateRetries       = 3
	DefaultMaxWorkflowIterations = 50
	DefaultMaxSegmentParallelism = 3
	DefaultMaxConcurrentJobs     = 2
	DefaultMinIndexCoverage      = 0.5
	DefaultTargetDurationS       = 900
)

// Config configures an orchestrator.
type Config struct {
	Pipeline  *segment.Pipeline
	Reasoner  *reasoner.Gateway
	Retriever *retriever.Gateway
	Assembler *episode.Assembler
	Governor  *budget.Governor
	Store     *jobstore.Store
	Logger    *slog.Logger

	MaxStateRetries       int
	MaxWorkflowIterations int
	MaxSegmentParallelism int
	MaxConcurrentJobs     int
	MinIndexCoverage      float64
	DefaultStyle          string
	DefaultTargetS        float64
}

// Orchestrator owns job execution. All mutation of a job's record flows
// through here; other components read snapshots from the store.
type Orchestrator struct {
	pipeline  *segment.Pipeline
	reasoner  *reasoner.Gateway
	retriever *retriever.Gateway
	assembler *episode.Assembler
	governor  *budget.Governor
	store     *jobstore.Store
	logger    *slog.Logger

	maxStateRetries int
	maxIterations   int
	segParallelism  int
	minCoverage     float64
	defaultStyle    string
	defaultTargetS  float64

	jobSlots chan struct{}

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// New creates an orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Pipeline == nil || cfg.Reasoner == nil || cfg.Retriever == nil ||
		cfg.Assembler == nil || cfg.Governor == nil || cfg.Store == nil {
		return nil, fmt.Errorf("orchestrator requires pipeline, gateways, assembler, governor, and store")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		pipeline:        cfg.Pipeline,
		reasoner:        cfg.Reasoner,
		retriever:       cfg.Retriever,
		assembler:       cfg.Assembler,
		governor:        cfg.Governor,
		store:           cfg.Store,
		logger:          logger.With("component", "orchestrator"),
		maxStateRetries: cfg.MaxStateRetries,
		maxIterations:   cfg.MaxWorkflowIterations,
		segParallelism:  cfg.MaxSegmentParallelism,
		minCoverage:     cfg.MinIndexCoverage,
		defaultStyle:    cfg.DefaultStyle,
		defaultTargetS:  cfg.DefaultTargetS,
		cancels:         make(map[string]context.CancelFunc),
	}
	if o.maxStateRetries <= 0 {
		o.maxStateRetries = DefaultMaxStateRetries
	}
	if o.maxIterations <= 0 {
		o.maxIterations = DefaultMaxWorkflowIterations
	}
	if o.segParallelism <= 0 {
		o.segParallelism = DefaultMaxSegmentParallelism
	}
	if o.minCoverage <= 0 {
		o.minCoverage = DefaultMinIndexCoverage
	}
	if o.defaultStyle == "" {
		o.defaultStyle = style.DefaultStyleID
	}
	if o.defaultTargetS <= 0 {
		o.defaultTargetS = DefaultTargetDurationS
	}
	maxJobs := cfg.MaxConcurrentJobs
	if maxJobs <= 0 {
		maxJobs = DefaultMaxConcurrentJobs
	}
	o.jobSlots = make(chan struct{}, maxJobs)
	return o, nil
}

// JobOptions are the caller-supplied knobs for a new job.
type JobOptions struct {
	StyleID         string
	TargetDurationS float64
	FastMode        bool
	Limits          budget.Limits
}

// StartJob validates the request, registers the job, and launches the
// workflow in the background. BadInput failures mean the job is never
// created.
func (o *Orchestrator) StartJob(ctx context.Context, paper *types.Paper, opts JobOptions) (*types.Job, error) {
	if paper == nil || paper.Body == "" {
		return nil, types.NewJobError(types.ErrKindBadInput, "paper body is empty")
	}
	if paper.Title == "" {
		return nil, types.NewJobError(types.ErrKindBadInput, "paper title is empty")
	}
	styleID := opts.StyleID
	if styleID == "" {
		styleID = o.defaultStyle
	}
	if _, err := style.Lookup(styleID); err != nil {
		return nil, types.NewJobError(types.ErrKindBadInput, err.Error())
	}
	target := opts.TargetDurationS
	if target == 0 {
		target = o.defaultTargetS
	}
	if target < 0 {
		return nil, types.NewJobError(types.ErrKindBadInput, "target duration must be positive")
	}

	job := &types.Job{
		JobID:           uuid.New().String(),
		PaperID:         paper.PaperID,
		StyleID:         styleID,
		State:           types.StateUploaded,
		TargetDurationS: target,
		FastMode:        opts.FastMode,
		StartedAt:       time.Now(),
	}
	if err := o.store.Create(job); err != nil {
		return nil, err
	}
	o.governor.Open(job.JobID, opts.Limits)

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.mu.Lock()
	o.cancels[job.JobID] = cancel
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()

		// Bound concurrent jobs process-wide.
		select {
		case o.jobSlots <- struct{}{}:
		case <-jobCtx.Done():
			o.failJob(job, types.NewJobError(types.ErrKindCancelled, "cancelled before start"))
			return
		}
		defer func() { <-o.jobSlots }()

		o.processJob(jobCtx, paper, job)

		o.mu.Lock()
		delete(o.cancels, job.JobID)
		o.mu.Unlock()
	}()

	return job.Clone(), nil
}

// Cancel cancels a running job. The cancellation propagates to in-flight
// gateway calls at their next suspension point.
func (o *Orchestrator) Cancel(jobID string) error {
	o.mu.Lock()
	cancel, ok := o.cancels[jobID]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s: %w", jobID, types.ErrNotFound)
	}
	cancel()
	return nil
}

// Wait blocks until all running jobs finish. Used by server shutdown and
// the batch CLI.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// jobRun is the orchestrator-private working state of one job.
type jobRun struct {
	paper *types.Paper
	job   *types.Job
	units []*segment.Unit // index-aligned with job.Outline.Segments; nil until drafted
}

// processJob runs the state machine to a terminal state.
func (o *Orchestrator) processJob(ctx context.Context, paper *types.Paper, job *types.Job) {
	logger := o.logger.With("job_id", job.JobID, "paper_id", paper.PaperID)
	logger.Info("job started", "style", job.StyleID, "target_s", job.TargetDurationS)

	run := &jobRun{paper: paper, job: job}

	for !job.State.Terminal() {
		if job.Iterations >= o.maxIterations {
			o.failJob(job, types.NewJobError(types.ErrKindInternal,
				fmt.Sprintf("workflow iteration cap %d reached", o.maxIterations)))
			return
		}
		job.Iterations++

		// Budget gate precedes every transition.
		if exceeded, reason := o.governor.Exceeded(job.JobID); exceeded {
			o.failJob(job, types.NewJobError(types.ErrKindBudgetExceeded, reason))
			return
		}
		if ctx.Err() != nil {
			o.failJob(job, types.NewJobError(types.ErrKindCancelled, "job cancelled"))
			return
		}

		if err := o.executeState(ctx, run); err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				o.failJob(job, types.NewJobError(types.ErrKindCancelled, "job cancelled"))
				return
			}
			if errors.Is(err, types.ErrBudgetExceeded) {
				o.failJob(job, types.NewJobError(types.ErrKindBudgetExceeded, err.Error()))
				return
			}

			kind := types.KindOf(err)
			retriable := kind == types.ErrKindUpstreamTransient || kind == types.ErrKindContract

			if retriable && job.RetryCountForState < o.maxStateRetries {
				job.RetryCountForState++
				logger.Warn("state failed, retrying",
					"state", job.State, "retry", job.RetryCountForState, "error", err)
				continue
			}
			o.failJob(job, &types.JobError{Kind: kind, Message: err.Error(), Retriable: false})
			return
		}

		next := o.nextState(run)
		if err := o.transition(job, next); err != nil {
			// Illegal transition is an invariant violation, never masked.
			o.failJob(job, types.NewJobError(types.ErrKindInternal, err.Error()))
			return
		}
	}

	logger.Info("job finished", "state", job.State,
		"cost", job.CostEstimate, "tokens", job.TokensUsed, "iterations", job.Iterations)
}

// executeState performs the work of the job's current state.
func (o *Orchestrator) executeState(ctx context.Context, run *jobRun) error {
	switch run.job.State {
	case types.StateUploaded:
		return nil // entry state; work begins at indexing
	case types.StateIndexing:
		return o.stateIndexing(ctx, run)
	case types.StatePlanning:
		return o.statePlanning(ctx, run)
	case types.StateDrafting:
		return o.stateDrafting(ctx, run)
	case types.StateFactChecking:
		return o.stateFactChecking(ctx, run)
	case types.StateRewriting:
		return o.stateRewriting(ctx, run)
	case types.StateGeneratingAudio:
		return o.stateGeneratingAudio(ctx, run)
	case types.StateStitching:
		return o.stateStitching(ctx, run)
	default:
		return types.NewJobError(types.ErrKindInternal, fmt.Sprintf("unknown state %s", run.job.State))
	}
}

// nextState picks the successor for the current state given run results.
func (o *Orchestrator) nextState(run *jobRun) types.State {
	switch run.job.State {
	case types.StateUploaded:
		return types.StateIndexing
	case types.StateIndexing:
		return types.StatePlanning
	case types.StatePlanning:
		return types.StateDrafting
	case types.StateDrafting:
		return types.StateFactChecking
	case types.StateFactChecking:
		if o.anySegmentFlagged(run) {
			return types.StateRewriting
		}
		return types.StateGeneratingAudio
	case types.StateRewriting:
		return types.StateFactChecking
	case types.StateGeneratingAudio:
		return types.StateStitching
	case types.StateStitching:
		return types.StateCompleted
	}
	return types.StateFailed
}

// transition validates and applies a state change, publishing the event and
// the fixed progress value.
func (o *Orchestrator) transition(job *types.Job, to types.State) error {
	if !LegalTransition(job.State, to) {
		return fmt.Errorf("illegal transition %s -> %s", job.State, to)
	}
	from := job.State
	job.PreviousState = from
	job.State = to
	job.ProgressPct = ProgressFor(to, job.ProgressPct)
	job.RetryCountForState = 0
	if to.Terminal() {
		now := time.Now()
		job.EndedAt = &now
	}
	o.syncJob(job)
	o.store.Publish(jobstore.Event{
		JobID:       job.JobID,
		From:        from,
		To:          to,
		ProgressPct: job.ProgressPct,
	})
	return nil
}

// failJob transitions a job to failed with the given error. Partial
// artifacts remain retrievable through the store.
func (o *Orchestrator) failJob(job *types.Job, jerr *types.JobError) {
	from := job.State
	job.PreviousState = from
	job.State = types.StateFailed
	job.Error = jerr
	now := time.Now()
	job.EndedAt = &now
	o.syncJob(job)
	o.store.Publish(jobstore.Event{
		JobID:       job.JobID,
		From:        from,
		To:          types.StateFailed,
		ProgressPct: job.ProgressPct,
		Message:     jerr.Error(),
	})
	o.logger.Error("job failed", "job_id", job.JobID, "kind", jerr.Kind, "error", jerr.Message)
}

// syncJob pushes the job's budget totals and snapshot into the store.
func (o *Orchestrator) syncJob(job *types.Job) {
	if snap, ok := o.governor.Snapshot(job.JobID); ok {
		job.CostEstimate = snap.CostEstimate
		job.TokensUsed = snap.TokensUsed
	}
	o.store.Put(job)
}

// --- state implementations ---

func (o *Orchestrator) stateIndexing(ctx context.Context, run *jobRun) error {
	receipt, err := o.retriever.IndexPaper(ctx, run.job.JobID, run.paper.PaperID, run.paper.Body)
	if err != nil {
		return err
	}
	if receipt.CoverageRatio < o.minCoverage {
		return fmt.Errorf("%w: index coverage %.2f below minimum %.2f",
			types.ErrUpstreamTransient, receipt.CoverageRatio, o.minCoverage)
	}
	if receipt.CoverageRatio < 1 {
		o.logger.Warn("proceeding with partial index coverage",
			"job_id", run.job.JobID, "coverage", receipt.CoverageRatio)
	}

	if _, err := o.retriever.IndexStyles(ctx, style.Patterns()); err != nil {
		return err
	}
	return nil
}

func (o *Orchestrator) statePlanning(ctx context.Context, run *jobRun) error {
	st, err := style.Lookup(run.job.StyleID)
	if err != nil {
		return types.NewJobError(types.ErrKindBadInput, err.Error())
	}

	out, _, err := o.reasoner.GenerateOutline(ctx, reasoner.OutlinePrompt{
		PaperTitle:      run.paper.Title,
		PaperContext:    run.paper.Body,
		StyleName:       st.Name,
		TargetDurationS: run.job.TargetDurationS,
		FastMode:        run.job.FastMode,
	}, reasoner.CallOpts{JobID: run.job.JobID, Stage: "planning"})
	if err != nil {
		return err
	}

	outline := o.buildOutline(st, out, run.paper.Title, run.job.TargetDurationS)
	run.job.Outline = outline
	run.units = make([]*segment.Unit, len(outline.Segments))
	run.job.Segments = make([]types.SegmentDraft, len(outline.Segments))

	// Structural segments come ready-made from the style engine; they skip
	// drafting and fact-checking entirely.
	for i, plan := range outline.Segments {
		if !plan.Type.Structural() {
			run.job.Segments[i] = types.SegmentDraft{Plan: plan}
			continue
		}
		var draft types.SegmentDraft
		switch plan.Type {
		case types.SegmentTypeIntro:
			draft = st.IntroSegment(run.paper.Title, plan.Index)
		case types.SegmentTypeAdBreak:
			draft = st.AdBreakSegment(run.paper.Title, plan.Index)
		case types.SegmentTypeOutro:
			draft = st.OutroSegment(run.paper.Title, plan.Index)
		}
		run.job.Segments[i] = draft
		run.units[i] = &segment.Unit{
			Req: segment.Request{
				JobID:   run.job.JobID,
				PaperID: run.paper.PaperID,
				StyleID: run.job.StyleID,
				Plan:    plan,
			},
			Draft: draft,
		}
	}
	o.syncJob(run.job)
	return nil
}

// buildOutline merges the reasoner's content segments with the style
// engine's structural inserts and normalizes durations toward the target.
func (o *Orchestrator) buildOutline(st *style.Style, out *contract.Outline, topic string, targetS float64) *types.Outline {
	content := make([]types.SegmentPlan, 0, len(out.Segments))
	coreCount := 0
	for _, seg := range out.Segments {
		segType := types.SegmentType(seg.Type)
		if !types.ValidSegmentType(segType) || segType.Structural() {
			segType = types.SegmentTypeCore
		}
		if segType == types.SegmentTypeCore {
			coreCount++
		}
		content = append(content, types.SegmentPlan{
			Type:                 segType,
			Title:                seg.Title,
			Description:          seg.Description,
			DurationTargetS:      seg.DurationTargetS,
			KeyPoints:            seg.KeyPoints,
			ConversationStarters: seg.ConversationStarters,
		})
	}

	// Scale content durations so the outline total lands on the target
	// (structural segments are budgeted at 30s each).
	structuralCount := 2 // intro + outro
	withAd := coreCount >= 4
	if withAd {
		structuralCount++
	}
	structuralS := float64(structuralCount) * 30
	sum := 0.0
	for _, p := range content {
		sum += p.DurationTargetS
	}
	if sum > 0 && targetS > structuralS {
		scale := (targetS - structuralS) / sum
		for i := range content {
			content[i].DurationTargetS *= scale
		}
	}

	plans := make([]types.SegmentPlan, 0, len(content)+structuralCount)
	plans = append(plans, types.SegmentPlan{
		Type: types.SegmentTypeIntro, Title: "Introduction", DurationTargetS: 30,
		KeyPoints: []string{"welcome"},
	})
	adAfter := -1
	if withAd {
		adAfter = len(content) / 2
	}
	for i, p := range content {
		plans = append(plans, p)
		if i == adAfter {
			plans = append(plans, types.SegmentPlan{
				Type: types.SegmentTypeAdBreak, Title: "Break", DurationTargetS: 30,
				KeyPoints: []string{"break"},
			})
		}
	}
	plans = append(plans, types.SegmentPlan{
		Type: types.SegmentTypeOutro, Title: "Outro", DurationTargetS: 30,
		KeyPoints: []string{"sign-off"},
	})

	for i := range plans {
		plans[i].Index = i
	}

	return &types.Outline{
		EpisodeTitle:    out.Title,
		TargetDurationS: targetS,
		Segments:        plans,
	}
}

// forEachSegment runs fn over the selected segments with bounded
// parallelism. The first error wins; remaining work still drains.
func (o *Orchestrator) forEachSegment(ctx context.Context, run *jobRun, include func(i int) bool, fn func(ctx context.Context, i int) error) error {
	sem := make(chan struct{}, o.segParallelism)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i := range run.job.Outline.Segments {
		if !include(i) {
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				mu.Lock()
				if firstErr == nil {
					firstErr = ctx.Err()
				}
				mu.Unlock()
				return
			}
			defer func() { <-sem }()

			if err := fn(ctx, i); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	return firstErr
}

func (o *Orchestrator) stateDrafting(ctx context.Context, run *jobRun) error {
	for i := range run.units {
		if run.units[i] == nil {
			run.job.Cursor = i
			break
		}
	}
	err := o.forEachSegment(ctx, run,
		func(i int) bool { return run.units[i] == nil },
		func(ctx context.Context, i int) error {
			plan := run.job.Outline.Segments[i]
			u, err := o.pipeline.Prepare(ctx, segment.Request{
				JobID:    run.job.JobID,
				PaperID:  run.paper.PaperID,
				StyleID:  run.job.StyleID,
				Plan:     plan,
				FastMode: run.job.FastMode,
			})
			if err != nil {
				return err
			}
			if err := o.pipeline.Draft(ctx, u); err != nil {
				return err
			}
			run.units[i] = u
			run.job.Segments[i] = u.Draft
			return nil
		})
	o.syncJob(run.job)
	return err
}

func (o *Orchestrator) stateFactChecking(ctx context.Context, run *jobRun) error {
	err := o.forEachSegment(ctx, run,
		func(i int) bool { return o.needsFactcheck(run, i) },
		func(ctx context.Context, i int) error {
			_, err := o.pipeline.FactCheckOnce(ctx, run.units[i])
			if err == nil {
				run.job.Segments[i] = run.units[i].Draft
			}
			return err
		})
	o.syncJob(run.job)
	return err
}

func (o *Orchestrator) stateRewriting(ctx context.Context, run *jobRun) error {
	err := o.forEachSegment(ctx, run,
		func(i int) bool { return o.segmentFlagged(run, i) },
		func(ctx context.Context, i int) error {
			err := o.pipeline.RewriteOnce(ctx, run.units[i])
			if err == nil {
				run.job.Segments[i] = run.units[i].Draft
			}
			return err
		})
	o.syncJob(run.job)
	return err
}

func (o *Orchestrator) stateGeneratingAudio(ctx context.Context, run *jobRun) error {
	err := o.forEachSegment(ctx, run,
		func(i int) bool { return run.units[i] != nil && run.units[i].Draft.AudioRef == "" },
		func(ctx context.Context, i int) error {
			u := run.units[i]
			if err := o.pipeline.Arrange(u); err != nil {
				return err
			}
			if err := o.pipeline.Synthesize(ctx, u); err != nil {
				return err
			}
			run.job.Segments[i] = u.Draft
			return nil
		})
	o.syncJob(run.job)
	return err
}

func (o *Orchestrator) stateStitching(ctx context.Context, run *jobRun) error {
	drafts := make([]types.SegmentDraft, len(run.units))
	for i, u := range run.units {
		if u == nil {
			return types.NewJobError(types.ErrKindInternal, fmt.Sprintf("segment %d never drafted", i))
		}
		drafts[i] = u.Draft
	}

	ep, err := o.assembler.Assemble(ctx, run.job, run.paper, drafts)
	if err != nil {
		return err
	}
	run.job.EpisodeID = ep.EpisodeID
	o.syncJob(run.job)
	return nil
}

// needsFactcheck selects segments still inside the verification loop.
func (o *Orchestrator) needsFactcheck(run *jobRun, i int) bool {
	u := run.units[i]
	if u == nil || u.Req.Plan.Type.Structural() {
		return false
	}
	return !u.Settled
}

// segmentFlagged reports whether segment i wants a rewrite this round.
func (o *Orchestrator) segmentFlagged(run *jobRun, i int) bool {
	u := run.units[i]
	if u == nil || u.Req.Plan.Type.Structural() {
		return false
	}
	d := &u.Draft
	if d.VerificationPassed || d.RewriteCount >= o.pipeline.MaxRewrites() {
		return false
	}
	for _, l := range d.Lines {
		if l.NeedsRewrite {
			return true
		}
	}
	return false
}

func (o *Orchestrator) anySegmentFlagged(run *jobRun) bool {
	for i := range run.units {
		if o.segmentFlagged(run, i) {
			return true
		}
	}
	return false
}
