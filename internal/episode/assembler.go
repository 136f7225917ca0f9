// Package episode assembles a completed job's segments into the final
// episode record and its immutable metadata document.
package episode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercast-ai/papercast/internal/storage"
	"github.com/papercast-ai/papercast/internal/synth"
	"github.com/papercast-ai/papercast/internal/types"
)

// Config configures an assembler.
type Config struct {
	Synth  *synth.Gateway
	Store  storage.Adapter
	Logger *slog.Logger

	InterSegmentGapMS int
	LeadInMS          int
	LeadOutMS         int
}

// Assembler builds episodes from completed jobs and serves them back.
type Assembler struct {
	synth  *synth.Gateway
	store  storage.Adapter
	logger *slog.Logger

	interSegmentGapMS int
	leadInMS          int
	leadOutMS         int

	mu       sync.RWMutex
	episodes map[string]*types.Episode
}

// NewAssembler creates an episode assembler.
func NewAssembler(cfg Config) (*Assembler, error) {
	if cfg.Synth == nil || cfg.Store == nil {
		return nil, fmt.Errorf("assembler requires synth gateway and storage")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		synth:             cfg.Synth,
		store:             cfg.Store,
		logger:            logger.With("component", "episode"),
		interSegmentGapMS: cfg.InterSegmentGapMS,
		leadInMS:          cfg.LeadInMS,
		leadOutMS:         cfg.LeadOutMS,
		episodes:          make(map[string]*types.Episode),
	}, nil
}

// Assemble concatenates segment audio in outline order, computes the
// episode's quality signals, and persists the metadata document. The result
// is deterministic for a given job apart from IDs and timestamps.
func (a *Assembler) Assemble(ctx context.Context, job *types.Job, paper *types.Paper, drafts []types.SegmentDraft) (*types.Episode, error) {
	if job.Outline == nil || len(drafts) != len(job.Outline.Segments) {
		return nil, fmt.Errorf("job %s has %d drafts for %d outline segments",
			job.JobID, len(drafts), len(job.Outline.Segments))
	}

	// Concatenation follows outline index, never completion order.
	refs := make([]synth.AudioRef, len(drafts))
	for i, d := range drafts {
		if d.AudioRef == "" {
			return nil, fmt.Errorf("segment %d has no audio", i)
		}
		refs[i] = synth.AudioRef{
			Key:        d.AudioRef,
			DurationMS: int(d.DurationS * 1000),
			Degraded:   d.SynthesisDegraded,
		}
	}

	episodeRef, err := a.synth.ConcatenateEpisode(ctx, job.JobID, refs, a.interSegmentGapMS, a.leadInMS, a.leadOutMS)
	if err != nil {
		return nil, fmt.Errorf("episode concatenation: %w", err)
	}

	verifiedLines, totalLines := 0, 0
	verificationDegraded := false
	synthesisDegraded := false
	segMeta := make([]types.SegmentMetadata, len(drafts))
	for i, d := range drafts {
		if !d.Plan.Type.Structural() {
			totalLines += len(d.Lines)
			verifiedLines += d.VerifiedLines()
			if !d.VerificationPassed {
				verificationDegraded = true
			}
		}
		if d.SynthesisDegraded {
			synthesisDegraded = true
		}
		segMeta[i] = types.SegmentMetadata{
			Index:              d.Plan.Index,
			Type:               d.Plan.Type,
			Title:              d.Plan.Title,
			FactcheckScore:     d.FactcheckScore,
			RewriteCount:       d.RewriteCount,
			VerificationPassed: d.VerificationPassed,
			DegradedDraft:      d.DegradedDraft,
			SynthesisDegraded:  d.SynthesisDegraded,
			DurationS:          d.DurationS,
			AudioRef:           d.AudioRef,
		}
	}
	verificationRate := 1.0
	if totalLines > 0 {
		verificationRate = float64(verifiedLines) / float64(totalLines)
	}

	ep := &types.Episode{
		EpisodeID:            uuid.New().String(),
		PaperID:              paper.PaperID,
		JobID:                job.JobID,
		StyleID:              job.StyleID,
		Outline:              *job.Outline,
		Segments:             segMeta,
		AudioRef:             episodeRef.Key,
		VerificationRate:     verificationRate,
		VerificationDegraded: verificationDegraded,
		SynthesisDegraded:    synthesisDegraded || episodeRef.Degraded,
		TotalDurationS:       float64(episodeRef.DurationMS) / 1000.0,
		TotalCost:            job.CostEstimate,
		ProcessingTimeS:      time.Since(job.StartedAt).Seconds(),
		CreatedAt:            time.Now(),
	}

	if err := a.persistMetadata(ctx, ep); err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.episodes[ep.EpisodeID] = ep
	a.mu.Unlock()

	a.logger.Info("episode assembled",
		"episode_id", ep.EpisodeID,
		"job_id", job.JobID,
		"segments", len(segMeta),
		"verification_rate", verificationRate,
		"duration_s", ep.TotalDurationS)
	return ep, nil
}

// persistMetadata writes the immutable metadata document.
func (a *Assembler) persistMetadata(ctx context.Context, ep *types.Episode) error {
	doc, err := json.MarshalIndent(ep, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal episode metadata: %w", err)
	}
	key := fmt.Sprintf("episodes/%s.json", ep.EpisodeID)
	if err := a.store.Put(ctx, key, bytes.NewReader(doc)); err != nil {
		return fmt.Errorf("failed to persist episode metadata: %w", err)
	}
	return nil
}

// Get returns an episode by ID.
func (a *Assembler) Get(episodeID string) (*types.Episode, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ep, ok := a.episodes[episodeID]
	if !ok {
		return nil, fmt.Errorf("episode %s: %w", episodeID, types.ErrNotFound)
	}
	cp := *ep
	return &cp, nil
}

// List returns all assembled episodes.
func (a *Assembler) List() []*types.Episode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*types.Episode, 0, len(a.episodes))
	for _, ep := range a.episodes {
		cp := *ep
		out = append(out, &cp)
	}
	return out
}

// Audio streams the episode's final audio artifact.
func (a *Assembler) Audio(ctx context.Context, episodeID string) ([]byte, error) {
	ep, err := a.Get(episodeID)
	if err != nil {
		return nil, err
	}
	rc, err := a.store.Get(ctx, ep.AudioRef)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
