package synth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/papercast-ai/papercast/internal/budget"
	"github.com/papercast-ai/papercast/internal/metrics"
	"github.com/papercast-ai/papercast/internal/providers"
	"github.com/papercast-ai/papercast/internal/storage"
	"github.com/papercast-ai/papercast/internal/types"
)

// AudioRef is an opaque reference to a stored audio artifact.
type AudioRef struct {
	Key        string `json:"key"`
	DurationMS int    `json:"duration_ms"`
	Degraded   bool   `json:"degraded,omitempty"`
}

// Gap defaults. ConcatenateSegment and ConcatenateEpisode use them when the
// gap argument is not positive; the lead-in and lead-out defaults apply only
// to negative arguments, so zero means no lead silence.
const (
	DefaultInterLineGapMS    = 300
	DefaultInterSegmentGapMS = 800
	DefaultLeadInMS          = 500
	DefaultLeadOutMS         = 1000
)

// Config configures a gateway.
type Config struct {
	Synthesizer providers.Synthesizer
	Limiter     *providers.RateLimiter
	Stitcher    Stitcher
	Store       storage.Adapter
	Voices      VoiceMap
	Governor    *budget.Governor
	Recorder    *metrics.Recorder
	Logger      *slog.Logger
}

// Gateway wraps the TTS backend and the audio stitcher.
type Gateway struct {
	synth    providers.Synthesizer
	limiter  *providers.RateLimiter
	stitcher Stitcher
	store    storage.Adapter
	voices   VoiceMap
	governor *budget.Governor
	recorder *metrics.Recorder
	logger   *slog.Logger
}

// NewGateway creates a synthesizer gateway.
func NewGateway(cfg Config) (*Gateway, error) {
	if cfg.Synthesizer == nil {
		return nil, fmt.Errorf("synthesizer is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("storage adapter is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = providers.NewRateLimiter(cfg.Synthesizer.RequestsPerSecond())
	}
	stitcher := cfg.Stitcher
	if stitcher == nil {
		stitcher = &ByteStitcher{}
	}
	voices := cfg.Voices
	if voices.Default == nil {
		voices = DefaultVoiceMap()
	}
	return &Gateway{
		synth:    cfg.Synthesizer,
		limiter:  limiter,
		stitcher: stitcher,
		store:    cfg.Store,
		voices:   voices,
		governor: cfg.Governor,
		recorder: cfg.Recorder,
		logger:   logger.With("component", "synth"),
	}, nil
}

// ResolveVoice maps a (style, speaker) pair to a backend voice ID.
func (g *Gateway) ResolveVoice(styleID string, speaker types.Speaker) string {
	return g.voices.Resolve(styleID, speaker)
}

// SynthesizeLine synthesizes one script line and stores the artifact under
// the job's namespace. On permanent failure after retries, a silence
// placeholder of the estimated line duration is stored instead and the
// returned ref is marked degraded; the line is never dropped.
func (g *Gateway) SynthesizeLine(ctx context.Context, jobID string, segIndex, lineIndex int, text, voiceID string, hints providers.SpeechHints) (AudioRef, error) {
	start := time.Now()

	result, err := retry.DoWithData(
		func() (*providers.SpeechResult, error) {
			if err := g.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			return g.synth.Synthesize(ctx, text, voiceID, hints)
		},
		retry.Context(ctx),
		retry.Attempts(uint(g.synth.MaxRetries()+1)),
		retry.Delay(g.synth.RetryDelayBase()),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.RetryIf(providers.IsTransient),
		retry.LastErrorOnly(true),
	)

	key := fmt.Sprintf("jobs/%s/segments/%04d/lines/%04d.mp3", jobID, segIndex, lineIndex)
	degraded := false

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return AudioRef{}, ctxErr
		}
		if errors.Is(err, types.ErrUpstreamTransient) {
			// Retries exhausted on a transient fault; surface to the caller
			// for segment-level retry.
			return AudioRef{}, err
		}
		// Permanent failure: substitute a placeholder so the episode is
		// still produced, and surface the degradation in metadata.
		g.logger.Warn("line synthesis failed permanently, substituting silence",
			"job_id", jobID, "segment", segIndex, "line", lineIndex, "error", err)
		durationMS := providers.EstimateSpeechDurationMS(text, hints.Speed)
		result = &providers.SpeechResult{
			Audio:      placeholderAudio(durationMS),
			Format:     "mp3",
			DurationMS: durationMS,
		}
		degraded = true
	}

	if err := g.store.Put(ctx, key, bytes.NewReader(result.Audio)); err != nil {
		return AudioRef{}, fmt.Errorf("failed to store line audio: %w", err)
	}

	if g.governor != nil && jobID != "" {
		g.governor.RecordSynthesis(jobID, len(text))
	}
	if g.recorder != nil {
		g.recorder.Record(metrics.Metric{
			JobID:            jobID,
			Stage:            "generating_audio",
			ItemKey:          fmt.Sprintf("segment_%04d_line_%04d", segIndex, lineIndex),
			Provider:         g.synth.Name(),
			Characters:       len(text),
			CostUSD:          0, // priced through the governor's synthesis rate
			ExecutionSeconds: time.Since(start).Seconds(),
			Success:          !degraded,
		})
	}

	return AudioRef{Key: key, DurationMS: result.DurationMS, Degraded: degraded}, nil
}

// ConcatenateSegment combines ordered line artifacts into one segment
// artifact with the configured inter-line silence.
func (g *Gateway) ConcatenateSegment(ctx context.Context, jobID string, segIndex int, refs []AudioRef, interLineGapMS int) (AudioRef, error) {
	if interLineGapMS <= 0 {
		interLineGapMS = DefaultInterLineGapMS
	}
	parts, total, degraded, err := g.load(ctx, refs)
	if err != nil {
		return AudioRef{}, err
	}

	stitched, err := g.stitcher.Concat(ctx, parts, interLineGapMS, 0, 0)
	if err != nil {
		return AudioRef{}, fmt.Errorf("failed to stitch segment %d: %w", segIndex, err)
	}

	key := fmt.Sprintf("jobs/%s/segments/%04d/segment.mp3", jobID, segIndex)
	if err := g.store.Put(ctx, key, bytes.NewReader(stitched)); err != nil {
		return AudioRef{}, fmt.Errorf("failed to store segment audio: %w", err)
	}

	total += interLineGapMS * (len(refs) - 1)
	return AudioRef{Key: key, DurationMS: total, Degraded: degraded}, nil
}

// ConcatenateEpisode combines ordered segment artifacts into the final
// episode artifact.
func (g *Gateway) ConcatenateEpisode(ctx context.Context, jobID string, refs []AudioRef, interSegmentGapMS, leadInMS, leadOutMS int) (AudioRef, error) {
	if interSegmentGapMS <= 0 {
		interSegmentGapMS = DefaultInterSegmentGapMS
	}
	if leadInMS < 0 {
		leadInMS = DefaultLeadInMS
	}
	if leadOutMS < 0 {
		leadOutMS = DefaultLeadOutMS
	}

	parts, total, degraded, err := g.load(ctx, refs)
	if err != nil {
		return AudioRef{}, err
	}

	stitched, err := g.stitcher.Concat(ctx, parts, interSegmentGapMS, leadInMS, leadOutMS)
	if err != nil {
		return AudioRef{}, fmt.Errorf("failed to stitch episode: %w", err)
	}

	key := fmt.Sprintf("jobs/%s/episode.mp3", jobID)
	if err := g.store.Put(ctx, key, bytes.NewReader(stitched)); err != nil {
		return AudioRef{}, fmt.Errorf("failed to store episode audio: %w", err)
	}

	total += interSegmentGapMS*(len(refs)-1) + leadInMS + leadOutMS
	return AudioRef{Key: key, DurationMS: total, Degraded: degraded}, nil
}

// load fetches artifacts in ref order.
func (g *Gateway) load(ctx context.Context, refs []AudioRef) ([][]byte, int, bool, error) {
	if len(refs) == 0 {
		return nil, 0, false, fmt.Errorf("no audio refs provided")
	}
	parts := make([][]byte, len(refs))
	total := 0
	degraded := false
	for i, ref := range refs {
		rc, err := g.store.Get(ctx, ref.Key)
		if err != nil {
			return nil, 0, false, fmt.Errorf("failed to load %s: %w", ref.Key, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, 0, false, fmt.Errorf("failed to read %s: %w", ref.Key, err)
		}
		parts[i] = data
		total += ref.DurationMS
		degraded = degraded || ref.Degraded
	}
	return parts, total, degraded, nil
}

// placeholderAudio fabricates a silence placeholder for a failed line. The
// byte content marks the substitution so downstream tooling can detect it.
func placeholderAudio(durationMS int) []byte {
	return []byte(fmt.Sprintf("[silence-placeholder:%dms]", durationMS))
}
