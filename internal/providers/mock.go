package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/papercast-ai/papercast/internal/contract"
	"github.com/papercast-ai/papercast/internal/types"
)

// MockReasoner is a configurable in-memory reasoner for tests and offline
// runs. Responses can be scripted per response type; unscripted calls fall
// back to deterministic canned contracts that satisfy the codec.
type MockReasoner struct {
	mu sync.Mutex

	// OnInvoke, when set, intercepts calls. Returning (nil, nil) falls
	// through to the scripted/canned path for that request.
	OnInvoke func(ctx context.Context, req *ReasonRequest) (*ReasonResult, error)

	// Scripted raw responses popped in order per response type.
	scripted map[contract.ResponseType][]string

	// Latency simulates upstream delay.
	Latency time.Duration

	requestCount int64
}

// NewMockReasoner creates a mock reasoner with no scripted responses.
func NewMockReasoner() *MockReasoner {
	return &MockReasoner{scripted: make(map[contract.ResponseType][]string)}
}

// Script queues raw responses for a response type, served FIFO before the
// canned fallback.
func (m *MockReasoner) Script(rt contract.ResponseType, responses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripted[rt] = append(m.scripted[rt], responses...)
}

// Name returns the provider identifier.
func (m *MockReasoner) Name() string { return "mock" }

// RequestsPerSecond returns an effectively unthrottled rate for tests.
func (m *MockReasoner) RequestsPerSecond() float64 { return 1000 }

// MaxRetries returns the retry budget.
func (m *MockReasoner) MaxRetries() int { return 2 }

// RetryDelayBase returns a short backoff base for tests.
func (m *MockReasoner) RetryDelayBase() time.Duration { return time.Millisecond }

// RequestCount returns the number of Invoke calls served.
func (m *MockReasoner) RequestCount() int64 { return atomic.LoadInt64(&m.requestCount) }

// Invoke serves the next scripted response or a canned contract.
func (m *MockReasoner) Invoke(ctx context.Context, req *ReasonRequest) (*ReasonResult, error) {
	atomic.AddInt64(&m.requestCount, 1)

	if m.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Latency):
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	if m.OnInvoke != nil {
		res, err := m.OnInvoke(ctx, req)
		if res != nil || err != nil {
			return res, err
		}
	}

	m.mu.Lock()
	queue := m.scripted[req.ResponseType]
	var content string
	if len(queue) > 0 {
		content = queue[0]
		m.scripted[req.ResponseType] = queue[1:]
	}
	m.mu.Unlock()

	if content == "" {
		content = m.canned(req)
	}

	return &ReasonResult{
		Content:   content,
		Usage:     Usage{PromptTokens: promptTokens(req), CompletionTokens: len(content) / 4},
		Provider:  "mock",
		ModelUsed: "mock-1",
		Attempts:  1,
	}, nil
}

func promptTokens(req *ReasonRequest) int {
	n := 0
	for _, m := range req.Messages {
		n += len(m.Content) / 4
	}
	return n
}

// canned builds a deterministic valid contract for the response type.
func (m *MockReasoner) canned(req *ReasonRequest) string {
	switch req.ResponseType {
	case contract.ResponseOutline:
		out := contract.Outline{
			Title: "Deep Dive: The Paper",
			Segments: []contract.OutlineSegment{
				{Type: "overview", Title: "Setting the Stage", DurationTargetS: 225, KeyPoints: []string{"what problem the paper tackles", "why it matters"}},
				{Type: "core", Title: "The Central Idea", DurationTargetS: 225, KeyPoints: []string{"the key mechanism", "how it differs from prior work"}},
				{Type: "deep_dive", Title: "Results That Matter", DurationTargetS: 225, KeyPoints: []string{"headline numbers", "ablations"}},
				{Type: "takeaways", Title: "What To Remember", DurationTargetS: 225, KeyPoints: []string{"three takeaways"}},
			},
		}
		b, _ := json.Marshal(out)
		return string(b)

	case contract.ResponseSegment, contract.ResponseRewrite:
		seg := contract.Segment{Script: []contract.ScriptTurn{
			{Speaker: "host1", Text: "So walk me through what the authors actually did here.", Emotion: "curious"},
			{Speaker: "host2", Text: "The paper introduces a mechanism that replaces the old pipeline entirely.", Emotion: "neutral"},
			{Speaker: "host1", Text: "And the results back that up?", Emotion: "curious"},
			{Speaker: "host2", Text: "They report consistent improvements across every benchmark they tried.", Emotion: "emphatic"},
		}}
		b, _ := json.Marshal(seg)
		return string(b)

	case contract.ResponseFactCheck:
		fc := contract.FactCheck{Accuracy: 0.92, NeedsRewrite: false, Feedback: "claims are supported by the provided context"}
		b, _ := json.Marshal(fc)
		return string(b)

	case contract.ResponseRepair:
		return "{}"
	}
	return "{}"
}

// MockEmbedder produces deterministic unit vectors from text content.
type MockEmbedder struct {
	Dim     int
	FailAll bool
	// FailAfter, when positive, fails every Embed call after that many
	// successful calls. Used to exercise partial index coverage.
	FailAfter int

	calls int64
}

// NewMockEmbedder creates a mock embedder with an 8-dimensional space.
func NewMockEmbedder() *MockEmbedder { return &MockEmbedder{Dim: 8} }

// Name returns the provider identifier.
func (m *MockEmbedder) Name() string { return "mock" }

// Dimension returns the fixed embedding dimension.
func (m *MockEmbedder) Dimension() int {
	if m.Dim <= 0 {
		return 8
	}
	return m.Dim
}

// Embed hashes each text into a stable unit vector.
func (m *MockEmbedder) Embed(ctx context.Context, texts []string, _ InputType) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	call := atomic.AddInt64(&m.calls, 1)
	if m.FailAll || (m.FailAfter > 0 && call > int64(m.FailAfter)) {
		return nil, fmt.Errorf("%w: embedder quota exhausted", types.ErrUpstreamTransient)
	}

	dim := m.Dimension()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec := make([]float32, dim)
		h := fnv.New64a()
		h.Write([]byte(t))
		seed := h.Sum64()
		var norm float64
		for j := 0; j < dim; j++ {
			seed = seed*6364136223846793005 + 1442695040888963407
			v := float32(int64(seed>>33))/float32(1<<31) + 1e-6
			vec[j] = v
			norm += float64(v) * float64(v)
		}
		n := float32(math.Sqrt(norm))
		for j := range vec {
			vec[j] /= n
		}
		out[i] = vec
	}
	return out, nil
}

// MockSynthesizer fabricates audio artifacts without any upstream calls.
type MockSynthesizer struct {
	// FailTexts lists substrings whose lines permanently fail synthesis.
	FailTexts []string
	// Latency simulates upstream delay.
	Latency time.Duration

	requestCount int64
}

// NewMockSynthesizer creates a mock synthesizer.
func NewMockSynthesizer() *MockSynthesizer { return &MockSynthesizer{} }

// Name returns the provider identifier.
func (m *MockSynthesizer) Name() string { return "mock" }

// RequestsPerSecond returns an effectively unthrottled rate for tests.
func (m *MockSynthesizer) RequestsPerSecond() float64 { return 1000 }

// MaxRetries returns the retry budget.
func (m *MockSynthesizer) MaxRetries() int { return 2 }

// RetryDelayBase returns a short backoff base for tests.
func (m *MockSynthesizer) RetryDelayBase() time.Duration { return time.Millisecond }

// RequestCount returns the number of Synthesize calls served.
func (m *MockSynthesizer) RequestCount() int64 { return atomic.LoadInt64(&m.requestCount) }

// Synthesize returns a fabricated artifact whose bytes encode the voice and
// text, so tests can assert on ordering after concatenation.
func (m *MockSynthesizer) Synthesize(ctx context.Context, text string, voiceID string, hints SpeechHints) (*SpeechResult, error) {
	atomic.AddInt64(&m.requestCount, 1)

	if m.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Latency):
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, bad := range m.FailTexts {
		if bad != "" && strings.Contains(text, bad) {
			return nil, fmt.Errorf("%w: synthesis rejected", types.ErrUpstreamPermanent)
		}
	}

	audio := []byte(fmt.Sprintf("AUDIO[%s]%s", voiceID, text))
	return &SpeechResult{
		Audio:      audio,
		Format:     "mp3",
		DurationMS: EstimateSpeechDurationMS(text, hints.Speed),
	}, nil
}
