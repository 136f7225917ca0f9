// Package providers contains the backend clients for the three external
// collaborator roles: the reasoner (structured-JSON LLM), the embedder
// (vector model), and the synthesizer (TTS). Gateways wrap these clients
// with contract validation, budget accounting, and retry policy.
package providers

import (
	"context"
	"time"

	"github.com/papercast-ai/papercast/internal/contract"
)

// Message is one prompt part sent to the reasoner.
type Message struct {
	Role    string `json:"role"` // "system", "user"
	Content string `json:"content"`
}

// ReasonRequest is a request to the reasoner.
type ReasonRequest struct {
	Messages     []Message             `json:"messages"`
	ResponseType contract.ResponseType `json:"response_type"`

	// Generation hints. Zero values use client defaults.
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Deadline    time.Duration `json:"-"`

	RequestID string `json:"-"`
}

// Usage is the token accounting attached to every reasoner result.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Total returns prompt plus completion tokens.
func (u Usage) Total() int { return u.PromptTokens + u.CompletionTokens }

// ReasonResult is the raw response from the reasoner backend. Content is
// free text until the contract codec validates it.
type ReasonResult struct {
	Content   string `json:"content"`
	Usage     Usage  `json:"usage"`
	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`

	ExecutionTime time.Duration `json:"execution_time"`
	Attempts      int           `json:"attempts"`
}

// Reasoner is the LLM collaborator.
type Reasoner interface {
	// Invoke sends a prompt and returns the raw completion.
	Invoke(ctx context.Context, req *ReasonRequest) (*ReasonResult, error)

	// Name returns the client identifier (e.g. "openai").
	Name() string

	// Rate limiting properties, consumed by the gateway.
	RequestsPerSecond() float64
	MaxRetries() int
	RetryDelayBase() time.Duration
}

// InputType distinguishes passage embeddings from query embeddings.
type InputType string

const (
	InputPassage InputType = "passage"
	InputQuery   InputType = "query"
)

// Embedder is the vector model collaborator. Dimension is fixed per
// deployment and declared at construction.
type Embedder interface {
	Embed(ctx context.Context, texts []string, inputType InputType) ([][]float32, error)
	Dimension() int
	Name() string
}

// SpeechHints carries per-line delivery hints to the synthesizer.
type SpeechHints struct {
	Speed        float64 `json:"speed,omitempty"` // 0.25-4.0, 1.0 default
	Emotion      string  `json:"emotion,omitempty"`
	Instructions string  `json:"instructions,omitempty"`
}

// SpeechResult is a synthesized audio artifact.
type SpeechResult struct {
	Audio      []byte `json:"-"`
	Format     string `json:"format"` // "mp3", "wav"
	DurationMS int    `json:"duration_ms"`
}

// Synthesizer is the TTS collaborator.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voiceID string, hints SpeechHints) (*SpeechResult, error)
	Name() string

	RequestsPerSecond() float64
	MaxRetries() int
	RetryDelayBase() time.Duration
}
