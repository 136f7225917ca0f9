package providers

import (
	"fmt"
	"log/slog"
	"time"
)

// ProviderConfig configures one backend client.
type ProviderConfig struct {
	Type       string  `mapstructure:"type"` // "openai" or "mock"
	Model      string  `mapstructure:"model"`
	APIKey     string  `mapstructure:"api_key"`
	RateLimit  float64 `mapstructure:"rate_limit"`
	MaxRetries int     `mapstructure:"max_retries"`
	TimeoutS   int     `mapstructure:"timeout_seconds"`
	Dimension  int     `mapstructure:"dimension"`
	Speed      float64 `mapstructure:"speed"`
}

// RegistryConfig selects and configures the three collaborator backends.
type RegistryConfig struct {
	Reasoner    ProviderConfig `mapstructure:"reasoner"`
	Embedder    ProviderConfig `mapstructure:"embedder"`
	Synthesizer ProviderConfig `mapstructure:"synthesizer"`
}

// Registry owns the constructed backend clients and their shared rate
// limiters. Limiter state is process-wide so concurrent jobs collectively
// respect upstream quotas.
type Registry struct {
	reasoner    Reasoner
	embedder    Embedder
	synthesizer Synthesizer

	reasonerLimiter *RateLimiter
	synthLimiter    *RateLimiter

	logger *slog.Logger
}

// NewRegistry constructs backends from config.
func NewRegistry(cfg RegistryConfig, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{logger: logger}

	switch cfg.Reasoner.Type {
	case "", "mock":
		r.reasoner = NewMockReasoner()
	case "openai":
		r.reasoner = NewOpenAIReasoner(OpenAIReasonerConfig{
			APIKey:     cfg.Reasoner.APIKey,
			Model:      cfg.Reasoner.Model,
			RateLimit:  cfg.Reasoner.RateLimit,
			MaxRetries: cfg.Reasoner.MaxRetries,
			Timeout:    time.Duration(cfg.Reasoner.TimeoutS) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown reasoner provider type %q", cfg.Reasoner.Type)
	}

	switch cfg.Embedder.Type {
	case "", "mock":
		r.embedder = NewMockEmbedder()
	case "openai":
		r.embedder = NewOpenAIEmbedder(OpenAIEmbedderConfig{
			APIKey:    cfg.Embedder.APIKey,
			Model:     cfg.Embedder.Model,
			Dimension: cfg.Embedder.Dimension,
			Timeout:   time.Duration(cfg.Embedder.TimeoutS) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown embedder provider type %q", cfg.Embedder.Type)
	}

	switch cfg.Synthesizer.Type {
	case "", "mock":
		r.synthesizer = NewMockSynthesizer()
	case "openai":
		r.synthesizer = NewOpenAITTSClient(OpenAITTSConfig{
			APIKey:     cfg.Synthesizer.APIKey,
			Model:      cfg.Synthesizer.Model,
			Speed:      cfg.Synthesizer.Speed,
			RateLimit:  cfg.Synthesizer.RateLimit,
			MaxRetries: cfg.Synthesizer.MaxRetries,
			Timeout:    time.Duration(cfg.Synthesizer.TimeoutS) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown synthesizer provider type %q", cfg.Synthesizer.Type)
	}

	r.reasonerLimiter = NewRateLimiter(r.reasoner.RequestsPerSecond())
	r.synthLimiter = NewRateLimiter(r.synthesizer.RequestsPerSecond())

	logger.Info("providers initialized",
		"reasoner", r.reasoner.Name(),
		"embedder", r.embedder.Name(),
		"synthesizer", r.synthesizer.Name(),
	)
	return r, nil
}

// Reasoner returns the configured reasoner backend.
func (r *Registry) Reasoner() Reasoner { return r.reasoner }

// Embedder returns the configured embedder backend.
func (r *Registry) Embedder() Embedder { return r.embedder }

// Synthesizer returns the configured synthesizer backend.
func (r *Registry) Synthesizer() Synthesizer { return r.synthesizer }

// ReasonerLimiter returns the process-wide reasoner rate limiter.
func (r *Registry) ReasonerLimiter() *RateLimiter { return r.reasonerLimiter }

// SynthLimiter returns the process-wide synthesizer rate limiter.
func (r *Registry) SynthLimiter() *RateLimiter { return r.synthLimiter }
