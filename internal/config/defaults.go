package config

import (
	"github.com/papercast-ai/papercast/internal/budget"
	"github.com/papercast-ai/papercast/internal/providers"
	"github.com/papercast-ai/papercast/internal/retriever"
	"github.com/papercast-ai/papercast/internal/synth"
)

// DefaultConfig returns the built-in configuration. The mock providers keep
// a fresh checkout runnable without any API keys; production deployments
// select openai backends via config or the *_PROVIDER env vars.
func DefaultConfig() Config {
	return Config{
		Providers: providers.RegistryConfig{
			Reasoner: providers.ProviderConfig{
				Type:       "mock",
				Model:      "gpt-4o",
				APIKey:     "${OPENAI_API_KEY}",
				RateLimit:  2.0,
				MaxRetries: 3,
				TimeoutS:   120,
			},
			Embedder: providers.ProviderConfig{
				Type:      "mock",
				Model:     "text-embedding-3-small",
				APIKey:    "${OPENAI_API_KEY}",
				Dimension: 1536,
				TimeoutS:  60,
			},
			Synthesizer: providers.ProviderConfig{
				Type:       "mock",
				Model:      "tts-1-hd",
				APIKey:     "${OPENAI_API_KEY}",
				RateLimit:  8.0,
				MaxRetries: 3,
				TimeoutS:   300,
				Speed:      1.0,
			},
		},
		Budget: BudgetConfig{
			MaxCostUSD:        5.00,
			AlertThreshold:    0.8,
			MaxTokensPerPaper: 500_000,
			MaxProcessingS:    1800,
			Rates:             budget.DefaultRates(),
		},
		Workflow: WorkflowConfig{
			MaxConcurrentJobs:     2,
			MaxSegmentParallelism: 3,
			MaxWorkflowIterations: 50,
			MaxStateRetries:       3,
			MaxSegmentRetries:     2,
			MaxRewrites:           2,
			AccThreshold:          0.75,
			MinIndexCoverage:      0.5,
			DefaultStyle:          "npr_calm",
			DefaultTargetS:        900,
		},
		Chunking: retriever.DefaultChunkConfig(),
		Voices:   synth.DefaultVoiceMap(),
		Storage: StorageConfig{
			Backend: "local",
			Path:    "data",
		},
		Qdrant: QdrantConfig{
			Enabled: false,
			Addr:    "localhost:6334",
			Managed: false,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: "8080",
		},
	}
}
