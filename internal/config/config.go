// Package config loads and hot-reloads configuration through viper, with
// ${ENV_VAR} resolution for secrets and the documented environment variable
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/papercast-ai/papercast/internal/budget"
	"github.com/papercast-ai/papercast/internal/providers"
	"github.com/papercast-ai/papercast/internal/retriever"
	"github.com/papercast-ai/papercast/internal/synth"
)

// Config is the full application configuration.
type Config struct {
	Providers providers.RegistryConfig `mapstructure:"providers"`
	Budget    BudgetConfig             `mapstructure:"budget"`
	Workflow  WorkflowConfig           `mapstructure:"workflow"`
	Chunking  retriever.ChunkConfig    `mapstructure:"chunking"`
	Voices    synth.VoiceMap           `mapstructure:"voices"`
	Storage   StorageConfig            `mapstructure:"storage"`
	Qdrant    QdrantConfig             `mapstructure:"qdrant"`
	Server    ServerConfig             `mapstructure:"server"`
}

// BudgetConfig configures the budget governor.
type BudgetConfig struct {
	MaxCostUSD        float64      `mapstructure:"max_cost_usd"`
	AlertThreshold    float64      `mapstructure:"alert_threshold"`
	MaxTokensPerPaper int          `mapstructure:"max_tokens_per_paper"`
	MaxProcessingS    int          `mapstructure:"max_processing_time_s"`
	Rates             budget.Rates `mapstructure:"rates"`
}

// Limits converts the config into governor limits.
func (b BudgetConfig) Limits() budget.Limits {
	return budget.Limits{
		MaxCost:           b.MaxCostUSD,
		AlertThreshold:    b.AlertThreshold,
		MaxTokensPerPaper: b.MaxTokensPerPaper,
		MaxProcessingTime: time.Duration(b.MaxProcessingS) * time.Second,
	}
}

// WorkflowConfig bounds the orchestrator and segment pipeline.
type WorkflowConfig struct {
	MaxConcurrentJobs     int     `mapstructure:"max_concurrent_jobs"`
	MaxSegmentParallelism int     `mapstructure:"max_segment_parallelism"`
	MaxWorkflowIterations int     `mapstructure:"max_workflow_iterations"`
	MaxStateRetries       int     `mapstructure:"max_state_retries"`
	MaxSegmentRetries     int     `mapstructure:"max_segment_retries"`
	MaxRewrites           int     `mapstructure:"max_rewrites"`
	AccThreshold          float64 `mapstructure:"acc_threshold"`
	MinIndexCoverage      float64 `mapstructure:"min_index_coverage"`
	DefaultStyle          string  `mapstructure:"default_style"`
	DefaultTargetS        float64 `mapstructure:"default_target_duration_s"`
}

// StorageConfig selects the artifact storage backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"` // "local" or "s3"
	Path    string `mapstructure:"path"`    // local base dir

	S3Endpoint  string `mapstructure:"s3_endpoint"`
	S3Region    string `mapstructure:"s3_region"`
	S3Bucket    string `mapstructure:"s3_bucket"`
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`
}

// QdrantConfig selects the vector index backend.
type QdrantConfig struct {
	Enabled  bool   `mapstructure:"enabled"` // false = in-memory index
	Addr     string `mapstructure:"addr"`    // gRPC address
	Managed  bool   `mapstructure:"managed"` // manage a docker container
	DataPath string `mapstructure:"data_path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a config manager and loads the initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg
	return cm, nil
}

// initViper sets up viper with defaults, env bindings, and the config file.
func (cm *Manager) initViper(cfgFile string) error {
	defaults := DefaultConfig()
	viper.SetDefault("providers", defaults.Providers)
	viper.SetDefault("budget", defaults.Budget)
	viper.SetDefault("workflow", defaults.Workflow)
	viper.SetDefault("chunking", defaults.Chunking)
	viper.SetDefault("storage", defaults.Storage)
	viper.SetDefault("qdrant", defaults.Qdrant)
	viper.SetDefault("server", defaults.Server)

	viper.SetEnvPrefix("PAPERCAST")
	viper.AutomaticEnv()

	// Documented plain env overrides.
	bindings := map[string]string{
		"providers.reasoner.type":            "REASONER_PROVIDER",
		"providers.embedder.type":            "EMBEDDER_PROVIDER",
		"providers.synthesizer.type":         "SYNTH_PROVIDER",
		"workflow.max_concurrent_jobs":       "MAX_CONCURRENT_JOBS",
		"workflow.max_segment_parallelism":   "MAX_SEGMENT_PARALLELISM",
		"workflow.max_workflow_iterations":   "MAX_WORKFLOW_ITERATIONS",
		"workflow.max_state_retries":         "MAX_STATE_RETRIES",
		"workflow.max_segment_retries":       "MAX_SEGMENT_RETRIES",
		"workflow.max_rewrites":              "MAX_REWRITES",
		"workflow.acc_threshold":             "ACC_THRESHOLD",
		"workflow.min_index_coverage":        "MIN_INDEX_COVERAGE",
		"workflow.default_style":             "DEFAULT_STYLE",
		"workflow.default_target_duration_s": "DEFAULT_TARGET_DURATION_S",
		"budget.max_cost_usd":                "MAX_COST_USD",
		"budget.max_tokens_per_paper":        "MAX_TOKENS_PER_PAPER",
		"budget.max_processing_time_s":       "MAX_PROCESSING_TIME_S",
		"chunking.chunk_words":               "CHUNK_WORDS",
		"chunking.chunk_overlap_words":       "CHUNK_OVERLAP_WORDS",
	}
	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			return fmt.Errorf("binding %s: %w", env, err)
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.papercast")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			if _, ok := err.(*os.PathError); !ok {
				return fmt.Errorf("error reading config file: %w", err)
			}
		}
	}
	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Resolve secret references.
	cfg.Providers.Reasoner.APIKey = ResolveEnvVars(cfg.Providers.Reasoner.APIKey)
	cfg.Providers.Embedder.APIKey = ResolveEnvVars(cfg.Providers.Embedder.APIKey)
	cfg.Providers.Synthesizer.APIKey = ResolveEnvVars(cfg.Providers.Synthesizer.APIKey)
	cfg.Storage.S3AccessKey = ResolveEnvVars(cfg.Storage.S3AccessKey)
	cfg.Storage.S3SecretKey = ResolveEnvVars(cfg.Storage.S3SecretKey)
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	viper.WatchConfig()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Papercast configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export OPENAI_API_KEY=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
