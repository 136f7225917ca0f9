// Package app wires configuration into the full service graph shared by the
// HTTP server and the batch CLI.
package app

import (
	"fmt"
	"log/slog"

	"github.com/papercast-ai/papercast/internal/budget"
	"github.com/papercast-ai/papercast/internal/config"
	"github.com/papercast-ai/papercast/internal/contract"
	"github.com/papercast-ai/papercast/internal/episode"
	"github.com/papercast-ai/papercast/internal/ingest"
	"github.com/papercast-ai/papercast/internal/jobstore"
	"github.com/papercast-ai/papercast/internal/metrics"
	"github.com/papercast-ai/papercast/internal/orchestrator"
	"github.com/papercast-ai/papercast/internal/providers"
	"github.com/papercast-ai/papercast/internal/reasoner"
	"github.com/papercast-ai/papercast/internal/retriever"
	"github.com/papercast-ai/papercast/internal/segment"
	"github.com/papercast-ai/papercast/internal/storage"
	"github.com/papercast-ai/papercast/internal/style"
	"github.com/papercast-ai/papercast/internal/svcctx"
	"github.com/papercast-ai/papercast/internal/synth"
)

// App bundles the wired service graph and its teardown hooks.
type App struct {
	Services *svcctx.Services
	Qdrant   *retriever.DockerManager // nil unless managed

	closers []func() error
}

// Build constructs the service graph from configuration.
func Build(cfgMgr *config.Manager, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := cfgMgr.Get()

	a := &App{}

	registry, err := providers.NewRegistry(cfg.Providers, logger)
	if err != nil {
		return nil, err
	}

	codec, err := contract.NewCodec()
	if err != nil {
		return nil, err
	}

	governor := budget.NewGovernor(cfg.Budget.Limits(), cfg.Budget.Rates, logger)
	recorder := metrics.NewRecorder()
	jobs := jobstore.New()
	papers := ingest.NewStore()

	// Storage backend.
	var store storage.Adapter
	switch cfg.Storage.Backend {
	case "", "local":
		local, err := storage.NewLocalAdapter(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		store = local
	case "s3":
		s3, err := storage.NewS3Adapter(storage.S3Options{
			Endpoint:        cfg.Storage.S3Endpoint,
			Region:          cfg.Storage.S3Region,
			Bucket:          cfg.Storage.S3Bucket,
			AccessKeyID:     cfg.Storage.S3AccessKey,
			SecretAccessKey: cfg.Storage.S3SecretKey,
		})
		if err != nil {
			return nil, err
		}
		store = s3
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	a.closers = append(a.closers, store.Close)

	// Vector index backend.
	var index retriever.Index
	if cfg.Qdrant.Enabled {
		if cfg.Qdrant.Managed {
			mgr, err := retriever.NewDockerManager(retriever.DockerConfig{
				DataPath: cfg.Qdrant.DataPath,
			})
			if err != nil {
				return nil, err
			}
			a.Qdrant = mgr
		}
		qdrant, err := retriever.NewQdrantIndex(cfg.Qdrant.Addr, registry.Embedder().Dimension())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, qdrant.Close)
		index = qdrant
	} else {
		index = retriever.NewMemoryIndex()
	}

	reasonGW, err := reasoner.NewGateway(reasoner.Config{
		Client:   registry.Reasoner(),
		Limiter:  registry.ReasonerLimiter(),
		Codec:    codec,
		Governor: governor,
		Recorder: recorder,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	retrieveGW, err := retriever.NewGateway(retriever.Config{
		Embedder: registry.Embedder(),
		Index:    index,
		Governor: governor,
		Logger:   logger,
		Chunking: cfg.Chunking,
	})
	if err != nil {
		return nil, err
	}

	var stitcher synth.Stitcher
	if cfg.Providers.Synthesizer.Type == "openai" {
		stitcher = &synth.FFmpegStitcher{}
	} else {
		stitcher = &synth.ByteStitcher{}
	}
	synthGW, err := synth.NewGateway(synth.Config{
		Synthesizer: registry.Synthesizer(),
		Limiter:     registry.SynthLimiter(),
		Stitcher:    stitcher,
		Store:       store,
		Voices:      cfg.Voices,
		Governor:    governor,
		Recorder:    recorder,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	styleEngine := style.NewEngine(logger)

	pipeline, err := segment.NewPipeline(segment.Config{
		Reasoner:     reasonGW,
		Retriever:    retrieveGW,
		Synth:        synthGW,
		Styles:       styleEngine,
		Logger:       logger,
		AccThreshold: cfg.Workflow.AccThreshold,
		MaxRewrites:  cfg.Workflow.MaxRewrites,
		MaxRetries:   cfg.Workflow.MaxSegmentRetries,
	})
	if err != nil {
		return nil, err
	}

	assembler, err := episode.NewAssembler(episode.Config{
		Synth:  synthGW,
		Store:  store,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Pipeline:              pipeline,
		Reasoner:              reasonGW,
		Retriever:             retrieveGW,
		Assembler:             assembler,
		Governor:              governor,
		Store:                 jobs,
		Logger:                logger,
		MaxStateRetries:       cfg.Workflow.MaxStateRetries,
		MaxWorkflowIterations: cfg.Workflow.MaxWorkflowIterations,
		MaxSegmentParallelism: cfg.Workflow.MaxSegmentParallelism,
		MaxConcurrentJobs:     cfg.Workflow.MaxConcurrentJobs,
		MinIndexCoverage:      cfg.Workflow.MinIndexCoverage,
		DefaultStyle:          cfg.Workflow.DefaultStyle,
		DefaultTargetS:        cfg.Workflow.DefaultTargetS,
	})
	if err != nil {
		return nil, err
	}

	a.Services = &svcctx.Services{
		ConfigMgr:    cfgMgr,
		Papers:       papers,
		Jobs:         jobs,
		Orchestrator: orch,
		Assembler:    assembler,
		Governor:     governor,
		Metrics:      recorder,
		Storage:      store,
		Logger:       logger,
	}
	return a, nil
}

// Close tears down backends in reverse construction order.
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
