// Package svcctx provides service context for dependency injection via
// context. This package is separate from server to avoid import cycles with
// endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/papercast-ai/papercast/internal/budget"
	"github.com/papercast-ai/papercast/internal/config"
	"github.com/papercast-ai/papercast/internal/episode"
	"github.com/papercast-ai/papercast/internal/ingest"
	"github.com/papercast-ai/papercast/internal/jobstore"
	"github.com/papercast-ai/papercast/internal/metrics"
	"github.com/papercast-ai/papercast/internal/orchestrator"
	"github.com/papercast-ai/papercast/internal/storage"
)

// Services holds all core services that flow through context.
type Services struct {
	ConfigMgr    *config.Manager
	Papers       *ingest.Store
	Jobs         *jobstore.Store
	Orchestrator *orchestrator.Orchestrator
	Assembler    *episode.Assembler
	Governor     *budget.Governor
	Metrics      *metrics.Recorder
	Storage      storage.Adapter
	Logger       *slog.Logger
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// PapersFrom extracts the paper store from context.
func PapersFrom(ctx context.Context) *ingest.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Papers
	}
	return nil
}

// JobsFrom extracts the job store from context.
func JobsFrom(ctx context.Context) *jobstore.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Jobs
	}
	return nil
}

// OrchestratorFrom extracts the orchestrator from context.
func OrchestratorFrom(ctx context.Context) *orchestrator.Orchestrator {
	if s := ServicesFrom(ctx); s != nil {
		return s.Orchestrator
	}
	return nil
}

// AssemblerFrom extracts the episode assembler from context.
func AssemblerFrom(ctx context.Context) *episode.Assembler {
	if s := ServicesFrom(ctx); s != nil {
		return s.Assembler
	}
	return nil
}

// MetricsFrom extracts the metrics recorder from context.
func MetricsFrom(ctx context.Context) *metrics.Recorder {
	if s := ServicesFrom(ctx); s != nil {
		return s.Metrics
	}
	return nil
}
