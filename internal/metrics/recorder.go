package metrics

import (
	"sync"
	"time"
)

// Recorder stores metrics and serves aggregate queries. Safe for concurrent
// use by parallel segments and jobs.
type Recorder struct {
	mu      sync.RWMutex
	metrics []Metric
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record stores a single metric.
func (r *Recorder) Record(m Metric) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if m.TotalTokens == 0 {
		m.TotalTokens = m.PromptTokens + m.CompletionTokens
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, m)
}

// ForJob returns all metrics recorded for a job, in order.
func (r *Recorder) ForJob(jobID string) []Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Metric
	for _, m := range r.metrics {
		if m.JobID == jobID {
			out = append(out, m)
		}
	}
	return out
}

// JobSummary aggregates all metrics for a job.
func (r *Recorder) JobSummary(jobID string) Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var s Summary
	for _, m := range r.metrics {
		if m.JobID == jobID {
			s.add(m)
		}
	}
	return s
}

// StageBreakdown aggregates a job's metrics per stage.
func (r *Recorder) StageBreakdown(jobID string) map[string]Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Summary)
	for _, m := range r.metrics {
		if m.JobID != jobID {
			continue
		}
		s := out[m.Stage]
		s.add(m)
		out[m.Stage] = s
	}
	return out
}

// Totals aggregates everything the recorder has seen.
func (r *Recorder) Totals() Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var s Summary
	for _, m := range r.metrics {
		s.add(m)
	}
	return s
}
