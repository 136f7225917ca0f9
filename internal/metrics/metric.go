// Package metrics records per-call usage and cost so operators can see
// where a job's budget went. Storage is in-memory; the job store and
// episode metadata are the durable records.
package metrics

import (
	"time"
)

// Metric is a single recorded operation.
type Metric struct {
	// Attribution
	JobID   string `json:"job_id"`
	PaperID string `json:"paper_id,omitempty"`
	Stage   string `json:"stage"`              // e.g. "planning", "drafting"
	ItemKey string `json:"item_key,omitempty"` // e.g. "segment_0003"

	// Provider info
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`

	// Cost and tokens
	CostUSD          float64 `json:"cost_usd"`
	PromptTokens     int     `json:"prompt_tokens,omitempty"`
	CompletionTokens int     `json:"completion_tokens,omitempty"`
	TotalTokens      int     `json:"total_tokens,omitempty"`
	Characters       int     `json:"characters,omitempty"`

	// Timing
	ExecutionSeconds float64 `json:"execution_seconds"`

	// Status
	Success   bool   `json:"success"`
	ErrorType string `json:"error_type,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Summary aggregates metrics for one attribution key.
type Summary struct {
	Calls            int     `json:"calls"`
	Failures         int     `json:"failures"`
	CostUSD          float64 `json:"cost_usd"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Characters       int     `json:"characters"`
	ExecutionSeconds float64 `json:"execution_seconds"`
}

func (s *Summary) add(m Metric) {
	s.Calls++
	if !m.Success {
		s.Failures++
	}
	s.CostUSD += m.CostUSD
	s.PromptTokens += m.PromptTokens
	s.CompletionTokens += m.CompletionTokens
	s.TotalTokens += m.TotalTokens
	s.Characters += m.Characters
	s.ExecutionSeconds += m.ExecutionSeconds
}
