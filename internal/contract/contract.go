// Package contract implements the structured-JSON contract layer between the
// reasoner and the rest of the system. Model output enters as free text and
// leaves as a typed, schema-validated value or a single typed error; nothing
// downstream ever parses raw model text.
package contract

import (
	"github.com/papercast-ai/papercast/internal/types"
)

// ResponseType identifies which contract a reasoner response must satisfy.
type ResponseType string

const (
	ResponseOutline   ResponseType = "outline"
	ResponseSegment   ResponseType = "segment"
	ResponseFactCheck ResponseType = "factcheck"
	ResponseRewrite   ResponseType = "rewrite"
	ResponseRepair    ResponseType = "repair"
)

// OutlineSegment is one planned segment in an outline response.
type OutlineSegment struct {
	Type                 string   `json:"type"`
	Title                string   `json:"title"`
	Description          string   `json:"description,omitempty"`
	DurationTargetS      float64  `json:"duration_target_s"`
	KeyPoints            []string `json:"key_points"`
	ConversationStarters []string `json:"conversation_starters,omitempty"`
}

// Outline is the validated outline contract.
type Outline struct {
	Title    string           `json:"title"`
	Segments []OutlineSegment `json:"segments"`
}

// ScriptTurn is one spoken turn in a segment or rewrite response.
type ScriptTurn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	Emotion string `json:"emotion,omitempty"`
}

// Segment is the validated segment (and rewrite) contract.
type Segment struct {
	Script []ScriptTurn `json:"script"`
}

// LineVerdict is a per-line verification result in a factcheck response.
type LineVerdict struct {
	LineIndex  int              `json:"line_index"`
	IsVerified bool             `json:"is_verified"`
	Citations  []types.Citation `json:"citations,omitempty"`
}

// FactCheck is the validated factcheck contract.
//
// PerLine is optional; when absent, callers derive uniform per-line verdicts
// from Accuracy against the acceptance threshold (inclusive on the high side).
type FactCheck struct {
	Accuracy     float64       `json:"accuracy"`
	NeedsRewrite bool          `json:"needs_rewrite"`
	Feedback     string        `json:"feedback"`
	PerLine      []LineVerdict `json:"per_line,omitempty"`
}

// DeriveVerdicts returns per-line verdicts for a script of n lines. Explicit
// per_line entries win; otherwise every line inherits accuracy >= threshold.
func (f *FactCheck) DeriveVerdicts(n int, threshold float64) []LineVerdict {
	verdicts := make([]LineVerdict, n)
	uniform := f.Accuracy >= threshold
	for i := range verdicts {
		verdicts[i] = LineVerdict{LineIndex: i, IsVerified: uniform}
	}
	for _, v := range f.PerLine {
		if v.LineIndex >= 0 && v.LineIndex < n {
			verdicts[v.LineIndex] = v
		}
	}
	return verdicts
}

// RewriteNeeded reports whether any line in a script of n lines requires a
// rewrite, given the acceptance threshold.
func (f *FactCheck) RewriteNeeded(n int, threshold float64) bool {
	if f.Accuracy < threshold {
		return true
	}
	for _, v := range f.DeriveVerdicts(n, threshold) {
		if !v.IsVerified {
			return true
		}
	}
	return false
}
