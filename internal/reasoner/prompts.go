package reasoner

import (
	"fmt"
	"strings"

	"github.com/papercast-ai/papercast/internal/contract"
	"github.com/papercast-ai/papercast/internal/providers"
	"github.com/papercast-ai/papercast/internal/types"
)

// Prompt context is bounded so a long paper cannot blow the token budget of
// a single call; retrieval picks the slices that matter.
const maxContextChars = 12000

// OutlinePrompt carries the inputs for episode planning.
type OutlinePrompt struct {
	PaperTitle      string
	PaperContext    string // leading slice of the paper body
	StyleName       string
	TargetDurationS float64
	FastMode        bool
}

func (p OutlinePrompt) request() *providers.ReasonRequest {
	system := `You are a podcast producer planning an episode about a research paper.
Respond with JSON only: {"title": string, "segments": [{"type", "title", "description", "duration_target_s", "key_points"}]}.
Segment types: overview, core, deep_dive, takeaways. Plan 3-12 segments whose durations sum close to the target.`

	var b strings.Builder
	fmt.Fprintf(&b, "Paper: %s\n", p.PaperTitle)
	fmt.Fprintf(&b, "Podcast style: %s\n", p.StyleName)
	fmt.Fprintf(&b, "Target episode duration: %.0f seconds\n", p.TargetDurationS)
	if p.FastMode {
		b.WriteString("Keep the plan lean: fewer key points per segment.\n")
	}
	b.WriteString("\nPaper content:\n")
	b.WriteString(truncate(p.PaperContext, maxContextChars))

	return &providers.ReasonRequest{
		Messages: []providers.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: b.String()},
		},
		ResponseType: contract.ResponseOutline,
	}
}

// DraftPrompt carries the inputs for segment script generation.
type DraftPrompt struct {
	Plan       types.SegmentPlan
	Facts      []types.ScoredChunk
	StyleHints string
	Hosts      []types.Speaker
}

func (p DraftPrompt) request() *providers.ReasonRequest {
	hosts := make([]string, len(p.Hosts))
	for i, h := range p.Hosts {
		hosts[i] = string(h)
	}
	system := fmt.Sprintf(`You write natural two-host podcast dialogue grounded in the provided source material.
Respond with JSON only: {"script": [{"speaker", "text", "emotion"}]}.
Allowed speakers: %s. Emotions: neutral, excited, curious, thoughtful, concerned, emphatic.
Every factual claim must come from the source material. At least 2 lines.`, strings.Join(hosts, ", "))

	var b strings.Builder
	fmt.Fprintf(&b, "Segment %d: %s (%s, target %.0fs)\n", p.Plan.Index, p.Plan.Title, p.Plan.Type, p.Plan.DurationTargetS)
	if p.Plan.Description != "" {
		fmt.Fprintf(&b, "About: %s\n", p.Plan.Description)
	}
	b.WriteString("Key points to cover:\n")
	for _, kp := range p.Plan.KeyPoints {
		fmt.Fprintf(&b, "- %s\n", kp)
	}
	if len(p.Plan.ConversationStarters) > 0 {
		b.WriteString("Conversation starters:\n")
		for _, cs := range p.Plan.ConversationStarters {
			fmt.Fprintf(&b, "- %s\n", cs)
		}
	}
	if p.StyleHints != "" {
		fmt.Fprintf(&b, "\nDelivery style:\n%s\n", p.StyleHints)
	}
	b.WriteString("\nSource material:\n")
	b.WriteString(truncate(formatFacts(p.Facts), maxContextChars))

	return &providers.ReasonRequest{
		Messages: []providers.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: b.String()},
		},
		ResponseType: contract.ResponseSegment,
	}
}

// FactCheckPrompt carries the inputs for segment verification.
type FactCheckPrompt struct {
	SegmentTitle string
	Lines        []types.ScriptLine
	Facts        []types.ScoredChunk
}

func (p FactCheckPrompt) request() *providers.ReasonRequest {
	system := `You are a rigorous fact checker for a science podcast.
Compare each script line against the source material. Respond with JSON only:
{"accuracy": 0-1, "needs_rewrite": bool, "feedback": string,
 "per_line": [{"line_index", "is_verified", "citations": [{"chunk_id", "span"}]}]}.
Mark a line unverified when it states something the sources do not support.`

	var b strings.Builder
	if p.SegmentTitle != "" {
		fmt.Fprintf(&b, "Segment: %s\n", p.SegmentTitle)
	}
	b.WriteString("Script lines:\n")
	for i, l := range p.Lines {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i, l.Speaker, l.Text)
	}
	b.WriteString("\nSource material:\n")
	b.WriteString(truncate(formatFacts(p.Facts), maxContextChars))

	return &providers.ReasonRequest{
		Messages: []providers.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: b.String()},
		},
		ResponseType: contract.ResponseFactCheck,
	}
}

// RewritePrompt carries the inputs for rewriting flagged lines.
type RewritePrompt struct {
	Lines    []types.ScriptLine
	Feedback string
	Facts    []types.ScoredChunk
	Hosts    []types.Speaker
}

func (p RewritePrompt) request() *providers.ReasonRequest {
	hosts := make([]string, len(p.Hosts))
	for i, h := range p.Hosts {
		hosts[i] = string(h)
	}
	system := fmt.Sprintf(`You rewrite podcast dialogue lines that failed fact-checking so every claim is supported by the source material.
Respond with JSON only: {"script": [{"speaker", "text", "emotion"}]} containing the FULL corrected script in order.
Keep lines not marked for rewrite exactly as given. Allowed speakers: %s.`, strings.Join(hosts, ", "))

	var b strings.Builder
	b.WriteString("Script lines (lines marked REWRITE failed verification):\n")
	for i, l := range p.Lines {
		marker := ""
		if l.NeedsRewrite {
			marker = " REWRITE"
		}
		fmt.Fprintf(&b, "%d.%s [%s] %s\n", i, marker, l.Speaker, l.Text)
	}
	fmt.Fprintf(&b, "\nFact-checker feedback:\n%s\n", p.Feedback)
	b.WriteString("\nSource material:\n")
	b.WriteString(truncate(formatFacts(p.Facts), maxContextChars))

	return &providers.ReasonRequest{
		Messages: []providers.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: b.String()},
		},
		ResponseType: contract.ResponseRewrite,
	}
}

func formatFacts(facts []types.ScoredChunk) string {
	var b strings.Builder
	for _, f := range facts {
		fmt.Fprintf(&b, "[%s] %s\n\n", f.Chunk.ChunkID, f.Chunk.Text)
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n...[truncated]"
}
