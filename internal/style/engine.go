package style

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/papercast-ai/papercast/internal/types"
)

// Engine arranges draft lines for delivery: speaker assignment, long-unit
// splitting, and speech enhancement. Arrangement is deterministic and
// idempotent; arranged lines pass through untouched.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a style engine.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger.With("component", "style")}
}

// ArrangeSegment arranges a segment's lines for the given style. Verified
// flags and citations survive arrangement; splitting a long line copies its
// verification state to both halves.
func (e *Engine) ArrangeSegment(lines []types.ScriptLine, styleID string) ([]types.ScriptLine, error) {
	s, err := Lookup(styleID)
	if err != nil {
		return nil, err
	}

	out := make([]types.ScriptLine, 0, len(lines)+2)
	prev := types.SpeakerHost2 // so the first alternation lands on host1
	agreementAcc := 0.0

	for _, line := range lines {
		if line.Arranged {
			out = append(out, line)
			prev = line.Speaker
			continue
		}

		ct := ClassifyContent(line.Text)
		speaker := line.Speaker
		if !types.ValidSpeaker(speaker) || speaker == types.SpeakerNarrator {
			speaker = s.AssignSpeaker(line.Text, prev)
		} else if override := e.contentOverride(s, line.Text); override != "" {
			speaker = override
		}

		if WordCount(line.Text) > LongSplitWords {
			first, second := SplitAtSentence(line.Text)
			if second != "" {
				firstLine := line
				firstLine.Speaker = speaker
				firstLine.Text = Enhance(first, ct)
				firstLine.Arranged = true
				out = append(out, firstLine)

				other := s.alternate(speaker)
				out = append(out, e.transitionLine(s, other))

				secondLine := line
				secondLine.Speaker = other
				secondLine.Text = Enhance(second, ct)
				secondLine.Arranged = true
				out = append(out, secondLine)
				prev = other
				continue
			}
		}

		line.Speaker = speaker
		line.Text = Enhance(line.Text, ct)
		line.Arranged = true
		out = append(out, line)

		// Deterministic agreement interjections paced by the style's
		// agreement rate.
		agreementAcc += s.Flow.AgreementRate
		if agreementAcc >= 1.0 {
			agreementAcc -= 1.0
			out = append(out, e.agreementLine(s, s.alternate(speaker)))
		}
		prev = speaker
	}

	return out, nil
}

// contentOverride returns a content-driven speaker, or "" to keep the
// drafted speaker.
func (e *Engine) contentOverride(s *Style, text string) types.Speaker {
	switch {
	case IsQuestion(text):
		return s.QuestionerRole
	case IsStrongExplanation(text):
		return s.ExplainerRole
	case IsCritical(text):
		return s.CriticalRole
	}
	return ""
}

func (e *Engine) transitionLine(s *Style, speaker types.Speaker) types.ScriptLine {
	host := s.Hosts[speaker]
	text := "Picking up from there..."
	if len(host.Transitions) > 0 {
		text = host.Transitions[0]
	}
	return types.ScriptLine{
		Speaker:    speaker,
		Text:       text,
		Emotion:    types.EmotionNeutral,
		IsVerified: true, // style insert, not a factual claim
		Arranged:   true,
	}
}

var agreementSounds = []string{"Mm-hmm.", "Exactly.", "Right.", "Absolutely.", "I see."}

func (e *Engine) agreementLine(s *Style, speaker types.Speaker) types.ScriptLine {
	// Index by style so different styles do not all interject identically.
	idx := len(s.ID) % len(agreementSounds)
	return types.ScriptLine{
		Speaker:    speaker,
		Text:       agreementSounds[idx],
		Emotion:    types.EmotionNeutral,
		IsVerified: true,
		Arranged:   true,
	}
}

// StyleHints renders the delivery guidance given to the reasoner when
// drafting a segment in this style.
func StyleHints(s *Style, patterns []types.ScoredStylePattern) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Style: %s. %s\n", s.Name, s.Description)
	for _, sp := range s.HostSpeakers() {
		h := s.Hosts[sp]
		fmt.Fprintf(&b, "%s is the %s: %s\n", sp, h.Role, h.Personality)
	}
	fmt.Fprintf(&b, "Pace: %s. Transition style: %s.\n", s.Flow.Pace, s.Flow.TransitionStyle)
	if len(patterns) > 0 {
		b.WriteString("Example phrasings in this style:\n")
		for _, p := range patterns {
			fmt.Fprintf(&b, "- %s\n", p.Pattern.Text)
		}
	}
	return b.String()
}

// Patterns flattens the catalog into the indexable style corpus.
func Patterns() []types.StylePattern {
	var out []types.StylePattern
	for _, id := range IDs() {
		s := catalog[id]
		out = append(out, types.StylePattern{
			StyleID: id, Section: types.StyleSectionOpening, Text: s.Structure.IntroWelcome,
		})
		out = append(out, types.StylePattern{
			StyleID: id, Section: types.StyleSectionClosing, Text: s.Structure.OutroSummary,
		})
		for _, sp := range s.HostSpeakers() {
			h := s.Hosts[sp]
			for _, r := range h.Reactions {
				out = append(out, types.StylePattern{StyleID: id, Section: types.StyleSectionReaction, Text: r})
			}
			for _, t := range h.Transitions {
				out = append(out, types.StylePattern{StyleID: id, Section: types.StyleSectionTransition, Text: t})
			}
			for _, ex := range h.ExplanationPatterns {
				out = append(out, types.StylePattern{StyleID: id, Section: types.StyleSectionExplainer, Text: ex})
			}
		}
	}
	return out
}
