package style

import (
	"strings"

	"github.com/papercast-ai/papercast/internal/types"
)

// LongSplitWords is the threshold above which a single unit of text is split
// across both hosts with a transition.
const LongSplitWords = 60

var questionIndicators = []string{
	"what", "how", "why", "when", "where", "can you explain", "tell me",
}

var strongExplanationIndicators = []string{
	"algorithm", "methodology", "architecture", "implementation",
	"results show", "we demonstrate", "our approach", "the study shows",
}

var criticalIndicators = []string{
	"limitation", "concern", "problem", "issue", "bias", "however", "despite",
}

// IsQuestion reports whether text reads as a question.
func IsQuestion(text string) bool {
	if strings.Contains(text, "?") {
		return true
	}
	lower := strings.ToLower(text)
	for _, ind := range questionIndicators {
		if strings.HasPrefix(lower, ind+" ") {
			return true
		}
	}
	return false
}

// IsStrongExplanation reports whether text reads as technical explanation.
func IsStrongExplanation(text string) bool {
	lower := strings.ToLower(text)
	for _, ind := range strongExplanationIndicators {
		if strings.Contains(lower, ind) {
			return true
		}
	}
	return false
}

// IsCritical reports whether text reads as critical analysis.
func IsCritical(text string) bool {
	lower := strings.ToLower(text)
	for _, ind := range criticalIndicators {
		if strings.Contains(lower, ind) {
			return true
		}
	}
	return false
}

// AssignSpeaker picks the speaker for a unit of text. Content-driven roles
// win; otherwise speakers alternate from prev.
func (s *Style) AssignSpeaker(text string, prev types.Speaker) types.Speaker {
	switch {
	case IsQuestion(text):
		return s.QuestionerRole
	case IsStrongExplanation(text):
		return s.ExplainerRole
	case IsCritical(text):
		return s.CriticalRole
	}
	return s.alternate(prev)
}

func (s *Style) alternate(prev types.Speaker) types.Speaker {
	if prev == types.SpeakerHost1 {
		return types.SpeakerHost2
	}
	return types.SpeakerHost1
}

// SplitAtSentence splits text near its midpoint at a sentence boundary.
// Returns the original text and "" when no boundary exists.
func SplitAtSentence(text string) (string, string) {
	mid := len(text) / 2

	best := -1
	for i := 0; i < len(text)-1; i++ {
		c := text[i]
		if (c == '.' || c == '?' || c == '!') && text[i+1] == ' ' {
			if best == -1 || abs(i-mid) < abs(best-mid) {
				best = i
			}
		}
	}
	if best == -1 {
		return text, ""
	}
	return strings.TrimSpace(text[:best+1]), strings.TrimSpace(text[best+1:])
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// WordCount counts whitespace-delimited words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
