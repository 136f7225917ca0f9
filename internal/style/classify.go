package style

import "strings"

// ContentType classifies a piece of text for delivery decisions.
type ContentType string

const (
	ContentExciting      ContentType = "exciting"
	ContentTechnical     ContentType = "technical"
	ContentControversial ContentType = "controversial"
	ContentComplex       ContentType = "complex"
	ContentGeneral       ContentType = "general"
)

// ContentEmotion classifies the emotional tone of text.
type ContentEmotion string

const (
	EmotionPositive ContentEmotion = "positive"
	EmotionNegative ContentEmotion = "negative"
	EmotionNeutralC ContentEmotion = "neutral"
)

var excitementKeywords = []string{
	"breakthrough", "revolutionary", "unprecedented", "remarkable",
	"surprising", "dramatic", "game-changing", "first time", "novel",
}

var technicalKeywords = []string{
	"algorithm", "methodology", "architecture", "implementation",
	"parameter", "benchmark", "dataset", "training", "inference",
	"optimization", "gradient", "convergence",
}

var controversialKeywords = []string{
	"controversial", "debate", "disagree", "criticism", "contested",
	"ethical", "bias", "risk", "concern",
}

var complexKeywords = []string{
	"theorem", "proof", "derivation", "asymptotic", "stochastic",
	"probabilistic", "equation", "formalism", "nontrivial",
}

var positiveKeywords = []string{
	"success", "improvement", "effective", "better", "positive", "breakthrough",
}

var negativeKeywords = []string{
	"failure", "worse", "negative", "problem", "concern", "limitation",
}

var neutralKeywords = []string{
	"analysis", "study", "research", "data", "method", "approach",
}

func countMatches(textLower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(textLower, kw) {
			n++
		}
	}
	return n
}

// ClassifyContent returns the dominant content type of text. Ties resolve in
// the fixed order exciting, technical, controversial, complex; no matches
// yield general.
func ClassifyContent(text string) ContentType {
	lower := strings.ToLower(text)

	scores := []struct {
		t ContentType
		n int
	}{
		{ContentExciting, countMatches(lower, excitementKeywords)},
		{ContentTechnical, countMatches(lower, technicalKeywords)},
		{ContentControversial, countMatches(lower, controversialKeywords)},
		{ContentComplex, countMatches(lower, complexKeywords)},
	}

	best := ContentGeneral
	bestN := 0
	for _, s := range scores {
		if s.n > bestN {
			best = s.t
			bestN = s.n
		}
	}
	return best
}

// ClassifyEmotion returns the emotional tone of text. Neutral wins ties.
func ClassifyEmotion(text string) ContentEmotion {
	lower := strings.ToLower(text)

	pos := countMatches(lower, positiveKeywords)
	neg := countMatches(lower, negativeKeywords)
	neu := countMatches(lower, neutralKeywords)

	switch {
	case pos > neg && pos > neu:
		return EmotionPositive
	case neg > pos && neg > neu:
		return EmotionNegative
	default:
		return EmotionNeutralC
	}
}
