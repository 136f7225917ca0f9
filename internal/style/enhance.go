package style

import (
	"regexp"
	"strings"
)

// breathingWordThreshold is the line length above which a mid-sentence
// breathing pause is inserted.
const breathingWordThreshold = 20

// abbreviationPronunciations maps abbreviations to disambiguated spoken
// forms so the synthesizer does not read them as words.
var abbreviationPronunciations = []struct{ from, to string }{
	{"AI", "A.I."},
	{"ML", "M.L."},
	{"NLP", "N.L.P."},
	{"CNN", "C.N.N."},
	{"RNN", "R.N.N."},
	{"GPU", "G.P.U."},
	{"CPU", "C.P.U."},
	{"API", "A.P.I."},
	{"URL", "U.R.L."},
	{"HTTP", "H.T.T.P."},
	{"JSON", "J.S.O.N."},
	{"SQL", "S.Q.L."},
}

var (
	citationNumberRe = regexp.MustCompile(`\[(\d+)\]`)
	authorCitationRe = regexp.MustCompile(`\(.*?et al\..*?\)`)
	percentRe        = regexp.MustCompile(`\b(\d+)%`)
	timesRe          = regexp.MustCompile(`\b(\d+)\s*x\b`)
)

// CleanForSpeech strips formatting that reads badly aloud and normalizes
// abbreviations and numeric shorthand.
func CleanForSpeech(text string) string {
	clean := strings.ReplaceAll(text, "**", "")
	clean = strings.ReplaceAll(clean, "*", "")

	clean = citationNumberRe.ReplaceAllString(clean, "")
	clean = authorCitationRe.ReplaceAllString(clean, "")

	for _, a := range abbreviationPronunciations {
		clean = replaceWholeWord(clean, a.from, a.to)
	}

	clean = percentRe.ReplaceAllString(clean, "$1 percent")
	clean = timesRe.ReplaceAllString(clean, "$1 times")

	return strings.TrimSpace(clean)
}

// replaceWholeWord replaces from with to only at word boundaries, so "AI"
// does not rewrite the middle of "retrain".
func replaceWholeWord(s, from, to string) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		j := strings.Index(s[i:], from)
		if j < 0 {
			b.WriteString(s[i:])
			break
		}
		j += i
		end := j + len(from)
		beforeOK := j == 0 || !isWordByte(s[j-1])
		afterOK := end == len(s) || !isWordByte(s[end])
		b.WriteString(s[i:j])
		if beforeOK && afterOK {
			b.WriteString(to)
		} else {
			b.WriteString(from)
		}
		i = end
	}
	return b.String()
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '.'
}

// emphasisTerms are paused before, keyed by content type.
var emphasisTerms = map[ContentType][]string{
	ContentExciting:      {"breakthrough", "revolutionary", "unprecedented", "remarkable"},
	ContentTechnical:     {"algorithm", "methodology", "implementation", "analysis"},
	ContentControversial: {"concern", "limitation", "risk", "problem"},
}

var emphasisPause = map[ContentType]string{
	ContentExciting:      " ..... ",
	ContentTechnical:     " ... ",
	ContentControversial: " .... ",
}

// AddEmphasisPauses inserts pauses before charged terms per content type.
func AddEmphasisPauses(text string, ct ContentType) string {
	terms, ok := emphasisTerms[ct]
	if !ok {
		return text
	}
	pause := emphasisPause[ct]
	for _, term := range terms {
		text = strings.ReplaceAll(text, " "+term, pause+term)
	}
	return text
}

// AddBreathingPause inserts a mid-sentence pause into long lines at the
// comma or clause boundary nearest the midpoint.
func AddBreathingPause(text string) string {
	if WordCount(text) <= breathingWordThreshold {
		return text
	}
	if strings.Contains(text, " ... ") {
		return text // already paced
	}

	mid := len(text) / 2
	best := -1
	for i := 0; i < len(text)-1; i++ {
		if text[i] == ',' && text[i+1] == ' ' {
			if best == -1 || abs(i-mid) < abs(best-mid) {
				best = i
			}
		}
	}
	if best == -1 {
		return text
	}
	return text[:best+1] + " ..." + text[best+1:]
}

// Enhance applies the full speech-processing pass for one line of text.
func Enhance(text string, ct ContentType) string {
	out := CleanForSpeech(text)
	out = AddEmphasisPauses(out, ct)
	out = AddBreathingPause(out)
	return out
}
