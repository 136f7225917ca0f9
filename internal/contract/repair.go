package contract

import (
	"strings"
)

// Repair applies the deterministic repair pipeline to malformed model output
// and returns the best JSON candidate. The stages mirror how models actually
// misbehave: markdown fences and prose around the payload, smart quotes,
// trailing commas, and key quotes swallowed into the value.
func Repair(raw string) string {
	s := StripCodeFences(raw)
	s = ExtractBalancedObject(s)
	s = NormalizeSmartQuotes(s)
	s = FixSwallowedKeyQuotes(s)
	s = StripTrailingCommas(s)
	return strings.TrimSpace(s)
}

// StripCodeFences removes a surrounding markdown code fence, if present, and
// trims leading/trailing prose outside it.
func StripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "```")
	if start < 0 {
		return trimmed
	}

	rest := trimmed[start+3:]
	// Drop an optional language tag on the fence line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		first := strings.TrimSpace(rest[:nl])
		if first == "" || isFenceTag(first) {
			rest = rest[nl+1:]
		}
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

func isFenceTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return len(s) <= 16
}

// ExtractBalancedObject returns the largest balanced {…} substring of s,
// ignoring braces inside JSON strings. Returns s unchanged when no balanced
// object is found.
func ExtractBalancedObject(s string) string {
	best := ""
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					candidate := s[start : i+1]
					if len(candidate) > len(best) {
						best = candidate
					}
				}
			}
		}
	}

	if best == "" {
		return s
	}
	return best
}

var smartQuoteReplacer = strings.NewReplacer(
	"“", `"`, // left double
	"”", `"`, // right double
	"‘", "'", // left single
	"’", "'", // right single
)

// NormalizeSmartQuotes maps typographic quotes to their ASCII forms.
func NormalizeSmartQuotes(s string) string {
	return smartQuoteReplacer.Replace(s)
}

// StripTrailingCommas removes commas that directly precede a closing brace
// or bracket, outside of JSON strings.
func StripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue // drop the comma
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// FixSwallowedKeyQuotes repairs keys where the closing quote was swallowed
// into the colon, e.g. `"title: "value"` becomes `"title": "value"`.
func FixSwallowedKeyQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '"' {
			b.WriteByte(c)
			continue
		}
		// Scan a quoted token; if it ends with a colon and the next
		// non-space byte opens a value, the key quote was swallowed.
		j := i + 1
		for j < len(s) && s[j] != '"' && s[j] != '\n' {
			j++
		}
		if j < len(s) && s[j] == '"' {
			token := s[i+1 : j]
			if k := strings.IndexByte(token, ':'); k > 0 && strings.TrimSpace(token[k+1:]) == "" {
				key := strings.TrimSpace(token[:k])
				if key != "" && !strings.ContainsAny(key, "{}[],") {
					b.WriteByte('"')
					b.WriteString(key)
					// The swallowed quote at j reopens as the value quote.
					b.WriteString(`": "`)
					i = j
					continue
				}
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// RepairPrompt builds the single-shot "return valid JSON only" re-prompt sent
// to the reasoner when deterministic repair fails.
func RepairPrompt(schema string, malformed string) string {
	malformed = strings.TrimSpace(malformed)
	if len(malformed) > 12000 {
		malformed = malformed[:12000] + "\n...[truncated]"
	}
	return "Return ONLY valid JSON (no markdown, no commentary) that strictly conforms to this schema.\n\nSchema:\n" +
		schema + "\n\nYour previous output:\n" + malformed
}
