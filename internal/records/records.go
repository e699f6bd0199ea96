package records

import (
	"strings"
)

// SplitLines turns a raw log blob into one record per non-blank line,
// trimmed of surrounding whitespace.
func SplitLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Truncate keeps at most maxTokens whitespace-delimited tokens of text.
// Tokens are approximated by words to avoid a tokenizer dependency.
// maxTokens <= 0 disables truncation.
func Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	words := strings.Fields(text)
	if len(words) <= maxTokens {
		return text
	}
	return strings.Join(words[:maxTokens], " ")
}

// TruncateAll applies Truncate to every text.
func TruncateAll(texts []string, maxTokens int) []string {
	if maxTokens <= 0 {
		return texts
	}
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = Truncate(t, maxTokens)
	}
	return out
}
