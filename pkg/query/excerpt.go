package query

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// charsPerToken approximates English text at roughly four characters per
// token. It's a threshold heuristic, not a tokenizer: good enough to decide
// whether an excerpt needs trimming before synthesis, not to bill against.
const charsPerToken = 4

// estimateTokens returns an approximate token count for text. Counting
// bytes rather than runes overestimates multi-byte UTF-8 content (CJK,
// emoji), which only makes truncation trigger a little earlier than
// strictly necessary — the safe direction to err.
func estimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + charsPerToken - 1) / charsPerToken
}

// truncateExcerptToTokens cuts text to roughly maxTokens tokens, breaking at
// the last newline before the limit so it doesn't sever a line of JSON,
// YAML, or log output mid-token. A non-positive maxTokens disables
// truncation entirely (the orchestrator treats that as "unbounded").
func truncateExcerptToTokens(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	maxChars := maxTokens * charsPerToken
	if len(text) <= maxChars {
		return text
	}

	cut := maxChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	truncated := text[:cut]
	if idx := strings.LastIndex(truncated, "\n"); idx > 0 {
		truncated = truncated[:idx]
	}
	return truncated + fmt.Sprintf("\n\n[excerpt truncated at ~%d tokens, original ~%d]", maxTokens, estimateTokens(text))
}
