package llm

import (
	"regexp"
	"strings"
)

// thinkTagPattern matches <think>...</think> blocks that reasoning models emit before their answer.
var thinkTagPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// unclosedThinkPattern matches a <think> block cut off by the token limit.
var unclosedThinkPattern = regexp.MustCompile(`(?s)<think>.*$`)

// StripThinking removes reasoning blocks from an oracle response and trims
// surrounding whitespace. A block left open by a max-token cutoff is dropped
// to the end of the text.
func StripThinking(response string) string {
	cleaned := thinkTagPattern.ReplaceAllString(response, "")
	cleaned = unclosedThinkPattern.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}
