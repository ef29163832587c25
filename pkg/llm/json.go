package llm

import "strings"

// ExtractJSON extracts JSON from text that might be wrapped in markdown code
// blocks or prefixed with LLM reasoning tags like <think>...</think>.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)

	// Remove <think>...</think> tags (LLM reasoning mode output)
	if idx := strings.Index(text, "</think>"); idx != -1 {
		text = strings.TrimSpace(text[idx+len("</think>"):])
	}

	// Remove markdown code blocks if present
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimSuffix(text, "```")
		text = strings.TrimSpace(text)
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
		text = strings.TrimSpace(text)
	}
	return text
}
