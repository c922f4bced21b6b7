// Package llmjson pulls JSON payloads out of free-form language model output.
package llmjson

import "strings"

// Extract returns the span from the first open delimiter to the last close
// delimiter in text, ignoring markdown code fences.
func Extract(text string, open, close byte) (string, bool) {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")

	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, close)
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// Object extracts the outermost JSON object.
func Object(text string) (string, bool) {
	return Extract(text, '{', '}')
}

// Array extracts the outermost JSON array.
func Array(text string) (string, bool) {
	return Extract(text, '[', ']')
}
