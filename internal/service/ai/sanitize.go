package ai

import "strings"

// Prompt-delimiter artifacts occasionally leak into completions; everything
// from the first occurrence onward is dropped.
var promptArtifacts = []string{"User:", "Assistant:", "Context:"}

// Sanitize normalizes a raw completion: trims whitespace, collapses blank
// lines and truncates at the first leaked prompt artifact.
func Sanitize(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}

	for strings.Contains(text, "\n\n") {
		text = strings.ReplaceAll(text, "\n\n", "\n")
	}

	for _, artifact := range promptArtifacts {
		if idx := strings.Index(text, artifact); idx >= 0 {
			text = text[:idx]
		}
	}

	return strings.TrimSpace(text)
}
