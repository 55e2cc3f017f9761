package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeTrimsWhitespace(t *testing.T) {
	assert.Equal(t, "hello", Sanitize("  hello \n"))
}

func TestSanitizeCollapsesBlankLines(t *testing.T) {
	assert.Equal(t, "a\nb\nc", Sanitize("a\n\nb\n\n\n\nc"))
}

func TestSanitizeTruncatesAtPromptArtifacts(t *testing.T) {
	assert.Equal(t, "the answer is 4.", Sanitize("the answer is 4.\nUser: what else"))
	assert.Equal(t, "done", Sanitize("done Assistant: and then"))
	assert.Equal(t, "summary", Sanitize("summary\nContext: leftover"))
}

func TestSanitizeEmpty(t *testing.T) {
	assert.Equal(t, "", Sanitize("   \n "))
	assert.Equal(t, "", Sanitize("User: leaked entirely"))
}
