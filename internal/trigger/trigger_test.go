package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tessamero/chatrelay/backend/internal/config"
)

func defaultDetector() *Detector {
	return NewDetector(config.TriggerConfig{
		Mentions:           []string{"@ai", "@bot", "ai:", "bot:", "hey ai", "ask ai", "ai please", "ai help"},
		QuestionIndicators: []string{"?", "how", "what", "why", "when", "where", "can you"},
		TopicKeywords:      []string{"artificial intelligence", "machine learning", "algorithm"},
	})
}

func TestMatchMentionPhrases(t *testing.T) {
	d := defaultDetector()

	cases := map[string]bool{
		"@ai what is 2+2?":                 true,
		"Hey AI, how are you":              true,
		"AI: summarize this":               true,
		"could you ask ai about it":        true,
		"hello everyone":                   false,
		"I said hi to Aisha":               false,
		"lunch at the diner?":              false,
		"the weather is nice today":        false,
		"AI PLEASE help me with my essay":  true,
		"does anyone know a good bot: no?": true,
	}

	for body, want := range cases {
		assert.Equal(t, want, d.Match(body), "body: %q", body)
	}
}

func TestMatchQuestionPlusTopic(t *testing.T) {
	d := defaultDetector()

	// A question indicator alone is not enough; it needs a topic keyword.
	assert.False(t, d.Match("what time is lunch"))
	assert.False(t, d.Match("machine learning is fun"))

	assert.True(t, d.Match("what is machine learning"))
	assert.True(t, d.Match("can you explain this algorithm"))
	assert.True(t, d.Match("is artificial intelligence dangerous?"))
}

func TestStripRemovesMentions(t *testing.T) {
	d := defaultDetector()

	assert.Equal(t, "What is 2+2", d.Strip("@ai What is 2+2"))
	assert.Equal(t, "what now", d.Strip("hey ai, what now"))
	assert.Equal(t, "", d.Strip("@ai"))
	assert.Equal(t, "", d.Strip("  @bot  "))
	assert.Equal(t, "untouched message", d.Strip("untouched message"))
}

func TestStripIsCaseInsensitive(t *testing.T) {
	d := defaultDetector()
	assert.Equal(t, "tell me a joke", d.Strip("@AI tell me a joke"))
}
