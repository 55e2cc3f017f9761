// Package trigger decides which chat messages are routed to the AI.
package trigger

import (
	"strings"

	"github.com/tessamero/chatrelay/backend/internal/config"
)

// Detector matches AI-directed messages against configured phrase sets. The
// phrase sets are data, not logic; deployments tune them via configuration.
type Detector struct {
	mentions  []string
	questions []string
	topics    []string
}

// NewDetector builds a detector from trigger configuration. Phrases are
// matched against the lower-cased message body.
func NewDetector(cfg config.TriggerConfig) *Detector {
	return &Detector{
		mentions:  lowered(cfg.Mentions),
		questions: lowered(cfg.QuestionIndicators),
		topics:    lowered(cfg.TopicKeywords),
	}
}

// Match reports whether the body should be routed to the AI: either it
// contains an explicit mention phrase, or it looks like a question and
// touches an AI topic keyword.
func (d *Detector) Match(body string) bool {
	lower := strings.ToLower(body)

	if containsAny(lower, d.mentions) {
		return true
	}
	return containsAny(lower, d.questions) && containsAny(lower, d.topics)
}

// Strip removes mention phrases from the body and trims leftover punctuation.
// An empty result means the caller should fall back to a greeting prompt.
func (d *Detector) Strip(body string) string {
	cleaned := body
	for _, phrase := range d.mentions {
		for {
			idx := strings.Index(strings.ToLower(cleaned), phrase)
			if idx < 0 {
				break
			}
			cleaned = cleaned[:idx] + cleaned[idx+len(phrase):]
		}
	}
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(cleaned), ","))
}

func containsAny(lower string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func lowered(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}
