package chat

import "time"

// Kind classifies a chat log record.
type Kind string

const (
	KindUser   Kind = "user"
	KindSystem Kind = "system"
	KindAI     Kind = "ai"
	KindError  Kind = "error"
)

// SystemAuthor is the display name attached to system and error records.
const SystemAuthor = "System"

// AIAuthor is the display name attached to ai records.
const AIAuthor = "AI Assistant"

// Message is one immutable chat log entry. The ID is synthetic and lets
// clients suppress redelivery after a full history resend on join.
type Message struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Body      string    `json:"message"`
	Kind      Kind      `json:"type"`
	CreatedAt time.Time `json:"timestamp"`
}

// SystemMessage builds a system-kind record authored by System.
func SystemMessage(body string) Message {
	return Message{Username: SystemAuthor, Body: body, Kind: KindSystem}
}

// ErrorMessage builds an error-kind record authored by System.
func ErrorMessage(body string) Message {
	return Message{Username: SystemAuthor, Body: body, Kind: KindError}
}
