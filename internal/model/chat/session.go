package chat

import "time"

// Session captures one connected client's server-side state. Username stays
// empty until the client joins; once set it never changes for the session's
// lifetime.
type Session struct {
	ID           string    `json:"id"`
	Username     string    `json:"username,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// Identified reports whether the session has joined the chat.
func (s Session) Identified() bool {
	return s.Username != ""
}
