package chat

import (
	"encoding/json"
	"time"
)

// Inbound event types from clients.
const (
	EventJoinChat       = "join_chat"
	EventSendMessage    = "send_message"
	EventGetActiveUsers = "get_active_users"
	EventGetChatHistory = "get_chat_history"
	EventPing           = "ping"
	EventDisconnect     = "disconnect"
)

// Outbound event types to clients.
const (
	EventConnectResponse = "connect_response"
	EventJoinSuccess     = "join_success"
	EventNewMessage      = "new_message"
	EventActiveUsers     = "active_users"
	EventChatHistory     = "chat_history"
	EventPong            = "pong"
	EventError           = "error"
)

// Inbound is the envelope every client frame arrives in. Data is decoded per
// event type.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// JoinRequest is the payload of a join_chat event.
type JoinRequest struct {
	Username string `json:"username"`
}

// SendRequest is the payload of a send_message event.
type SendRequest struct {
	Message string `json:"message"`
}

// Outbound is the envelope every server frame is sent in.
type Outbound struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// NewOutbound stamps an outbound envelope with the current time.
func NewOutbound(eventType string, data any) Outbound {
	return Outbound{Type: eventType, Data: data, Timestamp: time.Now().Unix()}
}

// ConnectAck is the connect_response payload.
type ConnectAck struct {
	Status           string  `json:"status"`
	SID              string  `json:"sid"`
	AIAvailable      bool    `json:"ai_available"`
	ServerTime       float64 `json:"server_time"`
	ActiveUsersCount int     `json:"active_users_count"`
}

// ErrorPayload carries a caller-only error event.
type ErrorPayload struct {
	Message string `json:"message"`
}

// PongPayload carries the server timestamp for a liveness probe.
type PongPayload struct {
	Timestamp float64 `json:"timestamp"`
}
