// Package hub owns the websocket read/write pumps for connected clients.
package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tessamero/chatrelay/backend/pkg/log"
)

// Config tunes the websocket pumps.
type Config struct {
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

// DefaultConfig returns pump settings suitable for browser clients.
func DefaultConfig() Config {
	return Config{
		PingInterval:   54 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 8192,
		SendBuffer:     64,
	}
}

// Client wraps one websocket connection. Frames queued on Send are written
// by WritePump; ReadPump feeds inbound frames to the relay.
type Client struct {
	ID   string
	Send chan []byte

	conn *websocket.Conn
	cfg  Config

	mu     sync.Mutex
	closed bool
}

// NewClient wraps an upgraded connection.
func NewClient(id string, conn *websocket.Conn, cfg Config) *Client {
	if cfg.SendBuffer <= 0 {
		cfg = DefaultConfig()
	}
	return &Client{
		ID:   id,
		Send: make(chan []byte, cfg.SendBuffer),
		conn: conn,
		cfg:  cfg,
	}
}

// ReadPump reads frames until the connection drops, handing each frame to
// handler. detach is invoked exactly once when the pump exits.
func (c *Client) ReadPump(handler func(*Client, []byte), detach func(*Client)) {
	defer func() {
		detach(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.L().Debug().Str("client_id", c.ID).Err(err).Msg("websocket read error")
			}
			return
		}
		handler(c, message)
	}
}

// WritePump drains the Send channel onto the connection and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Enqueue queues a frame without blocking. It reports false when the client
// is already closed, or too slow to keep up and its buffer is full.
func (c *Client) Enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// Close shuts the Send channel exactly once, letting WritePump finish.
// Enqueue after Close reports false instead of hitting the closed channel.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}
