// Package history holds the shared bounded chat log.
package history

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tessamero/chatrelay/backend/internal/model/chat"
)

// DefaultCap bounds the log when no cap is configured.
const DefaultCap = 100

// Log is an ordered, bounded buffer of message records. Appends are
// serialized; when the cap is exceeded the oldest record is evicted.
type Log struct {
	mu      sync.RWMutex
	cap     int
	records []chat.Message
}

// NewLog creates a chat log bounded at cap records.
func NewLog(cap int) *Log {
	if cap <= 0 {
		cap = DefaultCap
	}
	return &Log{
		cap:     cap,
		records: make([]chat.Message, 0, cap),
	}
}

// Append adds a record to the tail, filling in its ID and timestamp when
// unset, and returns the stored record. Safe for concurrent use.
func (l *Log) Append(record chat.Message) chat.Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	l.records = append(l.records, record)
	if len(l.records) > l.cap {
		l.records = l.records[len(l.records)-l.cap:]
	}
	return record
}

// Snapshot returns a point-in-time copy of the full buffer.
func (l *Log) Snapshot() []chat.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	copied := make([]chat.Message, len(l.records))
	copy(copied, l.records)
	return copied
}

// RecentContext returns up to the last n records whose kind is not excluded,
// in chronological order.
func (l *Log) RecentContext(n int, exclude ...chat.Kind) []chat.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 {
		return nil
	}

	excluded := make(map[chat.Kind]struct{}, len(exclude))
	for _, kind := range exclude {
		excluded[kind] = struct{}{}
	}

	picked := make([]chat.Message, 0, n)
	for i := len(l.records) - 1; i >= 0 && len(picked) < n; i-- {
		if _, skip := excluded[l.records[i].Kind]; skip {
			continue
		}
		picked = append(picked, l.records[i])
	}

	// Reverse back into chronological order.
	for i, j := 0, len(picked)-1; i < j; i, j = i+1, j-1 {
		picked[i], picked[j] = picked[j], picked[i]
	}
	return picked
}

// Len reports the current buffer length.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}
