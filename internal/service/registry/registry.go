// Package registry tracks live sessions and their identities.
package registry

import (
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/tessamero/chatrelay/backend/internal/model/chat"
)

var (
	// ErrInvalidName rejects empty or oversized display names.
	ErrInvalidName = errors.New("invalid display name")
	// ErrNameTaken rejects a display name already held by a live session.
	ErrNameTaken = errors.New("display name already taken")
	// ErrSessionNotFound marks operations against unknown sessions.
	ErrSessionNotFound = errors.New("session not found")
	// ErrAlreadyIdentified rejects renaming an identified session.
	ErrAlreadyIdentified = errors.New("session already identified")
)

// DefaultMaxNameLen bounds display names when no limit is configured.
const DefaultMaxNameLen = 50

// Registry maps live session IDs to identity and activity metadata. All
// methods are safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	maxNameLen int
	sessions   map[string]chat.Session
}

// New creates an empty registry with the given display name limit.
func New(maxNameLen int) *Registry {
	if maxNameLen <= 0 {
		maxNameLen = DefaultMaxNameLen
	}
	return &Registry{
		maxNameLen: maxNameLen,
		sessions:   make(map[string]chat.Session),
	}
}

// Register creates an unidentified session for the given connection ID and
// returns that ID. An empty ID gets a generated one.
func (r *Registry) Register(sessionID string) string {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	now := time.Now().UTC()
	session := chat.Session{
		ID:           sessionID,
		CreatedAt:    now,
		LastActiveAt: now,
	}

	r.mu.Lock()
	r.sessions[session.ID] = session
	r.mu.Unlock()

	return session.ID
}

// SetIdentity binds a display name to a session. The name must be non-empty
// after trimming, within the length limit, and unique among live sessions
// (case-sensitive exact match).
func (r *Registry) SetIdentity(sessionID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > r.maxNameLen {
		return ErrInvalidName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if session.Username != "" {
		return ErrAlreadyIdentified
	}
	for _, other := range r.sessions {
		if other.Username == name {
			return ErrNameTaken
		}
	}

	session.Username = name
	session.LastActiveAt = time.Now().UTC()
	r.sessions[sessionID] = session
	return nil
}

// Unregister removes a session and returns its display name, if one was set.
func (r *Registry) Unregister(sessionID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return "", false
	}
	delete(r.sessions, sessionID)
	return session.Username, session.Username != ""
}

// Get returns a snapshot of a session.
func (r *Registry) Get(sessionID string) (chat.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[sessionID]
	return session, ok
}

// Names returns the distinct display names of identified sessions.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sessions))
	for _, session := range r.sessions {
		if session.Username != "" {
			names = append(names, session.Username)
		}
	}
	return names
}

// Len reports the number of live sessions, identified or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Touch updates a session's last-activity timestamp.
func (r *Registry) Touch(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	session.LastActiveAt = time.Now().UTC()
	r.sessions[sessionID] = session
}

// Sweep removes sessions idle for longer than staleAfter and returns them.
// It guards against leaked sessions from silently dropped connections.
func (r *Registry) Sweep(staleAfter time.Duration) []chat.Session {
	cutoff := time.Now().UTC().Add(-staleAfter)

	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []chat.Session
	for id, session := range r.sessions {
		if session.LastActiveAt.Before(cutoff) {
			delete(r.sessions, id)
			removed = append(removed, session)
		}
	}
	return removed
}
