// Package presence tracks which users are reachable right now. The mapping
// is volatile: it lives only in memory and is rebuilt from empty when the
// process restarts.
package presence

import (
	"sync"

	"github.com/Naing-Lynn-Aung/chatting-app/internal/events"
)

// Registry maps a user id to their active connection. A user has at most
// one connection: a later join overwrites an earlier one (last writer
// wins). The raw mapping is never exposed to other components.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]events.Conn
}

// NewRegistry creates an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]events.Conn)}
}

// SetOnline records the user's active connection, replacing any previous one.
func (r *Registry) SetOnline(userID string, conn events.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[userID] = conn
}

// Remove drops the user from presence tracking. Removing an absent user is
// a no-op.
func (r *Registry) Remove(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, userID)
}

// RemoveConn drops whichever user owns the given connection and returns
// that user's id. A connection evicted by a later join is not removed.
func (r *Registry) RemoveConn(conn events.Conn) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, c := range r.conns {
		if c == conn {
			delete(r.conns, userID)
			return userID, true
		}
	}
	return "", false
}

// IsOnline reports whether the user has an active connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[userID]
	return ok
}

// ConnFor returns the user's active connection, if any.
func (r *Registry) ConnFor(userID string) (events.Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[userID]
	return conn, ok
}

// OnlineIDs returns the ids of every reachable user.
func (r *Registry) OnlineIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.conns))
	for userID := range r.conns {
		ids = append(ids, userID)
	}
	return ids
}
