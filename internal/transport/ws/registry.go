package ws

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// OnlineUser is a snapshot of one connected user for presence queries.
type OnlineUser struct {
	UserID         string    `json:"user_id"`
	Username       string    `json:"username"`
	SessionIDs     []string  `json:"session_ids"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// userEntry exists while the user has at least one session.
type userEntry struct {
	username       string
	sessions       map[string]*Session
	lastActivityAt time.Time
}

// Registry is the authority on who is connected to this process. It keeps a
// session index and a user index consistent under one lock: a user is online
// exactly while their session set is non-empty, and every session id in the
// user index resolves through the session index.
//
// Single-instance model: all presence is in-process. For multi-instance,
// replace with a shared store.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]*Session
	byUser map[string]*userEntry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]*Session),
		byUser: make(map[string]*userEntry),
	}
}

// Register adds a session under its user and reports whether it is the
// user's first, meaning the user just came online. Registering the same
// session twice is a no-op.
func (r *Registry) Register(s *Session) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[s.ID]; ok {
		return false
	}
	r.byID[s.ID] = s

	entry := r.byUser[s.UserID]
	if entry == nil {
		entry = &userEntry{username: s.Username, sessions: make(map[string]*Session)}
		r.byUser[s.UserID] = entry
		first = true
	}
	entry.sessions[s.ID] = s
	entry.lastActivityAt = time.Now()

	log.Debug().Str("session", s.ID).Str("user", s.UserID).Bool("first", first).Msg("ws session registered")
	return first
}

// Unregister removes a session and reports whether it was the user's last,
// meaning the user just went offline. Unknown ids return (nil, false).
func (r *Registry) Unregister(sessionID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[sessionID]
	if !ok {
		return nil, false
	}
	delete(r.byID, sessionID)

	entry := r.byUser[s.UserID]
	if entry == nil {
		return s, false
	}
	delete(entry.sessions, sessionID)
	if len(entry.sessions) > 0 {
		return s, false
	}
	delete(r.byUser, s.UserID)

	log.Debug().Str("session", s.ID).Str("user", s.UserID).Msg("ws user offline")
	return s, true
}

// IsOnline reports whether the user has at least one session.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byUser[userID] != nil
}

// SessionsOf returns the user's current sessions.
func (r *Registry) SessionsOf(userID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry := r.byUser[userID]
	if entry == nil {
		return nil
	}
	sessions := make([]*Session, 0, len(entry.sessions))
	for _, s := range entry.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// SessionCount returns how many sessions the user has.
func (r *Registry) SessionCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry := r.byUser[userID]
	if entry == nil {
		return 0
	}
	return len(entry.sessions)
}

// TotalSessions returns the number of connected sessions across all users.
func (r *Registry) TotalSessions() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Touch refreshes the user's activity timestamp.
func (r *Registry) Touch(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry := r.byUser[userID]; entry != nil {
		entry.lastActivityAt = time.Now()
	}
}

// OnlineUsers returns a snapshot of every connected user.
func (r *Registry) OnlineUsers() []OnlineUser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]OnlineUser, 0, len(r.byUser))
	for userID, entry := range r.byUser {
		ids := make([]string, 0, len(entry.sessions))
		for id := range entry.sessions {
			ids = append(ids, id)
		}
		users = append(users, OnlineUser{
			UserID:         userID,
			Username:       entry.username,
			SessionIDs:     ids,
			LastActivityAt: entry.lastActivityAt,
		})
	}
	return users
}

// AllSessions returns every connected session, used for full broadcasts.
func (r *Registry) AllSessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		sessions = append(sessions, s)
	}
	return sessions
}
