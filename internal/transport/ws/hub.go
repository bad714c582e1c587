package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vidmesh/realtime/internal/application"
)

const (
	// emitAttempts bounds how often EmitToUser re-gathers targets before
	// giving up on an unreachable user.
	emitAttempts   = 3
	emitRetryDelay = 50 * time.Millisecond
)

// Hub routes events onto sessions through topic membership. It satisfies the
// application.Emitter interface and is constructed once at startup; callers
// receive it injected and never reach for a global.
type Hub struct {
	registry *Registry

	mu     sync.RWMutex
	topics map[string]map[string]*Session
}

// NewHub creates a Hub bound to the registry it falls back to when a user
// has sessions that joined no topic yet.
func NewHub(registry *Registry) *Hub {
	return &Hub{
		registry: registry,
		topics:   make(map[string]map[string]*Session),
	}
}

// Join adds the session to a topic.
func (h *Hub) Join(topic string, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.topics[topic]
	if members == nil {
		members = make(map[string]*Session)
		h.topics[topic] = members
	}
	members[s.ID] = s
}

// Leave removes the session from a topic.
func (h *Hub) Leave(topic string, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(topic, s.ID)
}

// LeaveAll removes the session from every topic, part of disconnect cleanup.
func (h *Hub) LeaveAll(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for topic := range h.topics {
		h.removeLocked(topic, s.ID)
	}
}

func (h *Hub) removeLocked(topic, sessionID string) {
	members := h.topics[topic]
	if members == nil {
		return
	}
	delete(members, sessionID)
	if len(members) == 0 {
		delete(h.topics, topic)
	}
}

// TopicMembers returns how many sessions are joined to the topic.
func (h *Hub) TopicMembers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// EmitToUser delivers the event to every session of the user. Targets come
// from the user topic (plus the notifications topic for notification
// events); sessions registered but not yet joined anywhere are picked up
// from the registry. The gather-and-send sequence runs up to emitAttempts
// times so a user mid-reconnect still gets the event; false means no
// session took the frame.
func (h *Hub) EmitToUser(userID, event string, data any) bool {
	raw, ok := h.encode(event, data)
	if !ok {
		return false
	}

	for attempt := 0; attempt < emitAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(emitRetryDelay)
		}

		targets := h.userTargets(userID, event)
		if len(targets) == 0 {
			continue
		}

		delivered := 0
		for _, s := range targets {
			if s.Enqueue(raw) {
				delivered++
			}
		}
		if delivered > 0 {
			return true
		}
	}

	log.Debug().Str("user", userID).Str("event", event).Msg("emit to user reached no session")
	return false
}

// userTargets collects the user's sessions, deduplicated by session id.
func (h *Hub) userTargets(userID, event string) map[string]*Session {
	targets := make(map[string]*Session)

	h.mu.RLock()
	for id, s := range h.topics[application.UserTopic(userID)] {
		targets[id] = s
	}
	if event == application.EventNotificationReceived || event == application.EventNotificationCountUpdated {
		for id, s := range h.topics[application.NotificationsTopic(userID)] {
			targets[id] = s
		}
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		for _, s := range h.registry.SessionsOf(userID) {
			targets[s.ID] = s
		}
	}
	return targets
}

// EmitToTopic delivers the event to every session joined to the topic.
func (h *Hub) EmitToTopic(topic, event string, data any) bool {
	raw, ok := h.encode(event, data)
	if !ok {
		return false
	}

	h.mu.RLock()
	members := make([]*Session, 0, len(h.topics[topic]))
	for _, s := range h.topics[topic] {
		members = append(members, s)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, s := range members {
		if s.Enqueue(raw) {
			delivered++
		}
	}
	return delivered > 0
}

// BroadcastAll delivers the event to every connected session.
func (h *Hub) BroadcastAll(event string, data any) bool {
	raw, ok := h.encode(event, data)
	if !ok {
		return false
	}

	delivered := 0
	for _, s := range h.registry.AllSessions() {
		if s.Enqueue(raw) {
			delivered++
		}
	}
	return delivered > 0
}

func (h *Hub) encode(event string, data any) ([]byte, bool) {
	raw, err := json.Marshal(pushFrame{Event: event, Data: data})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("marshal ws event")
		return nil, false
	}
	return raw, true
}
