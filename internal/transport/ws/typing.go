package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vidmesh/realtime/internal/application"
)

// TypingPayload rides on typing_start and typing_stop events.
type TypingPayload struct {
	UserID         string    `json:"user_id"`
	Username       string    `json:"username"`
	ConversationID uuid.UUID `json:"conversation_id"`
}

type typingKey struct {
	userID         string
	conversationID uuid.UUID
}

type typingState struct {
	timer    *time.Timer
	gen      int
	username string
	peers    []string
}

// TypingManager tracks who is typing where. An indicator lives until the
// typist stops, disconnects, or the timeout passes without a refresh;
// whichever happens, peers get exactly one typing_stop per indicator.
type TypingManager struct {
	emitter application.Emitter
	timeout time.Duration

	mu     sync.Mutex
	states map[typingKey]*typingState
}

// NewTypingManager creates a TypingManager emitting through the given emitter.
func NewTypingManager(emitter application.Emitter, timeout time.Duration) *TypingManager {
	return &TypingManager{
		emitter: emitter,
		timeout: timeout,
		states:  make(map[typingKey]*typingState),
	}
}

// Start raises or refreshes the indicator and relays typing_start to the
// peers. The peer set is captured here so expiry can notify them without
// another conversation lookup.
func (m *TypingManager) Start(userID, username string, conversationID uuid.UUID, peers []string) {
	key := typingKey{userID: userID, conversationID: conversationID}

	m.mu.Lock()
	st, ok := m.states[key]
	if !ok {
		st = &typingState{username: username, peers: peers}
		m.states[key] = st
	} else {
		st.timer.Stop()
		st.peers = peers
	}
	// The generation guards against a stale AfterFunc that fired while we
	// held the lock: its callback sees a newer gen and does nothing.
	st.gen++
	gen := st.gen
	st.timer = time.AfterFunc(m.timeout, func() { m.expire(key, gen) })
	m.mu.Unlock()

	m.relay(application.EventTypingStart, key, username, peers)
}

// Stop lowers the indicator and relays typing_stop. Unknown indicators are
// ignored, so a stop after expiry stays silent.
func (m *TypingManager) Stop(userID string, conversationID uuid.UUID) {
	key := typingKey{userID: userID, conversationID: conversationID}

	m.mu.Lock()
	st, ok := m.states[key]
	if !ok {
		m.mu.Unlock()
		return
	}
	st.timer.Stop()
	delete(m.states, key)
	username, peers := st.username, st.peers
	m.mu.Unlock()

	m.relay(application.EventTypingStop, key, username, peers)
}

// DropUser force-stops every indicator of a user on disconnect. Peers still
// get their typing_stop events.
func (m *TypingManager) DropUser(userID string) {
	type dropped struct {
		key      typingKey
		username string
		peers    []string
	}

	m.mu.Lock()
	var drops []dropped
	for key, st := range m.states {
		if key.userID != userID {
			continue
		}
		st.timer.Stop()
		delete(m.states, key)
		drops = append(drops, dropped{key: key, username: st.username, peers: st.peers})
	}
	m.mu.Unlock()

	for _, d := range drops {
		m.relay(application.EventTypingStop, d.key, d.username, d.peers)
	}
}

// Active reports whether the indicator is currently raised.
func (m *TypingManager) Active(userID string, conversationID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.states[typingKey{userID: userID, conversationID: conversationID}]
	return ok
}

func (m *TypingManager) expire(key typingKey, gen int) {
	m.mu.Lock()
	st, ok := m.states[key]
	if !ok || st.gen != gen {
		m.mu.Unlock()
		return
	}
	delete(m.states, key)
	username, peers := st.username, st.peers
	m.mu.Unlock()

	m.relay(application.EventTypingStop, key, username, peers)
}

// relay pushes the typing event at each peer's user topic. Typing is
// ephemeral, so offline peers are simply skipped.
func (m *TypingManager) relay(event string, key typingKey, username string, peers []string) {
	payload := TypingPayload{UserID: key.userID, Username: username, ConversationID: key.conversationID}
	for _, peer := range peers {
		m.emitter.EmitToTopic(application.UserTopic(peer), event, payload)
	}
}
