package application

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vidmesh/realtime/internal/domain"
)

// In-memory repository and emitter doubles shared by the delivery and relay
// tests. They mimic the postgres semantics the engine relies on: duplicate
// source events create nothing, zero-effect updates return ErrNotFound, and
// reads hand out copies the way a row scan would.

// ─── Notifications ───────────────────────────────────────────────────────────

type fakeNotificationRepo struct {
	mu         sync.Mutex
	created    []*domain.Notification
	bySource   map[string]bool
	unread     int64
	lastFilter domain.NotificationFilter
	createErr  error
}

func (f *fakeNotificationRepo) Create(_ context.Context, input domain.CreateNotificationInput) (*domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if input.SourceEventID != "" {
		if f.bySource == nil {
			f.bySource = make(map[string]bool)
		}
		if f.bySource[input.SourceEventID] {
			return nil, nil
		}
		f.bySource[input.SourceEventID] = true
	}
	n := &domain.Notification{
		ID:            uuid.New(),
		RecipientID:   input.RecipientID,
		Type:          input.Type,
		Message:       input.Message,
		CauserID:      input.CauserID,
		SubjectID:     input.SubjectID,
		CreatedAt:     time.Now(),
		SourceEventID: input.SourceEventID,
	}
	f.created = append(f.created, n)
	f.unread++
	return n, nil
}

func (f *fakeNotificationRepo) List(_ context.Context, filter domain.NotificationFilter) ([]*domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	return f.created, nil
}

func (f *fakeNotificationRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.created {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeNotificationRepo) MarkRead(_ context.Context, id uuid.UUID, recipientID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.created {
		if n.ID == id && n.RecipientID == recipientID && !n.IsRead {
			n.IsRead = true
			f.unread--
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeNotificationRepo) MarkAllRead(_ context.Context, recipientID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, n := range f.created {
		if n.RecipientID == recipientID && !n.IsRead {
			n.IsRead = true
			f.unread--
			count++
		}
	}
	return count, nil
}

func (f *fakeNotificationRepo) Delete(_ context.Context, id uuid.UUID, recipientID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.created {
		if n.ID == id && n.RecipientID == recipientID {
			if !n.IsRead {
				f.unread--
			}
			f.created = append(f.created[:i], f.created[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeNotificationRepo) CountUnread(_ context.Context, _ string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unread, nil
}

func (f *fakeNotificationRepo) PurgeOlderThan(_ context.Context, _ int) (int64, error) {
	return 0, nil
}

func (f *fakeNotificationRepo) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

// ─── Settings ────────────────────────────────────────────────────────────────

type fakeSettingsRepo struct {
	mu     sync.Mutex
	byUser map[string]map[domain.NotificationType]bool
	getErr error
}

func (f *fakeSettingsRepo) Get(_ context.Context, userID string) (*domain.NotificationSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &domain.NotificationSettings{UserID: userID, Settings: f.byUser[userID]}, nil
}

func (f *fakeSettingsRepo) Update(_ context.Context, userID string, settings map[domain.NotificationType]bool) (*domain.NotificationSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byUser == nil {
		f.byUser = make(map[string]map[domain.NotificationType]bool)
	}
	stored := f.byUser[userID]
	if stored == nil {
		stored = make(map[domain.NotificationType]bool)
		f.byUser[userID] = stored
	}
	for k, v := range settings {
		stored[k] = v
	}
	return &domain.NotificationSettings{UserID: userID, Settings: stored}, nil
}

func (f *fakeSettingsRepo) disable(userID string, t domain.NotificationType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byUser == nil {
		f.byUser = make(map[string]map[domain.NotificationType]bool)
	}
	if f.byUser[userID] == nil {
		f.byUser[userID] = make(map[domain.NotificationType]bool)
	}
	f.byUser[userID][t] = false
}

// ─── Conversations ───────────────────────────────────────────────────────────

type fakeConversationRepo struct {
	mu         sync.Mutex
	byID       map[uuid.UUID]*domain.Conversation
	summaryErr error
}

func (f *fakeConversationRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	out := *c
	return &out, nil
}

func (f *fakeConversationRepo) FindOrCreate(_ context.Context, userA, userB string) (*domain.Conversation, error) {
	a, b := domain.OrderPair(userA, userB)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.byID {
		if c.ParticipantA == a && c.ParticipantB == b {
			out := *c
			return &out, nil
		}
	}
	if f.byID == nil {
		f.byID = make(map[uuid.UUID]*domain.Conversation)
	}
	now := time.Now()
	c := &domain.Conversation{ID: uuid.New(), ParticipantA: a, ParticipantB: b, CreatedAt: now, UpdatedAt: now}
	f.byID[c.ID] = c
	out := *c
	return &out, nil
}

func (f *fakeConversationRepo) UpdateSummary(_ context.Context, id uuid.UUID, msg *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.summaryErr != nil {
		return f.summaryErr
	}
	c, ok := f.byID[id]
	if !ok {
		return domain.ErrConversationNotFound
	}
	c.LastMessageID = &msg.ID
	c.LastMessageContent = msg.Content
	c.LastMessageSenderID = msg.SenderID
	c.LastMessageAt = &msg.CreatedAt
	c.UpdatedAt = msg.CreatedAt
	return nil
}

func (f *fakeConversationRepo) ListByUser(_ context.Context, userID string, _, _ int) ([]*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Conversation
	for _, c := range f.byID {
		if c.HasParticipant(userID) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeConversationRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

// ─── Messages ────────────────────────────────────────────────────────────────

type fakeMessageRepo struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*domain.Message
}

func (f *fakeMessageRepo) Create(_ context.Context, in domain.CreateMessageInput) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byID == nil {
		f.byID = make(map[uuid.UUID]*domain.Message)
	}
	m := &domain.Message{
		ID:             uuid.New(),
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		ReceiverID:     in.ReceiverID,
		Content:        in.Content,
		Attachment:     in.Attachment,
		IsDelivered:    true,
		CreatedAt:      time.Now(),
	}
	f.byID[m.ID] = m
	out := *m
	return &out, nil
}

func (f *fakeMessageRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *m
	return &out, nil
}

func (f *fakeMessageRepo) MarkRead(_ context.Context, id uuid.UUID, receiverID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok || m.ReceiverID != receiverID || m.IsRead {
		return domain.ErrNotFound
	}
	m.IsRead = true
	return nil
}

func (f *fakeMessageRepo) MarkConversationRead(_ context.Context, conversationID uuid.UUID, readerID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, m := range f.byID {
		if m.ConversationID == conversationID && m.ReceiverID == readerID && !m.IsRead {
			m.IsRead = true
			count++
		}
	}
	return count, nil
}

func (f *fakeMessageRepo) ListByConversation(_ context.Context, conversationID uuid.UUID, _, _ int) ([]*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Message
	for _, m := range f.byID {
		if m.ConversationID == conversationID {
			mp := *m
			out = append(out, &mp)
		}
	}
	return out, nil
}

// ─── Users ───────────────────────────────────────────────────────────────────

type fakeUserRepo struct {
	mu   sync.Mutex
	byID map[string]*domain.User
}

func (f *fakeUserRepo) add(u *domain.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byID == nil {
		f.byID = make(map[string]*domain.User)
	}
	f.byID[u.ID] = u
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Username == username {
			out := *u
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUserRepo) SetPresence(_ context.Context, userID string, online bool, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[userID]; ok {
		u.IsOnline = online
	}
	return nil
}

// ─── Emitter and presence ────────────────────────────────────────────────────

type emitCall struct {
	target string
	event  string
	data   any
}

// fakeEmitter records emits; emitOK is the result every call reports back.
type fakeEmitter struct {
	mu         sync.Mutex
	userCalls  []emitCall
	topicCalls []emitCall
	emitOK     bool
}

func (f *fakeEmitter) EmitToUser(userID, event string, data any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userCalls = append(f.userCalls, emitCall{target: userID, event: event, data: data})
	return f.emitOK
}

func (f *fakeEmitter) EmitToTopic(topic, event string, data any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topicCalls = append(f.topicCalls, emitCall{target: topic, event: event, data: data})
	return f.emitOK
}

func (f *fakeEmitter) BroadcastAll(event string, data any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topicCalls = append(f.topicCalls, emitCall{target: "*", event: event, data: data})
	return f.emitOK
}

func (f *fakeEmitter) setOK(ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitOK = ok
}

func (f *fakeEmitter) userEvents(event string) []emitCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emitCall
	for _, c := range f.userCalls {
		if c.event == event {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeEmitter) topicEvents(event string) []emitCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emitCall
	for _, c := range f.topicCalls {
		if c.event == event {
			out = append(out, c)
		}
	}
	return out
}

type fakePresence struct {
	mu     sync.Mutex
	online map[string]int
}

func (f *fakePresence) IsOnline(userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online[userID] > 0
}

func (f *fakePresence) SessionCount(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online[userID]
}

func (f *fakePresence) setOnline(userID string, sessions int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.online == nil {
		f.online = make(map[string]int)
	}
	f.online[userID] = sessions
}
