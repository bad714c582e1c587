package application

import "github.com/google/uuid"

// Server-pushed event names. The realtime gateway forwards these to browser
// clients; Kafka handlers and services never invent names outside this list.
const (
	EventMessageReceived          = "message_received"
	EventConversationUpdated      = "conversation_updated"
	EventMessageRead              = "message_read"
	EventConversationRead         = "conversation_read"
	EventTypingStart              = "typing_start"
	EventTypingStop               = "typing_stop"
	EventNotificationReceived     = "notification_received"
	EventNotificationCountUpdated = "notification_count_updated"
	EventUserOnline               = "user_online"
	EventUserOffline              = "user_offline"
)

// Topic names group sessions for targeted emits. Every session joins its
// user and notifications topics during connection setup; conversation topics
// are joined on demand.

func UserTopic(userID string) string {
	return "user:" + userID
}

func NotificationsTopic(userID string) string {
	return "notifications:" + userID
}

func ConversationTopic(id uuid.UUID) string {
	return "conversation:" + id.String()
}

// Emitter pushes events to connected sessions. Implementation lives in
// transport/ws; a no-op or recording implementation can be used for testing.
type Emitter interface {
	// EmitToUser delivers the event to every session of the user, returning
	// false when no session was reachable.
	EmitToUser(userID, event string, data any) bool

	// EmitToTopic delivers the event to every session joined to the topic.
	EmitToTopic(topic, event string, data any) bool

	// BroadcastAll delivers the event to every connected session.
	BroadcastAll(event string, data any) bool
}

// Presence answers online questions from the connection registry, the single
// authority on who is connected to this process.
type Presence interface {
	IsOnline(userID string) bool
	SessionCount(userID string) int
}
