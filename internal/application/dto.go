package application

import (
	"github.com/google/uuid"

	"github.com/vidmesh/realtime/internal/domain"
)

// SendMessageInput is the validated-at-the-edge request for MessageRelay.
// Either ConversationID or ReceiverID must be set; with both, the
// conversation wins and the receiver is derived from it.
type SendMessageInput struct {
	SenderID       string
	SenderUsername string
	ConversationID *uuid.UUID
	ReceiverID     string
	Content        string
	Attachment     string
}

// SendMessageResult is the ack returned to the sending client.
type SendMessageResult struct {
	Message          *domain.Message      `json:"message"`
	Conversation     *domain.Conversation `json:"conversation"`
	ReceiverOnline   bool                 `json:"receiver_online"`
	ReceiverSessions int                  `json:"receiver_sessions"`
}

// MessageReadPayload rides on message_read events to the sender.
type MessageReadPayload struct {
	MessageID      uuid.UUID `json:"message_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	ReaderID       string    `json:"reader_id"`
}

// ConversationReadPayload rides on conversation_read events to the peer.
type ConversationReadPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	ReaderID       string    `json:"reader_id"`
	MessagesRead   int64     `json:"messages_read"`
}

// UnreadCountPayload rides on notification_count_updated events.
type UnreadCountPayload struct {
	UnreadCount int64 `json:"unread_count"`
}

// NotificationInput is the DTO used by Kafka handlers to create notifications.
// This is a type alias for domain.CreateNotificationInput for convenience.
type NotificationInput = domain.CreateNotificationInput
