package domain

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is a direct thread between exactly two users. Participants are
// stored in canonical order (ParticipantA < ParticipantB) so the pair maps to
// a single row regardless of who opened the thread.
type Conversation struct {
	ID           uuid.UUID `json:"id"`
	ParticipantA string    `json:"participant_a"`
	ParticipantB string    `json:"participant_b"`
	// Denormalized summary of the newest message, nil/zero until the first
	// message lands.
	LastMessageID       *uuid.UUID `json:"last_message_id,omitempty"`
	LastMessageContent  string     `json:"last_message_content,omitempty"`
	LastMessageSenderID string     `json:"last_message_sender_id,omitempty"`
	LastMessageAt       *time.Time `json:"last_message_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// OrderPair returns the two user IDs in canonical storage order.
func OrderPair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

// HasParticipant reports whether userID belongs to the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

// Peer returns the other participant relative to userID. Callers must have
// checked HasParticipant first.
func (c *Conversation) Peer(userID string) string {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// Message is a single direct message inside a conversation.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	ReceiverID     string    `json:"receiver_id"`
	Content        string    `json:"content"`
	Attachment     string    `json:"attachment,omitempty"`
	IsRead         bool      `json:"is_read"`
	IsDelivered    bool      `json:"is_delivered"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateMessageInput is the validated payload the relay hands to the
// message repository.
type CreateMessageInput struct {
	ConversationID uuid.UUID
	SenderID       string
	ReceiverID     string
	Content        string
	Attachment     string
}
