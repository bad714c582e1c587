package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType identifies the platform action that produced the notification.
type NotificationType string

const (
	TypeFollow  NotificationType = "follow"
	TypeMessage NotificationType = "message"
	TypeLike    NotificationType = "like"
	TypeComment NotificationType = "comment"
	TypeMention NotificationType = "mention"
	TypeShare   NotificationType = "share"
	TypeReply   NotificationType = "reply"
	TypeSystem  NotificationType = "system"
)

// Valid reports whether t is one of the known notification types.
func (t NotificationType) Valid() bool {
	switch t {
	case TypeFollow, TypeMessage, TypeLike, TypeComment, TypeMention, TypeShare, TypeReply, TypeSystem:
		return true
	}
	return false
}

// Priority reports whether notifications of this type are delivered
// unconditionally, without consulting the recipient's online status first.
func (t NotificationType) Priority() bool {
	return t == TypeFollow || t == TypeMessage
}

// Notification is the core domain entity.
type Notification struct {
	ID          uuid.UUID        `json:"id"`
	RecipientID string           `json:"recipient_id"`
	Type        NotificationType `json:"type"`
	Message     string           `json:"message"`
	// CauserID is the user whose action produced the notification. Empty for
	// system notifications.
	CauserID string `json:"causer_id,omitempty"`
	// SubjectID points at the entity the notification is about (video ID,
	// comment ID, message ID). Empty when there is no subject.
	SubjectID     string     `json:"subject_id,omitempty"`
	IsRead        bool       `json:"is_read"`
	ReadAt        *time.Time `json:"read_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	SourceEventID string     `json:"source_event_id,omitempty"`
}

// NotificationFilter holds query parameters for listing notifications.
type NotificationFilter struct {
	RecipientID string
	IsRead      *bool
	Type        NotificationType
	Limit       int
	Offset      int
}

// CreateNotificationInput is what producers (message relay, Kafka handlers)
// hand to the delivery engine and what the engine hands to the repository.
type CreateNotificationInput struct {
	RecipientID   string
	Type          NotificationType
	Message       string
	CauserID      string
	SubjectID     string
	SourceEventID string
}

// NotificationSettings holds a user's per-type delivery preferences. Types
// absent from the map are enabled; users only store explicit opt-outs and
// re-enables.
type NotificationSettings struct {
	UserID   string                    `json:"user_id"`
	Settings map[NotificationType]bool `json:"settings"`
}

// Enabled reports whether the user accepts notifications of type t.
func (s *NotificationSettings) Enabled(t NotificationType) bool {
	if s == nil || s.Settings == nil {
		return true
	}
	enabled, ok := s.Settings[t]
	if !ok {
		return true
	}
	return enabled
}
