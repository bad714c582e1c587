package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NotificationRepository defines the port for notification persistence.
// Implementations live in infrastructure/postgres.
type NotificationRepository interface {
	// Create stores a new notification and returns the saved entity.
	// When input carries a SourceEventID that was already stored, Create
	// returns (nil, nil) and persists nothing.
	Create(ctx context.Context, input CreateNotificationInput) (*Notification, error)

	// List fetches notifications matching the given filter, newest first.
	List(ctx context.Context, filter NotificationFilter) ([]*Notification, error)

	// GetByID fetches a single notification by its ID.
	GetByID(ctx context.Context, id uuid.UUID) (*Notification, error)

	// MarkRead marks a single notification belonging to recipientID as read.
	MarkRead(ctx context.Context, id uuid.UUID, recipientID string) error

	// MarkAllRead marks all unread notifications for a recipient as read and
	// returns the number of rows updated.
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)

	// Delete removes a notification belonging to recipientID.
	Delete(ctx context.Context, id uuid.UUID, recipientID string) error

	// CountUnread returns the number of unread notifications for a recipient.
	CountUnread(ctx context.Context, recipientID string) (int64, error)

	// PurgeOlderThan deletes notifications older than the given number of
	// days (TTL cleanup).
	PurgeOlderThan(ctx context.Context, days int) (int64, error)
}

// SettingsRepository stores per-user notification preferences.
type SettingsRepository interface {
	// Get returns the user's settings. Users with no stored rows get an
	// empty (all-enabled) settings object, not an error.
	Get(ctx context.Context, userID string) (*NotificationSettings, error)

	// Update upserts the given per-type preferences, leaving types not
	// present in settings untouched.
	Update(ctx context.Context, userID string, settings map[NotificationType]bool) (*NotificationSettings, error)
}

// ConversationRepository stores direct 1:1 conversation threads.
type ConversationRepository interface {
	// GetByID fetches a conversation by its ID, ErrConversationNotFound when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*Conversation, error)

	// FindOrCreate returns the conversation between the two users, creating
	// it if absent. The participant pair is unique at the storage level, so
	// concurrent calls for the same pair converge on one row.
	FindOrCreate(ctx context.Context, userA, userB string) (*Conversation, error)

	// UpdateSummary writes the last-message summary fields after a message
	// is persisted.
	UpdateSummary(ctx context.Context, id uuid.UUID, msg *Message) error

	// ListByUser returns the user's conversations, most recently active first.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Conversation, error)
}

// MessageRepository stores direct messages.
type MessageRepository interface {
	// Create persists a message. Messages are created delivered; read state
	// changes later through the mark-read operations.
	Create(ctx context.Context, input CreateMessageInput) (*Message, error)

	// GetByID fetches a message by its ID, ErrNotFound when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)

	// MarkRead marks a single message as read, scoped to its receiver.
	MarkRead(ctx context.Context, id uuid.UUID, receiverID string) error

	// MarkConversationRead marks every unread message addressed to readerID
	// in the conversation as read and returns the number of rows updated.
	MarkConversationRead(ctx context.Context, conversationID uuid.UUID, readerID string) (int64, error)

	// ListByConversation returns messages in the conversation, newest first.
	ListByConversation(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*Message, error)
}

// UserRepository resolves platform users and records presence.
type UserRepository interface {
	// GetByID fetches a user by ID, ErrNotFound when absent.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByUsername fetches a user by username, ErrNotFound when absent.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// SetPresence records the user's online flag and last-seen timestamp.
	// Presence writes are advisory; callers treat failures as non-fatal.
	SetPresence(ctx context.Context, userID string, online bool, at time.Time) error
}
