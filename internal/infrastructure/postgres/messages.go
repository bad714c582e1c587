package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidmesh/realtime/internal/domain"
)

// MessageRepository is the PostgreSQL implementation of domain.MessageRepository.
type MessageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository creates a new postgres MessageRepository.
func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// Create persists a message. Messages are created delivered: the relay only
// persists after the conversation is resolved, and delivery state tracks the
// row, not the socket.
func (r *MessageRepository) Create(ctx context.Context, input domain.CreateMessageInput) (*domain.Message, error) {
	var attachment *string
	if input.Attachment != "" {
		attachment = &input.Attachment
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, sender_id, receiver_id, content, attachment, is_delivered)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING id, conversation_id, sender_id, receiver_id, content, attachment, is_read, is_delivered, created_at
	`, input.ConversationID, input.SenderID, input.ReceiverID, input.Content, attachment)

	m, err := scanMessage(row)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

// GetByID fetches a message by its ID.
func (r *MessageRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, conversation_id, sender_id, receiver_id, content, attachment, is_read, is_delivered, created_at
		FROM messages WHERE id = $1
	`, id)
	m, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

// MarkRead marks a single message as read, scoped to its receiver.
func (r *MessageRepository) MarkRead(ctx context.Context, id uuid.UUID, receiverID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE messages SET is_read = TRUE
		WHERE id = $1 AND receiver_id = $2 AND is_read = FALSE
	`, id, receiverID)
	if err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkConversationRead marks every unread message addressed to readerID in
// the conversation as read.
func (r *MessageRepository) MarkConversationRead(ctx context.Context, conversationID uuid.UUID, readerID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE messages SET is_read = TRUE
		WHERE conversation_id = $1 AND receiver_id = $2 AND is_read = FALSE
	`, conversationID, readerID)
	if err != nil {
		return 0, fmt.Errorf("mark conversation read: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListByConversation returns messages in the conversation, newest first.
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*domain.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, conversation_id, sender_id, receiver_id, content, attachment, is_read, is_delivered, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var results []*domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, nil
}

func scanMessage(row scannable) (*domain.Message, error) {
	var m domain.Message
	var attachment *string

	err := row.Scan(
		&m.ID, &m.ConversationID, &m.SenderID, &m.ReceiverID, &m.Content,
		&attachment, &m.IsRead, &m.IsDelivered, &m.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	if attachment != nil {
		m.Attachment = *attachment
	}
	return &m, nil
}
