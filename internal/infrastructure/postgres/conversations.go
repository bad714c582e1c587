package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidmesh/realtime/internal/domain"
)

// ConversationRepository is the PostgreSQL implementation of
// domain.ConversationRepository.
type ConversationRepository struct {
	pool *pgxpool.Pool
}

// NewConversationRepository creates a new postgres ConversationRepository.
func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

// GetByID fetches a conversation by its ID.
func (r *ConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, participant_a, participant_b, last_message_id, last_message_content,
		       last_message_sender_id, last_message_at, created_at, updated_at
		FROM conversations WHERE id = $1
	`, id)
	c, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	return c, nil
}

// FindOrCreate returns the direct conversation between the two users,
// creating it if absent. The unique index on the ordered participant pair
// makes concurrent creates for the same pair converge on one row: the loser
// of the insert race hits the conflict, gets no row back, and reads the
// winner's row instead.
func (r *ConversationRepository) FindOrCreate(ctx context.Context, userA, userB string) (*domain.Conversation, error) {
	a, b := domain.OrderPair(userA, userB)

	row := r.pool.QueryRow(ctx, `
		INSERT INTO conversations (participant_a, participant_b)
		VALUES ($1, $2)
		ON CONFLICT (participant_a, participant_b) DO NOTHING
		RETURNING id, participant_a, participant_b, last_message_id, last_message_content,
		          last_message_sender_id, last_message_at, created_at, updated_at
	`, a, b)

	c, err := scanConversation(row)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	row = r.pool.QueryRow(ctx, `
		SELECT id, participant_a, participant_b, last_message_id, last_message_content,
		       last_message_sender_id, last_message_at, created_at, updated_at
		FROM conversations WHERE participant_a = $1 AND participant_b = $2
	`, a, b)
	c, err = scanConversation(row)
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	return c, nil
}

// UpdateSummary writes the last-message summary after a message is persisted.
func (r *ConversationRepository) UpdateSummary(ctx context.Context, id uuid.UUID, msg *domain.Message) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE conversations
		SET last_message_id = $1, last_message_content = $2, last_message_sender_id = $3,
		    last_message_at = $4, updated_at = $5
		WHERE id = $6
	`, msg.ID, msg.Content, msg.SenderID, msg.CreatedAt, time.Now(), id)
	if err != nil {
		return fmt.Errorf("update conversation summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

// ListByUser returns the user's conversations, most recently active first.
func (r *ConversationRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Conversation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, participant_a, participant_b, last_message_id, last_message_content,
		       last_message_sender_id, last_message_at, created_at, updated_at
		FROM conversations
		WHERE participant_a = $1 OR participant_b = $1
		ORDER BY updated_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var results []*domain.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, nil
}

func scanConversation(row scannable) (*domain.Conversation, error) {
	var c domain.Conversation
	var lastContent, lastSender *string

	err := row.Scan(
		&c.ID, &c.ParticipantA, &c.ParticipantB, &c.LastMessageID, &lastContent,
		&lastSender, &c.LastMessageAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	if lastContent != nil {
		c.LastMessageContent = *lastContent
	}
	if lastSender != nil {
		c.LastMessageSenderID = *lastSender
	}
	return &c, nil
}
