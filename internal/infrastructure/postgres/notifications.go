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

// NotificationRepository is the PostgreSQL implementation of
// domain.NotificationRepository.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository creates a new postgres NotificationRepository.
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// Create inserts a new notification record.
func (r *NotificationRepository) Create(ctx context.Context, input domain.CreateNotificationInput) (*domain.Notification, error) {
	var causerID, subjectID, sourceEventID *string
	if input.CauserID != "" {
		causerID = &input.CauserID
	}
	if input.SubjectID != "" {
		subjectID = &input.SubjectID
	}
	if input.SourceEventID != "" {
		sourceEventID = &input.SourceEventID
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO notifications (recipient_id, type, message, causer_id, subject_id, source_event_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source_event_id) WHERE source_event_id IS NOT NULL DO NOTHING
		RETURNING id, recipient_id, type, message, causer_id, subject_id, is_read, read_at, created_at, source_event_id
	`, input.RecipientID, string(input.Type), input.Message, causerID, subjectID, sourceEventID)

	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Duplicate source_event_id, idempotent — not an error
			return nil, nil
		}
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return n, nil
}

// List fetches paginated notifications for a recipient, newest first.
func (r *NotificationRepository) List(ctx context.Context, f domain.NotificationFilter) ([]*domain.Notification, error) {
	query := `
		SELECT id, recipient_id, type, message, causer_id, subject_id, is_read, read_at, created_at, source_event_id
		FROM notifications
		WHERE recipient_id = $1
	`
	args := []any{f.RecipientID}
	paramIdx := 2

	if f.IsRead != nil {
		query += fmt.Sprintf(" AND is_read = $%d", paramIdx)
		args = append(args, *f.IsRead)
		paramIdx++
	}
	if f.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", paramIdx)
		args = append(args, string(f.Type))
		paramIdx++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", paramIdx, paramIdx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var results []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, n)
	}
	return results, nil
}

// GetByID fetches a single notification.
func (r *NotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, recipient_id, type, message, causer_id, subject_id, is_read, read_at, created_at, source_event_id
		FROM notifications WHERE id = $1
	`, id)
	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return n, nil
}

// MarkRead marks a single notification as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, id uuid.UUID, recipientID string) error {
	now := time.Now()
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = $1
		WHERE id = $2 AND recipient_id = $3 AND is_read = FALSE
	`, now, id, recipientID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkAllRead marks all unread notifications for a recipient as read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	now := time.Now()
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = $1
		WHERE recipient_id = $2 AND is_read = FALSE
	`, now, recipientID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes a notification belonging to the recipient.
func (r *NotificationRepository) Delete(ctx context.Context, id uuid.UUID, recipientID string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM notifications WHERE id = $1 AND recipient_id = $2
	`, id, recipientID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountUnread returns the count of unread notifications for a recipient.
func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND is_read = FALSE`,
		recipientID,
	).Scan(&count)
	return count, err
}

// PurgeOlderThan deletes notifications older than the given number of days.
func (r *NotificationRepository) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM notifications WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scannable lets scan helpers accept both pgx.Row and pgx.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanNotification(row scannable) (*domain.Notification, error) {
	var n domain.Notification
	var causerID, subjectID, sourceEventID *string

	err := row.Scan(
		&n.ID, &n.RecipientID, &n.Type, &n.Message,
		&causerID, &subjectID, &n.IsRead, &n.ReadAt, &n.CreatedAt, &sourceEventID,
	)
	if err != nil {
		return nil, fmt.Errorf("scan notification: %w", err)
	}
	if causerID != nil {
		n.CauserID = *causerID
	}
	if subjectID != nil {
		n.SubjectID = *subjectID
	}
	if sourceEventID != nil {
		n.SourceEventID = *sourceEventID
	}
	return &n, nil
}
