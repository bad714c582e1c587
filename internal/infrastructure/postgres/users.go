package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidmesh/realtime/internal/domain"
)

// UserRepository is the PostgreSQL implementation of domain.UserRepository.
// User rows are provisioned by the accounts service; this side only reads
// them and writes presence columns.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new postgres UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByID fetches a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, is_online, last_seen_at, created_at
		FROM users WHERE id = $1
	`, id)
	return scanUser(row)
}

// GetByUsername fetches a user by username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, is_online, last_seen_at, created_at
		FROM users WHERE username = $1
	`, username)
	return scanUser(row)
}

// SetPresence records the user's online flag and last-seen timestamp.
func (r *UserRepository) SetPresence(ctx context.Context, userID string, online bool, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET is_online = $1, last_seen_at = $2 WHERE id = $3
	`, online, at, userID)
	if err != nil {
		return fmt.Errorf("set presence: %w", err)
	}
	return nil
}

func scanUser(row scannable) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.IsOnline, &u.LastSeenAt, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
