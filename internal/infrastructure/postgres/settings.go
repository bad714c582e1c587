package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidmesh/realtime/internal/domain"
)

// SettingsRepository is the PostgreSQL implementation of
// domain.SettingsRepository. Only explicit per-type choices are stored;
// absent rows mean enabled.
type SettingsRepository struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository creates a new postgres SettingsRepository.
func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

// Get returns the user's stored preferences. Users with no rows get an
// empty settings object.
func (r *SettingsRepository) Get(ctx context.Context, userID string) (*domain.NotificationSettings, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT type, enabled FROM notification_settings WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	defer rows.Close()

	settings := &domain.NotificationSettings{
		UserID:   userID,
		Settings: make(map[domain.NotificationType]bool),
	}
	for rows.Next() {
		var typ string
		var enabled bool
		if err := rows.Scan(&typ, &enabled); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings.Settings[domain.NotificationType(typ)] = enabled
	}
	return settings, nil
}

// Update upserts the given per-type preferences in a single statement and
// returns the full settings afterwards.
func (r *SettingsRepository) Update(ctx context.Context, userID string, settings map[domain.NotificationType]bool) (*domain.NotificationSettings, error) {
	if len(settings) == 0 {
		return r.Get(ctx, userID)
	}

	// Build VALUES list: ($1,$2,$3), ($4,$5,$6) etc.
	const paramsPerRow = 3
	args := make([]any, 0, len(settings)*paramsPerRow)
	valuesClauses := make([]string, 0, len(settings))

	i := 0
	for typ, enabled := range settings {
		base := i * paramsPerRow
		valuesClauses = append(valuesClauses, fmt.Sprintf("($%d,$%d,$%d)", base+1, base+2, base+3))
		args = append(args, userID, string(typ), enabled)
		i++
	}

	query := "INSERT INTO notification_settings (user_id, type, enabled) VALUES " +
		joinStrings(valuesClauses, ",") +
		" ON CONFLICT (user_id, type) DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = NOW()"

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("update settings: %w", err)
	}

	return r.Get(ctx, userID)
}

// joinStrings joins a slice of strings with a separator (avoids importing strings package).
func joinStrings(parts []string, sep string) string {
	if len(parts) == 0 {
		return ""
	}
	result := parts[0]
	for _, p := range parts[1:] {
		result += sep + p
	}
	return result
}
