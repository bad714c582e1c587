package application

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vidmesh/realtime/internal/domain"
)

// DeliveryStats exposes delivery counters for the health endpoint.
type DeliveryStats struct {
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Queued     int64 `json:"queued"`
	Retried    int64 `json:"retried"`
	Dropped    int64 `json:"dropped"`
	QueueDepth int   `json:"queue_depth"`
}

type queueKey struct {
	recipientID    string
	notificationID uuid.UUID
}

type queuedDelivery struct {
	notification  *domain.Notification
	attempts      int
	lastAttemptAt time.Time
	queuedAt      time.Time
}

// DeliveryEngine owns the notification lifecycle: preference check, persist,
// realtime delivery, and an in-memory retry queue for recipients that were
// unreachable. Rows always outlive the queue; a dropped delivery only means
// the recipient fetches the notification instead of receiving a push.
type DeliveryEngine struct {
	notifications domain.NotificationRepository
	settings      domain.SettingsRepository
	emitter       Emitter
	presence      Presence

	retryDelay time.Duration
	maxRetries int

	mu    sync.Mutex
	queue map[queueKey]*queuedDelivery

	tasks chan domain.CreateNotificationInput

	sent    atomic.Int64
	failed  atomic.Int64
	queued  atomic.Int64
	retried atomic.Int64
	dropped atomic.Int64
}

// NewDeliveryEngine creates a DeliveryEngine. Run must be started for the
// retry queue and async sends to make progress.
func NewDeliveryEngine(
	notifications domain.NotificationRepository,
	settings domain.SettingsRepository,
	emitter Emitter,
	presence Presence,
	retryDelay time.Duration,
	maxRetries int,
	queueSize int,
) *DeliveryEngine {
	return &DeliveryEngine{
		notifications: notifications,
		settings:      settings,
		emitter:       emitter,
		presence:      presence,
		retryDelay:    retryDelay,
		maxRetries:    maxRetries,
		queue:         make(map[queueKey]*queuedDelivery),
		tasks:         make(chan domain.CreateNotificationInput, queueSize),
	}
}

// Send persists and delivers one notification. Recipients that disabled the
// type get nothing persisted and (nil, nil) back, same as duplicate source
// events. Persistence failure aborts before any delivery attempt.
func (e *DeliveryEngine) Send(ctx context.Context, input domain.CreateNotificationInput) (*domain.Notification, error) {
	settings, err := e.settings.Get(ctx, input.RecipientID)
	if err != nil {
		// Preferences default to enabled when unreadable.
		log.Warn().Err(err).Str("user", input.RecipientID).Msg("settings lookup failed, assuming enabled")
		settings = nil
	}
	if !settings.Enabled(input.Type) {
		log.Debug().
			Str("user", input.RecipientID).
			Str("type", string(input.Type)).
			Msg("notification type disabled by recipient, skipping")
		return nil, nil
	}

	n, err := e.notifications.Create(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	if n == nil {
		// Duplicate source_event_id — idempotent, not an error.
		return nil, nil
	}

	e.deliver(ctx, n)
	return n, nil
}

// NotifyAsync queues a send that must not block or fail the caller, used by
// the message relay where the ack never waits on notification delivery. A
// full task queue drops the send.
func (e *DeliveryEngine) NotifyAsync(input domain.CreateNotificationInput) {
	select {
	case e.tasks <- input:
	default:
		e.dropped.Add(1)
		log.Warn().
			Str("user", input.RecipientID).
			Str("type", string(input.Type)).
			Msg("notification task queue full, dropping")
	}
}

// Run processes async sends and retry sweeps until ctx is canceled, then
// drains the remaining tasks before returning. Single consumer: task sends
// and sweeps never interleave.
func (e *DeliveryEngine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.retryDelay)
	defer ticker.Stop()

	log.Info().
		Dur("retry_delay", e.retryDelay).
		Int("max_retries", e.maxRetries).
		Msg("notification delivery worker started")

	for {
		select {
		case <-ctx.Done():
			e.drainTasks()
			log.Info().Msg("notification delivery worker stopped")
			return
		case input := <-e.tasks:
			if _, err := e.Send(ctx, input); err != nil {
				log.Error().Err(err).Str("user", input.RecipientID).Msg("async notification send failed")
			}
		case now := <-ticker.C:
			e.sweep(ctx, now)
		}
	}
}

func (e *DeliveryEngine) drainTasks() {
	for {
		select {
		case input := <-e.tasks:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if _, err := e.Send(ctx, input); err != nil {
				log.Error().Err(err).Str("user", input.RecipientID).Msg("notification send failed during drain")
			}
			cancel()
		default:
			return
		}
	}
}

// deliver attempts or queues realtime delivery for a persisted notification.
// Priority types are attempted regardless of presence; the rest skip the
// attempt entirely when the recipient is offline.
func (e *DeliveryEngine) deliver(ctx context.Context, n *domain.Notification) {
	if !n.Type.Priority() && !e.presence.IsOnline(n.RecipientID) {
		e.enqueue(n)
		return
	}

	if e.attempt(n) {
		e.sent.Add(1)
		e.pushUnreadCount(ctx, n.RecipientID)
		return
	}

	e.failed.Add(1)
	e.enqueue(n)
}

func (e *DeliveryEngine) attempt(n *domain.Notification) bool {
	return e.emitter.EmitToUser(n.RecipientID, EventNotificationReceived, n)
}

func (e *DeliveryEngine) enqueue(n *domain.Notification) {
	key := queueKey{recipientID: n.RecipientID, notificationID: n.ID}
	now := time.Now()

	e.mu.Lock()
	if _, ok := e.queue[key]; !ok {
		e.queue[key] = &queuedDelivery{notification: n, lastAttemptAt: now, queuedAt: now}
		e.queued.Add(1)
	}
	e.mu.Unlock()

	log.Debug().
		Str("notification", n.ID.String()).
		Str("user", n.RecipientID).
		Msg("notification queued for retry")
}

// sweep advances the retry queue one step: items past the delay get one more
// attempt, items that used up theirs are dropped. The row stays fetchable
// either way.
func (e *DeliveryEngine) sweep(ctx context.Context, now time.Time) {
	e.mu.Lock()
	var due []*queuedDelivery
	for key, item := range e.queue {
		if now.Sub(item.lastAttemptAt) < e.retryDelay {
			continue
		}
		if item.attempts >= e.maxRetries {
			delete(e.queue, key)
			e.dropped.Add(1)
			log.Warn().
				Str("notification", item.notification.ID.String()).
				Str("user", item.notification.RecipientID).
				Int("attempts", item.attempts).
				Msg("delivery retries exhausted, dropping from queue")
			continue
		}
		item.attempts++
		item.lastAttemptAt = now
		due = append(due, item)
	}
	e.mu.Unlock()

	for _, item := range due {
		e.retried.Add(1)
		n := item.notification
		if e.attempt(n) {
			e.mu.Lock()
			delete(e.queue, queueKey{recipientID: n.RecipientID, notificationID: n.ID})
			e.mu.Unlock()
			e.sent.Add(1)
			e.pushUnreadCount(ctx, n.RecipientID)
		} else {
			e.failed.Add(1)
		}
	}
}

// pushUnreadCount tells the recipient's sessions the new badge count.
func (e *DeliveryEngine) pushUnreadCount(ctx context.Context, userID string) {
	count, err := e.notifications.CountUnread(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("unread count lookup failed")
		return
	}
	e.emitter.EmitToUser(userID, EventNotificationCountUpdated, UnreadCountPayload{UnreadCount: count})
}

// Stats returns a snapshot of the delivery counters.
func (e *DeliveryEngine) Stats() DeliveryStats {
	e.mu.Lock()
	depth := len(e.queue)
	e.mu.Unlock()

	return DeliveryStats{
		Sent:       e.sent.Load(),
		Failed:     e.failed.Load(),
		Queued:     e.queued.Load(),
		Retried:    e.retried.Load(),
		Dropped:    e.dropped.Load(),
		QueueDepth: depth,
	}
}

// ─── Query and lifecycle surface ─────────────────────────────────────────────

// List returns paginated notifications for a user.
func (e *DeliveryEngine) List(ctx context.Context, filter domain.NotificationFilter) ([]*domain.Notification, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	return e.notifications.List(ctx, filter)
}

// UnreadCount returns the unread badge count for a user.
func (e *DeliveryEngine) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return e.notifications.CountUnread(ctx, userID)
}

// MarkRead marks a single notification as read and pushes the new count.
func (e *DeliveryEngine) MarkRead(ctx context.Context, id uuid.UUID, userID string) error {
	if err := e.notifications.MarkRead(ctx, id, userID); err != nil {
		return err
	}
	e.pushUnreadCount(ctx, userID)
	return nil
}

// MarkAllRead marks every unread notification as read and pushes the count.
func (e *DeliveryEngine) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	count, err := e.notifications.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	e.pushUnreadCount(ctx, userID)
	return count, nil
}

// Delete removes a notification belonging to the user.
func (e *DeliveryEngine) Delete(ctx context.Context, id uuid.UUID, userID string) error {
	if err := e.notifications.Delete(ctx, id, userID); err != nil {
		return err
	}
	e.pushUnreadCount(ctx, userID)
	return nil
}

// Settings returns the user's notification preferences.
func (e *DeliveryEngine) Settings(ctx context.Context, userID string) (*domain.NotificationSettings, error) {
	return e.settings.Get(ctx, userID)
}

// UpdateSettings upserts per-type preferences after validating the types.
func (e *DeliveryEngine) UpdateSettings(ctx context.Context, userID string, settings map[domain.NotificationType]bool) (*domain.NotificationSettings, error) {
	for t := range settings {
		if !t.Valid() {
			return nil, fmt.Errorf("unknown notification type: %q", t)
		}
	}
	return e.settings.Update(ctx, userID, settings)
}

// PurgeTTL deletes old notifications. Called by a background scheduler.
func (e *DeliveryEngine) PurgeTTL(ctx context.Context, days int) {
	count, err := e.notifications.PurgeOlderThan(ctx, days)
	if err != nil {
		log.Error().Err(err).Msg("notification TTL purge failed")
		return
	}
	log.Info().Int64("deleted", count).Int("older_than_days", days).Msg("notification TTL purge completed")
}
