package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vidmesh/realtime/internal/domain"
)

type engineFixture struct {
	repo     *fakeNotificationRepo
	settings *fakeSettingsRepo
	emitter  *fakeEmitter
	presence *fakePresence
	engine   *DeliveryEngine
}

func newEngineFixture(retryDelay time.Duration, maxRetries, queueSize int) *engineFixture {
	f := &engineFixture{
		repo:     &fakeNotificationRepo{},
		settings: &fakeSettingsRepo{},
		emitter:  &fakeEmitter{emitOK: true},
		presence: &fakePresence{},
	}
	f.engine = NewDeliveryEngine(f.repo, f.settings, f.emitter, f.presence, retryDelay, maxRetries, queueSize)
	return f
}

func defaultEngineFixture() *engineFixture {
	return newEngineFixture(50*time.Millisecond, 3, 8)
}

func TestSend_DisabledTypeSkipsPersist(t *testing.T) {
	f := defaultEngineFixture()
	f.settings.disable("u1", domain.TypeLike)

	n, err := f.engine.Send(context.Background(), domain.CreateNotificationInput{
		RecipientID: "u1",
		Type:        domain.TypeLike,
		Message:     "someone liked your video",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n != nil {
		t.Fatal("disabled type must return nil notification")
	}
	if f.repo.createdCount() != 0 {
		t.Fatal("disabled type must persist nothing")
	}
	if len(f.emitter.userEvents(EventNotificationReceived)) != 0 {
		t.Fatal("disabled type must not be delivered")
	}
}

func TestSend_SettingsErrorAssumesEnabled(t *testing.T) {
	f := defaultEngineFixture()
	f.settings.getErr = errors.New("settings table on fire")
	f.presence.setOnline("u1", 1)

	n, err := f.engine.Send(context.Background(), domain.CreateNotificationInput{
		RecipientID: "u1",
		Type:        domain.TypeLike,
		Message:     "someone liked your video",
	})
	if err != nil || n == nil {
		t.Fatalf("Send = (%v, %v), want notification despite settings error", n, err)
	}
	if f.repo.createdCount() != 1 {
		t.Fatal("notification must be persisted when settings are unreadable")
	}
}

func TestSend_PriorityDeliversWhileOffline(t *testing.T) {
	f := defaultEngineFixture()
	// Recipient offline, but follow is a priority type.

	n, err := f.engine.Send(context.Background(), domain.CreateNotificationInput{
		RecipientID: "u1",
		Type:        domain.TypeFollow,
		Message:     "bob started following you",
	})
	if err != nil || n == nil {
		t.Fatalf("Send = (%v, %v)", n, err)
	}

	if got := len(f.emitter.userEvents(EventNotificationReceived)); got != 1 {
		t.Fatalf("delivery attempts = %d, want 1", got)
	}
	stats := f.engine.Stats()
	if stats.Sent != 1 || stats.QueueDepth != 0 {
		t.Fatalf("stats = %+v, want sent 1 and empty queue", stats)
	}
	if got := len(f.emitter.userEvents(EventNotificationCountUpdated)); got != 1 {
		t.Fatalf("count pushes = %d, want 1", got)
	}
}

func TestSend_NonPriorityOfflineQueuesWithoutAttempt(t *testing.T) {
	f := defaultEngineFixture()

	if _, err := f.engine.Send(context.Background(), domain.CreateNotificationInput{
		RecipientID: "u1",
		Type:        domain.TypeLike,
		Message:     "someone liked your video",
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got := len(f.emitter.userEvents(EventNotificationReceived)); got != 0 {
		t.Fatalf("offline non-priority made %d delivery attempts, want 0", got)
	}
	stats := f.engine.Stats()
	if stats.Queued != 1 || stats.QueueDepth != 1 {
		t.Fatalf("stats = %+v, want one queued item", stats)
	}
	if f.repo.createdCount() != 1 {
		t.Fatal("queued notification must still be persisted")
	}
}

func TestSend_FailedAttemptQueues(t *testing.T) {
	f := defaultEngineFixture()
	f.presence.setOnline("u1", 1)
	f.emitter.setOK(false)

	if _, err := f.engine.Send(context.Background(), domain.CreateNotificationInput{
		RecipientID: "u1",
		Type:        domain.TypeComment,
		Message:     "bob commented on your video",
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	stats := f.engine.Stats()
	if stats.Failed != 1 || stats.QueueDepth != 1 {
		t.Fatalf("stats = %+v, want one failed and one queued", stats)
	}
}

func TestSend_DuplicateSourceEventIgnored(t *testing.T) {
	f := defaultEngineFixture()
	f.presence.setOnline("u1", 1)
	input := domain.CreateNotificationInput{
		RecipientID:   "u1",
		Type:          domain.TypeFollow,
		Message:       "bob started following you",
		SourceEventID: "evt-123",
	}

	first, err := f.engine.Send(context.Background(), input)
	if err != nil || first == nil {
		t.Fatalf("first Send = (%v, %v)", first, err)
	}
	second, err := f.engine.Send(context.Background(), input)
	if err != nil {
		t.Fatalf("second Send: %v", err)
	}
	if second != nil {
		t.Fatal("duplicate source event must return nil")
	}
	if f.repo.createdCount() != 1 {
		t.Fatalf("created = %d, want 1", f.repo.createdCount())
	}
	if got := len(f.emitter.userEvents(EventNotificationReceived)); got != 1 {
		t.Fatalf("delivery attempts = %d, want 1", got)
	}
}

func TestSweep_RedeliversOnReconnect(t *testing.T) {
	f := defaultEngineFixture()

	// Offline non-priority send parks the notification in the queue.
	if _, err := f.engine.Send(context.Background(), domain.CreateNotificationInput{
		RecipientID: "u1",
		Type:        domain.TypeLike,
		Message:     "someone liked your video",
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	base := time.Now()

	f.engine.sweep(context.Background(), base.Add(f.engine.retryDelay))

	stats := f.engine.Stats()
	if stats.Retried != 1 || stats.Sent != 1 || stats.QueueDepth != 0 {
		t.Fatalf("stats = %+v, want one retried and sent, empty queue", stats)
	}
	if got := len(f.emitter.userEvents(EventNotificationReceived)); got != 1 {
		t.Fatalf("delivery attempts = %d, want 1", got)
	}
	if got := len(f.emitter.userEvents(EventNotificationCountUpdated)); got != 1 {
		t.Fatalf("count pushes = %d, want 1", got)
	}
}

func TestSweep_RespectsRetryDelay(t *testing.T) {
	f := defaultEngineFixture()

	if _, err := f.engine.Send(context.Background(), domain.CreateNotificationInput{
		RecipientID: "u1",
		Type:        domain.TypeLike,
		Message:     "someone liked your video",
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	f.engine.sweep(context.Background(), time.Now())

	stats := f.engine.Stats()
	if stats.Retried != 0 || stats.QueueDepth != 1 {
		t.Fatalf("stats = %+v, item attempted before the delay elapsed", stats)
	}
}

func TestSweep_DropsAfterMaxRetries(t *testing.T) {
	f := newEngineFixture(50*time.Millisecond, 2, 8)
	f.emitter.setOK(false)

	if _, err := f.engine.Send(context.Background(), domain.CreateNotificationInput{
		RecipientID: "u1",
		Type:        domain.TypeLike,
		Message:     "someone liked your video",
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	base := time.Now()
	delay := f.engine.retryDelay

	f.engine.sweep(context.Background(), base.Add(delay))
	f.engine.sweep(context.Background(), base.Add(2*delay))
	f.engine.sweep(context.Background(), base.Add(3*delay))

	stats := f.engine.Stats()
	if stats.Retried != 2 || stats.Dropped != 1 || stats.QueueDepth != 0 {
		t.Fatalf("stats = %+v, want 2 retries then drop", stats)
	}
	if f.repo.createdCount() != 1 {
		t.Fatal("dropped delivery must leave the stored row intact")
	}
}

func TestNotifyAsync_FullQueueDrops(t *testing.T) {
	f := newEngineFixture(50*time.Millisecond, 3, 1)
	input := domain.CreateNotificationInput{RecipientID: "u1", Type: domain.TypeLike, Message: "x"}

	f.engine.NotifyAsync(input)
	f.engine.NotifyAsync(input)

	if got := f.engine.Stats().Dropped; got != 1 {
		t.Fatalf("dropped = %d, want 1", got)
	}
	if got := len(f.engine.tasks); got != 1 {
		t.Fatalf("pending tasks = %d, want 1", got)
	}
}

func TestRun_DrainsPendingTasksOnCancel(t *testing.T) {
	f := defaultEngineFixture()
	f.presence.setOnline("u1", 1)
	f.engine.NotifyAsync(domain.CreateNotificationInput{
		RecipientID: "u1",
		Type:        domain.TypeFollow,
		Message:     "bob started following you",
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.engine.Run(ctx)

	if f.repo.createdCount() != 1 {
		t.Fatal("queued task must be processed during drain")
	}
}

func TestMarkRead_PushesUpdatedCount(t *testing.T) {
	f := defaultEngineFixture()
	f.presence.setOnline("u1", 1)

	n, err := f.engine.Send(context.Background(), domain.CreateNotificationInput{
		RecipientID: "u1",
		Type:        domain.TypeFollow,
		Message:     "bob started following you",
	})
	if err != nil || n == nil {
		t.Fatalf("Send = (%v, %v)", n, err)
	}

	if err := f.engine.MarkRead(context.Background(), n.ID, "u1"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	pushes := f.emitter.userEvents(EventNotificationCountUpdated)
	if len(pushes) != 2 {
		t.Fatalf("count pushes = %d, want 2 (after send, after mark)", len(pushes))
	}
	payload, ok := pushes[1].data.(UnreadCountPayload)
	if !ok || payload.UnreadCount != 0 {
		t.Fatalf("last count payload = %+v, want unread 0", pushes[1].data)
	}
}

func TestMarkAllRead_ReturnsCount(t *testing.T) {
	f := defaultEngineFixture()
	f.presence.setOnline("u1", 1)
	for i := 0; i < 3; i++ {
		if _, err := f.engine.Send(context.Background(), domain.CreateNotificationInput{
			RecipientID: "u1",
			Type:        domain.TypeFollow,
			Message:     "follow",
		}); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	count, err := f.engine.MarkAllRead(context.Background(), "u1")
	if err != nil {
		t.Fatalf("MarkAllRead: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
	unread, err := f.engine.UnreadCount(context.Background(), "u1")
	if err != nil || unread != 0 {
		t.Fatalf("UnreadCount = (%d, %v), want 0", unread, err)
	}
}

func TestUpdateSettings_RejectsUnknownType(t *testing.T) {
	f := defaultEngineFixture()

	_, err := f.engine.UpdateSettings(context.Background(), "u1", map[domain.NotificationType]bool{
		"carrier_pigeon": true,
	})
	if err == nil || !strings.Contains(err.Error(), "unknown notification type") {
		t.Fatalf("err = %v, want unknown type rejection", err)
	}

	updated, err := f.engine.UpdateSettings(context.Background(), "u1", map[domain.NotificationType]bool{
		domain.TypeLike: false,
	})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if updated.Enabled(domain.TypeLike) {
		t.Fatal("like should be disabled after update")
	}
	if !updated.Enabled(domain.TypeFollow) {
		t.Fatal("untouched types must stay enabled")
	}
}

func TestList_ClampsLimit(t *testing.T) {
	f := defaultEngineFixture()
	ctx := context.Background()

	cases := []struct {
		limit int
		want  int
	}{
		{limit: 0, want: 20},
		{limit: -5, want: 20},
		{limit: 500, want: 20},
		{limit: 50, want: 50},
	}
	for _, tc := range cases {
		if _, err := f.engine.List(ctx, domain.NotificationFilter{RecipientID: "u1", Limit: tc.limit}); err != nil {
			t.Fatalf("List(limit=%d): %v", tc.limit, err)
		}
		if got := f.repo.lastFilter.Limit; got != tc.want {
			t.Fatalf("limit %d clamped to %d, want %d", tc.limit, got, tc.want)
		}
	}
}
