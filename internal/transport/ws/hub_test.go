package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/vidmesh/realtime/internal/application"
)

func takeFrame(t *testing.T, s *Session) Frame {
	t.Helper()
	select {
	case raw := <-s.send:
		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		return f
	case <-time.After(time.Second):
		t.Fatal("no frame queued")
		return Frame{}
	}
}

func assertNoFrame(t *testing.T, s *Session) {
	t.Helper()
	select {
	case raw := <-s.send:
		t.Fatalf("unexpected frame: %s", raw)
	default:
	}
}

func TestHub_EmitToTopic(t *testing.T) {
	r := NewRegistry()
	h := NewHub(r)
	s1 := newTestSession("s1", "u1", "alice")
	s2 := newTestSession("s2", "u2", "bob")
	s3 := newTestSession("s3", "u3", "carol")

	h.Join("room", s1)
	h.Join("room", s2)

	if !h.EmitToTopic("room", "message_received", map[string]string{"hello": "world"}) {
		t.Fatal("emit to joined topic should report delivery")
	}
	if f := takeFrame(t, s1); f.Event != "message_received" {
		t.Fatalf("event = %q, want message_received", f.Event)
	}
	takeFrame(t, s2)
	assertNoFrame(t, s3)

	if h.EmitToTopic("empty-room", "message_received", nil) {
		t.Fatal("emit to empty topic must report no delivery")
	}
}

func TestHub_LeaveAndLeaveAll(t *testing.T) {
	h := NewHub(NewRegistry())
	s := newTestSession("s1", "u1", "alice")

	h.Join("a", s)
	h.Join("b", s)
	h.Leave("a", s)
	if got := h.TopicMembers("a"); got != 0 {
		t.Fatalf("topic a members = %d, want 0", got)
	}
	if got := h.TopicMembers("b"); got != 1 {
		t.Fatalf("topic b members = %d, want 1", got)
	}

	h.LeaveAll(s)
	if got := h.TopicMembers("b"); got != 0 {
		t.Fatalf("topic b members after LeaveAll = %d, want 0", got)
	}
}

func TestHub_EmitToUser_ViaUserTopic(t *testing.T) {
	h := NewHub(NewRegistry())
	s := newTestSession("s1", "u1", "alice")
	h.Join(application.UserTopic("u1"), s)

	if !h.EmitToUser("u1", application.EventMessageRead, nil) {
		t.Fatal("expected delivery to the user topic session")
	}
	if f := takeFrame(t, s); f.Event != application.EventMessageRead {
		t.Fatalf("event = %q, want %q", f.Event, application.EventMessageRead)
	}
}

func TestHub_EmitToUser_NotificationEventsReachNotificationsTopic(t *testing.T) {
	h := NewHub(NewRegistry())
	s := newTestSession("s1", "u1", "alice")
	h.Join(application.NotificationsTopic("u1"), s)

	if !h.EmitToUser("u1", application.EventNotificationReceived, nil) {
		t.Fatal("notification events must reach notifications topic members")
	}
	takeFrame(t, s)
}

func TestHub_EmitToUser_DeduplicatesSessions(t *testing.T) {
	h := NewHub(NewRegistry())
	s := newTestSession("s1", "u1", "alice")
	h.Join(application.UserTopic("u1"), s)
	h.Join(application.NotificationsTopic("u1"), s)

	h.EmitToUser("u1", application.EventNotificationReceived, nil)
	takeFrame(t, s)
	assertNoFrame(t, s)
}

func TestHub_EmitToUser_FallsBackToRegistry(t *testing.T) {
	r := NewRegistry()
	h := NewHub(r)
	s := newTestSession("s1", "u1", "alice")
	r.Register(s)
	// Session registered but joined to no topic yet, mid-setup.

	if !h.EmitToUser("u1", application.EventConversationUpdated, nil) {
		t.Fatal("expected registry fallback to find the session")
	}
	takeFrame(t, s)
}

func TestHub_EmitToUser_NoSessions(t *testing.T) {
	h := NewHub(NewRegistry())
	if h.EmitToUser("ghost", application.EventMessageRead, nil) {
		t.Fatal("emit must report false when the user has no sessions")
	}
}

func TestHub_BroadcastAll(t *testing.T) {
	r := NewRegistry()
	h := NewHub(r)
	s1 := newTestSession("s1", "u1", "alice")
	s2 := newTestSession("s2", "u2", "bob")
	r.Register(s1)
	r.Register(s2)

	if !h.BroadcastAll(application.EventUserOnline, PresencePayload{UserID: "u3"}) {
		t.Fatal("broadcast should reach registered sessions")
	}
	if f := takeFrame(t, s1); f.Event != application.EventUserOnline {
		t.Fatalf("event = %q, want %q", f.Event, application.EventUserOnline)
	}
	takeFrame(t, s2)
}
