package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/vidmesh/realtime/internal/application"
	"github.com/vidmesh/realtime/internal/domain"
	"github.com/vidmesh/realtime/internal/transport/mw"
)

// handleTimeout bounds a single client event end to end, including the
// database round trips behind it.
const handleTimeout = 10 * time.Second

// PresencePayload rides on user_online and user_offline broadcasts.
type PresencePayload struct {
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	At       time.Time `json:"at"`
}

type frameHandler func(ctx context.Context, s *Session, data json.RawMessage) (any, error)

// Gateway upgrades authenticated HTTP requests to WebSocket sessions and
// dispatches client frames to the application services. Registration and
// topic joins complete before the first frame is read, so every event
// handler can rely on the session being present in the registry.
type Gateway struct {
	upgrader websocket.Upgrader
	registry *Registry
	hub      *Hub
	typing   *TypingManager
	relay    *application.MessageRelay
	delivery *application.DeliveryEngine
	users    domain.UserRepository

	handlers map[string]frameHandler
}

// NewGateway wires the gateway to its collaborators.
func NewGateway(
	registry *Registry,
	hub *Hub,
	typing *TypingManager,
	relay *application.MessageRelay,
	delivery *application.DeliveryEngine,
	users domain.UserRepository,
) *Gateway {
	g := &Gateway{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		registry: registry,
		hub:      hub,
		typing:   typing,
		relay:    relay,
		delivery: delivery,
		users:    users,
	}
	g.handlers = map[string]frameHandler{
		ActionSendMessage:              g.handleSendMessage,
		ActionMarkMessageRead:          g.handleMarkMessageRead,
		ActionMarkConversationRead:     g.handleMarkConversationRead,
		ActionJoinConversation:         g.handleJoinConversation,
		ActionLeaveConversation:        g.handleLeaveConversation,
		ActionTypingStart:              g.handleTypingStart,
		ActionTypingStop:               g.handleTypingStop,
		ActionGetNotifications:         g.handleGetNotifications,
		ActionMarkNotificationRead:     g.handleMarkNotificationRead,
		ActionMarkAllNotificationsRead: g.handleMarkAllNotificationsRead,
		ActionDeleteNotification:       g.handleDeleteNotification,
		ActionGetSettings:              g.handleGetSettings,
		ActionUpdateSettings:           g.handleUpdateSettings,
	}
	return g
}

// Handle is the echo handler for GET /ws. It blocks for the lifetime of the
// connection.
func (g *Gateway) Handle(c echo.Context) error {
	identity, ok := mw.IdentityFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing identity")
	}

	conn, err := g.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	s := NewSession(conn, identity.UserID, identity.Username)
	g.setup(s)
	g.readLoop(s)
	g.teardown(s)
	return nil
}

// setup registers the session and joins its standing topics. Runs fully
// before the read loop starts.
func (g *Gateway) setup(s *Session) {
	first := g.registry.Register(s)
	g.hub.Join(application.UserTopic(s.UserID), s)
	g.hub.Join(application.NotificationsTopic(s.UserID), s)

	if first {
		g.hub.BroadcastAll(application.EventUserOnline, PresencePayload{
			UserID:   s.UserID,
			Username: s.Username,
			At:       time.Now(),
		})
		go g.writePresence(s.UserID, true)
	}

	log.Info().
		Str("session", s.ID).
		Str("user", s.UserID).
		Bool("first_session", first).
		Msg("ws connected")
}

func (g *Gateway) readLoop(s *Session) {
	s.conn.SetReadLimit(maxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Str("session", s.ID).Msg("ws read failed")
			}
			return
		}
		g.registry.Touch(s.UserID)
		g.dispatch(s, raw)
	}
}

// teardown cleans up in fixed order: typing indicators, topic membership,
// registry. The offline broadcast re-checks the registry so a reconnect
// that registered meanwhile suppresses it.
func (g *Gateway) teardown(s *Session) {
	s.Close()
	g.typing.DropUser(s.UserID)
	g.hub.LeaveAll(s)

	_, last := g.registry.Unregister(s.ID)
	if last && !g.registry.IsOnline(s.UserID) {
		g.hub.BroadcastAll(application.EventUserOffline, PresencePayload{
			UserID:   s.UserID,
			Username: s.Username,
			At:       time.Now(),
		})
		go g.writePresence(s.UserID, false)
	}

	log.Info().
		Str("session", s.ID).
		Str("user", s.UserID).
		Bool("last_session", last).
		Msg("ws disconnected")
}

// writePresence records presence in the users table. Fire-and-forget: the
// registry stays authoritative even when the write fails.
func (g *Gateway) writePresence(userID string, online bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := g.users.SetPresence(ctx, userID, online, time.Now()); err != nil {
		log.Warn().Err(err).Str("user", userID).Bool("online", online).Msg("presence write failed")
	}
}

// dispatch parses and handles one inbound frame. A handler panic fails this
// frame and is logged; the connection and all other sessions keep running.
func (g *Gateway) dispatch(s *Session, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		s.Push(ackEvent, "", AckPayload{OK: false, Error: &AckError{Code: CodeInvalidPayload, Message: "malformed frame"}})
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Interface("panic", rec).
				Str("event", frame.Event).
				Str("session", s.ID).
				Msg("ws handler panicked")
			s.Push(ackEvent, frame.RequestID, AckPayload{OK: false, Error: &AckError{Code: CodeInternal, Message: "internal error"}})
		}
	}()

	handler, ok := g.handlers[frame.Event]
	if !ok {
		s.Push(ackEvent, frame.RequestID, AckPayload{OK: false, Error: &AckError{Code: CodeUnknownEvent, Message: "unknown event: " + frame.Event}})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	data, err := handler(ctx, s, frame.Data)
	if err != nil {
		s.Push(ackEvent, frame.RequestID, AckPayload{OK: false, Error: ackErrorFor(err)})
		return
	}
	s.Push(ackEvent, frame.RequestID, AckPayload{OK: true, Data: data})
}

// ackErrorFor maps domain sentinels to wire codes. Anything unmapped is an
// internal error; the detail stays in the server log.
func ackErrorFor(err error) *AckError {
	var invalid invalidPayloadError
	switch {
	case errors.As(err, &invalid):
		return &AckError{Code: CodeInvalidPayload, Message: invalid.Error()}
	case errors.Is(err, domain.ErrContentRequired):
		return &AckError{Code: CodeContentRequired, Message: err.Error()}
	case errors.Is(err, domain.ErrReceiverRequired):
		return &AckError{Code: CodeReceiverRequired, Message: err.Error()}
	case errors.Is(err, domain.ErrReceiverNotFound):
		return &AckError{Code: CodeReceiverNotFound, Message: err.Error()}
	case errors.Is(err, domain.ErrConversationNotFound):
		return &AckError{Code: CodeConversationNotFound, Message: err.Error()}
	case errors.Is(err, domain.ErrNotParticipant):
		return &AckError{Code: CodeNotParticipant, Message: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		return &AckError{Code: CodeNotFound, Message: err.Error()}
	default:
		log.Error().Err(err).Msg("ws handler failed")
		return &AckError{Code: CodeInternal, Message: "internal error"}
	}
}

// ─── Frame handlers ──────────────────────────────────────────────────────────

func (g *Gateway) handleSendMessage(ctx context.Context, s *Session, data json.RawMessage) (any, error) {
	var payload struct {
		ConversationID *uuid.UUID `json:"conversation_id"`
		ReceiverID     string     `json:"receiver_id"`
		Content        string     `json:"content"`
		Attachment     string     `json:"attachment"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errInvalidPayload(err)
	}

	return g.relay.SendMessage(ctx, application.SendMessageInput{
		SenderID:       s.UserID,
		SenderUsername: s.Username,
		ConversationID: payload.ConversationID,
		ReceiverID:     payload.ReceiverID,
		Content:        payload.Content,
		Attachment:     payload.Attachment,
	})
}

func (g *Gateway) handleMarkMessageRead(ctx context.Context, s *Session, data json.RawMessage) (any, error) {
	var payload struct {
		MessageID uuid.UUID `json:"message_id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errInvalidPayload(err)
	}

	msg, err := g.relay.MarkMessageRead(ctx, payload.MessageID, s.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"message_id": msg.ID, "conversation_id": msg.ConversationID}, nil
}

func (g *Gateway) handleMarkConversationRead(ctx context.Context, s *Session, data json.RawMessage) (any, error) {
	var payload struct {
		ConversationID uuid.UUID `json:"conversation_id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errInvalidPayload(err)
	}

	count, err := g.relay.MarkConversationRead(ctx, payload.ConversationID, s.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"conversation_id": payload.ConversationID, "messages_read": count}, nil
}

func (g *Gateway) handleJoinConversation(ctx context.Context, s *Session, data json.RawMessage) (any, error) {
	var payload struct {
		ConversationID uuid.UUID `json:"conversation_id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errInvalidPayload(err)
	}

	conv, err := g.relay.Conversation(ctx, payload.ConversationID, s.UserID)
	if err != nil {
		return nil, err
	}
	g.hub.Join(application.ConversationTopic(conv.ID), s)
	return map[string]any{"conversation_id": conv.ID}, nil
}

func (g *Gateway) handleLeaveConversation(_ context.Context, s *Session, data json.RawMessage) (any, error) {
	var payload struct {
		ConversationID uuid.UUID `json:"conversation_id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errInvalidPayload(err)
	}

	g.hub.Leave(application.ConversationTopic(payload.ConversationID), s)
	return map[string]any{"conversation_id": payload.ConversationID}, nil
}

func (g *Gateway) handleTypingStart(ctx context.Context, s *Session, data json.RawMessage) (any, error) {
	var payload struct {
		ConversationID uuid.UUID `json:"conversation_id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errInvalidPayload(err)
	}

	conv, err := g.relay.Conversation(ctx, payload.ConversationID, s.UserID)
	if err != nil {
		return nil, err
	}
	g.typing.Start(s.UserID, s.Username, conv.ID, []string{conv.Peer(s.UserID)})
	return nil, nil
}

func (g *Gateway) handleTypingStop(_ context.Context, s *Session, data json.RawMessage) (any, error) {
	var payload struct {
		ConversationID uuid.UUID `json:"conversation_id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errInvalidPayload(err)
	}

	g.typing.Stop(s.UserID, payload.ConversationID)
	return nil, nil
}

func (g *Gateway) handleGetNotifications(ctx context.Context, s *Session, data json.RawMessage) (any, error) {
	var payload struct {
		UnreadOnly bool   `json:"unread_only"`
		Type       string `json:"type"`
		Limit      int    `json:"limit"`
		Offset     int    `json:"offset"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, errInvalidPayload(err)
		}
	}

	filter := domain.NotificationFilter{
		RecipientID: s.UserID,
		Type:        domain.NotificationType(payload.Type),
		Limit:       payload.Limit,
		Offset:      payload.Offset,
	}
	if payload.UnreadOnly {
		unread := false
		filter.IsRead = &unread
	}

	list, err := g.delivery.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	count, err := g.delivery.UnreadCount(ctx, s.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"notifications": list, "unread_count": count}, nil
}

func (g *Gateway) handleMarkNotificationRead(ctx context.Context, s *Session, data json.RawMessage) (any, error) {
	var payload struct {
		NotificationID uuid.UUID `json:"notification_id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errInvalidPayload(err)
	}

	if err := g.delivery.MarkRead(ctx, payload.NotificationID, s.UserID); err != nil {
		return nil, err
	}
	return map[string]any{"notification_id": payload.NotificationID}, nil
}

func (g *Gateway) handleMarkAllNotificationsRead(ctx context.Context, s *Session, _ json.RawMessage) (any, error) {
	count, err := g.delivery.MarkAllRead(ctx, s.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"updated": count}, nil
}

func (g *Gateway) handleDeleteNotification(ctx context.Context, s *Session, data json.RawMessage) (any, error) {
	var payload struct {
		NotificationID uuid.UUID `json:"notification_id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errInvalidPayload(err)
	}

	if err := g.delivery.Delete(ctx, payload.NotificationID, s.UserID); err != nil {
		return nil, err
	}
	return map[string]any{"notification_id": payload.NotificationID}, nil
}

func (g *Gateway) handleGetSettings(ctx context.Context, s *Session, _ json.RawMessage) (any, error) {
	return g.delivery.Settings(ctx, s.UserID)
}

func (g *Gateway) handleUpdateSettings(ctx context.Context, s *Session, data json.RawMessage) (any, error) {
	var payload struct {
		Settings map[domain.NotificationType]bool `json:"settings"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errInvalidPayload(err)
	}
	if len(payload.Settings) == 0 {
		return nil, errInvalidPayload(errors.New("settings must not be empty"))
	}

	settings, err := g.delivery.UpdateSettings(ctx, s.UserID, payload.Settings)
	if err != nil {
		return nil, errInvalidPayload(err)
	}
	return settings, nil
}

// invalidPayloadError carries the bad_request detail to ackErrorFor without
// a dedicated sentinel per handler.
type invalidPayloadError struct{ err error }

func (e invalidPayloadError) Error() string { return e.err.Error() }

func errInvalidPayload(err error) error { return invalidPayloadError{err: err} }
