package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vidmesh/realtime/internal/application"
	"github.com/vidmesh/realtime/internal/auth"
	"github.com/vidmesh/realtime/internal/domain"
	"github.com/vidmesh/realtime/internal/transport/mw"
	"github.com/vidmesh/realtime/internal/transport/ws"
)

// Handler holds all HTTP handler methods. The REST surface is the pull side
// of the realtime service: notification history, preferences, conversation
// history, and health.
type Handler struct {
	delivery *application.DeliveryEngine
	relay    *application.MessageRelay
	registry *ws.Registry
}

// NewHandler creates a new Handler.
func NewHandler(delivery *application.DeliveryEngine, relay *application.MessageRelay, registry *ws.Registry) *Handler {
	return &Handler{delivery: delivery, relay: relay, registry: registry}
}

// --- Notification handlers ---

// ListNotifications GET /notifications
func (h *Handler) ListNotifications(c echo.Context) error {
	identity := mustIdentity(c)

	filter := domain.NotificationFilter{
		RecipientID: identity.UserID,
		Limit:       parseIntQuery(c, "limit", 20),
		Offset:      parseIntQuery(c, "offset", 0),
	}

	if t := c.QueryParam("type"); t != "" {
		filter.Type = domain.NotificationType(t)
	}
	if r := c.QueryParam("is_read"); r != "" {
		isRead := r == "true"
		filter.IsRead = &isRead
	}

	notifications, err := h.delivery.List(c.Request().Context(), filter)
	if err != nil {
		return echo.ErrInternalServerError
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data":   notifications,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// GetUnreadCount GET /notifications/unread-count
func (h *Handler) GetUnreadCount(c echo.Context) error {
	identity := mustIdentity(c)

	count, err := h.delivery.UnreadCount(c.Request().Context(), identity.UserID)
	if err != nil {
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, map[string]int64{"count": count})
}

// MarkRead PATCH /notifications/:id/read
func (h *Handler) MarkRead(c echo.Context) error {
	identity := mustIdentity(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid notification id")
	}

	if err := h.delivery.MarkRead(c.Request().Context(), id, identity.UserID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// MarkAllRead POST /notifications/read-all
func (h *Handler) MarkAllRead(c echo.Context) error {
	identity := mustIdentity(c)

	count, err := h.delivery.MarkAllRead(c.Request().Context(), identity.UserID)
	if err != nil {
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, map[string]int64{"marked": count})
}

// Delete DELETE /notifications/:id
func (h *Handler) Delete(c echo.Context) error {
	identity := mustIdentity(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid notification id")
	}

	if err := h.delivery.Delete(c.Request().Context(), id, identity.UserID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetSettings GET /notifications/settings
func (h *Handler) GetSettings(c echo.Context) error {
	identity := mustIdentity(c)

	settings, err := h.delivery.Settings(c.Request().Context(), identity.UserID)
	if err != nil {
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, settings)
}

// UpdateSettings PUT /notifications/settings
func (h *Handler) UpdateSettings(c echo.Context) error {
	identity := mustIdentity(c)

	var body struct {
		Settings map[domain.NotificationType]bool `json:"settings"`
	}
	if err := c.Bind(&body); err != nil || len(body.Settings) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "settings object required")
	}

	settings, err := h.delivery.UpdateSettings(c.Request().Context(), identity.UserID, body.Settings)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, settings)
}

// --- Conversation handlers ---

// ListConversations GET /conversations
func (h *Handler) ListConversations(c echo.Context) error {
	identity := mustIdentity(c)

	conversations, err := h.relay.ListConversations(
		c.Request().Context(),
		identity.UserID,
		parseIntQuery(c, "limit", 20),
		parseIntQuery(c, "offset", 0),
	)
	if err != nil {
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, map[string]any{"data": conversations})
}

// ListMessages GET /conversations/:id/messages
func (h *Handler) ListMessages(c echo.Context) error {
	identity := mustIdentity(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid conversation id")
	}

	msgs, err := h.relay.ListMessages(
		c.Request().Context(),
		id,
		identity.UserID,
		parseIntQuery(c, "limit", 50),
		parseIntQuery(c, "offset", 0),
	)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"data": msgs})
}

// --- Presence ---

// OnlineUsers GET /presence/online
func (h *Handler) OnlineUsers(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"data": h.registry.OnlineUsers()})
}

// --- Healthcheck ---

// Health GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":       "ok",
		"sessions":     h.registry.TotalSessions(),
		"online_users": len(h.registry.OnlineUsers()),
		"delivery":     h.delivery.Stats(),
	})
}

// --- Helpers ---

// mustIdentity returns the identity set by mw.JWTAuth; routes using it are
// always behind that middleware.
func mustIdentity(c echo.Context) *auth.Identity {
	identity, _ := mw.IdentityFrom(c)
	return identity
}

func parseIntQuery(c echo.Context, key string, def int) int {
	v, err := strconv.Atoi(c.QueryParam(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}

func httpError(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrConversationNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNotParticipant):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	default:
		return echo.ErrInternalServerError
	}
}
