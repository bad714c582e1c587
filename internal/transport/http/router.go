package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/vidmesh/realtime/internal/auth"
	"github.com/vidmesh/realtime/internal/transport/mw"
	"github.com/vidmesh/realtime/internal/transport/ws"
)

// NewRouter sets up all Echo routes and middleware.
func NewRouter(h *Handler, gateway *ws.Gateway, verifier *auth.Verifier) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
	}))

	// Health (no auth required)
	e.GET("/health", h.Health)

	// API — requires authentication
	v1 := e.Group("")
	v1.Use(mw.JWTAuth(verifier))

	// Realtime endpoint
	v1.GET("/ws", gateway.Handle)

	// REST endpoints
	v1.GET("/notifications", h.ListNotifications)
	v1.GET("/notifications/unread-count", h.GetUnreadCount)
	v1.PATCH("/notifications/:id/read", h.MarkRead)
	v1.POST("/notifications/read-all", h.MarkAllRead)
	v1.DELETE("/notifications/:id", h.Delete)
	v1.GET("/notifications/settings", h.GetSettings)
	v1.PUT("/notifications/settings", h.UpdateSettings)

	v1.GET("/conversations", h.ListConversations)
	v1.GET("/conversations/:id/messages", h.ListMessages)

	v1.GET("/presence/online", h.OnlineUsers)

	return e
}
