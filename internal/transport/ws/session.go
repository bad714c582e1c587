package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// writeWait caps how long a single frame write may block on a slow peer.
	writeWait = 5 * time.Second
	// pongWait is the read deadline, refreshed by pongs.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = 30 * time.Second

	maxFrameSize  = 1 << 20
	sendQueueSize = 256
)

// Session is one live WebSocket connection of one authenticated user. A user
// with several devices holds several sessions. Outbound frames go through a
// buffered channel consumed by a single writer goroutine.
type Session struct {
	ID          string
	UserID      string
	Username    string
	ConnectedAt time.Time

	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

// NewSession wraps an upgraded connection. The writer goroutine starts
// immediately; the caller owns the read loop.
func NewSession(conn *websocket.Conn, userID, username string) *Session {
	s := &Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		Username:    username,
		ConnectedAt: time.Now(),
		conn:        conn,
		send:        make(chan []byte, sendQueueSize),
		done:        make(chan struct{}),
	}
	go s.writePump()
	return s
}

// Enqueue queues raw bytes for delivery without blocking. A full buffer
// means the client is too slow; the frame is dropped and false returned.
func (s *Session) Enqueue(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- data:
		return true
	default:
		log.Warn().Str("session", s.ID).Str("user", s.UserID).Msg("ws send buffer full, dropping frame")
		return false
	}
}

// Push marshals a frame and enqueues it.
func (s *Session) Push(event, requestID string, data any) bool {
	raw, err := json.Marshal(pushFrame{Event: event, RequestID: requestID, Data: data})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("marshal ws frame")
		return false
	}
	return s.Enqueue(raw)
}

// Close tears the connection down. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// writePump is the single writer for the connection: queued frames plus
// keepalive pings. Gorilla allows one concurrent writer, so every write
// funnels through here.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case <-s.done:
			return
		case data := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
