package ws

import "encoding/json"

// Frame is the wire envelope for both directions. Client frames carry the
// event name, an optional request id echoed back in the ack, and the event
// payload. Server pushes reuse the same shape without a request id.
type Frame struct {
	Event     string          `json:"event"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// pushFrame is the outbound variant with an already-structured payload.
type pushFrame struct {
	Event     string `json:"event"`
	RequestID string `json:"request_id,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// AckPayload is the response body for every client event. Input problems
// travel inside Error; the connection itself never pays for a bad payload.
type AckPayload struct {
	OK    bool      `json:"ok"`
	Error *AckError `json:"error,omitempty"`
	Data  any       `json:"data,omitempty"`
}

// AckError is a structured, machine-readable failure.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client event names accepted by the gateway.
const (
	ActionSendMessage              = "send_message"
	ActionMarkMessageRead          = "mark_message_read"
	ActionMarkConversationRead     = "mark_conversation_read"
	ActionJoinConversation         = "join_conversation"
	ActionLeaveConversation        = "leave_conversation"
	ActionTypingStart              = "typing_start"
	ActionTypingStop               = "typing_stop"
	ActionGetNotifications         = "get_notifications"
	ActionMarkNotificationRead     = "mark_notification_read"
	ActionMarkAllNotificationsRead = "mark_all_notifications_read"
	ActionDeleteNotification       = "delete_notification"
	ActionGetSettings              = "get_notification_settings"
	ActionUpdateSettings           = "update_notification_settings"
)

// Ack error codes.
const (
	CodeContentRequired      = "content_required"
	CodeReceiverRequired     = "receiver_required"
	CodeReceiverNotFound     = "receiver_not_found"
	CodeConversationNotFound = "conversation_not_found"
	CodeNotParticipant       = "not_participant"
	CodeNotFound             = "not_found"
	CodeInvalidPayload       = "invalid_payload"
	CodeUnknownEvent         = "unknown_event"
	CodeInternal             = "internal_error"
)

const ackEvent = "ack"
