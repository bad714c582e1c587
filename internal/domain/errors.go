package domain

import "errors"

// Sentinel errors for invalid or unresolvable input. Transport layers map
// these to structured error codes in acks and HTTP responses; they are never
// allowed to tear down a connection.
var (
	ErrContentRequired      = errors.New("message content or attachment required")
	ErrReceiverRequired     = errors.New("receiver required")
	ErrReceiverNotFound     = errors.New("receiver not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotParticipant       = errors.New("user is not a participant of the conversation")
	ErrNotFound             = errors.New("not found")
)
