package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vidmesh/realtime/internal/domain"
	"github.com/vidmesh/realtime/internal/messages"
)

// MessageRelay moves a direct message from the sending socket to persistence
// and out to every interested session: validate, resolve the conversation,
// persist, update the conversation summary, fan out, and hand the
// notification to the delivery engine without waiting on it.
type MessageRelay struct {
	conversations domain.ConversationRepository
	messages      domain.MessageRepository
	users         domain.UserRepository
	delivery      *DeliveryEngine
	emitter       Emitter
	presence      Presence
}

// NewMessageRelay creates a MessageRelay.
func NewMessageRelay(
	conversations domain.ConversationRepository,
	msgs domain.MessageRepository,
	users domain.UserRepository,
	delivery *DeliveryEngine,
	emitter Emitter,
	presence Presence,
) *MessageRelay {
	return &MessageRelay{
		conversations: conversations,
		messages:      msgs,
		users:         users,
		delivery:      delivery,
		emitter:       emitter,
		presence:      presence,
	}
}

// SendMessage runs the full relay pipeline and returns the sender's ack.
// Nothing is fanned out unless the message row exists; the detached
// notification never affects the ack.
func (r *MessageRelay) SendMessage(ctx context.Context, in SendMessageInput) (*SendMessageResult, error) {
	if strings.TrimSpace(in.Content) == "" && in.Attachment == "" {
		return nil, domain.ErrContentRequired
	}

	conv, receiverID, err := r.resolveConversation(ctx, in)
	if err != nil {
		return nil, err
	}

	msg, err := r.messages.Create(ctx, domain.CreateMessageInput{
		ConversationID: conv.ID,
		SenderID:       in.SenderID,
		ReceiverID:     receiverID,
		Content:        in.Content,
		Attachment:     in.Attachment,
	})
	if err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	if err := r.conversations.UpdateSummary(ctx, conv.ID, msg); err != nil {
		// The message row exists; a stale summary heals on the next message.
		log.Error().Err(err).Str("conversation", conv.ID.String()).Msg("conversation summary update failed")
	} else {
		conv.LastMessageID = &msg.ID
		conv.LastMessageContent = msg.Content
		conv.LastMessageSenderID = msg.SenderID
		conv.LastMessageAt = &msg.CreatedAt
		conv.UpdatedAt = msg.CreatedAt
	}

	r.fanout(conv, msg)

	r.delivery.NotifyAsync(domain.CreateNotificationInput{
		RecipientID: receiverID,
		Type:        domain.TypeMessage,
		Message:     messages.NewDirectMessage(in.SenderUsername),
		CauserID:    in.SenderID,
		SubjectID:   msg.ID.String(),
	})

	log.Info().
		Str("message", msg.ID.String()).
		Str("conversation", conv.ID.String()).
		Str("sender", in.SenderID).
		Str("receiver", receiverID).
		Msg("message relayed")

	return &SendMessageResult{
		Message:          msg,
		Conversation:     conv,
		ReceiverOnline:   r.presence.IsOnline(receiverID),
		ReceiverSessions: r.presence.SessionCount(receiverID),
	}, nil
}

// resolveConversation finds the thread and the receiver. A supplied
// conversation id wins over a receiver id; without either the send is
// rejected. Creation goes through FindOrCreate, so two first messages
// crossing for the same pair land in one conversation.
func (r *MessageRelay) resolveConversation(ctx context.Context, in SendMessageInput) (*domain.Conversation, string, error) {
	if in.ConversationID != nil {
		conv, err := r.conversations.GetByID(ctx, *in.ConversationID)
		if err != nil {
			return nil, "", err
		}
		if !conv.HasParticipant(in.SenderID) {
			return nil, "", domain.ErrNotParticipant
		}
		return conv, conv.Peer(in.SenderID), nil
	}

	if in.ReceiverID == "" {
		return nil, "", domain.ErrReceiverRequired
	}
	if _, err := r.users.GetByID(ctx, in.ReceiverID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, "", domain.ErrReceiverNotFound
		}
		return nil, "", fmt.Errorf("resolve receiver: %w", err)
	}

	conv, err := r.conversations.FindOrCreate(ctx, in.SenderID, in.ReceiverID)
	if err != nil {
		return nil, "", err
	}
	return conv, in.ReceiverID, nil
}

// fanout pushes the new message at the sender's and receiver's sessions and
// at everyone watching the conversation. Sessions joined to several of those
// topics receive the frame more than once; clients key by message id.
func (r *MessageRelay) fanout(conv *domain.Conversation, msg *domain.Message) {
	r.emitter.EmitToTopic(UserTopic(msg.SenderID), EventMessageReceived, msg)
	r.emitter.EmitToTopic(UserTopic(msg.ReceiverID), EventMessageReceived, msg)
	r.emitter.EmitToTopic(ConversationTopic(conv.ID), EventMessageReceived, msg)

	r.emitter.EmitToUser(msg.SenderID, EventConversationUpdated, conv)
	r.emitter.EmitToUser(msg.ReceiverID, EventConversationUpdated, conv)
}

// MarkMessageRead marks one message as read on behalf of its receiver and
// tells the sender. Marking an already-read message is an idempotent no-op.
func (r *MessageRelay) MarkMessageRead(ctx context.Context, messageID uuid.UUID, readerID string) (*domain.Message, error) {
	msg, err := r.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.ReceiverID != readerID {
		return nil, domain.ErrNotFound
	}
	if msg.IsRead {
		return msg, nil
	}

	if err := r.messages.MarkRead(ctx, messageID, readerID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	msg.IsRead = true

	r.emitter.EmitToUser(msg.SenderID, EventMessageRead, MessageReadPayload{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		ReaderID:       readerID,
	})
	return msg, nil
}

// MarkConversationRead marks everything unread addressed to the reader in
// one update and tells the peer how many messages that was.
func (r *MessageRelay) MarkConversationRead(ctx context.Context, conversationID uuid.UUID, readerID string) (int64, error) {
	conv, err := r.Conversation(ctx, conversationID, readerID)
	if err != nil {
		return 0, err
	}

	count, err := r.messages.MarkConversationRead(ctx, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		r.emitter.EmitToUser(conv.Peer(readerID), EventConversationRead, ConversationReadPayload{
			ConversationID: conversationID,
			ReaderID:       readerID,
			MessagesRead:   count,
		})
	}
	return count, nil
}

// Conversation fetches a conversation the user participates in. Outsiders
// get ErrNotParticipant, which also serves the join authorization check.
func (r *MessageRelay) Conversation(ctx context.Context, id uuid.UUID, userID string) (*domain.Conversation, error) {
	conv, err := r.conversations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, domain.ErrNotParticipant
	}
	return conv, nil
}

// ListConversations returns the user's threads, most recently active first.
func (r *MessageRelay) ListConversations(ctx context.Context, userID string, limit, offset int) ([]*domain.Conversation, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return r.conversations.ListByUser(ctx, userID, limit, offset)
}

// ListMessages returns a conversation page for a participant, newest first.
func (r *MessageRelay) ListMessages(ctx context.Context, conversationID uuid.UUID, userID string, limit, offset int) ([]*domain.Message, error) {
	if _, err := r.Conversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return r.messages.ListByConversation(ctx, conversationID, limit, offset)
}
