package chat

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/medivisit/telehealth-api/internal/model"
	"github.com/medivisit/telehealth-api/internal/repository"
	"github.com/medivisit/telehealth-api/internal/service/conversation"
	apperrors "github.com/medivisit/telehealth-api/pkg/errors"
	"github.com/medivisit/telehealth-api/pkg/logger"
	"github.com/medivisit/telehealth-api/pkg/messaging"
)

// Event is the cross-instance fan-out envelope published on the broker.
type Event struct {
	Origin  string         `json:"origin"`
	Message *model.Message `json:"message"`
}

// Channel returns the broker channel for a conversation.
func Channel(conversationID uuid.UUID) string {
	return "chat.conversation." + conversationID.String()
}

// ChannelPattern matches every conversation channel.
const ChannelPattern = "chat.conversation.*"

// Service validates, persists, and fans out chat messages. Persistence
// happens before broadcast, so broadcast order follows persisted order.
type Service struct {
	messages repository.MessageRepository
	convSvc  *conversation.Service
	broker   messaging.Broker
	origin   string
	logger   *logger.Logger
}

func NewService(messages repository.MessageRepository, convSvc *conversation.Service, broker messaging.Broker, origin string, l *logger.Logger) *Service {
	return &Service{
		messages: messages,
		convSvc:  convSvc,
		broker:   broker,
		origin:   origin,
		logger:   l.WithComponent("chat"),
	}
}

// SendMessage validates the full precondition chain, persists the
// message with a server-assigned timestamp, and publishes it for
// cross-instance delivery. Either every precondition passes and the
// message is stored, or nothing is stored at all.
//
// The caller is the connection's authenticated identity; a payload
// naming a different sender is rejected outright.
func (s *Service) SendMessage(ctx context.Context, caller *model.TokenClaims, input *model.SendMessageInput) (*model.Message, error) {
	// Empty content is rejected even for attachment-only file messages.
	if input.ConversationID == uuid.Nil || input.Sender == uuid.Nil ||
		input.Receiver == uuid.Nil || input.Content == "" {
		return nil, apperrors.Validation("Invalid input data", nil)
	}

	if input.Sender != caller.UserID {
		return nil, apperrors.Forbidden("Access denied", nil)
	}

	messageType := input.MessageType
	if messageType == "" {
		messageType = model.MessageTypeText
	}
	if !messageType.Valid() {
		return nil, apperrors.Validation("Invalid input data", nil)
	}
	if messageType == model.MessageTypeFile && len(input.Attachments) == 0 {
		return nil, apperrors.Validation("Invalid input data", nil)
	}

	conv, err := s.convSvc.Get(ctx, input.ConversationID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NotFound("Conversation", err)
		}
		return nil, err
	}
	if conv.IsClosed {
		return nil, apperrors.Conflict("Conversation is closed", nil)
	}
	if !conv.HasParticipant(input.Sender) {
		return nil, apperrors.Forbidden("Access denied", nil)
	}

	msg := &model.Message{
		ConversationID: conv.ID,
		SenderID:       input.Sender,
		SenderKind:     conv.KindOf(input.Sender),
		ReceiverID:     input.Receiver,
		ReceiverKind:   conv.KindOf(input.Receiver),
		Content:        input.Content,
		MessageType:    messageType,
		Attachments:    input.Attachments,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to persist message: %w", err)
	}

	s.publish(ctx, msg)
	return msg, nil
}

// publish pushes the persisted message onto the broker so sibling
// instances can deliver it to their local rooms. Best-effort.
func (s *Service) publish(ctx context.Context, msg *model.Message) {
	if s.broker == nil {
		return
	}
	evt := Event{Origin: s.origin, Message: msg}
	if err := s.broker.Publish(ctx, Channel(msg.ConversationID), evt); err != nil {
		s.logger.Error(err, "failed to publish message event")
	}
}

// CheckJoin runs the full join precondition chain for a conversation
// room without mutating anything.
func (s *Service) CheckJoin(ctx context.Context, conversationID, userID uuid.UUID) error {
	if conversationID == uuid.Nil || userID == uuid.Nil {
		return apperrors.Validation("Invalid input data", nil)
	}

	conv, err := s.convSvc.Get(ctx, conversationID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.NotFound("Conversation", err)
		}
		return err
	}
	if conv.IsClosed {
		return apperrors.Conflict("Conversation is closed", nil)
	}
	if !conv.HasParticipant(userID) {
		return apperrors.Forbidden("Access denied", nil)
	}
	return nil
}

// ListConversations returns the caller's conversations, newest first.
func (s *Service) ListConversations(ctx context.Context, userID uuid.UUID) ([]*model.Conversation, error) {
	return s.convSvc.ListForUser(ctx, userID)
}

// ListMessages returns a conversation's history in sent order,
// participant-gated.
func (s *Service) ListMessages(ctx context.Context, conversationID, callerID uuid.UUID, p model.Pagination) ([]*model.Message, error) {
	ok, err := s.convSvc.IsParticipant(ctx, conversationID, callerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.Forbidden("Access denied", nil)
	}
	return s.messages.ListByConversation(ctx, conversationID, p)
}

// MarkRead flags every unread message addressed to the caller.
func (s *Service) MarkRead(ctx context.Context, conversationID, callerID uuid.UUID) (int64, error) {
	ok, err := s.convSvc.IsParticipant(ctx, conversationID, callerID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, apperrors.Forbidden("Access denied", nil)
	}
	return s.messages.MarkRead(ctx, conversationID, callerID)
}
