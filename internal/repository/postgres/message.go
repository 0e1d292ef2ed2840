package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medivisit/telehealth-api/internal/model"
)

func (r *messageRepository) Create(ctx context.Context, msg *model.Message) error {
	query := `
		INSERT INTO messages (
			id, conversation_id, sender_id, sender_kind,
			receiver_id, receiver_kind, content, message_type,
			attachments, is_read, sent_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	msg.ID = uuid.New()
	msg.SentAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		msg.ID,
		msg.ConversationID,
		msg.SenderID,
		msg.SenderKind,
		msg.ReceiverID,
		msg.ReceiverKind,
		msg.Content,
		msg.MessageType,
		msg.Attachments,
		msg.IsRead,
		msg.SentAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (r *messageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID, p model.Pagination) ([]*model.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, sender_kind,
			   receiver_id, receiver_kind, content, message_type,
			   attachments, is_read, sent_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY sent_at ASC
		LIMIT $2 OFFSET $3
	`
	var messages []*model.Message
	err := r.db.SelectContext(ctx, &messages, query, conversationID, p.Limit(), p.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, conversationID, receiverID uuid.UUID) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET is_read = TRUE
		WHERE conversation_id = $1 AND receiver_id = $2 AND is_read = FALSE
	`, conversationID, receiverID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}
