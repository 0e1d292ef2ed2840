package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ParticipantKind string

const (
	ParticipantKindDoctor  ParticipantKind = "doctor"
	ParticipantKindPatient ParticipantKind = "patient"
)

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeFile  MessageType = "file"
	MessageTypeVideo MessageType = "video"
)

func (t MessageType) Valid() bool {
	return t == MessageTypeText || t == MessageTypeFile || t == MessageTypeVideo
}

// Attachment is a file reference carried by a message.
type Attachment struct {
	FileURL  string `json:"file_url"`
	FileType string `json:"file_type"`
	FileName string `json:"file_name"`
}

// AttachmentList stores attachments as a jsonb column.
type AttachmentList []Attachment

func (a AttachmentList) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

func (a *AttachmentList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*a = nil
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("unsupported attachment scan type %T", src)
	}
}

// Message belongs to exactly one conversation and is append-only;
// only the read flag changes after creation.
type Message struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	ConversationID uuid.UUID       `db:"conversation_id" json:"conversation_id"`
	SenderID       uuid.UUID       `db:"sender_id" json:"sender_id"`
	SenderKind     ParticipantKind `db:"sender_kind" json:"sender_kind"`
	ReceiverID     uuid.UUID       `db:"receiver_id" json:"receiver_id"`
	ReceiverKind   ParticipantKind `db:"receiver_kind" json:"receiver_kind"`
	Content        string          `db:"content" json:"content"`
	MessageType    MessageType     `db:"message_type" json:"message_type"`
	Attachments    AttachmentList  `db:"attachments" json:"attachments"`
	IsRead         bool            `db:"is_read" json:"is_read"`
	SentAt         time.Time       `db:"sent_at" json:"sent_at"`
}

// SendMessageInput is the payload of a realtime send event.
type SendMessageInput struct {
	ConversationID uuid.UUID      `json:"conversationId"`
	Sender         uuid.UUID      `json:"sender"`
	Receiver       uuid.UUID      `json:"receiver"`
	Content        string         `json:"content"`
	MessageType    MessageType    `json:"messageType"`
	Attachments    AttachmentList `json:"attachments"`
}
