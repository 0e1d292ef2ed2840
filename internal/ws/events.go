package ws

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/medivisit/telehealth-api/internal/model"
)

// Client-to-server events.
const (
	EventJoinConversation  = "joinConversation"
	EventLeaveConversation = "leaveConversation"
	EventSendMessage       = "sendMessage"
)

// Server-to-client events.
const (
	EventJoined     = "joined"
	EventNewMessage = "newMessage"
	EventError      = "error"
)

// Fixed client-facing error reasons. Internal details never leave the
// server.
const (
	ReasonInvalidInput       = "Invalid input data"
	ReasonConversationGone   = "Conversation not found"
	ReasonConversationClosed = "Conversation is closed"
	ReasonAccessDenied       = "Access denied"
	ReasonJoinFailed         = "Server error during join"
	ReasonSendFailed         = "Server error during message send"
)

// Envelope is the wire frame for every realtime event.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinPayload is the payload of joinConversation and leaveConversation.
type JoinPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	UserID         uuid.UUID `json:"userId"`
}

func mustEnvelope(event string, payload interface{}) []byte {
	raw, err := json.Marshal(payload)
	if err != nil {
		// Payloads are server-built values; a marshal failure is a bug.
		panic(err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Payload: raw})
	if err != nil {
		panic(err)
	}
	return frame
}

func errorFrame(reason string) []byte {
	return mustEnvelope(EventError, reason)
}

func joinedFrame(conversationID uuid.UUID) []byte {
	return mustEnvelope(EventJoined, conversationID)
}

func messageFrame(msg *model.Message) []byte {
	return mustEnvelope(EventNewMessage, msg)
}
