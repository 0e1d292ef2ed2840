package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/medivisit/telehealth-api/internal/model"
	apperrors "github.com/medivisit/telehealth-api/pkg/errors"
	"github.com/medivisit/telehealth-api/pkg/logger"
)

const handlerTimeout = 10 * time.Second

// ChatService is the message exchange surface the router drives.
type ChatService interface {
	CheckJoin(ctx context.Context, conversationID, userID uuid.UUID) error
	SendMessage(ctx context.Context, caller *model.TokenClaims, input *model.SendMessageInput) (*model.Message, error)
}

// TokenVerifier verifies a bearer token into identity claims.
type TokenVerifier interface {
	ValidateToken(ctx context.Context, token string) (*model.TokenClaims, error)
}

// Router gates every live connection and room join behind identity and
// participation checks. It is constructed with its collaborators
// injected; there is no ambient server state.
type Router struct {
	hub      *Hub
	chatSvc  ChatService
	verifier TokenVerifier
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

func NewRouter(hub *Hub, chatSvc ChatService, verifier TokenVerifier, l *logger.Logger) *Router {
	return &Router{
		hub:      hub,
		chatSvc:  chatSvc,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: l.WithComponent("ws-router"),
	}
}

// ServeWS authenticates the handshake and upgrades the connection.
// A bad token rejects the connection before any event is processed.
func (r *Router) ServeWS(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "missing token"})
		return
	}

	claims, err := r.verifier.ValidateToken(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "invalid token"})
		return
	}

	conn, err := r.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		r.logger.Error(err, "websocket upgrade failed")
		return
	}

	s := newSession(claims, conn)
	r.hub.Register(s)

	go s.writePump()
	go s.readPump(r)
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.Split(h, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	return c.Query("token")
}

// dispatch routes one inbound frame. Unknown events and malformed
// frames produce an error event on the offending session only.
func (r *Router) dispatch(s *Session, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.enqueue(errorFrame(ReasonInvalidInput))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	switch env.Event {
	case EventJoinConversation:
		r.handleJoin(ctx, s, env.Payload)
	case EventLeaveConversation:
		r.handleLeave(s, env.Payload)
	case EventSendMessage:
		r.handleSend(ctx, s, env.Payload)
	default:
		s.enqueue(errorFrame(ReasonInvalidInput))
	}
}

func (r *Router) handleJoin(ctx context.Context, s *Session, payload json.RawMessage) {
	var p JoinPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.enqueue(errorFrame(ReasonInvalidInput))
		return
	}
	if p.ConversationID == uuid.Nil || p.UserID == uuid.Nil {
		s.enqueue(errorFrame(ReasonInvalidInput))
		return
	}

	// The join is made on behalf of the connection's verified identity,
	// never a claimed one.
	if p.UserID != s.identity.UserID {
		s.enqueue(errorFrame(ReasonAccessDenied))
		return
	}

	if err := r.chatSvc.CheckJoin(ctx, p.ConversationID, p.UserID); err != nil {
		r.logger.Error(err, "join rejected")
		s.enqueue(errorFrame(reasonFor(err, ReasonJoinFailed)))
		return
	}

	r.hub.Join(s, p.ConversationID)
	s.enqueue(joinedFrame(p.ConversationID))
}

func (r *Router) handleLeave(s *Session, payload json.RawMessage) {
	var p JoinPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.ConversationID == uuid.Nil {
		s.enqueue(errorFrame(ReasonInvalidInput))
		return
	}
	r.hub.Leave(s, p.ConversationID)
}

func (r *Router) handleSend(ctx context.Context, s *Session, payload json.RawMessage) {
	var input model.SendMessageInput
	if err := json.Unmarshal(payload, &input); err != nil {
		s.enqueue(errorFrame(ReasonInvalidInput))
		return
	}

	msg, err := r.chatSvc.SendMessage(ctx, s.identity, &input)
	if err != nil {
		r.logger.Error(err, "send rejected")
		s.enqueue(errorFrame(reasonFor(err, ReasonSendFailed)))
		return
	}

	r.hub.Broadcast(msg.ConversationID, messageFrame(msg))
}

// reasonFor maps the error taxonomy to the fixed client-facing strings;
// anything unclassified falls back to a generic reason.
func reasonFor(err error, fallback string) string {
	switch apperrors.CodeOf(err) {
	case apperrors.ErrValidation:
		return ReasonInvalidInput
	case apperrors.ErrNotFound:
		return ReasonConversationGone
	case apperrors.ErrConflict:
		return ReasonConversationClosed
	case apperrors.ErrForbidden:
		return ReasonAccessDenied
	default:
		return fallback
	}
}

// enqueue queues a frame for the session, dropping it if the session
// is gone or the buffer is full rather than blocking the dispatcher.
func (s *Session) enqueue(frame []byte) {
	select {
	case <-s.done:
	case s.send <- frame:
	default:
	}
}
