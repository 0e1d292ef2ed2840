package chat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medivisit/telehealth-api/internal/middleware"
	"github.com/medivisit/telehealth-api/internal/model"
	"github.com/medivisit/telehealth-api/internal/service/chat"
	"github.com/medivisit/telehealth-api/internal/service/conversation"
	apperrors "github.com/medivisit/telehealth-api/pkg/errors"
	"github.com/medivisit/telehealth-api/pkg/logger"
)

type fakeConversationRepo struct {
	byID map[uuid.UUID]*model.Conversation
}

func (r *fakeConversationRepo) CreateIfAbsent(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
	conv.ID = uuid.New()
	r.byID[conv.ID] = conv
	return conv, nil
}

func (r *fakeConversationRepo) Get(ctx context.Context, id uuid.UUID) (*model.Conversation, error) {
	conv, ok := r.byID[id]
	if !ok {
		return nil, apperrors.NotFound("conversation", nil)
	}
	return conv, nil
}

func (r *fakeConversationRepo) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Conversation, error) {
	for _, c := range r.byID {
		if c.AppointmentID == appointmentID {
			return c, nil
		}
	}
	return nil, apperrors.NotFound("conversation", nil)
}

func (r *fakeConversationRepo) SetClosed(ctx context.Context, appointmentID uuid.UUID) error {
	return nil
}

func (r *fakeConversationRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.Conversation, error) {
	var out []*model.Conversation
	for _, c := range r.byID {
		if c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeMessageRepo struct {
	messages []*model.Message
}

func (r *fakeMessageRepo) Create(ctx context.Context, msg *model.Message) error {
	msg.ID = uuid.New()
	msg.SentAt = time.Now()
	r.messages = append(r.messages, msg)
	return nil
}

func (r *fakeMessageRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID, p model.Pagination) ([]*model.Message, error) {
	var out []*model.Message
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) MarkRead(ctx context.Context, conversationID, receiverID uuid.UUID) (int64, error) {
	var n int64
	for _, m := range r.messages {
		if m.ConversationID == conversationID && m.ReceiverID == receiverID && !m.IsRead {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

type testEnv struct {
	engine   *gin.Engine
	conv     *model.Conversation
	messages *fakeMessageRepo
	doctor   uuid.UUID
	patient  uuid.UUID
	caller   *model.TokenClaims
}

// identityStub injects the caller claims directly, standing in for the
// bearer-token middleware.
func (e *testEnv) identityStub() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextClaims, e.caller)
		c.Next()
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	doctor := uuid.New()
	patient := uuid.New()
	conv := &model.Conversation{
		ID:            uuid.New(),
		AppointmentID: uuid.New(),
		DoctorID:      doctor,
		PatientID:     patient,
	}

	convRepo := &fakeConversationRepo{byID: map[uuid.UUID]*model.Conversation{conv.ID: conv}}
	messages := &fakeMessageRepo{}

	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	svc := chat.NewService(messages, conversation.NewService(convRepo), nil, "test", log)

	env := &testEnv{
		conv:     conv,
		messages: messages,
		doctor:   doctor,
		patient:  patient,
		caller:   &model.TokenClaims{UserID: patient, Role: model.UserRolePatient},
	}

	engine := gin.New()
	engine.Use(middleware.RequestID(), middleware.ErrorHandler(log.Zerolog()), env.identityStub())

	h := NewHandler(svc)
	grp := engine.Group("/api/v1/chat")
	{
		grp.GET("/conversations", h.ListConversations)
		grp.GET("/conversations/:id/messages", h.ListMessages)
		grp.POST("/conversations/:id/read", h.MarkRead)
	}

	env.engine = engine
	return env
}

func (e *testEnv) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	return rec
}

func TestListConversations(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/chat/conversations")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status  string                `json:"status"`
		Data    []*model.Conversation `json:"data"`
		Results int                   `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	require.Equal(t, 1, body.Results)
	assert.Equal(t, env.conv.ID, body.Data[0].ID)
}

func TestListMessages(t *testing.T) {
	env := newTestEnv(t)
	env.messages.messages = append(env.messages.messages, &model.Message{
		ID:             uuid.New(),
		ConversationID: env.conv.ID,
		SenderID:       env.doctor,
		ReceiverID:     env.patient,
		Content:        "results look good",
	})

	rec := env.do(t, http.MethodGet, "/api/v1/chat/conversations/"+env.conv.ID.String()+"/messages")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []*model.Message `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "results look good", body.Data[0].Content)
}

func TestListMessages_NonParticipantForbidden(t *testing.T) {
	env := newTestEnv(t)
	env.caller = &model.TokenClaims{UserID: uuid.New(), Role: model.UserRolePatient}

	rec := env.do(t, http.MethodGet, "/api/v1/chat/conversations/"+env.conv.ID.String()+"/messages")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListMessages_BadID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/chat/conversations/not-a-uuid/messages")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkRead(t *testing.T) {
	env := newTestEnv(t)
	env.messages.messages = append(env.messages.messages, &model.Message{
		ID:             uuid.New(),
		ConversationID: env.conv.ID,
		SenderID:       env.doctor,
		ReceiverID:     env.patient,
		Content:        "ping",
	})

	rec := env.do(t, http.MethodPost, "/api/v1/chat/conversations/"+env.conv.ID.String()+"/read")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Updated int64 `json:"updated"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.Data.Updated)
	assert.True(t, env.messages.messages[0].IsRead)
}
