package chat

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medivisit/telehealth-api/internal/handler"
	"github.com/medivisit/telehealth-api/internal/middleware"
	"github.com/medivisit/telehealth-api/internal/model"
	"github.com/medivisit/telehealth-api/internal/service/chat"
)

// Handler exposes the conversation read API. Message writes go through
// the realtime layer only.
type Handler struct {
	service *chat.Service
}

func NewHandler(service *chat.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	grp := r.Group("/chat")
	grp.Use(auth.Authenticate())
	{
		grp.GET("/conversations", h.ListConversations)
		grp.GET("/conversations/:id/messages", h.ListMessages)
		grp.POST("/conversations/:id/read", h.MarkRead)
	}
}

func (h *Handler) ListConversations(c *gin.Context) {
	conversations, err := h.service.ListConversations(c.Request.Context(), middleware.CallerID(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewListResponse(conversations, len(conversations)))
}

func (h *Handler) ListMessages(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid conversation ID"))
		return
	}

	var p model.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	messages, err := h.service.ListMessages(c.Request.Context(), id, middleware.CallerID(c), p)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewListResponse(messages, len(messages)))
}

func (h *Handler) MarkRead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid conversation ID"))
		return
	}

	updated, err := h.service.MarkRead(c.Request.Context(), id, middleware.CallerID(c))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"updated": updated}))
}
