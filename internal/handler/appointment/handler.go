package appointment

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medivisit/telehealth-api/internal/handler"
	"github.com/medivisit/telehealth-api/internal/middleware"
	"github.com/medivisit/telehealth-api/internal/model"
	"github.com/medivisit/telehealth-api/internal/service/appointment"
)

type Handler struct {
	service *appointment.Service
}

func NewHandler(service *appointment.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	grp := r.Group("/appointments")
	grp.Use(auth.Authenticate())
	{
		grp.GET("", h.ListAvailable)
		grp.GET("/booked", auth.RequireRole(model.UserRolePatient), h.ListBooked)
		grp.POST("/:id/requests", auth.RequireRole(model.UserRolePatient), h.SubmitRequest)

		doctor := grp.Group("", auth.RequireRole(model.UserRoleDoctor))
		{
			doctor.POST("", h.Create)
			doctor.GET("/mine", h.ListMine)
			doctor.PATCH("/:id", h.Update)
			doctor.DELETE("/:id", h.Delete)
			doctor.GET("/:id/requests", h.ListRequests)
			doctor.POST("/requests/confirm", h.ConfirmRequest)
			doctor.POST("/requests/:id/reject", h.RejectRequest)
			doctor.POST("/:id/close", h.Close)
			doctor.PATCH("/:id/payment", h.RecordPayment)
		}
	}
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	apt, err := h.service.Create(c.Request.Context(), middleware.CallerID(c), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(apt))
}

func (h *Handler) ListAvailable(c *gin.Context) {
	appointments, err := h.service.ListAvailable(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewListResponse(appointments, len(appointments)))
}

func (h *Handler) ListMine(c *gin.Context) {
	appointments, err := h.service.ListForDoctor(c.Request.Context(), middleware.CallerID(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewListResponse(appointments, len(appointments)))
}

func (h *Handler) ListBooked(c *gin.Context) {
	appointments, err := h.service.ListForPatient(c.Request.Context(), middleware.CallerID(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewListResponse(appointments, len(appointments)))
}

func (h *Handler) SubmitRequest(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid appointment ID"))
		return
	}

	var req model.SubmitRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if err := h.service.SubmitRequest(c.Request.Context(), id, middleware.CallerID(c), req.Message); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"message": "request submitted"}))
}

func (h *Handler) ListRequests(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid appointment ID"))
		return
	}

	requests, err := h.service.ListRequests(c.Request.Context(), middleware.CallerID(c), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewListResponse(requests, len(requests)))
}

func (h *Handler) ConfirmRequest(c *gin.Context) {
	var req model.ConfirmRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	conv, err := h.service.ConfirmRequest(c.Request.Context(), middleware.CallerID(c), req.UserID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"message":      "appointment confirmed and conversation started",
		"conversation": conv,
	}))
}

func (h *Handler) RejectRequest(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request ID"))
		return
	}

	if err := h.service.RejectRequest(c.Request.Context(), middleware.CallerID(c), id); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"message": "request rejected"}))
}

func (h *Handler) Close(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid appointment ID"))
		return
	}

	if err := h.service.Close(c.Request.Context(), middleware.CallerID(c), id); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"message": "appointment closed and conversation ended"}))
}

func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid appointment ID"))
		return
	}

	var req model.UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	apt, err := h.service.Update(c.Request.Context(), middleware.CallerID(c), id, &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(apt))
}

func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid appointment ID"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), middleware.CallerID(c), id); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) RecordPayment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid appointment ID"))
		return
	}

	var req model.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if err := h.service.RecordPayment(c.Request.Context(), middleware.CallerID(c), id, req.PaymentRef); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"message": "payment recorded"}))
}
