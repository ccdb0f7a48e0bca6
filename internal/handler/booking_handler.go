package handler

import (
	"net/http"

	"event-ticketing/internal/middleware"
	"event-ticketing/internal/model"
	"event-ticketing/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type BookingHandler struct {
	service service.BookingService
}

func NewBookingHandler(service service.BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// RegisterRoutes auth 為驗證中介層，所有訂票路由都需要登入
func (h *BookingHandler) RegisterRoutes(r *gin.Engine, auth gin.HandlerFunc) {
	router := r.Group("/api/v1/bookings", auth)
	{
		router.POST("", middleware.RequireCapability(model.CapBookTickets), h.Reserve)
		router.GET("", h.List)
		router.GET("/:id", h.Get)
		router.DELETE("/:id", h.Cancel)
	}
}

func (h *BookingHandler) Reserve(c *gin.Context) {
	identity, ok := requester(c)
	if !ok {
		return
	}

	var req model.CreateBookingRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event_id"})
		return
	}

	booking, err := h.service.Reserve(c.Request.Context(), eventID, identity.UserID, req.Quantity)
	if err != nil {
		handleError(c, err, "Reserve")
		return
	}
	c.JSON(http.StatusCreated, booking)
}

func (h *BookingHandler) List(c *gin.Context) {
	identity, ok := requester(c)
	if !ok {
		return
	}

	bookings, err := h.service.ListUserBookings(c.Request.Context(), identity.UserID)
	if err != nil {
		handleError(c, err, "List")
		return
	}
	c.JSON(http.StatusOK, bookings)
}

func (h *BookingHandler) Get(c *gin.Context) {
	identity, ok := requester(c)
	if !ok {
		return
	}
	var uri IDUri
	if err := BindUri(c, &uri); err != nil {
		return
	}

	booking, err := h.service.GetBooking(c.Request.Context(), uuid.MustParse(uri.ID), identity.UserID)
	if err != nil {
		handleError(c, err, "Get")
		return
	}
	c.JSON(http.StatusOK, booking)
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	identity, ok := requester(c)
	if !ok {
		return
	}
	var uri IDUri
	if err := BindUri(c, &uri); err != nil {
		return
	}

	bookingID := uuid.MustParse(uri.ID)
	if err := h.service.Cancel(c.Request.Context(), bookingID, identity.UserID); err != nil {
		handleError(c, err, "Cancel")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":      bookingID,
		"status":  model.BookingStatusCancelled,
		"message": "Booking cancelled",
	})
}
