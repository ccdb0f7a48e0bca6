package handler

import (
	"net/http"
	"time"

	"event-ticketing/internal/middleware"
	"event-ticketing/internal/model"
	"event-ticketing/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventHandler struct {
	service service.EventService
}

func NewEventHandler(service service.EventService) *EventHandler {
	return &EventHandler{service: service}
}

func (h *EventHandler) RegisterRoutes(r *gin.Engine, auth gin.HandlerFunc) {
	router := r.Group("/api/v1/events")
	{
		router.GET("", h.List)
		router.GET("/:id", h.GetByID)
		router.POST("", auth, middleware.RequireCapability(model.CapCreateEvent), h.Create)
		router.PUT("/:id/status", auth, middleware.RequireCapability(model.CapReviewEvent), h.Review)
	}
}

// CreateEventRequest 建立活動請求
type CreateEventRequest struct {
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description"`
	Location    string          `json:"location"`
	StartsAt    time.Time       `json:"starts_at" binding:"required"`
	TicketPrice decimal.Decimal `json:"ticket_price"`
	Capacity    *int            `json:"capacity" binding:"required"`
}

// ReviewEventRequest 審核活動請求
type ReviewEventRequest struct {
	Status model.EventStatus `json:"status" binding:"required"`
}

type ListEventsQuery struct {
	Status string `form:"status"`
}

func (h *EventHandler) List(c *gin.Context) {
	var query ListEventsQuery
	if err := BindQuery(c, &query); err != nil {
		return
	}

	var status *model.EventStatus
	if query.Status != "" {
		s := model.EventStatus(query.Status)
		status = &s
	}

	events, err := h.service.List(c.Request.Context(), status)
	if err != nil {
		handleError(c, err, "ListEvents")
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *EventHandler) GetByID(c *gin.Context) {
	var uri IDUri
	if err := BindUri(c, &uri); err != nil {
		return
	}

	event, err := h.service.GetByID(c.Request.Context(), uuid.MustParse(uri.ID))
	if err != nil {
		handleError(c, err, "GetEvent")
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *EventHandler) Create(c *gin.Context) {
	identity, ok := requester(c)
	if !ok {
		return
	}

	var req CreateEventRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	event, err := h.service.Create(c.Request.Context(), identity.UserID, model.CreateEventParams{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartsAt:    req.StartsAt,
		TicketPrice: req.TicketPrice,
		Capacity:    *req.Capacity,
	})
	if err != nil {
		handleError(c, err, "CreateEvent")
		return
	}
	c.JSON(http.StatusCreated, event)
}

func (h *EventHandler) Review(c *gin.Context) {
	var uri IDUri
	if err := BindUri(c, &uri); err != nil {
		return
	}
	var req ReviewEventRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	event, err := h.service.Review(c.Request.Context(), uuid.MustParse(uri.ID), req.Status)
	if err != nil {
		handleError(c, err, "ReviewEvent")
		return
	}
	c.JSON(http.StatusOK, event)
}
