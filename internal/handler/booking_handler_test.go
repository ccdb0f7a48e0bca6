package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"event-ticketing/internal/middleware"
	"event-ticketing/internal/mocks/services"
	"event-ticketing/internal/model"
	apperrors "event-ticketing/pkg/app_errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupBookingTestRouter(mockService *services.BookingServiceMock) *gin.Engine {
	router := newTestEngine()
	NewBookingHandler(mockService).RegisterRoutes(router, middleware.Authenticate(testSecret))
	return router
}

func TestBookingHandler_Reserve(t *testing.T) {
	eventID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		mockService := services.NewBookingServiceMock()
		router := setupBookingTestRouter(mockService)

		booking := &model.Booking{
			ID:         uuid.New(),
			EventID:    eventID,
			UserID:     "user-1",
			Quantity:   2,
			TotalPrice: decimal.RequireFromString("20.00"),
			Status:     model.BookingStatusConfirmed,
		}
		mockService.On("Reserve", mock.Anything, eventID, "user-1", 2).Return(booking, nil).Once()

		w := perform(router, http.MethodPost, "/api/v1/bookings", tokenFor(t, "user-1", model.RoleUser),
			model.CreateBookingRequest{EventID: eventID.String(), Quantity: 2})

		assert.Equal(t, http.StatusCreated, w.Code)
		var got model.Booking
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, booking.ID, got.ID)
		assert.True(t, got.TotalPrice.Equal(booking.TotalPrice))
		mockService.AssertExpectations(t)
	})

	errorCases := []struct {
		name   string
		err    error
		status int
	}{
		{"Failed - EventNotFound", apperrors.ErrEventNotFound, http.StatusNotFound},
		{"Failed - NotBookable", apperrors.ErrEventNotBookable, http.StatusBadRequest},
		{"Failed - Insufficient", apperrors.ErrInsufficientTickets, http.StatusBadRequest},
		{"Failed - InvalidQuantity", apperrors.ErrInvalidQuantity, http.StatusBadRequest},
		{"Failed - Unexpected", errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			mockService := services.NewBookingServiceMock()
			router := setupBookingTestRouter(mockService)
			mockService.On("Reserve", mock.Anything, eventID, "user-1", 1).Return(nil, tc.err).Once()

			w := perform(router, http.MethodPost, "/api/v1/bookings", tokenFor(t, "user-1", model.RoleUser),
				model.CreateBookingRequest{EventID: eventID.String(), Quantity: 1})

			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
			mockService.AssertExpectations(t)
		})
	}

	t.Run("Failed - Invalid JSON", func(t *testing.T) {
		mockService := services.NewBookingServiceMock()
		router := setupBookingTestRouter(mockService)

		w := perform(router, http.MethodPost, "/api/v1/bookings", tokenFor(t, "user-1", model.RoleUser), InvalidJSON)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockService.AssertNotCalled(t, "Reserve")
	})

	t.Run("Failed - Fractional Quantity", func(t *testing.T) {
		mockService := services.NewBookingServiceMock()
		router := setupBookingTestRouter(mockService)

		for _, quantity := range []string{"1.5", `"2"`} {
			body := `{"event_id":"` + eventID.String() + `","quantity":` + quantity + `}`
			w := perform(router, http.MethodPost, "/api/v1/bookings", tokenFor(t, "user-1", model.RoleUser), body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"error":"Quantity must be a positive integer"}`, w.Body.String())
		}
		mockService.AssertNotCalled(t, "Reserve")
	})

	t.Run("Failed - Invalid EventID", func(t *testing.T) {
		mockService := services.NewBookingServiceMock()
		router := setupBookingTestRouter(mockService)

		w := perform(router, http.MethodPost, "/api/v1/bookings", tokenFor(t, "user-1", model.RoleUser),
			model.CreateBookingRequest{EventID: "not-a-uuid", Quantity: 1})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockService.AssertNotCalled(t, "Reserve")
	})

	t.Run("Failed - Unauthenticated", func(t *testing.T) {
		mockService := services.NewBookingServiceMock()
		router := setupBookingTestRouter(mockService)

		w := perform(router, http.MethodPost, "/api/v1/bookings", "",
			model.CreateBookingRequest{EventID: eventID.String(), Quantity: 1})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Failed - Role Cannot Book", func(t *testing.T) {
		mockService := services.NewBookingServiceMock()
		router := setupBookingTestRouter(mockService)

		w := perform(router, http.MethodPost, "/api/v1/bookings", tokenFor(t, "org-1", model.RoleOrganizer),
			model.CreateBookingRequest{EventID: eventID.String(), Quantity: 1})

		assert.Equal(t, http.StatusForbidden, w.Code)
		mockService.AssertNotCalled(t, "Reserve")
	})
}

func TestBookingHandler_Cancel(t *testing.T) {
	bookingID := uuid.New()
	url := "/api/v1/bookings/" + bookingID.String()

	t.Run("Success", func(t *testing.T) {
		mockService := services.NewBookingServiceMock()
		router := setupBookingTestRouter(mockService)
		mockService.On("Cancel", mock.Anything, bookingID, "user-1").Return(nil).Once()

		w := perform(router, http.MethodDelete, url, tokenFor(t, "user-1", model.RoleUser), nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"cancelled"`)
		mockService.AssertExpectations(t)
	})

	errorCases := []struct {
		name   string
		err    error
		status int
	}{
		{"Failed - NotFound", apperrors.ErrBookingNotFound, http.StatusNotFound},
		{"Failed - Forbidden", apperrors.ErrForbidden, http.StatusForbidden},
		{"Failed - AlreadyCancelled", apperrors.ErrAlreadyCancelled, http.StatusConflict},
		{"Failed - Unexpected", errors.New("restock tickets: timeout"), http.StatusInternalServerError},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			mockService := services.NewBookingServiceMock()
			router := setupBookingTestRouter(mockService)
			mockService.On("Cancel", mock.Anything, bookingID, "user-1").Return(tc.err).Once()

			w := perform(router, http.MethodDelete, url, tokenFor(t, "user-1", model.RoleUser), nil)

			assert.Equal(t, tc.status, w.Code)
			assert.NotContains(t, w.Body.String(), "Booking cancelled")
			mockService.AssertExpectations(t)
		})
	}

	t.Run("Failed - Invalid ID", func(t *testing.T) {
		mockService := services.NewBookingServiceMock()
		router := setupBookingTestRouter(mockService)

		w := perform(router, http.MethodDelete, "/api/v1/bookings/abc", tokenFor(t, "user-1", model.RoleUser), nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockService.AssertNotCalled(t, "Cancel")
	})
}

func TestBookingHandler_Get(t *testing.T) {
	bookingID := uuid.New()
	url := "/api/v1/bookings/" + bookingID.String()

	t.Run("Success", func(t *testing.T) {
		mockService := services.NewBookingServiceMock()
		router := setupBookingTestRouter(mockService)
		mockService.On("GetBooking", mock.Anything, bookingID, "user-1").
			Return(&model.Booking{ID: bookingID, UserID: "user-1", Quantity: 1}, nil).Once()

		w := perform(router, http.MethodGet, url, tokenFor(t, "user-1", model.RoleUser), nil)

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("Failed - Forbidden", func(t *testing.T) {
		mockService := services.NewBookingServiceMock()
		router := setupBookingTestRouter(mockService)
		mockService.On("GetBooking", mock.Anything, bookingID, "user-2").Return(nil, apperrors.ErrForbidden).Once()

		w := perform(router, http.MethodGet, url, tokenFor(t, "user-2", model.RoleUser), nil)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestBookingHandler_List(t *testing.T) {
	mockService := services.NewBookingServiceMock()
	router := setupBookingTestRouter(mockService)
	mockService.On("ListUserBookings", mock.Anything, "user-1").Return([]*model.Booking{
		{ID: uuid.New(), UserID: "user-1", Quantity: 1},
		{ID: uuid.New(), UserID: "user-1", Quantity: 2},
	}, nil).Once()

	w := perform(router, http.MethodGet, "/api/v1/bookings", tokenFor(t, "user-1", model.RoleUser), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var got []model.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got, 2)
	mockService.AssertExpectations(t)
}
