package services

import (
	"context"

	"event-ticketing/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type BookingServiceMock struct {
	mock.Mock
}

func NewBookingServiceMock() *BookingServiceMock {
	return &BookingServiceMock{}
}

func (m *BookingServiceMock) Reserve(ctx context.Context, eventID uuid.UUID, requesterID string, quantity int) (*model.Booking, error) {
	args := m.Called(ctx, eventID, requesterID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *BookingServiceMock) Cancel(ctx context.Context, bookingID uuid.UUID, requesterID string) error {
	args := m.Called(ctx, bookingID, requesterID)
	return args.Error(0)
}

func (m *BookingServiceMock) GetBooking(ctx context.Context, bookingID uuid.UUID, requesterID string) (*model.Booking, error) {
	args := m.Called(ctx, bookingID, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *BookingServiceMock) ListUserBookings(ctx context.Context, requesterID string) ([]*model.Booking, error) {
	args := m.Called(ctx, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Booking), args.Error(1)
}
