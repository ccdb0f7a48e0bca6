package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"event-ticketing/internal/model"
	apperrors "event-ticketing/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			events, bookings := b.bookings(t)
			event, err := events.Create(ctx, newTestEvent(model.EventStatusApproved, 10, 10, "10.00"))
			require.NoError(t, err)

			booking := newTestBooking(event.ID, "user-1", 2)
			created, err := bookings.Create(ctx, booking)
			require.NoError(t, err)
			assert.Equal(t, booking.ID, created.ID)
			assert.Equal(t, model.BookingStatusConfirmed, created.Status)
			assert.Nil(t, created.CancelledAt)

			found, err := bookings.FindByID(ctx, booking.ID)
			require.NoError(t, err)
			assert.Equal(t, 2, found.Quantity)
			assert.True(t, found.TotalPrice.Equal(booking.TotalPrice))

			_, err = bookings.FindByID(ctx, uuid.New())
			assert.ErrorIs(t, err, apperrors.ErrBookingNotFound)
		})
	}
}

func TestBookingRepository_FindByUserAndEvent(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			events, bookings := b.bookings(t)
			event, err := events.Create(ctx, newTestEvent(model.EventStatusApproved, 10, 10, "10.00"))
			require.NoError(t, err)
			other, err := events.Create(ctx, newTestEvent(model.EventStatusApproved, 10, 10, "10.00"))
			require.NoError(t, err)

			older, err := bookings.Create(ctx, newTestBooking(event.ID, "user-1", 1))
			require.NoError(t, err)
			time.Sleep(5 * time.Millisecond)
			newer, err := bookings.Create(ctx, newTestBooking(other.ID, "user-1", 2))
			require.NoError(t, err)
			_, err = bookings.Create(ctx, newTestBooking(event.ID, "user-2", 1))
			require.NoError(t, err)

			mine, err := bookings.FindByUserID(ctx, "user-1")
			require.NoError(t, err)
			require.Len(t, mine, 2)
			assert.Equal(t, newer.ID, mine[0].ID)
			assert.Equal(t, older.ID, mine[1].ID)

			forEvent, err := bookings.FindByEventID(ctx, event.ID)
			require.NoError(t, err)
			assert.Len(t, forEvent, 2)

			none, err := bookings.FindByUserID(ctx, "nobody")
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestBookingRepository_MarkCancelled(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			events, bookings := b.bookings(t)
			event, err := events.Create(ctx, newTestEvent(model.EventStatusApproved, 10, 10, "10.00"))
			require.NoError(t, err)
			booking, err := bookings.Create(ctx, newTestBooking(event.ID, "user-1", 2))
			require.NoError(t, err)

			cancelled, err := bookings.MarkCancelled(ctx, booking.ID)
			require.NoError(t, err)
			assert.Equal(t, model.BookingStatusCancelled, cancelled.Status)
			assert.NotNil(t, cancelled.CancelledAt)

			_, err = bookings.MarkCancelled(ctx, booking.ID)
			assert.ErrorIs(t, err, apperrors.ErrAlreadyCancelled)

			_, err = bookings.MarkCancelled(ctx, uuid.New())
			assert.ErrorIs(t, err, apperrors.ErrBookingNotFound)
		})
	}
}

func TestBookingRepository_RevertCancellation(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			events, bookings := b.bookings(t)
			event, err := events.Create(ctx, newTestEvent(model.EventStatusApproved, 10, 10, "10.00"))
			require.NoError(t, err)
			booking, err := bookings.Create(ctx, newTestBooking(event.ID, "user-1", 2))
			require.NoError(t, err)

			// 未取消的訂票不能還原
			assert.ErrorIs(t, bookings.RevertCancellation(ctx, booking.ID), apperrors.ErrBookingNotFound)

			_, err = bookings.MarkCancelled(ctx, booking.ID)
			require.NoError(t, err)
			require.NoError(t, bookings.RevertCancellation(ctx, booking.ID))

			found, err := bookings.FindByID(ctx, booking.ID)
			require.NoError(t, err)
			assert.Equal(t, model.BookingStatusConfirmed, found.Status)
			assert.Nil(t, found.CancelledAt)
		})
	}
}

func TestBookingRepository_ConcurrentMarkCancelled(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			events, bookings := b.bookings(t)
			event, err := events.Create(ctx, newTestEvent(model.EventStatusApproved, 10, 10, "10.00"))
			require.NoError(t, err)
			booking, err := bookings.Create(ctx, newTestBooking(event.ID, "user-1", 2))
			require.NoError(t, err)

			var wg sync.WaitGroup
			var success, already int64
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := bookings.MarkCancelled(ctx, booking.ID)
					switch {
					case err == nil:
						atomic.AddInt64(&success, 1)
					case errors.Is(err, apperrors.ErrAlreadyCancelled):
						atomic.AddInt64(&already, 1)
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, int64(1), success)
			assert.Equal(t, int64(19), already)
		})
	}
}
