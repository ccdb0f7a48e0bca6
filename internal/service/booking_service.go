package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"event-ticketing/internal/model"
	"event-ticketing/internal/monitoring"
	"event-ticketing/internal/queue"
	"event-ticketing/internal/repository"
	apperrors "event-ticketing/pkg/app_errors"
	"event-ticketing/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BookingService interface {
	// Reserve 扣庫存並建立訂票；任何失敗都不留下狀態
	Reserve(ctx context.Context, eventID uuid.UUID, requesterID string, quantity int) (*model.Booking, error)
	// Cancel 只有擁有者能取消，票數只回補一次
	Cancel(ctx context.Context, bookingID uuid.UUID, requesterID string) error
	GetBooking(ctx context.Context, bookingID uuid.UUID, requesterID string) (*model.Booking, error)
	ListUserBookings(ctx context.Context, requesterID string) ([]*model.Booking, error)
}

type BookingServiceImpl struct {
	inventory repository.TicketInventory
	bookings  repository.BookingRepository
	queue     queue.BookingQueue // 可為 nil，不發送通知
	log       *zap.Logger
}

func NewBookingService(
	inventory repository.TicketInventory,
	bookings repository.BookingRepository,
	bookingQueue queue.BookingQueue,
) BookingService {
	return &BookingServiceImpl{
		inventory: inventory,
		bookings:  bookings,
		queue:     bookingQueue,
		log:       logger.WithComponent("service"),
	}
}

func (s *BookingServiceImpl) Reserve(ctx context.Context, eventID uuid.UUID, requesterID string, quantity int) (booking *model.Booking, err error) {
	start := time.Now()
	defer func() {
		monitoring.TrackBookingOperation(monitoring.OperationReserve, start, err)
	}()

	if requesterID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	if quantity < 1 {
		return nil, apperrors.ErrInvalidQuantity
	}

	// 1. 原子扣減：檢查狀態、檢查庫存、扣減在同一個操作內完成
	price, err := s.inventory.DecrementTickets(ctx, eventID, quantity)
	if err != nil {
		return nil, err
	}

	// 2. 建立訂票，總價以扣減當下讀到的票價計算
	booking, err = s.bookings.Create(ctx, &model.Booking{
		ID:         uuid.New(),
		EventID:    eventID,
		UserID:     requesterID,
		Quantity:   quantity,
		TotalPrice: model.TotalPriceFor(price, quantity),
		Status:     model.BookingStatusConfirmed,
	})
	if err != nil {
		// 3. 寫入失敗，補回剛扣掉的票
		return nil, s.restockAfterFailedReserve(ctx, eventID, quantity, err)
	}

	monitoring.TrackTicketsReserved(quantity)
	s.publish(ctx, model.NotificationBookingConfirmed, booking)
	return booking, nil
}

// restockAfterFailedReserve 補償不受呼叫端取消影響，避免票數永久遺失
func (s *BookingServiceImpl) restockAfterFailedReserve(ctx context.Context, eventID uuid.UUID, quantity int, cause error) error {
	cause = fmt.Errorf("create booking: %w", cause)

	restockErr := s.inventory.IncrementTickets(context.WithoutCancel(ctx), eventID, quantity)
	monitoring.TrackCompensation(monitoring.CompensationRestock, restockErr)
	if restockErr != nil {
		s.log.Error("compensating restock failed",
			zap.String("event_id", eventID.String()),
			zap.Int("quantity", quantity),
			zap.NamedError("cause", cause),
			zap.Error(restockErr))
		return errors.Join(cause, fmt.Errorf("compensating restock: %v", restockErr))
	}
	return cause
}

func (s *BookingServiceImpl) Cancel(ctx context.Context, bookingID uuid.UUID, requesterID string) (err error) {
	start := time.Now()
	defer func() {
		monitoring.TrackBookingOperation(monitoring.OperationCancel, start, err)
	}()

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if !booking.OwnedBy(requesterID) {
		return apperrors.ErrForbidden
	}
	if booking.IsCancelled() {
		return apperrors.ErrAlreadyCancelled
	}

	// 條件式狀態轉換，並發取消時只有一個呼叫端會往下回補
	cancelled, err := s.bookings.MarkCancelled(ctx, bookingID)
	if err != nil {
		return err
	}

	if err := s.inventory.IncrementTickets(ctx, cancelled.EventID, cancelled.Quantity); err != nil {
		return s.revertAfterFailedRestock(ctx, cancelled, err)
	}

	monitoring.TrackTicketsRestocked(cancelled.Quantity)
	s.publish(ctx, model.NotificationBookingCancelled, cancelled)
	return nil
}

// revertAfterFailedRestock 回補失敗時還原取消，之後可以再取消一次
func (s *BookingServiceImpl) revertAfterFailedRestock(ctx context.Context, booking *model.Booking, cause error) error {
	cause = fmt.Errorf("restock tickets: %w", cause)

	revertErr := s.bookings.RevertCancellation(context.WithoutCancel(ctx), booking.ID)
	monitoring.TrackCompensation(monitoring.CompensationRevert, revertErr)
	if revertErr != nil {
		s.log.Error("reverting cancellation failed",
			zap.String("booking_id", booking.ID.String()),
			zap.String("event_id", booking.EventID.String()),
			zap.NamedError("cause", cause),
			zap.Error(revertErr))
		return errors.Join(cause, fmt.Errorf("revert cancellation: %v", revertErr))
	}
	return cause
}

func (s *BookingServiceImpl) GetBooking(ctx context.Context, bookingID uuid.UUID, requesterID string) (*model.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.OwnedBy(requesterID) {
		return nil, apperrors.ErrForbidden
	}
	return booking, nil
}

func (s *BookingServiceImpl) ListUserBookings(ctx context.Context, requesterID string) ([]*model.Booking, error) {
	if requesterID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	return s.bookings.FindByUserID(ctx, requesterID)
}

// publish 通知失敗只記錄，訂票本身已經成功
func (s *BookingServiceImpl) publish(ctx context.Context, t model.NotificationType, booking *model.Booking) {
	if s.queue == nil {
		return
	}
	if err := s.queue.Publish(context.WithoutCancel(ctx), model.NewBookingNotification(t, booking)); err != nil {
		s.log.Warn("publish notification failed",
			zap.String("type", string(t)),
			zap.String("booking_id", booking.ID.String()),
			zap.Error(err))
		monitoring.TrackNotification(string(t), "publish_failed")
	}
}
