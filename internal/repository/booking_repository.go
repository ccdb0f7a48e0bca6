package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"event-ticketing/internal/model"
	apperrors "event-ticketing/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) (*model.Booking, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	FindByUserID(ctx context.Context, userID string) ([]*model.Booking, error)
	FindByEventID(ctx context.Context, eventID uuid.UUID) ([]*model.Booking, error)

	// MarkCancelled 條件式 confirmed -> cancelled，只有一個呼叫端能成功
	MarkCancelled(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	// RevertCancellation 回補庫存失敗時的補償，cancelled -> confirmed
	RevertCancellation(ctx context.Context, id uuid.UUID) error
}

type BookingRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) BookingRepository {
	return &BookingRepositoryImpl{
		pool: pool,
	}
}

const bookingColumns = `id, event_id, user_id, quantity, total_price, status,
		created_at, updated_at, cancelled_at`

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var booking model.Booking
	err := row.Scan(
		&booking.ID,
		&booking.EventID,
		&booking.UserID,
		&booking.Quantity,
		&booking.TotalPrice,
		&booking.Status,
		&booking.CreatedAt,
		&booking.UpdatedAt,
		&booking.CancelledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (r *BookingRepositoryImpl) Create(ctx context.Context, booking *model.Booking) (*model.Booking, error) {
	query := `
		INSERT INTO bookings (id, event_id, user_id, quantity, total_price, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + bookingColumns

	created, err := scanBooking(r.pool.QueryRow(ctx, query,
		booking.ID, booking.EventID, booking.UserID, booking.Quantity, booking.TotalPrice, booking.Status,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	return created, nil
}

func (r *BookingRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	return scanBooking(r.pool.QueryRow(ctx, query, id))
}

func (r *BookingRepositoryImpl) FindByUserID(ctx context.Context, userID string) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, userID)
}

func (r *BookingRepositoryImpl) FindByEventID(ctx context.Context, eventID uuid.UUID) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE event_id = $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, eventID)
}

func (r *BookingRepositoryImpl) list(ctx context.Context, query string, args ...interface{}) ([]*model.Booking, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]*model.Booking, 0)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bookings, nil
}

func (r *BookingRepositoryImpl) MarkCancelled(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	query := `
		UPDATE bookings
		SET status = $1, cancelled_at = $2, updated_at = $2
		WHERE id = $3 AND status = $4
		RETURNING ` + bookingColumns

	now := time.Now().UTC()
	booking, err := scanBooking(r.pool.QueryRow(ctx, query,
		model.BookingStatusCancelled, now, id, model.BookingStatusConfirmed,
	))
	if err == nil {
		return booking, nil
	}
	if !errors.Is(err, apperrors.ErrBookingNotFound) {
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}

	// 沒有命中：訂票不存在，或已被其他請求取消
	if _, err := r.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, apperrors.ErrAlreadyCancelled
}

func (r *BookingRepositoryImpl) RevertCancellation(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE bookings
		SET status = $1, cancelled_at = NULL, updated_at = $2
		WHERE id = $3 AND status = $4
	`

	result, err := r.pool.Exec(ctx, query,
		model.BookingStatusConfirmed, time.Now().UTC(), id, model.BookingStatusCancelled,
	)
	if err != nil {
		return fmt.Errorf("failed to revert cancellation: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrBookingNotFound
	}

	return nil
}
