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
	"github.com/shopspring/decimal"
)

// TicketInventory 活動剩餘票數的原子操作。
// 所有對 tickets_available 的變更都必須經過這兩個方法，不允許先讀再寫。
type TicketInventory interface {
	// DecrementTickets 活動已核准且剩餘票數足夠時扣減，回傳同一次操作讀到的票價
	DecrementTickets(ctx context.Context, eventID uuid.UUID, quantity int) (decimal.Decimal, error)
	// IncrementTickets 回補票數，不得超過活動原始容量
	IncrementTickets(ctx context.Context, eventID uuid.UUID, quantity int) error
}

type EventRepository interface {
	Create(ctx context.Context, event *model.Event) (*model.Event, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Event, error)
	List(ctx context.Context, status *model.EventStatus) ([]*model.Event, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.EventStatus) (*model.Event, error)

	TicketInventory
}

type EventRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) EventRepository {
	return &EventRepositoryImpl{
		pool: pool,
	}
}

const eventColumns = `id, organizer_id, title, description, location, starts_at,
		ticket_price, capacity, tickets_available, status, created_at, updated_at`

func scanEvent(row pgx.Row) (*model.Event, error) {
	var event model.Event
	err := row.Scan(
		&event.ID,
		&event.OrganizerID,
		&event.Title,
		&event.Description,
		&event.Location,
		&event.StartsAt,
		&event.TicketPrice,
		&event.Capacity,
		&event.TicketsAvailable,
		&event.Status,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (r *EventRepositoryImpl) Create(ctx context.Context, event *model.Event) (*model.Event, error) {
	query := `
		INSERT INTO events (
			id, organizer_id, title, description, location, starts_at,
			ticket_price, capacity, tickets_available, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + eventColumns

	created, err := scanEvent(r.pool.QueryRow(ctx, query,
		event.ID, event.OrganizerID, event.Title, event.Description, event.Location,
		event.StartsAt, event.TicketPrice, event.Capacity, event.TicketsAvailable, event.Status,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	return created, nil
}

func (r *EventRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	return scanEvent(r.pool.QueryRow(ctx, query, id))
}

func (r *EventRepositoryImpl) List(ctx context.Context, status *model.EventStatus) ([]*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events`
	args := []interface{}{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += ` ORDER BY starts_at ASC, created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*model.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

func (r *EventRepositoryImpl) UpdateStatus(ctx context.Context, id uuid.UUID, status model.EventStatus) (*model.Event, error) {
	query := `
		UPDATE events
		SET status = $1, updated_at = $2
		WHERE id = $3
		RETURNING ` + eventColumns

	return scanEvent(r.pool.QueryRow(ctx, query, status, time.Now().UTC(), id))
}

// DecrementTickets 條件式扣減：檢查與扣減在同一個 UPDATE 內完成，
// 同一列的並發扣減由 Postgres 的列鎖序列化，因此不會超賣。
func (r *EventRepositoryImpl) DecrementTickets(ctx context.Context, eventID uuid.UUID, quantity int) (decimal.Decimal, error) {
	if quantity < 1 {
		return decimal.Zero, apperrors.ErrInvalidQuantity
	}

	query := `
		UPDATE events
		SET tickets_available = tickets_available - $1, updated_at = $2
		WHERE id = $3 AND status = $4 AND tickets_available >= $1
		RETURNING ticket_price
	`

	var price decimal.Decimal
	err := r.pool.QueryRow(ctx, query, quantity, time.Now().UTC(), eventID, model.EventStatusApproved).Scan(&price)
	if err == nil {
		return price, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("decrement tickets: %w", err)
	}

	// 沒有任何列符合：唯讀查詢判斷失敗原因，不改變狀態
	event, err := r.FindByID(ctx, eventID)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.Zero, reserveFailure(event)
}

func (r *EventRepositoryImpl) IncrementTickets(ctx context.Context, eventID uuid.UUID, quantity int) error {
	if quantity < 1 {
		return apperrors.ErrInvalidQuantity
	}

	query := `
		UPDATE events
		SET tickets_available = tickets_available + $1, updated_at = $2
		WHERE id = $3 AND tickets_available + $1 <= capacity
	`

	result, err := r.pool.Exec(ctx, query, quantity, time.Now().UTC(), eventID)
	if err != nil {
		return fmt.Errorf("increment tickets: %w", err)
	}

	if result.RowsAffected() == 0 {
		if _, err := r.FindByID(ctx, eventID); err != nil {
			return err
		}
		return apperrors.ErrCapacityExceeded
	}

	return nil
}

// reserveFailure 條件式扣減沒有命中時的錯誤分類。
// 兩次讀取之間票數可能被回補，此時仍回報庫存不足，由呼叫端重試。
func reserveFailure(event *model.Event) error {
	if !event.Status.IsBookable() {
		return apperrors.ErrEventNotBookable
	}
	return apperrors.ErrInsufficientTickets
}
