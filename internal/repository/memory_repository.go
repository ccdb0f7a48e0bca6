package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"event-ticketing/internal/model"
	apperrors "event-ticketing/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// eventEntry 每個活動各自一把鎖，不同活動的訂票互不阻塞
type eventEntry struct {
	mu    sync.Mutex
	event model.Event
}

// MemoryEventRepository 單機內嵌版的活動儲存，STORE_BACKEND=memory 時使用
type MemoryEventRepository struct {
	mu     sync.RWMutex
	events map[uuid.UUID]*eventEntry
}

func NewMemoryEventRepository() EventRepository {
	return &MemoryEventRepository{
		events: make(map[uuid.UUID]*eventEntry),
	}
}

func (r *MemoryEventRepository) entry(id uuid.UUID) (*eventEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.events[id]
	return e, ok
}

func (r *MemoryEventRepository) Create(ctx context.Context, event *model.Event) (*model.Event, error) {
	now := time.Now().UTC()
	created := *event
	created.CreatedAt = now
	created.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.events[created.ID]; exists {
		return nil, apperrors.ErrInvalidInput
	}
	r.events[created.ID] = &eventEntry{event: created}

	out := created
	return &out, nil
}

func (r *MemoryEventRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	e, ok := r.entry(id)
	if !ok {
		return nil, apperrors.ErrEventNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.event
	return &out, nil
}

func (r *MemoryEventRepository) List(ctx context.Context, status *model.EventStatus) ([]*model.Event, error) {
	r.mu.RLock()
	entries := make([]*eventEntry, 0, len(r.events))
	for _, e := range r.events {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	events := make([]*model.Event, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		event := e.event
		e.mu.Unlock()
		if status != nil && event.Status != *status {
			continue
		}
		events = append(events, &event)
	}

	sort.Slice(events, func(i, j int) bool {
		if !events[i].StartsAt.Equal(events[j].StartsAt) {
			return events[i].StartsAt.Before(events[j].StartsAt)
		}
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	return events, nil
}

func (r *MemoryEventRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.EventStatus) (*model.Event, error) {
	e, ok := r.entry(id)
	if !ok {
		return nil, apperrors.ErrEventNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.event.Status = status
	e.event.UpdatedAt = time.Now().UTC()
	out := e.event
	return &out, nil
}

func (r *MemoryEventRepository) DecrementTickets(ctx context.Context, eventID uuid.UUID, quantity int) (decimal.Decimal, error) {
	if quantity < 1 {
		return decimal.Zero, apperrors.ErrInvalidQuantity
	}
	e, ok := r.entry(eventID)
	if !ok {
		return decimal.Zero, apperrors.ErrEventNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.event.Status.IsBookable() || e.event.TicketsAvailable < quantity {
		return decimal.Zero, reserveFailure(&e.event)
	}
	e.event.TicketsAvailable -= quantity
	e.event.UpdatedAt = time.Now().UTC()
	return e.event.TicketPrice, nil
}

func (r *MemoryEventRepository) IncrementTickets(ctx context.Context, eventID uuid.UUID, quantity int) error {
	if quantity < 1 {
		return apperrors.ErrInvalidQuantity
	}
	e, ok := r.entry(eventID)
	if !ok {
		return apperrors.ErrEventNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.event.TicketsAvailable+quantity > e.event.Capacity {
		return apperrors.ErrCapacityExceeded
	}
	e.event.TicketsAvailable += quantity
	e.event.UpdatedAt = time.Now().UTC()
	return nil
}

// MemoryBookingRepository 單機內嵌版的訂票儲存
type MemoryBookingRepository struct {
	mu       sync.RWMutex
	bookings map[uuid.UUID]*model.Booking
}

func NewMemoryBookingRepository() BookingRepository {
	return &MemoryBookingRepository{
		bookings: make(map[uuid.UUID]*model.Booking),
	}
}

func (r *MemoryBookingRepository) Create(ctx context.Context, booking *model.Booking) (*model.Booking, error) {
	now := time.Now().UTC()
	created := *booking
	created.CreatedAt = now
	created.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.bookings[created.ID]; exists {
		return nil, apperrors.ErrInvalidInput
	}
	r.bookings[created.ID] = &created

	out := created
	return &out, nil
}

func (r *MemoryBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, apperrors.ErrBookingNotFound
	}
	out := *b
	return &out, nil
}

func (r *MemoryBookingRepository) FindByUserID(ctx context.Context, userID string) ([]*model.Booking, error) {
	return r.filter(func(b *model.Booking) bool { return b.UserID == userID }), nil
}

func (r *MemoryBookingRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) ([]*model.Booking, error) {
	return r.filter(func(b *model.Booking) bool { return b.EventID == eventID }), nil
}

func (r *MemoryBookingRepository) filter(match func(*model.Booking) bool) []*model.Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bookings := make([]*model.Booking, 0)
	for _, b := range r.bookings {
		if match(b) {
			out := *b
			bookings = append(bookings, &out)
		}
	}
	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].CreatedAt.After(bookings[j].CreatedAt)
	})
	return bookings
}

func (r *MemoryBookingRepository) MarkCancelled(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, apperrors.ErrBookingNotFound
	}
	if !b.Status.CanTransitionTo(model.BookingStatusCancelled) {
		return nil, apperrors.ErrAlreadyCancelled
	}

	now := time.Now().UTC()
	b.Status = model.BookingStatusCancelled
	b.CancelledAt = &now
	b.UpdatedAt = now
	out := *b
	return &out, nil
}

func (r *MemoryBookingRepository) RevertCancellation(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok || b.Status != model.BookingStatusCancelled {
		return apperrors.ErrBookingNotFound
	}
	b.Status = model.BookingStatusConfirmed
	b.CancelledAt = nil
	b.UpdatedAt = time.Now().UTC()
	return nil
}
