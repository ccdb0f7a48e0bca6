package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"event-ticketing/internal/model"
	"event-ticketing/internal/repository"
	apperrors "event-ticketing/pkg/app_errors"
	"event-ticketing/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InventoryMirror 庫存不在活動儲存層時（Redis），活動異動後需同步，
// 讀取活動時剩餘票數以它為準
type InventoryMirror interface {
	WarmUp(ctx context.Context, event *model.Event) error
	GetStock(ctx context.Context, eventID uuid.UUID) (int, error)
}

type EventService interface {
	Create(ctx context.Context, organizerID string, params model.CreateEventParams) (*model.Event, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Event, error)
	List(ctx context.Context, status *model.EventStatus) ([]*model.Event, error)
	// Review 審核活動，只接受 approved / declined
	Review(ctx context.Context, id uuid.UUID, status model.EventStatus) (*model.Event, error)
}

type EventServiceImpl struct {
	repo   repository.EventRepository
	mirror InventoryMirror
	log    *zap.Logger
}

// NewEventService mirror 可為 nil，此時票數以活動儲存層為準
func NewEventService(repo repository.EventRepository, mirror InventoryMirror) EventService {
	return &EventServiceImpl{
		repo:   repo,
		mirror: mirror,
		log:    logger.WithComponent("service"),
	}
}

func (s *EventServiceImpl) Create(ctx context.Context, organizerID string, params model.CreateEventParams) (*model.Event, error) {
	if organizerID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	if strings.TrimSpace(params.Title) == "" || params.Capacity < 0 || params.TicketPrice.IsNegative() {
		return nil, apperrors.ErrInvalidInput
	}

	event, err := s.repo.Create(ctx, &model.Event{
		ID:               uuid.New(),
		OrganizerID:      organizerID,
		Title:            strings.TrimSpace(params.Title),
		Description:      params.Description,
		Location:         params.Location,
		StartsAt:         params.StartsAt,
		TicketPrice:      params.TicketPrice,
		Capacity:         params.Capacity,
		TicketsAvailable: params.Capacity,
		Status:           model.EventStatusPending,
	})
	if err != nil {
		return nil, err
	}

	// 新活動尚未核准，預熱失敗時審核會再同步一次
	if err := s.warmUp(ctx, event); err != nil {
		s.log.Warn("warm up inventory failed", zap.String("event_id", event.ID.String()), zap.Error(err))
	}
	return event, nil
}

func (s *EventServiceImpl) GetByID(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyStock(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *EventServiceImpl) List(ctx context.Context, status *model.EventStatus) ([]*model.Event, error) {
	if status != nil && !status.IsValid() {
		return nil, apperrors.ErrInvalidInput
	}
	events, err := s.repo.List(ctx, status)
	if err != nil {
		return nil, err
	}
	for _, event := range events {
		if err := s.applyStock(ctx, event); err != nil {
			return nil, err
		}
	}
	return events, nil
}

// Review 先提交狀態再同步庫存；同步失敗時還原為原狀態
func (s *EventServiceImpl) Review(ctx context.Context, id uuid.UUID, status model.EventStatus) (*model.Event, error) {
	if status != model.EventStatusApproved && status != model.EventStatusDeclined {
		return nil, apperrors.ErrInvalidInput
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	event, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	if err := s.warmUp(ctx, event); err != nil {
		cause := fmt.Errorf("warm up inventory: %w", err)
		if revertErr := s.revertStatus(ctx, id, current.Status); revertErr != nil {
			return nil, errors.Join(cause, fmt.Errorf("revert status: %v", revertErr))
		}
		return nil, cause
	}

	if err := s.applyStock(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *EventServiceImpl) revertStatus(ctx context.Context, id uuid.UUID, previous model.EventStatus) error {
	// 呼叫端取消也要完成還原
	ctx = context.WithoutCancel(ctx)
	if _, err := s.repo.UpdateStatus(ctx, id, previous); err != nil {
		s.log.Error("revert event status failed",
			zap.String("event_id", id.String()),
			zap.String("status", string(previous)),
			zap.Error(err))
		return err
	}
	s.log.Warn("event status reverted after warm up failure",
		zap.String("event_id", id.String()),
		zap.String("status", string(previous)))
	return nil
}

func (s *EventServiceImpl) warmUp(ctx context.Context, event *model.Event) error {
	if s.mirror == nil {
		return nil
	}
	return s.mirror.WarmUp(ctx, event)
}

// applyStock 以 mirror 的即時票數覆寫；尚未預熱的活動沿用儲存層的值
func (s *EventServiceImpl) applyStock(ctx context.Context, event *model.Event) error {
	if s.mirror == nil {
		return nil
	}
	stock, err := s.mirror.GetStock(ctx, event.ID)
	if errors.Is(err, apperrors.ErrEventNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read inventory: %w", err)
	}
	event.TicketsAvailable = stock
	return nil
}
