package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventStatus 活動審核狀態
type EventStatus string

const (
	EventStatusPending  EventStatus = "pending"
	EventStatusApproved EventStatus = "approved"
	EventStatusDeclined EventStatus = "declined"
)

func (s EventStatus) IsValid() bool {
	switch s {
	case EventStatusPending, EventStatusApproved, EventStatusDeclined:
		return true
	}
	return false
}

// IsBookable 只有已核准的活動可以訂票
func (s EventStatus) IsBookable() bool {
	return s == EventStatusApproved
}

// Event 活動模型；TicketsAvailable 只由訂票服務透過庫存儲存層變更
type Event struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	OrganizerID      string          `json:"organizer_id" db:"organizer_id"`
	Title            string          `json:"title" db:"title"`
	Description      string          `json:"description" db:"description"`
	Location         string          `json:"location" db:"location"`
	StartsAt         time.Time       `json:"starts_at" db:"starts_at"`
	TicketPrice      decimal.Decimal `json:"ticket_price" db:"ticket_price"`
	Capacity         int             `json:"capacity" db:"capacity"`
	TicketsAvailable int             `json:"tickets_available" db:"tickets_available"`
	Status           EventStatus     `json:"status" db:"status"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// CreateEventParams 建立活動參數
type CreateEventParams struct {
	Title       string
	Description string
	Location    string
	StartsAt    time.Time
	TicketPrice decimal.Decimal
	Capacity    int
}
