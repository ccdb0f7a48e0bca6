package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BookingStatus 訂票狀態
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// IsValid 驗證狀態是否有效
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusConfirmed, BookingStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo 檢查是否可以轉換到目標狀態
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	transitions := map[BookingStatus][]BookingStatus{
		BookingStatusConfirmed: {BookingStatusCancelled},
		BookingStatusCancelled: {}, // 終態
	}

	allowed, ok := transitions[s]
	if !ok {
		return false
	}

	for _, status := range allowed {
		if status == target {
			return true
		}
	}
	return false
}

// Booking 訂票模型；TotalPrice 在訂票當下固定，不隨活動改價重算
type Booking struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	EventID     uuid.UUID       `json:"event_id" db:"event_id"`
	UserID      string          `json:"user_id" db:"user_id"`
	Quantity    int             `json:"quantity" db:"quantity"`
	TotalPrice  decimal.Decimal `json:"total_price" db:"total_price"`
	Status      BookingStatus   `json:"status" db:"status"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
	CancelledAt *time.Time      `json:"cancelled_at,omitempty" db:"cancelled_at"`
}

func (b *Booking) IsCancelled() bool {
	return b.Status == BookingStatusCancelled
}

// OwnedBy 檢查訂票是否屬於該使用者
func (b *Booking) OwnedBy(userID string) bool {
	return b.UserID == userID
}

// TotalPriceFor 計算訂票總價
func TotalPriceFor(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}

// CreateBookingRequest 建立訂票請求；quantity 交由服務層驗證以回傳明確錯誤
type CreateBookingRequest struct {
	EventID  string `json:"event_id" binding:"required,uuid"`
	Quantity int    `json:"quantity"`
}

// NotificationType 訂票通知種類
type NotificationType string

const (
	NotificationBookingConfirmed NotificationType = "booking.confirmed"
	NotificationBookingCancelled NotificationType = "booking.cancelled"
)

// BookingNotification 送進通知隊列的訊息
type BookingNotification struct {
	Type       NotificationType `json:"type"`
	BookingID  uuid.UUID        `json:"booking_id"`
	EventID    uuid.UUID        `json:"event_id"`
	UserID     string           `json:"user_id"`
	Quantity   int              `json:"quantity"`
	TotalPrice decimal.Decimal  `json:"total_price"`
	OccurredAt time.Time        `json:"occurred_at"`
}

func NewBookingNotification(t NotificationType, b *Booking) *BookingNotification {
	return &BookingNotification{
		Type:       t,
		BookingID:  b.ID,
		EventID:    b.EventID,
		UserID:     b.UserID,
		Quantity:   b.Quantity,
		TotalPrice: b.TotalPrice,
		OccurredAt: time.Now().UTC(),
	}
}
