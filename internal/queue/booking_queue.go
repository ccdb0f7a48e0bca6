package queue

import (
	"context"
	"errors"

	"event-ticketing/internal/model"
	"event-ticketing/pkg/logger"

	"go.uber.org/zap"
)

var ErrQueueFull = errors.New("notification queue is full")

type Delivery struct {
	Data *model.BookingNotification
	Ack  func()
	Nack func(requeue bool)
}

type BookingQueue interface {
	// 發送預訂通知到隊列
	Publish(ctx context.Context, notification *model.BookingNotification) error
	// 訂閱通知隊列，ctx 結束時關閉 channel
	Subscribe(ctx context.Context) (<-chan Delivery, error)
}

type MemoryBookingQueue struct {
	// 使用 Go channel 來模擬 MQ 隊列
	ch chan *model.BookingNotification
}

func NewMemoryBookingQueue(bufferSize int) BookingQueue {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &MemoryBookingQueue{
		ch: make(chan *model.BookingNotification, bufferSize),
	}
}

// Publish 不阻塞；緩衝區滿時回傳 ErrQueueFull
func (q *MemoryBookingQueue) Publish(ctx context.Context, notification *model.BookingNotification) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.ch <- notification:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryBookingQueue) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case notification := <-q.ch:
				d := Delivery{
					Data: notification,
					Ack:  func() {},
					Nack: func(requeue bool) {
						if !requeue {
							return
						}
						select {
						case q.ch <- notification:
						default:
							logger.WithComponent("mq").Warn("requeue dropped, queue full",
								zap.String("booking_id", notification.BookingID.String()))
						}
					},
				}
				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
