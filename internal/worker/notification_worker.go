package worker

import (
	"context"
	"fmt"
	"sync"

	"event-ticketing/internal/model"
	"event-ticketing/internal/monitoring"
	"event-ticketing/internal/queue"
	"event-ticketing/pkg/logger"

	"go.uber.org/zap"
)

// DefaultMaxAttempts 同一則通知最多投遞幾次
const DefaultMaxAttempts = 3

// Notifier 把預訂事件送給使用者（email、推播等）
type Notifier interface {
	Notify(ctx context.Context, notification *model.BookingNotification) error
}

// LogNotifier 只寫 log，沒有外部寄送管道時使用
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.WithComponent("notifier")}
}

func (n *LogNotifier) Notify(ctx context.Context, notification *model.BookingNotification) error {
	n.log.Info("booking notification",
		zap.String("type", string(notification.Type)),
		zap.String("booking_id", notification.BookingID.String()),
		zap.String("event_id", notification.EventID.String()),
		zap.String("user_id", notification.UserID),
		zap.Int("quantity", notification.Quantity),
		zap.String("total_price", notification.TotalPrice.StringFixed(2)),
	)
	return nil
}

type NotificationWorker interface {
	// Start 阻塞直到 ctx 結束或隊列關閉
	Start(ctx context.Context) error
}

type NotificationWorkerImpl struct {
	notifier    Notifier
	queue       queue.BookingQueue
	maxAttempts int
	log         *zap.Logger

	mu       sync.Mutex
	attempts map[string]int
}

func NewNotificationWorker(notifier Notifier, queue queue.BookingQueue, maxAttempts int) NotificationWorker {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &NotificationWorkerImpl{
		notifier:    notifier,
		queue:       queue,
		maxAttempts: maxAttempts,
		log:         logger.WithComponent("worker"),
		attempts:    make(map[string]int),
	}
}

func (w *NotificationWorkerImpl) Start(ctx context.Context) error {
	msgs, err := w.queue.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe notifications: %w", err)
	}

	w.log.Info("notification worker started")
	for msg := range msgs {
		w.handle(ctx, msg)
	}
	w.log.Info("notification worker stopped")
	return nil
}

func (w *NotificationWorkerImpl) handle(ctx context.Context, msg queue.Delivery) {
	n := msg.Data
	key := string(n.Type) + ":" + n.BookingID.String()

	err := w.notifier.Notify(ctx, n)
	if err == nil {
		w.forget(key)
		monitoring.TrackNotification(string(n.Type), "sent")
		msg.Ack()
		return
	}

	attempt := w.recordAttempt(key)
	if attempt >= w.maxAttempts {
		w.forget(key)
		w.log.Error("notification dropped",
			zap.String("booking_id", n.BookingID.String()),
			zap.Int("attempts", attempt),
			zap.Error(err))
		monitoring.TrackNotification(string(n.Type), "dropped")
		msg.Nack(false)
		return
	}

	w.log.Warn("notification failed, will retry",
		zap.String("booking_id", n.BookingID.String()),
		zap.Int("attempt", attempt),
		zap.Error(err))
	monitoring.TrackNotification(string(n.Type), "retry")
	msg.Nack(true)
}

func (w *NotificationWorkerImpl) recordAttempt(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts[key]++
	return w.attempts[key]
}

func (w *NotificationWorkerImpl) forget(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.attempts, key)
}
