package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"event-ticketing/internal/model"
	"event-ticketing/internal/queue"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu       sync.Mutex
	failures int
	calls    []*model.BookingNotification
	called   chan struct{}
}

func newRecordingNotifier(failures int) *recordingNotifier {
	return &recordingNotifier{failures: failures, called: make(chan struct{}, 16)}
}

func (n *recordingNotifier) Notify(ctx context.Context, notification *model.BookingNotification) error {
	n.mu.Lock()
	n.calls = append(n.calls, notification)
	fail := len(n.calls) <= n.failures
	n.mu.Unlock()

	n.called <- struct{}{}
	if fail {
		return errors.New("smtp unavailable")
	}
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func waitCalls(t *testing.T, n *recordingNotifier, want int) {
	t.Helper()
	for i := 0; i < want; i++ {
		select {
		case <-n.called:
		case <-time.After(time.Second):
			t.Fatalf("超時！只收到 %d 次通知，預期 %d 次", i, want)
		}
	}
}

func testNotification() *model.BookingNotification {
	return model.NewBookingNotification(model.NotificationBookingConfirmed, &model.Booking{
		ID:         uuid.New(),
		EventID:    uuid.New(),
		UserID:     "user-1",
		Quantity:   1,
		TotalPrice: decimal.NewFromInt(10),
	})
}

func TestNotificationWorker_Delivers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	q := queue.NewMemoryBookingQueue(10)
	notifier := newRecordingNotifier(0)
	w := NewNotificationWorker(notifier, q, 3)

	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	n := testNotification()
	require.NoError(t, q.Publish(ctx, n))

	waitCalls(t, notifier, 1)
	notifier.mu.Lock()
	first := notifier.calls[0]
	notifier.mu.Unlock()
	assert.Equal(t, n.BookingID, first.BookingID)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestNotificationWorker_RetriesThenSucceeds(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	q := queue.NewMemoryBookingQueue(10)
	notifier := newRecordingNotifier(2)
	w := NewNotificationWorker(notifier, q, 3)
	go func() { _ = w.Start(ctx) }()

	require.NoError(t, q.Publish(ctx, testNotification()))

	waitCalls(t, notifier, 3)
	assert.Equal(t, 3, notifier.count())
}

func TestNotificationWorker_DropsAfterMaxAttempts(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	q := queue.NewMemoryBookingQueue(10)
	notifier := newRecordingNotifier(100)
	w := NewNotificationWorker(notifier, q, 2)
	go func() { _ = w.Start(ctx) }()

	require.NoError(t, q.Publish(ctx, testNotification()))

	waitCalls(t, notifier, 2)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 2, notifier.count())
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, NewLogNotifier().Notify(context.Background(), testNotification()))
}
