package monitoring

import (
	"errors"
	"time"

	apperrors "event-ticketing/pkg/app_errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bookingOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_operations_total",
			Help: "Total reserve and cancel operations by result",
		},
		[]string{"operation", "result"},
	)

	bookingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "booking_operation_duration_seconds",
			Help:    "Latency of reserve and cancel operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	ticketsMoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_moved_total",
			Help: "Tickets taken from or returned to event inventory",
		},
		[]string{"direction"},
	)

	compensations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_compensations_total",
			Help: "Compensating actions run after a partial failure",
		},
		[]string{"action", "status"},
	)

	notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_notifications_total",
			Help: "Booking notifications by type and outcome",
		},
		[]string{"type", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

const (
	OperationReserve = "reserve"
	OperationCancel  = "cancel"

	CompensationRestock = "restock"
	CompensationRevert  = "revert_cancellation"
)

// ResultLabel 將錯誤轉成固定的 label 值，避免 cardinality 爆掉
func ResultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, apperrors.ErrEventNotFound), errors.Is(err, apperrors.ErrBookingNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrEventNotBookable):
		return "not_bookable"
	case errors.Is(err, apperrors.ErrInsufficientTickets):
		return "insufficient"
	case errors.Is(err, apperrors.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, apperrors.ErrForbidden):
		return "forbidden"
	case errors.Is(err, apperrors.ErrAlreadyCancelled):
		return "already_cancelled"
	default:
		return "error"
	}
}

// TrackBookingOperation 記錄結果與耗時，通常以 defer 呼叫
func TrackBookingOperation(operation string, start time.Time, err error) {
	bookingOperations.WithLabelValues(operation, ResultLabel(err)).Inc()
	bookingDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func TrackTicketsReserved(quantity int) {
	ticketsMoved.WithLabelValues("reserved").Add(float64(quantity))
}

func TrackTicketsRestocked(quantity int) {
	ticketsMoved.WithLabelValues("restocked").Add(float64(quantity))
}

func TrackCompensation(action string, err error) {
	status := "ok"
	if err != nil {
		status = "failed"
	}
	compensations.WithLabelValues(action, status).Inc()
}

func TrackNotification(notificationType, status string) {
	notifications.WithLabelValues(notificationType, status).Inc()
}

func TrackHTTPRequest(method, route, status string, duration time.Duration) {
	httpDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}
