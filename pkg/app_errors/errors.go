package apperrors

import "errors"

var (
	ErrEventNotFound   = errors.New("event not found")
	ErrBookingNotFound = errors.New("booking not found")

	// ErrEventNotBookable 活動存在但尚未核准（pending / declined）
	ErrEventNotBookable    = errors.New("event is not open for booking")
	ErrInsufficientTickets = errors.New("insufficient tickets available")
	ErrInvalidQuantity     = errors.New("quantity must be a positive integer")
	ErrForbidden           = errors.New("booking does not belong to requester")
	ErrAlreadyCancelled    = errors.New("booking already cancelled")

	// ErrCapacityExceeded 回補庫存會超過活動原始容量
	ErrCapacityExceeded = errors.New("restock would exceed event capacity")

	ErrInvalidInput        = errors.New("invalid input")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInternalServerError = errors.New("internal server error")
)
