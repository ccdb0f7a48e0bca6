package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"event-ticketing/internal/middleware"
	apperrors "event-ticketing/pkg/app_errors"
	"event-ticketing/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IDUri 路徑上的 uuid 參數
type IDUri struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// fieldTypeErrors 欄位型別不符時（例如 quantity 為 1.5）改用對應的錯誤訊息
var fieldTypeErrors = map[string]error{
	"quantity": apperrors.ErrInvalidQuantity,
}

func BindJson(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			if mapped, ok := fieldTypeErrors[typeErr.Field]; ok {
				handleError(c, mapped, "Bind")
				return err
			}
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return err
	}
	return nil
}

func BindQuery(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindQuery(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return err
	}
	return nil
}

func BindUri(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindUri(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid id",
		})
		return err
	}
	return nil
}

// requester 取出驗證中介層放入的身分；路由未掛 Authenticate 時回 401
func requester(c *gin.Context) (middleware.Identity, bool) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	}
	return identity, ok
}

type errorMapping struct {
	err     error
	status  int
	message string
}

var errorMappings = []errorMapping{
	{apperrors.ErrEventNotFound, http.StatusNotFound, "Event not found"},
	{apperrors.ErrBookingNotFound, http.StatusNotFound, "Booking not found"},
	{apperrors.ErrEventNotBookable, http.StatusBadRequest, "Event is not open for booking"},
	{apperrors.ErrInsufficientTickets, http.StatusBadRequest, "Not enough tickets available"},
	{apperrors.ErrInvalidQuantity, http.StatusBadRequest, "Quantity must be a positive integer"},
	{apperrors.ErrInvalidInput, http.StatusBadRequest, "Invalid input"},
	{apperrors.ErrForbidden, http.StatusForbidden, "Permission denied"},
	{apperrors.ErrAlreadyCancelled, http.StatusConflict, "Booking already cancelled"},
	{apperrors.ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
}

// handleError 將服務層錯誤轉成 HTTP 回應，未知錯誤一律 500
func handleError(c *gin.Context, err error, operation string) {
	log := logger.WithComponent("handler").With(zap.String("operation", operation), zap.Error(err))
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			log.Warn(m.message)
			c.JSON(m.status, gin.H{"error": m.message})
			return
		}
	}
	log.Error("Unexpected error")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}
