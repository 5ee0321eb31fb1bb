package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/azatarm-prog/telegive-participant/internal/common/errors"
	"github.com/azatarm-prog/telegive-participant/internal/common/logger"
)

// RequestID attaches an id to every request, honoring an inbound X-Request-ID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// ErrorHandler recovers panics and renders them as internal AppErrors.
func ErrorHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		requestID := GetRequestID(c)

		logger.Error().
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Interface("panic", recovered).
			Str("stack", string(debug.Stack())).
			Msg("Panic recovered")

		appErr := errors.New(errors.ErrCodeInternal, "Internal server error").
			WithRequestID(requestID).
			WithDetail("panic", fmt.Sprintf("%v", recovered))

		SendError(c, appErr)
	})
}

// ErrorResponse is the envelope used by every failing endpoint.
type ErrorResponse struct {
	Success   bool             `json:"success"`
	Error     string           `json:"error"`
	ErrorCode errors.ErrorCode `json:"error_code"`
	Details   interface{}      `json:"details,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	RequestID string           `json:"request_id"`
}

// SendError renders an AppError with its mapped HTTP status.
func SendError(c *gin.Context, appErr *errors.AppError) {
	requestID := GetRequestID(c)
	appErr.WithRequestID(requestID)

	logError(c, appErr)

	c.AbortWithStatusJSON(httpStatus(appErr), ErrorResponse{
		Success:   false,
		Error:     appErr.Message,
		ErrorCode: appErr.Code,
		Details:   appErr.Details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	})
}

func httpStatus(appErr *errors.AppError) int {
	switch appErr.Code {
	case errors.ErrCodeValidation:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeParticipantNotFound, errors.ErrCodeCaptchaSessionNotFound:
		return http.StatusNotFound
	case errors.ErrCodeAuthRequired, errors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrCodeAlreadyParticipated, errors.ErrCodeSelectionDone, errors.ErrCodeAlreadyVerified:
		return http.StatusConflict
	case errors.ErrCodeCaptchaRequired:
		return http.StatusPreconditionRequired
	case errors.ErrCodeInsufficientParticipants:
		return http.StatusPreconditionFailed
	case errors.ErrCodeCaptchaExpired, errors.ErrCodeCaptchaAttemptsExceeded:
		return http.StatusGone
	case errors.ErrCodeTooManyRequests:
		return http.StatusTooManyRequests
	case errors.ErrCodeSubscriptionCheck:
		return http.StatusBadGateway
	case errors.ErrCodeCacheError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func logError(c *gin.Context, appErr *errors.AppError) {
	event := logger.Info()
	if appErr.IsInternal() {
		event = logger.Error()
	}
	if appErr.Cause != nil {
		event = event.Err(appErr.Cause)
	}

	event.
		Str("request_id", GetRequestID(c)).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Str("error_code", string(appErr.Code)).
		Msg(appErr.Message)
}

// GetRequestID returns the id set by RequestID, or "unknown".
func GetRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return "unknown"
}
