package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	"github.com/azatarm-prog/telegive-participant/internal/common/errors"
	"github.com/azatarm-prog/telegive-participant/internal/common/logger"
)

// RequireServiceToken gates endpoints that only sibling services (bot
// service, admin panel) may call. The shared secret arrives in
// X-Service-Token; X-Service-Name identifies the caller for the logs.
func RequireServiceToken(expectedToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expectedToken == "" {
			logger.Error().Msg("SERVICE_TO_SERVICE_SECRET not configured")
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
				Success:   false,
				Error:     "Service authentication not configured",
				ErrorCode: "AUTH_NOT_CONFIGURED",
				Timestamp: time.Now().UTC(),
				RequestID: GetRequestID(c),
			})
			return
		}

		token := c.GetHeader("X-Service-Token")
		if token == "" {
			SendError(c, errors.New(errors.ErrCodeAuthRequired, "Service authentication required"))
			return
		}

		if token != expectedToken {
			logger.Warn().
				Str("service", c.GetHeader("X-Service-Name")).
				Str("path", c.Request.URL.Path).
				Msg("Invalid service token")
			SendError(c, errors.New(errors.ErrCodeUnauthorized, "Invalid service token"))
			return
		}

		logger.Debug().
			Str("service", c.GetHeader("X-Service-Name")).
			Str("path", c.Request.URL.Path).
			Msg("Authenticated service request")

		c.Next()
	}
}

// TelegramInitData authenticates mini-app users on the public read
// endpoints and stores the parsed Telegram user in the context.
func TelegramInitData(botToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		initDataQuery := c.GetHeader("init_data")
		if initDataQuery == "" {
			SendError(c, errors.New(errors.ErrCodeAuthRequired, "Telegram init data required"))
			return
		}

		if botToken == "" {
			SendError(c, errors.New(errors.ErrCodeInternal, "Server configuration error"))
			return
		}

		// Expiration is checked by Telegram clients re-issuing init data.
		if err := initdata.Validate(initDataQuery, botToken, 0); err != nil {
			SendError(c, errors.Wrap(err, errors.ErrCodeUnauthorized, "Invalid init data"))
			return
		}

		parsed, err := initdata.Parse(initDataQuery)
		if err != nil {
			SendError(c, errors.Wrap(err, errors.ErrCodeValidation, "Failed to parse init data"))
			return
		}

		c.Set("telegram_user", parsed.User)
		c.Set("user_id", parsed.User.ID)
		c.Next()
	}
}

// GetUserID returns the authenticated Telegram user id, if present.
func GetUserID(c *gin.Context) (int64, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
