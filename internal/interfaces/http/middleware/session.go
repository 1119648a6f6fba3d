package middleware

import (
	"net/http"
	"regexp"

	"github.com/erp/deposits/internal/infrastructure/logger"
	"github.com/erp/deposits/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,128}$`)

// Session identifies the storefront session holding the buyer's deposit
// choice. A request without X-Session-ID gets a new session whose ID is
// returned in the response header.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader(SessionHeader)
		switch {
		case sessionID == "":
			sessionID = uuid.NewString()
		case !sessionIDPattern.MatchString(sessionID):
			abort(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, "X-Session-ID is malformed")
			return
		}

		c.Set(logger.GinSessionIDKey, sessionID)
		c.Writer.Header().Set(SessionHeader, sessionID)
		ctx, _ := logger.WithSessionID(c.Request.Context(), logger.FromContext(c.Request.Context()), sessionID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetSessionID returns the session set by Session
func GetSessionID(c *gin.Context) string {
	return c.GetString(logger.GinSessionIDKey)
}
