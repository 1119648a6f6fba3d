package middleware

import (
	"github.com/erp/deposits/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// abort ends the request with the standard error envelope
func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
}
