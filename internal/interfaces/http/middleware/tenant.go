package middleware

import (
	"net/http"

	"github.com/erp/deposits/internal/infrastructure/logger"
	"github.com/erp/deposits/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TenantIDKey holds the resolved tenant as a uuid.UUID
const TenantIDKey = "tenant_uuid"

// TenantConfig configures tenant resolution
type TenantConfig struct {
	// DefaultTenant is used when neither a token nor the header names one.
	// uuid.Nil makes the tenant mandatory.
	DefaultTenant uuid.UUID
}

// Tenant resolves the tenant of the request. A tenant from verified JWT
// claims wins; otherwise the X-Tenant-ID header, then the default.
// A header that disagrees with the token is rejected.
func Tenant(cfg TenantConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(TenantHeader)

		var tenantID uuid.UUID
		if claims, ok := GetClaims(c); ok {
			id, err := claims.TenantUUID()
			if err != nil {
				abort(c, http.StatusUnauthorized, dto.ErrCodeTokenInvalid, "Token carries an invalid tenant")
				return
			}
			if header != "" && header != id.String() {
				abort(c, http.StatusForbidden, dto.ErrCodeForbidden, "Tenant header does not match the token")
				return
			}
			tenantID = id
		} else if header != "" {
			id, err := uuid.Parse(header)
			if err != nil {
				abort(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, "X-Tenant-ID must be a UUID")
				return
			}
			tenantID = id
		} else {
			tenantID = cfg.DefaultTenant
		}

		if tenantID == uuid.Nil {
			abort(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, "X-Tenant-ID header is required")
			return
		}

		c.Set(TenantIDKey, tenantID)
		c.Set(logger.GinTenantIDKey, tenantID.String())
		ctx, _ := logger.WithTenantID(c.Request.Context(), logger.FromContext(c.Request.Context()), tenantID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetTenantID returns the tenant resolved by Tenant
func GetTenantID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(TenantIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}
