package middleware

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/erp/deposits/internal/infrastructure/auth"
	"github.com/erp/deposits/internal/infrastructure/config"
	"github.com/erp/deposits/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issue(t *testing.T, svc *auth.JWTService, scopes ...string) string {
	t.Helper()
	token, err := svc.Issue(uuid.New(), "gateway", scopes...)
	require.NoError(t, err)
	return BearerPrefix + token.Token
}

// ==================== JWTAuth Tests ====================

func TestJWTAuth(t *testing.T) {
	svc := newJWTService()
	r := newEngine(JWTAuth(svc, nil))
	r.GET("/", func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, claims.Subject)
	})

	t.Run("valid token", func(t *testing.T) {
		w := perform(r, "GET", "/", "", map[string]string{AuthHeaderKey: issue(t, svc, auth.ScopePlansRead)})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "gateway", w.Body.String())
	})

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{name: "missing header", header: "", code: dto.ErrCodeUnauthorized},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz", code: dto.ErrCodeUnauthorized},
		{name: "empty bearer", header: "Bearer ", code: dto.ErrCodeUnauthorized},
		{name: "garbage token", header: "Bearer not.a.jwt", code: dto.ErrCodeTokenInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers[AuthHeaderKey] = tt.header
			}
			w := perform(r, "GET", "/", "", headers)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, tt.code, errorCodeOf(t, w))
		})
	}

	t.Run("token signed with another secret", func(t *testing.T) {
		other := auth.NewJWTService(config.JWTConfig{
			Secret:                strings.Repeat("o", 32),
			Issuer:                "deposits-test",
			AccessTokenExpiration: time.Hour,
		})
		w := perform(r, "GET", "/", "", map[string]string{AuthHeaderKey: issue(t, other)})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeTokenInvalid, errorCodeOf(t, w))
	})

	t.Run("expired token", func(t *testing.T) {
		past := auth.NewJWTService(config.JWTConfig{
			Secret:                strings.Repeat("s", 32),
			Issuer:                "deposits-test",
			AccessTokenExpiration: time.Minute,
		}, auth.WithClock(func() time.Time { return time.Now().Add(-time.Hour) }))
		w := perform(r, "GET", "/", "", map[string]string{AuthHeaderKey: issue(t, past)})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeTokenExpired, errorCodeOf(t, w))
	})
}

func TestRequireScope(t *testing.T) {
	svc := newJWTService()
	r := newEngine(JWTAuth(svc, nil), RequireScope(auth.ScopePlansRead, auth.ScopePlansWrite))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, "GET", "/", "", map[string]string{AuthHeaderKey: issue(t, svc, auth.ScopePlansWrite)})
	assert.Equal(t, http.StatusOK, w.Code)

	w = perform(r, "GET", "/", "", map[string]string{AuthHeaderKey: issue(t, svc, auth.ScopeOrdersWrite)})
	assert.Equal(t, http.StatusForbidden, w.Code)

	t.Run("without JWTAuth", func(t *testing.T) {
		r := newEngine(RequireScope(auth.ScopePlansRead))
		r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
		w := perform(r, "GET", "/", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
