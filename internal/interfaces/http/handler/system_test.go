package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/deposits/internal/domain/shared"
	"github.com/erp/deposits/internal/infrastructure/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping() error { return p.err }

type stubOutbox struct {
	stats map[shared.OutboxStatus]int64
	err   error
}

func (o stubOutbox) Stats(context.Context) (map[shared.OutboxStatus]int64, error) {
	return o.stats, o.err
}

type stubReminders struct {
	running bool
	stats   scheduler.RunStats
}

func (s stubReminders) IsRunning() bool           { return s.running }
func (s stubReminders) Stats() scheduler.RunStats { return s.stats }

func serveSystem(h *SystemHandler, path string) *httptest.ResponseRecorder {
	r := gin.New()
	r.GET("/system/info", h.GetSystemInfo)
	r.GET("/system/ping", h.Ping)
	r.GET("/health", h.Health)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestNewSystemHandler(t *testing.T) {
	h := NewSystemHandler()
	assert.NotNil(t, h)
	assert.False(t, h.startTime.IsZero())
	assert.Equal(t, "deposits", h.name)
}

func TestSystemHandler_GetSystemInfo(t *testing.T) {
	h := NewSystemHandler(WithBuildInfo("deposits-api", "1.2.0"))

	w := serveSystem(h, "/system/info")

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataMap(t, w)
	assert.Equal(t, "deposits-api", data["name"])
	assert.Equal(t, "1.2.0", data["version"])
	assert.NotEmpty(t, data["go_version"])
	assert.NotEmpty(t, data["uptime"])
}

func TestSystemHandler_Ping(t *testing.T) {
	w := serveSystem(NewSystemHandler(), "/system/ping")

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataMap(t, w)
	assert.Equal(t, "pong", data["message"])

	timestamp, ok := data["timestamp"].(string)
	require.True(t, ok)
	_, err := time.Parse(time.RFC3339, timestamp)
	assert.NoError(t, err)
}

// ==================== Health Tests ====================

func TestSystemHandler_Health(t *testing.T) {
	t.Run("healthy with every dependency", func(t *testing.T) {
		h := NewSystemHandler(
			WithDatabase(stubPinger{}),
			WithOutbox(stubOutbox{stats: map[shared.OutboxStatus]int64{shared.OutboxStatusPending: 3}}),
			WithReminderScheduler(stubReminders{running: true, stats: scheduler.RunStats{Runs: 4, RemindersSent: 2}}),
		)

		w := serveSystem(h, "/health")

		assert.Equal(t, http.StatusOK, w.Code)
		data := dataMap(t, w)
		assert.Equal(t, "ok", data["status"])
		assert.Equal(t, "ok", data["database"])
		outbox, ok := data["outbox"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(3), outbox[string(shared.OutboxStatusPending)])
		reminders, ok := data["reminders"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, true, reminders["running"])
	})

	t.Run("database down degrades", func(t *testing.T) {
		h := NewSystemHandler(WithDatabase(stubPinger{err: errors.New("refused")}))

		w := serveSystem(h, "/health")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		resp := decodeResponse(t, w)
		assert.False(t, resp.Success)
		data := resp.Data.(map[string]any)
		assert.Equal(t, "degraded", data["status"])
		assert.Equal(t, "unavailable", data["database"])
	})

	t.Run("outbox errors are omitted", func(t *testing.T) {
		h := NewSystemHandler(WithOutbox(stubOutbox{err: errors.New("boom")}))

		w := serveSystem(h, "/health")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, dataMap(t, w), "outbox")
	})
}
