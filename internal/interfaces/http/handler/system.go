package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/erp/deposits/internal/domain/shared"
	"github.com/erp/deposits/internal/infrastructure/scheduler"
	"github.com/erp/deposits/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// DatabasePinger reports database reachability
type DatabasePinger interface {
	Ping() error
}

// OutboxStatsProvider reports the outbox backlog by status
type OutboxStatsProvider interface {
	Stats(ctx context.Context) (map[shared.OutboxStatus]int64, error)
}

// SchedulerStatsProvider reports reminder scheduler activity
type SchedulerStatsProvider interface {
	IsRunning() bool
	Stats() scheduler.RunStats
}

// SystemHandler handles system-related API endpoints
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	startTime time.Time
	db        DatabasePinger
	outbox    OutboxStatsProvider
	reminders SchedulerStatsProvider
}

// SystemOption configures a SystemHandler
type SystemOption func(*SystemHandler)

// WithBuildInfo sets the service name and version reported by /system/info
func WithBuildInfo(name, version string) SystemOption {
	return func(h *SystemHandler) {
		h.name = name
		h.version = version
	}
}

// WithDatabase includes the database in health checks
func WithDatabase(db DatabasePinger) SystemOption {
	return func(h *SystemHandler) {
		h.db = db
	}
}

// WithOutbox includes the outbox backlog in health checks
func WithOutbox(outbox OutboxStatsProvider) SystemOption {
	return func(h *SystemHandler) {
		h.outbox = outbox
	}
}

// WithReminderScheduler includes reminder scheduler stats in health checks
func WithReminderScheduler(s SchedulerStatsProvider) SystemOption {
	return func(h *SystemHandler) {
		h.reminders = s
	}
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(opts ...SystemOption) *SystemHandler {
	h := &SystemHandler{
		name:      "deposits",
		version:   "dev",
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SystemInfoResponse represents the system information response
// @name HandlerSystemInfoResponse
type SystemInfoResponse struct {
	Name      string `json:"name" example:"deposits"`
	Version   string `json:"version" example:"1.0.0"`
	GoVersion string `json:"go_version" example:"go1.25.5"`
	Uptime    string `json:"uptime" example:"1h30m45s"`
}

// GetSystemInfo godoc
// @ID           getSystemSystemInfo
// @Summary      Get system information
// @Description  Returns basic system information including version and uptime
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[SystemInfoResponse]
// @Router       /system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// PingResponse represents the ping response
// @name HandlerPingResponse
type PingResponse struct {
	Message   string `json:"message" example:"pong"`
	Timestamp string `json:"timestamp" example:"2026-01-23T12:00:00Z"`
}

// Ping godoc
// @ID           pingSystem
// @Summary      Ping the API
// @Description  Simple ping endpoint to check if the API is responsive
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[PingResponse]
// @Router       /system/ping [get]
func (h *SystemHandler) Ping(c *gin.Context) {
	h.Success(c, PingResponse{
		Message:   "pong",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// HealthResponse is the readiness report
// @name HandlerHealthResponse
type HealthResponse struct {
	Status    string                        `json:"status" example:"ok"`
	Database  string                        `json:"database,omitempty" example:"ok"`
	Outbox    map[shared.OutboxStatus]int64 `json:"outbox,omitempty"`
	Reminders *ReminderHealth               `json:"reminders,omitempty"`
}

// ReminderHealth is the reminder scheduler section of the health report
type ReminderHealth struct {
	Running bool               `json:"running"`
	Stats   scheduler.RunStats `json:"stats"`
}

// Health godoc
// @ID           getSystemHealth
// @Summary      Readiness check
// @Description  Reports database reachability, outbox backlog and reminder scheduler activity
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[HealthResponse]
// @Failure      503 {object} APIResponse[HealthResponse]
// @Router       /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{Status: "ok"}
	healthy := true

	if h.db != nil {
		resp.Database = "ok"
		if err := h.db.Ping(); err != nil {
			resp.Database = "unavailable"
			healthy = false
		}
	}
	if h.outbox != nil {
		if stats, err := h.outbox.Stats(c.Request.Context()); err == nil {
			resp.Outbox = stats
		}
	}
	if h.reminders != nil {
		resp.Reminders = &ReminderHealth{Running: h.reminders.IsRunning(), Stats: h.reminders.Stats()}
	}

	if !healthy {
		resp.Status = "degraded"
		c.JSON(http.StatusServiceUnavailable, dto.Response{Success: false, Data: resp})
		return
	}
	h.Success(c, resp)
}
