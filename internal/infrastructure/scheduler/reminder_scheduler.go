// Package scheduler runs the periodic background jobs of the deposits service.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ReminderSender raises reminders for installments due within a window
type ReminderSender interface {
	SendDueReminders(ctx context.Context, within time.Duration) (int, error)
}

// ReminderSchedulerConfig holds configuration for the reminder scheduler
type ReminderSchedulerConfig struct {
	Enabled bool

	// Interval between scans for due installments
	Interval time.Duration

	// Window is how far ahead of the due date a reminder goes out
	Window time.Duration

	// JobTimeout bounds a single scan
	JobTimeout time.Duration

	// RunOnStart triggers a scan immediately instead of after the first interval
	RunOnStart bool
}

// DefaultReminderSchedulerConfig returns default configuration
func DefaultReminderSchedulerConfig() ReminderSchedulerConfig {
	return ReminderSchedulerConfig{
		Enabled:    true,
		Interval:   time.Hour,
		Window:     72 * time.Hour,
		JobTimeout: 5 * time.Minute,
		RunOnStart: true,
	}
}

// Validate checks the intervals are usable
func (c ReminderSchedulerConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if c.Window <= 0 {
		return fmt.Errorf("%w: reminder window must be positive", ErrInvalidConfig)
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("%w: job timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// RunStats describes the scheduler's activity
type RunStats struct {
	Runs          int64     `json:"runs"`
	Failures      int64     `json:"failures"`
	RemindersSent int64     `json:"reminders_sent"`
	LastRunAt     time.Time `json:"last_run_at"`
	LastError     string    `json:"last_error,omitempty"`
}

// ReminderScheduler periodically scans for installments about to fall due
type ReminderScheduler struct {
	sender ReminderSender
	logger *zap.Logger
	config ReminderSchedulerConfig

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	running atomic.Bool
	statsMu sync.Mutex
	stats   RunStats
}

// NewReminderScheduler creates a new reminder scheduler
func NewReminderScheduler(sender ReminderSender, logger *zap.Logger, config ReminderSchedulerConfig) (*ReminderScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &ReminderScheduler{
		sender: sender,
		logger: logger,
		config: config,
	}, nil
}

// Start starts the scan loop
func (s *ReminderScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Reminder scheduler is disabled")
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("Reminder scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("window", s.config.Window),
	)
	return nil
}

// Stop gracefully stops the scheduler
func (s *ReminderScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Reminder scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Reminder scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the scan loop is active
func (s *ReminderScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Stats returns a snapshot of the run counters
func (s *ReminderScheduler) Stats() RunStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

func (s *ReminderScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	if s.config.RunOnStart {
		_, _ = s.RunOnce(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Reminder loop stopping")
			return
		case <-ticker.C:
			_, _ = s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single scan bounded by JobTimeout. Overlapping runs
// are rejected with ErrRunInProgress.
func (s *ReminderScheduler) RunOnce(ctx context.Context) (int, error) {
	if !s.running.CompareAndSwap(false, true) {
		return 0, ErrRunInProgress
	}
	defer s.running.Store(false)

	runCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	start := time.Now()
	sent, err := s.sender.SendDueReminders(runCtx, s.config.Window)

	s.statsMu.Lock()
	s.stats.Runs++
	s.stats.RemindersSent += int64(sent)
	s.stats.LastRunAt = start
	s.stats.LastError = ""
	if err != nil {
		s.stats.Failures++
		s.stats.LastError = err.Error()
	}
	s.statsMu.Unlock()

	if err != nil {
		s.logger.Error("Reminder scan failed",
			zap.Int("sent", sent),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return sent, err
	}
	s.logger.Debug("Reminder scan completed",
		zap.Int("sent", sent),
		zap.Duration("duration", time.Since(start)),
	)
	return sent, nil
}
