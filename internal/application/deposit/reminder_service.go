package deposit

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/deposits/internal/domain/deposit"
	"github.com/erp/deposits/internal/domain/shared"
	"go.uber.org/zap"
)

// ReminderService raises reminders for installments about to fall due
type ReminderService struct {
	orders    deposit.OrderRepository
	publisher shared.EventPublisher
	now       func() time.Time
	logger    *zap.Logger
}

// ReminderServiceOption configures a ReminderService
type ReminderServiceOption func(*ReminderService)

// WithReminderClock sets the time source
func WithReminderClock(now func() time.Time) ReminderServiceOption {
	return func(s *ReminderService) {
		s.now = now
	}
}

// NewReminderService creates a new ReminderService
func NewReminderService(orders deposit.OrderRepository, publisher shared.EventPublisher, logger *zap.Logger, opts ...ReminderServiceOption) *ReminderService {
	s := &ReminderService{orders: orders, publisher: publisher, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendDueReminders publishes one InstallmentReminderDueEvent per unpaid
// payment order due within the window and flags it so it is not reminded
// twice. It returns the number of reminders raised.
func (s *ReminderService) SendDueReminders(ctx context.Context, within time.Duration) (int, error) {
	now := s.now()
	due, err := s.orders.FindPendingPaymentOrdersDueBetween(ctx, now, now.Add(within))
	if err != nil {
		return 0, fmt.Errorf("find installments due: %w", err)
	}

	sent := 0
	for i := range due {
		payment := &due[i]
		if payment.DueAt == nil || payment.ParentID == nil || payment.Meta.IsYes(deposit.MetaReminderSent) {
			continue
		}
		parent, err := s.orders.FindByID(ctx, *payment.ParentID)
		if err != nil {
			s.logger.Warn("skipping reminder for orphan payment order",
				zap.String("payment_order_id", payment.ID.String()),
				zap.Error(err),
			)
			continue
		}

		event := deposit.NewInstallmentReminderDueEvent(parent, payment, *payment.DueAt)
		payment.SetMeta(deposit.MetaReminderSent, deposit.MetaYes)
		if err := s.orders.Save(ctx, payment); err != nil {
			return sent, fmt.Errorf("flag reminder on payment order %s: %w", payment.ID, err)
		}
		if s.publisher != nil {
			if err := s.publisher.Publish(ctx, event); err != nil {
				s.logger.Error("failed to publish installment reminder",
					zap.String("payment_order_id", payment.ID.String()),
					zap.Error(err),
				)
				continue
			}
		}
		sent++
	}

	if sent > 0 {
		s.logger.Info("installment reminders raised", zap.Int("count", sent))
	}
	return sent, nil
}
