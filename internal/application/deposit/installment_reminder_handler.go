package deposit

import (
	"context"
	"fmt"

	"github.com/erp/deposits/internal/domain/deposit"
	"github.com/erp/deposits/internal/domain/shared"
	"go.uber.org/zap"
)

// ReminderNotifier delivers an installment reminder to the buyer
type ReminderNotifier interface {
	NotifyInstallmentDue(ctx context.Context, event *deposit.InstallmentReminderDueEvent) error
}

// LogNotifier writes reminders to the log; stores plug in their mailer instead
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// NotifyInstallmentDue logs the reminder
func (n *LogNotifier) NotifyInstallmentDue(_ context.Context, event *deposit.InstallmentReminderDueEvent) error {
	n.logger.Info("installment reminder",
		zap.String("order_id", event.OrderID.String()),
		zap.String("payment_order_id", event.PaymentOrderID.String()),
		zap.String("email", event.Email),
		zap.String("amount", event.Amount.String()),
		zap.Time("due_at", event.DueAt),
	)
	return nil
}

// InstallmentReminderHandler handles InstallmentReminderDueEvent
type InstallmentReminderHandler struct {
	notifier ReminderNotifier
	logger   *zap.Logger
}

// NewInstallmentReminderHandler creates a new InstallmentReminderHandler
func NewInstallmentReminderHandler(notifier ReminderNotifier, logger *zap.Logger) *InstallmentReminderHandler {
	return &InstallmentReminderHandler{notifier: notifier, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *InstallmentReminderHandler) EventTypes() []string {
	return []string{deposit.EventTypeInstallmentReminderDue}
}

// Handle processes an InstallmentReminderDueEvent
func (h *InstallmentReminderHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	reminder, ok := event.(*deposit.InstallmentReminderDueEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			deposit.EventTypeInstallmentReminderDue, event.EventType())
	}
	if reminder.Email == "" {
		h.logger.Warn("installment reminder without billing email",
			zap.String("order_id", reminder.OrderID.String()),
		)
		return nil
	}
	return h.notifier.NotifyInstallmentDue(ctx, reminder)
}

var _ shared.EventHandler = (*InstallmentReminderHandler)(nil)
