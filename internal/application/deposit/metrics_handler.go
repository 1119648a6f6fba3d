package deposit

import (
	"context"

	"github.com/erp/deposits/internal/domain/deposit"
	"github.com/erp/deposits/internal/domain/shared"
	"github.com/google/uuid"
)

// MetricsRecorder receives deposit business metrics
type MetricsRecorder interface {
	RecordScheduleFrozen(ctx context.Context, tenantID uuid.UUID, amount float64)
	RecordPaymentOrdersCreated(ctx context.Context, tenantID uuid.UUID, count int, itemized, complete bool)
	RecordDepositPaid(ctx context.Context, tenantID uuid.UUID)
	RecordReminderDue(ctx context.Context, tenantID uuid.UUID)
	RecordStatusChange(ctx context.Context, kind, status string)
	RecordPlanSaved(ctx context.Context, tenantID uuid.UUID)
}

// MetricsHandler turns deposit events into metrics. It never fails.
type MetricsHandler struct {
	recorder MetricsRecorder
}

// NewMetricsHandler creates a MetricsHandler
func NewMetricsHandler(recorder MetricsRecorder) *MetricsHandler {
	return &MetricsHandler{recorder: recorder}
}

// EventTypes returns the event types this handler is interested in
func (h *MetricsHandler) EventTypes() []string {
	return []string{
		deposit.EventTypeDepositScheduleFrozen,
		deposit.EventTypePaymentOrdersCreated,
		deposit.EventTypeDepositPaid,
		deposit.EventTypeInstallmentReminderDue,
		deposit.EventTypeOrderStatusChanged,
		deposit.EventTypePaymentPlanSaved,
	}
}

// Handle records the metric matching the event
func (h *MetricsHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *deposit.DepositScheduleFrozenEvent:
		h.recorder.RecordScheduleFrozen(ctx, e.TenantID(), e.DepositAmount.InexactFloat64())
	case *deposit.PaymentOrdersCreatedEvent:
		h.recorder.RecordPaymentOrdersCreated(ctx, e.TenantID(), len(e.PaymentOrderID), e.Itemized, e.Complete)
	case *deposit.DepositPaidEvent:
		h.recorder.RecordDepositPaid(ctx, e.TenantID())
	case *deposit.InstallmentReminderDueEvent:
		h.recorder.RecordReminderDue(ctx, e.TenantID())
	case *deposit.OrderStatusChangedEvent:
		h.recorder.RecordStatusChange(ctx, string(e.Kind), string(e.NewStatus))
	case *deposit.PaymentPlanSavedEvent:
		h.recorder.RecordPlanSaved(ctx, e.TenantID())
	}
	return nil
}

var _ shared.EventHandler = (*MetricsHandler)(nil)
