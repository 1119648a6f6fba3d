package deposit

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/deposits/internal/domain/deposit"
	"github.com/erp/deposits/internal/domain/shared"
	"go.uber.org/zap"
)

// PaymentOrderPaidHandler handles OrderStatusChangedEvent for payment
// orders and rolls their payment up to the parent order.
//
// A paid deposit order marks the parent's deposit paid and moves an unpaid
// parent to partially-paid. Once every payment order is paid the parent is
// flagged second_payment_paid and completed.
type PaymentOrderPaidHandler struct {
	orders deposit.OrderRepository
	now    func() time.Time
	logger *zap.Logger
}

// NewPaymentOrderPaidHandler creates a new PaymentOrderPaidHandler
func NewPaymentOrderPaidHandler(orders deposit.OrderRepository, logger *zap.Logger) *PaymentOrderPaidHandler {
	return &PaymentOrderPaidHandler{orders: orders, now: time.Now, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *PaymentOrderPaidHandler) EventTypes() []string {
	return []string{deposit.EventTypeOrderStatusChanged}
}

// Handle processes an OrderStatusChangedEvent
func (h *PaymentOrderPaidHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	changed, ok := event.(*deposit.OrderStatusChangedEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", deposit.EventTypeOrderStatusChanged),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			deposit.EventTypeOrderStatusChanged, event.EventType())
	}
	if changed.Kind != deposit.OrderKindPayment || changed.ParentID == nil || !changed.NewStatus.IsPaid() {
		return nil
	}

	payment, err := h.orders.FindByID(ctx, changed.OrderID)
	if err != nil {
		return fmt.Errorf("load payment order: %w", err)
	}
	parent, err := h.orders.FindByID(ctx, *changed.ParentID)
	if err != nil {
		return fmt.Errorf("load parent order: %w", err)
	}

	dirty := false
	if payment.Meta.Get(deposit.MetaPaymentType) == string(deposit.EntryTypeDeposit) {
		if parent.MarkDepositPaid(h.now()) {
			dirty = true
		}
		if parent.Status == deposit.OrderStatusPending || parent.Status == deposit.OrderStatusOnHold {
			moved, err := parent.UpdateStatus(deposit.OrderStatusPartiallyPaid)
			if err != nil {
				return err
			}
			dirty = dirty || moved
		}
	}

	children, err := h.orders.FindChildren(ctx, parent.ID)
	if err != nil {
		return fmt.Errorf("load payment orders: %w", err)
	}
	if allPaid(children) && !parent.Meta.IsYes(deposit.MetaSecondPaymentPaid) {
		parent.SetMeta(deposit.MetaSecondPaymentPaid, deposit.MetaYes)
		if _, err := parent.UpdateStatus(deposit.OrderStatusCompleted); err != nil {
			return err
		}
		dirty = true
		h.logger.Info("all payment orders paid",
			zap.String("order_id", parent.ID.String()),
			zap.Int("payment_orders", len(children)),
		)
	}

	if !dirty {
		return nil
	}
	if err := h.orders.Save(ctx, parent); err != nil {
		h.logger.Error("failed to update parent order",
			zap.String("order_id", parent.ID.String()),
			zap.String("payment_order_id", payment.ID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("save parent order: %w", err)
	}
	parent.ClearDomainEvents()
	return nil
}

func allPaid(children []deposit.Order) bool {
	if len(children) == 0 {
		return false
	}
	for _, c := range children {
		if !c.Status.IsPaid() {
			return false
		}
	}
	return true
}

var _ shared.EventHandler = (*PaymentOrderPaidHandler)(nil)
