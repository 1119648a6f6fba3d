package event

import (
	"github.com/erp/deposits/internal/domain/deposit"
)

// RegisterDepositEvents registers every deposit event so the outbox
// processor can rebuild them from stored payloads
func RegisterDepositEvents(serializer *EventSerializer) {
	serializer.Register(deposit.EventTypeOrderStatusChanged, &deposit.OrderStatusChangedEvent{})
	serializer.Register(deposit.EventTypeDepositScheduleFrozen, &deposit.DepositScheduleFrozenEvent{})
	serializer.Register(deposit.EventTypePaymentOrdersCreated, &deposit.PaymentOrdersCreatedEvent{})
	serializer.Register(deposit.EventTypeDepositPaid, &deposit.DepositPaidEvent{})
	serializer.Register(deposit.EventTypeInstallmentReminderDue, &deposit.InstallmentReminderDueEvent{})
	serializer.Register(deposit.EventTypePaymentPlanSaved, &deposit.PaymentPlanSavedEvent{})
}

// NewDepositEventSerializer returns a serializer with all deposit events registered
func NewDepositEventSerializer() *EventSerializer {
	s := NewEventSerializer()
	RegisterDepositEvents(s)
	return s
}
