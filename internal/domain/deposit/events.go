package deposit

import (
	"time"

	"github.com/erp/deposits/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate types
const (
	AggregateTypeOrder       = "Order"
	AggregateTypePaymentPlan = "PaymentPlan"
)

// Event types
const (
	EventTypeOrderStatusChanged     = "OrderStatusChanged"
	EventTypeDepositScheduleFrozen  = "DepositScheduleFrozen"
	EventTypePaymentOrdersCreated   = "PaymentOrdersCreated"
	EventTypeDepositPaid            = "DepositPaid"
	EventTypeInstallmentReminderDue = "InstallmentReminderDue"
	EventTypePaymentPlanSaved       = "PaymentPlanSaved"
)

// OrderStatusChangedEvent is raised whenever an order changes status
type OrderStatusChangedEvent struct {
	shared.BaseDomainEvent
	OrderID   uuid.UUID   `json:"order_id"`
	Number    string      `json:"number"`
	Kind      OrderKind   `json:"kind"`
	ParentID  *uuid.UUID  `json:"parent_id,omitempty"`
	OldStatus OrderStatus `json:"old_status"`
	NewStatus OrderStatus `json:"new_status"`
}

// NewOrderStatusChangedEvent creates a new OrderStatusChangedEvent
func NewOrderStatusChangedEvent(o *Order, old, next OrderStatus) *OrderStatusChangedEvent {
	return &OrderStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderStatusChanged, AggregateTypeOrder, o.ID, o.TenantID),
		OrderID:         o.ID,
		Number:          o.Number,
		Kind:            o.Kind,
		ParentID:        o.ParentID,
		OldStatus:       old,
		NewStatus:       next,
	}
}

// DepositScheduleFrozenEvent is raised when a deposit schedule is stored on an order
type DepositScheduleFrozenEvent struct {
	shared.BaseDomainEvent
	OrderID         uuid.UUID       `json:"order_id"`
	DepositAmount   decimal.Decimal `json:"deposit_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
}

// NewDepositScheduleFrozenEvent creates a new DepositScheduleFrozenEvent
func NewDepositScheduleFrozenEvent(o *Order, deposit, remaining decimal.Decimal) *DepositScheduleFrozenEvent {
	return &DepositScheduleFrozenEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDepositScheduleFrozen, AggregateTypeOrder, o.ID, o.TenantID),
		OrderID:         o.ID,
		DepositAmount:   deposit,
		RemainingAmount: remaining,
	}
}

// PaymentOrdersCreatedEvent is raised once the schedule has been materialized
type PaymentOrdersCreatedEvent struct {
	shared.BaseDomainEvent
	OrderID        uuid.UUID   `json:"order_id"`
	PaymentOrderID []uuid.UUID `json:"payment_order_ids"`
	DepositOrderID *uuid.UUID  `json:"deposit_order_id,omitempty"`
	Itemized       bool        `json:"itemized"`
	Complete       bool        `json:"complete"`
}

// NewPaymentOrdersCreatedEvent creates a new PaymentOrdersCreatedEvent
func NewPaymentOrdersCreatedEvent(o *Order, children []uuid.UUID, depositID *uuid.UUID, itemized, complete bool) *PaymentOrdersCreatedEvent {
	return &PaymentOrdersCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentOrdersCreated, AggregateTypeOrder, o.ID, o.TenantID),
		OrderID:         o.ID,
		PaymentOrderID:  children,
		DepositOrderID:  depositID,
		Itemized:        itemized,
		Complete:        complete,
	}
}

// DepositPaidEvent is raised when the deposit leg of an order is paid
type DepositPaidEvent struct {
	shared.BaseDomainEvent
	OrderID uuid.UUID `json:"order_id"`
	PaidAt  time.Time `json:"paid_at"`
}

// NewDepositPaidEvent creates a new DepositPaidEvent
func NewDepositPaidEvent(o *Order, paidAt time.Time) *DepositPaidEvent {
	return &DepositPaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDepositPaid, AggregateTypeOrder, o.ID, o.TenantID),
		OrderID:         o.ID,
		PaidAt:          paidAt,
	}
}

// InstallmentReminderDueEvent is raised when an unpaid installment is about to fall due
type InstallmentReminderDueEvent struct {
	shared.BaseDomainEvent
	OrderID        uuid.UUID       `json:"order_id"`
	PaymentOrderID uuid.UUID       `json:"payment_order_id"`
	DueAt          time.Time       `json:"due_at"`
	Amount         decimal.Decimal `json:"amount"`
	Email          string          `json:"email"`
}

// NewInstallmentReminderDueEvent creates a new InstallmentReminderDueEvent
func NewInstallmentReminderDueEvent(parent, payment *Order, dueAt time.Time) *InstallmentReminderDueEvent {
	return &InstallmentReminderDueEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInstallmentReminderDue, AggregateTypeOrder, parent.ID, parent.TenantID),
		OrderID:         parent.ID,
		PaymentOrderID:  payment.ID,
		DueAt:           dueAt,
		Amount:          payment.Total,
		Email:           parent.Billing.Email,
	}
}

// PaymentPlanSavedEvent is raised when a plan is created or updated
type PaymentPlanSavedEvent struct {
	shared.BaseDomainEvent
	PlanID uuid.UUID `json:"plan_id"`
	Name   string    `json:"name"`
}

// NewPaymentPlanSavedEvent creates a new PaymentPlanSavedEvent
func NewPaymentPlanSavedEvent(p *PaymentPlan) *PaymentPlanSavedEvent {
	return &PaymentPlanSavedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentPlanSaved, AggregateTypePaymentPlan, p.ID, p.TenantID),
		PlanID:          p.ID,
		Name:            p.Name,
	}
}
