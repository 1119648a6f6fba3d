package deposit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/deposits/internal/domain/shared"
	"github.com/google/uuid"
)

// Transition reports what a sync step did to the deposit payment order
type Transition struct {
	Applied        bool
	DepositOrderID uuid.UUID
	From           OrderStatus
	To             OrderStatus
	Note           string
	DepositPaid    bool
	// Order is the deposit payment order that was inspected, nil when none
	Order *Order
}

// StateMachine keeps a parent order and its deposit payment order in step.
// Only the deposit leg is synchronized; installment orders complete through
// their own payments. A completed deposit order is never changed again.
type StateMachine struct {
	orders OrderRepository
	now    func() time.Time
}

// StateMachineOption configures a StateMachine
type StateMachineOption func(*StateMachine)

// WithStateMachineClock sets the time source for paid timestamps
func WithStateMachineClock(now func() time.Time) StateMachineOption {
	return func(sm *StateMachine) {
		sm.now = now
	}
}

// NewStateMachine creates a StateMachine
func NewStateMachine(orders OrderRepository, opts ...StateMachineOption) *StateMachine {
	sm := &StateMachine{orders: orders, now: time.Now}
	for _, opt := range opts {
		opt(sm)
	}
	return sm
}

// OnParentStatusChanged applies the parent's new status to its deposit order:
//
//	on-hold     -> deposit on-hold with an offline payment note
//	pending     -> deposit pending
//	processing  -> deposit completed, parent marked deposit paid
//	cancelled   -> deposit cancelled
//	failed      -> deposit failed
//
// Re-applying a transition is a no-op.
func (sm *StateMachine) OnParentStatusChanged(ctx context.Context, parent *Order, oldStatus, newStatus OrderStatus) (Transition, error) {
	depositOrder, err := sm.depositOrder(ctx, parent)
	if err != nil || depositOrder == nil {
		return Transition{}, err
	}
	current := depositOrder.Status
	t := Transition{DepositOrderID: depositOrder.ID, From: current, To: current, Order: depositOrder}
	if current == OrderStatusCompleted {
		return t, nil
	}

	switch {
	case newStatus == OrderStatusOnHold && current != OrderStatusOnHold:
		t.To, t.Note = OrderStatusOnHold, NoteDepositAwaitingOffline
	case newStatus == OrderStatusPending && current != OrderStatusPending:
		t.To = OrderStatusPending
	case newStatus == OrderStatusProcessing && current != OrderStatusProcessing:
		t.To, t.Note, t.DepositPaid = OrderStatusCompleted, NoteDepositCompleted, true
	case newStatus == OrderStatusCancelled || newStatus == OrderStatusFailed:
		t.To = newStatus
	default:
		return t, nil
	}

	depositOrder.CopyPaymentMethodFrom(parent)
	return sm.apply(ctx, parent, depositOrder, t)
}

// OnPaymentCompleted completes the deposit order when the parent's payment
// is confirmed by a gateway, independently of any status change
func (sm *StateMachine) OnPaymentCompleted(ctx context.Context, parent *Order) (Transition, error) {
	depositOrder, err := sm.depositOrder(ctx, parent)
	if err != nil || depositOrder == nil {
		return Transition{}, err
	}
	t := Transition{DepositOrderID: depositOrder.ID, From: depositOrder.Status, To: depositOrder.Status, Order: depositOrder}
	if depositOrder.Status == OrderStatusCompleted {
		return t, nil
	}

	depositOrder.CopyPaymentMethodFrom(parent)
	t.To, t.Note, t.DepositPaid = OrderStatusCompleted, NoteDepositCompletedOnPay, true
	return sm.apply(ctx, parent, depositOrder, t)
}

func (sm *StateMachine) apply(ctx context.Context, parent, depositOrder *Order, t Transition) (Transition, error) {
	changed, err := depositOrder.UpdateStatus(t.To)
	if err != nil {
		return t, err
	}
	if !changed {
		return t, nil
	}
	if t.Note != "" {
		depositOrder.AddNote(t.Note)
	}
	if err := sm.orders.Save(ctx, depositOrder); err != nil {
		return t, fmt.Errorf("save deposit payment order: %w", err)
	}
	t.Applied = true

	if t.DepositPaid && parent.MarkDepositPaid(sm.now()) {
		if err := sm.orders.Save(ctx, parent); err != nil {
			return t, fmt.Errorf("save parent order: %w", err)
		}
	}
	return t, nil
}

// depositOrder loads the payment order of the first deposit entry. A nil
// order with a nil error means there is nothing to synchronize.
func (sm *StateMachine) depositOrder(ctx context.Context, parent *Order) (*Order, error) {
	if parent == nil || parent.IsPaymentOrder() || !parent.HasDeposit() {
		return nil, nil
	}
	entry, ok := parent.Schedule().FirstOfType(EntryTypeDeposit)
	if !ok || !entry.IsMaterialized() {
		return nil, nil
	}
	id, err := uuid.Parse(entry.ID)
	if err != nil {
		return nil, nil
	}

	child, err := sm.orders.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load deposit payment order: %w", err)
	}
	if child.ParentID == nil || *child.ParentID != parent.ID {
		return nil, nil
	}
	return child, nil
}
