package deposit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erp/deposits/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Notes written on deposit payment orders
const (
	NoteDepositAwaitingOffline = "Deposit payment awaiting payment confirmation (offline payment)."
	NoteDepositCompleted       = "Deposit payment completed."
	NoteDepositCompletedOnPay  = "Deposit payment completed via checkout."
)

const (
	partialPaymentFeeName = "Partial Payment for order %s"
	couponDiscountFeeName = "Coupon discount"
	shippingLineName      = "Shipping"
)

// MaterializeResult describes what a materialization did
type MaterializeResult struct {
	Skipped        bool
	Schedule       PaymentSchedule
	DepositOrderID *uuid.UUID
	Created        []*Order
}

// Materializer turns a parent's frozen schedule into payment orders, once
type Materializer struct {
	orders   OrderRepository
	settings Settings
	now      func() time.Time
}

// MaterializerOption configures a Materializer
type MaterializerOption func(*Materializer)

// WithMaterializerClock sets the time source for paid timestamps
func WithMaterializerClock(now func() time.Time) MaterializerOption {
	return func(m *Materializer) {
		m.now = now
	}
}

// NewMaterializer creates a Materializer
func NewMaterializer(orders OrderRepository, settings Settings, opts ...MaterializerOption) *Materializer {
	m := &Materializer{orders: orders, settings: settings, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ShouldMaterialize reports whether parent still needs its payment orders
func ShouldMaterialize(parent *Order) bool {
	if parent == nil || parent.IsPaymentOrder() || !parent.HasDeposit() || parent.ScheduleMaterialized {
		return false
	}
	schedule := parent.Schedule()
	return !schedule.IsEmpty() && !schedule.HasAnyID()
}

// Materialize creates one payment order per schedule entry, in schedule
// order, then stores the IDs back on the parent and syncs the deposit
// order with the parent's current status.
//
// It is a no-op when the parent was already materialized or any entry
// already carries an ID. Creation stops at the first failure: orders
// created before it remain, the parent records them and is marked
// materialized so the operation is not repeated, and the error is returned.
// A failure before any order exists leaves the parent untouched so a
// later attempt starts over.
func (m *Materializer) Materialize(ctx context.Context, parent *Order) (MaterializeResult, error) {
	schedule := parent.Schedule()
	if !ShouldMaterialize(parent) {
		return MaterializeResult{Skipped: true, Schedule: schedule}, nil
	}

	itemized := m.settings.Structure == StructureCopyItems && itemizable(parent)
	result := MaterializeResult{Schedule: schedule}
	var depositOrder *Order

	for i, entry := range schedule.Entries() {
		child, err := m.buildPaymentOrder(parent, entry, i+1, itemized)
		if err == nil {
			err = m.orders.Create(ctx, child)
		}
		if err != nil {
			failure := fmt.Errorf("create payment order for schedule entry %q: %w", entry.Key, err)
			return result, m.recordPartial(ctx, parent, &result, itemized, failure)
		}

		assigned, err := result.Schedule.AssignID(entry.Key, child.ID.String())
		if err != nil {
			return result, m.recordPartial(ctx, parent, &result, itemized, err)
		}
		result.Schedule = assigned
		result.Created = append(result.Created, child)

		if entry.Type == EntryTypeDeposit && depositOrder == nil {
			depositOrder = child
			id := child.ID
			result.DepositOrderID = &id
		}
	}

	if err := m.finalizeParent(parent, &result, itemized, true); err != nil {
		return result, err
	}

	depositChanged, err := m.syncInitialStatus(parent, depositOrder)
	if err != nil {
		return result, fmt.Errorf("sync deposit payment order status: %w", err)
	}
	if depositChanged {
		if err := m.orders.Save(ctx, depositOrder); err != nil {
			return result, fmt.Errorf("save deposit payment order: %w", err)
		}
	}
	if err := m.orders.Save(ctx, parent); err != nil {
		return result, fmt.Errorf("save parent order: %w", err)
	}
	return result, nil
}

func (m *Materializer) recordPartial(ctx context.Context, parent *Order, result *MaterializeResult, itemized bool, failure error) error {
	if len(result.Created) == 0 {
		return failure
	}
	if err := m.finalizeParent(parent, result, itemized, false); err != nil {
		return errors.Join(failure, err)
	}
	if err := m.orders.Save(ctx, parent); err != nil {
		return errors.Join(failure, fmt.Errorf("save partially materialized parent: %w", err))
	}
	return failure
}

func (m *Materializer) finalizeParent(parent *Order, result *MaterializeResult, itemized, complete bool) error {
	if err := parent.SetSchedule(result.Schedule); err != nil {
		return err
	}
	if itemized {
		parent.SetMeta(MetaItemizedPayments, MetaYes)
	} else {
		parent.SetMeta(MetaItemizedPayments, MetaNo)
	}
	parent.MarkScheduleMaterialized()

	ids := make([]uuid.UUID, 0, len(result.Created))
	for _, c := range result.Created {
		ids = append(ids, c.ID)
	}
	parent.AddDomainEvent(NewPaymentOrdersCreatedEvent(parent, ids, result.DepositOrderID, itemized, complete))
	return nil
}

func (m *Materializer) buildPaymentOrder(parent *Order, entry ScheduleEntry, seq int, itemized bool) (*Order, error) {
	child := NewPaymentOrder(parent, fmt.Sprintf("%s-%d", parent.Number, seq))

	detail, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encode schedule entry: %w", err)
	}
	child.SetMeta(MetaPaymentType, string(entry.Type))
	child.SetMeta(MetaPaymentDetail, string(detail))
	if due, ok := entry.DueDate(); ok {
		child.SetMeta(MetaPartialPaymentDate, string(entry.Key))
		child.DueAt = &due
	}

	amount := parent.Money(entry.Total).RoundHalfUp()

	if itemized {
		if err := copyItems(child, parent, amount); err != nil {
			return nil, err
		}
		child.SetMeta(MetaItemizedPayments, MetaYes)
		child.RecalculateTotals()
	} else {
		child.AddFee(fmt.Sprintf(partialPaymentFeeName, parent.Number), m.feeAmount(parent, entry, amount), true)
		child.SetMeta(MetaItemizedPayments, MetaNo)
		child.SetTotal(amount.Amount())
		if m.settings.TaxSplitDisplay {
			applyTaxSplit(child, entry)
			child.RecalculateTotals()
		}
	}

	if entry.Type == EntryTypeDeposit {
		child.CopyPaymentMethodFrom(parent)
	}
	return child, nil
}

// feeAmount keeps the rounding asymmetry of split tax display: the deposit
// fee rounds half down, installment fees round half up
func (m *Materializer) feeAmount(parent *Order, entry ScheduleEntry, amount valueobject.Money) decimal.Decimal {
	if !m.settings.TaxSplitDisplay || entry.Breakdown == nil {
		return amount.Amount()
	}
	items := parent.Money(entry.Breakdown.CartItems)
	if entry.Key == KeyDeposit {
		return items.RoundHalfDown().Amount()
	}
	return items.RoundHalfUp().Amount()
}

func applyTaxSplit(child *Order, entry ScheduleEntry) {
	b := entry.Breakdown
	if b == nil {
		return
	}
	if !b.Taxes.IsZero() {
		child.CartTax = b.Taxes
	}
	if !b.Shipping.IsZero() {
		child.AddShipping(shippingLineName, b.Shipping)
	}
	if !b.DiscountTotal.IsZero() {
		child.AddFee(couponDiscountFeeName, b.DiscountTotal.Neg(), false)
	}
}

// itemizable reports whether the parent's product lines can carry the
// payments. Without a positive product total there is nothing to weight the
// split by, so the payment orders fall back to a single fee line.
func itemizable(parent *Order) bool {
	for _, p := range parent.ProductItems() {
		if p.Total.IsPositive() {
			return true
		}
	}
	return false
}

// copyItems adds the parent's product lines scaled so they sum to amount
func copyItems(child, parent *Order, amount valueobject.Money) error {
	products := parent.ProductItems()
	weights := make([]decimal.Decimal, len(products))
	for i, p := range products {
		weights[i] = decimal.Max(p.Total, decimal.Zero)
	}
	shares, err := amount.AllocateByWeights(weights)
	if err != nil {
		return fmt.Errorf("allocate itemized amounts: %w", err)
	}
	for i, p := range products {
		productID := uuid.Nil
		if p.ProductID != nil {
			productID = *p.ProductID
		}
		share := shares[i].Amount()
		child.AddProduct(productID, p.Name, p.Quantity, share, share, decimal.Zero)
	}
	return nil
}

// syncInitialStatus aligns a freshly created deposit order with the parent
func (m *Materializer) syncInitialStatus(parent, depositOrder *Order) (bool, error) {
	if depositOrder == nil {
		return false, nil
	}
	switch {
	case parent.Status == OrderStatusOnHold && depositOrder.Status != OrderStatusOnHold:
		if _, err := depositOrder.UpdateStatus(OrderStatusOnHold); err != nil {
			return false, err
		}
		depositOrder.AddNote(NoteDepositAwaitingOffline)
		return true, nil
	case parent.Status.IsPaid():
		if _, err := depositOrder.UpdateStatus(OrderStatusCompleted); err != nil {
			return false, err
		}
		depositOrder.AddNote(NoteDepositCompleted)
		parent.MarkDepositPaid(m.now())
		return true, nil
	}
	return false, nil
}
