package telemetry

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	AttrTenantID   = attribute.Key("tenant_id")
	AttrOrderKind  = attribute.Key("order_kind")
	AttrStatus     = attribute.Key("status")
	AttrItemized   = attribute.Key("itemized")
	AttrIncomplete = attribute.Key("incomplete")
)

// DepositAmountBuckets are histogram boundaries for deposit amounts in major units
var DepositAmountBuckets = []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// DepositMetrics counts deposit lifecycle milestones
type DepositMetrics struct {
	schedulesFrozen *Counter
	depositAmount   *Histogram
	paymentOrders   *Counter
	depositsPaid    *Counter
	remindersDue    *Counter
	statusChanges   *Counter
	plansSaved      *Counter
}

// NewDepositMetrics creates the deposit instruments on meter
func NewDepositMetrics(meter metric.Meter) (*DepositMetrics, error) {
	var (
		m   DepositMetrics
		err error
	)
	counters := []struct {
		target      **Counter
		name, descr string
		unit        string
	}{
		{&m.schedulesFrozen, "deposit_schedules_frozen_total", "Orders placed with a deposit schedule", "{order}"},
		{&m.paymentOrders, "deposit_payment_orders_created_total", "Payment orders created from schedules", "{order}"},
		{&m.depositsPaid, "deposit_paid_total", "Deposits confirmed as paid", "{order}"},
		{&m.remindersDue, "deposit_installment_reminders_total", "Installment reminders raised", "{reminder}"},
		{&m.statusChanges, "deposit_order_status_changes_total", "Order status transitions by kind and status", "{transition}"},
		{&m.plansSaved, "deposit_payment_plans_saved_total", "Payment plans created or updated", "{plan}"},
	}
	for _, c := range counters {
		if *c.target, err = NewCounter(meter, c.name, c.descr, c.unit); err != nil {
			return nil, err
		}
	}
	if m.depositAmount, err = NewHistogram(meter, HistogramOpts{
		Name:        "deposit_amount",
		Description: "Deposit amount charged at checkout",
		Unit:        "{currency}",
		Boundaries:  DepositAmountBuckets,
	}); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordScheduleFrozen counts an order placed with a deposit of amount
func (m *DepositMetrics) RecordScheduleFrozen(ctx context.Context, tenantID uuid.UUID, amount float64) {
	tenant := AttrTenantID.String(tenantID.String())
	m.schedulesFrozen.Inc(ctx, tenant)
	m.depositAmount.Record(ctx, amount, tenant)
}

// RecordPaymentOrdersCreated counts materialized payment orders
func (m *DepositMetrics) RecordPaymentOrdersCreated(ctx context.Context, tenantID uuid.UUID, count int, itemized, complete bool) {
	m.paymentOrders.Add(ctx, int64(count),
		AttrTenantID.String(tenantID.String()),
		AttrItemized.Bool(itemized),
		AttrIncomplete.Bool(!complete),
	)
}

// RecordDepositPaid counts a paid deposit
func (m *DepositMetrics) RecordDepositPaid(ctx context.Context, tenantID uuid.UUID) {
	m.depositsPaid.Inc(ctx, AttrTenantID.String(tenantID.String()))
}

// RecordReminderDue counts a raised installment reminder
func (m *DepositMetrics) RecordReminderDue(ctx context.Context, tenantID uuid.UUID) {
	m.remindersDue.Inc(ctx, AttrTenantID.String(tenantID.String()))
}

// RecordStatusChange counts an order entering status
func (m *DepositMetrics) RecordStatusChange(ctx context.Context, kind, status string) {
	m.statusChanges.Inc(ctx, AttrOrderKind.String(kind), AttrStatus.String(status))
}

// RecordPlanSaved counts a saved payment plan
func (m *DepositMetrics) RecordPlanSaved(ctx context.Context, tenantID uuid.UUID) {
	m.plansSaved.Inc(ctx, AttrTenantID.String(tenantID.String()))
}
