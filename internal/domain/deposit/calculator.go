package deposit

import (
	"time"

	"github.com/erp/deposits/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StartDateShifter adjusts the date installment due rules start from
type StartDateShifter func(time.Time) time.Time

// DepositInfo is the outcome of a schedule computation
type DepositInfo struct {
	Enabled         bool
	DepositAmount   decimal.Decimal
	RemainingAmount decimal.Decimal
	Schedule        PaymentSchedule
	Breakdown       Breakdown
	HasPaymentPlans bool
	Selected        Selection
	SelectedPlan    *uuid.UUID
}

// Calculator computes deposit breakdowns. It is pure apart from reading
// the clock.
type Calculator struct {
	now        func() time.Time
	shiftStart StartDateShifter
}

// CalculatorOption configures a Calculator
type CalculatorOption func(*Calculator)

// WithClock sets the time source used as the installment start date
func WithClock(now func() time.Time) CalculatorOption {
	return func(c *Calculator) {
		c.now = now
	}
}

// WithStartDateShifter installs the start date hook
func WithStartDateShifter(fn StartDateShifter) CalculatorOption {
	return func(c *Calculator) {
		c.shiftStart = fn
	}
}

// NewCalculator creates a Calculator
func NewCalculator(opts ...CalculatorOption) *Calculator {
	c := &Calculator{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compute builds the deposit breakdown for the cart. plan is only consulted
// for payment_plan deposits and may be nil otherwise.
func (c *Calculator) Compute(cc CheckoutContext, selection Selection, plan *PaymentPlan) DepositInfo {
	info := DepositInfo{Selected: selection}
	s := cc.Settings

	if !s.Enabled || selection == SelectionFull {
		return info
	}
	if !s.CheckoutMode {
		return c.computePerProduct(cc.Totals, info)
	}
	if selection != SelectionDeposit {
		return info
	}

	totals := cc.Totals
	if !totals.Subtotal.IsPositive() && !totals.Total.IsPositive() {
		return info
	}
	base := totals.Money(totals.Total)
	if totals.Subtotal.IsPositive() {
		base = totals.Money(totals.Subtotal)
	}
	total := totals.Money(totals.Total)

	deposit := totals.Money(decimal.Zero)
	var installments []ScheduleEntry
	switch s.AmountType {
	case AmountTypeFixed:
		deposit = totals.Money(s.Amount)
	case AmountTypePercent:
		deposit = base.Percent(s.Amount)
	case AmountTypePaymentPlan:
		if plan != nil && plan.DepositPercentage.IsPositive() {
			deposit = base.Percent(plan.DepositPercentage)
			info.HasPaymentPlans = true
			id := plan.ID
			info.SelectedPlan = &id
			installments = c.installments(base, plan)
		}
	}

	switch {
	case deposit.IsPositive() && deposit.LessThan(total):
		info.Enabled = true
		info.DepositAmount = deposit.RoundHalfUp().Amount()
		if len(installments) == 0 {
			remaining, err := total.Subtract(deposit)
			if err != nil {
				return DepositInfo{Selected: selection}
			}
			installments = []ScheduleEntry{NewSecondPaymentEntry(remaining.RoundHalfUp().Amount())}
		}
	case deposit.IsPositive():
		info.Enabled = true
		info.DepositAmount = total.RoundHalfUp().Amount()
		installments = nil
	default:
		return info
	}

	return finish(info, installments)
}

// computePerProduct sums per-item deposits for stores that configure
// deposits on products instead of offering the choice at checkout
func (c *Calculator) computePerProduct(totals CartTotals, info DepositInfo) DepositInfo {
	flagged := false
	deposit := totals.Money(decimal.Zero)
	for _, item := range totals.Items {
		if !item.DepositEnabled {
			continue
		}
		flagged = true
		sum, err := deposit.Add(totals.Money(item.DepositAmount))
		if err != nil {
			return info
		}
		deposit = sum
	}
	if !flagged || !deposit.IsPositive() {
		return info
	}

	remaining, err := totals.Money(totals.Total).Subtract(deposit)
	if err != nil {
		return info
	}
	if !remaining.IsPositive() {
		remaining = totals.Money(decimal.Zero)
	}
	info.Enabled = true
	info.DepositAmount = deposit.RoundHalfUp().Amount()
	return finish(info, []ScheduleEntry{NewSecondPaymentEntry(remaining.RoundHalfUp().Amount())})
}

func (c *Calculator) installments(base valueobject.Money, plan *PaymentPlan) []ScheduleEntry {
	cursor := c.now()
	if c.shiftStart != nil {
		cursor = c.shiftStart(cursor)
	}

	entries := make([]ScheduleEntry, 0, len(plan.Installments))
	for _, inst := range plan.Installments {
		cursor = inst.Due.Next(cursor)
		amount := base.Percent(inst.Percentage).RoundHalfUp().Amount()
		entries = append(entries, NewPartialPaymentEntry(cursor, amount))
	}
	return entries
}

func finish(info DepositInfo, installments []ScheduleEntry) DepositInfo {
	info.Breakdown = Breakdown{CartItems: info.DepositAmount}
	breakdown := info.Breakdown
	schedule := NewPaymentSchedule(NewDepositEntry(info.DepositAmount, &breakdown))
	for _, e := range installments {
		schedule = schedule.Add(e)
	}
	info.Schedule = schedule.SortByDueDate()
	info.RemainingAmount = info.Schedule.RemainingTotal()
	return info
}

// GatewayDisplayTotal is the amount express/wallet gateways should charge
// now: the deposit when one applies, the cart total otherwise
func GatewayDisplayTotal(info DepositInfo, cartTotal decimal.Decimal) decimal.Decimal {
	if info.Enabled && info.DepositAmount.IsPositive() {
		return info.DepositAmount
	}
	return cartTotal
}

// ProrateBreakdown splits the order's amount components onto the deposit in
// the ratio deposit/total. Amounts stay unrounded; FreezeDeposit rounds the
// deposit taxes when it stores them.
func ProrateBreakdown(info DepositInfo, parts Breakdown, total decimal.Decimal) DepositInfo {
	if !info.Enabled || !total.IsPositive() {
		return info
	}
	ratio := info.DepositAmount.Div(total)
	if ratio.GreaterThan(decimal.NewFromInt(1)) {
		ratio = decimal.NewFromInt(1)
	}
	info.Breakdown = Breakdown{
		CartItems:     parts.CartItems.Mul(ratio),
		Taxes:         parts.Taxes.Mul(ratio),
		ShippingTaxes: parts.ShippingTaxes.Mul(ratio),
		Shipping:      parts.Shipping.Mul(ratio),
		Discount:      parts.Discount.Mul(ratio),
		DiscountTotal: parts.DiscountTotal.Mul(ratio),
		DiscountTax:   parts.DiscountTax.Mul(ratio),
	}
	return info
}
