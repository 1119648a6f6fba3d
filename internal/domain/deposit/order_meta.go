package deposit

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/erp/deposits/internal/domain/shared"
	"github.com/erp/deposits/internal/domain/shared/valueobject"
)

// Order meta keys
const (
	MetaDepositOption      = "deposit_option"
	MetaIsDeposit          = "is_deposit"
	MetaHasDeposit         = "order_has_deposit"
	MetaPaymentSchedule    = "payment_schedule"
	MetaDepositAmount      = "deposit_amount"
	MetaSecondPayment      = "second_payment"
	MetaDepositBreakdown   = "deposit_breakdown"
	MetaDepositPaid        = "deposit_paid"
	MetaDepositPaymentTime = "deposit_payment_time"
	MetaSecondPaymentPaid  = "second_payment_paid"
	MetaItemizedPayments   = "itemized_payments"
	MetaReminderSent       = "second_payment_reminder_email_sent"
	MetaSelectedPlan       = "selected_plan"
	MetaVATExempt          = "is_vat_exempt"

	// Child payment order meta
	MetaPaymentType        = "deposits_payment_type"
	MetaPaymentDetail      = "payment_det"
	MetaPartialPaymentDate = "partial_payment_date"
)

const (
	MetaYes = "yes"
	MetaNo  = "no"
)

func formatUnix(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

// FreezeDeposit records the buyer's choice and the computed schedule on a
// newly created order. It returns true when the order was modified.
//
// A full-payment choice clears any deposit data. An order that already
// carries a deposit only has its schedule repaired. Otherwise the deposit
// entry, with taxes rounded half down, is prepended and the tracking meta
// is initialised.
func FreezeDeposit(order *Order, info DepositInfo, selection Selection) (bool, error) {
	if order == nil {
		return false, nil
	}

	if selection == SelectionFull {
		order.SetMeta(MetaDepositOption, string(SelectionFull))
		order.SetMeta(MetaIsDeposit, MetaNo)
		order.SetMeta(MetaHasDeposit, MetaNo)
		order.DeleteMeta(MetaDepositAmount)
		order.DeleteMeta(MetaSecondPayment)
		order.DeleteMeta(MetaPaymentSchedule)
		return true, nil
	}

	if order.IsPaymentOrder() {
		return false, nil
	}

	if order.HasDeposit() {
		schedule := order.Schedule()
		if schedule.IsEmpty() {
			return false, nil
		}
		return true, order.SetSchedule(Repair(schedule))
	}

	if !info.Enabled || !info.DepositAmount.IsPositive() {
		return false, nil
	}

	scale := order.Scale()
	b := info.Breakdown
	cartItems := b.CartItems
	if cartItems.IsZero() {
		cartItems = info.DepositAmount
	}
	depositEntry := NewDepositEntry(info.DepositAmount, &Breakdown{
		CartItems:     cartItems,
		Taxes:         valueobject.RoundHalfDown(b.Taxes.Add(b.ShippingTaxes), scale),
		Shipping:      valueobject.RoundHalfUp(b.Shipping, scale),
		Discount:      valueobject.RoundHalfUp(b.Discount, scale),
		DiscountTotal: valueobject.RoundHalfUp(b.DiscountTotal, scale),
		DiscountTax:   valueobject.RoundHalfUp(b.DiscountTax, scale),
	})
	schedule := Repair(info.Schedule).Prepend(depositEntry)

	breakdown, err := json.Marshal(b)
	if err != nil {
		return false, shared.NewDomainErrorWithCause("BREAKDOWN_ENCODE_FAILED", "Failed to encode deposit breakdown", err)
	}
	if err := order.SetSchedule(schedule); err != nil {
		return false, err
	}

	order.SetMeta(MetaDepositOption, string(SelectionDeposit))
	order.SetMeta(MetaIsDeposit, MetaYes)
	order.SetMeta(MetaHasDeposit, MetaYes)
	order.SetMeta(MetaDepositPaid, MetaNo)
	order.SetMeta(MetaSecondPaymentPaid, MetaNo)
	order.SetMeta(MetaDepositAmount, info.DepositAmount.StringFixed(scale))
	order.SetMeta(MetaSecondPayment, schedule.RemainingTotal().StringFixed(scale))
	order.SetMeta(MetaDepositBreakdown, string(breakdown))
	order.SetMeta(MetaDepositPaymentTime, "")
	order.SetMeta(MetaReminderSent, MetaNo)
	if info.SelectedPlan != nil {
		order.SetMeta(MetaSelectedPlan, info.SelectedPlan.String())
	}
	order.AddDomainEvent(NewDepositScheduleFrozenEvent(order, info.DepositAmount, schedule.RemainingTotal()))
	return true, nil
}
