package deposit

import (
	"github.com/erp/deposits/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Session keys read and written by the resolver
const (
	SessionKeyDepositOption = "deposit_option"
	SessionKeySelectedPlan  = "selected_plan"
)

// SessionState is the per-checkout key/value store surviving across requests
type SessionState interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// MapSession is a SessionState backed by a map
type MapSession map[string]string

func (m MapSession) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m MapSession) Set(key, value string) {
	m[key] = value
}

// CartItem is a cart line as seen by per-product deposits
type CartItem struct {
	ProductID      uuid.UUID
	Name           string
	Quantity       decimal.Decimal
	LineSubtotal   decimal.Decimal
	LineTotal      decimal.Decimal
	DepositEnabled bool
	DepositAmount  decimal.Decimal
}

// CartTotals is the snapshot of the cart the calculator works from
type CartTotals struct {
	Currency valueobject.Currency
	Subtotal decimal.Decimal
	Total    decimal.Decimal
	Items    []CartItem
}

// Money wraps amount in the cart currency
func (c CartTotals) Money(amount decimal.Decimal) valueobject.Money {
	return valueobject.MustMoney(amount, c.currency())
}

func (c CartTotals) currency() valueobject.Currency {
	if c.Currency == "" {
		return valueobject.DefaultCurrency
	}
	return c.Currency
}

// CheckoutContext carries everything the resolver and calculator need
// for one request
type CheckoutContext struct {
	Totals   CartTotals
	Session  SessionState
	Settings Settings
}
