package valueobject

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	JPY Currency = "JPY"
	CNY Currency = "CNY"
)

// DefaultCurrency is used when an order or cart carries no currency
const DefaultCurrency = USD

var hundred = decimal.NewFromInt(100)

// ParseCurrency validates an ISO 4217 code
func ParseCurrency(code string) (Currency, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return "", fmt.Errorf("invalid currency %q: %w", code, err)
	}
	return Currency(unit.String()), nil
}

// Scale returns the number of minor-unit digits of the currency.
// Unknown codes fall back to two digits.
func (c Currency) Scale() int32 {
	unit, err := currency.ParseISO(string(c))
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

// RoundHalfUp rounds d to places, ties away from zero
func RoundHalfUp(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Round(places)
}

// RoundHalfDown rounds d to places, ties toward zero (1.005 -> 1.00)
func RoundHalfDown(d decimal.Decimal, places int32) decimal.Decimal {
	shifted := d.Shift(places)
	frac := shifted.Sub(shifted.Truncate(0)).Abs()
	if frac.Equal(decimal.NewFromFloat(0.5)) {
		return d.Truncate(places)
	}
	return d.Round(places)
}

// Money is an amount in a currency. Arithmetic keeps full precision;
// rounding to the currency's minor unit is explicit.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates Money with the given amount and currency
func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("currency cannot be empty")
	}
	return Money{amount: amount, currency: currency}, nil
}

// MustMoney creates Money and panics on an empty currency
func MustMoney(amount decimal.Decimal, currency Currency) Money {
	m, err := NewMoney(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() Currency      { return m.currency }
func (m Money) IsPositive() bool        { return m.amount.IsPositive() }

// Add returns the sum; currencies must match
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot add %s to %s", other.currency, m.currency)
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Subtract returns the difference; currencies must match
func (m Money) Subtract(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot subtract %s from %s", other.currency, m.currency)
	}
	return Money{amount: m.amount.Sub(other.amount), currency: m.currency}, nil
}

// LessThan compares amounts; money in another currency is never less
func (m Money) LessThan(other Money) bool {
	return m.currency == other.currency && m.amount.LessThan(other.amount)
}

// Percent returns pct percent of m, unrounded
func (m Money) Percent(pct decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(pct).Div(hundred), currency: m.currency}
}

// RoundHalfUp rounds to the currency precision, ties away from zero
func (m Money) RoundHalfUp() Money {
	return Money{amount: RoundHalfUp(m.amount, m.currency.Scale()), currency: m.currency}
}

// RoundHalfDown rounds to the currency precision, ties toward zero
func (m Money) RoundHalfDown() Money {
	return Money{amount: RoundHalfDown(m.amount, m.currency.Scale()), currency: m.currency}
}

// AllocateByWeights splits m across weights proportionally at currency
// precision. Every share is first truncated; the leftover minor units are
// then handed out one at a time to the heaviest weights, earlier positions
// first on ties. For m at currency precision the shares sum to m and none
// has the opposite sign.
func (m Money) AllocateByWeights(weights []decimal.Decimal) ([]Money, error) {
	if len(weights) == 0 {
		return nil, errors.New("weights cannot be empty")
	}
	sum := decimal.Zero
	for _, w := range weights {
		if w.IsNegative() {
			return nil, errors.New("weights cannot be negative")
		}
		sum = sum.Add(w)
	}
	if sum.IsZero() {
		return nil, errors.New("weights sum to zero")
	}

	scale := m.currency.Scale()
	shares := make([]decimal.Decimal, len(weights))
	allocated := decimal.Zero
	for i, w := range weights {
		shares[i] = m.amount.Mul(w).Div(sum).Truncate(scale)
		allocated = allocated.Add(shares[i])
	}

	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return weights[order[a]].GreaterThan(weights[order[b]])
	})

	unit := decimal.New(1, -scale)
	if m.amount.IsNegative() {
		unit = unit.Neg()
	}
	residue := m.amount.Sub(allocated)
	for i := 0; !residue.IsZero() && residue.Sign() == unit.Sign(); i++ {
		idx := order[i%len(order)]
		shares[idx] = shares[idx].Add(unit)
		residue = residue.Sub(unit)
	}

	out := make([]Money, len(shares))
	for i, share := range shares {
		out[i] = Money{amount: share, currency: m.currency}
	}
	return out, nil
}
