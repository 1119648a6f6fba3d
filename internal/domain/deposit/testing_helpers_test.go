package deposit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/deposits/internal/domain/shared"
	"github.com/erp/deposits/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	testTenantID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	testNow      = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	errDBDown    = errors.New("db down")
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func fixedClock() time.Time {
	return testNow
}

// memoryOrders is an in-memory OrderRepository with failure injection
type memoryOrders struct {
	orders       map[uuid.UUID]*Order
	creates      int
	saves        int
	failCreateAt int
	failSave     bool
}

func newMemoryOrders() *memoryOrders {
	return &memoryOrders{orders: make(map[uuid.UUID]*Order)}
}

func (r *memoryOrders) FindByID(_ context.Context, id uuid.UUID) (*Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return o, nil
}

func (r *memoryOrders) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Order, error) {
	o, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return o, nil
}

func (r *memoryOrders) FindChildren(_ context.Context, parentID uuid.UUID) ([]Order, error) {
	var out []Order
	for _, o := range r.orders {
		if o.ParentID != nil && *o.ParentID == parentID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *memoryOrders) FindPendingPaymentOrdersDueBetween(_ context.Context, from, to time.Time) ([]Order, error) {
	var out []Order
	for _, o := range r.orders {
		if o.IsPaymentOrder() && o.Status == OrderStatusPending && o.DueAt != nil &&
			!o.DueAt.Before(from) && o.DueAt.Before(to) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *memoryOrders) Create(_ context.Context, o *Order) error {
	r.creates++
	if r.failCreateAt > 0 && r.creates == r.failCreateAt {
		return errDBDown
	}
	r.orders[o.ID] = o
	return nil
}

func (r *memoryOrders) Save(_ context.Context, o *Order) error {
	if r.failSave {
		return errDBDown
	}
	r.saves++
	r.orders[o.ID] = o
	return nil
}

func (r *memoryOrders) children(parentID uuid.UUID) []*Order {
	var out []*Order
	for _, o := range r.orders {
		if o.ParentID != nil && *o.ParentID == parentID {
			out = append(out, o)
		}
	}
	return out
}

func checkoutSettings(amountType AmountType, amount string) Settings {
	s := DefaultSettings()
	s.Enabled = true
	s.AmountType = amountType
	s.Amount = dec(amount)
	return s
}

func cart(subtotal, total string) CartTotals {
	return CartTotals{Currency: valueobject.USD, Subtotal: dec(subtotal), Total: dec(total)}
}

// newDepositOrder builds a parent with a frozen 30/70 deposit schedule
func newDepositOrder(t *testing.T, repo *memoryOrders) *Order {
	t.Helper()
	order, err := NewOrder(testTenantID, "1001", valueobject.USD)
	require.NoError(t, err)
	order.PaymentMethod = "bacs"
	order.PaymentMethodTitle = "Direct bank transfer"
	order.Billing = Billing{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Country: "GB"}
	order.AddProduct(uuid.New(), "Widget", dec("2"), dec("60"), dec("60"), decimal.Zero)
	order.AddProduct(uuid.New(), "Gadget", dec("1"), dec("40"), dec("40"), decimal.Zero)
	order.RecalculateTotals()

	calc := NewCalculator(WithClock(fixedClock))
	info := calc.Compute(CheckoutContext{
		Totals:   cart("100", "100"),
		Settings: checkoutSettings(AmountTypePercent, "30"),
	}, SelectionDeposit, nil)
	_, err = FreezeDeposit(order, info, SelectionDeposit)
	require.NoError(t, err)
	order.ClearDomainEvents()
	if repo != nil {
		require.NoError(t, repo.Create(context.Background(), order))
		repo.creates = 0
	}
	return order
}
