package deposit

import (
	"context"
	"time"

	"github.com/erp/deposits/internal/domain/deposit"
	"github.com/erp/deposits/internal/domain/shared"
	"github.com/erp/deposits/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

var (
	testTenantID = uuid.New()
	testNow      = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
)

func fixedClock() time.Time { return testNow }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// MockOrderRepository is a mock implementation of deposit.OrderRepository.
// FindByID and FindChildren accept function return values so tests can
// serve orders created during the call under test.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*deposit.Order, error) {
	args := m.Called(ctx, id)
	if fn, ok := args.Get(0).(func(uuid.UUID) (*deposit.Order, error)); ok {
		return fn(id)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*deposit.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*deposit.Order, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*deposit.Order), args.Error(1)
}

func (m *MockOrderRepository) FindChildren(ctx context.Context, parentID uuid.UUID) ([]deposit.Order, error) {
	args := m.Called(ctx, parentID)
	if fn, ok := args.Get(0).(func(uuid.UUID) []deposit.Order); ok {
		return fn(parentID), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]deposit.Order), args.Error(1)
}

func (m *MockOrderRepository) FindPendingPaymentOrdersDueBetween(ctx context.Context, from, to time.Time) ([]deposit.Order, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]deposit.Order), args.Error(1)
}

func (m *MockOrderRepository) Create(ctx context.Context, order *deposit.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) Save(ctx context.Context, order *deposit.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

// MockPaymentPlanRepository is a mock implementation of deposit.PaymentPlanRepository
type MockPaymentPlanRepository struct {
	mock.Mock
}

func (m *MockPaymentPlanRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*deposit.PaymentPlan, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*deposit.PaymentPlan), args.Error(1)
}

func (m *MockPaymentPlanRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]deposit.PaymentPlan, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]deposit.PaymentPlan), args.Get(1).(int64), args.Error(2)
}

func (m *MockPaymentPlanRepository) Save(ctx context.Context, plan *deposit.PaymentPlan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func (m *MockPaymentPlanRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

// MockSessionStore is a mock implementation of deposit.SessionStore
type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) Load(ctx context.Context, sessionID string) (deposit.MapSession, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(deposit.MapSession), args.Error(1)
}

func (m *MockSessionStore) Save(ctx context.Context, sessionID string, state deposit.MapSession) error {
	args := m.Called(ctx, sessionID, state)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// published returns every event passed to Publish
func (m *MockEventPublisher) published() []shared.DomainEvent {
	var out []shared.DomainEvent
	for _, call := range m.Calls {
		if call.Method == "Publish" {
			out = append(out, call.Arguments.Get(1).([]shared.DomainEvent)...)
		}
	}
	return out
}

func eventTypes(events []shared.DomainEvent) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.EventType())
	}
	return out
}

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

// createdOrders records orders passed to Create and serves them back
type createdOrders struct {
	byID map[uuid.UUID]*deposit.Order
}

func newCreatedOrders() *createdOrders {
	return &createdOrders{byID: make(map[uuid.UUID]*deposit.Order)}
}

func (c *createdOrders) record(args mock.Arguments) {
	o := args.Get(1).(*deposit.Order)
	c.byID[o.ID] = o
}

func (c *createdOrders) find(id uuid.UUID) (*deposit.Order, error) {
	if o, ok := c.byID[id]; ok {
		return o, nil
	}
	return nil, shared.ErrNotFound
}

func (c *createdOrders) children(parentID uuid.UUID) []deposit.Order {
	var out []deposit.Order
	for _, o := range c.byID {
		if o.ParentID != nil && *o.ParentID == parentID {
			out = append(out, *o)
		}
	}
	return out
}

func percentSettings(amount string) deposit.Settings {
	s := deposit.DefaultSettings()
	s.Enabled = true
	s.Amount = dec(amount)
	return s
}

// frozenOrder returns a parent holding a 30/70 deposit schedule
func frozenOrder() *deposit.Order {
	order, _ := deposit.NewOrder(testTenantID, "5001", valueobject.USD)
	order.PaymentMethod = "stripe"
	order.Billing.Email = "buyer@example.com"
	order.AddProduct(uuid.New(), "Kayak", dec("1"), dec("100"), dec("100"), decimal.Zero)
	order.RecalculateTotals()

	info := deposit.NewCalculator(deposit.WithClock(fixedClock)).Compute(deposit.CheckoutContext{
		Totals:   deposit.CartTotals{Currency: valueobject.USD, Subtotal: dec("100"), Total: dec("100")},
		Settings: percentSettings("30"),
	}, deposit.SelectionDeposit, nil)
	_, _ = deposit.FreezeDeposit(order, info, deposit.SelectionDeposit)
	order.ClearDomainEvents()
	return order
}
