package deposit

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/deposits/internal/domain/deposit"
	"github.com/erp/deposits/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newPaidHandler(repo *MockOrderRepository) *PaymentOrderPaidHandler {
	h := NewPaymentOrderPaidHandler(repo, zap.NewNop())
	h.now = fixedClock
	return h
}

func paymentOrderOf(parent *deposit.Order, number string, entryType deposit.EntryType, status deposit.OrderStatus) *deposit.Order {
	child := deposit.NewPaymentOrder(parent, number)
	child.SetMeta(deposit.MetaPaymentType, string(entryType))
	child.Status = status
	return child
}

func paidEvent(child *deposit.Order) *deposit.OrderStatusChangedEvent {
	return deposit.NewOrderStatusChangedEvent(child, deposit.OrderStatusPending, deposit.OrderStatusCompleted)
}

// ==================== PaymentOrderPaidHandler Tests ====================

func TestPaymentOrderPaidHandler_EventTypes(t *testing.T) {
	h := newPaidHandler(new(MockOrderRepository))
	assert.Equal(t, []string{deposit.EventTypeOrderStatusChanged}, h.EventTypes())
}

func TestPaymentOrderPaidHandler_DepositPaid(t *testing.T) {
	repo := new(MockOrderRepository)
	h := newPaidHandler(repo)

	parent := frozenOrder()
	depositOrder := paymentOrderOf(parent, "5001-1", deposit.EntryTypeDeposit, deposit.OrderStatusCompleted)
	second := paymentOrderOf(parent, "5001-2", deposit.EntryTypeSecondPayment, deposit.OrderStatusPending)

	repo.On("FindByID", mock.Anything, depositOrder.ID).Return(depositOrder, nil)
	repo.On("FindByID", mock.Anything, parent.ID).Return(parent, nil)
	repo.On("FindChildren", mock.Anything, parent.ID).Return([]deposit.Order{*depositOrder, *second}, nil)
	repo.On("Save", mock.Anything, parent).Return(nil)

	require.NoError(t, h.Handle(context.Background(), paidEvent(depositOrder)))

	assert.Equal(t, deposit.OrderStatusPartiallyPaid, parent.Status)
	assert.True(t, parent.Meta.IsYes(deposit.MetaDepositPaid))
	assert.Equal(t, "1773100800", parent.Meta.Get(deposit.MetaDepositPaymentTime))
	assert.False(t, parent.Meta.IsYes(deposit.MetaSecondPaymentPaid))
	repo.AssertNumberOfCalls(t, "Save", 1)
}

func TestPaymentOrderPaidHandler_AllPaidCompletesParent(t *testing.T) {
	repo := new(MockOrderRepository)
	h := newPaidHandler(repo)

	parent := frozenOrder()
	parent.Status = deposit.OrderStatusPartiallyPaid
	parent.MarkDepositPaid(testNow)
	parent.ClearDomainEvents()
	depositOrder := paymentOrderOf(parent, "5001-1", deposit.EntryTypeDeposit, deposit.OrderStatusCompleted)
	second := paymentOrderOf(parent, "5001-2", deposit.EntryTypeSecondPayment, deposit.OrderStatusCompleted)

	repo.On("FindByID", mock.Anything, second.ID).Return(second, nil)
	repo.On("FindByID", mock.Anything, parent.ID).Return(parent, nil)
	repo.On("FindChildren", mock.Anything, parent.ID).Return([]deposit.Order{*depositOrder, *second}, nil)
	repo.On("Save", mock.Anything, parent).Return(nil)

	require.NoError(t, h.Handle(context.Background(), paidEvent(second)))

	assert.Equal(t, deposit.OrderStatusCompleted, parent.Status)
	assert.True(t, parent.Meta.IsYes(deposit.MetaSecondPaymentPaid))
}

func TestPaymentOrderPaidHandler_NothingToChange(t *testing.T) {
	repo := new(MockOrderRepository)
	h := newPaidHandler(repo)

	parent := frozenOrder()
	parent.Status = deposit.OrderStatusPartiallyPaid
	parent.MarkDepositPaid(testNow)
	depositOrder := paymentOrderOf(parent, "5001-1", deposit.EntryTypeDeposit, deposit.OrderStatusCompleted)
	second := paymentOrderOf(parent, "5001-2", deposit.EntryTypeSecondPayment, deposit.OrderStatusPending)

	repo.On("FindByID", mock.Anything, depositOrder.ID).Return(depositOrder, nil)
	repo.On("FindByID", mock.Anything, parent.ID).Return(parent, nil)
	repo.On("FindChildren", mock.Anything, parent.ID).Return([]deposit.Order{*depositOrder, *second}, nil)

	require.NoError(t, h.Handle(context.Background(), paidEvent(depositOrder)))
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestPaymentOrderPaidHandler_IgnoresIrrelevantEvents(t *testing.T) {
	repo := new(MockOrderRepository)
	h := newPaidHandler(repo)
	parent := frozenOrder()

	t.Run("parent order", func(t *testing.T) {
		event := deposit.NewOrderStatusChangedEvent(parent, deposit.OrderStatusPending, deposit.OrderStatusProcessing)
		assert.NoError(t, h.Handle(context.Background(), event))
	})

	t.Run("unpaid status", func(t *testing.T) {
		child := paymentOrderOf(parent, "5001-1", deposit.EntryTypeDeposit, deposit.OrderStatusOnHold)
		event := deposit.NewOrderStatusChangedEvent(child, deposit.OrderStatusPending, deposit.OrderStatusOnHold)
		assert.NoError(t, h.Handle(context.Background(), event))
	})

	repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestPaymentOrderPaidHandler_WrongEventType(t *testing.T) {
	h := newPaidHandler(new(MockOrderRepository))
	plan, err := deposit.NewPaymentPlan(testTenantID, "Split", dec("20"), nil)
	require.NoError(t, err)

	err = h.Handle(context.Background(), deposit.NewPaymentPlanSavedEvent(plan))
	assert.Error(t, err)
}

func TestPaymentOrderPaidHandler_SaveFails(t *testing.T) {
	repo := new(MockOrderRepository)
	h := newPaidHandler(repo)

	parent := frozenOrder()
	depositOrder := paymentOrderOf(parent, "5001-1", deposit.EntryTypeDeposit, deposit.OrderStatusCompleted)

	repo.On("FindByID", mock.Anything, depositOrder.ID).Return(depositOrder, nil)
	repo.On("FindByID", mock.Anything, parent.ID).Return(parent, nil)
	repo.On("FindChildren", mock.Anything, parent.ID).Return([]deposit.Order{*depositOrder}, nil)
	repo.On("Save", mock.Anything, parent).Return(shared.ErrConcurrencyConflict)

	err := h.Handle(context.Background(), paidEvent(depositOrder))
	assert.True(t, errors.Is(err, shared.ErrConcurrencyConflict))
}
