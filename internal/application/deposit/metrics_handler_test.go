package deposit

import (
	"context"
	"testing"

	"github.com/erp/deposits/internal/domain/deposit"
	"github.com/erp/deposits/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockMetricsRecorder is a mock implementation of MetricsRecorder
type MockMetricsRecorder struct {
	mock.Mock
}

func (m *MockMetricsRecorder) RecordScheduleFrozen(ctx context.Context, tenantID uuid.UUID, amount float64) {
	m.Called(ctx, tenantID, amount)
}

func (m *MockMetricsRecorder) RecordPaymentOrdersCreated(ctx context.Context, tenantID uuid.UUID, count int, itemized, complete bool) {
	m.Called(ctx, tenantID, count, itemized, complete)
}

func (m *MockMetricsRecorder) RecordDepositPaid(ctx context.Context, tenantID uuid.UUID) {
	m.Called(ctx, tenantID)
}

func (m *MockMetricsRecorder) RecordReminderDue(ctx context.Context, tenantID uuid.UUID) {
	m.Called(ctx, tenantID)
}

func (m *MockMetricsRecorder) RecordStatusChange(ctx context.Context, kind, status string) {
	m.Called(ctx, kind, status)
}

func (m *MockMetricsRecorder) RecordPlanSaved(ctx context.Context, tenantID uuid.UUID) {
	m.Called(ctx, tenantID)
}

// ==================== MetricsHandler Tests ====================

func TestMetricsHandler_EventTypes(t *testing.T) {
	h := NewMetricsHandler(new(MockMetricsRecorder))
	assert.Len(t, h.EventTypes(), 6)
	assert.Contains(t, h.EventTypes(), deposit.EventTypeDepositPaid)
}

func TestMetricsHandler_Handle(t *testing.T) {
	ctx := context.Background()
	order, err := deposit.NewOrder(testTenantID, "7001", valueobject.USD)
	require.NoError(t, err)
	child := deposit.NewPaymentOrder(order, "7001-1")
	plan, err := deposit.NewPaymentPlan(testTenantID, "Split", dec("20"), nil)
	require.NoError(t, err)

	recorder := new(MockMetricsRecorder)
	recorder.On("RecordScheduleFrozen", ctx, testTenantID, 40.0).Once()
	recorder.On("RecordPaymentOrdersCreated", ctx, testTenantID, 2, false, true).Once()
	recorder.On("RecordDepositPaid", ctx, testTenantID).Once()
	recorder.On("RecordReminderDue", ctx, testTenantID).Once()
	recorder.On("RecordStatusChange", ctx, "payment", "completed").Once()
	recorder.On("RecordPlanSaved", ctx, testTenantID).Once()

	h := NewMetricsHandler(recorder)

	require.NoError(t, h.Handle(ctx, deposit.NewDepositScheduleFrozenEvent(order, dec("40"), dec("60"))))
	require.NoError(t, h.Handle(ctx, deposit.NewPaymentOrdersCreatedEvent(order, []uuid.UUID{uuid.New(), uuid.New()}, nil, false, true)))
	require.NoError(t, h.Handle(ctx, deposit.NewDepositPaidEvent(order, testNow)))
	require.NoError(t, h.Handle(ctx, deposit.NewInstallmentReminderDueEvent(order, child, testNow)))
	require.NoError(t, h.Handle(ctx, deposit.NewOrderStatusChangedEvent(child, deposit.OrderStatusPending, deposit.OrderStatusCompleted)))
	require.NoError(t, h.Handle(ctx, deposit.NewPaymentPlanSavedEvent(plan)))

	recorder.AssertExpectations(t)
}
