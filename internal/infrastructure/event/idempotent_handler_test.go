package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/deposits/internal/domain/shared"
	"github.com/erp/deposits/internal/infrastructure/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockEventHandler is a mock implementation of shared.EventHandler
type MockEventHandler struct {
	mock.Mock
}

func (m *MockEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventHandler) EventTypes() []string {
	args := m.Called()
	return args.Get(0).([]string)
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
	args := m.Called()
	return args.Error(0)
}

func newMemoryStore(t *testing.T) *cache.InMemoryIdempotencyStore {
	t.Helper()
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// ==================== IdempotentHandler Tests ====================

func TestIdempotentHandler_Handle_NewEvent(t *testing.T) {
	mockHandler := new(MockEventHandler)
	event := newTestEvent("DepositPaid", testTenantID)
	mockHandler.On("Handle", mock.Anything, event).Return(nil).Once()

	h := NewIdempotentHandler(mockHandler, newMemoryStore(t), zap.NewNop())

	require.NoError(t, h.Handle(context.Background(), event))
	mockHandler.AssertExpectations(t)
	assert.Equal(t, IdempotencyStats{EventsProcessed: 1}, h.Metrics().Stats())
}

func TestIdempotentHandler_Handle_DuplicateSkipped(t *testing.T) {
	mockHandler := new(MockEventHandler)
	event := newTestEvent("DepositPaid", testTenantID)
	mockHandler.On("Handle", mock.Anything, event).Return(nil).Once()

	h := NewIdempotentHandler(mockHandler, newMemoryStore(t), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, event))
	require.NoError(t, h.Handle(ctx, event))

	mockHandler.AssertNumberOfCalls(t, "Handle", 1)
	assert.Equal(t, int64(1), h.Metrics().Stats().EventsDuplicate)
}

func TestIdempotentHandler_Handle_FailureAllowsRetry(t *testing.T) {
	mockHandler := new(MockEventHandler)
	event := newTestEvent("DepositPaid", testTenantID)
	mockHandler.On("Handle", mock.Anything, event).Return(errors.New("db down")).Once()
	mockHandler.On("Handle", mock.Anything, event).Return(nil).Once()

	h := NewIdempotentHandler(mockHandler, newMemoryStore(t), zap.NewNop())
	ctx := context.Background()

	assert.Error(t, h.Handle(ctx, event))
	require.NoError(t, h.Handle(ctx, event))

	mockHandler.AssertNumberOfCalls(t, "Handle", 2)
	stats := h.Metrics().Stats()
	assert.Equal(t, int64(1), stats.EventsFailed)
	assert.Equal(t, int64(1), stats.EventsProcessed)
}

func TestIdempotentHandler_KeysScopedPerHandler(t *testing.T) {
	store := newMemoryStore(t)
	first := newTestHandler("DepositPaid")
	second := newTestHandler("DepositPaid")
	event := newTestEvent("DepositPaid", testTenantID)
	ctx := context.Background()

	h1 := NewIdempotentHandler(first, store, zap.NewNop(), WithHandlerName("rollup"))
	h2 := NewIdempotentHandler(second, store, zap.NewNop(), WithHandlerName("reminder"))

	require.NoError(t, h1.Handle(ctx, event))
	require.NoError(t, h2.Handle(ctx, event))

	assert.Len(t, first.getHandled(), 1)
	assert.Len(t, second.getHandled(), 1)
	assert.Equal(t, "rollup", h1.Name())
}

func TestIdempotentHandler_Disabled(t *testing.T) {
	h := newTestHandler("DepositPaid")
	store := new(MockIdempotencyStore)
	wrapped := NewIdempotentHandler(h, store, zap.NewNop(),
		WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: false}))
	event := newTestEvent("DepositPaid", testTenantID)

	require.NoError(t, wrapped.Handle(context.Background(), event))
	require.NoError(t, wrapped.Handle(context.Background(), event))

	assert.Len(t, h.getHandled(), 2)
	store.AssertNotCalled(t, "IsProcessed", mock.Anything, mock.Anything)
}

func TestIdempotentHandler_StoreErrorProcessesAnyway(t *testing.T) {
	h := newTestHandler("DepositPaid")
	store := new(MockIdempotencyStore)
	store.On("IsProcessed", mock.Anything, mock.Anything).Return(false, errors.New("redis down"))
	store.On("MarkProcessed", mock.Anything, mock.Anything, 24*time.Hour).Return(false, errors.New("redis down"))

	wrapped := NewIdempotentHandler(h, store, zap.NewNop())
	require.NoError(t, wrapped.Handle(context.Background(), newTestEvent("DepositPaid", testTenantID)))

	assert.Len(t, h.getHandled(), 1)
	store.AssertExpectations(t)
}

func TestIdempotentHandler_EventTypes(t *testing.T) {
	mockHandler := new(MockEventHandler)
	mockHandler.On("EventTypes").Return([]string{"DepositPaid", "OrderStatusChanged"})

	h := NewIdempotentHandler(mockHandler, newMemoryStore(t), zap.NewNop())
	assert.Equal(t, []string{"DepositPaid", "OrderStatusChanged"}, h.EventTypes())
}

func TestIdempotentHandler_OnBus(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	inner := newTestHandler("DepositPaid")
	bus.Subscribe(NewIdempotentHandler(inner, newMemoryStore(t), zap.NewNop()))
	event := newTestEvent("DepositPaid", testTenantID)

	require.NoError(t, bus.Publish(context.Background(), event))
	require.NoError(t, bus.Publish(context.Background(), event))

	assert.Len(t, inner.getHandled(), 1)
}
