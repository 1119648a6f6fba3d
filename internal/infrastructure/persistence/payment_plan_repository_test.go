package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/deposits/internal/domain/deposit"
	"github.com/erp/deposits/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPlan(t *testing.T, tenantID uuid.UUID, name string) *deposit.PaymentPlan {
	t.Helper()
	plan, err := deposit.NewPaymentPlan(tenantID, name, decimal.NewFromInt(20), []deposit.PlanInstallment{
		{Percentage: decimal.NewFromInt(40), Due: deposit.After(1, deposit.DueUnitMonth)},
		{Percentage: decimal.NewFromInt(40), Due: deposit.OnDate(time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC))},
	})
	require.NoError(t, err)
	return plan
}

// ==================== GormPaymentPlanRepository Tests ====================

func TestGormPaymentPlanRepository_SaveAndFind(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewGormPaymentPlanRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	plan := newTestPlan(t, tenantID, "Quarterly")
	plan.Description = "Three payments"
	require.NoError(t, repo.Save(ctx, plan))

	found, err := repo.FindByIDForTenant(ctx, tenantID, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, "Quarterly", found.Name)
	assert.Equal(t, "Three payments", found.Description)
	assert.True(t, found.DepositPercentage.Equal(decimal.NewFromInt(20)))
	require.Len(t, found.Installments, 2)
	assert.Equal(t, deposit.DueAfter, found.Installments[0].Due.Kind)
	assert.Equal(t, deposit.DueUnitMonth, found.Installments[0].Due.Unit)
	assert.Equal(t, deposit.DueOnDate, found.Installments[1].Due.Kind)
	assert.True(t, found.Installments[1].Due.Date.Equal(time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)))

	t.Run("updates in place", func(t *testing.T) {
		found.Name = "Quarterly v2"
		require.NoError(t, repo.Save(ctx, found))

		again, err := repo.FindByIDForTenant(ctx, tenantID, plan.ID)
		require.NoError(t, err)
		assert.Equal(t, "Quarterly v2", again.Name)
	})

	t.Run("is scoped to the store", func(t *testing.T) {
		_, err := repo.FindByIDForTenant(ctx, uuid.New(), plan.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormPaymentPlanRepository_FindAllForTenant(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewGormPaymentPlanRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	for _, name := range []string{"Monthly", "Weekly", "Layaway monthly"} {
		require.NoError(t, repo.Save(ctx, newTestPlan(t, tenantID, name)))
	}
	require.NoError(t, repo.Save(ctx, newTestPlan(t, uuid.New(), "Other store")))

	plans, total, err := repo.FindAllForTenant(ctx, tenantID, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, plans, 3)
	assert.Equal(t, "Layaway monthly", plans[0].Name)

	plans, total, err = repo.FindAllForTenant(ctx, tenantID, shared.Filter{Page: 1, PageSize: 1, Search: "MONTHLY", OrderDir: "desc"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, plans, 1)
	assert.Equal(t, "Monthly", plans[0].Name)
}

func TestGormPaymentPlanRepository_DeleteForTenant(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewGormPaymentPlanRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	plan := newTestPlan(t, tenantID, "Monthly")
	require.NoError(t, repo.Save(ctx, plan))

	assert.ErrorIs(t, repo.DeleteForTenant(ctx, uuid.New(), plan.ID), shared.ErrNotFound)
	require.NoError(t, repo.DeleteForTenant(ctx, tenantID, plan.ID))
	_, err := repo.FindByIDForTenant(ctx, tenantID, plan.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPlanOrder(t *testing.T) {
	assert.Equal(t, "name ASC", planOrder(shared.Filter{}))
	assert.Equal(t, "created_at DESC", planOrder(shared.Filter{OrderBy: "created_at", OrderDir: "DESC"}))
	assert.Equal(t, "name ASC", planOrder(shared.Filter{OrderBy: "name; DROP TABLE payment_plans"}))
}
