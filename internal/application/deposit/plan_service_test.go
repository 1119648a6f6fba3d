package deposit

import (
	"context"
	"testing"

	"github.com/erp/deposits/internal/domain/deposit"
	"github.com/erp/deposits/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func savePlanRequest() SavePaymentPlanRequest {
	return SavePaymentPlanRequest{
		Name:              "Three months",
		DepositPercentage: dec("25"),
		Installments: []PlanInstallmentInput{
			{Percentage: dec("25"), Due: DueRuleInput{Kind: "after", After: 1, Unit: "Month(s)"}},
			{Percentage: dec("50"), Due: DueRuleInput{Kind: "after", After: 2, Unit: "months"}},
		},
	}
}

// ==================== PlanService Tests ====================

func TestPlanService_Create(t *testing.T) {
	repo := new(MockPaymentPlanRepository)
	publisher := new(MockEventPublisher)
	svc := NewPlanService(repo, zap.NewNop())
	svc.SetEventPublisher(publisher)

	repo.On("Save", mock.Anything, mock.AnythingOfType("*deposit.PaymentPlan")).Return(nil)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	resp, err := svc.Create(context.Background(), testTenantID, savePlanRequest())
	require.NoError(t, err)
	assert.Equal(t, "Three months", resp.Name)
	assert.True(t, resp.TotalPercentage.Equal(dec("100")))
	require.Len(t, resp.Installments, 2)
	assert.Equal(t, deposit.DueUnitMonth, resp.Installments[0].Due.Unit)
	assert.Equal(t, []string{deposit.EventTypePaymentPlanSaved}, eventTypes(publisher.published()))
}

func TestPlanService_Create_Invalid(t *testing.T) {
	repo := new(MockPaymentPlanRepository)
	svc := NewPlanService(repo, zap.NewNop())

	req := savePlanRequest()
	req.Installments[0].Due.Unit = "fortnight"
	_, err := svc.Create(context.Background(), testTenantID, req)
	assert.Error(t, err)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestPlanService_Update(t *testing.T) {
	repo := new(MockPaymentPlanRepository)
	svc := NewPlanService(repo, zap.NewNop())

	plan, err := deposit.NewPaymentPlan(testTenantID, "Old", dec("10"), nil)
	require.NoError(t, err)
	repo.On("FindByIDForTenant", mock.Anything, testTenantID, plan.ID).Return(plan, nil)
	repo.On("Save", mock.Anything, plan).Return(nil)

	resp, err := svc.Update(context.Background(), testTenantID, plan.ID, savePlanRequest())
	require.NoError(t, err)
	assert.Equal(t, plan.ID, resp.ID)
	assert.Equal(t, "Three months", plan.Name)
	assert.Empty(t, plan.GetDomainEvents())
}

func TestPlanService_Get_NotFound(t *testing.T) {
	repo := new(MockPaymentPlanRepository)
	svc := NewPlanService(repo, zap.NewNop())
	id := uuid.New()
	repo.On("FindByIDForTenant", mock.Anything, testTenantID, id).Return(nil, shared.ErrNotFound)

	_, err := svc.Get(context.Background(), testTenantID, id)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPlanService_List(t *testing.T) {
	repo := new(MockPaymentPlanRepository)
	svc := NewPlanService(repo, zap.NewNop())

	a, _ := deposit.NewPaymentPlan(testTenantID, "A", dec("50"), nil)
	b, _ := deposit.NewPaymentPlan(testTenantID, "B", dec("30"), nil)
	repo.On("FindAllForTenant", mock.Anything, testTenantID, shared.Filter{Page: 1, PageSize: 20}).
		Return([]deposit.PaymentPlan{*a, *b}, int64(2), nil)

	page, err := svc.List(context.Background(), testTenantID, shared.Filter{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, int64(2), page.Total)
}

func TestPlanService_Delete(t *testing.T) {
	repo := new(MockPaymentPlanRepository)
	svc := NewPlanService(repo, zap.NewNop())
	id := uuid.New()
	repo.On("DeleteForTenant", mock.Anything, testTenantID, id).Return(nil)

	require.NoError(t, svc.Delete(context.Background(), testTenantID, id))
	repo.AssertExpectations(t)
}
