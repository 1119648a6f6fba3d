package deposit

import (
	"context"

	"github.com/erp/deposits/internal/domain/deposit"
	"github.com/erp/deposits/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PlanService manages payment plans
type PlanService struct {
	plans     deposit.PaymentPlanRepository
	publisher shared.EventPublisher
	logger    *zap.Logger
}

// NewPlanService creates a new PlanService
func NewPlanService(plans deposit.PaymentPlanRepository, logger *zap.Logger) *PlanService {
	return &PlanService{plans: plans, logger: logger}
}

// SetEventPublisher sets the event publisher for plan events
func (s *PlanService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// List returns a page of the tenant's plans
func (s *PlanService) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[PaymentPlanResponse], error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	plans, total, err := s.plans.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	items := make([]PaymentPlanResponse, 0, len(plans))
	for i := range plans {
		items = append(items, ToPaymentPlanResponse(&plans[i]))
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

// Get returns a single plan
func (s *PlanService) Get(ctx context.Context, tenantID, planID uuid.UUID) (*PaymentPlanResponse, error) {
	plan, err := s.plans.FindByIDForTenant(ctx, tenantID, planID)
	if err != nil {
		return nil, err
	}
	resp := ToPaymentPlanResponse(plan)
	return &resp, nil
}

// Create stores a new plan
func (s *PlanService) Create(ctx context.Context, tenantID uuid.UUID, req SavePaymentPlanRequest) (*PaymentPlanResponse, error) {
	plan, err := deposit.NewPaymentPlan(tenantID, req.Name, req.DepositPercentage, toInstallments(req.Installments))
	if err != nil {
		return nil, err
	}
	plan.Description = req.Description
	if err := s.plans.Save(ctx, plan); err != nil {
		return nil, err
	}
	s.publish(ctx, plan)

	s.logger.Info("payment plan created",
		zap.String("plan_id", plan.ID.String()),
		zap.String("name", plan.Name),
		zap.Int("installments", len(plan.Installments)),
	)
	resp := ToPaymentPlanResponse(plan)
	return &resp, nil
}

// Update replaces a plan's definition
func (s *PlanService) Update(ctx context.Context, tenantID, planID uuid.UUID, req SavePaymentPlanRequest) (*PaymentPlanResponse, error) {
	plan, err := s.plans.FindByIDForTenant(ctx, tenantID, planID)
	if err != nil {
		return nil, err
	}
	if err := plan.Update(req.Name, req.Description, req.DepositPercentage, toInstallments(req.Installments)); err != nil {
		return nil, err
	}
	if err := s.plans.Save(ctx, plan); err != nil {
		return nil, err
	}
	s.publish(ctx, plan)
	resp := ToPaymentPlanResponse(plan)
	return &resp, nil
}

// Delete removes a plan. Orders keep the schedule they were placed with.
func (s *PlanService) Delete(ctx context.Context, tenantID, planID uuid.UUID) error {
	return s.plans.DeleteForTenant(ctx, tenantID, planID)
}

func (s *PlanService) publish(ctx context.Context, plan *deposit.PaymentPlan) {
	events := plan.GetDomainEvents()
	plan.ClearDomainEvents()
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish plan events", zap.String("plan_id", plan.ID.String()), zap.Error(err))
	}
}
