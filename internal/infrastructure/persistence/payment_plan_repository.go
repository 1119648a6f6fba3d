package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/erp/deposits/internal/domain/deposit"
	"github.com/erp/deposits/internal/domain/shared"
	"github.com/erp/deposits/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentPlanSortFields contains allowed sort fields for payment plans
var PaymentPlanSortFields = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"name":       true,
}

// GormPaymentPlanRepository implements deposit.PaymentPlanRepository using GORM
type GormPaymentPlanRepository struct {
	db *gorm.DB
}

// NewGormPaymentPlanRepository creates a new GormPaymentPlanRepository
func NewGormPaymentPlanRepository(db *gorm.DB) *GormPaymentPlanRepository {
	return &GormPaymentPlanRepository{db: db}
}

// FindByIDForTenant finds a plan by ID within a store
func (r *GormPaymentPlanRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*deposit.PaymentPlan, error) {
	var model models.PaymentPlanModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForTenant lists a store's plans, by name unless the filter says
// otherwise, with paging and an optional case-insensitive name search. The
// total ignores paging.
func (r *GormPaymentPlanRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]deposit.PaymentPlan, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PaymentPlanModel{}).Where("tenant_id = ?", tenantID)
	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order(planOrder(filter))
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.PaymentPlanModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	plans := make([]deposit.PaymentPlan, len(rows))
	for i := range rows {
		plans[i] = *rows[i].ToDomain()
	}
	return plans, total, nil
}

// Save creates or updates a plan
func (r *GormPaymentPlanRepository) Save(ctx context.Context, plan *deposit.PaymentPlan) error {
	plan.UpdatedAt = time.Now()
	model := models.PaymentPlanModelFromDomain(plan)
	return r.db.WithContext(ctx).Save(model).Error
}

// DeleteForTenant deletes a plan within a store
func (r *GormPaymentPlanRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&models.PaymentPlanModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// planOrder builds the ORDER BY clause from whitelisted fields only
func planOrder(filter shared.Filter) string {
	field := strings.TrimSpace(filter.OrderBy)
	if !PaymentPlanSortFields[field] {
		field = "name"
	}
	if strings.EqualFold(strings.TrimSpace(filter.OrderDir), "desc") {
		return field + " DESC"
	}
	return field + " ASC"
}

var _ deposit.PaymentPlanRepository = (*GormPaymentPlanRepository)(nil)
