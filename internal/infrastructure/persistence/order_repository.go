package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/deposits/internal/domain/deposit"
	"github.com/erp/deposits/internal/domain/shared"
	"github.com/erp/deposits/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrderRepository implements deposit.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) withAssociations(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Meta").
		Preload("Notes", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") })
}

// FindByID finds an order by its ID
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*deposit.Order, error) {
	var model models.OrderModel
	if err := r.withAssociations(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForTenant finds an order by ID within a store
func (r *GormOrderRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*deposit.Order, error) {
	var model models.OrderModel
	if err := r.withAssociations(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindChildren returns the payment orders of a parent, oldest first
func (r *GormOrderRepository) FindChildren(ctx context.Context, parentID uuid.UUID) ([]deposit.Order, error) {
	var rows []models.OrderModel
	if err := r.withAssociations(ctx).
		Where("parent_id = ?", parentID).
		Order("created_at ASC, number ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainOrders(rows), nil
}

// FindPendingPaymentOrdersDueBetween returns unpaid payment orders due in [from, to)
func (r *GormOrderRepository) FindPendingPaymentOrdersDueBetween(ctx context.Context, from, to time.Time) ([]deposit.Order, error) {
	var rows []models.OrderModel
	if err := r.withAssociations(ctx).
		Where("kind = ? AND status = ? AND due_at >= ? AND due_at < ?",
			deposit.OrderKindPayment, deposit.OrderStatusPending, from, to).
		Order("due_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainOrders(rows), nil
}

// Create inserts a new order with its lines, meta and notes
func (r *GormOrderRepository) Create(ctx context.Context, order *deposit.Order) error {
	model := models.OrderModelFromDomain(order)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return shared.ErrAlreadyExists
			}
			return err
		}
		return replaceChildren(tx, model)
	})
}

// Save updates an existing order. The row is only written when its version
// still matches order.Version; the version is then incremented.
func (r *GormOrderRepository) Save(ctx context.Context, order *deposit.Order) error {
	now := time.Now()
	model := models.OrderModelFromDomain(order)
	model.UpdatedAt = now
	next := order.Version + 1

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.OrderModel{}).
			Where("id = ? AND version = ?", order.ID, order.Version).
			Updates(orderColumns(model, next))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.OrderModel{}).Where("id = ?", order.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return shared.ErrNotFound
			}
			return shared.ErrConcurrencyConflict
		}
		return replaceChildren(tx, model)
	})
	if err != nil {
		return err
	}
	order.Version = next
	order.UpdatedAt = now
	return nil
}

// orderColumns lists every mutable column so zero values are written too
func orderColumns(m *models.OrderModel, version int) map[string]any {
	return map[string]any{
		"version":               version,
		"updated_at":            m.UpdatedAt,
		"number":                m.Number,
		"kind":                  m.Kind,
		"parent_id":             m.ParentID,
		"status":                m.Status,
		"currency":              m.Currency,
		"prices_include_tax":    m.PricesIncludeTax,
		"customer_id":           m.CustomerID,
		"billing_first_name":    m.Billing.FirstName,
		"billing_last_name":     m.Billing.LastName,
		"billing_company":       m.Billing.Company,
		"billing_address1":      m.Billing.Address1,
		"billing_address2":      m.Billing.Address2,
		"billing_city":          m.Billing.City,
		"billing_state":         m.Billing.State,
		"billing_postcode":      m.Billing.Postcode,
		"billing_country":       m.Billing.Country,
		"billing_email":         m.Billing.Email,
		"billing_phone":         m.Billing.Phone,
		"customer_ip":           m.CustomerIP,
		"user_agent":            m.UserAgent,
		"payment_method":        m.PaymentMethod,
		"payment_method_title":  m.PaymentMethodTitle,
		"cart_tax":              m.CartTax,
		"subtotal":              m.Subtotal,
		"total":                 m.Total,
		"schedule_materialized": m.ScheduleMaterialized,
		"due_at":                m.DueAt,
	}
}

// replaceChildren rewrites the lines, meta and notes of an order
func replaceChildren(tx *gorm.DB, m *models.OrderModel) error {
	if err := tx.Where("order_id = ?", m.ID).Delete(&models.OrderItemModel{}).Error; err != nil {
		return err
	}
	if err := tx.Where("order_id = ?", m.ID).Delete(&models.OrderMetaModel{}).Error; err != nil {
		return err
	}
	if err := tx.Where("order_id = ?", m.ID).Delete(&models.OrderNoteModel{}).Error; err != nil {
		return err
	}
	if len(m.Items) > 0 {
		if err := tx.Create(&m.Items).Error; err != nil {
			return err
		}
	}
	if len(m.Meta) > 0 {
		if err := tx.Create(&m.Meta).Error; err != nil {
			return err
		}
	}
	if len(m.Notes) > 0 {
		if err := tx.Create(&m.Notes).Error; err != nil {
			return err
		}
	}
	return nil
}

func toDomainOrders(rows []models.OrderModel) []deposit.Order {
	orders := make([]deposit.Order, len(rows))
	for i := range rows {
		orders[i] = *rows[i].ToDomain()
	}
	return orders
}

var _ deposit.OrderRepository = (*GormOrderRepository)(nil)
