package deposit

import (
	"context"
	"time"

	"github.com/erp/deposits/internal/domain/shared"
	"github.com/google/uuid"
)

// OrderRepository persists parent and payment orders
type OrderRepository interface {
	// FindByID finds an order by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByIDForTenant finds an order by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Order, error)

	// FindChildren returns the payment orders generated for a parent, oldest first
	FindChildren(ctx context.Context, parentID uuid.UUID) ([]Order, error)

	// FindPendingPaymentOrdersDueBetween returns unpaid payment orders due in [from, to)
	FindPendingPaymentOrdersDueBetween(ctx context.Context, from, to time.Time) ([]Order, error)

	// Create inserts a new order
	Create(ctx context.Context, order *Order) error

	// Save updates an existing order with an optimistic version check
	Save(ctx context.Context, order *Order) error
}

// PaymentPlanRepository persists payment plans
type PaymentPlanRepository interface {
	// FindByIDForTenant finds a plan by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*PaymentPlan, error)

	// FindAllForTenant lists a tenant's plans
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]PaymentPlan, int64, error)

	// Save creates or updates a plan
	Save(ctx context.Context, plan *PaymentPlan) error

	// DeleteForTenant deletes a plan within a tenant
	DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error
}

// SessionStore loads and stores checkout session state by session ID
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (MapSession, error)
	Save(ctx context.Context, sessionID string, state MapSession) error
}
