package models

import (
	"github.com/erp/deposits/internal/domain/deposit"
	"github.com/shopspring/decimal"
)

// PaymentPlanModel is the persistence model for the PaymentPlan aggregate.
// Installments are stored as a JSON document.
type PaymentPlanModel struct {
	TenantAggregateModel
	Name              string                    `gorm:"type:varchar(200);not null"`
	Description       string                    `gorm:"type:text"`
	DepositPercentage decimal.Decimal           `gorm:"type:decimal(7,4);not null;default:0"`
	Installments      []deposit.PlanInstallment `gorm:"type:jsonb;serializer:json;not null"`
}

// TableName returns the table name for GORM
func (PaymentPlanModel) TableName() string {
	return "payment_plans"
}

// ToDomain converts the persistence model to a domain PaymentPlan
func (m *PaymentPlanModel) ToDomain() *deposit.PaymentPlan {
	return &deposit.PaymentPlan{
		TenantAggregateRoot: m.TenantAggregateRoot(),
		Name:                m.Name,
		Description:         m.Description,
		DepositPercentage:   m.DepositPercentage,
		Installments:        m.Installments,
	}
}

// PaymentPlanModelFromDomain creates a new persistence model from a domain PaymentPlan
func PaymentPlanModelFromDomain(p *deposit.PaymentPlan) *PaymentPlanModel {
	m := &PaymentPlanModel{
		Name:              p.Name,
		Description:       p.Description,
		DepositPercentage: p.DepositPercentage,
		Installments:      p.Installments,
	}
	m.FromDomainTenantAggregateRoot(p.TenantAggregateRoot)
	return m
}
