package deposit

import (
	"strings"
	"time"

	"github.com/erp/deposits/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DueRuleKind distinguishes absolute and relative due dates
type DueRuleKind string

const (
	DueOnDate DueRuleKind = "ondate"
	DueAfter  DueRuleKind = "after"
)

// DueUnit is the unit of a relative offset
type DueUnit string

const (
	DueUnitDay   DueUnit = "day"
	DueUnitWeek  DueUnit = "week"
	DueUnitMonth DueUnit = "month"
	DueUnitYear  DueUnit = "year"
)

// ParseDueUnit accepts singular, plural and parenthesised forms ("Month(s)")
func ParseDueUnit(s string) (DueUnit, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("(", "", ")", "").Replace(s)
	s = strings.TrimRight(s, "s")
	u := DueUnit(s)
	switch u {
	case DueUnitDay, DueUnitWeek, DueUnitMonth, DueUnitYear:
		return u, true
	}
	return "", false
}

// DueRule places an installment either on a fixed date or N units after
// the previous cumulative due date
type DueRule struct {
	Kind  DueRuleKind `json:"kind"`
	Date  time.Time   `json:"date,omitempty"`
	After int         `json:"after,omitempty"`
	Unit  DueUnit     `json:"unit,omitempty"`
}

// OnDate returns an absolute due rule
func OnDate(date time.Time) DueRule {
	return DueRule{Kind: DueOnDate, Date: date}
}

// After returns a relative due rule
func After(n int, unit DueUnit) DueRule {
	return DueRule{Kind: DueAfter, After: n, Unit: unit}
}

// Next computes the due date following prev. Relative offsets count from
// the start of prev's day. A rule that cannot apply leaves prev unchanged.
func (r DueRule) Next(prev time.Time) time.Time {
	switch r.Kind {
	case DueOnDate:
		if r.Date.IsZero() {
			return prev
		}
		return r.Date
	case DueAfter:
		y, m, d := prev.Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, prev.Location())
		unit, _ := ParseDueUnit(string(r.Unit))
		switch unit {
		case DueUnitDay:
			return day.AddDate(0, 0, r.After)
		case DueUnitWeek:
			return day.AddDate(0, 0, 7*r.After)
		case DueUnitMonth:
			return day.AddDate(0, r.After, 0)
		case DueUnitYear:
			return day.AddDate(r.After, 0, 0)
		}
	}
	return prev
}

// Validate checks the rule is usable
func (r DueRule) Validate() error {
	switch r.Kind {
	case DueOnDate:
		if r.Date.IsZero() {
			return shared.NewDomainError("INVALID_DUE_RULE", "Absolute due rule requires a date")
		}
	case DueAfter:
		if r.After < 0 {
			return shared.NewDomainError("INVALID_DUE_RULE", "Relative due offset cannot be negative")
		}
		if _, ok := ParseDueUnit(string(r.Unit)); !ok {
			return shared.NewDomainError("INVALID_DUE_RULE", "Relative due unit must be day, week, month or year")
		}
	default:
		return shared.NewDomainError("INVALID_DUE_RULE", "Due rule kind must be ondate or after")
	}
	return nil
}

// PlanInstallment is one scheduled payment of a plan
type PlanInstallment struct {
	Percentage decimal.Decimal `json:"percentage"`
	Due        DueRule         `json:"due"`
}

// PaymentPlan is a named template of installments
type PaymentPlan struct {
	shared.TenantAggregateRoot
	Name              string
	Description       string
	DepositPercentage decimal.Decimal
	Installments      []PlanInstallment
}

// NewPaymentPlan creates a validated payment plan
func NewPaymentPlan(tenantID uuid.UUID, name string, depositPercentage decimal.Decimal, installments []PlanInstallment) (*PaymentPlan, error) {
	p := &PaymentPlan{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                strings.TrimSpace(name),
		DepositPercentage:   depositPercentage,
		Installments:        installments,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.AddDomainEvent(NewPaymentPlanSavedEvent(p))
	return p, nil
}

// Validate checks the plan's name, percentages and due rules
func (p *PaymentPlan) Validate() error {
	if p.Name == "" {
		return shared.NewDomainError("INVALID_PLAN_NAME", "Payment plan name cannot be empty")
	}
	if len(p.Name) > 200 {
		return shared.NewDomainError("INVALID_PLAN_NAME", "Payment plan name cannot exceed 200 characters")
	}
	if p.DepositPercentage.IsNegative() || p.DepositPercentage.GreaterThan(decimal.NewFromInt(100)) {
		return shared.NewDomainError("INVALID_PLAN_PERCENTAGE", "Deposit percentage must be between 0 and 100")
	}
	for _, inst := range p.Installments {
		if inst.Percentage.IsNegative() {
			return shared.NewDomainError("INVALID_PLAN_PERCENTAGE", "Installment percentage cannot be negative")
		}
		if err := inst.Due.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// TotalPercentage sums the deposit and installment percentages
func (p *PaymentPlan) TotalPercentage() decimal.Decimal {
	sum := p.DepositPercentage
	for _, inst := range p.Installments {
		sum = sum.Add(inst.Percentage)
	}
	return sum
}

// Update replaces the plan definition
func (p *PaymentPlan) Update(name, description string, depositPercentage decimal.Decimal, installments []PlanInstallment) error {
	next := *p
	next.Name = strings.TrimSpace(name)
	next.Description = description
	next.DepositPercentage = depositPercentage
	next.Installments = installments
	if err := next.Validate(); err != nil {
		return err
	}
	p.Name = next.Name
	p.Description = next.Description
	p.DepositPercentage = next.DepositPercentage
	p.Installments = next.Installments
	p.Touch()
	p.AddDomainEvent(NewPaymentPlanSavedEvent(p))
	return nil
}
