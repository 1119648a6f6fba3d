package deposit

import (
	"github.com/erp/deposits/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AmountType selects how the deposit amount is derived
type AmountType string

const (
	AmountTypeFixed       AmountType = "fixed"
	AmountTypePercent     AmountType = "percent"
	AmountTypePaymentPlan AmountType = "payment_plan"
)

// IsValid checks if the amount type is known
func (t AmountType) IsValid() bool {
	switch t {
	case AmountTypeFixed, AmountTypePercent, AmountTypePaymentPlan:
		return true
	}
	return false
}

// Selection is the buyer's payment mode
type Selection string

const (
	SelectionDeposit Selection = "deposit"
	SelectionFull    Selection = "full"
)

// IsValid checks if the selection is deposit or full
func (s Selection) IsValid() bool {
	return s == SelectionDeposit || s == SelectionFull
}

// Structure selects how child payment orders represent their amount
type Structure string

const (
	// StructureSingle uses a single fee line per child order
	StructureSingle Structure = "single"
	// StructureCopyItems copies the parent's product lines, scaled down
	StructureCopyItems Structure = "copy_items"
)

// Settings is the read-only deposit configuration of a store
type Settings struct {
	Enabled         bool
	CheckoutMode    bool
	AmountType      AmountType
	Amount          decimal.Decimal
	ForceDeposit    bool
	DefaultSelected Selection
	TaxSplitDisplay bool
	Structure       Structure
	PlanIDs         []uuid.UUID
}

// DefaultSettings returns a disabled, checkout-mode, 50 percent configuration
func DefaultSettings() Settings {
	return Settings{
		Enabled:         false,
		CheckoutMode:    true,
		AmountType:      AmountTypePercent,
		Amount:          decimal.NewFromInt(50),
		DefaultSelected: SelectionDeposit,
		Structure:       StructureSingle,
	}
}

// Validate checks the settings for internal consistency
func (s Settings) Validate() error {
	if !s.AmountType.IsValid() {
		return shared.NewDomainError("INVALID_AMOUNT_TYPE", "Deposit amount type must be fixed, percent or payment_plan")
	}
	if s.Amount.IsNegative() {
		return shared.NewDomainError("INVALID_DEPOSIT_AMOUNT", "Deposit amount cannot be negative")
	}
	if s.AmountType == AmountTypePercent && s.Amount.GreaterThan(decimal.NewFromInt(100)) {
		return shared.NewDomainError("INVALID_DEPOSIT_AMOUNT", "Deposit percentage cannot exceed 100")
	}
	if s.DefaultSelected != "" && !s.DefaultSelected.IsValid() {
		return shared.NewDomainError("INVALID_DEFAULT_SELECTION", "Default selection must be deposit or full")
	}
	if s.Structure != StructureSingle && s.Structure != StructureCopyItems {
		return shared.NewDomainError("INVALID_STRUCTURE", "Partial payment structure must be single or copy_items")
	}
	if s.AmountType == AmountTypePaymentPlan && len(s.PlanIDs) == 0 {
		return shared.NewDomainError("NO_PAYMENT_PLANS", "Payment plan deposits require at least one plan")
	}
	return nil
}

// DefaultSelection returns the mode used when the session has no choice yet
func (s Settings) DefaultSelection() Selection {
	if s.ForceDeposit {
		return SelectionDeposit
	}
	if s.DefaultSelected.IsValid() {
		return s.DefaultSelected
	}
	return SelectionDeposit
}
