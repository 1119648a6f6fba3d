package deposit

import (
	"time"

	"github.com/erp/deposits/internal/domain/deposit"
	"github.com/erp/deposits/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ==================== Cart DTOs ====================

// CartItemInput is a cart line sent by the storefront
type CartItemInput struct {
	ProductID      uuid.UUID       `json:"product_id"`
	Name           string          `json:"name" binding:"max=200"`
	Quantity       decimal.Decimal `json:"quantity"`
	LineSubtotal   decimal.Decimal `json:"line_subtotal"`
	LineTotal      decimal.Decimal `json:"line_total"`
	DepositEnabled bool            `json:"deposit_enabled"`
	DepositAmount  decimal.Decimal `json:"deposit_amount"`
}

// CartInput is the cart snapshot sent with quote requests
type CartInput struct {
	Currency string          `json:"currency" binding:"omitempty,len=3"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Total    decimal.Decimal `json:"total"`
	Items    []CartItemInput `json:"items"`
}

// QuoteRequest asks for the deposit breakdown of a cart
type QuoteRequest struct {
	Cart          CartInput `json:"cart"`
	DepositOption string    `json:"deposit_option" binding:"omitempty,oneof=deposit full"`
	SelectedPlan  string    `json:"selected_plan" binding:"omitempty,uuid"`
}

// ScheduleEntryResponse is one formatted schedule line. Timestamp is null
// for the deposit and the undated remaining balance.
type ScheduleEntryResponse struct {
	Key       string          `json:"key"`
	ID        string          `json:"id,omitempty"`
	Type      string          `json:"type"`
	Title     string          `json:"title,omitempty"`
	Total     decimal.Decimal `json:"total"`
	Timestamp *int64          `json:"timestamp"`
}

// BreakdownResponse itemizes the deposit amount
type BreakdownResponse struct {
	CartItems     decimal.Decimal `json:"cart_items"`
	Taxes         decimal.Decimal `json:"taxes"`
	ShippingTaxes decimal.Decimal `json:"shipping_taxes"`
	Shipping      decimal.Decimal `json:"shipping"`
	Discount      decimal.Decimal `json:"discount"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	DiscountTax   decimal.Decimal `json:"discount_tax"`
}

// CartDepositResponse is the deposit_info extension returned with the cart
type CartDepositResponse struct {
	DepositEnabled    bool                    `json:"deposit_enabled"`
	DepositAmount     decimal.Decimal         `json:"deposit_amount"`
	RemainingAmount   decimal.Decimal         `json:"remaining_amount"`
	HasPaymentPlans   bool                    `json:"has_payment_plans"`
	PaymentSchedule   []ScheduleEntryResponse `json:"payment_schedule"`
	DepositBreakdown  *BreakdownResponse      `json:"deposit_breakdown,omitempty"`
	CurrentlySelected string                  `json:"currently_selected"`
	SelectedPlan      *uuid.UUID              `json:"selected_plan,omitempty"`
	AvailablePlans    []PaymentPlanSummary    `json:"available_plans,omitempty"`
	ForceDeposit      bool                    `json:"force_deposit"`
	DisplayTotal      decimal.Decimal         `json:"display_total"`
}

// ==================== Order DTOs ====================

// OrderItemInput is a product line of a placed order
type OrderItemInput struct {
	ProductID      uuid.UUID       `json:"product_id" binding:"required"`
	Name           string          `json:"name" binding:"required,min=1,max=200"`
	Quantity       decimal.Decimal `json:"quantity" binding:"gt=0"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Total          decimal.Decimal `json:"total" binding:"gte=0"`
	Tax            decimal.Decimal `json:"tax"`
	DepositEnabled bool            `json:"deposit_enabled"`
	DepositAmount  decimal.Decimal `json:"deposit_amount"`
}

// BillingInput holds the buyer's billing details
type BillingInput struct {
	FirstName string `json:"first_name" binding:"max=100"`
	LastName  string `json:"last_name" binding:"max=100"`
	Company   string `json:"company" binding:"max=200"`
	Address1  string `json:"address_1" binding:"max=200"`
	Address2  string `json:"address_2" binding:"max=200"`
	City      string `json:"city" binding:"max=100"`
	State     string `json:"state" binding:"max=100"`
	Postcode  string `json:"postcode" binding:"max=20"`
	Country   string `json:"country" binding:"omitempty,len=2"`
	Email     string `json:"email" binding:"omitempty,email"`
	Phone     string `json:"phone" binding:"max=50"`
}

// PlaceOrderRequest creates a parent order from a checkout
type PlaceOrderRequest struct {
	Number             string           `json:"number" binding:"required,min=1,max=50"`
	Currency           string           `json:"currency" binding:"omitempty,len=3"`
	PricesIncludeTax   bool             `json:"prices_include_tax"`
	Items              []OrderItemInput `json:"items" binding:"required,min=1,dive"`
	CartTax            decimal.Decimal  `json:"cart_tax"`
	Shipping           decimal.Decimal  `json:"shipping"`
	ShippingTax        decimal.Decimal  `json:"shipping_tax"`
	Discount           decimal.Decimal  `json:"discount"`
	CustomerID         *uuid.UUID       `json:"customer_id"`
	Billing            BillingInput     `json:"billing"`
	CustomerIP         string           `json:"customer_ip"`
	UserAgent          string           `json:"user_agent"`
	PaymentMethod      string           `json:"payment_method" binding:"max=100"`
	PaymentMethodTitle string           `json:"payment_method_title" binding:"max=200"`
	DepositOption      string           `json:"deposit_option" binding:"omitempty,oneof=deposit full"`
	SelectedPlan       string           `json:"selected_plan" binding:"omitempty,uuid"`
}

// ChangeStatusRequest is a status webhook from the platform or a gateway
type ChangeStatusRequest struct {
	Status  string `json:"status" binding:"required"`
	EventID string `json:"event_id" binding:"max=200"`
	Gateway string `json:"gateway" binding:"max=100"`
}

// PaymentCompleteRequest is a gateway payment confirmation
type PaymentCompleteRequest struct {
	EventID string `json:"event_id" binding:"max=200"`
	Gateway string `json:"gateway" binding:"max=100"`
}

// PaymentOrderResponse summarizes a generated payment order
type PaymentOrderResponse struct {
	ID          uuid.UUID       `json:"id"`
	Number      string          `json:"number"`
	PaymentType string          `json:"payment_type"`
	Status      string          `json:"status"`
	Total       decimal.Decimal `json:"total"`
	DueAt       *time.Time      `json:"due_at,omitempty"`
}

// OrderScheduleResponse is a parent order with its schedule and payment orders
type OrderScheduleResponse struct {
	ID                uuid.UUID               `json:"id"`
	Number            string                  `json:"number"`
	Status            string                  `json:"status"`
	Currency          string                  `json:"currency"`
	Total             decimal.Decimal         `json:"total"`
	HasDeposit        bool                    `json:"has_deposit"`
	DepositAmount     string                  `json:"deposit_amount,omitempty"`
	SecondPayment     string                  `json:"second_payment,omitempty"`
	DepositPaid       bool                    `json:"deposit_paid"`
	SecondPaymentPaid bool                    `json:"second_payment_paid"`
	Itemized          bool                    `json:"itemized_payments"`
	Schedule          []ScheduleEntryResponse `json:"payment_schedule"`
	PaymentOrders     []PaymentOrderResponse  `json:"payment_orders"`
}

// TransitionResponse reports the effect of a status or payment webhook
type TransitionResponse struct {
	OrderID         uuid.UUID  `json:"order_id"`
	Status          string     `json:"status"`
	Duplicate       bool       `json:"duplicate"`
	Materialized    bool       `json:"materialized"`
	DepositOrderID  *uuid.UUID `json:"deposit_order_id,omitempty"`
	DepositStatus   string     `json:"deposit_status,omitempty"`
	DepositApplied  bool       `json:"deposit_applied"`
	DepositPaidFlag bool       `json:"deposit_paid"`
}

// ==================== Payment Plan DTOs ====================

// DueRuleInput describes when an installment falls due
type DueRuleInput struct {
	Kind  string     `json:"kind" binding:"required,oneof=ondate after"`
	Date  *time.Time `json:"date"`
	After int        `json:"after" binding:"min=0"`
	Unit  string     `json:"unit"`
}

// PlanInstallmentInput is one installment of a plan
type PlanInstallmentInput struct {
	Percentage decimal.Decimal `json:"percentage" binding:"gte=0,lte=100"`
	Due        DueRuleInput    `json:"due" binding:"required"`
}

// SavePaymentPlanRequest creates or replaces a payment plan
type SavePaymentPlanRequest struct {
	Name              string                 `json:"name" binding:"required,min=1,max=200"`
	Description       string                 `json:"description" binding:"max=2000"`
	DepositPercentage decimal.Decimal        `json:"deposit_percentage" binding:"gte=0,lte=100"`
	Installments      []PlanInstallmentInput `json:"installments" binding:"dive"`
}

// PaymentPlanSummary is the short form shown at checkout
type PaymentPlanSummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// PaymentPlanResponse is the full plan
type PaymentPlanResponse struct {
	ID                uuid.UUID                 `json:"id"`
	Name              string                    `json:"name"`
	Description       string                    `json:"description"`
	DepositPercentage decimal.Decimal           `json:"deposit_percentage"`
	TotalPercentage   decimal.Decimal           `json:"total_percentage"`
	Installments      []deposit.PlanInstallment `json:"installments"`
	CreatedAt         time.Time                 `json:"created_at"`
	UpdatedAt         time.Time                 `json:"updated_at"`
}

// ==================== Mapping ====================

// ToCartTotals converts the cart input into calculator totals
func ToCartTotals(in CartInput, fallback valueobject.Currency) deposit.CartTotals {
	currency := fallback
	if c, err := valueobject.ParseCurrency(in.Currency); err == nil {
		currency = c
	}
	totals := deposit.CartTotals{
		Currency: currency,
		Subtotal: in.Subtotal,
		Total:    in.Total,
	}
	for _, item := range in.Items {
		totals.Items = append(totals.Items, deposit.CartItem{
			ProductID:      item.ProductID,
			Name:           item.Name,
			Quantity:       item.Quantity,
			LineSubtotal:   item.LineSubtotal,
			LineTotal:      item.LineTotal,
			DepositEnabled: item.DepositEnabled,
			DepositAmount:  item.DepositAmount,
		})
	}
	return totals
}

// ToScheduleResponse formats a schedule for API output
func ToScheduleResponse(s deposit.PaymentSchedule) []ScheduleEntryResponse {
	entries := s.Entries()
	out := make([]ScheduleEntryResponse, 0, len(entries))
	for _, e := range entries {
		r := ScheduleEntryResponse{
			Key:   string(e.Key),
			ID:    e.ID,
			Type:  string(e.Type),
			Title: e.Title,
			Total: e.Total,
		}
		if due, ok := e.DueDate(); ok {
			ts := due.Unix()
			r.Timestamp = &ts
		}
		out = append(out, r)
	}
	return out
}

// ToBreakdownResponse converts a breakdown for API output
func ToBreakdownResponse(b deposit.Breakdown) *BreakdownResponse {
	return &BreakdownResponse{
		CartItems:     b.CartItems,
		Taxes:         b.Taxes,
		ShippingTaxes: b.ShippingTaxes,
		Shipping:      b.Shipping,
		Discount:      b.Discount,
		DiscountTotal: b.DiscountTotal,
		DiscountTax:   b.DiscountTax,
	}
}

// ToPaymentOrderResponse summarizes a payment order
func ToPaymentOrderResponse(o *deposit.Order) PaymentOrderResponse {
	return PaymentOrderResponse{
		ID:          o.ID,
		Number:      o.Number,
		PaymentType: o.Meta.Get(deposit.MetaPaymentType),
		Status:      o.Status.String(),
		Total:       o.Total,
		DueAt:       o.DueAt,
	}
}

// ToPaymentPlanResponse converts a plan for API output
func ToPaymentPlanResponse(p *deposit.PaymentPlan) PaymentPlanResponse {
	return PaymentPlanResponse{
		ID:                p.ID,
		Name:              p.Name,
		Description:       p.Description,
		DepositPercentage: p.DepositPercentage,
		TotalPercentage:   p.TotalPercentage(),
		Installments:      p.Installments,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func toInstallments(in []PlanInstallmentInput) []deposit.PlanInstallment {
	out := make([]deposit.PlanInstallment, 0, len(in))
	for _, inst := range in {
		rule := deposit.DueRule{Kind: deposit.DueRuleKind(inst.Due.Kind), After: inst.Due.After}
		if inst.Due.Date != nil {
			rule.Date = *inst.Due.Date
		}
		if unit, ok := deposit.ParseDueUnit(inst.Due.Unit); ok {
			rule.Unit = unit
		} else {
			rule.Unit = deposit.DueUnit(inst.Due.Unit)
		}
		out = append(out, deposit.PlanInstallment{Percentage: inst.Percentage, Due: rule})
	}
	return out
}
