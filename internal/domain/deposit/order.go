package deposit

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/erp/deposits/internal/domain/shared"
	"github.com/erp/deposits/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus mirrors the host platform's order statuses
type OrderStatus string

const (
	OrderStatusPending       OrderStatus = "pending"
	OrderStatusOnHold        OrderStatus = "on-hold"
	OrderStatusProcessing    OrderStatus = "processing"
	OrderStatusCompleted     OrderStatus = "completed"
	OrderStatusPartiallyPaid OrderStatus = "partially-paid"
	OrderStatusCancelled     OrderStatus = "cancelled"
	OrderStatusFailed        OrderStatus = "failed"
	OrderStatusRefunded      OrderStatus = "refunded"
)

// ParseOrderStatus accepts statuses with or without the "wc-" prefix
func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "wc-"))
	return st, st.IsValid()
}

// IsValid checks if the status is known
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusOnHold, OrderStatusProcessing, OrderStatusCompleted,
		OrderStatusPartiallyPaid, OrderStatusCancelled, OrderStatusFailed, OrderStatusRefunded:
		return true
	}
	return false
}

// String returns the string representation
func (s OrderStatus) String() string {
	return string(s)
}

// IsPaid reports statuses that mean the order's payment was received
func (s OrderStatus) IsPaid() bool {
	return s == OrderStatusProcessing || s == OrderStatusCompleted
}

// OrderKind separates ordinary orders from generated payment orders
type OrderKind string

const (
	OrderKindOrdinary OrderKind = "ordinary"
	OrderKindPayment  OrderKind = "payment"
)

// LineItemKind is the type of an order line
type LineItemKind string

const (
	LineItemProduct  LineItemKind = "product"
	LineItemFee      LineItemKind = "fee"
	LineItemShipping LineItemKind = "shipping"
)

// LineItem is one line of an order
type LineItem struct {
	ID        uuid.UUID
	Kind      LineItemKind
	Name      string
	ProductID *uuid.UUID
	Quantity  decimal.Decimal
	Subtotal  decimal.Decimal
	Total     decimal.Decimal
	TotalTax  decimal.Decimal
	Taxable   bool
}

// OrderNote is an audit note attached to an order
type OrderNote struct {
	ID        uuid.UUID
	Content   string
	CreatedAt time.Time
}

// Billing holds the buyer's billing details
type Billing struct {
	FirstName string
	LastName  string
	Company   string
	Address1  string
	Address2  string
	City      string
	State     string
	Postcode  string
	Country   string
	Email     string
	Phone     string
}

// Meta is the string key/value store persisted with an order
type Meta map[string]string

// Get returns the value for key, empty when absent
func (m Meta) Get(key string) string {
	return m[key]
}

// Lookup returns the value and whether it is set
func (m Meta) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// IsYes reports whether key is set to "yes"
func (m Meta) IsYes(key string) bool {
	return m[key] == MetaYes
}

// Order is an order of the host platform: either a buyer's order (parent)
// or a generated payment order tracking one schedule entry
type Order struct {
	shared.TenantAggregateRoot
	Number               string
	Kind                 OrderKind
	ParentID             *uuid.UUID
	Status               OrderStatus
	Currency             valueobject.Currency
	PricesIncludeTax     bool
	CustomerID           *uuid.UUID
	Billing              Billing
	CustomerIP           string
	UserAgent            string
	PaymentMethod        string
	PaymentMethodTitle   string
	Items                []LineItem
	CartTax              decimal.Decimal
	Subtotal             decimal.Decimal
	Total                decimal.Decimal
	Meta                 Meta
	Notes                []OrderNote
	ScheduleMaterialized bool
	DueAt                *time.Time
}

// NewOrder creates a pending ordinary order
func NewOrder(tenantID uuid.UUID, number string, currency valueobject.Currency) (*Order, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, shared.NewDomainError("INVALID_ORDER_NUMBER", "Order number cannot be empty")
	}
	if len(number) > 50 {
		return nil, shared.NewDomainError("INVALID_ORDER_NUMBER", "Order number cannot exceed 50 characters")
	}
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	return &Order{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Number:              number,
		Kind:                OrderKindOrdinary,
		Status:              OrderStatusPending,
		Currency:            currency,
		Meta:                Meta{},
	}, nil
}

// NewPaymentOrder creates a child payment order carrying the parent's
// customer, billing, currency and tax settings
func NewPaymentOrder(parent *Order, number string) *Order {
	parentID := parent.ID
	child := &Order{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(parent.TenantID),
		Number:              number,
		Kind:                OrderKindPayment,
		ParentID:            &parentID,
		Status:              OrderStatusPending,
		Currency:            parent.Currency,
		PricesIncludeTax:    parent.PricesIncludeTax,
		CustomerID:          parent.CustomerID,
		Billing:             parent.Billing,
		CustomerIP:          parent.CustomerIP,
		UserAgent:           parent.UserAgent,
		Meta:                Meta{},
	}
	vatExempt := parent.Meta.Get(MetaVATExempt)
	if vatExempt == "" {
		vatExempt = MetaNo
	}
	child.Meta[MetaVATExempt] = vatExempt
	return child
}

// IsPaymentOrder reports whether the order was generated from a schedule
func (o *Order) IsPaymentOrder() bool {
	return o.Kind == OrderKindPayment
}

// HasDeposit reports whether a deposit schedule was frozen onto the order
func (o *Order) HasDeposit() bool {
	return o.Meta.IsYes(MetaHasDeposit)
}

// Scale returns the decimal precision of the order currency
func (o *Order) Scale() int32 {
	return o.Currency.Scale()
}

// Money wraps amount in the order currency
func (o *Order) Money(amount decimal.Decimal) valueobject.Money {
	if o.Currency == "" {
		return valueobject.MustMoney(amount, valueobject.DefaultCurrency)
	}
	return valueobject.MustMoney(amount, o.Currency)
}

// UpdateStatus moves the order to status. It returns false when the
// order already had that status.
func (o *Order) UpdateStatus(status OrderStatus) (bool, error) {
	if !status.IsValid() {
		return false, shared.NewDomainError("INVALID_STATUS", "Unknown order status: "+string(status))
	}
	if o.Status == status {
		return false, nil
	}
	old := o.Status
	o.Status = status
	o.Touch()
	o.AddDomainEvent(NewOrderStatusChangedEvent(o, old, status))
	return true, nil
}

// AddNote appends an audit note
func (o *Order) AddNote(content string) OrderNote {
	note := OrderNote{ID: uuid.New(), Content: content, CreatedAt: time.Now()}
	o.Notes = append(o.Notes, note)
	return note
}

// SetMeta sets a meta value
func (o *Order) SetMeta(key, value string) {
	if o.Meta == nil {
		o.Meta = Meta{}
	}
	o.Meta[key] = value
}

// DeleteMeta removes a meta value
func (o *Order) DeleteMeta(key string) {
	delete(o.Meta, key)
}

// CopyPaymentMethodFrom copies the gateway and its display title
func (o *Order) CopyPaymentMethodFrom(other *Order) {
	o.PaymentMethod = other.PaymentMethod
	o.PaymentMethodTitle = other.PaymentMethodTitle
}

// AddProduct appends a product line
func (o *Order) AddProduct(productID uuid.UUID, name string, quantity, subtotal, total, tax decimal.Decimal) LineItem {
	pid := productID
	item := LineItem{
		ID:        uuid.New(),
		Kind:      LineItemProduct,
		Name:      name,
		ProductID: &pid,
		Quantity:  quantity,
		Subtotal:  subtotal,
		Total:     total,
		TotalTax:  tax,
		Taxable:   true,
	}
	o.Items = append(o.Items, item)
	return item
}

// AddFee appends a fee line; negative amounts are discounts
func (o *Order) AddFee(name string, amount decimal.Decimal, taxable bool) LineItem {
	item := LineItem{
		ID:       uuid.New(),
		Kind:     LineItemFee,
		Name:     name,
		Quantity: decimal.NewFromInt(1),
		Subtotal: amount,
		Total:    amount,
		Taxable:  taxable,
	}
	o.Items = append(o.Items, item)
	return item
}

// AddShipping appends a shipping line
func (o *Order) AddShipping(name string, amount decimal.Decimal) LineItem {
	item := LineItem{
		ID:       uuid.New(),
		Kind:     LineItemShipping,
		Name:     name,
		Quantity: decimal.NewFromInt(1),
		Subtotal: amount,
		Total:    amount,
	}
	o.Items = append(o.Items, item)
	return item
}

// ProductItems returns the product lines
func (o *Order) ProductItems() []LineItem {
	var out []LineItem
	for _, item := range o.Items {
		if item.Kind == LineItemProduct {
			out = append(out, item)
		}
	}
	return out
}

// SetTotal overrides the order total
func (o *Order) SetTotal(total decimal.Decimal) {
	o.Total = total
}

// RecalculateTotals recomputes subtotal and total from the lines and cart tax.
// Taxes already included in prices are not added again.
func (o *Order) RecalculateTotals() {
	subtotal := decimal.Zero
	total := decimal.Zero
	lineTax := decimal.Zero
	for _, item := range o.Items {
		if item.Kind == LineItemProduct {
			subtotal = subtotal.Add(item.Subtotal)
		}
		total = total.Add(item.Total)
		lineTax = lineTax.Add(item.TotalTax)
	}
	if !o.PricesIncludeTax {
		total = total.Add(lineTax).Add(o.CartTax)
	}
	o.Subtotal = subtotal
	o.Total = total
}

// Schedule returns the persisted payment schedule, repaired
func (o *Order) Schedule() PaymentSchedule {
	raw, ok := o.Meta.Lookup(MetaPaymentSchedule)
	if !ok {
		return PaymentSchedule{}
	}
	return RepairLegacy([]byte(raw))
}

// ScheduleNeedsRepair reports whether the persisted blob lacks entry ids
func (o *Order) ScheduleNeedsRepair() bool {
	raw, ok := o.Meta.Lookup(MetaPaymentSchedule)
	return ok && NeedsRepair([]byte(raw))
}

// SetSchedule persists the schedule onto the order meta
func (o *Order) SetSchedule(s PaymentSchedule) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return shared.NewDomainErrorWithCause("SCHEDULE_ENCODE_FAILED", "Failed to encode payment schedule", err)
	}
	o.SetMeta(MetaPaymentSchedule, string(raw))
	return nil
}

// MarkScheduleMaterialized records that child orders were created
func (o *Order) MarkScheduleMaterialized() {
	o.ScheduleMaterialized = true
	o.Touch()
}

// MarkDepositPaid sets the deposit paid flag and timestamp
func (o *Order) MarkDepositPaid(at time.Time) bool {
	if o.Meta.IsYes(MetaDepositPaid) {
		return false
	}
	o.SetMeta(MetaDepositPaid, MetaYes)
	o.SetMeta(MetaDepositPaymentTime, formatUnix(at))
	o.AddDomainEvent(NewDepositPaidEvent(o, at))
	return true
}
