package models

import (
	"time"

	"github.com/erp/deposits/internal/domain/deposit"
	"github.com/erp/deposits/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillingModel is embedded in OrderModel with a billing_ prefix
type BillingModel struct {
	FirstName string `gorm:"type:varchar(100)"`
	LastName  string `gorm:"type:varchar(100)"`
	Company   string `gorm:"type:varchar(200)"`
	Address1  string `gorm:"type:varchar(255)"`
	Address2  string `gorm:"type:varchar(255)"`
	City      string `gorm:"type:varchar(100)"`
	State     string `gorm:"type:varchar(100)"`
	Postcode  string `gorm:"type:varchar(20)"`
	Country   string `gorm:"type:varchar(2)"`
	Email     string `gorm:"type:varchar(255)"`
	Phone     string `gorm:"type:varchar(50)"`
}

// OrderModel is the persistence model for both buyer orders and the payment
// orders generated from their schedules.
type OrderModel struct {
	TenantAggregateModel
	Number               string              `gorm:"type:varchar(50);not null;index"`
	Kind                 deposit.OrderKind   `gorm:"type:varchar(20);not null;default:'ordinary'"`
	ParentID             *uuid.UUID          `gorm:"type:uuid;index"`
	Status               deposit.OrderStatus `gorm:"type:varchar(30);not null;default:'pending'"`
	Currency             string              `gorm:"type:varchar(3);not null"`
	PricesIncludeTax     bool                `gorm:"not null;default:false"`
	CustomerID           *uuid.UUID          `gorm:"type:uuid;index"`
	Billing              BillingModel        `gorm:"embedded;embeddedPrefix:billing_"`
	CustomerIP           string              `gorm:"type:varchar(45)"`
	UserAgent            string              `gorm:"type:varchar(500)"`
	PaymentMethod        string              `gorm:"type:varchar(100)"`
	PaymentMethodTitle   string              `gorm:"type:varchar(200)"`
	CartTax              decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	Subtotal             decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	Total                decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	ScheduleMaterialized bool                `gorm:"not null;default:false"`
	DueAt                *time.Time          `gorm:"index"`
	Items                []OrderItemModel    `gorm:"foreignKey:OrderID;references:ID"`
	Meta                 []OrderMetaModel    `gorm:"foreignKey:OrderID;references:ID"`
	Notes                []OrderNoteModel    `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order
func (m *OrderModel) ToDomain() *deposit.Order {
	o := &deposit.Order{
		TenantAggregateRoot:  m.TenantAggregateRoot(),
		Number:               m.Number,
		Kind:                 m.Kind,
		ParentID:             m.ParentID,
		Status:               m.Status,
		Currency:             valueobject.Currency(m.Currency),
		PricesIncludeTax:     m.PricesIncludeTax,
		CustomerID:           m.CustomerID,
		Billing:              deposit.Billing(m.Billing),
		CustomerIP:           m.CustomerIP,
		UserAgent:            m.UserAgent,
		PaymentMethod:        m.PaymentMethod,
		PaymentMethodTitle:   m.PaymentMethodTitle,
		CartTax:              m.CartTax,
		Subtotal:             m.Subtotal,
		Total:                m.Total,
		ScheduleMaterialized: m.ScheduleMaterialized,
		DueAt:                m.DueAt,
		Items:                make([]deposit.LineItem, len(m.Items)),
		Meta:                 make(deposit.Meta, len(m.Meta)),
		Notes:                make([]deposit.OrderNote, len(m.Notes)),
	}
	for i, item := range m.Items {
		o.Items[i] = item.ToDomain()
	}
	for _, meta := range m.Meta {
		o.Meta[meta.Key] = meta.Value
	}
	for i, note := range m.Notes {
		o.Notes[i] = deposit.OrderNote{ID: note.ID, Content: note.Content, CreatedAt: note.CreatedAt}
	}
	return o
}

// FromDomain populates the persistence model from a domain Order. Line
// positions follow the order of o.Items.
func (m *OrderModel) FromDomain(o *deposit.Order) {
	m.FromDomainTenantAggregateRoot(o.TenantAggregateRoot)
	m.Number = o.Number
	m.Kind = o.Kind
	m.ParentID = o.ParentID
	m.Status = o.Status
	m.Currency = string(o.Currency)
	m.PricesIncludeTax = o.PricesIncludeTax
	m.CustomerID = o.CustomerID
	m.Billing = BillingModel(o.Billing)
	m.CustomerIP = o.CustomerIP
	m.UserAgent = o.UserAgent
	m.PaymentMethod = o.PaymentMethod
	m.PaymentMethodTitle = o.PaymentMethodTitle
	m.CartTax = o.CartTax
	m.Subtotal = o.Subtotal
	m.Total = o.Total
	m.ScheduleMaterialized = o.ScheduleMaterialized
	m.DueAt = o.DueAt

	m.Items = make([]OrderItemModel, len(o.Items))
	for i, item := range o.Items {
		m.Items[i] = OrderItemModelFromDomain(o.ID, i, item)
	}
	m.Meta = make([]OrderMetaModel, 0, len(o.Meta))
	for k, v := range o.Meta {
		m.Meta = append(m.Meta, OrderMetaModel{OrderID: o.ID, Key: k, Value: v})
	}
	m.Notes = make([]OrderNoteModel, len(o.Notes))
	for i, n := range o.Notes {
		m.Notes[i] = OrderNoteModel{ID: n.ID, OrderID: o.ID, Content: n.Content, CreatedAt: n.CreatedAt}
	}
}

// OrderModelFromDomain creates a new persistence model from a domain Order
func OrderModelFromDomain(o *deposit.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}

// OrderItemModel is the persistence model for an order line
type OrderItemModel struct {
	ID        uuid.UUID            `gorm:"type:uuid;primary_key"`
	OrderID   uuid.UUID            `gorm:"type:uuid;not null;index"`
	Position  int                  `gorm:"not null;default:0"`
	Kind      deposit.LineItemKind `gorm:"type:varchar(20);not null"`
	Name      string               `gorm:"type:varchar(255);not null"`
	ProductID *uuid.UUID           `gorm:"type:uuid"`
	Quantity  decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	Subtotal  decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	Total     decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	TotalTax  decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	Taxable   bool                 `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "order_items"
}

// ToDomain converts the persistence model to a domain LineItem
func (m *OrderItemModel) ToDomain() deposit.LineItem {
	return deposit.LineItem{
		ID:        m.ID,
		Kind:      m.Kind,
		Name:      m.Name,
		ProductID: m.ProductID,
		Quantity:  m.Quantity,
		Subtotal:  m.Subtotal,
		Total:     m.Total,
		TotalTax:  m.TotalTax,
		Taxable:   m.Taxable,
	}
}

// OrderItemModelFromDomain creates the persistence model of a line
func OrderItemModelFromDomain(orderID uuid.UUID, position int, item deposit.LineItem) OrderItemModel {
	id := item.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return OrderItemModel{
		ID:        id,
		OrderID:   orderID,
		Position:  position,
		Kind:      item.Kind,
		Name:      item.Name,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		Subtotal:  item.Subtotal,
		Total:     item.Total,
		TotalTax:  item.TotalTax,
		Taxable:   item.Taxable,
	}
}

// OrderMetaModel is one key/value pair of order meta
type OrderMetaModel struct {
	OrderID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Key     string    `gorm:"column:meta_key;type:varchar(100);primaryKey"`
	Value   string    `gorm:"column:meta_value;type:text;not null;default:''"`
}

// TableName returns the table name for GORM
func (OrderMetaModel) TableName() string {
	return "order_meta"
}

// OrderNoteModel is the persistence model for an order note
type OrderNoteModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderNoteModel) TableName() string {
	return "order_notes"
}
