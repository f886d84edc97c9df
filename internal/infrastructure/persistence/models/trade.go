package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/mystique/backend/internal/domain/shared/valueobject"
	"github.com/mystique/backend/internal/domain/trade"
	"github.com/shopspring/decimal"
)

// OrderModel is the persistence model for the Order aggregate.
type OrderModel struct {
	AggregateModel
	UserID            uuid.UUID                   `gorm:"type:uuid;not null;index"`
	Items             []OrderItemModel            `gorm:"foreignKey:OrderID;references:ID"`
	Address           valueobject.ShippingAddress `gorm:"type:jsonb;not null"`
	CustomerName      string                      `gorm:"type:varchar(200);not null;index"`
	Amount            decimal.Decimal             `gorm:"type:decimal(12,2);not null"`
	DeliveryFee       decimal.Decimal             `gorm:"type:decimal(12,2);not null;default:0"`
	Currency          string                      `gorm:"type:varchar(3);not null;default:'usd'"`
	PaymentMethod     trade.PaymentMethod         `gorm:"type:varchar(10);not null"`
	Payment           bool                        `gorm:"not null;default:false"`
	PaidAt            *time.Time
	Status            trade.OrderStatus `gorm:"type:varchar(30);not null;default:'Order Placed';index"`
	CheckoutSessionID *string           `gorm:"type:varchar(255);uniqueIndex"`
	IdempotencyKey    *string           `gorm:"type:varchar(100);uniqueIndex:idx_orders_user_idem,priority:2"`
	IdempotencyUser   *uuid.UUID        `gorm:"type:uuid;uniqueIndex:idx_orders_user_idem,priority:1"`
	CancelReason      string            `gorm:"type:varchar(500)"`
	CancelledAt       *time.Time
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel is the persistence model for an order line snapshot.
type OrderItemModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position  int             `gorm:"not null"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Name      string          `gorm:"type:varchar(200);not null"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Quantity  int             `gorm:"not null"`
	Size      string          `gorm:"type:varchar(20);not null"`
	Image     string          `gorm:"type:varchar(1000)"`
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "order_items"
}

// ToDomain converts the persistence model to a domain Order.
// Items must be preloaded ordered by position.
func (m *OrderModel) ToDomain() *trade.Order {
	items := make([]trade.OrderItem, len(m.Items))
	for i, it := range m.Items {
		items[i] = trade.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
			Size:      it.Size,
			Image:     it.Image,
		}
	}
	o := &trade.Order{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		UserID:            m.UserID,
		Items:             items,
		Address:           m.Address,
		Amount:            m.Amount,
		DeliveryFee:       m.DeliveryFee,
		Currency:          valueobject.Currency(m.Currency),
		PaymentMethod:     m.PaymentMethod,
		Payment:           m.Payment,
		PaidAt:            m.PaidAt,
		Status:            m.Status,
		CancelReason:      m.CancelReason,
		CancelledAt:       m.CancelledAt,
	}
	if m.CheckoutSessionID != nil {
		o.CheckoutSessionID = *m.CheckoutSessionID
	}
	if m.IdempotencyKey != nil {
		o.IdempotencyKey = *m.IdempotencyKey
	}
	return o
}

// FromDomain populates the persistence model from a domain Order.
// Empty session ids and idempotency keys are stored as NULL so the unique
// indexes only apply to real values.
func (m *OrderModel) FromDomain(o *trade.Order) {
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	m.UserID = o.UserID
	m.Address = o.Address
	m.CustomerName = o.Address.FullName()
	m.Amount = o.Amount
	m.DeliveryFee = o.DeliveryFee
	m.Currency = string(o.Currency)
	m.PaymentMethod = o.PaymentMethod
	m.Payment = o.Payment
	m.PaidAt = o.PaidAt
	m.Status = o.Status
	m.CancelReason = o.CancelReason
	m.CancelledAt = o.CancelledAt
	m.CheckoutSessionID = nil
	if o.CheckoutSessionID != "" {
		s := o.CheckoutSessionID
		m.CheckoutSessionID = &s
	}
	m.IdempotencyKey, m.IdempotencyUser = nil, nil
	if o.IdempotencyKey != "" {
		k, u := o.IdempotencyKey, o.UserID
		m.IdempotencyKey, m.IdempotencyUser = &k, &u
	}
	m.Items = make([]OrderItemModel, len(o.Items))
	for i, it := range o.Items {
		m.Items[i] = OrderItemModel{
			ID:        uuid.NewSHA1(o.ID, []byte{byte(i >> 8), byte(i)}),
			OrderID:   o.ID,
			Position:  i,
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
			Size:      it.Size,
			Image:     it.Image,
		}
	}
}

// OrderModelFromDomain creates a persistence model from a domain Order.
func OrderModelFromDomain(o *trade.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}
