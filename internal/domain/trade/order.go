package trade

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mystique/backend/internal/domain/shared"
	"github.com/mystique/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how the customer pays
type PaymentMethod string

const (
	PaymentMethodCOD    PaymentMethod = "COD"
	PaymentMethodStripe PaymentMethod = "Stripe"
)

// IsValid checks if the method is known
func (m PaymentMethod) IsValid() bool {
	return m == PaymentMethodCOD || m == PaymentMethodStripe
}

// OrderStatus is the fulfilment status shown to customers and admins
type OrderStatus string

const (
	OrderStatusPlaced     OrderStatus = "Order Placed"
	OrderStatusPacking    OrderStatus = "Packing"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusOutForShip OrderStatus = "Delivery in progress"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

// FulfilmentStatuses lists the statuses an admin may set
func FulfilmentStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPlaced, OrderStatusPacking, OrderStatusShipped,
		OrderStatusOutForShip, OrderStatusDelivered,
	}
}

// IsValid checks if the status is known
func (s OrderStatus) IsValid() bool {
	if s == OrderStatusCancelled {
		return true
	}
	return s.IsFulfilment()
}

// IsFulfilment reports whether s is one of the admin-settable statuses
func (s OrderStatus) IsFulfilment() bool {
	for _, v := range FulfilmentStatuses() {
		if v == s {
			return true
		}
	}
	return false
}

func (s OrderStatus) String() string {
	return string(s)
}

// Store constants
var (
	DefaultDeliveryFee = decimal.NewFromInt(10)
	DefaultCurrency    = valueobject.USD
)

// MaxItemQuantity caps the quantity of a single order line
const MaxItemQuantity = 99

// OrderItem is a snapshot of a product at the time the order was placed
type OrderItem struct {
	ProductID uuid.UUID       `json:"_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size"`
	Image     string          `json:"image,omitempty"`
}

// Subtotal is price * quantity
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i OrderItem) validate() error {
	if i.ProductID == uuid.Nil {
		return shared.NewDomainError("INVALID_ITEM", "Item product id is required")
	}
	if i.Quantity < 1 || i.Quantity > MaxItemQuantity {
		return shared.NewDomainError("INVALID_QUANTITY", "Item quantity must be between 1 and 99")
	}
	if strings.TrimSpace(i.Size) == "" {
		return shared.NewDomainError("INVALID_ITEM", "Item size is required")
	}
	if !i.Price.IsPositive() {
		return shared.NewDomainError("INVALID_ITEM", "Item price must be positive")
	}
	return nil
}

// Order is the aggregate root for a customer purchase
type Order struct {
	shared.BaseAggregateRoot
	UserID            uuid.UUID
	Items             []OrderItem
	Address           valueobject.ShippingAddress
	Amount            decimal.Decimal
	DeliveryFee       decimal.Decimal
	Currency          valueobject.Currency
	PaymentMethod     PaymentMethod
	Payment           bool
	PaidAt            *time.Time
	Status            OrderStatus
	CheckoutSessionID string
	IdempotencyKey    string
	CancelReason      string
	CancelledAt       *time.Time
}

// NewOrder creates an order. The amount is computed from item prices plus the delivery fee
func NewOrder(
	userID uuid.UUID,
	method PaymentMethod,
	items []OrderItem,
	address valueobject.ShippingAddress,
	deliveryFee decimal.Decimal,
	currency valueobject.Currency,
) (*Order, error) {
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "User is required")
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError("INVALID_PAYMENT_METHOD", "Unsupported payment method")
	}
	if len(items) == 0 {
		return nil, shared.NewDomainError("EMPTY_ORDER", "Order must contain at least one item")
	}
	for _, it := range items {
		if err := it.validate(); err != nil {
			return nil, err
		}
	}
	address = address.Normalize()
	if err := address.Validate(); err != nil {
		return nil, shared.NewDomainError("INVALID_ADDRESS", err.Error())
	}
	if deliveryFee.IsNegative() {
		return nil, shared.NewDomainError("INVALID_DELIVERY_FEE", "Delivery fee cannot be negative")
	}
	if currency == "" {
		currency = DefaultCurrency
	}

	o := &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		UserID:            userID,
		Items:             append([]OrderItem(nil), items...),
		Address:           address,
		DeliveryFee:       deliveryFee,
		Currency:          currency,
		PaymentMethod:     method,
		Status:            OrderStatusPlaced,
	}
	o.Amount = o.ItemsTotal().Add(deliveryFee)
	o.AddDomainEvent(NewOrderPlacedEvent(o))
	return o, nil
}

// ItemsTotal sums the item subtotals
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// TotalQuantity sums all item quantities
func (o *Order) TotalQuantity() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// AmountMoney returns the order total as Money
func (o *Order) AmountMoney() valueobject.Money {
	return valueobject.MustMoney(o.Amount, o.Currency)
}

// SetIdempotencyKey records the client-supplied submission key
func (o *Order) SetIdempotencyKey(key string) {
	o.IdempotencyKey = strings.TrimSpace(key)
}

// ReleaseIdempotencyKey detaches the submission key so it can place a new order.
// It returns the key that was held
func (o *Order) ReleaseIdempotencyKey() string {
	key := o.IdempotencyKey
	o.IdempotencyKey = ""
	return key
}

// AttachCheckoutSession records the hosted checkout session id
func (o *Order) AttachCheckoutSession(sessionID string) error {
	if o.PaymentMethod != PaymentMethodStripe {
		return shared.ErrInvalidState.WithMessage("Only card orders have a checkout session")
	}
	o.CheckoutSessionID = sessionID
	o.Touch()
	o.IncrementVersion()
	return nil
}

// MarkPaid records a successful card payment.
// It returns false without error when the order is already paid
func (o *Order) MarkPaid(sessionID string) (bool, error) {
	if o.PaymentMethod != PaymentMethodStripe {
		return false, shared.ErrInvalidState.WithMessage("Only card orders can be marked paid online")
	}
	if o.Payment {
		return false, nil
	}
	if o.Status == OrderStatusCancelled {
		return false, shared.ErrInvalidState.WithMessage("Order was cancelled before payment completed")
	}
	if sessionID != "" && o.CheckoutSessionID != "" && sessionID != o.CheckoutSessionID {
		return false, shared.ErrInvalidState.WithMessage("Checkout session does not belong to this order")
	}
	now := time.Now()
	o.Payment = true
	o.PaidAt = &now
	if o.CheckoutSessionID == "" {
		o.CheckoutSessionID = sessionID
	}
	o.Touch()
	o.IncrementVersion()
	o.AddDomainEvent(NewOrderPaidEvent(o))
	return true, nil
}

// Cancel cancels an unpaid order so its reserved stock can be released.
// It returns false without error when the order is already cancelled
func (o *Order) Cancel(reason string) (bool, error) {
	if o.Status == OrderStatusCancelled {
		return false, nil
	}
	if o.Payment {
		return false, shared.ErrInvalidState.WithMessage("Paid orders cannot be cancelled")
	}
	if o.Status != OrderStatusPlaced {
		return false, shared.ErrInvalidState.WithMessage("Only orders that have not been packed can be cancelled")
	}
	now := time.Now()
	o.Status = OrderStatusCancelled
	o.CancelReason = reason
	o.CancelledAt = &now
	o.Touch()
	o.IncrementVersion()
	o.AddDomainEvent(NewOrderCancelledEvent(o))
	return true, nil
}

// UpdateStatus moves the order to a fulfilment status.
// Delivering a cash on delivery order records the payment as collected
func (o *Order) UpdateStatus(status OrderStatus) error {
	if !status.IsFulfilment() {
		return shared.NewDomainError("INVALID_STATUS", "Invalid order status")
	}
	if o.Status == OrderStatusCancelled {
		return shared.ErrInvalidState.WithMessage("Cancelled orders cannot change status")
	}
	if o.PaymentMethod == PaymentMethodStripe && !o.Payment && status != OrderStatusPlaced {
		return shared.ErrInvalidState.WithMessage("Order has not been paid yet")
	}
	if o.Status == status {
		return nil
	}
	old := o.Status
	o.Status = status
	if status == OrderStatusDelivered && o.PaymentMethod == PaymentMethodCOD && !o.Payment {
		now := time.Now()
		o.Payment = true
		o.PaidAt = &now
	}
	o.Touch()
	o.IncrementVersion()
	o.AddDomainEvent(NewOrderStatusChangedEvent(o, old))
	return nil
}

// IsCancelled reports whether the order was cancelled
func (o *Order) IsCancelled() bool {
	return o.Status == OrderStatusCancelled
}

// AwaitingPayment reports whether a card order is still unpaid and open
func (o *Order) AwaitingPayment() bool {
	return o.PaymentMethod == PaymentMethodStripe && !o.Payment && o.Status != OrderStatusCancelled
}

// BelongsTo reports whether the order was placed by userID
func (o *Order) BelongsTo(userID uuid.UUID) bool {
	return o.UserID == userID
}

// PaymentStatusLabel is the report label for the payment flag
func (o *Order) PaymentStatusLabel() string {
	if o.Payment {
		return "Paid"
	}
	return "Pending"
}
