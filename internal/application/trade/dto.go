package trade

import (
	"time"

	"github.com/google/uuid"
	"github.com/mystique/backend/internal/domain/shared/valueobject"
	"github.com/mystique/backend/internal/domain/trade"
	"github.com/shopspring/decimal"
)

// OrderLineRequest is one product/size line of a placement request.
// The storefront sends whole cart items; only these fields are read
type OrderLineRequest struct {
	ProductID uuid.UUID `json:"_id" binding:"required"`
	Size      string    `json:"size" binding:"required,max=20"`
	Quantity  int       `json:"quantity" binding:"required,min=1,max=99"`
}

// PlaceOrderRequest represents a request to place an order.
// When Items is empty the user's cart is ordered. Client-side amounts are ignored
type PlaceOrderRequest struct {
	Items          []OrderLineRequest          `json:"items" binding:"omitempty,max=50,dive"`
	Address        valueobject.ShippingAddress `json:"address" binding:"required"`
	IdempotencyKey string                      `json:"idempotencyKey" binding:"max=100"`
}

// VerifyPaymentRequest is sent by the storefront when the customer returns from checkout
type VerifyPaymentRequest struct {
	OrderID uuid.UUID `json:"orderId" binding:"required"`
	Success string    `json:"success"`
}

// UpdateStatusRequest represents an admin status change
type UpdateStatusRequest struct {
	OrderID uuid.UUID `json:"orderId" binding:"required"`
	Status  string    `json:"status" binding:"required"`
}

// OrderListFilter represents admin list filtering options
type OrderListFilter struct {
	Search        string     `form:"search" json:"search"`
	Status        string     `form:"status" json:"status"`
	PaymentMethod string     `form:"payment_method" json:"paymentMethod"`
	Payment       *bool      `form:"payment" json:"payment"`
	From          *time.Time `form:"from" json:"from" time_format:"2006-01-02" time_utc:"1"`
	To            *time.Time `form:"to" json:"to" time_format:"2006-01-02" time_utc:"1"`
	Page          int        `form:"page" json:"page" binding:"omitempty,min=1"`
	PageSize      int        `form:"page_size" json:"pageSize" binding:"omitempty,min=1,max=500"`
	OrderBy       string     `form:"order_by" json:"orderBy"`
	OrderDir      string     `form:"order_dir" json:"orderDir" binding:"omitempty,oneof=asc desc"`
}

// OrderItemResponse is an item snapshot in API responses
type OrderItemResponse struct {
	ProductID uuid.UUID       `json:"_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size"`
	Image     []string        `json:"image"`
}

// OrderResponse represents an order in API responses
type OrderResponse struct {
	ID            uuid.UUID                   `json:"_id"`
	UserID        uuid.UUID                   `json:"userId"`
	Items         []OrderItemResponse         `json:"items"`
	Address       valueobject.ShippingAddress `json:"address"`
	Amount        decimal.Decimal             `json:"amount"`
	DeliveryFee   decimal.Decimal             `json:"deliveryFee"`
	Currency      string                      `json:"currency"`
	PaymentMethod string                      `json:"paymentMethod"`
	Payment       bool                        `json:"payment"`
	PaidAt        *time.Time                  `json:"paidAt,omitempty"`
	Status        string                      `json:"status"`
	CancelReason  string                      `json:"cancelReason,omitempty"`
	Date          int64                       `json:"date"`
	CreatedAt     time.Time                   `json:"createdAt"`
	UpdatedAt     time.Time                   `json:"updatedAt"`
}

// PlaceOrderResult is returned by both placement flows
type PlaceOrderResult struct {
	Order      OrderResponse `json:"order"`
	SessionURL string        `json:"session_url,omitempty"`
	// Replayed is true when an earlier submission with the same idempotency key was returned
	Replayed bool `json:"replayed"`
}

// VerifyPaymentResult reports the outcome of a checkout return
type VerifyPaymentResult struct {
	Success bool   `json:"success"`
	Pending bool   `json:"pending,omitempty"`
	Message string `json:"message,omitempty"`
}

// ToOrderResponse converts a domain order to a response DTO
func ToOrderResponse(o *trade.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, it := range o.Items {
		images := []string{}
		if it.Image != "" {
			images = append(images, it.Image)
		}
		items[i] = OrderItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
			Size:      it.Size,
			Image:     images,
		}
	}
	return OrderResponse{
		ID:            o.ID,
		UserID:        o.UserID,
		Items:         items,
		Address:       o.Address,
		Amount:        o.Amount,
		DeliveryFee:   o.DeliveryFee,
		Currency:      string(o.Currency),
		PaymentMethod: string(o.PaymentMethod),
		Payment:       o.Payment,
		PaidAt:        o.PaidAt,
		Status:        string(o.Status),
		CancelReason:  o.CancelReason,
		Date:          o.CreatedAt.UnixMilli(),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

// ToOrderResponses converts a slice of domain orders
func ToOrderResponses(orders []trade.Order) []OrderResponse {
	out := make([]OrderResponse, len(orders))
	for i := range orders {
		out[i] = ToOrderResponse(&orders[i])
	}
	return out
}
