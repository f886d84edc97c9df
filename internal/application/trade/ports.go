package trade

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mystique/backend/internal/domain/cart"
	"github.com/mystique/backend/internal/domain/catalog"
	"github.com/mystique/backend/internal/domain/shared/valueobject"
	"github.com/mystique/backend/internal/domain/trade"
)

// TransactionalRepositories exposes repositories bound to one transaction
type TransactionalRepositories interface {
	Products() catalog.ProductRepository
	Orders() trade.OrderRepository
	Carts() cart.Repository
}

// TransactionScope runs a unit of work atomically.
// If fn returns an error every write made through repos is rolled back
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// Checkout session payment states reported by the provider
const (
	PaymentStatusPaid     = "paid"
	PaymentStatusUnpaid   = "unpaid"
	SessionStatusOpen     = "open"
	SessionStatusComplete = "complete"
	SessionStatusExpired  = "expired"
)

// Webhook event types handled by the order service
const (
	WebhookCheckoutCompleted      = "checkout.session.completed"
	WebhookCheckoutAsyncSucceeded = "checkout.session.async_payment_succeeded"
	WebhookCheckoutAsyncFailed    = "checkout.session.async_payment_failed"
	WebhookCheckoutExpired        = "checkout.session.expired"
)

// CheckoutLine is one priced line of a hosted checkout session
type CheckoutLine struct {
	Name string
	// UnitAmount is in minor units (cents)
	UnitAmount int64
	Quantity   int64
	Image      string
}

// CreateCheckoutInput describes the session to create for an order
type CreateCheckoutInput struct {
	OrderID       uuid.UUID
	Currency      valueobject.Currency
	Lines         []CheckoutLine
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	ExpiresAt     time.Time
}

// CheckoutSession is the provider's view of a hosted checkout
type CheckoutSession struct {
	ID            string
	URL           string
	Status        string
	PaymentStatus string
	// OrderID is the client reference attached at creation
	OrderID string
}

// IsPaid reports whether the provider has captured the payment
func (s *CheckoutSession) IsPaid() bool {
	return s != nil && s.PaymentStatus == PaymentStatusPaid
}

// WebhookEvent is a verified provider notification
type WebhookEvent struct {
	ID      string
	Type    string
	Session *CheckoutSession
}

// CheckoutGateway is the hosted payment provider
type CheckoutGateway interface {
	CreateSession(ctx context.Context, in CreateCheckoutInput) (*CheckoutSession, error)
	GetSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	// ExpireSession closes an open session so it can no longer be paid
	ExpireSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	// ParseWebhook verifies the signature and decodes the event
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
