package trade

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mystique/backend/internal/domain/shared"
)

// OrderRepository defines the interface for order persistence
type OrderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByIdempotencyKey finds the order a user already submitted with key
	FindByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*Order, error)

	// FindByCheckoutSession finds the order paid through a hosted checkout session
	FindByCheckoutSession(ctx context.Context, sessionID string) (*Order, error)

	// FindAll lists orders. Search matches customer name or email, From/To bound created_at.
	// Supported Filters keys: status, payment_method, payment
	FindAll(ctx context.Context, filter shared.Filter) ([]Order, error)

	Count(ctx context.Context, filter shared.Filter) (int64, error)

	// FindByUser lists a customer's orders, newest first
	FindByUser(ctx context.Context, userID uuid.UUID) ([]Order, error)

	// FindStaleUnpaid lists open card orders created before the cutoff
	FindStaleUnpaid(ctx context.Context, before time.Time, limit int) ([]Order, error)

	// Save inserts a new order
	Save(ctx context.Context, order *Order) error

	// Update persists changes, failing with ErrConcurrencyConflict on a stale version
	Update(ctx context.Context, order *Order) error
}
