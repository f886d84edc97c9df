package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/mystique/backend/internal/domain/shared"
)

// ProductRepository defines the interface for product persistence
type ProductRepository interface {
	// FindByID finds a product by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindByIDs finds multiple products by their IDs. Missing IDs are skipped
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error)

	// FindAll finds all products matching the filter.
	// Supported Filters keys: category, subcategory, bestseller, new_arrival, limited_edition
	FindAll(ctx context.Context, filter shared.Filter) ([]Product, error)

	// Count counts products matching the filter
	Count(ctx context.Context, filter shared.Filter) (int64, error)

	// Save inserts a new product
	Save(ctx context.Context, product *Product) error

	// Update persists changes, failing with ErrConcurrencyConflict on a stale version
	Update(ctx context.Context, product *Product) error

	// Delete deletes a product
	Delete(ctx context.Context, id uuid.UUID) error

	// DecrementStock atomically removes qty units, failing with
	// ErrInsufficientStock when fewer than qty units remain
	DecrementStock(ctx context.Context, id uuid.UUID, qty int) error

	// IncrementStock atomically returns qty units
	IncrementStock(ctx context.Context, id uuid.UUID, qty int) error
}
