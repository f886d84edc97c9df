package catalog

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/mystique/backend/internal/domain/shared"
)

// ErrProductNotFound is returned when a single product lookup misses
var ErrProductNotFound = shared.ErrNotFound.WithMessage("Product not found.")

// ErrProductNotFoundForID is the order-time lookup failure
func ErrProductNotFoundForID(id uuid.UUID) error {
	return shared.ErrNotFound.WithMessage(fmt.Sprintf("Product not found for ID: %s", id))
}

// ErrInsufficientStockFor is the order-time stock failure
func ErrInsufficientStockFor(name string, left int) error {
	return shared.ErrInsufficientStock.WithMessage(
		fmt.Sprintf("Insufficient stock for %s. Only %d left.", name, left))
}
