// Package cart models the per-user shopping cart: product id -> size -> quantity.
package cart

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/mystique/backend/internal/domain/shared"
)

// MaxLineQuantity caps a single product/size line
const MaxLineQuantity = 99

// Cart maps product IDs to size -> quantity. The zero value is an empty cart
type Cart map[string]map[string]int

// Line is one product/size entry of a cart
type Line struct {
	ProductID uuid.UUID
	Size      string
	Quantity  int
}

// New returns an empty cart
func New() Cart {
	return Cart{}
}

// Add increments the quantity of a product/size by one
func (c Cart) Add(productID uuid.UUID, size string) error {
	size = strings.TrimSpace(size)
	if productID == uuid.Nil || size == "" {
		return shared.NewDomainError("INVALID_CART_ITEM", "Item id and size are required")
	}
	sizes, ok := c[productID.String()]
	if !ok {
		sizes = make(map[string]int)
		c[productID.String()] = sizes
	}
	if sizes[size] >= MaxLineQuantity {
		return shared.NewDomainError("INVALID_QUANTITY", "Quantity limit reached for this item")
	}
	sizes[size]++
	return nil
}

// Set overwrites the quantity of a product/size. Zero removes the line
func (c Cart) Set(productID uuid.UUID, size string, quantity int) error {
	size = strings.TrimSpace(size)
	if productID == uuid.Nil || size == "" {
		return shared.NewDomainError("INVALID_CART_ITEM", "Item id and size are required")
	}
	if quantity < 0 || quantity > MaxLineQuantity {
		return shared.NewDomainError("INVALID_QUANTITY", "Quantity must be between 0 and 99")
	}
	key := productID.String()
	if quantity == 0 {
		if sizes, ok := c[key]; ok {
			delete(sizes, size)
			if len(sizes) == 0 {
				delete(c, key)
			}
		}
		return nil
	}
	sizes, ok := c[key]
	if !ok {
		sizes = make(map[string]int)
		c[key] = sizes
	}
	sizes[size] = quantity
	return nil
}

// Quantity returns the quantity held for a product/size
func (c Cart) Quantity(productID uuid.UUID, size string) int {
	return c[productID.String()][size]
}

// Reset empties the cart in place
func (c Cart) Reset() {
	for k := range c {
		delete(c, k)
	}
}

// Count returns the total number of units
func (c Cart) Count() int {
	n := 0
	for _, sizes := range c {
		for _, q := range sizes {
			if q > 0 {
				n += q
			}
		}
	}
	return n
}

// IsEmpty reports whether the cart holds no units
func (c Cart) IsEmpty() bool {
	return c.Count() == 0
}

// Lines returns the cart contents sorted by product id then size.
// Malformed keys and non-positive quantities are skipped
func (c Cart) Lines() []Line {
	lines := make([]Line, 0, len(c))
	for key, sizes := range c {
		id, err := uuid.Parse(key)
		if err != nil {
			continue
		}
		for size, q := range sizes {
			if q <= 0 {
				continue
			}
			lines = append(lines, Line{ProductID: id, Size: size, Quantity: q})
		}
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].ProductID != lines[j].ProductID {
			return lines[i].ProductID.String() < lines[j].ProductID.String()
		}
		return lines[i].Size < lines[j].Size
	})
	return lines
}

// Repository stores a cart per user
type Repository interface {
	Get(ctx context.Context, userID uuid.UUID) (Cart, error)
	Save(ctx context.Context, userID uuid.UUID, c Cart) error
	Clear(ctx context.Context, userID uuid.UUID) error
	// Modify applies fn to the stored cart and saves it atomically. Concurrent
	// modifications of one cart are serialized. An error from fn leaves it unchanged
	Modify(ctx context.Context, userID uuid.UUID, fn func(Cart) error) (Cart, error)
}
