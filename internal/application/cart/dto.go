package cart

import "github.com/google/uuid"

// AddItemRequest adds one unit of a product size
type AddItemRequest struct {
	ItemID uuid.UUID `json:"itemId" binding:"required"`
	Size   string    `json:"size" binding:"required,max=20"`
}

// UpdateItemRequest sets the quantity of a product size. Zero removes it
type UpdateItemRequest struct {
	ItemID   uuid.UUID `json:"itemId" binding:"required"`
	Size     string    `json:"size" binding:"required,max=20"`
	Quantity *int      `json:"quantity" binding:"required,min=0,max=99"`
}

// CartResponse is the storefront's cartData shape: product id -> size -> quantity
type CartResponse map[string]map[string]int
