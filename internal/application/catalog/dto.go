package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/mystique/backend/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// CreateProductRequest represents a request to create a new product.
// Images travel separately as ImageFile values
type CreateProductRequest struct {
	Name           string          `json:"name" binding:"required,min=1,max=200"`
	Description    string          `json:"description" binding:"required,max=5000"`
	Price          decimal.Decimal `json:"price" binding:"required"`
	Category       string          `json:"category" binding:"required,category"`
	Subcategory    string          `json:"subCategory" binding:"required,subcategory"`
	Sizes          []string        `json:"sizes" binding:"required,min=1,max=20,dive,min=1,max=20"`
	Stock          int             `json:"stock" binding:"min=0"`
	Bestseller     bool            `json:"bestseller"`
	NewArrival     bool            `json:"newArrival"`
	LimitedEdition bool            `json:"limitedEdition"`
}

// UpdateProductRequest represents a partial update. Nil fields are left unchanged
type UpdateProductRequest struct {
	Name           *string          `json:"name" binding:"omitempty,min=1,max=200"`
	Description    *string          `json:"description" binding:"omitempty,max=5000"`
	Price          *decimal.Decimal `json:"price"`
	Category       *string          `json:"category" binding:"omitempty,category"`
	Subcategory    *string          `json:"subCategory" binding:"omitempty,subcategory"`
	Sizes          []string         `json:"sizes" binding:"omitempty,max=20,dive,min=1,max=20"`
	Stock          *int             `json:"stock" binding:"omitempty,min=0"`
	Bestseller     *bool            `json:"bestseller"`
	NewArrival     *bool            `json:"newArrival"`
	LimitedEdition *bool            `json:"limitedEdition"`
}

// ProductListFilter represents product list filtering options.
// Page and PageSize of zero return the whole catalog, as the storefront expects
type ProductListFilter struct {
	Search         string `form:"search" json:"search"`
	Category       string `form:"category" json:"category"`
	Subcategory    string `form:"subCategory" json:"subCategory"`
	Bestseller     *bool  `form:"bestseller" json:"bestseller"`
	NewArrival     *bool  `form:"newArrival" json:"newArrival"`
	LimitedEdition *bool  `form:"limitedEdition" json:"limitedEdition"`
	InStock        *bool  `form:"inStock" json:"inStock"`
	Page           int    `form:"page" json:"page" binding:"omitempty,min=1"`
	PageSize       int    `form:"page_size" json:"pageSize" binding:"omitempty,min=1,max=200"`
	OrderBy        string `form:"order_by" json:"orderBy" binding:"omitempty,oneof=name price stock created_at"`
	OrderDir       string `form:"order_dir" json:"orderDir" binding:"omitempty,oneof=asc desc"`
}

// ProductResponse represents a product in API responses
type ProductResponse struct {
	ID             uuid.UUID       `json:"_id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Price          decimal.Decimal `json:"price"`
	Image          []string        `json:"image"`
	Category       string          `json:"category"`
	Subcategory    string          `json:"subCategory"`
	Sizes          []string        `json:"sizes"`
	Stock          int             `json:"stock"`
	Bestseller     bool            `json:"bestseller"`
	NewArrival     bool            `json:"newArrival"`
	LimitedEdition bool            `json:"limitedEdition"`
	Date           int64           `json:"date"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// ToProductResponse converts a domain product to a response DTO
func ToProductResponse(p *catalog.Product) ProductResponse {
	images := append([]string{}, p.Images...)
	sizes := append([]string{}, p.Sizes...)
	return ProductResponse{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Price:          p.Price,
		Image:          images,
		Category:       string(p.Category),
		Subcategory:    string(p.Subcategory),
		Sizes:          sizes,
		Stock:          p.Stock,
		Bestseller:     p.Bestseller,
		NewArrival:     p.NewArrival,
		LimitedEdition: p.LimitedEdition,
		Date:           p.CreatedAt.UnixMilli(),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// ToProductResponses converts a slice of domain products
func ToProductResponses(products []catalog.Product) []ProductResponse {
	out := make([]ProductResponse, len(products))
	for i := range products {
		out[i] = ToProductResponse(&products[i])
	}
	return out
}
