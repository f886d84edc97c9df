package models

import (
	"github.com/mystique/backend/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// ProductModel is the persistence model for the Product aggregate.
type ProductModel struct {
	AggregateModel
	Name           string              `gorm:"type:varchar(200);not null"`
	Description    string              `gorm:"type:text;not null"`
	Price          decimal.Decimal     `gorm:"type:decimal(12,2);not null"`
	Images         []string            `gorm:"type:jsonb;serializer:json;not null"`
	Category       catalog.Category    `gorm:"type:varchar(30);not null;index"`
	Subcategory    catalog.Subcategory `gorm:"type:varchar(30);not null;index"`
	Sizes          []string            `gorm:"type:jsonb;serializer:json;not null"`
	Stock          int                 `gorm:"not null;default:0;check:chk_products_stock,stock >= 0"`
	Bestseller     bool                `gorm:"not null;default:false"`
	NewArrival     bool                `gorm:"not null;default:false"`
	LimitedEdition bool                `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product.
func (m *ProductModel) ToDomain() *catalog.Product {
	return &catalog.Product{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Name:              m.Name,
		Description:       m.Description,
		Price:             m.Price,
		Images:            append([]string(nil), m.Images...),
		Category:          m.Category,
		Subcategory:       m.Subcategory,
		Sizes:             append([]string(nil), m.Sizes...),
		Stock:             m.Stock,
		Bestseller:        m.Bestseller,
		NewArrival:        m.NewArrival,
		LimitedEdition:    m.LimitedEdition,
	}
}

// FromDomain populates the persistence model from a domain Product.
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.Name = p.Name
	m.Description = p.Description
	m.Price = p.Price
	m.Images = p.Images
	m.Category = p.Category
	m.Subcategory = p.Subcategory
	m.Sizes = p.Sizes
	m.Stock = p.Stock
	m.Bestseller = p.Bestseller
	m.NewArrival = p.NewArrival
	m.LimitedEdition = p.LimitedEdition
}

// ProductModelFromDomain creates a persistence model from a domain Product.
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	m := &ProductModel{}
	m.FromDomain(p)
	return m
}
