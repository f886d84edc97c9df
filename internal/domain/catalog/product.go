package catalog

import (
	"strings"

	"github.com/mystique/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Category is the top-level product grouping
type Category string

const (
	CategoryClothing    Category = "Clothing"
	CategoryAccessories Category = "Accessories"
	CategoryFootwear    Category = "Footwear"
)

// Subcategory refines a category
type Subcategory string

const (
	SubcategoryDresses   Subcategory = "Dresses"
	SubcategoryTops      Subcategory = "Tops"
	SubcategoryBottoms   Subcategory = "Bottoms"
	SubcategoryOuterwear Subcategory = "Outerwear"
	SubcategoryJewelry   Subcategory = "Jewelry"
	SubcategoryBags      Subcategory = "Bags"
)

// MaxImages is the number of image slots a product has (image1..image4)
const MaxImages = 4

// Categories lists the accepted categories
func Categories() []Category {
	return []Category{CategoryClothing, CategoryAccessories, CategoryFootwear}
}

// Subcategories lists the accepted subcategories
func Subcategories() []Subcategory {
	return []Subcategory{
		SubcategoryDresses, SubcategoryTops, SubcategoryBottoms,
		SubcategoryOuterwear, SubcategoryJewelry, SubcategoryBags,
	}
}

// IsValid reports whether c is a known category
func (c Category) IsValid() bool {
	for _, v := range Categories() {
		if v == c {
			return true
		}
	}
	return false
}

// IsValid reports whether s is a known subcategory
func (s Subcategory) IsValid() bool {
	for _, v := range Subcategories() {
		if v == s {
			return true
		}
	}
	return false
}

var (
	ErrInvalidCategory    = shared.NewDomainError("INVALID_CATEGORY", "Invalid category.")
	ErrInvalidSubcategory = shared.NewDomainError("INVALID_SUBCATEGORY", "Invalid subcategory.")
)

// Product is a sellable catalog item and the aggregate root for stock
type Product struct {
	shared.BaseAggregateRoot
	Name           string
	Description    string
	Price          decimal.Decimal
	Images         []string
	Category       Category
	Subcategory    Subcategory
	Sizes          []string
	Stock          int
	Bestseller     bool
	NewArrival     bool
	LimitedEdition bool
}

// NewProductInput carries the fields required to create a product
type NewProductInput struct {
	Name           string
	Description    string
	Price          decimal.Decimal
	Images         []string
	Category       Category
	Subcategory    Subcategory
	Sizes          []string
	Stock          int
	Bestseller     bool
	NewArrival     bool
	LimitedEdition bool
}

// NewProduct creates a new product
func NewProduct(in NewProductInput) (*Product, error) {
	name := strings.TrimSpace(in.Name)
	description := strings.TrimSpace(in.Description)
	if err := validateName(name); err != nil {
		return nil, err
	}
	if description == "" {
		return nil, shared.NewDomainError("INVALID_DESCRIPTION", "Product description is required")
	}
	if err := validatePrice(in.Price); err != nil {
		return nil, err
	}
	if !in.Category.IsValid() {
		return nil, ErrInvalidCategory
	}
	if !in.Subcategory.IsValid() {
		return nil, ErrInvalidSubcategory
	}
	sizes, err := normalizeSizes(in.Sizes)
	if err != nil {
		return nil, err
	}
	if err := validateStock(in.Stock); err != nil {
		return nil, err
	}
	if err := validateImages(in.Images); err != nil {
		return nil, err
	}

	p := &Product{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Description:       description,
		Price:             in.Price,
		Images:            append([]string(nil), in.Images...),
		Category:          in.Category,
		Subcategory:       in.Subcategory,
		Sizes:             sizes,
		Stock:             in.Stock,
		Bestseller:        in.Bestseller,
		NewArrival:        in.NewArrival,
		LimitedEdition:    in.LimitedEdition,
	}
	p.AddDomainEvent(NewProductCreatedEvent(p))
	return p, nil
}

// ProductPatch is a partial update. Nil fields are left unchanged
type ProductPatch struct {
	Name           *string
	Description    *string
	Price          *decimal.Decimal
	Category       *Category
	Subcategory    *Subcategory
	Sizes          []string
	Stock          *int
	Bestseller     *bool
	NewArrival     *bool
	LimitedEdition *bool
	// Images replaces images by 1-based slot
	Images map[int]string
}

// IsEmpty reports whether the patch changes nothing
func (p ProductPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil && p.Category == nil &&
		p.Subcategory == nil && p.Sizes == nil && p.Stock == nil && p.Bestseller == nil &&
		p.NewArrival == nil && p.LimitedEdition == nil && len(p.Images) == 0
}

// ApplyUpdate validates every provided field before changing any of them
func (p *Product) ApplyUpdate(patch ProductPatch) error {
	next := *p
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if err := validateName(name); err != nil {
			return err
		}
		next.Name = name
	}
	if patch.Description != nil {
		d := strings.TrimSpace(*patch.Description)
		if d == "" {
			return shared.NewDomainError("INVALID_DESCRIPTION", "Product description is required")
		}
		next.Description = d
	}
	if patch.Price != nil {
		if err := validatePrice(*patch.Price); err != nil {
			return err
		}
		next.Price = *patch.Price
	}
	if patch.Category != nil {
		if !patch.Category.IsValid() {
			return ErrInvalidCategory
		}
		next.Category = *patch.Category
	}
	if patch.Subcategory != nil {
		if !patch.Subcategory.IsValid() {
			return ErrInvalidSubcategory
		}
		next.Subcategory = *patch.Subcategory
	}
	if patch.Sizes != nil {
		sizes, err := normalizeSizes(patch.Sizes)
		if err != nil {
			return err
		}
		next.Sizes = sizes
	}
	if patch.Stock != nil {
		if err := validateStock(*patch.Stock); err != nil {
			return err
		}
		next.Stock = *patch.Stock
	}
	if patch.Bestseller != nil {
		next.Bestseller = *patch.Bestseller
	}
	if patch.NewArrival != nil {
		next.NewArrival = *patch.NewArrival
	}
	if patch.LimitedEdition != nil {
		next.LimitedEdition = *patch.LimitedEdition
	}
	next.Images = append([]string(nil), p.Images...)
	for slot := 1; slot <= MaxImages; slot++ {
		url, ok := patch.Images[slot]
		if !ok {
			continue
		}
		if err := setImageSlot(&next.Images, slot, url); err != nil {
			return err
		}
	}
	for slot := range patch.Images {
		if slot < 1 || slot > MaxImages {
			return errInvalidImageSlot
		}
	}

	p.Name = next.Name
	p.Description = next.Description
	p.Price = next.Price
	p.Category = next.Category
	p.Subcategory = next.Subcategory
	p.Sizes = next.Sizes
	p.Stock = next.Stock
	p.Bestseller = next.Bestseller
	p.NewArrival = next.NewArrival
	p.LimitedEdition = next.LimitedEdition
	p.Images = next.Images
	p.Touch()
	p.IncrementVersion()
	p.AddDomainEvent(NewProductUpdatedEvent(p))
	return nil
}

var errInvalidImageSlot = shared.NewDomainError("INVALID_IMAGE_SLOT", "Image slot must be between 1 and 4")

// ReplaceImage sets the image in a 1-based slot, appending when the slot is past the end
func (p *Product) ReplaceImage(slot int, url string) error {
	return p.ApplyUpdate(ProductPatch{Images: map[int]string{slot: url}})
}

func setImageSlot(images *[]string, slot int, url string) error {
	if slot < 1 || slot > MaxImages {
		return errInvalidImageSlot
	}
	if strings.TrimSpace(url) == "" {
		return shared.NewDomainError("INVALID_IMAGE", "Image URL cannot be empty")
	}
	if slot <= len(*images) {
		(*images)[slot-1] = url
	} else {
		*images = append(*images, url)
	}
	return nil
}

// ReplaceImages swaps the whole image list
func (p *Product) ReplaceImages(urls []string) error {
	if len(urls) == 0 {
		return shared.NewDomainError("INVALID_IMAGE", "At least one image is required")
	}
	if err := validateImages(urls); err != nil {
		return err
	}
	p.Images = append([]string(nil), urls...)
	p.Touch()
	p.IncrementVersion()
	return nil
}

// HasSize reports whether the product is offered in size
func (p *Product) HasSize(size string) bool {
	for _, s := range p.Sizes {
		if s == size {
			return true
		}
	}
	return false
}

// CanFulfil reports whether qty units are currently in stock
func (p *Product) CanFulfil(qty int) bool {
	return qty > 0 && p.Stock >= qty
}

// InsufficientStockError builds the client-facing stock error
func (p *Product) InsufficientStockError() error {
	return ErrInsufficientStockFor(p.Name, p.Stock)
}

// MarkDeleted records the deletion event
func (p *Product) MarkDeleted() {
	p.AddDomainEvent(NewProductDeletedEvent(p))
}

func validateName(name string) error {
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Product name is required")
	}
	if len(name) > 200 {
		return shared.NewDomainError("INVALID_NAME", "Product name cannot exceed 200 characters")
	}
	return nil
}

func validatePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return shared.NewDomainError("INVALID_PRICE", "Price must be greater than zero")
	}
	if !price.Equal(price.Round(2)) {
		return shared.NewDomainError("INVALID_PRICE", "Price cannot have more than two decimal places")
	}
	return nil
}

func validateStock(stock int) error {
	if stock < 0 {
		return shared.NewDomainError("INVALID_STOCK", "Stock cannot be negative")
	}
	return nil
}

func validateImages(images []string) error {
	if len(images) > MaxImages {
		return shared.NewDomainError("INVALID_IMAGE", "A product can have at most 4 images")
	}
	for _, img := range images {
		if strings.TrimSpace(img) == "" {
			return shared.NewDomainError("INVALID_IMAGE", "Image URL cannot be empty")
		}
	}
	return nil
}

func normalizeSizes(sizes []string) ([]string, error) {
	out := make([]string, 0, len(sizes))
	seen := make(map[string]struct{}, len(sizes))
	for _, s := range sizes {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, shared.NewDomainError("INVALID_SIZES", "At least one size is required")
	}
	return out, nil
}
