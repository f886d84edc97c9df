package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/mystique/backend/internal/domain/catalog"
	"github.com/mystique/backend/internal/domain/shared"
	"go.uber.org/zap"
)

var (
	errImageRequired     = shared.NewDomainError("INVALID_IMAGE", "At least one product image is required")
	errNothingToDelete   = shared.ErrNotFound.WithMessage("Could not find a product to delete!")
	errNothingToUpdate   = shared.ErrInvalidInput.WithMessage("No changes provided")
	errUploaderMissing   = shared.NewDomainError("STORAGE_UNAVAILABLE", "Image storage is not configured")
	errDuplicateImageKey = shared.NewDomainError("INVALID_IMAGE_SLOT", "Each image slot can only be sent once")
)

// ProductService handles product-related business operations
type ProductService struct {
	productRepo    catalog.ProductRepository
	uploader       ImageUploader
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewProductService creates a new ProductService
func NewProductService(productRepo catalog.ProductRepository, uploader ImageUploader, logger *zap.Logger) *ProductService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductService{
		productRepo: productRepo,
		uploader:    uploader,
		logger:      logger,
	}
}

// SetEventPublisher sets the event publisher for cross-context integration
func (s *ProductService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Create validates the product, uploads its images and persists it.
// No product is saved when an upload fails, and a failed save removes the uploads
func (s *ProductService) Create(ctx context.Context, req CreateProductRequest, images []ImageFile) (*ProductResponse, error) {
	product, err := catalog.NewProduct(catalog.NewProductInput{
		Name:           req.Name,
		Description:    req.Description,
		Price:          req.Price,
		Category:       catalog.Category(req.Category),
		Subcategory:    catalog.Subcategory(req.Subcategory),
		Sizes:          req.Sizes,
		Stock:          req.Stock,
		Bestseller:     req.Bestseller,
		NewArrival:     req.NewArrival,
		LimitedEdition: req.LimitedEdition,
	})
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, errImageRequired
	}
	if err := checkSlots(images); err != nil {
		return nil, err
	}
	if s.uploader == nil {
		return nil, errUploaderMissing
	}

	uploaded, err := s.uploader.Upload(ctx, imagePrefix(product.ID), images)
	if err != nil {
		return nil, err
	}
	urls := orderedURLs(uploaded)
	if err := product.ReplaceImages(urls); err != nil {
		s.uploader.Remove(ctx, urls)
		return nil, err
	}

	if err := s.productRepo.Save(ctx, product); err != nil {
		s.uploader.Remove(ctx, urls)
		return nil, err
	}

	s.logger.Info("product created",
		zap.String("product_id", product.ID.String()),
		zap.String("name", product.Name),
		zap.Int("images", len(urls)),
	)
	s.publishEvents(ctx, product)

	resp := ToProductResponse(product)
	return &resp, nil
}

// GetByID retrieves a product by ID
func (s *ProductService) GetByID(ctx context.Context, id uuid.UUID) (*ProductResponse, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, err
	}
	resp := ToProductResponse(product)
	return &resp, nil
}

// List retrieves products with optional filtering and the total count
func (s *ProductService) List(ctx context.Context, filter ProductListFilter) ([]ProductResponse, int64, error) {
	domainFilter := toDomainFilter(filter)

	products, err := s.productRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.productRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToProductResponses(products), total, nil
}

// Update applies a partial update and replaces images by slot.
// Replaced images are removed from storage once the update is committed
func (s *ProductService) Update(ctx context.Context, id uuid.UUID, req UpdateProductRequest, images []ImageFile) (*ProductResponse, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, err
	}

	patch := buildPatch(req)
	if patch.IsEmpty() && len(images) == 0 {
		return nil, errNothingToUpdate
	}
	if err := checkSlots(images); err != nil {
		return nil, err
	}

	// Validate the field changes on a copy before paying for uploads
	draft := *product
	draft.ClearDomainEvents()
	if !patch.IsEmpty() {
		if err := draft.ApplyUpdate(patch); err != nil {
			return nil, err
		}
	}

	previous := append([]string(nil), product.Images...)
	var uploaded map[int]string
	if len(images) > 0 {
		if s.uploader == nil {
			return nil, errUploaderMissing
		}
		uploaded, err = s.uploader.Upload(ctx, imagePrefix(product.ID), images)
		if err != nil {
			return nil, err
		}
		patch.Images = uploaded
	}
	fresh := orderedURLs(uploaded)

	if err := product.ApplyUpdate(patch); err != nil {
		s.removeImages(ctx, fresh)
		return nil, err
	}
	if err := s.productRepo.Update(ctx, product); err != nil {
		s.removeImages(ctx, fresh)
		return nil, err
	}

	var replaced []string
	for slot := range uploaded {
		if slot <= len(previous) && previous[slot-1] != product.Images[slot-1] {
			replaced = append(replaced, previous[slot-1])
		}
	}
	s.removeImages(ctx, replaced)

	s.logger.Info("product updated",
		zap.String("product_id", product.ID.String()),
		zap.Int("version", product.Version),
		zap.Int("images_replaced", len(uploaded)),
	)
	s.publishEvents(ctx, product)

	resp := ToProductResponse(product)
	return &resp, nil
}

// Delete removes a product and its images
func (s *ProductService) Delete(ctx context.Context, id uuid.UUID) error {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return errNothingToDelete
		}
		return err
	}

	product.MarkDeleted()
	if err := s.productRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return errNothingToDelete
		}
		return err
	}
	s.removeImages(ctx, product.Images)

	s.logger.Info("product deleted", zap.String("product_id", id.String()))
	s.publishEvents(ctx, product)
	return nil
}

func (s *ProductService) removeImages(ctx context.Context, urls []string) {
	if s.uploader != nil && len(urls) > 0 {
		s.uploader.Remove(ctx, urls)
	}
}

func (s *ProductService) publishEvents(ctx context.Context, product *catalog.Product) {
	if s.eventPublisher != nil {
		for _, event := range product.GetDomainEvents() {
			if err := s.eventPublisher.Publish(ctx, event); err != nil {
				s.logger.Warn("failed to publish product event",
					zap.String("product_id", product.ID.String()),
					zap.String("event_type", event.EventType()),
					zap.Error(err),
				)
			}
		}
	}
	product.ClearDomainEvents()
}

func buildPatch(req UpdateProductRequest) catalog.ProductPatch {
	patch := catalog.ProductPatch{
		Name:           req.Name,
		Description:    req.Description,
		Price:          req.Price,
		Sizes:          req.Sizes,
		Stock:          req.Stock,
		Bestseller:     req.Bestseller,
		NewArrival:     req.NewArrival,
		LimitedEdition: req.LimitedEdition,
	}
	if req.Category != nil {
		c := catalog.Category(*req.Category)
		patch.Category = &c
	}
	if req.Subcategory != nil {
		sc := catalog.Subcategory(*req.Subcategory)
		patch.Subcategory = &sc
	}
	return patch
}

func toDomainFilter(f ProductListFilter) shared.Filter {
	filter := shared.DefaultFilter().Unpaged()
	if f.Page > 0 || f.PageSize > 0 {
		filter.Page = f.Page
		filter.PageSize = f.PageSize
		if filter.Page == 0 {
			filter.Page = 1
		}
		if filter.PageSize == 0 {
			filter.PageSize = 20
		}
	}
	if f.OrderBy != "" {
		filter.OrderBy = f.OrderBy
	}
	if f.OrderDir != "" {
		filter.OrderDir = f.OrderDir
	}
	filter.Search = strings.TrimSpace(f.Search)

	if f.Category != "" {
		filter.Filters["category"] = f.Category
	}
	if f.Subcategory != "" {
		filter.Filters["subcategory"] = f.Subcategory
	}
	if f.Bestseller != nil {
		filter.Filters["bestseller"] = *f.Bestseller
	}
	if f.NewArrival != nil {
		filter.Filters["new_arrival"] = *f.NewArrival
	}
	if f.LimitedEdition != nil {
		filter.Filters["limited_edition"] = *f.LimitedEdition
	}
	if f.InStock != nil {
		filter.Filters["in_stock"] = *f.InStock
	}
	return filter
}

func checkSlots(images []ImageFile) error {
	seen := make(map[int]struct{}, len(images))
	for _, img := range images {
		if img.Slot < 1 || img.Slot > catalog.MaxImages {
			return shared.NewDomainError("INVALID_IMAGE_SLOT", "Image slot must be between 1 and 4")
		}
		if _, dup := seen[img.Slot]; dup {
			return errDuplicateImageKey
		}
		seen[img.Slot] = struct{}{}
	}
	return nil
}

// orderedURLs flattens the slot map in slot order
func orderedURLs(bySlot map[int]string) []string {
	slots := make([]int, 0, len(bySlot))
	for slot := range bySlot {
		slots = append(slots, slot)
	}
	sort.Ints(slots)
	out := make([]string, 0, len(slots))
	for _, slot := range slots {
		out = append(out, bySlot[slot])
	}
	return out
}

func imagePrefix(id uuid.UUID) string {
	return "products/" + id.String()
}
