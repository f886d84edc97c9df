package cart

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/mystique/backend/internal/domain/cart"
	"github.com/mystique/backend/internal/domain/catalog"
	"github.com/mystique/backend/internal/domain/shared"
	"go.uber.org/zap"
)

var errSizeUnavailable = shared.NewDomainError("INVALID_SIZE", "Selected size is not available for this product")

// CartService manages the per-user cart
type CartService struct {
	cartRepo    cart.Repository
	productRepo catalog.ProductRepository
	logger      *zap.Logger
}

// NewCartService creates a new CartService
func NewCartService(cartRepo cart.Repository, productRepo catalog.ProductRepository, logger *zap.Logger) *CartService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartService{cartRepo: cartRepo, productRepo: productRepo, logger: logger}
}

// Get returns the user's cart
func (s *CartService) Get(ctx context.Context, userID uuid.UUID) (CartResponse, error) {
	c, err := s.cartRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toResponse(c), nil
}

// Add increments a product size by one
func (s *CartService) Add(ctx context.Context, userID uuid.UUID, req AddItemRequest) (CartResponse, error) {
	if err := s.checkOffered(ctx, req.ItemID, req.Size); err != nil {
		return nil, err
	}
	c, err := s.cartRepo.Modify(ctx, userID, func(c cart.Cart) error {
		return c.Add(req.ItemID, req.Size)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("cart item added",
		zap.String("user_id", userID.String()),
		zap.String("product_id", req.ItemID.String()),
		zap.String("size", req.Size),
	)
	return toResponse(c), nil
}

// Update sets the quantity of a product size. Removing a line skips the
// product check so items of deleted products can still be dropped
func (s *CartService) Update(ctx context.Context, userID uuid.UUID, req UpdateItemRequest) (CartResponse, error) {
	qty := 0
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	if qty > 0 {
		if err := s.checkOffered(ctx, req.ItemID, req.Size); err != nil {
			return nil, err
		}
	}
	c, err := s.cartRepo.Modify(ctx, userID, func(c cart.Cart) error {
		return c.Set(req.ItemID, req.Size, qty)
	})
	if err != nil {
		return nil, err
	}
	return toResponse(c), nil
}

// Reset empties the cart
func (s *CartService) Reset(ctx context.Context, userID uuid.UUID) error {
	return s.cartRepo.Clear(ctx, userID)
}

func (s *CartService) checkOffered(ctx context.Context, productID uuid.UUID, size string) error {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return catalog.ErrProductNotFound
		}
		return err
	}
	if !product.HasSize(strings.TrimSpace(size)) {
		return errSizeUnavailable
	}
	return nil
}

func toResponse(c cart.Cart) CartResponse {
	if c == nil {
		return CartResponse{}
	}
	return CartResponse(c)
}
