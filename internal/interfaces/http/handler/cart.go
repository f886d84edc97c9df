package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mystique/backend/internal/application/cart"
)

// ShoppingCartService is the part of cart.CartService the cart endpoints call
type ShoppingCartService interface {
	Get(ctx context.Context, userID uuid.UUID) (cart.CartResponse, error)
	Add(ctx context.Context, userID uuid.UUID, req cart.AddItemRequest) (cart.CartResponse, error)
	Update(ctx context.Context, userID uuid.UUID, req cart.UpdateItemRequest) (cart.CartResponse, error)
	Reset(ctx context.Context, userID uuid.UUID) error
}

// CartHandler handles the caller's cart
type CartHandler struct {
	BaseHandler
	cartService ShoppingCartService
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(cartService ShoppingCartService) *CartHandler {
	return &CartHandler{cartService: cartService}
}

// Get godoc
// @Summary      Get cart
// @Description  The caller's cart as product id -> size -> quantity
// @Tags         cart
// @Produce      json
// @Success      200 {object} dto.Response{data=cart.CartResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Security     TokenAuth
// @Router       /cart/get [get]
func (h *CartHandler) Get(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	data, err := h.cartService.Get(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, data)
}

// Add godoc
// @Summary      Add to cart
// @Description  Add one unit of a product size
// @Tags         cart
// @Accept       json
// @Produce      json
// @Param        request body cart.AddItemRequest true "Item to add"
// @Success      200 {object} dto.Response{data=cart.CartResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     TokenAuth
// @Router       /cart/add [post]
func (h *CartHandler) Add(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req cart.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	data, err := h.cartService.Add(c.Request.Context(), userID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, data)
}

// Update godoc
// @Summary      Update cart quantity
// @Description  Set the quantity of a product size; zero removes the line
// @Tags         cart
// @Accept       json
// @Produce      json
// @Param        request body cart.UpdateItemRequest true "New quantity"
// @Success      200 {object} dto.Response{data=cart.CartResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     TokenAuth
// @Router       /cart/update [post]
func (h *CartHandler) Update(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req cart.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	data, err := h.cartService.Update(c.Request.Context(), userID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, data)
}

// Reset godoc
// @Summary      Empty cart
// @Tags         cart
// @Produce      json
// @Success      200 {object} dto.Response{data=cart.CartResponse}
// @Security     TokenAuth
// @Router       /cart/reset [post]
func (h *CartHandler) Reset(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	if err := h.cartService.Reset(c.Request.Context(), userID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cart.CartResponse{})
}
