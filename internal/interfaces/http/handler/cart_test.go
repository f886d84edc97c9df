package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mystique/backend/internal/application/cart"
	"github.com/mystique/backend/internal/domain/shared"
	"github.com/mystique/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockShoppingCartService is a mock implementation of ShoppingCartService
type MockShoppingCartService struct {
	mock.Mock
}

func (m *MockShoppingCartService) Get(ctx context.Context, userID uuid.UUID) (cart.CartResponse, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(cart.CartResponse), args.Error(1)
}

func (m *MockShoppingCartService) Add(ctx context.Context, userID uuid.UUID, req cart.AddItemRequest) (cart.CartResponse, error) {
	args := m.Called(ctx, userID, req)
	return args.Get(0).(cart.CartResponse), args.Error(1)
}

func (m *MockShoppingCartService) Update(ctx context.Context, userID uuid.UUID, req cart.UpdateItemRequest) (cart.CartResponse, error) {
	args := m.Called(ctx, userID, req)
	return args.Get(0).(cart.CartResponse), args.Error(1)
}

func (m *MockShoppingCartService) Reset(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func setupCartRouter(svc ShoppingCartService, userID uuid.UUID) *gin.Engine {
	h := NewCartHandler(svc)
	router := gin.New()
	group := router.Group("/cart", asUser(userID, "customer"))
	group.GET("/get", h.Get)
	group.POST("/add", h.Add)
	group.POST("/update", h.Update)
	group.POST("/reset", h.Reset)
	return router
}

func TestCartHandler_AddAndGet(t *testing.T) {
	svc := new(MockShoppingCartService)
	userID, itemID := uuid.New(), uuid.New()
	data := cart.CartResponse{itemID.String(): {"M": 2}}

	svc.On("Add", mock.Anything, userID, cart.AddItemRequest{ItemID: itemID, Size: "M"}).Return(data, nil)
	svc.On("Get", mock.Anything, userID).Return(data, nil)

	router := setupCartRouter(svc, userID)

	w := doJSON(router, http.MethodPost, "/cart/add", map[string]string{"itemId": itemID.String(), "size": "M"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(router, http.MethodGet, "/cart/get", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeResponse(t, w).Data.(map[string]any)
	assert.Equal(t, float64(2), got[itemID.String()].(map[string]any)["M"])

	svc.AssertExpectations(t)
}

func TestCartHandler_Add_UnknownProduct(t *testing.T) {
	svc := new(MockShoppingCartService)
	userID := uuid.New()
	svc.On("Add", mock.Anything, userID, mock.Anything).
		Return(cart.CartResponse(nil), shared.ErrNotFound.WithMessage("Product not found"))

	w := doJSON(setupCartRouter(svc, userID), http.MethodPost, "/cart/add",
		map[string]string{"itemId": uuid.NewString(), "size": "M"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCartHandler_Update(t *testing.T) {
	svc := new(MockShoppingCartService)
	userID, itemID := uuid.New(), uuid.New()
	svc.On("Update", mock.Anything, userID, mock.MatchedBy(func(req cart.UpdateItemRequest) bool {
		return req.ItemID == itemID && req.Quantity != nil && *req.Quantity == 0
	})).Return(cart.CartResponse{}, nil)

	router := setupCartRouter(svc, userID)

	w := doJSON(router, http.MethodPost, "/cart/update",
		map[string]any{"itemId": itemID.String(), "size": "M", "quantity": 0})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(router, http.MethodPost, "/cart/update",
		map[string]any{"itemId": itemID.String(), "size": "M"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeValidation, decodeResponse(t, w).Error.Code)

	svc.AssertExpectations(t)
}

func TestCartHandler_Reset(t *testing.T) {
	svc := new(MockShoppingCartService)
	userID := uuid.New()
	svc.On("Reset", mock.Anything, userID).Return(nil)

	w := doJSON(setupCartRouter(svc, userID), http.MethodPost, "/cart/reset", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestCartHandler_NoUser(t *testing.T) {
	h := NewCartHandler(new(MockShoppingCartService))
	router := gin.New()
	router.GET("/cart/get", h.Get)

	w := doJSON(router, http.MethodGet, "/cart/get", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
