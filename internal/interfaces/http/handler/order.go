package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mystique/backend/internal/application/trade"
	"github.com/mystique/backend/internal/interfaces/http/dto"
)

// IdempotencyKeyHeader lets clients retry a placement without creating a second order
const IdempotencyKeyHeader = "Idempotency-Key"

// StripeSignatureHeader carries the webhook signature
const StripeSignatureHeader = "Stripe-Signature"

// CheckoutService is the part of trade.OrderService the order endpoints call
type CheckoutService interface {
	PlaceCOD(ctx context.Context, userID uuid.UUID, req trade.PlaceOrderRequest) (*trade.PlaceOrderResult, error)
	PlaceStripe(ctx context.Context, userID uuid.UUID, req trade.PlaceOrderRequest, origin string) (*trade.PlaceOrderResult, error)
	VerifyStripe(ctx context.Context, userID uuid.UUID, req trade.VerifyPaymentRequest) (*trade.VerifyPaymentResult, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	ListAll(ctx context.Context, filter trade.OrderListFilter) ([]trade.OrderResponse, int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]trade.OrderResponse, error)
	UpdateStatus(ctx context.Context, req trade.UpdateStatusRequest) (*trade.OrderResponse, error)
}

// OrderHandler handles order placement, payment and fulfilment endpoints
type OrderHandler struct {
	BaseHandler
	orderService CheckoutService
	// webhookTimeout detaches webhook processing from a client that hangs up early
	webhookTimeout time.Duration
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orderService CheckoutService) *OrderHandler {
	return &OrderHandler{
		orderService:   orderService,
		webhookTimeout: 30 * time.Second,
	}
}

// PlaceCOD godoc
// @Summary      Place a cash on delivery order
// @Description  Reserve stock for the given items (or the cart) and create a pending order.
// @Description  A repeated Idempotency-Key returns the original order
// @Tags         order
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key header string false "Client retry key"
// @Param        request body trade.PlaceOrderRequest true "Items and address"
// @Success      201 {object} dto.Response{data=trade.PlaceOrderResult}
// @Success      200 {object} dto.Response{data=trade.PlaceOrderResult} "Replayed"
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     TokenAuth
// @Router       /order/place [post]
func (h *OrderHandler) PlaceCOD(c *gin.Context) {
	h.place(c, func(ctx context.Context, userID uuid.UUID, req trade.PlaceOrderRequest) (*trade.PlaceOrderResult, error) {
		return h.orderService.PlaceCOD(ctx, userID, req)
	})
}

// PlaceStripe godoc
// @Summary      Place a card order
// @Description  Reserve stock and open a hosted checkout session. Redirect the customer to session_url
// @Tags         order
// @Accept       json
// @Produce      json
// @Param        Origin header string false "Storefront origin used for the return URLs"
// @Param        Idempotency-Key header string false "Client retry key"
// @Param        request body trade.PlaceOrderRequest true "Items and address"
// @Success      201 {object} dto.Response{data=trade.PlaceOrderResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     TokenAuth
// @Router       /order/stripe [post]
func (h *OrderHandler) PlaceStripe(c *gin.Context) {
	origin := c.GetHeader("Origin")
	h.place(c, func(ctx context.Context, userID uuid.UUID, req trade.PlaceOrderRequest) (*trade.PlaceOrderResult, error) {
		return h.orderService.PlaceStripe(ctx, userID, req, origin)
	})
}

func (h *OrderHandler) place(c *gin.Context, fn func(context.Context, uuid.UUID, trade.PlaceOrderRequest) (*trade.PlaceOrderResult, error)) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req trade.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	if key := c.GetHeader(IdempotencyKeyHeader); key != "" {
		req.IdempotencyKey = key
	}

	result, err := fn(c.Request.Context(), userID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result.Replayed {
		h.Success(c, result)
		return
	}
	h.Created(c, result)
}

// Verify godoc
// @Summary      Verify a card payment
// @Description  Called when the customer returns from checkout. Unpaid orders are cancelled and their stock released
// @Tags         order
// @Accept       json
// @Produce      json
// @Param        request body trade.VerifyPaymentRequest true "Order and outcome"
// @Success      200 {object} dto.Response{data=trade.VerifyPaymentResult}
// @Success      202 {object} dto.Response{data=trade.VerifyPaymentResult} "Payment still processing"
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     TokenAuth
// @Router       /order/verify [post]
func (h *OrderHandler) Verify(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req trade.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.orderService.VerifyStripe(c.Request.Context(), userID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result.Pending {
		c.JSON(http.StatusAccepted, dto.NewSuccessResponse(result))
		return
	}
	h.Success(c, result)
}

// Webhook godoc
// @Summary      Payment provider webhook
// @Description  Signed checkout notifications. Redelivered events are acknowledged without side effects
// @Tags         order
// @Accept       json
// @Produce      json
// @Param        Stripe-Signature header string true "Provider signature"
// @Success      200 {object} SuccessResponse
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /order/webhook [post]
func (h *OrderHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeTooLarge, "Request body too large")
			return
		}
		h.BadRequest(c, "Could not read request body")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.webhookTimeout)
	defer cancel()

	if err := h.orderService.HandleWebhook(ctx, payload, c.GetHeader(StripeSignatureHeader)); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"received": true})
}

// ListAll godoc
// @Summary      List all orders
// @Description  Admin order list with filters and pagination
// @Tags         order
// @Produce      json
// @Param        search query string false "Customer name, email or order id"
// @Param        status query string false "Order status"
// @Param        payment_method query string false "COD or Stripe"
// @Param        payment query bool false "Paid flag"
// @Param        from query string false "Placed on or after (YYYY-MM-DD)"
// @Param        to query string false "Placed on or before (YYYY-MM-DD)"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size"
// @Success      200 {object} dto.Response{data=[]trade.OrderResponse,meta=dto.Meta}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Security     TokenAuth
// @Router       /order/list [post]
func (h *OrderHandler) ListAll(c *gin.Context) {
	var filter trade.OrderListFilter
	if err := bindFilter(c, &filter); err != nil {
		h.BindError(c, err)
		return
	}

	orders, total, err := h.orderService.ListAll(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, orders, total, filter.Page, filter.PageSize)
}

// ListMine godoc
// @Summary      List my orders
// @Tags         order
// @Produce      json
// @Success      200 {object} dto.Response{data=[]trade.OrderResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Security     TokenAuth
// @Router       /order/userorders [post]
func (h *OrderHandler) ListMine(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	orders, err := h.orderService.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, orders)
}

// UpdateStatus godoc
// @Summary      Change order status
// @Tags         order
// @Accept       json
// @Produce      json
// @Param        request body trade.UpdateStatusRequest true "Order and new status"
// @Success      200 {object} dto.Response{data=trade.OrderResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     TokenAuth
// @Router       /order/status [post]
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req trade.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	order, err := h.orderService.UpdateStatus(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}
