package trade

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mystique/backend/internal/domain/cart"
	"github.com/mystique/backend/internal/domain/catalog"
	"github.com/mystique/backend/internal/domain/shared"
	"github.com/mystique/backend/internal/domain/shared/valueobject"
	"github.com/mystique/backend/internal/domain/trade"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type orderFixture struct {
	svc      *OrderService
	products *MockProductRepository
	orders   *MockOrderRepository
	carts    *MockCartRepository
	gateway  *MockCheckoutGateway
	idem     *MockIdempotencyStore
	events   *recordingPublisher
	tx       *fakeTxScope
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	f := &orderFixture{
		products: new(MockProductRepository),
		orders:   new(MockOrderRepository),
		carts:    new(MockCartRepository),
		gateway:  new(MockCheckoutGateway),
		idem:     new(MockIdempotencyStore),
		events:   &recordingPublisher{},
	}
	f.tx = &fakeTxScope{products: f.products, orders: f.orders, carts: f.carts}
	f.svc = NewOrderService(f.tx, f.orders, f.carts, zaptest.NewLogger(t))
	f.svc.SetCheckoutGateway(f.gateway)
	f.svc.SetIdempotencyStore(f.idem)
	f.svc.SetEventPublisher(f.events)
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func testProduct(t *testing.T, price int64, stock int) *catalog.Product {
	t.Helper()
	p, err := catalog.NewProduct(catalog.NewProductInput{
		Name:        "Silk Dress",
		Description: "Bias cut evening dress",
		Price:       decimal.NewFromInt(price),
		Images:      []string{"https://cdn.example.com/dress.jpg"},
		Category:    catalog.CategoryClothing,
		Subcategory: catalog.SubcategoryDresses,
		Sizes:       []string{"S", "M"},
		Stock:       stock,
	})
	require.NoError(t, err)
	p.ClearDomainEvents()
	return p
}

func testAddress() valueobject.ShippingAddress {
	return valueobject.ShippingAddress{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Street:    "12 St James's Square",
		City:      "London",
		Zipcode:   "SW1Y 4JH",
		Country:   "UK",
		Phone:     "+44 20 7946 0000",
	}
}

func testOrder(t *testing.T, userID uuid.UUID, method trade.PaymentMethod, p *catalog.Product, qty int) *trade.Order {
	t.Helper()
	o, err := trade.NewOrder(userID, method, []trade.OrderItem{{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Quantity:  qty,
		Size:      "M",
	}}, testAddress(), trade.DefaultDeliveryFee, valueobject.USD)
	require.NoError(t, err)
	if method == trade.PaymentMethodStripe {
		require.NoError(t, o.AttachCheckoutSession("cs_test_1"))
	}
	o.ClearDomainEvents()
	return o
}

func lineRequest(p *catalog.Product, size string, qty int) PlaceOrderRequest {
	return PlaceOrderRequest{
		Items:   []OrderLineRequest{{ProductID: p.ID, Size: size, Quantity: qty}},
		Address: testAddress(),
	}
}

func TestOrderService_PlaceCOD(t *testing.T) {
	ctx := context.Background()

	t.Run("reserves stock and computes amount server-side", func(t *testing.T) {
		f := newOrderFixture(t)
		userID := uuid.New()
		p := testProduct(t, 50, 5)

		f.products.On("FindByID", mock.Anything, p.ID).Return(p, nil)
		f.products.On("DecrementStock", mock.Anything, p.ID, 2).Return(nil)
		f.orders.On("Save", mock.Anything, mock.AnythingOfType("*trade.Order")).Return(nil)
		f.carts.On("Clear", mock.Anything, userID).Return(nil)

		res, err := f.svc.PlaceCOD(ctx, userID, lineRequest(p, "M", 2))
		require.NoError(t, err)

		assert.True(t, decimal.NewFromInt(110).Equal(res.Order.Amount), "50*2 + delivery fee 10")
		assert.Equal(t, "COD", res.Order.PaymentMethod)
		assert.Equal(t, "Order Placed", res.Order.Status)
		assert.False(t, res.Order.Payment)
		assert.Empty(t, res.SessionURL)
		require.Len(t, res.Order.Items, 1)
		assert.Equal(t, []string{"https://cdn.example.com/dress.jpg"}, res.Order.Items[0].Image)
		assert.Equal(t, []string{trade.EventTypeOrderPlaced}, f.events.types())
		f.carts.AssertCalled(t, "Clear", mock.Anything, userID)
	})

	t.Run("merges duplicate lines into one reservation", func(t *testing.T) {
		f := newOrderFixture(t)
		userID := uuid.New()
		p := testProduct(t, 20, 5)

		f.products.On("FindByID", mock.Anything, p.ID).Return(p, nil)
		f.products.On("DecrementStock", mock.Anything, p.ID, 3).Return(nil)
		f.orders.On("Save", mock.Anything, mock.AnythingOfType("*trade.Order")).Return(nil)
		f.carts.On("Clear", mock.Anything, userID).Return(nil)

		req := lineRequest(p, "S", 1)
		req.Items = append(req.Items, OrderLineRequest{ProductID: p.ID, Size: "S", Quantity: 2})

		res, err := f.svc.PlaceCOD(ctx, userID, req)
		require.NoError(t, err)
		require.Len(t, res.Order.Items, 1)
		assert.Equal(t, 3, res.Order.Items[0].Quantity)
		f.products.AssertNumberOfCalls(t, "DecrementStock", 1)
	})

	t.Run("orders the stored cart when no items are sent", func(t *testing.T) {
		f := newOrderFixture(t)
		userID := uuid.New()
		p := testProduct(t, 20, 5)
		c := cart.New()
		require.NoError(t, c.Set(p.ID, "M", 2))

		f.carts.On("Get", mock.Anything, userID).Return(c, nil)
		f.products.On("FindByID", mock.Anything, p.ID).Return(p, nil)
		f.products.On("DecrementStock", mock.Anything, p.ID, 2).Return(nil)
		f.orders.On("Save", mock.Anything, mock.AnythingOfType("*trade.Order")).Return(nil)
		f.carts.On("Clear", mock.Anything, userID).Return(nil)

		res, err := f.svc.PlaceCOD(ctx, userID, PlaceOrderRequest{Address: testAddress()})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Order.Items[0].Quantity)
	})

	t.Run("empty cart is rejected", func(t *testing.T) {
		f := newOrderFixture(t)
		userID := uuid.New()
		f.carts.On("Get", mock.Anything, userID).Return(cart.New(), nil)

		_, err := f.svc.PlaceCOD(ctx, userID, PlaceOrderRequest{Address: testAddress()})
		require.Error(t, err)
		assert.ErrorIs(t, err, errEmptyOrder)
	})

	t.Run("insufficient stock aborts before the order is saved", func(t *testing.T) {
		f := newOrderFixture(t)
		userID := uuid.New()
		p := testProduct(t, 50, 1)

		f.products.On("FindByID", mock.Anything, p.ID).Return(p, nil)
		f.products.On("DecrementStock", mock.Anything, p.ID, 2).
			Return(catalog.ErrInsufficientStockFor(p.Name, 1))

		_, err := f.svc.PlaceCOD(ctx, userID, lineRequest(p, "M", 2))
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
		assert.Equal(t, "Insufficient stock for Silk Dress. Only 1 left.", err.Error())
		f.orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		f.carts.AssertNotCalled(t, "Clear", mock.Anything, mock.Anything)
		assert.Empty(t, f.events.events)
	})

	t.Run("missing product reports its id", func(t *testing.T) {
		f := newOrderFixture(t)
		id := uuid.New()
		f.products.On("FindByID", mock.Anything, id).Return(nil, shared.ErrNotFound)

		req := PlaceOrderRequest{
			Items:   []OrderLineRequest{{ProductID: id, Size: "M", Quantity: 1}},
			Address: testAddress(),
		}
		_, err := f.svc.PlaceCOD(ctx, uuid.New(), req)
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.Equal(t, "Product not found for ID: "+id.String(), err.Error())
	})

	t.Run("unknown size is rejected", func(t *testing.T) {
		f := newOrderFixture(t)
		p := testProduct(t, 50, 5)
		f.products.On("FindByID", mock.Anything, p.ID).Return(p, nil)

		_, err := f.svc.PlaceCOD(ctx, uuid.New(), lineRequest(p, "XXL", 1))
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		f.products.AssertNotCalled(t, "DecrementStock", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid address never opens a transaction", func(t *testing.T) {
		f := newOrderFixture(t)
		p := testProduct(t, 50, 5)
		req := lineRequest(p, "M", 1)
		req.Address.Street = ""

		_, err := f.svc.PlaceCOD(ctx, uuid.New(), req)
		require.Error(t, err)
		var de *shared.DomainError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, "INVALID_ADDRESS", de.Code)
		assert.Equal(t, 0, f.tx.calls)
	})
}

func TestOrderService_PlaceIdempotency(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate submission returns the existing order", func(t *testing.T) {
		f := newOrderFixture(t)
		userID := uuid.New()
		p := testProduct(t, 50, 5)
		existing := testOrder(t, userID, trade.PaymentMethodCOD, p, 1)

		f.orders.On("FindByIdempotencyKey", mock.Anything, userID, "key-1").Return(existing, nil)

		req := lineRequest(p, "M", 1)
		req.IdempotencyKey = "key-1"
		res, err := f.svc.PlaceCOD(ctx, userID, req)
		require.NoError(t, err)
		assert.True(t, res.Replayed)
		assert.Equal(t, existing.ID, res.Order.ID)
		assert.Equal(t, 0, f.tx.calls)
	})

	t.Run("in-flight key is reported as duplicate", func(t *testing.T) {
		f := newOrderFixture(t)
		userID := uuid.New()
		p := testProduct(t, 50, 5)

		f.orders.On("FindByIdempotencyKey", mock.Anything, userID, "key-2").Return(nil, shared.ErrNotFound)
		f.idem.On("MarkProcessed", mock.Anything, orderClaimKey(userID, "key-2"), 24*time.Hour).Return(false, nil)

		req := lineRequest(p, "M", 1)
		req.IdempotencyKey = "key-2"
		_, err := f.svc.PlaceCOD(ctx, userID, req)
		assert.ErrorIs(t, err, shared.ErrDuplicateRequest)
		assert.Equal(t, 0, f.tx.calls)
	})

	t.Run("failed placement releases the key", func(t *testing.T) {
		f := newOrderFixture(t)
		userID := uuid.New()
		p := testProduct(t, 50, 0)
		key := orderClaimKey(userID, "key-3")

		f.orders.On("FindByIdempotencyKey", mock.Anything, userID, "key-3").Return(nil, shared.ErrNotFound)
		f.idem.On("MarkProcessed", mock.Anything, key, 24*time.Hour).Return(true, nil)
		f.idem.On("Release", mock.Anything, key).Return(nil)
		f.products.On("FindByID", mock.Anything, p.ID).Return(p, nil)
		f.products.On("DecrementStock", mock.Anything, p.ID, 1).Return(catalog.ErrInsufficientStockFor(p.Name, 0))

		req := lineRequest(p, "M", 1)
		req.IdempotencyKey = "key-3"
		_, err := f.svc.PlaceCOD(ctx, userID, req)
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
		f.idem.AssertCalled(t, "Release", mock.Anything, key)
	})

	t.Run("checkout failure frees the key for a retry", func(t *testing.T) {
		f := newOrderFixture(t)
		userID := uuid.New()
		p := testProduct(t, 50, 5)
		key := orderClaimKey(userID, "key-4")
		var saved *trade.Order

		f.orders.On("FindByIdempotencyKey", mock.Anything, userID, "key-4").Return(nil, shared.ErrNotFound)
		f.idem.On("MarkProcessed", mock.Anything, key, 24*time.Hour).Return(true, nil)
		f.idem.On("Release", mock.Anything, key).Return(nil)
		f.products.On("FindByID", mock.Anything, p.ID).Return(p, nil)
		f.products.On("DecrementStock", mock.Anything, p.ID, 1).Return(nil)
		f.products.On("IncrementStock", mock.Anything, p.ID, 1).Return(nil)
		f.orders.On("Save", mock.Anything, mock.AnythingOfType("*trade.Order")).
			Run(func(args mock.Arguments) { saved = args.Get(1).(*trade.Order) }).
			Return(nil)
		f.orders.On("FindByID", mock.Anything, mock.Anything).
			Return(func(uuid.UUID) *trade.Order { return saved }, nil)
		f.orders.On("Update", mock.Anything, mock.AnythingOfType("*trade.Order")).Return(nil)
		f.gateway.On("CreateSession", mock.Anything, mock.Anything).
			Return(nil, errors.New("provider unavailable")).Once()
		f.gateway.On("CreateSession", mock.Anything, mock.Anything).
			Return(&CheckoutSession{ID: "cs_test_2", URL: "https://checkout.stripe.com/c/pay/cs_test_2", Status: SessionStatusOpen}, nil)

		req := lineRequest(p, "M", 1)
		req.IdempotencyKey = "key-4"
		_, err := f.svc.PlaceStripe(ctx, userID, req, "https://shop.example.com")
		require.ErrorIs(t, err, errPaymentUnavailable)
		failed := saved
		assert.Equal(t, trade.OrderStatusCancelled, failed.Status)
		assert.Empty(t, failed.IdempotencyKey)
		f.idem.AssertNumberOfCalls(t, "Release", 1)

		res, err := f.svc.PlaceStripe(ctx, userID, req, "https://shop.example.com")
		require.NoError(t, err)
		assert.False(t, res.Replayed)
		assert.NotEqual(t, failed.ID, res.Order.ID)
		assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_2", res.SessionURL)
		assert.Equal(t, "key-4", saved.IdempotencyKey)
	})

	t.Run("replayed card order needs an open checkout", func(t *testing.T) {
		p := testProduct(t, 50, 5)

		cases := []struct {
			name    string
			prepare func(o *trade.Order, g *MockCheckoutGateway)
			wantURL string
			wantErr error
		}{
			{
				name: "open session is handed back",
				prepare: func(_ *trade.Order, g *MockCheckoutGateway) {
					g.On("GetSession", mock.Anything, "cs_test_1").
						Return(&CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1", Status: SessionStatusOpen}, nil)
				},
				wantURL: "https://checkout.stripe.com/c/pay/cs_test_1",
			},
			{
				name: "expired session",
				prepare: func(_ *trade.Order, g *MockCheckoutGateway) {
					g.On("GetSession", mock.Anything, "cs_test_1").
						Return(&CheckoutSession{ID: "cs_test_1", Status: SessionStatusExpired}, nil)
				},
				wantErr: errCheckoutClosed,
			},
			{
				name: "cancelled order",
				prepare: func(o *trade.Order, _ *MockCheckoutGateway) {
					_, err := o.Cancel(ReasonCheckoutExpired)
					require.NoError(t, err)
				},
				wantErr: errCheckoutClosed,
			},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				f := newOrderFixture(t)
				userID := uuid.New()
				existing := testOrder(t, userID, trade.PaymentMethodStripe, p, 1)
				existing.SetIdempotencyKey("key-5")
				tc.prepare(existing, f.gateway)
				f.orders.On("FindByIdempotencyKey", mock.Anything, userID, "key-5").Return(existing, nil)

				req := lineRequest(p, "M", 1)
				req.IdempotencyKey = "key-5"
				res, err := f.svc.PlaceStripe(ctx, userID, req, "")
				assert.Equal(t, 0, f.tx.calls)
				if tc.wantErr != nil {
					assert.ErrorIs(t, err, tc.wantErr)
					return
				}
				require.NoError(t, err)
				assert.True(t, res.Replayed)
				assert.Equal(t, tc.wantURL, res.SessionURL)
			})
		}
	})
}

func TestOrderService_PlaceStripe(t *testing.T) {
	ctx := context.Background()

	t.Run("opens a checkout session with a delivery fee line", func(t *testing.T) {
		f := newOrderFixture(t)
		userID := uuid.New()
		p := testProduct(t, 50, 5)

		f.products.On("FindByID", mock.Anything, p.ID).Return(p, nil)
		f.products.On("DecrementStock", mock.Anything, p.ID, 1).Return(nil)
		f.orders.On("Save", mock.Anything, mock.AnythingOfType("*trade.Order")).Return(nil)
		f.orders.On("Update", mock.Anything, mock.AnythingOfType("*trade.Order")).Return(nil)
		f.gateway.On("CreateSession", mock.Anything, mock.MatchedBy(func(in CreateCheckoutInput) bool {
			return len(in.Lines) == 2 &&
				in.Lines[0].UnitAmount == 5000 &&
				in.Lines[0].Quantity == 1 &&
				in.Lines[1].Name == "Delivery fee" &&
				in.Lines[1].UnitAmount == 1000 &&
				in.Currency == valueobject.USD &&
				strings.HasPrefix(in.SuccessURL, "https://shop.example.com/verify?success=true&orderId=") &&
				strings.HasPrefix(in.CancelURL, "https://shop.example.com/verify?success=false&orderId=") &&
				in.ExpiresAt.Equal(fixedNow.Add(31*time.Minute))
		})).Return(&CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1", Status: SessionStatusOpen}, nil)

		res, err := f.svc.PlaceStripe(ctx, userID, lineRequest(p, "M", 1), "https://shop.example.com/")
		require.NoError(t, err)
		assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", res.SessionURL)
		assert.Equal(t, "Stripe", res.Order.PaymentMethod)
		assert.False(t, res.Order.Payment)
		f.carts.AssertNotCalled(t, "Clear", mock.Anything, mock.Anything)
	})

	t.Run("session failure cancels the order and restores stock", func(t *testing.T) {
		f := newOrderFixture(t)
		userID := uuid.New()
		p := testProduct(t, 50, 5)
		var saved *trade.Order

		f.products.On("FindByID", mock.Anything, p.ID).Return(p, nil)
		f.products.On("DecrementStock", mock.Anything, p.ID, 2).Return(nil)
		f.products.On("IncrementStock", mock.Anything, p.ID, 2).Return(nil)
		f.orders.On("Save", mock.Anything, mock.AnythingOfType("*trade.Order")).
			Run(func(args mock.Arguments) { saved = args.Get(1).(*trade.Order) }).
			Return(nil)
		f.orders.On("FindByID", mock.Anything, mock.Anything).
			Return(func(uuid.UUID) *trade.Order { return saved }, nil)
		f.orders.On("Update", mock.Anything, mock.AnythingOfType("*trade.Order")).Return(nil)
		f.gateway.On("CreateSession", mock.Anything, mock.Anything).Return(nil, errors.New("provider unavailable"))

		_, err := f.svc.PlaceStripe(ctx, userID, lineRequest(p, "M", 2), "https://shop.example.com")
		require.Error(t, err)
		assert.ErrorIs(t, err, errPaymentUnavailable)

		require.NotNil(t, saved)
		assert.Equal(t, trade.OrderStatusCancelled, saved.Status)
		assert.Equal(t, ReasonCheckoutFailed, saved.CancelReason)
		f.products.AssertCalled(t, "IncrementStock", mock.Anything, p.ID, 2)
		assert.Equal(t, []string{trade.EventTypeOrderPlaced, trade.EventTypeOrderCancelled}, f.events.types())
	})

	t.Run("unavailable without a gateway", func(t *testing.T) {
		f := newOrderFixture(t)
		f.svc.SetCheckoutGateway(nil)
		p := testProduct(t, 50, 5)

		_, err := f.svc.PlaceStripe(ctx, uuid.New(), lineRequest(p, "M", 1), "")
		assert.ErrorIs(t, err, errCardPaymentsDisabled)
		assert.Equal(t, 0, f.tx.calls)
	})
}

func TestOrderService_VerifyStripe(t *testing.T) {
	ctx := context.Background()

	t.Run("paid session marks the order paid and clears the cart", func(t *testing.T) {
		f := newOrderFixture(t)
		userID := uuid.New()
		order := testOrder(t, userID, trade.PaymentMethodStripe, testProduct(t, 50, 5), 1)

		f.orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)
		f.orders.On("Update", mock.Anything, order).Return(nil)
		f.carts.On("Clear", mock.Anything, userID).Return(nil)
		f.gateway.On("GetSession", mock.Anything, "cs_test_1").
			Return(&CheckoutSession{ID: "cs_test_1", Status: SessionStatusComplete, PaymentStatus: PaymentStatusPaid}, nil)

		res, err := f.svc.VerifyStripe(ctx, userID, VerifyPaymentRequest{OrderID: order.ID, Success: "true"})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.True(t, order.Payment)
		assert.NotNil(t, order.PaidAt)
		assert.Equal(t, []string{trade.EventTypeOrderPaid}, f.events.types())
		f.carts.AssertCalled(t, "Clear", mock.Anything, userID)
	})

	t.Run("replayed verify on a paid order is a no-op", func(t *testing.T) {
		f := newOrderFixture(t)
		userID := uuid.New()
		order := testOrder(t, userID, trade.PaymentMethodStripe, testProduct(t, 50, 5), 1)
		_, err := order.MarkPaid("cs_test_1")
		require.NoError(t, err)
		order.ClearDomainEvents()

		f.orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)

		res, err := f.svc.VerifyStripe(ctx, userID, VerifyPaymentRequest{OrderID: order.ID, Success: "true"})
		require.NoError(t, err)
		assert.True(t, res.Success)
		f.gateway.AssertNotCalled(t, "GetSession", mock.Anything, mock.Anything)
		f.orders.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("cancelled checkout restores stock exactly once", func(t *testing.T) {
		f := newOrderFixture(t)
		userID := uuid.New()
		p := testProduct(t, 50, 5)
		order := testOrder(t, userID, trade.PaymentMethodStripe, p, 3)

		f.orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)
		f.orders.On("Update", mock.Anything, order).Return(nil)
		f.products.On("IncrementStock", mock.Anything, p.ID, 3).Return(nil)
		f.gateway.On("ExpireSession", mock.Anything, "cs_test_1").
			Return(&CheckoutSession{ID: "cs_test_1", Status: SessionStatusExpired, PaymentStatus: PaymentStatusUnpaid}, nil)

		req := VerifyPaymentRequest{OrderID: order.ID, Success: "false"}
		res, err := f.svc.VerifyStripe(ctx, userID, req)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.True(t, order.IsCancelled())

		res, err = f.svc.VerifyStripe(ctx, userID, req)
		require.NoError(t, err)
		assert.False(t, res.Success)
		f.products.AssertNumberOfCalls(t, "IncrementStock", 1)
		assert.Equal(t, []string{trade.EventTypeOrderCancelled}, f.events.types())
	})

	t.Run("claimed success on an unpaid session cancels", func(t *testing.T) {
		f := newOrderFixture(t)
		userID := uuid.New()
		p := testProduct(t, 50, 5)
		order := testOrder(t, userID, trade.PaymentMethodStripe, p, 1)

		f.orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)
		f.orders.On("Update", mock.Anything, order).Return(nil)
		f.products.On("IncrementStock", mock.Anything, p.ID, 1).Return(nil)
		f.gateway.On("GetSession", mock.Anything, "cs_test_1").
			Return(&CheckoutSession{ID: "cs_test_1", Status: SessionStatusOpen, PaymentStatus: PaymentStatusUnpaid}, nil)
		f.gateway.On("ExpireSession", mock.Anything, "cs_test_1").
			Return(&CheckoutSession{ID: "cs_test_1", Status: SessionStatusExpired, PaymentStatus: PaymentStatusUnpaid}, nil)

		res, err := f.svc.VerifyStripe(ctx, userID, VerifyPaymentRequest{OrderID: order.ID, Success: "true"})
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.False(t, order.Payment)
		assert.True(t, order.IsCancelled())
	})

	t.Run("payment completed while cancelling is kept", func(t *testing.T) {
		f := newOrderFixture(t)
		userID := uuid.New()
		order := testOrder(t, userID, trade.PaymentMethodStripe, testProduct(t, 50, 5), 1)

		f.orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)
		f.orders.On("Update", mock.Anything, order).Return(nil)
		f.carts.On("Clear", mock.Anything, userID).Return(nil)
		f.gateway.On("ExpireSession", mock.Anything, "cs_test_1").Return(nil, errors.New("session is complete"))
		f.gateway.On("GetSession", mock.Anything, "cs_test_1").
			Return(&CheckoutSession{ID: "cs_test_1", Status: SessionStatusComplete, PaymentStatus: PaymentStatusPaid}, nil)

		res, err := f.svc.VerifyStripe(ctx, userID, VerifyPaymentRequest{OrderID: order.ID, Success: "false"})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.True(t, order.Payment)
		assert.False(t, order.IsCancelled())
	})

	t.Run("another user's order is not found", func(t *testing.T) {
		f := newOrderFixture(t)
		order := testOrder(t, uuid.New(), trade.PaymentMethodStripe, testProduct(t, 50, 5), 1)
		f.orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)

		_, err := f.svc.VerifyStripe(ctx, uuid.New(), VerifyPaymentRequest{OrderID: order.ID, Success: "true"})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestOrderService_HandleWebhook(t *testing.T) {
	ctx := context.Background()
	payload := []byte(`{"id":"evt_1"}`)

	paidEvent := func(eventType string) *WebhookEvent {
		return &WebhookEvent{
			ID:   "evt_1",
			Type: eventType,
			Session: &CheckoutSession{
				ID:            "cs_test_1",
				Status:        SessionStatusComplete,
				PaymentStatus: PaymentStatusPaid,
			},
		}
	}

	t.Run("completed session marks the order paid", func(t *testing.T) {
		f := newOrderFixture(t)
		userID := uuid.New()
		order := testOrder(t, userID, trade.PaymentMethodStripe, testProduct(t, 50, 5), 1)

		f.gateway.On("ParseWebhook", payload, "sig").Return(paidEvent(WebhookCheckoutCompleted), nil)
		f.idem.On("MarkProcessed", mock.Anything, "webhook:evt_1", 24*time.Hour).Return(true, nil)
		f.orders.On("FindByCheckoutSession", mock.Anything, "cs_test_1").Return(order, nil)
		f.orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)
		f.orders.On("Update", mock.Anything, order).Return(nil)
		f.carts.On("Clear", mock.Anything, userID).Return(nil)

		require.NoError(t, f.svc.HandleWebhook(ctx, payload, "sig"))
		assert.True(t, order.Payment)
	})

	t.Run("redelivered event is acknowledged without side effects", func(t *testing.T) {
		f := newOrderFixture(t)
		f.gateway.On("ParseWebhook", payload, "sig").Return(paidEvent(WebhookCheckoutCompleted), nil)
		f.idem.On("MarkProcessed", mock.Anything, "webhook:evt_1", 24*time.Hour).Return(false, nil)

		require.NoError(t, f.svc.HandleWebhook(ctx, payload, "sig"))
		f.orders.AssertNotCalled(t, "FindByCheckoutSession", mock.Anything, mock.Anything)
	})

	t.Run("payment applied once even without a claim store", func(t *testing.T) {
		f := newOrderFixture(t)
		f.svc.SetIdempotencyStore(nil)
		userID := uuid.New()
		order := testOrder(t, userID, trade.PaymentMethodStripe, testProduct(t, 50, 5), 1)

		f.gateway.On("ParseWebhook", payload, "sig").Return(paidEvent(WebhookCheckoutCompleted), nil)
		f.orders.On("FindByCheckoutSession", mock.Anything, "cs_test_1").Return(order, nil)
		f.orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)
		f.orders.On("Update", mock.Anything, order).Return(nil)
		f.carts.On("Clear", mock.Anything, userID).Return(nil)

		require.NoError(t, f.svc.HandleWebhook(ctx, payload, "sig"))
		require.NoError(t, f.svc.HandleWebhook(ctx, payload, "sig"))
		f.orders.AssertNumberOfCalls(t, "Update", 1)
		assert.Equal(t, []string{trade.EventTypeOrderPaid}, f.events.types())
	})

	t.Run("expired session cancels and restores stock", func(t *testing.T) {
		f := newOrderFixture(t)
		p := testProduct(t, 50, 5)
		order := testOrder(t, uuid.New(), trade.PaymentMethodStripe, p, 2)
		event := &WebhookEvent{
			ID:      "evt_1",
			Type:    WebhookCheckoutExpired,
			Session: &CheckoutSession{ID: "cs_test_1", Status: SessionStatusExpired, PaymentStatus: PaymentStatusUnpaid},
		}

		f.gateway.On("ParseWebhook", payload, "sig").Return(event, nil)
		f.idem.On("MarkProcessed", mock.Anything, "webhook:evt_1", 24*time.Hour).Return(true, nil)
		f.orders.On("FindByCheckoutSession", mock.Anything, "cs_test_1").Return(order, nil)
		f.orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)
		f.orders.On("Update", mock.Anything, order).Return(nil)
		f.products.On("IncrementStock", mock.Anything, p.ID, 2).Return(nil)

		require.NoError(t, f.svc.HandleWebhook(ctx, payload, "sig"))
		assert.True(t, order.IsCancelled())
		assert.Equal(t, ReasonCheckoutExpired, order.CancelReason)
		f.gateway.AssertNotCalled(t, "ExpireSession", mock.Anything, mock.Anything)
	})

	t.Run("processing failure releases the claim for redelivery", func(t *testing.T) {
		f := newOrderFixture(t)
		f.gateway.On("ParseWebhook", payload, "sig").Return(paidEvent(WebhookCheckoutCompleted), nil)
		f.idem.On("MarkProcessed", mock.Anything, "webhook:evt_1", 24*time.Hour).Return(true, nil)
		f.idem.On("Release", mock.Anything, "webhook:evt_1").Return(nil)
		f.orders.On("FindByCheckoutSession", mock.Anything, "cs_test_1").Return(nil, errors.New("connection reset"))

		err := f.svc.HandleWebhook(ctx, payload, "sig")
		require.Error(t, err)
		f.idem.AssertCalled(t, "Release", mock.Anything, "webhook:evt_1")
	})

	t.Run("bad signature is rejected", func(t *testing.T) {
		f := newOrderFixture(t)
		f.gateway.On("ParseWebhook", payload, "forged").Return(nil, errors.New("signature mismatch"))

		err := f.svc.HandleWebhook(ctx, payload, "forged")
		assert.ErrorIs(t, err, errInvalidSignature)
		f.idem.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestOrderService_ExpireStaleCheckouts(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t)
	p := testProduct(t, 50, 5)

	abandoned := testOrder(t, uuid.New(), trade.PaymentMethodStripe, p, 1)
	paidLate := testOrder(t, uuid.New(), trade.PaymentMethodStripe, p, 1)
	paidLate.CheckoutSessionID = "cs_test_2"

	f.orders.On("FindStaleUnpaid", mock.Anything, fixedNow.Add(-30*time.Minute), 100).
		Return([]trade.Order{*abandoned, *paidLate}, nil)
	f.orders.On("FindByID", mock.Anything, abandoned.ID).Return(abandoned, nil)
	f.orders.On("FindByID", mock.Anything, paidLate.ID).Return(paidLate, nil)
	f.orders.On("Update", mock.Anything, mock.AnythingOfType("*trade.Order")).Return(nil)
	f.products.On("IncrementStock", mock.Anything, p.ID, 1).Return(nil)
	f.carts.On("Clear", mock.Anything, paidLate.UserID).Return(nil)
	f.gateway.On("ExpireSession", mock.Anything, "cs_test_1").
		Return(&CheckoutSession{ID: "cs_test_1", Status: SessionStatusExpired, PaymentStatus: PaymentStatusUnpaid}, nil)
	f.gateway.On("ExpireSession", mock.Anything, "cs_test_2").Return(nil, errors.New("session is complete"))
	f.gateway.On("GetSession", mock.Anything, "cs_test_2").
		Return(&CheckoutSession{ID: "cs_test_2", Status: SessionStatusComplete, PaymentStatus: PaymentStatusPaid}, nil)

	cancelled, err := f.svc.ExpireStaleCheckouts(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, cancelled)
	assert.True(t, abandoned.IsCancelled())
	assert.True(t, paidLate.Payment)
	f.products.AssertNumberOfCalls(t, "IncrementStock", 1)
}

func TestOrderService_UpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("moves a cash order forward", func(t *testing.T) {
		f := newOrderFixture(t)
		order := testOrder(t, uuid.New(), trade.PaymentMethodCOD, testProduct(t, 50, 5), 1)
		f.orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)
		f.orders.On("Update", mock.Anything, order).Return(nil)

		resp, err := f.svc.UpdateStatus(ctx, UpdateStatusRequest{OrderID: order.ID, Status: "Packing"})
		require.NoError(t, err)
		assert.Equal(t, "Packing", resp.Status)
		assert.Equal(t, []string{trade.EventTypeOrderStatusChanged}, f.events.types())
	})

	t.Run("unpaid card order cannot ship", func(t *testing.T) {
		f := newOrderFixture(t)
		order := testOrder(t, uuid.New(), trade.PaymentMethodStripe, testProduct(t, 50, 5), 1)
		f.orders.On("FindByID", mock.Anything, order.ID).Return(order, nil)

		_, err := f.svc.UpdateStatus(ctx, UpdateStatusRequest{OrderID: order.ID, Status: "Shipped"})
		assert.ErrorIs(t, err, shared.ErrInvalidState)
		f.orders.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("unknown status is rejected", func(t *testing.T) {
		f := newOrderFixture(t)
		_, err := f.svc.UpdateStatus(ctx, UpdateStatusRequest{OrderID: uuid.New(), Status: "Lost"})
		var de *shared.DomainError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, "INVALID_STATUS", de.Code)
	})
}

func TestOrderService_ListAll(t *testing.T) {
	ctx := context.Background()

	t.Run("translates filters", func(t *testing.T) {
		f := newOrderFixture(t)
		paid := true
		order := testOrder(t, uuid.New(), trade.PaymentMethodCOD, testProduct(t, 50, 5), 1)
		match := mock.MatchedBy(func(fl shared.Filter) bool {
			return fl.Filters["status"] == "Packing" && fl.Filters["payment"] == true && fl.Search == "ada"
		})
		f.orders.On("FindAll", mock.Anything, match).Return([]trade.Order{*order}, nil)
		f.orders.On("Count", mock.Anything, match).Return(int64(1), nil)

		items, total, err := f.svc.ListAll(ctx, OrderListFilter{Status: "Packing", Payment: &paid, Search: " ada "})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, items, 1)
		assert.Equal(t, order.ID, items[0].ID)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		f := newOrderFixture(t)
		_, _, err := f.svc.ListAll(ctx, OrderListFilter{Status: "Lost"})
		require.Error(t, err)
	})
}
