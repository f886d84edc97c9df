package trade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mystique/backend/internal/domain/cart"
	"github.com/mystique/backend/internal/domain/catalog"
	"github.com/mystique/backend/internal/domain/shared"
	"github.com/mystique/backend/internal/domain/shared/valueobject"
	"github.com/mystique/backend/internal/domain/trade"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Cancellation reasons recorded on orders
const (
	ReasonCheckoutFailed   = "checkout session could not be created"
	ReasonPaymentCancelled = "payment cancelled by customer"
	ReasonCheckoutExpired  = "checkout session expired"
	ReasonPaymentFailed    = "payment failed"
)

// The provider measures the minimum session lifetime on receipt, so the
// requested expiry carries a small margin on top of the configured TTL.
const checkoutExpiryGrace = time.Minute

var (
	errOrderNotFound        = shared.ErrNotFound.WithMessage("Order not found")
	errEmptyOrder           = shared.NewDomainError("EMPTY_ORDER", "Your cart is empty")
	errCardPaymentsDisabled = shared.NewDomainError("PAYMENT_UNAVAILABLE", "Card payments are not available")
	errPaymentUnavailable   = shared.NewDomainError("PAYMENT_UNAVAILABLE", "Payment provider is unavailable, please try again")
	errCheckoutClosed       = shared.NewDomainError("CHECKOUT_CLOSED", "This checkout has ended, please place the order again")
	errInvalidSignature     = shared.NewDomainError("INVALID_SIGNATURE", "Webhook signature verification failed")
	errPaymentPending       = shared.NewDomainError("PAYMENT_PENDING", "Payment is still processing")
)

// OrderServiceConfig holds placement settings
type OrderServiceConfig struct {
	Currency       valueobject.Currency
	DeliveryFee    decimal.Decimal
	CheckoutTTL    time.Duration
	IdempotencyTTL time.Duration
	ExpiryBatch    int
	// FrontendURL builds checkout return URLs when the request carries no origin
	FrontendURL string
}

// DefaultOrderServiceConfig returns the store defaults
func DefaultOrderServiceConfig() OrderServiceConfig {
	return OrderServiceConfig{
		Currency:       trade.DefaultCurrency,
		DeliveryFee:    trade.DefaultDeliveryFee,
		CheckoutTTL:    30 * time.Minute,
		IdempotencyTTL: 24 * time.Hour,
		ExpiryBatch:    100,
	}
}

// OrderService places orders, settles card payments and serves order queries
type OrderService struct {
	txScope        TransactionScope
	orderRepo      trade.OrderRepository
	cartRepo       cart.Repository
	gateway        CheckoutGateway
	idempotency    shared.IdempotencyStore
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
	config         OrderServiceConfig
	now            func() time.Time
}

// NewOrderService creates a new OrderService
func NewOrderService(
	txScope TransactionScope,
	orderRepo trade.OrderRepository,
	cartRepo cart.Repository,
	logger *zap.Logger,
) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		txScope:   txScope,
		orderRepo: orderRepo,
		cartRepo:  cartRepo,
		logger:    logger,
		config:    DefaultOrderServiceConfig(),
		now:       time.Now,
	}
}

// SetConfig sets the service configuration
func (s *OrderService) SetConfig(config OrderServiceConfig) {
	if config.Currency == "" {
		config.Currency = trade.DefaultCurrency
	}
	if config.ExpiryBatch <= 0 {
		config.ExpiryBatch = 100
	}
	s.config = config
}

// SetCheckoutGateway enables card payments
func (s *OrderService) SetCheckoutGateway(gateway CheckoutGateway) {
	s.gateway = gateway
}

// SetIdempotencyStore sets the store used to claim submission keys and webhook event IDs
func (s *OrderService) SetIdempotencyStore(store shared.IdempotencyStore) {
	s.idempotency = store
}

// SetEventPublisher sets the event publisher for cross-context integration
func (s *OrderService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// PlaceCOD places a cash on delivery order and clears the cart
func (s *OrderService) PlaceCOD(ctx context.Context, userID uuid.UUID, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	return s.place(ctx, userID, trade.PaymentMethodCOD, req, "")
}

// PlaceStripe reserves stock for a card order and opens a hosted checkout session.
// origin is the storefront base URL the customer returns to
func (s *OrderService) PlaceStripe(ctx context.Context, userID uuid.UUID, req PlaceOrderRequest, origin string) (*PlaceOrderResult, error) {
	if s.gateway == nil {
		return nil, errCardPaymentsDisabled
	}
	return s.place(ctx, userID, trade.PaymentMethodStripe, req, origin)
}

func (s *OrderService) place(
	ctx context.Context,
	userID uuid.UUID,
	method trade.PaymentMethod,
	req PlaceOrderRequest,
	origin string,
) (*PlaceOrderResult, error) {
	if err := req.Address.Normalize().Validate(); err != nil {
		return nil, shared.NewDomainError("INVALID_ADDRESS", err.Error())
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	claimKey := orderClaimKey(userID, key)
	if key != "" {
		if res, err := s.replay(ctx, userID, key); res != nil || err != nil {
			return res, err
		}
		claimed, err := s.claim(ctx, claimKey)
		if err != nil {
			return nil, err
		}
		if !claimed {
			// Another request holds the key; it may have committed meanwhile
			if res, err := s.replay(ctx, userID, key); res != nil || err != nil {
				return res, err
			}
			return nil, shared.ErrDuplicateRequest
		}
	}

	order, err := s.reserve(ctx, userID, method, req, key)
	if err != nil {
		if key != "" && errors.Is(err, shared.ErrDuplicateRequest) {
			if res, rerr := s.replay(ctx, userID, key); res != nil {
				return res, nil
			} else if rerr != nil {
				return nil, rerr
			}
		}
		if key != "" {
			s.release(ctx, claimKey)
		}
		return nil, err
	}
	s.publishEvents(ctx, order)

	s.logger.Info("order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("payment_method", string(method)),
		zap.String("amount", order.Amount.StringFixed(2)),
		zap.Int("items", len(order.Items)),
	)

	if method == trade.PaymentMethodCOD {
		return &PlaceOrderResult{Order: ToOrderResponse(order)}, nil
	}

	url, err := s.openCheckout(ctx, order, origin)
	if err != nil {
		if _, cerr := s.cancelAndRestock(ctx, order.ID, ReasonCheckoutFailed); cerr != nil {
			s.logger.Error("failed to release stock after checkout failure",
				zap.String("order_id", order.ID.String()),
				zap.Error(cerr),
			)
		}
		return nil, err
	}
	return &PlaceOrderResult{Order: ToOrderResponse(order), SessionURL: url}, nil
}

// reserve decrements stock for every line and inserts the order in one transaction
func (s *OrderService) reserve(
	ctx context.Context,
	userID uuid.UUID,
	method trade.PaymentMethod,
	req PlaceOrderRequest,
	key string,
) (*trade.Order, error) {
	var placed *trade.Order
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		lines, err := resolveLines(ctx, repos.Carts(), userID, req.Items)
		if err != nil {
			return err
		}

		products := repos.Products()
		items := make([]trade.OrderItem, 0, len(lines))
		for _, line := range lines {
			p, err := products.FindByID(ctx, line.ProductID)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return catalog.ErrProductNotFoundForID(line.ProductID)
				}
				return err
			}
			if !p.HasSize(line.Size) {
				return shared.ErrInvalidInput.WithMessage(
					fmt.Sprintf("Size %s is not available for %s", line.Size, p.Name))
			}
			if err := products.DecrementStock(ctx, p.ID, line.Quantity); err != nil {
				return err
			}
			items = append(items, trade.OrderItem{
				ProductID: p.ID,
				Name:      p.Name,
				Price:     p.Price,
				Quantity:  line.Quantity,
				Size:      line.Size,
				Image:     firstImage(p.Images),
			})
		}

		order, err := trade.NewOrder(userID, method, items, req.Address, s.config.DeliveryFee, s.config.Currency)
		if err != nil {
			return err
		}
		order.SetIdempotencyKey(key)
		if err := repos.Orders().Save(ctx, order); err != nil {
			return err
		}
		if method == trade.PaymentMethodCOD {
			if err := repos.Carts().Clear(ctx, userID); err != nil {
				return err
			}
		}
		placed = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// resolveLines merges duplicate lines and sorts them by product id, so
// concurrent placements lock product rows in the same order.
// An empty request orders the stored cart
func resolveLines(ctx context.Context, carts cart.Repository, userID uuid.UUID, items []OrderLineRequest) ([]cart.Line, error) {
	if len(items) == 0 {
		c, err := carts.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		lines := c.Lines()
		if len(lines) == 0 {
			return nil, errEmptyOrder
		}
		return lines, nil
	}

	merged := cart.New()
	for _, it := range items {
		if it.Quantity < 1 {
			return nil, shared.NewDomainError("INVALID_QUANTITY", "Item quantity must be at least 1")
		}
		qty := merged.Quantity(it.ProductID, strings.TrimSpace(it.Size)) + it.Quantity
		if err := merged.Set(it.ProductID, it.Size, qty); err != nil {
			return nil, err
		}
	}
	return merged.Lines(), nil
}

func (s *OrderService) openCheckout(ctx context.Context, order *trade.Order, origin string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(origin), "/")
	if base == "" {
		base = strings.TrimRight(s.config.FrontendURL, "/")
	}

	lines := make([]CheckoutLine, 0, len(order.Items)+1)
	for _, it := range order.Items {
		lines = append(lines, CheckoutLine{
			Name:       it.Name,
			UnitAmount: valueobject.MustMoney(it.Price, order.Currency).MinorUnits(),
			Quantity:   int64(it.Quantity),
			Image:      it.Image,
		})
	}
	if order.DeliveryFee.IsPositive() {
		lines = append(lines, CheckoutLine{
			Name:       "Delivery fee",
			UnitAmount: valueobject.MustMoney(order.DeliveryFee, order.Currency).MinorUnits(),
			Quantity:   1,
		})
	}

	sess, err := s.gateway.CreateSession(ctx, CreateCheckoutInput{
		OrderID:       order.ID,
		Currency:      order.Currency,
		Lines:         lines,
		CustomerEmail: order.Address.Email,
		SuccessURL:    fmt.Sprintf("%s/verify?success=true&orderId=%s", base, order.ID),
		CancelURL:     fmt.Sprintf("%s/verify?success=false&orderId=%s", base, order.ID),
		ExpiresAt:     s.now().Add(s.config.CheckoutTTL + checkoutExpiryGrace),
	})
	if err != nil {
		s.logger.Error("failed to create checkout session",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return "", errPaymentUnavailable
	}

	if err := order.AttachCheckoutSession(sess.ID); err != nil {
		return "", err
	}
	if err := s.orderRepo.Update(ctx, order); err != nil {
		// An unattached session could be paid without the order ever learning of it
		if _, xerr := s.gateway.ExpireSession(ctx, sess.ID); xerr != nil {
			s.logger.Error("failed to expire orphaned checkout session",
				zap.String("session_id", sess.ID),
				zap.Error(xerr),
			)
		}
		return "", fmt.Errorf("attach checkout session: %w", err)
	}
	return sess.URL, nil
}

// replay returns the order an earlier submission with key created, or nil when there is none
func (s *OrderService) replay(ctx context.Context, userID uuid.UUID, key string) (*PlaceOrderResult, error) {
	order, err := s.orderRepo.FindByIdempotencyKey(ctx, userID, key)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	result := &PlaceOrderResult{Order: ToOrderResponse(order), Replayed: true}
	if order.PaymentMethod != trade.PaymentMethodStripe || order.Payment {
		return result, nil
	}
	// an unpaid card order is only worth replaying while its checkout can still be paid
	if !order.AwaitingPayment() || order.CheckoutSessionID == "" || s.gateway == nil {
		return nil, errCheckoutClosed
	}
	sess, err := s.gateway.GetSession(ctx, order.CheckoutSessionID)
	if err != nil {
		s.logger.Warn("failed to load checkout session for replayed order",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return nil, errPaymentUnavailable
	}
	if sess.Status != SessionStatusOpen {
		return nil, errCheckoutClosed
	}
	result.SessionURL = sess.URL
	return result, nil
}

// VerifyStripe settles a card order when the customer returns from checkout.
// Only a session the provider reports as paid marks the order paid
func (s *OrderService) VerifyStripe(ctx context.Context, userID uuid.UUID, req VerifyPaymentRequest) (*VerifyPaymentResult, error) {
	order, err := s.orderRepo.FindByID(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, errOrderNotFound
		}
		return nil, err
	}
	if !order.BelongsTo(userID) {
		return nil, errOrderNotFound
	}
	if order.PaymentMethod != trade.PaymentMethodStripe {
		return nil, shared.ErrInvalidState.WithMessage("Order was not placed with card payment")
	}
	if order.Payment {
		return &VerifyPaymentResult{Success: true, Message: "Payment confirmed"}, nil
	}
	if order.IsCancelled() {
		return &VerifyPaymentResult{Success: false, Message: "Order was cancelled"}, nil
	}
	if s.gateway == nil {
		return nil, errCardPaymentsDisabled
	}

	if req.Success == "true" && order.CheckoutSessionID != "" {
		sess, err := s.gateway.GetSession(ctx, order.CheckoutSessionID)
		if err != nil {
			s.logger.Error("failed to load checkout session",
				zap.String("order_id", order.ID.String()),
				zap.Error(err),
			)
			return nil, errPaymentUnavailable
		}
		if sess.IsPaid() {
			if _, err := s.markPaid(ctx, order.ID, sess.ID); err != nil {
				return nil, err
			}
			return &VerifyPaymentResult{Success: true, Message: "Payment confirmed"}, nil
		}
		if sess.Status == SessionStatusComplete {
			return &VerifyPaymentResult{Success: false, Pending: true, Message: errPaymentPending.Message}, nil
		}
	}

	paid, err := s.abandonCheckout(ctx, order, ReasonPaymentCancelled)
	if err != nil {
		if errors.Is(err, errPaymentPending) {
			return &VerifyPaymentResult{Success: false, Pending: true, Message: errPaymentPending.Message}, nil
		}
		return nil, err
	}
	if paid {
		return &VerifyPaymentResult{Success: true, Message: "Payment confirmed"}, nil
	}
	return &VerifyPaymentResult{Success: false, Message: "Payment was not completed, order cancelled"}, nil
}

// HandleWebhook applies a signed provider notification.
// Event IDs are claimed first so redelivered events are acknowledged without side effects
func (s *OrderService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.gateway == nil {
		return errCardPaymentsDisabled
	}
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		s.logger.Warn("rejected webhook", zap.Error(err))
		return errInvalidSignature
	}

	claimKey := "webhook:" + event.ID
	claimed, err := s.claim(ctx, claimKey)
	if err != nil {
		return err
	}
	if !claimed {
		s.logger.Info("webhook event already processed",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
		)
		return nil
	}

	if err := s.applyWebhook(ctx, event); err != nil {
		s.release(ctx, claimKey)
		return err
	}
	return nil
}

func (s *OrderService) applyWebhook(ctx context.Context, event *WebhookEvent) error {
	switch event.Type {
	case WebhookCheckoutCompleted, WebhookCheckoutAsyncSucceeded:
		if !event.Session.IsPaid() {
			// Delayed payment methods complete unpaid; a later event settles them
			return nil
		}
		order, err := s.orderForSession(ctx, event.Session)
		if err != nil || order == nil {
			return err
		}
		_, err = s.markPaid(ctx, order.ID, event.Session.ID)
		if errors.Is(err, shared.ErrInvalidState) {
			s.logger.Error("payment captured for an order that can no longer be paid, refund required",
				zap.String("order_id", order.ID.String()),
				zap.String("session_id", event.Session.ID),
				zap.Error(err),
			)
			return nil
		}
		return err

	case WebhookCheckoutExpired, WebhookCheckoutAsyncFailed:
		order, err := s.orderForSession(ctx, event.Session)
		if err != nil || order == nil {
			return err
		}
		reason := ReasonCheckoutExpired
		if event.Type == WebhookCheckoutAsyncFailed {
			reason = ReasonPaymentFailed
		}
		_, err = s.cancelAndRestock(ctx, order.ID, reason)
		if errors.Is(err, shared.ErrInvalidState) {
			return nil
		}
		return err
	}

	s.logger.Debug("ignoring webhook event",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
	)
	return nil
}

// orderForSession finds the order behind a session. Unknown sessions return nil
func (s *OrderService) orderForSession(ctx context.Context, sess *CheckoutSession) (*trade.Order, error) {
	if sess == nil {
		return nil, nil
	}
	order, err := s.orderRepo.FindByCheckoutSession(ctx, sess.ID)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if id, perr := uuid.Parse(sess.OrderID); perr == nil {
		order, err = s.orderRepo.FindByID(ctx, id)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
	}
	s.logger.Warn("webhook references an unknown checkout session",
		zap.String("session_id", sess.ID),
		zap.String("client_reference", sess.OrderID),
	)
	return nil, nil
}

// ExpireStaleCheckouts cancels card orders left unpaid for longer than olderThan and
// restores their stock. It returns the number of orders cancelled
func (s *OrderService) ExpireStaleCheckouts(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		olderThan = s.config.CheckoutTTL
	}
	before := s.now().Add(-olderThan)
	orders, err := s.orderRepo.FindStaleUnpaid(ctx, before, s.config.ExpiryBatch)
	if err != nil {
		return 0, fmt.Errorf("find stale checkouts: %w", err)
	}

	var errs []error
	cancelled := 0
	for i := range orders {
		order := &orders[i]
		paid, err := s.abandonCheckout(ctx, order, ReasonCheckoutExpired)
		switch {
		case errors.Is(err, errPaymentPending):
			s.logger.Info("skipping checkout with pending payment", zap.String("order_id", order.ID.String()))
		case err != nil:
			errs = append(errs, fmt.Errorf("order %s: %w", order.ID, err))
		case !paid:
			cancelled++
		}
	}
	return cancelled, errors.Join(errs...)
}

// abandonCheckout closes the order's session and cancels the order. When the
// provider reports the session paid meanwhile, the order is marked paid instead
func (s *OrderService) abandonCheckout(ctx context.Context, order *trade.Order, reason string) (bool, error) {
	paid, err := s.closeCheckout(ctx, order)
	if err != nil {
		return false, err
	}
	if paid {
		if _, err := s.markPaid(ctx, order.ID, order.CheckoutSessionID); err != nil {
			return false, err
		}
		return true, nil
	}
	if _, err := s.cancelAndRestock(ctx, order.ID, reason); err != nil {
		return false, err
	}
	return false, nil
}

// closeCheckout expires the hosted session so it can no longer be paid.
// It reports whether the session turned out to be paid already
func (s *OrderService) closeCheckout(ctx context.Context, order *trade.Order) (bool, error) {
	if order.CheckoutSessionID == "" || s.gateway == nil {
		return false, nil
	}
	sess, err := s.gateway.ExpireSession(ctx, order.CheckoutSessionID)
	if err == nil {
		return sess.IsPaid(), nil
	}

	// Expiring fails once a session is complete or already expired
	current, gerr := s.gateway.GetSession(ctx, order.CheckoutSessionID)
	if gerr != nil {
		return false, fmt.Errorf("expire checkout session: %w", err)
	}
	switch {
	case current.IsPaid():
		return true, nil
	case current.Status == SessionStatusExpired:
		return false, nil
	case current.Status == SessionStatusComplete:
		return false, errPaymentPending
	}
	return false, fmt.Errorf("expire checkout session: %w", err)
}

// cancelAndRestock cancels an unpaid order and returns its items to stock in one
// transaction. Stock is restored only by the call that performs the cancellation.
// The order gives up its idempotency key so a retry with that key places afresh
func (s *OrderService) cancelAndRestock(ctx context.Context, orderID uuid.UUID, reason string) (*trade.Order, error) {
	var cancelled *trade.Order
	var releasedKey string
	err := retryOnConflict(func() error {
		cancelled, releasedKey = nil, ""
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			order, err := repos.Orders().FindByID(ctx, orderID)
			if err != nil {
				return err
			}
			changed, err := order.Cancel(reason)
			if err != nil || !changed {
				return err
			}
			releasedKey = order.ReleaseIdempotencyKey()
			if err := repos.Orders().Update(ctx, order); err != nil {
				return err
			}
			for _, it := range order.Items {
				err := repos.Products().IncrementStock(ctx, it.ProductID, it.Quantity)
				if errors.Is(err, shared.ErrNotFound) {
					// product removed from the catalog since the order was placed
					continue
				}
				if err != nil {
					return err
				}
			}
			cancelled = order
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if cancelled != nil {
		if releasedKey != "" {
			s.release(ctx, orderClaimKey(cancelled.UserID, releasedKey))
		}
		s.logger.Info("order cancelled",
			zap.String("order_id", orderID.String()),
			zap.String("reason", reason),
		)
		s.publishEvents(ctx, cancelled)
	}
	return cancelled, nil
}

// markPaid records the payment and clears the customer's cart. Already paid orders are left alone
func (s *OrderService) markPaid(ctx context.Context, orderID uuid.UUID, sessionID string) (*trade.Order, error) {
	var paid *trade.Order
	err := retryOnConflict(func() error {
		order, err := s.orderRepo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		changed, err := order.MarkPaid(sessionID)
		if err != nil {
			return err
		}
		if !changed {
			paid = order
			return nil
		}
		if err := s.orderRepo.Update(ctx, order); err != nil {
			return err
		}
		paid = order
		if err := s.cartRepo.Clear(ctx, order.UserID); err != nil {
			s.logger.Warn("failed to clear cart after payment",
				zap.String("user_id", order.UserID.String()),
				zap.Error(err),
			)
		}
		s.logger.Info("order paid",
			zap.String("order_id", order.ID.String()),
			zap.String("session_id", sessionID),
		)
		s.publishEvents(ctx, order)
		return nil
	})
	return paid, err
}

// ListAll lists every order for the admin panel
func (s *OrderService) ListAll(ctx context.Context, filter OrderListFilter) ([]OrderResponse, int64, error) {
	domainFilter, err := toDomainFilter(filter)
	if err != nil {
		return nil, 0, err
	}
	orders, err := s.orderRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.orderRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToOrderResponses(orders), total, nil
}

// ListByUser lists a customer's orders, newest first
func (s *OrderService) ListByUser(ctx context.Context, userID uuid.UUID) ([]OrderResponse, error) {
	orders, err := s.orderRepo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ToOrderResponses(orders), nil
}

// UpdateStatus moves an order to a fulfilment status
func (s *OrderService) UpdateStatus(ctx context.Context, req UpdateStatusRequest) (*OrderResponse, error) {
	status := trade.OrderStatus(strings.TrimSpace(req.Status))
	if !status.IsFulfilment() {
		return nil, shared.NewDomainError("INVALID_STATUS", "Invalid order status")
	}

	var updated *trade.Order
	err := retryOnConflict(func() error {
		order, err := s.orderRepo.FindByID(ctx, req.OrderID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return errOrderNotFound
			}
			return err
		}
		if err := order.UpdateStatus(status); err != nil {
			return err
		}
		if len(order.GetDomainEvents()) > 0 {
			if err := s.orderRepo.Update(ctx, order); err != nil {
				return err
			}
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishEvents(ctx, updated)
	resp := ToOrderResponse(updated)
	return &resp, nil
}

func toDomainFilter(f OrderListFilter) (shared.Filter, error) {
	filter := shared.DefaultFilter()
	if f.Page > 0 {
		filter.Page = f.Page
	}
	if f.PageSize > 0 {
		filter.PageSize = f.PageSize
	}
	if f.OrderBy != "" {
		filter.OrderBy = f.OrderBy
	}
	if f.OrderDir != "" {
		filter.OrderDir = f.OrderDir
	}
	filter.Search = strings.TrimSpace(f.Search)
	filter = filter.WithDateRange(f.From, f.To)

	if f.Status != "" {
		status := trade.OrderStatus(f.Status)
		if !status.IsValid() {
			return filter, shared.NewDomainError("INVALID_STATUS", "Invalid order status")
		}
		filter.Filters["status"] = string(status)
	}
	if f.PaymentMethod != "" {
		method := trade.PaymentMethod(f.PaymentMethod)
		if !method.IsValid() {
			return filter, shared.NewDomainError("INVALID_PAYMENT_METHOD", "Unsupported payment method")
		}
		filter.Filters["payment_method"] = string(method)
	}
	if f.Payment != nil {
		filter.Filters["payment"] = *f.Payment
	}
	return filter, nil
}

func (s *OrderService) claim(ctx context.Context, key string) (bool, error) {
	if s.idempotency == nil {
		return true, nil
	}
	claimed, err := s.idempotency.MarkProcessed(ctx, key, s.config.IdempotencyTTL)
	if err != nil {
		return false, fmt.Errorf("claim idempotency key: %w", err)
	}
	return claimed, nil
}

func (s *OrderService) release(ctx context.Context, key string) {
	if s.idempotency == nil {
		return
	}
	if err := s.idempotency.Release(ctx, key); err != nil {
		s.logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(err))
	}
}

func (s *OrderService) publishEvents(ctx context.Context, order *trade.Order) {
	if s.eventPublisher != nil {
		for _, event := range order.GetDomainEvents() {
			if err := s.eventPublisher.Publish(ctx, event); err != nil {
				s.logger.Warn("failed to publish order event",
					zap.String("order_id", order.ID.String()),
					zap.String("event_type", event.EventType()),
					zap.Error(err),
				)
			}
		}
	}
	order.ClearDomainEvents()
}

func orderClaimKey(userID uuid.UUID, key string) string {
	return fmt.Sprintf("order:%s:%s", userID, key)
}

// retryOnConflict runs fn a second time when it lost an optimistic lock race
func retryOnConflict(fn func() error) error {
	err := fn()
	if errors.Is(err, shared.ErrConcurrencyConflict) {
		err = fn()
	}
	return err
}

func firstImage(images []string) string {
	if len(images) == 0 {
		return ""
	}
	return images[0]
}
