package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	apptrade "github.com/mystique/backend/internal/application/trade"
	"github.com/mystique/backend/internal/infrastructure/config"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

const metadataOrderID = "order_id"

// StripeCheckoutGateway creates and inspects Stripe hosted checkout sessions
type StripeCheckoutGateway struct {
	sessions      session.Client
	webhookSecret string
	logger        *zap.Logger
}

// NewStripeCheckoutGateway creates a gateway using the default Stripe API backend
func NewStripeCheckoutGateway(cfg config.StripeConfig, logger *zap.Logger) (*StripeCheckoutGateway, error) {
	return newStripeCheckoutGateway(cfg, stripe.GetBackend(stripe.APIBackend), logger)
}

func newStripeCheckoutGateway(cfg config.StripeConfig, backend stripe.Backend, logger *zap.Logger) (*StripeCheckoutGateway, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe: secret key is required")
	}
	if !strings.HasPrefix(cfg.SecretKey, "sk_") && !strings.HasPrefix(cfg.SecretKey, "rk_") {
		return nil, errors.New("stripe: secret key must start with sk_ or rk_")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StripeCheckoutGateway{
		sessions:      session.Client{B: backend, Key: cfg.SecretKey},
		webhookSecret: cfg.WebhookSecret,
		logger:        logger,
	}, nil
}

// CreateSession opens a payment-mode checkout session for an order.
// The order id doubles as the idempotency key so a retried request
// returns the session created by the first attempt
func (g *StripeCheckoutGateway) CreateSession(ctx context.Context, in apptrade.CreateCheckoutInput) (*apptrade.CheckoutSession, error) {
	if len(in.Lines) == 0 {
		return nil, errors.New("stripe: checkout needs at least one line item")
	}
	orderID := in.OrderID.String()
	currency := strings.ToLower(string(in.Currency))

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(orderID),
		SuccessURL:        stripe.String(in.SuccessURL),
		CancelURL:         stripe.String(in.CancelURL),
		LineItems:         make([]*stripe.CheckoutSessionLineItemParams, 0, len(in.Lines)),
	}
	params.Context = ctx
	params.AddMetadata(metadataOrderID, orderID)
	params.SetIdempotencyKey("checkout-" + orderID)
	if !in.ExpiresAt.IsZero() {
		params.ExpiresAt = stripe.Int64(in.ExpiresAt.Unix())
	}
	if in.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(in.CustomerEmail)
	}

	for _, line := range in.Lines {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(line.Name),
		}
		if line.Image != "" {
			product.Images = stripe.StringSlice([]string{line.Image})
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				UnitAmount:  stripe.Int64(line.UnitAmount),
				ProductData: product,
			},
			Quantity: stripe.Int64(line.Quantity),
		})
	}

	s, err := g.sessions.New(params)
	if err != nil {
		g.logger.Error("Failed to create checkout session",
			zap.String("order_id", orderID),
			zap.Error(err))
		return nil, fmt.Errorf("stripe: create checkout session: %w", err)
	}

	g.logger.Info("Checkout session created",
		zap.String("order_id", orderID),
		zap.String("session_id", s.ID))
	return toCheckoutSession(s), nil
}

// GetSession retrieves a checkout session by id
func (g *StripeCheckoutGateway) GetSession(ctx context.Context, sessionID string) (*apptrade.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := g.sessions.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: get checkout session %s: %w", sessionID, err)
	}
	return toCheckoutSession(s), nil
}

// ExpireSession closes an open session. Stripe rejects expiring a session
// that is already complete, so callers fall back to GetSession on error
func (g *StripeCheckoutGateway) ExpireSession(ctx context.Context, sessionID string) (*apptrade.CheckoutSession, error) {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	s, err := g.sessions.Expire(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: expire checkout session %s: %w", sessionID, err)
	}
	g.logger.Info("Checkout session expired", zap.String("session_id", sessionID))
	return toCheckoutSession(s), nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
// Events that do not carry a checkout session are returned without one
func (g *StripeCheckoutGateway) ParseWebhook(payload []byte, signature string) (*apptrade.WebhookEvent, error) {
	if g.webhookSecret == "" {
		return nil, errors.New("stripe: webhook secret is not configured")
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("stripe: verify webhook: %w", err)
	}

	out := &apptrade.WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if !strings.HasPrefix(out.Type, "checkout.session.") || event.Data == nil {
		return out, nil
	}
	var s stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
		return nil, fmt.Errorf("stripe: decode checkout session: %w", err)
	}
	out.Session = toCheckoutSession(&s)
	return out, nil
}

func toCheckoutSession(s *stripe.CheckoutSession) *apptrade.CheckoutSession {
	orderID := s.ClientReferenceID
	if orderID == "" {
		orderID = s.Metadata[metadataOrderID]
	}
	return &apptrade.CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		Status:        string(s.Status),
		PaymentStatus: string(s.PaymentStatus),
		OrderID:       orderID,
	}
}

var _ apptrade.CheckoutGateway = (*StripeCheckoutGateway)(nil)
