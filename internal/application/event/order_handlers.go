package event

import (
	"context"

	"github.com/mystique/backend/internal/domain/shared"
	"github.com/mystique/backend/internal/domain/trade"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BrokerSender delivers events to an external message broker
type BrokerSender interface {
	Send(ctx context.Context, events ...shared.DomainEvent) error
}

// OrderEventPublisher forwards order lifecycle events to the broker so
// downstream services (fulfilment, mailing) can react to them
type OrderEventPublisher struct {
	sender BrokerSender
	logger *zap.Logger
}

// NewOrderEventPublisher creates the forwarding handler
func NewOrderEventPublisher(sender BrokerSender, logger *zap.Logger) *OrderEventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderEventPublisher{sender: sender, logger: logger}
}

// EventTypes returns the order event types
func (h *OrderEventPublisher) EventTypes() []string {
	return trade.OrderEventTypes()
}

// Handle sends the event to the broker
func (h *OrderEventPublisher) Handle(ctx context.Context, event shared.DomainEvent) error {
	if err := h.sender.Send(ctx, event); err != nil {
		h.logger.Warn("failed to forward order event",
			zap.String("event_type", event.EventType()),
			zap.String("order_id", event.AggregateID().String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// OrderMetricsRecorder receives order business metrics
type OrderMetricsRecorder interface {
	RecordOrderPlaced(ctx context.Context, paymentMethod string, amount decimal.Decimal)
	RecordPayment(ctx context.Context, amount decimal.Decimal)
	RecordCancellation(ctx context.Context, reason string, units int)
	RecordStatusChange(ctx context.Context, status string)
}

// OrderMetricsHandler turns order events into business metrics
type OrderMetricsHandler struct {
	metrics OrderMetricsRecorder
}

// NewOrderMetricsHandler creates the metrics handler
func NewOrderMetricsHandler(metrics OrderMetricsRecorder) *OrderMetricsHandler {
	return &OrderMetricsHandler{metrics: metrics}
}

// EventTypes returns the order event types
func (h *OrderMetricsHandler) EventTypes() []string {
	return trade.OrderEventTypes()
}

// Handle records the metric matching the event. Unknown events are ignored
func (h *OrderMetricsHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *trade.OrderPlacedEvent:
		h.metrics.RecordOrderPlaced(ctx, string(e.PaymentMethod), e.Amount)
	case *trade.OrderPaidEvent:
		h.metrics.RecordPayment(ctx, e.Amount)
	case *trade.OrderCancelledEvent:
		units := 0
		for _, item := range e.Items {
			units += item.Quantity
		}
		h.metrics.RecordCancellation(ctx, e.Reason, units)
	case *trade.OrderStatusChangedEvent:
		h.metrics.RecordStatusChange(ctx, string(e.NewStatus))
	}
	return nil
}

var (
	_ shared.EventHandler = (*OrderEventPublisher)(nil)
	_ shared.EventHandler = (*OrderMetricsHandler)(nil)
)
