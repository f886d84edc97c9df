package event

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/mystique/backend/internal/domain/shared"
	"github.com/mystique/backend/internal/domain/shared/valueobject"
	"github.com/mystique/backend/internal/domain/trade"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type MockBrokerSender struct {
	mock.Mock
}

func (m *MockBrokerSender) Send(ctx context.Context, events ...shared.DomainEvent) error {
	return m.Called(ctx, events).Error(0)
}

type MockMetricsRecorder struct {
	mock.Mock
}

func (m *MockMetricsRecorder) RecordOrderPlaced(ctx context.Context, paymentMethod string, amount decimal.Decimal) {
	m.Called(ctx, paymentMethod, amount.String())
}

func (m *MockMetricsRecorder) RecordPayment(ctx context.Context, amount decimal.Decimal) {
	m.Called(ctx, amount.String())
}

func (m *MockMetricsRecorder) RecordCancellation(ctx context.Context, reason string, units int) {
	m.Called(ctx, reason, units)
}

func (m *MockMetricsRecorder) RecordStatusChange(ctx context.Context, status string) {
	m.Called(ctx, status)
}

func newOrder(t *testing.T, method trade.PaymentMethod) *trade.Order {
	t.Helper()
	o, err := trade.NewOrder(uuid.New(), method, []trade.OrderItem{
		{ProductID: uuid.New(), Name: "Wool Coat", Price: decimal.NewFromInt(120), Quantity: 1, Size: "L"},
		{ProductID: uuid.New(), Name: "Beret", Price: decimal.NewFromInt(15), Quantity: 2, Size: "OS"},
	}, valueobject.ShippingAddress{
		FirstName: "Rosalind", LastName: "Franklin", Street: "Kings College", City: "London",
		Zipcode: "WC2R", Country: "UK", Phone: "555-0102",
	}, trade.DefaultDeliveryFee, valueobject.USD)
	require.NoError(t, err)
	return o
}

func TestOrderEventPublisher_Handle(t *testing.T) {
	sender := new(MockBrokerSender)
	h := NewOrderEventPublisher(sender, zaptest.NewLogger(t))
	event := trade.NewOrderPlacedEvent(newOrder(t, trade.PaymentMethodCOD))

	sender.On("Send", mock.Anything, []shared.DomainEvent{event}).Return(nil).Once()
	require.NoError(t, h.Handle(context.Background(), event))

	sender.On("Send", mock.Anything, mock.Anything).Return(errors.New("no leader")).Once()
	assert.EqualError(t, h.Handle(context.Background(), event), "no leader")

	assert.ElementsMatch(t, trade.OrderEventTypes(), h.EventTypes())
	sender.AssertExpectations(t)
}

func TestOrderMetricsHandler_Handle(t *testing.T) {
	ctx := context.Background()
	recorder := new(MockMetricsRecorder)
	h := NewOrderMetricsHandler(recorder)

	stripeOrder := newOrder(t, trade.PaymentMethodStripe)
	recorder.On("RecordOrderPlaced", ctx, "Stripe", "160").Once()
	require.NoError(t, h.Handle(ctx, trade.NewOrderPlacedEvent(stripeOrder)))

	_, err := stripeOrder.Cancel("checkout cancelled")
	require.NoError(t, err)
	recorder.On("RecordCancellation", ctx, "checkout cancelled", 3).Once()
	require.NoError(t, h.Handle(ctx, trade.NewOrderCancelledEvent(stripeOrder)))

	paidOrder := newOrder(t, trade.PaymentMethodStripe)
	recorder.On("RecordPayment", ctx, "160").Once()
	require.NoError(t, h.Handle(ctx, trade.NewOrderPaidEvent(paidOrder)))

	codOrder := newOrder(t, trade.PaymentMethodCOD)
	require.NoError(t, codOrder.UpdateStatus(trade.OrderStatusShipped))
	recorder.On("RecordStatusChange", ctx, "Shipped").Once()
	require.NoError(t, h.Handle(ctx, trade.NewOrderStatusChangedEvent(codOrder, trade.OrderStatusPlaced)))

	recorder.AssertExpectations(t)
}
