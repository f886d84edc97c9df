package event

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/mystique/backend/internal/domain/shared/valueobject"
	"github.com/mystique/backend/internal/domain/trade"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func placedOrder(t *testing.T) *trade.Order {
	t.Helper()
	o, err := trade.NewOrder(uuid.New(), trade.PaymentMethodStripe, []trade.OrderItem{{
		ProductID: uuid.New(),
		Name:      "Linen Dress",
		Price:     decimal.RequireFromString("49.50"),
		Quantity:  2,
		Size:      "M",
	}}, valueobject.ShippingAddress{
		FirstName: "Ada", LastName: "Lovelace", Street: "12 St James Sq", City: "London",
		Zipcode: "SW1Y", Country: "UK", Phone: "555-0101",
	}, trade.DefaultDeliveryFee, valueobject.USD)
	require.NoError(t, err)
	return o
}

func TestEventSerializer_RoundTrip(t *testing.T) {
	s := NewDefaultEventSerializer()
	order := placedOrder(t)
	event := trade.NewOrderPlacedEvent(order)

	data, err := s.Serialize(event)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, trade.EventTypeOrderPlaced, env.Type)
	assert.Equal(t, trade.AggregateTypeOrder, env.AggregateType)
	assert.Equal(t, order.ID, env.AggregateID)

	decoded, err := s.Deserialize(data)
	require.NoError(t, err)
	placed, ok := decoded.(*trade.OrderPlacedEvent)
	require.True(t, ok)
	assert.Equal(t, event.EventID(), placed.EventID())
	assert.Equal(t, order.UserID, placed.UserID)
	assert.True(t, order.Amount.Equal(placed.Amount))
	require.Len(t, placed.Items, 1)
	assert.Equal(t, "Linen Dress", placed.Items[0].Name)
}

func TestEventSerializer_UnknownType(t *testing.T) {
	s := NewEventSerializer()
	data, err := s.Serialize(newStatusEvent("Mystery"))
	require.NoError(t, err)

	_, err = s.Deserialize(data)
	assert.ErrorContains(t, err, "unknown event type: Mystery")

	_, err = s.Deserialize([]byte("{"))
	assert.ErrorContains(t, err, "unmarshal envelope")
}

func TestEventSerializer_RegisteredTypes(t *testing.T) {
	s := NewDefaultEventSerializer()
	types := s.RegisteredTypes()
	assert.Len(t, types, 8)
	assert.True(t, s.IsRegistered(trade.EventTypeOrderCancelled))
	assert.False(t, s.IsRegistered("SalesOrderCreated"))
	assert.Equal(t, "OrderCancelled", types[0])
}
