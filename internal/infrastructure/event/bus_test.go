package event

import (
	"context"
	"errors"
	"testing"

	"github.com/mystique/backend/internal/domain/shared"
	"github.com/mystique/backend/internal/domain/trade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type panickingHandler struct{}

func (panickingHandler) Handle(context.Context, shared.DomainEvent) error { panic("boom") }
func (panickingHandler) EventTypes() []string                           { return nil }

func startedBus(t *testing.T) *InMemoryEventBus {
	t.Helper()
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() { _ = bus.Stop(context.Background()) })
	return bus
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	bus := startedBus(t)
	paid := newRecordingHandler(trade.EventTypeOrderPaid)
	all := newRecordingHandler()
	bus.Subscribe(paid)
	bus.Subscribe(all)

	err := bus.Publish(context.Background(),
		newStatusEvent(trade.EventTypeOrderPaid),
		newStatusEvent(trade.EventTypeOrderPlaced),
	)
	require.NoError(t, err)

	assert.Equal(t, 1, paid.count())
	assert.Equal(t, 2, all.count())
	published, failed := bus.Stats()
	assert.Equal(t, int64(2), published)
	assert.Zero(t, failed)
}

func TestInMemoryEventBus_ExplicitTypesOverrideHandlerTypes(t *testing.T) {
	bus := startedBus(t)
	h := newRecordingHandler(trade.EventTypeOrderPaid)
	bus.Subscribe(h, trade.EventTypeOrderCancelled)

	require.NoError(t, bus.Publish(context.Background(), newStatusEvent(trade.EventTypeOrderPaid)))
	assert.Zero(t, h.count())

	require.NoError(t, bus.Publish(context.Background(), newStatusEvent(trade.EventTypeOrderCancelled)))
	assert.Equal(t, 1, h.count())
}

func TestInMemoryEventBus_HandlerFailuresDoNotStopDispatch(t *testing.T) {
	bus := startedBus(t)
	failing := newRecordingHandler()
	failing.err = errors.New("broker down")
	healthy := newRecordingHandler()
	bus.Subscribe(panickingHandler{})
	bus.Subscribe(failing)
	bus.Subscribe(healthy)

	err := bus.Publish(context.Background(), newStatusEvent(trade.EventTypeOrderPlaced))

	require.Error(t, err)
	assert.ErrorContains(t, err, "broker down")
	assert.ErrorContains(t, err, "panicked")
	assert.Equal(t, 1, healthy.count())
	_, failed := bus.Stats()
	assert.Equal(t, int64(2), failed)
}

func TestInMemoryEventBus_StoppedBusDropsEvents(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	h := newRecordingHandler()
	bus.Subscribe(h)

	require.NoError(t, bus.Publish(context.Background(), newStatusEvent(trade.EventTypeOrderPlaced)))
	assert.Zero(t, h.count())

	require.NoError(t, bus.Start(context.Background()))
	require.NoError(t, bus.Publish(context.Background(), newStatusEvent(trade.EventTypeOrderPlaced)))
	assert.Equal(t, 1, h.count())

	bus.Unsubscribe(h)
	require.NoError(t, bus.Publish(context.Background(), newStatusEvent(trade.EventTypeOrderPlaced)))
	assert.Equal(t, 1, h.count())
}

func TestInMemoryEventBus_CancelledContext(t *testing.T) {
	bus := startedBus(t)
	h := newRecordingHandler()
	bus.Subscribe(h)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := bus.Publish(ctx, newStatusEvent(trade.EventTypeOrderPlaced))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, h.count())
}
