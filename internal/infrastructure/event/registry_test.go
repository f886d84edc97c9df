package event

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/mystique/backend/internal/domain/shared"
	"github.com/mystique/backend/internal/domain/trade"
	"github.com/stretchr/testify/assert"
)

// recordingHandler collects every event it is given
type recordingHandler struct {
	eventTypes []string
	err        error
	mu         sync.Mutex
	handled    []shared.DomainEvent
}

func newRecordingHandler(eventTypes ...string) *recordingHandler {
	return &recordingHandler{eventTypes: eventTypes}
}

func (h *recordingHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return h.err
}

func (h *recordingHandler) EventTypes() []string { return h.eventTypes }

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

type statusEvent struct {
	shared.BaseDomainEvent
	Status string `json:"status"`
}

func newStatusEvent(eventType string) *statusEvent {
	return &statusEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, trade.AggregateTypeOrder, uuid.New()),
		Status:          "Packing",
	}
}

func TestHandlerRegistry_Register(t *testing.T) {
	registry := NewHandlerRegistry()
	placed := newRecordingHandler()
	all := newRecordingHandler()

	registry.Register(placed, trade.EventTypeOrderPlaced, trade.EventTypeOrderPaid)
	registry.Register(placed, trade.EventTypeOrderPlaced)
	registry.Register(all)

	handlers := registry.GetHandlers(trade.EventTypeOrderPlaced)
	assert.Equal(t, []shared.EventHandler{placed, all}, handlers)

	handlers = registry.GetHandlers(trade.EventTypeOrderCancelled)
	assert.Equal(t, []shared.EventHandler{all}, handlers)

	assert.Equal(t, 2, registry.HandlerCount())
}

func TestHandlerRegistry_Unregister(t *testing.T) {
	registry := NewHandlerRegistry()
	a := newRecordingHandler()
	b := newRecordingHandler()
	registry.Register(a, trade.EventTypeOrderPaid)
	registry.Register(b, trade.EventTypeOrderPaid)
	registry.Register(a)

	registry.Unregister(a)

	assert.Equal(t, []shared.EventHandler{b}, registry.GetHandlers(trade.EventTypeOrderPaid))
	assert.Equal(t, 1, registry.HandlerCount())

	registry.Unregister(b)
	assert.Empty(t, registry.GetHandlers(trade.EventTypeOrderPaid))
	assert.Equal(t, 0, registry.HandlerCount())
}

func TestHandlerRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewHandlerRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			registry.Register(newRecordingHandler(), trade.EventTypeOrderPlaced)
		}()
		go func() {
			defer wg.Done()
			_ = registry.GetHandlers(trade.EventTypeOrderPlaced)
		}()
	}
	wg.Wait()
	assert.Len(t, registry.GetHandlers(trade.EventTypeOrderPlaced), 50)
}
