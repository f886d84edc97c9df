package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mystique/backend/internal/domain/shared"
	"github.com/mystique/backend/internal/domain/trade"
	"github.com/mystique/backend/internal/infrastructure/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockIdempotencyStore) Close() error { return nil }

func TestIdempotentHandler_SkipsDuplicates(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()
	inner := newRecordingHandler(trade.EventTypeOrderPaid)
	h := NewIdempotentHandler(inner, store, shared.DefaultIdempotencyConfig(), zaptest.NewLogger(t))
	event := newStatusEvent(trade.EventTypeOrderPaid)

	require.NoError(t, h.Handle(context.Background(), event))
	require.NoError(t, h.Handle(context.Background(), event))
	require.NoError(t, h.Handle(context.Background(), newStatusEvent(trade.EventTypeOrderPaid)))

	assert.Equal(t, 2, inner.count())
	assert.Equal(t, IdempotencyStats{Processed: 2, Duplicates: 1}, h.Stats())
	assert.Equal(t, []string{trade.EventTypeOrderPaid}, h.EventTypes())

	processed, err := store.IsProcessed(context.Background(), "shop:idem:event:"+event.EventID().String())
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestIdempotentHandler_ReleasesOnFailure(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()
	inner := newRecordingHandler()
	inner.err = errors.New("kafka unavailable")
	h := NewIdempotentHandler(inner, store, shared.DefaultIdempotencyConfig(), nil)
	event := newStatusEvent(trade.EventTypeOrderPlaced)

	assert.Error(t, h.Handle(context.Background(), event))

	inner.err = nil
	require.NoError(t, h.Handle(context.Background(), event))
	assert.Equal(t, 2, inner.count(), "redelivery after failure is handled")
	assert.Equal(t, IdempotencyStats{Processed: 1, Failed: 1}, h.Stats())
}

func TestIdempotentHandler_StoreOutage(t *testing.T) {
	store := new(MockIdempotencyStore)
	store.On("MarkProcessed", mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("redis down"))
	inner := newRecordingHandler()
	inner.err = errors.New("still failing")
	h := NewIdempotentHandler(inner, store, shared.DefaultIdempotencyConfig(), zaptest.NewLogger(t))

	assert.Error(t, h.Handle(context.Background(), newStatusEvent(trade.EventTypeOrderPlaced)))
	assert.Equal(t, 1, inner.count())
	store.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
}
