package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	tradeapp "github.com/mystique/backend/internal/application/trade"
	"github.com/mystique/backend/internal/domain/shared"
	"github.com/mystique/backend/internal/domain/trade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormTransactionScope(t *testing.T) {
	db := setupTestDB(t)
	scope := NewGormTransactionScope(db)
	products := NewGormProductRepository(db)
	orders := NewGormOrderRepository(db)
	ctx := context.Background()

	first := newTestProduct(t, "Cardigan", 3)
	second := newTestProduct(t, "Loafer", 1)
	require.NoError(t, products.Save(ctx, first))
	require.NoError(t, products.Save(ctx, second))

	t.Run("rolls back earlier decrements when a later line fails", func(t *testing.T) {
		order := newTestOrder(t, uuid.New(), trade.PaymentMethodCOD, first, 2)
		err := scope.Execute(ctx, func(repos tradeapp.TransactionalRepositories) error {
			if err := repos.Products().DecrementStock(ctx, first.ID, 2); err != nil {
				return err
			}
			if err := repos.Products().DecrementStock(ctx, second.ID, 2); err != nil {
				return err
			}
			return repos.Orders().Save(ctx, order)
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)

		p, err := products.FindByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, p.Stock)

		_, err = orders.FindByID(ctx, order.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("commits every write on success", func(t *testing.T) {
		order := newTestOrder(t, uuid.New(), trade.PaymentMethodCOD, first, 1)
		err := scope.Execute(ctx, func(repos tradeapp.TransactionalRepositories) error {
			if err := repos.Products().DecrementStock(ctx, first.ID, 1); err != nil {
				return err
			}
			return repos.Orders().Save(ctx, order)
		})
		require.NoError(t, err)

		p, err := products.FindByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, p.Stock)

		_, err = orders.FindByID(ctx, order.ID)
		assert.NoError(t, err)
	})

	t.Run("returns the callback error untouched", func(t *testing.T) {
		boom := errors.New("boom")
		err := scope.Execute(ctx, func(tradeapp.TransactionalRepositories) error { return boom })
		assert.ErrorIs(t, err, boom)
	})
}
