//go:build integration

package integration

import (
	"context"
	"sync"
	"testing"

	cartapp "github.com/mystique/backend/internal/application/cart"
	"github.com/mystique/backend/internal/infrastructure/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCartAdd_ConcurrentClicksAreNotLost(t *testing.T) {
	tdb := NewSharedTestDB(t)
	tdb.CleanTables()

	product := tdb.SeedProduct("double-click-hat", 50)
	customer := tdb.SeedCustomer("clicker@example.com")
	svc := cartapp.NewCartService(
		persistence.NewGormCartRepository(tdb.DB),
		persistence.NewGormProductRepository(tdb.DB),
		zap.NewNop(),
	)

	const clicks = 10
	var wg sync.WaitGroup
	errs := make(chan error, clicks)
	for i := 0; i < clicks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Add(context.Background(), customer.ID, cartapp.AddItemRequest{ItemID: product.ID, Size: "S"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := svc.Get(context.Background(), customer.ID)
	require.NoError(t, err)
	assert.Equal(t, clicks, got[product.ID.String()]["S"])
}
