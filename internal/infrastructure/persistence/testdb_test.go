package persistence

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/mystique/backend/internal/domain/catalog"
	"github.com/mystique/backend/internal/domain/identity"
	"github.com/mystique/backend/internal/domain/shared/valueobject"
	"github.com/mystique/backend/internal/domain/trade"
	"github.com/mystique/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens an isolated in-memory sqlite database with the shop schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.ProductModel{},
		&models.UserModel{},
		&models.OrderModel{},
		&models.OrderItemModel{},
	))
	return db
}

func newTestProduct(t *testing.T, name string, stock int) *catalog.Product {
	t.Helper()
	p, err := catalog.NewProduct(catalog.NewProductInput{
		Name:        name,
		Description: name + " description",
		Price:       decimal.RequireFromString("49.99"),
		Images:      []string{"https://cdn.example.com/" + name + ".jpg"},
		Category:    catalog.CategoryClothing,
		Subcategory: catalog.SubcategoryDresses,
		Sizes:       []string{"S", "M"},
		Stock:       stock,
	})
	require.NoError(t, err)
	return p
}

func newTestUser(t *testing.T, email string) *identity.User {
	t.Helper()
	u, err := identity.NewUser("Jane Doe", email, "secret123")
	require.NoError(t, err)
	return u
}

func testAddress() valueobject.ShippingAddress {
	return valueobject.ShippingAddress{
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "jane@example.com",
		Street:    "1 Main St",
		City:      "Springfield",
		State:     "IL",
		Zipcode:   "62701",
		Country:   "US",
		Phone:     "555-0100",
	}
}

func newTestOrder(t *testing.T, userID uuid.UUID, method trade.PaymentMethod, p *catalog.Product, qty int) *trade.Order {
	t.Helper()
	o, err := trade.NewOrder(userID, method, []trade.OrderItem{{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Quantity:  qty,
		Size:      "M",
		Image:     p.Images[0],
	}}, testAddress(), trade.DefaultDeliveryFee, trade.DefaultCurrency)
	require.NoError(t, err)
	return o
}
