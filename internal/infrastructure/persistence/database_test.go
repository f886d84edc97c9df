package persistence

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/mystique/backend/internal/domain/cart"
	"github.com/mystique/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockDatabase creates a Database backed by sqlmock with the postgres dialect
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{SkipDefaultTransaction: true, DisableAutomaticPing: true})
	require.NoError(t, err)

	return &Database{DB: gormDB}, mock, mockDB
}

func TestDatabase_Ping(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	mock.ExpectPing()
	assert.NoError(t, db.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(assert.AnError)
	assert.Error(t, db.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_StatsAndClose(t *testing.T) {
	db, mock, _ := newMockDatabase(t)

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.OpenConnections, 0)

	mock.ExpectClose()
	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The stock decrement must be a single conditional UPDATE; a read followed by
// a write would let two orders both take the last unit.
func TestProductRepository_DecrementStockSQL(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormProductRepository(db.DB)
	id := uuid.New()

	t.Run("conditional update succeeds", func(t *testing.T) {
		mock.ExpectExec(`UPDATE "products" SET "stock"=stock - \$1,"version"=version \+ 1 WHERE id = \$2 AND stock >= \$3`).
			WithArgs(2, id, 2).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.DecrementStock(context.Background(), id, 2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero rows reports remaining stock", func(t *testing.T) {
		mock.ExpectExec(`UPDATE "products" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT .* FROM "products"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "stock"}).AddRow(id, "Velvet Gown", 1))

		err := repo.DecrementStock(context.Background(), id, 2)
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
		assert.Equal(t, "Insufficient stock for Velvet Gown. Only 1 left.", err.Error())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database errors are wrapped", func(t *testing.T) {
		mock.ExpectExec(`UPDATE "products" SET`).WillReturnError(assert.AnError)

		err := repo.DecrementStock(context.Background(), id, 1)
		assert.ErrorIs(t, err, assert.AnError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

// Cart edits lock the user row so two concurrent adds are applied one after the other
func TestCartRepository_ModifySQL(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormCartRepository(db.DB)
	userID := uuid.New()
	productID := uuid.New()

	t.Run("locks, edits and writes back in one transaction", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT "id","cart_data" FROM "users" WHERE id = \$1 .*FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "cart_data"}).AddRow(userID, []byte(`{}`)))
		mock.ExpectExec(`UPDATE "users" SET "cart_data"=\$1.* WHERE id = \$`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		c, err := repo.Modify(context.Background(), userID, func(c cart.Cart) error {
			return c.Add(productID, "M")
		})
		require.NoError(t, err)
		assert.Equal(t, 1, c.Quantity(productID, "M"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("a failed edit rolls back", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT .* FROM "users" .*FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "cart_data"}).AddRow(userID, []byte(`{}`)))
		mock.ExpectRollback()

		_, err := repo.Modify(context.Background(), userID, func(c cart.Cart) error {
			return c.Set(productID, "M", 500)
		})
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
