package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mystique/backend/internal/domain/cart"
	"github.com/mystique/backend/internal/domain/shared"
	"github.com/mystique/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCartRepository stores each cart in the cart_data column of its user row.
type GormCartRepository struct {
	db *gorm.DB
}

// NewGormCartRepository creates a new GormCartRepository
func NewGormCartRepository(db *gorm.DB) *GormCartRepository {
	return &GormCartRepository{db: db}
}

// Get loads the cart, returning an empty cart when none was saved yet
func (r *GormCartRepository) Get(ctx context.Context, userID uuid.UUID) (cart.Cart, error) {
	var model models.UserModel
	err := r.db.WithContext(ctx).Select("id", "cart_data").First(&model, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound.WithMessage("User not found")
	}
	if err != nil {
		return nil, err
	}
	if model.CartData == nil {
		return cart.New(), nil
	}
	return model.CartData, nil
}

// Save replaces the stored cart
func (r *GormCartRepository) Save(ctx context.Context, userID uuid.UUID, c cart.Cart) error {
	if c == nil {
		c = cart.New()
	}
	result := r.db.WithContext(ctx).
		Model(&models.UserModel{}).
		Where("id = ?", userID).
		Select("cart_data").
		Updates(&models.UserModel{CartData: c})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound.WithMessage("User not found")
	}
	return nil
}

// Modify locks the user row for the read-modify-write so a concurrent add
// cannot overwrite this one
func (r *GormCartRepository) Modify(ctx context.Context, userID uuid.UUID, fn func(cart.Cart) error) (cart.Cart, error) {
	var updated cart.Cart
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.UserModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "cart_data").
			First(&model, "id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shared.ErrNotFound.WithMessage("User not found")
		}
		if err != nil {
			return err
		}

		c := model.CartData
		if c == nil {
			c = cart.New()
		}
		if err := fn(c); err != nil {
			return err
		}
		if err := tx.Model(&models.UserModel{}).
			Where("id = ?", userID).
			Select("cart_data").
			Updates(&models.UserModel{CartData: c}).Error; err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Clear empties the stored cart
func (r *GormCartRepository) Clear(ctx context.Context, userID uuid.UUID) error {
	return r.Save(ctx, userID, cart.New())
}

// Ensure GormCartRepository implements cart.Repository
var _ cart.Repository = (*GormCartRepository)(nil)
