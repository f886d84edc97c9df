package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mystique/backend/internal/domain/shared"
	"github.com/mystique/backend/internal/domain/trade"
	"github.com/mystique/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormOrderRepository implements OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) withItems(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

func (r *GormOrderRepository) findOne(ctx context.Context, query string, args ...any) (*trade.Order, error) {
	var model models.OrderModel
	if err := r.withItems(ctx).Where(query, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound.WithMessage("Order not found")
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByID finds an order by ID
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*trade.Order, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByIdempotencyKey finds the order a user submitted with key
func (r *GormOrderRepository) FindByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*trade.Order, error) {
	return r.findOne(ctx, "idempotency_user = ? AND idempotency_key = ?", userID, key)
}

// FindByCheckoutSession finds the order for a hosted checkout session
func (r *GormOrderRepository) FindByCheckoutSession(ctx context.Context, sessionID string) (*trade.Order, error) {
	return r.findOne(ctx, "checkout_session_id = ?", sessionID)
}

// FindAll lists orders matching the filter
func (r *GormOrderRepository) FindAll(ctx context.Context, filter shared.Filter) ([]trade.Order, error) {
	var rows []models.OrderModel
	query := applyPaging(r.applyFilter(r.withItems(ctx).Model(&models.OrderModel{}), filter), filter, OrderSortFields)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainOrders(rows), nil
}

// Count counts orders matching the filter
func (r *GormOrderRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.db.WithContext(ctx).Model(&models.OrderModel{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindByUser lists a customer's orders, newest first
func (r *GormOrderRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]trade.Order, error) {
	var rows []models.OrderModel
	if err := r.withItems(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainOrders(rows), nil
}

// FindStaleUnpaid lists open card orders created before the cutoff, oldest first
func (r *GormOrderRepository) FindStaleUnpaid(ctx context.Context, before time.Time, limit int) ([]trade.Order, error) {
	var rows []models.OrderModel
	query := r.withItems(ctx).
		Where("payment_method = ? AND payment = ? AND status = ? AND created_at < ?",
			trade.PaymentMethodStripe, false, trade.OrderStatusPlaced, before).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainOrders(rows), nil
}

// Save inserts a new order with its items
func (r *GormOrderRepository) Save(ctx context.Context, order *trade.Order) error {
	err := r.db.WithContext(ctx).Create(models.OrderModelFromDomain(order)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.ErrDuplicateRequest.WithMessage("Order was already submitted")
	}
	return err
}

// Update persists order state with an optimistic version check.
// Items are an immutable snapshot and are never rewritten.
func (r *GormOrderRepository) Update(ctx context.Context, order *trade.Order) error {
	result := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("id = ? AND version = ?", order.ID, order.Version-1).
		Select("payment", "paid_at", "status", "checkout_session_id", "cancel_reason",
			"cancelled_at", "idempotency_key", "idempotency_user", "version", "updated_at").
		Omit("Items").
		Updates(models.OrderModelFromDomain(order))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.OrderModel{}).Where("id = ?", order.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return shared.ErrNotFound.WithMessage("Order not found")
		}
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func (r *GormOrderRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		p := likePattern(filter.Search)
		query = query.Where(`(LOWER(customer_name) LIKE ? ESCAPE '\'`+
			` OR LOWER(address->>'email') LIKE ? ESCAPE '\'`+
			` OR LOWER(CAST(id AS TEXT)) LIKE ? ESCAPE '\')`, p, p, p)
	}
	query = applyDateRange(query, "created_at", filter)
	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "payment_method":
			query = query.Where("payment_method = ?", value)
		case "payment":
			query = query.Where("payment = ?", value)
		case "user_id":
			query = query.Where("user_id = ?", value)
		}
	}
	return query
}

func toDomainOrders(rows []models.OrderModel) []trade.Order {
	out := make([]trade.Order, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// Ensure GormOrderRepository implements OrderRepository
var _ trade.OrderRepository = (*GormOrderRepository)(nil)
