package repository

import (
	"context"
	"errors"
	"time"

	"marketplace-orders/internal/model"

	"gorm.io/gorm"
)

// ErrStaleStatus means the row no longer holds the status a conditional update expected.
var ErrStaleStatus = errors.New("order status changed concurrently")

type OrderFilter struct {
	CustomerID string
	SellerID   string
	Status     model.OrderStatus
	Limit      int
	Offset     int
}

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	Delete(ctx context.Context, tx *gorm.DB, orderID string) error
	FindByID(ctx context.Context, orderID string) (*model.Order, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*model.Order, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]*model.Order, int64, error)
	TransitionStatus(ctx context.Context, tx *gorm.DB, orderID string, from, to model.OrderStatus, updates map[string]interface{}) error
	UpdatePaymentStatus(ctx context.Context, tx *gorm.DB, orderID string, to model.PaymentStatus, updates map[string]interface{}) (bool, error)
	AppendHistory(ctx context.Context, tx *gorm.DB, event *model.OrderStatusEvent) error
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

// Create inserts the order together with its items and history rows.
func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return tx.WithContext(ctx).Create(order).Error
}

func (r *orderRepoImpl) Delete(ctx context.Context, tx *gorm.DB, orderID string) error {
	db := tx.WithContext(ctx)
	if err := db.Where("order_id = ?", orderID).Delete(&model.OrderItem{}).Error; err != nil {
		return err
	}
	if err := db.Where("order_id = ?", orderID).Delete(&model.OrderStatusEvent{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", orderID).Delete(&model.Order{}).Error
}

func (r *orderRepoImpl) FindByID(ctx context.Context, orderID string) (*model.Order, error) {
	return r.findOne(ctx, "id = ?", orderID)
}

func (r *orderRepoImpl) FindByIdempotencyKey(ctx context.Context, key string) (*model.Order, error) {
	return r.findOne(ctx, "idempotency_key = ?", key)
}

func (r *orderRepoImpl) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.Order, error) {
	return r.findOne(ctx, "gateway_order_id = ?", gatewayOrderID)
}

func (r *orderRepoImpl) findOne(ctx context.Context, query string, args ...interface{}) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where(query, args...).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) List(ctx context.Context, filter OrderFilter) ([]*model.Order, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Order{})
	if filter.CustomerID != "" {
		q = q.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.SellerID != "" {
		q = q.Where("id IN (?)", r.db.Model(&model.OrderItem{}).
			Select("order_id").
			Where("seller_id = ?", filter.SellerID))
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var orders []*model.Order
	err := q.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Order("created_at DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// TransitionStatus moves the order only if it still holds from.
func (r *orderRepoImpl) TransitionStatus(ctx context.Context, tx *gorm.DB, orderID string, from, to model.OrderStatus, updates map[string]interface{}) error {
	values := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range updates {
		values[k] = v
	}

	result := tx.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(values)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

// UpdatePaymentStatus applies to only from the statuses that may precede it,
// and reports whether a row changed.
func (r *orderRepoImpl) UpdatePaymentStatus(ctx context.Context, tx *gorm.DB, orderID string, to model.PaymentStatus, updates map[string]interface{}) (bool, error) {
	values := map[string]interface{}{
		"payment_status": to,
		"updated_at":     time.Now(),
	}
	for k, v := range updates {
		values[k] = v
	}

	result := tx.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND payment_status IN ?", orderID, model.PaymentSources(to)).
		Updates(values)

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *orderRepoImpl) AppendHistory(ctx context.Context, tx *gorm.DB, event *model.OrderStatusEvent) error {
	return tx.WithContext(ctx).Create(event).Error
}
