package repository

import (
	"context"
	"errors"
	"time"

	"marketplace-orders/internal/model"

	"gorm.io/gorm"
)

// InventoryRepository owns the stock counters. Decrement is the single
// serialization point for stock: one conditional UPDATE per call.
type InventoryRepository interface {
	Decrement(ctx context.Context, tx *gorm.DB, productID string, variantID *string, quantity int) (bool, error)
	Increment(ctx context.Context, tx *gorm.DB, productID string, variantID *string, quantity int) error
	Available(ctx context.Context, tx *gorm.DB, productID string, variantID *string) (int, error)
}

type inventoryRepoImpl struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) InventoryRepository {
	return &inventoryRepoImpl{
		db: db,
	}
}

func (r *inventoryRepoImpl) Decrement(ctx context.Context, tx *gorm.DB, productID string, variantID *string, quantity int) (bool, error) {
	var result *gorm.DB
	if variantID != nil {
		result = tx.WithContext(ctx).Model(&model.ProductVariant{}).
			Where("id = ? AND product_id = ? AND stock >= ?", *variantID, productID, quantity).
			UpdateColumn("stock", gorm.Expr("stock - ?", quantity))
	} else {
		result = tx.WithContext(ctx).Model(&model.Product{}).
			Where("id = ? AND stock >= ?", productID, quantity).
			Updates(map[string]interface{}{
				"stock":      gorm.Expr("stock - ?", quantity),
				"updated_at": time.Now(),
			})
	}

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *inventoryRepoImpl) Increment(ctx context.Context, tx *gorm.DB, productID string, variantID *string, quantity int) error {
	var result *gorm.DB
	if variantID != nil {
		result = tx.WithContext(ctx).Model(&model.ProductVariant{}).
			Where("id = ? AND product_id = ?", *variantID, productID).
			UpdateColumn("stock", gorm.Expr("stock + ?", quantity))
	} else {
		result = tx.WithContext(ctx).Model(&model.Product{}).
			Where("id = ?", productID).
			Updates(map[string]interface{}{
				"stock":      gorm.Expr("stock + ?", quantity),
				"updated_at": time.Now(),
			})
	}

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *inventoryRepoImpl) Available(ctx context.Context, tx *gorm.DB, productID string, variantID *string) (int, error) {
	if tx == nil {
		tx = r.db
	}

	var stock []int
	var err error
	if variantID != nil {
		err = tx.WithContext(ctx).Model(&model.ProductVariant{}).
			Where("id = ? AND product_id = ?", *variantID, productID).
			Pluck("stock", &stock).Error
	} else {
		err = tx.WithContext(ctx).Model(&model.Product{}).
			Where("id = ?", productID).
			Pluck("stock", &stock).Error
	}
	if err != nil {
		return 0, err
	}
	if len(stock) == 0 {
		return 0, gorm.ErrRecordNotFound
	}

	return stock[0], nil
}

// IsNotFound is a small helper so services don't import gorm for one sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func IsDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
