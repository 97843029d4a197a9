package repository

import (
	"context"
	"time"

	"marketplace-orders/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SellerRepository interface {
	Upsert(ctx context.Context, seller *model.Seller) error
	Get(ctx context.Context, sellerID string) (*model.Seller, error)
	// AddEarnings atomically adds delta (which may be negative) to the seller's total.
	AddEarnings(ctx context.Context, tx *gorm.DB, sellerID string, delta decimal.Decimal) error
}

type sellerRepoImpl struct {
	db *gorm.DB
}

func NewSellerRepository(db *gorm.DB) SellerRepository {
	return &sellerRepoImpl{
		db: db,
	}
}

func (r *sellerRepoImpl) Upsert(ctx context.Context, seller *model.Seller) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"name":       seller.Name,
			"updated_at": time.Now(),
		}),
	}).Create(seller).Error
}

func (r *sellerRepoImpl) Get(ctx context.Context, sellerID string) (*model.Seller, error) {
	var seller model.Seller
	err := r.db.WithContext(ctx).
		Where("id = ?", sellerID).
		First(&seller).Error
	if err != nil {
		return nil, err
	}

	return &seller, nil
}

func (r *sellerRepoImpl) AddEarnings(ctx context.Context, tx *gorm.DB, sellerID string, delta decimal.Decimal) error {
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_earnings": gorm.Expr("sellers.total_earnings + ?", delta),
			"updated_at":     time.Now(),
		}),
	}).Create(&model.Seller{
		ID:            sellerID,
		TotalEarnings: delta,
	}).Error
}
