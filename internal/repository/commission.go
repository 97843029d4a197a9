package repository

import (
	"context"
	"time"

	"marketplace-orders/internal/model"

	"gorm.io/gorm"
)

type CommissionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, commissions []*model.Commission) error
	DeleteByOrder(ctx context.Context, tx *gorm.DB, orderID string) error
	FindByOrder(ctx context.Context, tx *gorm.DB, orderID string) ([]*model.Commission, error)
	// MoveStatus changes one commission from any of from to to; false when it was not in from.
	MoveStatus(ctx context.Context, tx *gorm.DB, commissionID string, from []model.CommissionStatus, to model.CommissionStatus) (bool, error)
}

type commissionRepoImpl struct {
	db *gorm.DB
}

func NewCommissionRepository(db *gorm.DB) CommissionRepository {
	return &commissionRepoImpl{
		db: db,
	}
}

func (r *commissionRepoImpl) Create(ctx context.Context, tx *gorm.DB, commissions []*model.Commission) error {
	if len(commissions) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&commissions).Error
}

func (r *commissionRepoImpl) DeleteByOrder(ctx context.Context, tx *gorm.DB, orderID string) error {
	return tx.WithContext(ctx).Where("order_id = ?", orderID).Delete(&model.Commission{}).Error
}

func (r *commissionRepoImpl) FindByOrder(ctx context.Context, tx *gorm.DB, orderID string) ([]*model.Commission, error) {
	if tx == nil {
		tx = r.db
	}

	var commissions []*model.Commission
	err := tx.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at, id").
		Find(&commissions).Error
	if err != nil {
		return nil, err
	}

	return commissions, nil
}

func (r *commissionRepoImpl) MoveStatus(ctx context.Context, tx *gorm.DB, commissionID string, from []model.CommissionStatus, to model.CommissionStatus) (bool, error) {
	result := tx.WithContext(ctx).Model(&model.Commission{}).
		Where("id = ? AND status IN ?", commissionID, from).
		UpdateColumns(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
