package repository

import (
	"context"

	"marketplace-orders/internal/model"

	"gorm.io/gorm"
)

type PaymentRepository interface {
	// Create fails with gorm.ErrDuplicatedKey when the gateway payment is already recorded.
	Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error
	Delete(ctx context.Context, tx *gorm.DB, gatewayPaymentID string) error
	Exists(ctx context.Context, gatewayPaymentID string) (bool, error)
	// MarkCaptured moves an authorized payment to captured. Other rows are left alone.
	MarkCaptured(ctx context.Context, tx *gorm.DB, gatewayPaymentID string) error
}

type paymentRepositoryImpl struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepositoryImpl{
		db: db,
	}
}

func (r *paymentRepositoryImpl) Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error {
	return tx.WithContext(ctx).Create(payment).Error
}

func (r *paymentRepositoryImpl) Delete(ctx context.Context, tx *gorm.DB, gatewayPaymentID string) error {
	return tx.WithContext(ctx).
		Where("gateway_payment_id = ?", gatewayPaymentID).
		Delete(&model.Payment{}).Error
}

func (r *paymentRepositoryImpl) Exists(ctx context.Context, gatewayPaymentID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("gateway_payment_id = ?", gatewayPaymentID).
		Count(&count).Error

	return count > 0, err
}

func (r *paymentRepositoryImpl) MarkCaptured(ctx context.Context, tx *gorm.DB, gatewayPaymentID string) error {
	return tx.WithContext(ctx).Model(&model.Payment{}).
		Where("gateway_payment_id = ? AND status = ?", gatewayPaymentID, model.GatewayPaymentAuthorized).
		Update("status", model.GatewayPaymentCaptured).Error
}
